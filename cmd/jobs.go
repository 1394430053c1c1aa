package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pulse/ingest"
	"pulse/logger"
	"pulse/nlp"
	"pulse/seed"
)

func newEnrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Annotate every stored feedback item that has no annotation yet",
		Long: `Run one sweep of the annotation worker. Items whose annotation fails stay
pending and are picked up by the next run, so this is safe to schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.services().Worker.ProcessPending(ctx)
			if err != nil {
				return err
			}
			a.log.Info().
				Str("run_id", stats.RunID).
				Int("processed", stats.Processed).
				Int("failed", stats.Failed).
				Msg("enrichment finished")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var opts seed.Options

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with deterministic demo data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			seeder := seed.NewSeeder(a.stores, nlp.NewRuleAnnotator(a.lex), logger.Component(a.log, "seed"))
			_, err = seeder.Seed(ctx, opts)
			return err
		},
	}

	cmd.Flags().IntVar(&opts.Count, "count", seed.DefaultCount, "Number of feedback items to generate")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", seed.DefaultSeed, "Random seed")

	return cmd
}

func newImportCmd() *cobra.Command {
	var (
		opts    ingest.Options
		twitter string
	)

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import feedback from a file or from recent tweets",
		Long: `Import feedback from a file. Markdown files hold one "### Title" section per
review; JSON files hold an array of feedback objects or tweet exports.

The source is inferred from the file name unless --source is given:
  appstore/playstore/review -> app_review
  reddit/tweet/twitter      -> social_media
  ticket/support            -> support_ticket
  anything else             -> survey

With --twitter the last seven days of tweets from the handle are imported
instead (requires TWITTER_TOKEN).`,
		Args: func(cmd *cobra.Command, args []string) error {
			if twitter == "" {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.NoArgs(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			importer := ingest.NewImporter(a.stores.Feedback, logger.Component(a.log, "ingest"))
			if twitter != "" {
				if a.cfg.TwitterToken == "" {
					return fmt.Errorf("TWITTER_TOKEN is required for --twitter")
				}
				client := ingest.NewTwitterClient(a.cfg.TwitterToken, logger.Component(a.log, "twitter"))
				_, err = importer.ImportTweets(ctx, client, strings.TrimPrefix(twitter, "@"), opts)
			} else {
				_, err = importer.ImportFile(ctx, args[0], opts)
			}
			if err != nil {
				return err
			}

			if a.cfg.AutoAnnotate {
				_, err = a.services().Worker.ProcessPending(ctx)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.ProductID, "product", "", "Product id to attach to imported feedback")
	cmd.Flags().StringVar(&opts.Source, "source", "", "Feedback source (default inferred from file name)")
	cmd.Flags().StringVar(&twitter, "twitter", "", "Import recent tweets from this handle instead of a file")

	return cmd
}
