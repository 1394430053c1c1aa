package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pulse",
		Short: "Customer feedback enrichment and analytics",
		Long: `pulse annotates customer feedback with sentiment, topics, features and
urgency, rolls the annotations up into dashboard metrics, clusters and
insights, and serves everything over a JSON API.

Configuration comes from the environment (see .env in development):
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME
  LLM_PROVIDER (openai|gemini), LLM_API_KEY, LLM_MODEL
  AUTO_ANNOTATE, LEXICON_PATH, LOG_LEVEL, TWITTER_TOKEN`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newEnrichCmd())
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newImportCmd())

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
