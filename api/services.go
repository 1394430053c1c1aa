package api

import (
	"github.com/rs/zerolog"

	"pulse/clusters"
	"pulse/db"
	"pulse/enrich"
	"pulse/experiments"
	"pulse/feed"
	"pulse/insights"
	"pulse/lexicon"
	"pulse/llm"
	"pulse/logger"
	"pulse/nlp"
	"pulse/requirements"
	"pulse/similarity"
)

// Deps is everything needed to assemble the services behind the router.
type Deps struct {
	Stores       db.Stores
	Generator    llm.Generator
	Lexicon      *lexicon.Lexicon
	AutoAnnotate bool
	Concurrency  int
}

// Services holds the domain services the handlers call into.
type Services struct {
	Stores       db.Stores
	Annotator    *nlp.ModelAnnotator
	Clusterer    *nlp.Clusterer
	Insight      *insights.Generator
	Feed         *feed.FeedService
	Clusters     *clusters.ClusterService
	Insights     *insights.InsightsService
	Requirements *requirements.RequirementService
	Experiments  *experiments.ExperimentService
	Similarity   *similarity.Index
	Worker       *enrich.Worker
	AutoAnnotate bool
	Concurrency  int
}

func NewServices(d Deps, log zerolog.Logger) *Services {
	gen := d.Generator
	if gen == nil {
		gen = llm.Disabled()
	}

	rules := nlp.NewRuleAnnotator(d.Lexicon)
	annotator := nlp.NewModelAnnotator(gen, rules, nlp.WithLogger(logger.Component(log, "annotator")))
	clusterer := nlp.NewClusterer(gen, logger.Component(log, "clusterer"))
	insightGen := insights.NewGenerator(gen, logger.Component(log, "insights"))

	var embedder llm.Embedder
	if e, ok := llm.EmbedderOf(gen); ok {
		embedder = e
	}
	index := similarity.NewIndex(embedder, d.Stores.Embeddings, d.Stores.Feedback, logger.Component(log, "similarity"))

	opts := []enrich.Option{enrich.WithConcurrency(d.Concurrency)}
	if index.Available() {
		opts = append(opts, enrich.WithIndex(index))
	}
	worker := enrich.NewWorker(d.Stores.Feedback, d.Stores.Annotations, annotator, logger.Component(log, "enrich"), opts...)

	return &Services{
		Stores:       d.Stores,
		Annotator:    annotator,
		Clusterer:    clusterer,
		Insight:      insightGen,
		Feed:         feed.NewFeedService(d.Stores.Feedback),
		Clusters:     clusters.NewClusterService(d.Stores.Feedback, d.Stores.Clusters, clusterer, logger.Component(log, "clusters")),
		Insights:     insights.NewInsightsService(d.Stores.Feedback, d.Stores.Insights, insightGen, logger.Component(log, "insights")),
		Requirements: requirements.NewRequirementService(d.Stores.Requirements, logger.Component(log, "requirements")),
		Experiments:  experiments.NewExperimentService(d.Stores.Experiments, logger.Component(log, "experiments")),
		Similarity:   index,
		Worker:       worker,
		AutoAnnotate: d.AutoAnnotate,
		Concurrency:  d.Concurrency,
	}
}
