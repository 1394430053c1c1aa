package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pulse/db"
	"pulse/models"
	"pulse/nlp"
)

// BatchSize is how many pending feedback items are annotated per pass.
const BatchSize = nlp.MaxBatchSize

// Indexer stores an embedding for annotated feedback.
type Indexer interface {
	UpsertBatch(ctx context.Context, fs []models.Feedback) error
}

type Stats struct {
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// Worker annotates stored feedback that has no annotation yet.
type Worker struct {
	feedback    db.FeedbackStore
	annotations db.AnnotationStore
	annotator   nlp.Annotator
	batch       *nlp.Batch
	index       Indexer
	log         zerolog.Logger
	now         func() time.Time
}

type Option func(*Worker)

// WithIndex embeds every annotated item after it is saved.
func WithIndex(index Indexer) Option {
	return func(w *Worker) { w.index = index }
}

func WithConcurrency(n int) Option {
	return func(w *Worker) { w.batch = nlp.NewBatch(w.annotator, n, w.log) }
}

func NewWorker(feedback db.FeedbackStore, annotations db.AnnotationStore, annotator nlp.Annotator, log zerolog.Logger, opts ...Option) *Worker {
	w := &Worker{
		feedback:    feedback,
		annotations: annotations,
		annotator:   annotator,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
	w.batch = nlp.NewBatch(annotator, 0, log)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ProcessPending makes one sweep over unannotated feedback in id order.
// Items that fail stay pending and are retried on the next sweep.
func (w *Worker) ProcessPending(ctx context.Context) (Stats, error) {
	var (
		stats  Stats
		cursor uint
	)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pending, err := w.feedback.PendingFeedback(ctx, cursor, BatchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to fetch pending feedback: %w", err)
		}
		if len(pending) == 0 {
			break
		}
		cursor = pending[len(pending)-1].ID

		report, err := w.process(ctx, pending)
		if err != nil {
			return stats, err
		}
		if stats.RunID == "" {
			stats.RunID = report.RunID
		}
		stats.Processed += report.Summary.Successful
		stats.Failed += report.Summary.Failed

		w.log.Info().
			Int("batch", len(pending)).
			Int("processed", stats.Processed).
			Int("failed", stats.Failed).
			Msg("annotated pending feedback")
	}
	return stats, nil
}

// ProcessOne annotates a single stored feedback item.
func (w *Worker) ProcessOne(ctx context.Context, id uint) (*models.Annotation, error) {
	f, err := w.feedback.GetFeedback(ctx, id)
	if err != nil {
		return nil, err
	}

	analysis, err := w.annotator.Annotate(ctx, f.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to annotate feedback %d: %w", id, err)
	}

	a := models.NewAnnotation(f.ID, analysis, w.now())
	if err := w.annotations.SaveAnnotation(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save annotation for feedback %d: %w", id, err)
	}
	w.embed(ctx, []models.Feedback{*f})
	return a, nil
}

func (w *Worker) process(ctx context.Context, pending []models.Feedback) (nlp.BatchReport, error) {
	items := make([]nlp.Item, len(pending))
	for i, f := range pending {
		items[i] = nlp.Item{ID: f.ID, Text: f.Text}
	}

	report := w.batch.Run(ctx, items)

	var saved []models.Feedback
	for i, r := range report.Results {
		if !r.Success {
			w.log.Warn().Uint("feedback_id", r.ID).Str("error", r.Error).Msg("annotation failed, leaving pending")
			continue
		}
		a := models.NewAnnotation(r.ID, *r.Analysis, w.now())
		if err := w.annotations.SaveAnnotation(ctx, a); err != nil {
			return report, fmt.Errorf("failed to save annotation for feedback %d: %w", r.ID, err)
		}
		saved = append(saved, pending[i])
	}
	w.embed(ctx, saved)
	return report, nil
}

// embed is best effort; similarity search embeds missing items on demand.
func (w *Worker) embed(ctx context.Context, fs []models.Feedback) {
	if w.index == nil || len(fs) == 0 {
		return
	}
	if err := w.index.UpsertBatch(ctx, fs); err != nil {
		w.log.Warn().Err(err).Int("count", len(fs)).Msg("failed to store embeddings")
	}
}
