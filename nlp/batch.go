package nlp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Input limits for the annotation endpoints.
const (
	MinTextLength   = 10
	MaxBatchSize    = 50
	MaxClusterItems = 100

	defaultBatchConcurrency = 5
)

// Annotator turns one feedback text into an Analysis.
type Annotator interface {
	Annotate(ctx context.Context, text string) (Analysis, error)
}

// Item is one feedback text submitted for batch annotation or clustering.
// ID is the caller's feedback id and is echoed back in results.
type Item struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// ItemResult is the outcome for a single Item. Analysis is set only when
// Success is true; Error carries the failure message otherwise.
type ItemResult struct {
	ID       uint      `json:"id"`
	Success  bool      `json:"success"`
	Analysis *Analysis `json:"analysis,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// BatchSummary counts the results of one run.
type BatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BatchReport is everything a Run produced, tagged with a run id for the logs.
type BatchReport struct {
	RunID   string       `json:"run_id"`
	Results []ItemResult `json:"results"`
	Summary BatchSummary `json:"summary"`
}

// Batch fans annotation out over a bounded number of goroutines. Each item
// writes only its own result slot, so a failing item never touches another.
type Batch struct {
	annotator Annotator
	limit     int
	log       zerolog.Logger
}

// NewBatch returns a Batch that runs at most limit annotations at once.
// A limit below one uses the default of five.
func NewBatch(annotator Annotator, limit int, log zerolog.Logger) *Batch {
	if limit < 1 {
		limit = defaultBatchConcurrency
	}
	return &Batch{annotator: annotator, limit: limit, log: log}
}

// Run annotates every item. Results keep input order; the batch itself never fails.
func (b *Batch) Run(ctx context.Context, items []Item) BatchReport {
	report := BatchReport{
		RunID:   uuid.NewString(),
		Results: make([]ItemResult, len(items)),
	}
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(b.limit)
	for i, item := range items {
		g.Go(func() error {
			report.Results[i] = b.one(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	report.Summary.Total = len(items)
	for _, r := range report.Results {
		if r.Success {
			report.Summary.Successful++
		} else {
			report.Summary.Failed++
		}
	}

	b.log.Info().
		Str("run_id", report.RunID).
		Int("total", report.Summary.Total).
		Int("successful", report.Summary.Successful).
		Int("failed", report.Summary.Failed).
		Dur("took", time.Since(start)).
		Msg("batch annotation finished")
	return report
}

func (b *Batch) one(ctx context.Context, item Item) (res ItemResult) {
	res.ID = item.ID
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Uint("feedback_id", item.ID).Msg("annotation panicked")
			res = ItemResult{ID: item.ID, Error: fmt.Sprintf("annotation panicked: %v", r)}
		}
	}()

	a, err := b.annotator.Annotate(ctx, item.Text)
	if err != nil {
		b.log.Warn().Err(err).Uint("feedback_id", item.ID).Msg("annotation failed")
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Analysis = &a
	return res
}
