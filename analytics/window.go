package analytics

import (
	"context"
	"fmt"
	"time"

	"pulse/db"
	"pulse/models"
)

const DefaultDays = 30

// Window selects the feedback an aggregate is computed over.
type Window struct {
	Days      int
	ProductID string
	Now       time.Time
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

func (w Window) normalized() Window {
	if w.Days <= 0 {
		w.Days = DefaultDays
	}
	if w.Now.IsZero() {
		w.Now = time.Now()
	}
	w.Now = w.Now.UTC()
	return w
}

// Range returns the inclusive [start, end] instants of the window.
func (w Window) Range() (time.Time, time.Time) {
	w = w.normalized()
	return w.Now.AddDate(0, 0, -w.Days), w.Now
}

func (w Window) DateRange() DateRange {
	w = w.normalized()
	start, end := w.Range()
	return DateRange{Start: start.Format(dateLayout), End: end.Format(dateLayout), Days: w.Days}
}

// Filter expresses the window as a store query.
func (w Window) Filter() db.FeedbackFilter {
	start, end := w.Range()
	return db.FeedbackFilter{ProductID: w.ProductID, Since: start, Until: end}
}

// Report is a Summary together with the window it covers.
type Report struct {
	Summary
	DateRange DateRange `json:"date_range"`
}

// Metrics loads the window from the store and aggregates it.
func Metrics(ctx context.Context, store db.FeedbackStore, w Window) (Report, []models.Feedback, error) {
	feedback, _, err := store.ListFeedback(ctx, w.Filter())
	if err != nil {
		return Report{}, nil, fmt.Errorf("failed to load feedback: %w", err)
	}
	return Report{Summary: Compute(feedback), DateRange: w.DateRange()}, feedback, nil
}
