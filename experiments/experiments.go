package experiments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pulse/analytics"
	"pulse/db"
	"pulse/feed"
	"pulse/models"
)

const (
	DefaultVariantA = "Control"
	DefaultVariantB = "Treatment"
)

var statuses = []string{models.ABTestDraft, models.ABTestRunning, models.ABTestCompleted, models.ABTestPaused}

func validStatus(s string) bool {
	for _, st := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

type TestResponse struct {
	ID           uint    `json:"id"`
	TestName     string  `json:"test_name"`
	Description  string  `json:"description"`
	Hypothesis   string  `json:"hypothesis"`
	VariantAName string  `json:"variant_a_name"`
	VariantBName string  `json:"variant_b_name"`
	Status       string  `json:"status"`
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	CreatedAt    string  `json:"created_at"`
}

// VariantResult is one arm's metrics plus a few of its feedback items.
type VariantResult struct {
	analytics.VariantMetrics
	SampleFeedback []feed.FeedResponse `json:"sample_feedback"`
}

type Results struct {
	VariantA VariantResult `json:"variant_a"`
	VariantB VariantResult `json:"variant_b"`
}

type TestWithResults struct {
	TestResponse
	Results Results `json:"results"`
}

func newResponse(t models.ABTest) TestResponse {
	return TestResponse{
		ID:           t.ID,
		TestName:     t.TestName,
		Description:  t.Description,
		Hypothesis:   t.Hypothesis,
		VariantAName: t.VariantAName,
		VariantBName: t.VariantBName,
		Status:       t.Status,
		StartDate:    formatTime(t.StartDate),
		EndDate:      formatTime(t.EndDate),
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

type CreateInput struct {
	TestName     string `json:"test_name"`
	Description  string `json:"description"`
	Hypothesis   string `json:"hypothesis"`
	VariantAName string `json:"variant_a_name"`
	VariantBName string `json:"variant_b_name"`
}

type AssignInput struct {
	FeedbackID uint   `json:"feedback_id"`
	Variant    string `json:"variant"`
}

// ExperimentService tracks A/B tests. Results are descriptive only.
type ExperimentService struct {
	store db.ExperimentStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewExperimentService(store db.ExperimentStore, log zerolog.Logger) *ExperimentService {
	return &ExperimentService{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *ExperimentService) Create(ctx context.Context, in CreateInput) (*TestResponse, error) {
	name := strings.TrimSpace(in.TestName)
	hypothesis := strings.TrimSpace(in.Hypothesis)
	if name == "" || hypothesis == "" {
		return nil, models.Invalid("", "missing required fields: test_name, hypothesis")
	}

	t := &models.ABTest{
		TestName:     name,
		Description:  strings.TrimSpace(in.Description),
		Hypothesis:   hypothesis,
		VariantAName: orDefault(in.VariantAName, DefaultVariantA),
		VariantBName: orDefault(in.VariantBName, DefaultVariantB),
		Status:       models.ABTestDraft,
	}
	if err := s.store.CreateABTest(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create test: %w", err)
	}
	s.log.Info().Uint("test_id", t.ID).Str("test_name", t.TestName).Msg("ab test created")

	out := newResponse(*t)
	return &out, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func (s *ExperimentService) List(ctx context.Context, status string) ([]TestResponse, error) {
	if status != "" && !validStatus(status) {
		return nil, models.Invalid("status", "must be one of: %s", strings.Join(statuses, ", "))
	}
	rows, err := s.store.ListABTests(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	out := make([]TestResponse, len(rows))
	for i, t := range rows {
		out[i] = newResponse(t)
	}
	return out, nil
}

// Get returns the test with per-variant metrics over its assigned feedback.
func (s *ExperimentService) Get(ctx context.Context, id uint) (*TestWithResults, error) {
	t, err := s.store.GetABTest(ctx, id)
	if err != nil {
		return nil, err
	}
	a, err := s.store.VariantFeedback(ctx, id, models.VariantA)
	if err != nil {
		return nil, fmt.Errorf("failed to load variant A: %w", err)
	}
	b, err := s.store.VariantFeedback(ctx, id, models.VariantB)
	if err != nil {
		return nil, fmt.Errorf("failed to load variant B: %w", err)
	}

	cmp := analytics.CompareVariants(t.VariantAName, a, t.VariantBName, b)
	return &TestWithResults{
		TestResponse: newResponse(*t),
		Results: Results{
			VariantA: VariantResult{VariantMetrics: cmp.VariantA, SampleFeedback: feed.NewFeedResponses(cmp.VariantA.Sample)},
			VariantB: VariantResult{VariantMetrics: cmp.VariantB, SampleFeedback: feed.NewFeedResponses(cmp.VariantB.Sample)},
		},
	}, nil
}

// UpdateStatus sets the status. The first move to running stamps the start
// date and the first move to completed stamps the end date.
func (s *ExperimentService) UpdateStatus(ctx context.Context, id uint, status string) (*TestResponse, error) {
	if !validStatus(status) {
		return nil, models.Invalid("status", "must be one of: %s", strings.Join(statuses, ", "))
	}
	t, err := s.store.GetABTest(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch status {
	case models.ABTestRunning:
		if t.StartDate == nil {
			t.StartDate = &now
		}
	case models.ABTestCompleted:
		if t.StartDate == nil {
			t.StartDate = &now
		}
		if t.EndDate == nil {
			t.EndDate = &now
		}
	}
	t.Status = status

	if err := s.store.UpdateABTest(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update test %d: %w", id, err)
	}
	out := newResponse(*t)
	return &out, nil
}

// Assign puts a feedback item into one arm of the test, replacing any
// earlier assignment.
func (s *ExperimentService) Assign(ctx context.Context, id uint, in AssignInput) error {
	if in.FeedbackID == 0 {
		return models.Invalid("feedback_id", "is required")
	}
	variant := strings.ToUpper(strings.TrimSpace(in.Variant))
	if variant != models.VariantA && variant != models.VariantB {
		return models.Invalid("variant", "must be A or B")
	}
	return s.store.Assign(ctx, models.ABTestAssignment{TestID: id, FeedbackID: in.FeedbackID, Variant: variant})
}
