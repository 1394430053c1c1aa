package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pulse/analytics"
	"pulse/db"
	"pulse/models"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[models.InsightStatus][]models.InsightStatus{
	models.InsightNew:      {models.InsightReviewed, models.InsightDismissed},
	models.InsightReviewed: {models.InsightActioned, models.InsightDismissed},
}

// CanTransition reports whether an insight may move from one status to
// another. Actioned and dismissed are terminal.
func CanTransition(from, to models.InsightStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type InsightResponse struct {
	ID          uint                 `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Type        models.InsightType   `json:"insight_type"`
	Priority    int                  `json:"priority"`
	Status      models.InsightStatus `json:"status"`
	Data        map[string]any       `json:"data"`
	CreatedAt   string               `json:"created_at"`
	UpdatedAt   string               `json:"updated_at"`
}

func NewInsightResponse(in models.Insight) InsightResponse {
	data := in.Data
	if data == nil {
		data = map[string]any{}
	}
	return InsightResponse{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Priority:    in.Priority,
		Status:      in.Status,
		Data:        data,
		CreatedAt:   in.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   in.UpdatedAt.Format(time.RFC3339),
	}
}

func NewInsightResponses(ins []models.Insight) []InsightResponse {
	out := make([]InsightResponse, len(ins))
	for i, in := range ins {
		out[i] = NewInsightResponse(in)
	}
	return out
}

// InsightsService generates, lists and moves insights through their lifecycle.
type InsightsService struct {
	feedback db.FeedbackStore
	store    db.InsightStore
	gen      *Generator
	log      zerolog.Logger
}

func NewInsightsService(feedback db.FeedbackStore, store db.InsightStore, gen *Generator, log zerolog.Logger) *InsightsService {
	return &InsightsService{feedback: feedback, store: store, gen: gen, log: log}
}

// Generate aggregates the window, asks for candidates and stores them as new.
// A failed generation stores nothing and returns an empty list.
func (s *InsightsService) Generate(ctx context.Context, w analytics.Window) ([]models.Insight, error) {
	report, feedback, err := analytics.Metrics(ctx, s.feedback, w)
	if err != nil {
		return nil, err
	}
	digest := analytics.NewDigest(report.Summary, feedback)

	candidates := s.gen.Generate(ctx, digest)
	if len(candidates) == 0 {
		return []models.Insight{}, nil
	}

	rows := make([]*models.Insight, len(candidates))
	for i, c := range candidates {
		rows[i] = &models.Insight{
			Title:       c.Title,
			Description: c.Description,
			Type:        c.Type,
			Priority:    c.Priority,
			Status:      models.InsightNew,
			Data:        digestData(digest, report.DateRange),
		}
	}
	if err := s.store.CreateInsights(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to store insights: %w", err)
	}

	s.log.Info().Int("count", len(rows)).Int("feedback", digest.Total).Msg("generated insights")

	out := make([]models.Insight, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out, nil
}

func digestData(d analytics.Digest, r analytics.DateRange) map[string]any {
	return map[string]any{
		"total": d.Total,
		"sentiment": map[string]any{
			"positive": d.Sentiment.Positive,
			"negative": d.Sentiment.Negative,
			"neutral":  d.Sentiment.Neutral,
		},
		"topTopics":   d.TopTopics,
		"topFeatures": d.TopFeatures,
		"urgentCount": d.UrgentCount,
		"dateRange":   map[string]any{"start": r.Start, "end": r.End, "days": r.Days},
	}
}

func (s *InsightsService) List(ctx context.Context, filter db.InsightFilter) ([]models.Insight, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.Invalid("status", "unknown status %q", filter.Status)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, models.Invalid("type", "unknown type %q", filter.Type)
	}
	out, err := s.store.ListInsights(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	return out, nil
}

// UpdateStatus moves an insight along its lifecycle.
func (s *InsightsService) UpdateStatus(ctx context.Context, id uint, to models.InsightStatus) (*models.Insight, error) {
	if !to.Valid() {
		return nil, models.Invalid("status", "unknown status %q", to)
	}

	current, err := s.store.GetInsight(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}

	// a concurrent update may have moved the insight since it was read
	err = s.store.UpdateInsightStatus(ctx, id, current.Status, to)
	if errors.Is(err, db.ErrStatusChanged) {
		return nil, fmt.Errorf("%w: insight %d is no longer %s", ErrInvalidTransition, id, current.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update insight %d: %w", id, err)
	}
	return s.store.GetInsight(ctx, id)
}
