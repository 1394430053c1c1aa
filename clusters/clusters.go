package clusters

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"pulse/db"
	"pulse/feed"
	"pulse/models"
	"pulse/nlp"
)

const (
	DefaultPriority = 5
	sampleSize      = 5
)

// ClusterResponse is a stored cluster as served to the dashboard.
type ClusterResponse struct {
	ID             uint                `json:"id"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	FeedbackCount  int                 `json:"feedback_count"`
	AvgSentiment   float64             `json:"avg_sentiment"`
	PriorityScore  int                 `json:"priority_score"`
	CreatedAt      string              `json:"created_at"`
	SampleFeedback []feed.FeedResponse `json:"sample_feedback,omitempty"`
}

// RunInput selects what to cluster. An empty FeedbackIDs clusters the most
// recent feedback.
type RunInput struct {
	FeedbackIDs []uint `json:"feedback_ids"`
	Priority    int    `json:"priority"`
}

// ClusterService runs model clustering over stored feedback and serves the
// stored clusters back to the dashboard.
type ClusterService struct {
	feedback  db.FeedbackStore
	store     db.ClusterStore
	clusterer *nlp.Clusterer
	log       zerolog.Logger
}

// NewClusterService wires the service to its stores and clusterer.
func NewClusterService(feedback db.FeedbackStore, store db.ClusterStore, clusterer *nlp.Clusterer, log zerolog.Logger) *ClusterService {
	return &ClusterService{feedback: feedback, store: store, clusterer: clusterer, log: log}
}

// Run clusters stored feedback and persists every resulting group. The
// priority is taken as given; nothing here computes one.
func (s *ClusterService) Run(ctx context.Context, in RunInput) ([]ClusterResponse, error) {
	if len(in.FeedbackIDs) > nlp.MaxClusterItems {
		return nil, models.Invalid("feedback_ids", "at most %d items can be clustered at once", nlp.MaxClusterItems)
	}
	if in.Priority == 0 {
		in.Priority = DefaultPriority
	}
	if in.Priority < 1 || in.Priority > 10 {
		return nil, models.Invalid("priority", "must be between 1 and 10")
	}

	rows, err := s.load(ctx, in.FeedbackIDs)
	if err != nil {
		return nil, err
	}

	items := make([]nlp.Item, 0, len(rows))
	byID := make(map[uint]models.Feedback, len(rows))
	for _, f := range rows {
		items = append(items, nlp.Item{ID: f.ID, Text: f.Text})
		byID[f.ID] = f
	}

	groups := s.clusterer.Groups(ctx, items)
	out := make([]ClusterResponse, 0, len(groups))
	for _, g := range groups {
		c := &models.Cluster{
			Name:          g.Name,
			Description:   g.Description,
			FeedbackCount: len(g.FeedbackIDs),
			AvgSentiment:  avgSentiment(g.FeedbackIDs, byID),
			PriorityScore: in.Priority,
		}
		if err := s.store.SaveCluster(ctx, c, g.FeedbackIDs); err != nil {
			return nil, fmt.Errorf("failed to save cluster %q: %w", g.Name, err)
		}
		out = append(out, newResponse(*c))
	}

	s.log.Info().Int("items", len(items)).Int("clusters", len(out)).Msg("clustered feedback")
	return out, nil
}

func (s *ClusterService) load(ctx context.Context, ids []uint) ([]models.Feedback, error) {
	if len(ids) > 0 {
		rows, err := s.feedback.FeedbackByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load feedback: %w", err)
		}
		return rows, nil
	}
	rows, _, err := s.feedback.ListFeedback(ctx, db.FeedbackFilter{Limit: nlp.MaxClusterItems})
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}
	return rows, nil
}

// avgSentiment averages the annotated members only.
func avgSentiment(ids []uint, byID map[uint]models.Feedback) float64 {
	var sum float64
	n := 0
	for _, id := range ids {
		if f, ok := byID[id]; ok && f.Annotation != nil {
			sum += f.Annotation.SentimentScore
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*100) / 100
}

// List returns clusters by priority, highest first. With details each
// cluster carries up to five of its newest members.
func (s *ClusterService) List(ctx context.Context, includeDetails bool) ([]ClusterResponse, error) {
	rows, err := s.store.ListClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}

	out := make([]ClusterResponse, len(rows))
	for i, c := range rows {
		out[i] = newResponse(c)
		if !includeDetails {
			continue
		}
		members, err := s.store.ClusterMembers(ctx, c.ID, sampleSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load members of cluster %d: %w", c.ID, err)
		}
		out[i].SampleFeedback = feed.NewFeedResponses(members)
	}
	return out, nil
}

func newResponse(c models.Cluster) ClusterResponse {
	return ClusterResponse{
		ID:            c.ID,
		Name:          c.Name,
		Description:   c.Description,
		FeedbackCount: c.FeedbackCount,
		AvgSentiment:  c.AvgSentiment,
		PriorityScore: c.PriorityScore,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	}
}
