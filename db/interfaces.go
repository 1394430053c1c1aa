package db

import (
	"context"
	"errors"
	"time"

	"pulse/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrStatusChanged is returned by a compare-and-set status update when the
// stored status no longer matches the expected one.
var ErrStatusChanged = errors.New("status changed")

// FeedbackFilter narrows feedback queries. Zero values mean "no constraint";
// a zero Limit returns every match.
type FeedbackFilter struct {
	ProductID string
	Source    string
	Sentiment string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

type FeedbackStore interface {
	CreateFeedback(ctx context.Context, f *models.Feedback) error
	CreateFeedbackBatch(ctx context.Context, fs []*models.Feedback) error
	GetFeedback(ctx context.Context, id uint) (*models.Feedback, error)
	// ListFeedback returns matches newest first with annotations attached,
	// plus the total match count before pagination.
	ListFeedback(ctx context.Context, filter FeedbackFilter) ([]models.Feedback, int64, error)
	FeedbackByIDs(ctx context.Context, ids []uint) ([]models.Feedback, error)
	// PendingFeedback returns up to limit unannotated items with an id above
	// afterID, in id order.
	PendingFeedback(ctx context.Context, afterID uint, limit int) ([]models.Feedback, error)
}

type AnnotationStore interface {
	// SaveAnnotation upserts by feedback id and marks the feedback annotated.
	SaveAnnotation(ctx context.Context, a *models.Annotation) error
}

type InsightFilter struct {
	Status models.InsightStatus
	Type   models.InsightType
}

type InsightStore interface {
	CreateInsights(ctx context.Context, insights []*models.Insight) error
	// ListInsights sorts by priority desc, then newest first.
	ListInsights(ctx context.Context, filter InsightFilter) ([]models.Insight, error)
	GetInsight(ctx context.Context, id uint) (*models.Insight, error)
	// UpdateInsightStatus moves an insight from one status to another and
	// returns ErrStatusChanged when it is no longer in the from status.
	UpdateInsightStatus(ctx context.Context, id uint, from, to models.InsightStatus) error
}

type ClusterStore interface {
	// SaveCluster upserts by name and replaces the cluster's memberships.
	SaveCluster(ctx context.Context, c *models.Cluster, feedbackIDs []uint) error
	// ListClusters sorts by priority desc.
	ListClusters(ctx context.Context) ([]models.Cluster, error)
	ClusterMembers(ctx context.Context, clusterID uint, limit int) ([]models.Feedback, error)
}

type RequirementStore interface {
	CreateRequirement(ctx context.Context, r *models.Requirement) error
	// ListRequirements sorts by priority desc, then newest first.
	ListRequirements(ctx context.Context, status string) ([]models.Requirement, error)
	GetRequirement(ctx context.Context, id uint) (*models.Requirement, error)
	UpdateRequirement(ctx context.Context, r *models.Requirement) error
	DeleteRequirement(ctx context.Context, id uint) error
	LinkFeedback(ctx context.Context, link models.RequirementFeedback) error
	RequirementFeedback(ctx context.Context, id uint) ([]models.Feedback, error)
}

type ExperimentStore interface {
	CreateABTest(ctx context.Context, t *models.ABTest) error
	// ListABTests returns newest first.
	ListABTests(ctx context.Context, status string) ([]models.ABTest, error)
	GetABTest(ctx context.Context, id uint) (*models.ABTest, error)
	UpdateABTest(ctx context.Context, t *models.ABTest) error
	Assign(ctx context.Context, a models.ABTestAssignment) error
	VariantFeedback(ctx context.Context, testID uint, variant string) ([]models.Feedback, error)
}

// Neighbor is a feedback id with its vector distance to the query.
type Neighbor struct {
	FeedbackID uint
	Distance   float64
}

type EmbeddingStore interface {
	SaveEmbedding(ctx context.Context, feedbackID uint, vec []float32) error
	// NearestFeedback returns the k closest items to feedbackID, excluding itself.
	NearestFeedback(ctx context.Context, feedbackID uint, k int) ([]Neighbor, error)
}

// Stores bundles every repository the services depend on.
type Stores struct {
	Feedback     FeedbackStore
	Annotations  AnnotationStore
	Insights     InsightStore
	Clusters     ClusterStore
	Requirements RequirementStore
	Experiments  ExperimentStore
	Embeddings   EmbeddingStore
}

// Bundle exposes a single implementation through every interface.
func Bundle(s interface {
	FeedbackStore
	AnnotationStore
	InsightStore
	ClusterStore
	RequirementStore
	ExperimentStore
	EmbeddingStore
}) Stores {
	return Stores{
		Feedback:     s,
		Annotations:  s,
		Insights:     s,
		Clusters:     s,
		Requirements: s,
		Experiments:  s,
		Embeddings:   s,
	}
}

var (
	_ = Bundle((*Postgres)(nil))
	_ = Bundle((*Memory)(nil))
)
