package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"pulse/nlp"
)

// Feedback sources accepted at the API boundary
const (
	SourceSurvey        = "survey"
	SourceSupportTicket = "support_ticket"
	SourceAppReview     = "app_review"
	SourceSocialMedia   = "social_media"
)

var Sources = []string{SourceSurvey, SourceSupportTicket, SourceAppReview, SourceSocialMedia}

func ValidSource(s string) bool {
	for _, src := range Sources {
		if s == src {
			return true
		}
	}
	return false
}

// Feedback represents one piece of raw customer feedback
type Feedback struct {
	gorm.Model
	CustomerID string         `gorm:"index"`
	ProductID  string         `gorm:"index"`
	Text       string         `gorm:"type:text"`
	Rating     int            // 1-5
	Source     string         `gorm:"index"`
	Metadata   map[string]any `gorm:"type:jsonb;serializer:json"`

	// Annotation related fields
	HasAnnotation bool        `gorm:"index;default:false"` // Flag to track if annotation is done
	Annotation    *Annotation `gorm:"foreignKey:FeedbackID"`
}

// Annotation stores the structured NLP output for one feedback item
type Annotation struct {
	ID              uint           `gorm:"primarykey"`
	FeedbackID      uint           `gorm:"uniqueIndex"`
	Sentiment       string         `gorm:"index"` // positive, negative, neutral
	SentimentScore  float64        // -1 to 1
	Topics          pq.StringArray `gorm:"type:text[]"`
	Keywords        pq.StringArray `gorm:"type:text[]"`
	FeatureMentions pq.StringArray `gorm:"type:text[]"`
	UrgencyScore    int            // 1-10
	Summary         string         `gorm:"type:text"`
	ProcessedAt     time.Time
}

// NewAnnotation converts an analysis into its stored form.
func NewAnnotation(feedbackID uint, a nlp.Analysis, processedAt time.Time) *Annotation {
	return &Annotation{
		FeedbackID:      feedbackID,
		Sentiment:       string(a.Sentiment),
		SentimentScore:  a.SentimentScore,
		Topics:          pq.StringArray(a.Topics),
		Keywords:        pq.StringArray(a.Keywords),
		FeatureMentions: pq.StringArray(a.FeatureMentions),
		UrgencyScore:    a.UrgencyScore,
		Summary:         a.Summary,
		ProcessedAt:     processedAt,
	}
}

// Cluster is a named theme grouping. PriorityScore is supplied externally
// and only drives display order.
type Cluster struct {
	gorm.Model
	Name          string `gorm:"uniqueIndex"`
	Description   string `gorm:"type:text"`
	FeedbackCount int
	AvgSentiment  float64
	PriorityScore int `gorm:"index"`
}

// ClusterMembership links feedback to clusters. Membership is not exclusive.
type ClusterMembership struct {
	ClusterID  uint `gorm:"primaryKey"`
	FeedbackID uint `gorm:"primaryKey;index"`
	Similarity float64
}

type InsightType string

const (
	InsightAlert          InsightType = "alert"
	InsightTrend          InsightType = "trend"
	InsightRecommendation InsightType = "recommendation"
	InsightAnomaly        InsightType = "anomaly"
)

func (t InsightType) Valid() bool {
	switch t {
	case InsightAlert, InsightTrend, InsightRecommendation, InsightAnomaly:
		return true
	}
	return false
}

type InsightStatus string

const (
	InsightNew       InsightStatus = "new"
	InsightReviewed  InsightStatus = "reviewed"
	InsightActioned  InsightStatus = "actioned"
	InsightDismissed InsightStatus = "dismissed"
)

func (s InsightStatus) Valid() bool {
	switch s {
	case InsightNew, InsightReviewed, InsightActioned, InsightDismissed:
		return true
	}
	return false
}

// Insight is a generated, prioritized recommendation for the product team
type Insight struct {
	gorm.Model
	Title       string
	Description string         `gorm:"type:text"`
	Type        InsightType    `gorm:"index"`
	Priority    int            `gorm:"index"` // 1-10
	Status      InsightStatus  `gorm:"index;default:new"`
	Data        map[string]any `gorm:"type:jsonb;serializer:json"` // summary the insight was generated from
}

const (
	RequirementDraft     = "draft"
	RequirementActive    = "active"
	RequirementCompleted = "completed"
	RequirementArchived  = "archived"
)

// Requirement is a tracked product requirement
type Requirement struct {
	gorm.Model
	Title       string
	Description string `gorm:"type:text"`
	Status      string `gorm:"index;default:draft"`
	Priority    int    `gorm:"default:5"`
	TargetDate  *time.Time
}

// RequirementFeedback links a requirement to the feedback that motivates it
type RequirementFeedback struct {
	RequirementID uint `gorm:"primaryKey"`
	FeedbackID    uint `gorm:"primaryKey"`
	Relevance     float64
}

const (
	ABTestDraft     = "draft"
	ABTestRunning   = "running"
	ABTestCompleted = "completed"
	ABTestPaused    = "paused"
)

const (
	VariantA = "A"
	VariantB = "B"
)

// ABTest tracks a product experiment and its two variants
type ABTest struct {
	gorm.Model
	TestName     string
	Description  string `gorm:"type:text"`
	Hypothesis   string `gorm:"type:text"`
	VariantAName string `gorm:"default:Control"`
	VariantBName string `gorm:"default:Treatment"`
	Status       string `gorm:"index;default:draft"`
	StartDate    *time.Time
	EndDate      *time.Time
}

// ABTestAssignment records which variant a feedback item belongs to
type ABTestAssignment struct {
	TestID     uint   `gorm:"primaryKey"`
	FeedbackID uint   `gorm:"primaryKey"`
	Variant    string `gorm:"index"` // A or B
}
