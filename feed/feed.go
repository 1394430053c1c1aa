package feed

import (
	"context"
	"fmt"
	"strings"

	"pulse/db"
	"pulse/models"
	"pulse/nlp"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200

	timeLayout = "2006-01-02T15:04:05Z07:00"
)

// FeedService handles operations related to feedback data
type FeedService struct {
	store db.FeedbackStore
}

// NewFeedService creates a new instance of FeedService
func NewFeedService(store db.FeedbackStore) *FeedService {
	return &FeedService{store: store}
}

// FeedResponse represents the response structure for feedback data
type FeedResponse struct {
	ID         uint                `json:"id"`
	CustomerID string              `json:"customer_id"`
	ProductID  string              `json:"product_id"`
	Text       string              `json:"feedback_text"`
	Rating     int                 `json:"rating"`
	Source     string              `json:"source"`
	Metadata   map[string]any      `json:"metadata"`
	CreatedAt  string              `json:"created_at"`
	UpdatedAt  string              `json:"updated_at"`
	Analysis   *AnnotationResponse `json:"analysis,omitempty"`
}

// AnnotationResponse represents the annotation data in the response
type AnnotationResponse struct {
	Sentiment       string   `json:"sentiment"`
	SentimentScore  float64  `json:"sentiment_score"`
	Topics          []string `json:"topics"`
	Keywords        []string `json:"keywords"`
	FeatureMentions []string `json:"feature_mentions"`
	UrgencyScore    int      `json:"urgency_score"`
	Summary         string   `json:"summary"`
	ProcessedAt     string   `json:"processed_at"`
}

type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

type Page struct {
	Data       []FeedResponse `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// NewFeedResponse flattens a stored record for the API.
func NewFeedResponse(f models.Feedback) FeedResponse {
	r := FeedResponse{
		ID:         f.ID,
		CustomerID: f.CustomerID,
		ProductID:  f.ProductID,
		Text:       f.Text,
		Rating:     f.Rating,
		Source:     f.Source,
		Metadata:   f.Metadata,
		CreatedAt:  f.CreatedAt.Format(timeLayout),
		UpdatedAt:  f.UpdatedAt.Format(timeLayout),
	}
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}

	// Include annotation data if available
	if a := f.Annotation; a != nil {
		r.Analysis = &AnnotationResponse{
			Sentiment:       a.Sentiment,
			SentimentScore:  a.SentimentScore,
			Topics:          orEmpty(a.Topics),
			Keywords:        orEmpty(a.Keywords),
			FeatureMentions: orEmpty(a.FeatureMentions),
			UrgencyScore:    a.UrgencyScore,
			Summary:         a.Summary,
			ProcessedAt:     a.ProcessedAt.Format(timeLayout),
		}
	}
	return r
}

func NewFeedResponses(fs []models.Feedback) []FeedResponse {
	out := make([]FeedResponse, len(fs))
	for i, f := range fs {
		out[i] = NewFeedResponse(f)
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type Filter struct {
	ProductID string
	Source    string
	Sentiment string
	Limit     int
	Offset    int
}

// List returns a page of feedback, newest first, with annotations attached.
func (s *FeedService) List(ctx context.Context, f Filter) (Page, error) {
	if f.Source != "" && !models.ValidSource(f.Source) {
		return Page{}, models.Invalid("source", "must be one of: %s", strings.Join(models.Sources, ", "))
	}
	if f.Sentiment != "" && !nlp.Sentiment(f.Sentiment).Valid() {
		return Page{}, models.Invalid("sentiment", "must be positive, negative or neutral")
	}
	if f.Offset < 0 {
		return Page{}, models.Invalid("offset", "must not be negative")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}

	rows, total, err := s.store.ListFeedback(ctx, db.FeedbackFilter{
		ProductID: f.ProductID,
		Source:    f.Source,
		Sentiment: f.Sentiment,
		Limit:     f.Limit,
		Offset:    f.Offset,
	})
	if err != nil {
		return Page{}, fmt.Errorf("failed to list feedback: %w", err)
	}

	return Page{
		Data: NewFeedResponses(rows),
		Pagination: Pagination{
			Total:   total,
			Limit:   f.Limit,
			Offset:  f.Offset,
			HasMore: int64(f.Offset+f.Limit) < total,
		},
	}, nil
}

func (s *FeedService) Get(ctx context.Context, id uint) (*FeedResponse, error) {
	f, err := s.store.GetFeedback(ctx, id)
	if err != nil {
		return nil, err
	}
	r := NewFeedResponse(*f)
	return &r, nil
}

// Input is a feedback submission.
type Input struct {
	CustomerID string         `json:"customer_id"`
	ProductID  string         `json:"product_id"`
	Text       string         `json:"feedback_text"`
	Rating     int            `json:"rating"`
	Source     string         `json:"source"`
	Metadata   map[string]any `json:"metadata"`
}

func (in Input) validate() error {
	var missing []string
	if strings.TrimSpace(in.CustomerID) == "" {
		missing = append(missing, "customer_id")
	}
	if strings.TrimSpace(in.ProductID) == "" {
		missing = append(missing, "product_id")
	}
	if strings.TrimSpace(in.Text) == "" {
		missing = append(missing, "feedback_text")
	}
	if in.Rating == 0 {
		missing = append(missing, "rating")
	}
	if in.Source == "" {
		missing = append(missing, "source")
	}
	if len(missing) > 0 {
		return models.Invalid("", "missing required fields: %s", strings.Join(missing, ", "))
	}

	if in.Rating < 1 || in.Rating > 5 {
		return models.Invalid("rating", "must be between 1 and 5")
	}
	if !models.ValidSource(in.Source) {
		return models.Invalid("source", "must be one of: %s", strings.Join(models.Sources, ", "))
	}
	return nil
}

// Submit validates and stores a new feedback record.
func (s *FeedService) Submit(ctx context.Context, in Input) (*FeedResponse, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	f := &models.Feedback{
		CustomerID: strings.TrimSpace(in.CustomerID),
		ProductID:  strings.TrimSpace(in.ProductID),
		Text:       in.Text,
		Rating:     in.Rating,
		Source:     in.Source,
		Metadata:   in.Metadata,
	}
	if f.Metadata == nil {
		f.Metadata = map[string]any{}
	}
	if err := s.store.CreateFeedback(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}

	r := NewFeedResponse(*f)
	return &r, nil
}
