package requirements

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pulse/db"
	"pulse/feed"
	"pulse/models"
)

const (
	DefaultPriority = 5
	dateLayout      = "2006-01-02"
)

var statuses = []string{
	models.RequirementDraft,
	models.RequirementActive,
	models.RequirementCompleted,
	models.RequirementArchived,
}

func validStatus(s string) bool {
	for _, st := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

type RequirementResponse struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    int     `json:"priority"`
	TargetDate  *string `json:"target_date"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`

	Feedback []feed.FeedResponse `json:"feedback,omitempty"`
}

func newResponse(r models.Requirement) RequirementResponse {
	out := RequirementResponse{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339),
	}
	if r.TargetDate != nil {
		d := r.TargetDate.Format(dateLayout)
		out.TargetDate = &d
	}
	return out
}

type CreateInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    int     `json:"priority"`
	TargetDate  *string `json:"target_date"`
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *int    `json:"priority"`
	TargetDate  *string `json:"target_date"`
}

type LinkInput struct {
	FeedbackID uint    `json:"feedback_id"`
	Relevance  float64 `json:"relevance"`
}

type RequirementService struct {
	store db.RequirementStore
	log   zerolog.Logger
}

func NewRequirementService(store db.RequirementStore, log zerolog.Logger) *RequirementService {
	return &RequirementService{store: store, log: log}
}

func (s *RequirementService) Create(ctx context.Context, in CreateInput) (*RequirementResponse, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return nil, models.Invalid("", "missing required fields: title, description")
	}

	r := &models.Requirement{
		Title:       title,
		Description: description,
		Status:      models.RequirementDraft,
		Priority:    in.Priority,
	}
	if r.Priority == 0 {
		r.Priority = DefaultPriority
	}
	if err := checkPriority(r.Priority); err != nil {
		return nil, err
	}
	if in.TargetDate != nil {
		d, err := parseDate(*in.TargetDate)
		if err != nil {
			return nil, err
		}
		r.TargetDate = d
	}

	if err := s.store.CreateRequirement(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create requirement: %w", err)
	}
	s.log.Info().Uint("requirement_id", r.ID).Str("title", r.Title).Msg("requirement created")

	out := newResponse(*r)
	return &out, nil
}

// List sorts by priority, highest first, then newest first.
func (s *RequirementService) List(ctx context.Context, status string) ([]RequirementResponse, error) {
	if status != "" && !validStatus(status) {
		return nil, models.Invalid("status", "must be one of: %s", strings.Join(statuses, ", "))
	}
	rows, err := s.store.ListRequirements(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list requirements: %w", err)
	}
	out := make([]RequirementResponse, len(rows))
	for i, r := range rows {
		out[i] = newResponse(r)
	}
	return out, nil
}

// Get returns a requirement with the feedback linked to it, most relevant first.
func (s *RequirementService) Get(ctx context.Context, id uint) (*RequirementResponse, error) {
	r, err := s.store.GetRequirement(ctx, id)
	if err != nil {
		return nil, err
	}
	linked, err := s.store.RequirementFeedback(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load linked feedback: %w", err)
	}
	out := newResponse(*r)
	out.Feedback = feed.NewFeedResponses(linked)
	return &out, nil
}

func (s *RequirementService) Update(ctx context.Context, id uint, in UpdateInput) (*RequirementResponse, error) {
	r, err := s.store.GetRequirement(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, models.Invalid("title", "must not be empty")
		}
		r.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			return nil, models.Invalid("description", "must not be empty")
		}
		r.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		if !validStatus(*in.Status) {
			return nil, models.Invalid("status", "must be one of: %s", strings.Join(statuses, ", "))
		}
		r.Status = *in.Status
	}
	if in.Priority != nil {
		if err := checkPriority(*in.Priority); err != nil {
			return nil, err
		}
		r.Priority = *in.Priority
	}
	if in.TargetDate != nil {
		// An empty string clears the date.
		if *in.TargetDate == "" {
			r.TargetDate = nil
		} else {
			d, err := parseDate(*in.TargetDate)
			if err != nil {
				return nil, err
			}
			r.TargetDate = d
		}
	}

	if err := s.store.UpdateRequirement(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update requirement %d: %w", id, err)
	}
	out := newResponse(*r)
	return &out, nil
}

func (s *RequirementService) Delete(ctx context.Context, id uint) error {
	return s.store.DeleteRequirement(ctx, id)
}

// Link attaches motivating feedback. Relevance defaults to 1.
func (s *RequirementService) Link(ctx context.Context, id uint, in LinkInput) error {
	if in.FeedbackID == 0 {
		return models.Invalid("feedback_id", "is required")
	}
	if in.Relevance == 0 {
		in.Relevance = 1
	}
	if in.Relevance < 0 || in.Relevance > 1 {
		return models.Invalid("relevance", "must be between 0 and 1")
	}
	return s.store.LinkFeedback(ctx, models.RequirementFeedback{
		RequirementID: id,
		FeedbackID:    in.FeedbackID,
		Relevance:     in.Relevance,
	})
}

func checkPriority(p int) error {
	if p < 1 || p > 10 {
		return models.Invalid("priority", "must be between 1 and 10")
	}
	return nil
}

func parseDate(s string) (*time.Time, error) {
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, models.Invalid("target_date", "expected YYYY-MM-DD")
}
