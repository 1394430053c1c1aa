package db

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"pulse/models"
)

func (p *Postgres) CreateRequirement(ctx context.Context, r *models.Requirement) error {
	return p.db.WithContext(ctx).Create(r).Error
}

func (p *Postgres) ListRequirements(ctx context.Context, status string) ([]models.Requirement, error) {
	query := p.db.WithContext(ctx).Model(&models.Requirement{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var out []models.Requirement
	if err := query.Order("priority DESC").Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list requirements: %w", err)
	}
	return out, nil
}

func (p *Postgres) GetRequirement(ctx context.Context, id uint) (*models.Requirement, error) {
	var r models.Requirement
	if err := p.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (p *Postgres) UpdateRequirement(ctx context.Context, r *models.Requirement) error {
	return p.db.WithContext(ctx).Save(r).Error
}

func (p *Postgres) DeleteRequirement(ctx context.Context, id uint) error {
	res := p.db.WithContext(ctx).Delete(&models.Requirement{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete requirement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return p.db.WithContext(ctx).Where("requirement_id = ?", id).Delete(&models.RequirementFeedback{}).Error
}

func (p *Postgres) LinkFeedback(ctx context.Context, link models.RequirementFeedback) error {
	if err := p.exists(ctx, &models.Requirement{}, link.RequirementID); err != nil {
		return err
	}
	if err := p.exists(ctx, &models.Feedback{}, link.FeedbackID); err != nil {
		return err
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "requirement_id"}, {Name: "feedback_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"relevance"}),
	}).Create(&link).Error
}

func (p *Postgres) RequirementFeedback(ctx context.Context, id uint) ([]models.Feedback, error) {
	var out []models.Feedback
	err := p.db.WithContext(ctx).
		Preload("Annotation").
		Joins("JOIN requirement_feedbacks ON requirement_feedbacks.feedback_id = feedbacks.id").
		Where("requirement_feedbacks.requirement_id = ?", id).
		Order("requirement_feedbacks.relevance DESC").
		Find(&out).Error
	return out, err
}
