package db

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"pulse/models"
)

func (p *Postgres) CreateABTest(ctx context.Context, t *models.ABTest) error {
	return p.db.WithContext(ctx).Create(t).Error
}

func (p *Postgres) ListABTests(ctx context.Context, status string) ([]models.ABTest, error) {
	query := p.db.WithContext(ctx).Model(&models.ABTest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var out []models.ABTest
	if err := query.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list ab tests: %w", err)
	}
	return out, nil
}

func (p *Postgres) GetABTest(ctx context.Context, id uint) (*models.ABTest, error) {
	var t models.ABTest
	if err := p.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (p *Postgres) UpdateABTest(ctx context.Context, t *models.ABTest) error {
	return p.db.WithContext(ctx).Save(t).Error
}

// Assign moves a feedback item into a variant, replacing any earlier assignment.
func (p *Postgres) Assign(ctx context.Context, a models.ABTestAssignment) error {
	if err := p.exists(ctx, &models.ABTest{}, a.TestID); err != nil {
		return err
	}
	if err := p.exists(ctx, &models.Feedback{}, a.FeedbackID); err != nil {
		return err
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "test_id"}, {Name: "feedback_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"variant"}),
	}).Create(&a).Error
}

func (p *Postgres) VariantFeedback(ctx context.Context, testID uint, variant string) ([]models.Feedback, error) {
	var out []models.Feedback
	err := p.db.WithContext(ctx).
		Preload("Annotation").
		Joins("JOIN ab_test_assignments ON ab_test_assignments.feedback_id = feedbacks.id").
		Where("ab_test_assignments.test_id = ? AND ab_test_assignments.variant = ?", testID, variant).
		Order("feedbacks.created_at DESC").
		Find(&out).Error
	return out, err
}
