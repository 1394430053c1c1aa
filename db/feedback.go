package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pulse/models"
)

// CreateFeedback stores a single feedback entry
func (p *Postgres) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	return p.db.WithContext(ctx).Create(f).Error
}

// CreateFeedbackBatch stores multiple feedback entries in a batch
func (p *Postgres) CreateFeedbackBatch(ctx context.Context, fs []*models.Feedback) error {
	if len(fs) == 0 {
		return nil
	}
	return p.db.WithContext(ctx).CreateInBatches(fs, 100).Error
}

func (p *Postgres) GetFeedback(ctx context.Context, id uint) (*models.Feedback, error) {
	var f models.Feedback
	if err := p.db.WithContext(ctx).Preload("Annotation").First(&f, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (p *Postgres) ListFeedback(ctx context.Context, filter FeedbackFilter) ([]models.Feedback, int64, error) {
	query := p.db.WithContext(ctx).Model(&models.Feedback{})
	if filter.ProductID != "" {
		query = query.Where("feedbacks.product_id = ?", filter.ProductID)
	}
	if filter.Source != "" {
		query = query.Where("feedbacks.source = ?", filter.Source)
	}
	if !filter.Since.IsZero() {
		query = query.Where("feedbacks.created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("feedbacks.created_at <= ?", filter.Until)
	}
	if filter.Sentiment != "" {
		query = query.Joins("JOIN annotations ON annotations.feedback_id = feedbacks.id").
			Where("annotations.sentiment = ?", filter.Sentiment)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count feedback: %w", err)
	}

	query = query.Preload("Annotation").Order("feedbacks.created_at DESC").Order("feedbacks.id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var out []models.Feedback
	if err := query.Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list feedback: %w", err)
	}
	return out, total, nil
}

func (p *Postgres) FeedbackByIDs(ctx context.Context, ids []uint) ([]models.Feedback, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.Feedback
	err := p.db.WithContext(ctx).Preload("Annotation").Where("id IN ?", ids).Order("id").Find(&out).Error
	return out, err
}

func (p *Postgres) PendingFeedback(ctx context.Context, afterID uint, limit int) ([]models.Feedback, error) {
	var out []models.Feedback
	err := p.db.WithContext(ctx).
		Where("has_annotation = ? AND id > ?", false, afterID).
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SaveAnnotation creates the annotation and flips the feedback flag in one transaction
func (p *Postgres) SaveAnnotation(ctx context.Context, a *models.Annotation) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Feedback{}).Where("id = ?", a.FeedbackID).Update("has_annotation", true)
		if res.Error != nil {
			return fmt.Errorf("failed to update feedback: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "feedback_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"sentiment", "sentiment_score", "topics", "keywords",
				"feature_mentions", "urgency_score", "summary", "processed_at",
			}),
		}).Create(a).Error
		if err != nil {
			return fmt.Errorf("failed to create annotation: %w", err)
		}
		return nil
	})
}
