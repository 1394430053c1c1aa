package db

import (
	"context"
	"fmt"

	"pulse/models"
)

func (p *Postgres) CreateInsights(ctx context.Context, insights []*models.Insight) error {
	if len(insights) == 0 {
		return nil
	}
	return p.db.WithContext(ctx).Create(insights).Error
}

func (p *Postgres) ListInsights(ctx context.Context, filter InsightFilter) ([]models.Insight, error) {
	query := p.db.WithContext(ctx).Model(&models.Insight{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	var out []models.Insight
	if err := query.Order("priority DESC").Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	return out, nil
}

func (p *Postgres) GetInsight(ctx context.Context, id uint) (*models.Insight, error) {
	var in models.Insight
	if err := p.db.WithContext(ctx).First(&in, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &in, nil
}

func (p *Postgres) UpdateInsightStatus(ctx context.Context, id uint, from, to models.InsightStatus) error {
	res := p.db.WithContext(ctx).Model(&models.Insight{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("failed to update insight: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := p.exists(ctx, &models.Insight{}, id); err != nil {
			return err
		}
		return ErrStatusChanged
	}
	return nil
}
