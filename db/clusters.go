package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pulse/models"
)

func (p *Postgres) SaveCluster(ctx context.Context, c *models.Cluster, feedbackIDs []uint) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "feedback_count", "avg_sentiment", "priority_score", "updated_at"}),
		}).Create(c).Error
		if err != nil {
			return fmt.Errorf("failed to upsert cluster: %w", err)
		}
		// The conflict path does not populate the id.
		if c.ID == 0 {
			if err := tx.Where("name = ?", c.Name).First(c).Error; err != nil {
				return fmt.Errorf("failed to reload cluster: %w", err)
			}
		}

		if err := tx.Where("cluster_id = ?", c.ID).Delete(&models.ClusterMembership{}).Error; err != nil {
			return fmt.Errorf("failed to clear memberships: %w", err)
		}
		if len(feedbackIDs) == 0 {
			return nil
		}
		members := make([]models.ClusterMembership, len(feedbackIDs))
		for i, id := range feedbackIDs {
			members[i] = models.ClusterMembership{ClusterID: c.ID, FeedbackID: id, Similarity: 1}
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
	})
}

func (p *Postgres) ListClusters(ctx context.Context) ([]models.Cluster, error) {
	var out []models.Cluster
	err := p.db.WithContext(ctx).Order("priority_score DESC").Order("id").Find(&out).Error
	return out, err
}

func (p *Postgres) ClusterMembers(ctx context.Context, clusterID uint, limit int) ([]models.Feedback, error) {
	query := p.db.WithContext(ctx).
		Preload("Annotation").
		Joins("JOIN cluster_memberships ON cluster_memberships.feedback_id = feedbacks.id").
		Where("cluster_memberships.cluster_id = ?", clusterID).
		Order("feedbacks.created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var out []models.Feedback
	return out, query.Find(&out).Error
}
