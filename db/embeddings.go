package db

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm/clause"

	"pulse/models"
)

// EnsureVectorIndex creates the cosine ivfflat index for similarity search.
func (p *Postgres) EnsureVectorIndex(ctx context.Context) error {
	err := p.db.WithContext(ctx).
		Exec("CREATE INDEX IF NOT EXISTS feedback_embeddings_vector_idx ON feedback_embeddings USING ivfflat (embedding vector_cosine_ops)").
		Error
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

func (p *Postgres) SaveEmbedding(ctx context.Context, feedbackID uint, vec []float32) error {
	row := models.FeedbackEmbedding{
		FeedbackID: feedbackID,
		Embedding:  pgvector.NewVector(vec),
		UpdatedAt:  time.Now().UTC(),
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "feedback_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding", "updated_at"}),
	}).Create(&row).Error
}

func (p *Postgres) NearestFeedback(ctx context.Context, feedbackID uint, k int) ([]Neighbor, error) {
	var self models.FeedbackEmbedding
	if err := p.db.WithContext(ctx).First(&self, "feedback_id = ?", feedbackID).Error; err != nil {
		return nil, notFound(err)
	}

	query := `
        SELECT feedback_id, embedding <=> ? AS distance
        FROM feedback_embeddings
        WHERE feedback_id <> ?
        ORDER BY embedding <=> ?
        LIMIT ?
    `

	var out []Neighbor
	if err := p.db.WithContext(ctx).Raw(query, self.Embedding, feedbackID, self.Embedding, k).Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to query similar feedback: %w", err)
	}
	return out, nil
}
