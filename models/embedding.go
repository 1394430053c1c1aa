package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// FeedbackEmbedding stores the text embedding used for similarity search
type FeedbackEmbedding struct {
	FeedbackID uint            `gorm:"primaryKey"`
	Embedding  pgvector.Vector `gorm:"type:vector(1536)"`
	UpdatedAt  time.Time
}
