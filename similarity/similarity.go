package similarity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"pulse/db"
	"pulse/feed"
	"pulse/llm"
	"pulse/models"
)

// ErrUnavailable is returned when no embedding provider is configured.
var ErrUnavailable = errors.New("similarity search unavailable")

const (
	DefaultK = 5
	MaxK     = 50

	embedChunk = 64
)

type Match struct {
	Feedback feed.FeedResponse `json:"feedback"`
	Distance float64           `json:"distance"`
}

// Index keeps one embedding per feedback item and answers nearest-neighbour
// queries by cosine distance.
type Index struct {
	embedder llm.Embedder
	store    db.EmbeddingStore
	feedback db.FeedbackStore
	log      zerolog.Logger
}

// NewIndex returns an index; a nil embedder yields one that is unavailable.
func NewIndex(embedder llm.Embedder, store db.EmbeddingStore, feedback db.FeedbackStore, log zerolog.Logger) *Index {
	return &Index{embedder: embedder, store: store, feedback: feedback, log: log}
}

func (i *Index) Available() bool {
	return i != nil && i.embedder != nil
}

func (i *Index) Upsert(ctx context.Context, feedbackID uint, text string) error {
	return i.UpsertBatch(ctx, []models.Feedback{{Model: gorm.Model{ID: feedbackID}, Text: text}})
}

// UpsertBatch embeds texts in chunks and stores the vectors.
func (i *Index) UpsertBatch(ctx context.Context, fs []models.Feedback) error {
	if !i.Available() {
		return ErrUnavailable
	}
	for start := 0; start < len(fs); start += embedChunk {
		chunk := fs[start:min(start+embedChunk, len(fs))]
		texts := make([]string, len(chunk))
		for j, f := range chunk {
			texts[j] = f.Text
		}

		vecs, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed feedback: %w", err)
		}
		if len(vecs) != len(chunk) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(chunk))
		}

		for j, f := range chunk {
			if err := i.store.SaveEmbedding(ctx, f.ID, vecs[j]); err != nil {
				return fmt.Errorf("failed to save embedding for feedback %d: %w", f.ID, err)
			}
		}
	}
	i.log.Debug().Int("count", len(fs)).Msg("stored embeddings")
	return nil
}

// Similar returns the k nearest feedback items to feedbackID, closest
// first. Items not yet embedded are embedded on demand.
func (i *Index) Similar(ctx context.Context, feedbackID uint, k int) ([]Match, error) {
	if !i.Available() {
		return nil, ErrUnavailable
	}
	switch {
	case k <= 0:
		k = DefaultK
	case k > MaxK:
		k = MaxK
	}

	self, err := i.feedback.GetFeedback(ctx, feedbackID)
	if err != nil {
		return nil, err
	}

	neighbors, err := i.store.NearestFeedback(ctx, feedbackID, k)
	if errors.Is(err, db.ErrNotFound) {
		if err := i.Upsert(ctx, self.ID, self.Text); err != nil {
			return nil, err
		}
		neighbors, err = i.store.NearestFeedback(ctx, feedbackID, k)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search neighbours: %w", err)
	}

	ids := make([]uint, len(neighbors))
	for j, n := range neighbors {
		ids[j] = n.FeedbackID
	}
	rows, err := i.feedback.FeedbackByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load neighbours: %w", err)
	}
	byID := make(map[uint]models.Feedback, len(rows))
	for _, f := range rows {
		byID[f.ID] = f
	}

	out := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		f, ok := byID[n.FeedbackID]
		if !ok {
			continue
		}
		out = append(out, Match{Feedback: feed.NewFeedResponse(f), Distance: n.Distance})
	}
	return out, nil
}
