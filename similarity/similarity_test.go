package similarity_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"pulse/db"
	"pulse/models"
	"pulse/similarity"
)

func TestSimilarity(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Similarity Suite")
}

// wordEmbedder maps texts onto a tiny fixed vocabulary.
type wordEmbedder struct {
	calls int
	err   error
}

var vocab = []string{"slow", "crash", "price", "love"}

func (e *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, len(vocab))
		for j, w := range vocab {
			vec[j] = float32(strings.Count(strings.ToLower(t), w))
		}
		out[i] = vec
	}
	return out, nil
}

var _ = Describe("Index", func() {
	var (
		ctx context.Context
		mem *db.Memory
		emb *wordEmbedder
		idx *similarity.Index
	)

	BeforeEach(func() {
		ctx = context.Background()
		mem = db.NewMemory()
		emb = &wordEmbedder{}
		idx = similarity.NewIndex(emb, mem, mem, zerolog.Nop())

		rows := []*models.Feedback{
			{Text: "so slow, slow and it may crash"},
			{Text: "pages are slow"},
			{Text: "I love it"},
			{Text: "the price is too high"},
		}
		Expect(mem.CreateFeedbackBatch(ctx, rows)).To(Succeed())
	})

	It("ranks neighbours by cosine distance", func() {
		all, _, err := mem.ListFeedback(ctx, db.FeedbackFilter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(idx.UpsertBatch(ctx, all)).To(Succeed())
		Expect(emb.calls).To(Equal(1))

		matches, err := idx.Similar(ctx, 2, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(2))
		Expect(matches[0].Feedback.ID).To(BeEquivalentTo(1))
		Expect(matches[0].Distance).To(BeNumerically("<", matches[1].Distance))
	})

	It("embeds the query item on demand", func() {
		Expect(idx.Upsert(ctx, 1, "so slow, slow and it may crash")).To(Succeed())

		matches, err := idx.Similar(ctx, 2, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(1))
		Expect(emb.calls).To(Equal(2))
	})

	It("reports missing feedback and provider errors", func() {
		_, err := idx.Similar(ctx, 99, 3)
		Expect(err).To(MatchError(db.ErrNotFound))

		emb.err = errors.New("quota exceeded")
		_, err = idx.Similar(ctx, 3, 3)
		Expect(err).To(MatchError(ContainSubstring("quota exceeded")))
	})

	It("is unavailable without an embedder", func() {
		off := similarity.NewIndex(nil, mem, mem, zerolog.Nop())
		Expect(off.Available()).To(BeFalse())
		_, err := off.Similar(ctx, 1, 3)
		Expect(err).To(MatchError(similarity.ErrUnavailable))
		Expect(off.Upsert(ctx, 1, "x")).To(MatchError(similarity.ErrUnavailable))
	})
})
