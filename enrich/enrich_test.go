package enrich_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"pulse/db"
	"pulse/enrich"
	"pulse/models"
	"pulse/nlp"
)

func TestEnrich(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Enrich Suite")
}

// flaky annotates with the rules but fails texts containing "FAIL".
type flaky struct {
	rules *nlp.RuleAnnotator
}

func (f flaky) Annotate(ctx context.Context, text string) (nlp.Analysis, error) {
	if strings.Contains(text, "FAIL") {
		return nlp.Analysis{}, errors.New("model unavailable")
	}
	return f.rules.Annotate(ctx, text)
}

type recordingIndex struct {
	mu  sync.Mutex
	ids []uint
}

func (r *recordingIndex) UpsertBatch(_ context.Context, fs []models.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range fs {
		r.ids = append(r.ids, f.ID)
	}
	return nil
}

var _ = Describe("Worker", func() {
	var (
		ctx    context.Context
		mem    *db.Memory
		worker *enrich.Worker
		index  *recordingIndex
	)

	BeforeEach(func() {
		ctx = context.Background()
		mem = db.NewMemory()
		index = &recordingIndex{}
		worker = enrich.NewWorker(mem, mem, flaky{rules: nlp.NewRuleAnnotator(nil)}, zerolog.Nop(), enrich.WithIndex(index))
	})

	seed := func(n int, failEvery int) {
		var rows []*models.Feedback
		for i := 0; i < n; i++ {
			text := fmt.Sprintf("The dashboard is great and fast, item %d", i)
			if failEvery > 0 && i%failEvery == 0 {
				text = "FAIL " + text
			}
			rows = append(rows, &models.Feedback{Text: text, Rating: 4})
		}
		ExpectWithOffset(1, mem.CreateFeedbackBatch(ctx, rows)).To(Succeed())
	}

	It("annotates every pending item across several batches", func() {
		seed(enrich.BatchSize+7, 0)

		stats, err := worker.ProcessPending(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Processed).To(Equal(enrich.BatchSize + 7))
		Expect(stats.Failed).To(BeZero())
		Expect(stats.RunID).NotTo(BeEmpty())

		pending, err := mem.PendingFeedback(ctx, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())
		Expect(index.ids).To(HaveLen(enrich.BatchSize + 7))

		f, err := mem.GetFeedback(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Annotation.Sentiment).To(Equal("positive"))
		Expect([]string(f.Annotation.FeatureMentions)).To(ContainElement("dashboard"))
	})

	It("leaves failed items pending and does not loop on them", func() {
		seed(10, 3)

		stats, err := worker.ProcessPending(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Processed).To(Equal(6))
		Expect(stats.Failed).To(Equal(4))

		pending, err := mem.PendingFeedback(ctx, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(HaveLen(4))

		stats, err = worker.ProcessPending(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Processed).To(BeZero())
		Expect(stats.Failed).To(Equal(4))
	})

	It("does nothing when nothing is pending", func() {
		stats, err := worker.ProcessPending(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats).To(Equal(enrich.Stats{}))
	})

	It("stops when the context is cancelled", func() {
		seed(3, 0)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := worker.ProcessPending(cancelled)
		Expect(err).To(MatchError(context.Canceled))
	})

	Describe("ProcessOne", func() {
		It("annotates a single item", func() {
			seed(1, 0)
			a, err := worker.ProcessOne(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.FeedbackID).To(BeEquivalentTo(1))
			Expect(a.ProcessedAt).NotTo(BeZero())
			Expect(index.ids).To(Equal([]uint{1}))

			f, _ := mem.GetFeedback(ctx, 1)
			Expect(f.HasAnnotation).To(BeTrue())
		})

		It("surfaces missing records and annotator failures", func() {
			_, err := worker.ProcessOne(ctx, 42)
			Expect(err).To(MatchError(db.ErrNotFound))

			seed(1, 1)
			_, err = worker.ProcessOne(ctx, 1)
			Expect(err).To(MatchError(ContainSubstring("model unavailable")))
		})
	})
})
