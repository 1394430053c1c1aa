package insights_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"pulse/analytics"
	"pulse/db"
	"pulse/insights"
	"pulse/llm"
	"pulse/models"
)

func TestInsights(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Insights Suite")
}

const twoInsights = `Sure! {"insights": [
  {"title": "Checkout errors spiking", "description": "Negative reviews mention payment failures.", "type": "alert", "priority": 9},
  {"title": "Dark mode requests", "description": "Users keep asking for it.", "type": "Recommendation", "priority": 6.6}
]}`

func replying(reply string, prompts *[]string) llm.Generator {
	return llm.GeneratorFunc(func(_ context.Context, prompt string, temperature float64) (string, error) {
		Expect(temperature).To(Equal(insights.Temperature))
		if prompts != nil {
			*prompts = append(*prompts, prompt)
		}
		return reply, nil
	})
}

var digest = analytics.Digest{
	Total:       42,
	Sentiment:   analytics.SentimentCounts{Positive: 10, Negative: 25, Neutral: 7},
	TopTopics:   []string{"Performance", "Pricing"},
	TopFeatures: []string{"checkout", "search"},
	UrgentCount: 6,
}

var _ = Describe("Generator", func() {
	It("parses candidates from a chatty response", func() {
		var prompts []string
		g := insights.NewGenerator(replying(twoInsights, &prompts), zerolog.Nop())
		out := g.Generate(context.Background(), digest)

		Expect(out).To(Equal([]insights.Candidate{
			{Title: "Checkout errors spiking", Description: "Negative reviews mention payment failures.", Type: models.InsightAlert, Priority: 9},
			{Title: "Dark mode requests", Description: "Users keep asking for it.", Type: models.InsightRecommendation, Priority: 7},
		}))

		Expect(prompts).To(HaveLen(1))
		Expect(prompts[0]).To(ContainSubstring("Total feedback items: 42"))
		Expect(prompts[0]).To(ContainSubstring("10 positive, 25 negative, 7 neutral"))
		Expect(prompts[0]).To(ContainSubstring("Top topics: Performance, Pricing"))
		Expect(prompts[0]).To(ContainSubstring("Most mentioned features: checkout, search"))
		Expect(prompts[0]).To(ContainSubstring("Urgent feedback items: 6"))
	})

	It("drops unknown types and empty titles and clamps priority", func() {
		reply := `{"insights": [
		  {"title": "A", "description": "", "type": "rumor", "priority": 5},
		  {"title": "  ", "description": "x", "type": "trend", "priority": 5},
		  {"title": "B", "description": "x", "type": "trend", "priority": 99},
		  {"title": "C", "description": "x", "type": "anomaly", "priority": -4},
		  {"title": "D", "description": "x", "type": "trend"},
		  "not an object"
		]}`
		out := insights.NewGenerator(replying(reply, nil), zerolog.Nop()).Generate(context.Background(), digest)
		Expect(out).To(HaveLen(3))
		Expect(out[0].Priority).To(Equal(10))
		Expect(out[1].Priority).To(Equal(1))
		Expect(out[2].Priority).To(Equal(5))
	})

	DescribeTable("returns an empty list on failure",
		func(gen llm.Generator) {
			out := insights.NewGenerator(gen, zerolog.Nop()).Generate(context.Background(), digest)
			Expect(out).NotTo(BeNil())
			Expect(out).To(BeEmpty())
		},
		Entry("transport error", llm.GeneratorFunc(func(context.Context, string, float64) (string, error) {
			return "", errors.New("timeout")
		})),
		Entry("disabled", nil),
		Entry("no JSON", replying("I cannot help with that.", nil)),
		Entry("broken JSON", replying(`{"insights": [`, nil)),
		Entry("missing key", replying(`{"ideas": []}`, nil)),
	)
})

var _ = Describe("CanTransition", func() {
	DescribeTable("lifecycle",
		func(from, to models.InsightStatus, ok bool) {
			Expect(insights.CanTransition(from, to)).To(Equal(ok))
		},
		Entry(nil, models.InsightNew, models.InsightReviewed, true),
		Entry(nil, models.InsightNew, models.InsightDismissed, true),
		Entry(nil, models.InsightReviewed, models.InsightActioned, true),
		Entry(nil, models.InsightReviewed, models.InsightDismissed, true),
		Entry(nil, models.InsightNew, models.InsightActioned, false),
		Entry(nil, models.InsightNew, models.InsightNew, false),
		Entry(nil, models.InsightReviewed, models.InsightNew, false),
		Entry(nil, models.InsightActioned, models.InsightDismissed, false),
		Entry(nil, models.InsightDismissed, models.InsightReviewed, false),
	)
})

// gatedStore holds the first n reads until all of them have happened, so
// every caller sees the same status before any of them writes.
type gatedStore struct {
	*db.Memory
	mu    sync.Mutex
	reads int
	gate  sync.WaitGroup
}

func newGatedStore(mem *db.Memory, n int) *gatedStore {
	g := &gatedStore{Memory: mem}
	g.gate.Add(n)
	return g
}

func (g *gatedStore) GetInsight(ctx context.Context, id uint) (*models.Insight, error) {
	in, err := g.Memory.GetInsight(ctx, id)
	g.mu.Lock()
	g.reads++
	first := g.reads <= 2
	g.mu.Unlock()
	if first {
		g.gate.Done()
		g.gate.Wait()
	}
	return in, err
}

var _ = Describe("InsightsService", func() {
	var (
		ctx context.Context
		mem *db.Memory
		now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	)

	BeforeEach(func() {
		ctx = context.Background()
		mem = db.NewMemory()
		f := &models.Feedback{ProductID: "product-a", Rating: 1, Annotation: &models.Annotation{
			Sentiment: "negative", SentimentScore: -0.6, Topics: []string{"Performance"}, UrgencyScore: 9,
		}}
		f.CreatedAt = now.AddDate(0, 0, -1)
		Expect(mem.CreateFeedback(ctx, f)).To(Succeed())
	})

	It("stores generated insights as new", func() {
		var prompts []string
		svc := insights.NewInsightsService(mem, mem, insights.NewGenerator(replying(twoInsights, &prompts), zerolog.Nop()), zerolog.Nop())

		out, err := svc.Generate(ctx, analytics.Window{Now: now})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(2))
		Expect(prompts[0]).To(ContainSubstring("Urgent feedback items: 1"))

		listed, err := svc.List(ctx, db.InsightFilter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(listed).To(HaveLen(2))
		Expect(listed[0].Priority).To(Equal(9))
		for _, in := range listed {
			Expect(in.Status).To(Equal(models.InsightNew))
			Expect(in.Data).To(HaveKeyWithValue("total", 1))
		}

		alerts, err := svc.List(ctx, db.InsightFilter{Type: models.InsightAlert})
		Expect(err).NotTo(HaveOccurred())
		Expect(alerts).To(HaveLen(1))
	})

	It("stores nothing when generation fails", func() {
		svc := insights.NewInsightsService(mem, mem, insights.NewGenerator(nil, zerolog.Nop()), zerolog.Nop())
		out, err := svc.Generate(ctx, analytics.Window{Now: now})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())

		listed, _ := svc.List(ctx, db.InsightFilter{})
		Expect(listed).To(BeEmpty())
	})

	It("rejects unknown filter values", func() {
		svc := insights.NewInsightsService(mem, mem, insights.NewGenerator(nil, zerolog.Nop()), zerolog.Nop())
		_, err := svc.List(ctx, db.InsightFilter{Status: "archived"})
		var verr *models.ValidationError
		Expect(errors.As(err, &verr)).To(BeTrue())
		Expect(verr.Field).To(Equal("status"))
	})

	It("enforces the lifecycle on updates", func() {
		in := &models.Insight{Title: "t", Type: models.InsightTrend, Priority: 5}
		Expect(mem.CreateInsights(ctx, []*models.Insight{in})).To(Succeed())
		svc := insights.NewInsightsService(mem, mem, insights.NewGenerator(nil, zerolog.Nop()), zerolog.Nop())

		_, err := svc.UpdateStatus(ctx, in.ID, models.InsightActioned)
		Expect(err).To(MatchError(insights.ErrInvalidTransition))

		updated, err := svc.UpdateStatus(ctx, in.ID, models.InsightReviewed)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Status).To(Equal(models.InsightReviewed))

		updated, err = svc.UpdateStatus(ctx, in.ID, models.InsightActioned)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Status).To(Equal(models.InsightActioned))

		_, err = svc.UpdateStatus(ctx, in.ID, models.InsightDismissed)
		Expect(err).To(MatchError(insights.ErrInvalidTransition))

		_, err = svc.UpdateStatus(ctx, 999, models.InsightReviewed)
		Expect(err).To(MatchError(db.ErrNotFound))

		_, err = svc.UpdateStatus(ctx, in.ID, "done")
		var verr *models.ValidationError
		Expect(errors.As(err, &verr)).To(BeTrue())
	})

	It("lets only one of two racing updates win", func() {
		in := &models.Insight{Title: "t", Type: models.InsightTrend, Priority: 5}
		Expect(mem.CreateInsights(ctx, []*models.Insight{in})).To(Succeed())
		svc := insights.NewInsightsService(mem, newGatedStore(mem, 2), insights.NewGenerator(nil, zerolog.Nop()), zerolog.Nop())

		targets := []models.InsightStatus{models.InsightDismissed, models.InsightReviewed}
		errs := make([]error, len(targets))
		var wg sync.WaitGroup
		for i, to := range targets {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.UpdateStatus(ctx, in.ID, to)
			}()
		}
		wg.Wait()

		var won models.InsightStatus
		failed := 0
		for i, err := range errs {
			if err == nil {
				won = targets[i]
				continue
			}
			Expect(err).To(MatchError(insights.ErrInvalidTransition))
			failed++
		}
		Expect(failed).To(Equal(1))

		got, err := mem.GetInsight(ctx, in.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(won))
	})
})
