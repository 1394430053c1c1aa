package nlp_test

import (
	"context"
	"errors"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"pulse/nlp"
)

type annotatorFunc func(ctx context.Context, text string) (nlp.Analysis, error)

func (f annotatorFunc) Annotate(ctx context.Context, text string) (nlp.Analysis, error) {
	return f(ctx, text)
}

var _ = Describe("Batch", func() {
	ctx := context.Background()
	items := []nlp.Item{
		{ID: 11, Text: "I love the dashboard"},
		{ID: 12, Text: "FAIL this one please"},
		{ID: 13, Text: "Search is slow"},
	}

	It("isolates a failing item", func() {
		gen := newScripted()
		gen.fail["FAIL this one"] = true
		gen.replies["I love the dashboard"] = `{"sentiment_score":0.7}`
		gen.replies["Search is slow"] = `{"sentiment_score":-0.5}`

		strict := nlp.NewModelAnnotator(gen, nil, nlp.WithoutFallback())
		report := nlp.NewBatch(strict, 2, zerolog.Nop()).Run(ctx, items)

		Expect(report.RunID).NotTo(BeEmpty())
		Expect(report.Summary).To(Equal(nlp.BatchSummary{Total: 3, Successful: 2, Failed: 1}))
		Expect(report.Results).To(HaveLen(3))
		Expect(report.Results[0].ID).To(BeEquivalentTo(11))
		Expect(report.Results[0].Success).To(BeTrue())
		Expect(report.Results[0].Analysis.Sentiment).To(Equal(nlp.Positive))
		Expect(report.Results[1].ID).To(BeEquivalentTo(12))
		Expect(report.Results[1].Success).To(BeFalse())
		Expect(report.Results[1].Analysis).To(BeNil())
		Expect(report.Results[1].Error).To(ContainSubstring("upstream unavailable"))
		Expect(report.Results[2].Analysis.Sentiment).To(Equal(nlp.Negative))
	})

	It("counts fallbacks as successes", func() {
		gen := newScripted()
		gen.fail["FAIL this one"] = true
		gen.replies["I love the dashboard"] = `{"sentiment_score":0.7}`
		gen.replies["Search is slow"] = `{"sentiment_score":-0.5}`

		annotator := nlp.NewModelAnnotator(gen, nil)
		report := nlp.NewBatch(annotator, 0, zerolog.Nop()).Run(ctx, items)
		Expect(report.Summary.Successful).To(Equal(3))
		Expect(annotator.Fallbacks()).To(BeEquivalentTo(1))
	})

	It("recovers from a panicking item", func() {
		a := annotatorFunc(func(_ context.Context, text string) (nlp.Analysis, error) {
			if text == "Search is slow" {
				panic("nil map")
			}
			return nlp.Analysis{Sentiment: nlp.Neutral}, nil
		})
		report := nlp.NewBatch(a, 3, zerolog.Nop()).Run(ctx, items)
		Expect(report.Summary.Failed).To(Equal(1))
		Expect(report.Results[2].Error).To(ContainSubstring("panicked"))
	})

	It("respects the concurrency limit", func() {
		var inFlight, peak int32
		a := annotatorFunc(func(context.Context, string) (nlp.Analysis, error) {
			n := atomic.AddInt32(&inFlight, 1)
			defer atomic.AddInt32(&inFlight, -1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			return nlp.Analysis{}, errors.New("nope")
		})
		many := make([]nlp.Item, 20)
		for i := range many {
			many[i] = nlp.Item{ID: uint(i + 1), Text: "text"}
		}
		report := nlp.NewBatch(a, 2, zerolog.Nop()).Run(ctx, many)
		Expect(report.Summary.Failed).To(Equal(20))
		Expect(atomic.LoadInt32(&peak)).To(BeNumerically("<=", 2))
	})

	It("handles an empty batch", func() {
		report := nlp.NewBatch(nlp.NewRuleAnnotator(nil), 2, zerolog.Nop()).Run(ctx, nil)
		Expect(report.Summary).To(Equal(nlp.BatchSummary{}))
		Expect(report.Results).To(BeEmpty())
	})
})
