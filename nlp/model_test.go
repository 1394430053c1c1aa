package nlp_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulse/llm"
	"pulse/nlp"
)

var _ = Describe("ExtractJSON", func() {
	DescribeTable("finds the first balanced object",
		func(raw, want string) {
			got, err := nlp.ExtractJSON(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("bare", `{"a":1}`, `{"a":1}`),
		Entry("fenced", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`),
		Entry("braces in strings", `x {"s":"}{\"}"} y {"z":1}`, `{"s":"}{\"}"}`),
		Entry("stops at first block", `{"a":1} and {"b":2}`, `{"a":1}`),
	)

	It("signals missing JSON", func() {
		_, err := nlp.ExtractJSON("I could not analyze that")
		Expect(err).To(MatchError(nlp.ErrNoJSON))

		_, err = nlp.ExtractJSON(`{"unterminated": true`)
		Expect(err).To(MatchError(nlp.ErrNoJSON))
	})

	It("reports parse errors from DecodeJSON", func() {
		var v map[string]any
		err := nlp.DecodeJSON(`{"a": nope}`, &v)
		Expect(err).To(MatchError(ContainSubstring("failed to parse model JSON")))
	})
})

var _ = Describe("ModelAnnotator", func() {
	const text = "The mobile app keeps crashing when I open search"
	ctx := context.Background()

	It("normalizes a complete model response", func() {
		gen := constant(`Here you go:
{"sentiment":"negative","sentiment_score":-0.8,"topics":["Mobile","Performance","Search","Stability","Extra"],
 "keywords":["mobile","app","crashing","search","open","extra"],"feature_mentions":["mobile app","search"],
 "urgency_score":9,"summary":"App crashes on search."}`)
		a, err := nlp.NewModelAnnotator(gen, nil).Annotate(ctx, text)
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(nlp.Analysis{
			Sentiment:       nlp.Negative,
			SentimentScore:  -0.8,
			Topics:          []string{"Mobile", "Performance", "Search", "Stability"},
			Keywords:        []string{"mobile", "app", "crashing", "search", "open"},
			FeatureMentions: []string{"mobile app", "search"},
			UrgencyScore:    9,
			Summary:         "App crashes on search.",
		}))
	})

	It("fills defaults for missing and mistyped fields", func() {
		long := strings.Repeat("x", 150)
		gen := constant(`{"sentiment":"furious","sentiment_score":"very","topics":"Mobile","keywords":[1,"ok"],"urgency_score":0}`)
		a, err := nlp.NewModelAnnotator(gen, nil).Annotate(ctx, long)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Sentiment).To(Equal(nlp.Neutral))
		Expect(a.SentimentScore).To(BeZero())
		Expect(a.Topics).To(BeEmpty())
		Expect(a.Keywords).To(Equal([]string{"ok"}))
		Expect(a.FeatureMentions).To(BeEmpty())
		Expect(a.UrgencyScore).To(Equal(5))
		Expect(a.Summary).To(Equal(strings.Repeat("x", 100)))
	})

	It("clamps out-of-range numbers and derives the label from the score", func() {
		gen := constant(`{"sentiment":"neutral","sentiment_score":4.2,"urgency_score":42}`)
		a, err := nlp.NewModelAnnotator(gen, nil).Annotate(ctx, text)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.SentimentScore).To(Equal(1.0))
		Expect(a.Sentiment).To(Equal(nlp.Positive))
		Expect(a.UrgencyScore).To(Equal(10))

		gen = constant(`{"sentiment_score":-3,"urgency_score":-7}`)
		a, err = nlp.NewModelAnnotator(gen, nil).Annotate(ctx, text)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.SentimentScore).To(Equal(-1.0))
		Expect(a.Sentiment).To(Equal(nlp.Negative))
		Expect(a.UrgencyScore).To(Equal(1))
	})

	It("ignores a model label that comes without a score", func() {
		gen := constant(`{"sentiment":"negative","urgency_score":8}`)
		a, err := nlp.NewModelAnnotator(gen, nil).Annotate(ctx, text)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.SentimentScore).To(BeZero())
		Expect(a.Sentiment).To(Equal(nlp.Neutral))
		Expect(a.UrgencyScore).To(Equal(8))
	})

	DescribeTable("falls back to the rules on failure",
		func(gen llm.Generator) {
			rules := nlp.NewRuleAnnotator(nil)
			annotator := nlp.NewModelAnnotator(gen, rules)

			a, err := annotator.Annotate(ctx, text)
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(rules.Analyze(text)))
			Expect(annotator.Fallbacks()).To(BeEquivalentTo(1))
		},
		Entry("call error", failing(errors.New("quota exceeded"))),
		Entry("disabled provider", llm.Disabled()),
		Entry("no JSON", constant("Sorry, I can't help with that.")),
		Entry("broken JSON", constant(`{"sentiment": positive}`)),
	)

	It("surfaces errors when fallback is disabled", func() {
		annotator := nlp.NewModelAnnotator(failing(errors.New("boom")), nil, nlp.WithoutFallback())
		_, err := annotator.Annotate(ctx, text)
		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(annotator.Fallbacks()).To(BeZero())

		strict := nlp.NewModelAnnotator(constant("no json"), nil).WithStrict()
		_, err = strict.Annotate(ctx, text)
		Expect(err).To(MatchError(nlp.ErrNoJSON))
	})

	It("embeds the text and schema in the prompt", func() {
		var prompt string
		var temp float64
		gen := llm.GeneratorFunc(func(_ context.Context, p string, t float64) (string, error) {
			prompt, temp = p, t
			return `{}`, nil
		})
		_, err := nlp.NewModelAnnotator(gen, nil).Annotate(ctx, text)
		Expect(err).NotTo(HaveOccurred())
		Expect(prompt).To(ContainSubstring(text))
		Expect(prompt).To(ContainSubstring(`"sentiment_score"`))
		Expect(prompt).To(ContainSubstring(`"urgency_score"`))
		Expect(temp).To(Equal(nlp.AnnotateTemperature))
	})
})
