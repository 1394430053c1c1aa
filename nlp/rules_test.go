package nlp_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulse/nlp"
)

var _ = Describe("RuleAnnotator", func() {
	var rules *nlp.RuleAnnotator

	BeforeEach(func() {
		rules = nlp.NewRuleAnnotator(nil)
	})

	It("scores positive feedback", func() {
		a := rules.Analyze("I love the new dashboard, it's amazing and fast")
		Expect(a.Sentiment).To(Equal(nlp.Positive))
		Expect(a.SentimentScore).To(BeNumerically(">=", 0.4))
		Expect(a.SentimentScore).To(Equal(0.6))
		Expect(a.UrgencyScore).To(BeNumerically("<=", 5))
		Expect(a.FeatureMentions).To(ContainElement("dashboard"))
		Expect(a.Topics).To(Equal([]string{"Performance"}))
	})

	It("scores negative feedback and raises urgency", func() {
		a := rules.Analyze("App crashes constantly, this is broken and frustrating")
		Expect(a.Sentiment).To(Equal(nlp.Negative))
		Expect(a.SentimentScore).To(Equal(-0.6))
		Expect(a.UrgencyScore).To(Equal(10))
		Expect(a.Topics).To(ContainElements("Performance", "Mobile"))
	})

	It("populates an annotation for empty text", func() {
		a := rules.Analyze("")
		Expect(a.Sentiment).To(Equal(nlp.Neutral))
		Expect(a.SentimentScore).To(BeZero())
		Expect(a.UrgencyScore).To(Equal(5))
		Expect(a.Topics).To(BeEmpty())
		Expect(a.Keywords).To(BeEmpty())
		Expect(a.FeatureMentions).To(BeEmpty())
		Expect(a.Summary).To(BeEmpty())
	})

	It("keeps a single sentiment word inside the neutral band", func() {
		a := rules.Analyze("The export is good")
		Expect(a.SentimentScore).To(Equal(0.2))
		Expect(a.Sentiment).To(Equal(nlp.Neutral))
	})

	It("treats balanced words as neutral", func() {
		a := rules.Analyze("great idea but slow and a bit bad, still good and fast")
		Expect(a.SentimentScore).To(Equal(0.2))
		Expect(a.Sentiment).To(Equal(nlp.Neutral))
	})

	It("clamps the score when many words match", func() {
		a := rules.Analyze("love great amazing excellent helpful good better improved easy fast")
		Expect(a.SentimentScore).To(Equal(1.0))
		Expect(a.Sentiment).To(Equal(nlp.Positive))
	})

	It("caps topics at four in rule order", func() {
		a := rules.Analyze("The ui is slow, a feature is missing, the price is high, support is poor, mobile app too")
		Expect(a.Topics).To(Equal([]string{"UI/UX", "Performance", "Features", "Pricing"}))
	})

	It("picks the first five long non-stop-word tokens without dedup", func() {
		a := rules.Analyze("would export export export really broken things happen about there constantly")
		Expect(a.Keywords).To(Equal([]string{"export", "export", "export", "really", "broken"}))
	})

	It("adds urgency for polite requests", func() {
		a := rules.Analyze("Please add an option to change the font size")
		Expect(a.UrgencyScore).To(Equal(6))
	})

	It("truncates the summary with an ellipsis", func() {
		text := strings.Repeat("é", 120)
		a := rules.Analyze(text)
		Expect(a.Summary).To(Equal(strings.Repeat("é", 100) + "..."))

		short := rules.Analyze("short text here")
		Expect(short.Summary).To(Equal("short text here"))
	})

	It("is idempotent", func() {
		text := "Search is broken, please fix urgently. The dashboard layout is confusing."
		Expect(rules.Analyze(text)).To(Equal(rules.Analyze(text)))
	})

	DescribeTable("label always agrees with score",
		func(text string) {
			a := rules.Analyze(text)
			Expect(a.Sentiment).To(Equal(nlp.LabelFor(a.SentimentScore)))
			Expect(a.SentimentScore).To(BeNumerically(">=", -1))
			Expect(a.SentimentScore).To(BeNumerically("<=", 1))
			Expect(a.UrgencyScore).To(BeNumerically(">=", 1))
			Expect(a.UrgencyScore).To(BeNumerically("<=", 10))
		},
		Entry("positive", "great and helpful"),
		Entry("mixed", "good but slow"),
		Entry("all negative", "crash broken slow frustrating bad terrible confusing missing bug issue"),
		Entry("unicode", "😀 das ist gut 日本語 テキスト"),
		Entry("long", strings.Repeat("word ", 5000)),
	)
})

var _ = Describe("LabelFor", func() {
	DescribeTable("bands the score",
		func(score float64, want nlp.Sentiment) {
			Expect(nlp.LabelFor(score)).To(Equal(want))
		},
		Entry("upper edge", 0.2, nlp.Neutral),
		Entry("just above", 0.21, nlp.Positive),
		Entry("lower edge", -0.2, nlp.Neutral),
		Entry("just below", -0.21, nlp.Negative),
		Entry("zero", 0.0, nlp.Neutral),
	)
})
