package lexicon_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulse/lexicon"
)

func TestLexicon(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Lexicon Suite")
}

var _ = Describe("Default", func() {
	It("ships the built-in catalog", func() {
		lex := lexicon.Default()
		Expect(lex.Features).To(HaveLen(18))
		Expect(lex.Features).To(ContainElements("dashboard", "dark mode", "API"))
		Expect(lex.Positive).To(HaveLen(10))
		Expect(lex.Negative).To(HaveLen(10))
		Expect(lex.StopWords).To(ConsistOf("about", "would", "could", "should", "their", "there"))
	})

	It("keeps topic rules in declaration order", func() {
		labels := []string{}
		for _, t := range lexicon.Default().Topics {
			labels = append(labels, t.Label)
		}
		Expect(labels).To(Equal([]string{"UI/UX", "Performance", "Features", "Pricing", "Support", "Mobile", "Documentation"}))
	})

	It("returns independent copies", func() {
		a := lexicon.Default()
		a.Features[0] = "changed"
		Expect(lexicon.Default().Features[0]).To(Equal("dashboard"))
	})
})

var _ = Describe("Parse", func() {
	It("overrides only the sections present", func() {
		lex, err := lexicon.Parse([]byte(`
positive: [stellar]
topics:
  - label: Billing
    pattern: invoice|billing
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(lex.Positive).To(Equal([]string{"stellar"}))
		Expect(lex.Negative).To(HaveLen(10))
		Expect(lex.Topics).To(HaveLen(1))
		Expect(lex.Topics[0].Pattern.MatchString("my invoice")).To(BeTrue())
		Expect(lex.Urgent.MatchString("this is urgent")).To(BeTrue())
	})

	It("rejects invalid patterns", func() {
		_, err := lexicon.Parse([]byte("urgent: \"(\"\n"))
		Expect(err).To(MatchError(ContainSubstring("invalid urgent pattern")))
	})

	It("loads from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "lexicon.yaml")
		Expect(os.WriteFile(path, []byte("stop_words: [really]\n"), 0o600)).To(Succeed())

		lex, err := lexicon.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(lex.StopWords).To(Equal([]string{"really"}))
	})

	It("reports a missing file", func() {
		_, err := lexicon.Load(filepath.Join(GinkgoT().TempDir(), "nope.yaml"))
		Expect(err).To(HaveOccurred())
	})
})
