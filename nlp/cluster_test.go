package nlp_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"pulse/nlp"
)

var _ = Describe("Clusterer", func() {
	ctx := context.Background()
	items := []nlp.Item{
		{ID: 1, Text: "App crashes on launch"},
		{ID: 2, Text: "Please add dark mode"},
		{ID: 3, Text: "Too expensive for small teams"},
	}

	It("maps cluster names to known member ids", func() {
		gen := constant("```json\n" + `{"clusters":[
			{"name":"Stability","description":"Crashes","feedback_ids":[1, 1, 99]},
			{"name":"Requests","feedback_ids":[2,3]},
			{"name":"Pricing","feedback_ids":[3]},
			{"name":"","feedback_ids":[1]},
			{"name":"No ids"},
			{"name":"Bad ids","feedback_ids":["one"]}
		]}` + "\n```")
		c := nlp.NewClusterer(gen, zerolog.Nop())

		Expect(c.Cluster(ctx, items)).To(Equal(map[string][]uint{
			"Stability": {1},
			"Requests":  {2, 3},
			"Pricing":   {3},
		}))

		groups := c.Groups(ctx, items)
		Expect(groups).To(HaveLen(3))
		Expect(groups[0].Description).To(Equal("Crashes"))
	})

	It("lets a repeated name replace the earlier cluster", func() {
		gen := constant(`{"clusters":[{"name":"A","feedback_ids":[1]},{"name":"B","feedback_ids":[2]},{"name":"A","feedback_ids":[3]}]}`)
		groups := nlp.NewClusterer(gen, zerolog.Nop()).Groups(ctx, items)
		Expect(groups).To(HaveLen(2))
		Expect(groups[0].Name).To(Equal("A"))
		Expect(groups[0].FeedbackIDs).To(Equal([]uint{3}))
	})

	It("drops clusters left without members", func() {
		gen := constant(`{"clusters":[
			{"name":"Empty","feedback_ids":[]},
			{"name":"Invented","feedback_ids":[40, 41]},
			{"name":"Real","feedback_ids":[2]}
		]}`)
		groups := nlp.NewClusterer(gen, zerolog.Nop()).Groups(ctx, items)
		Expect(groups).To(HaveLen(1))
		Expect(groups[0].Name).To(Equal("Real"))
	})

	It("lists every item with its id in the prompt", func() {
		gen := newScripted()
		gen.replies["[1] App crashes"] = `{"clusters":[]}`
		Expect(nlp.NewClusterer(gen, zerolog.Nop()).Cluster(ctx, items)).To(BeEmpty())
		Expect(gen.prompts).To(HaveLen(1))
		Expect(gen.prompts[0]).To(ContainSubstring("[2] Please add dark mode"))
		Expect(gen.prompts[0]).To(ContainSubstring("[3] Too expensive for small teams"))
	})

	DescribeTable("yields nothing on failure",
		func(c *nlp.Clusterer) {
			Expect(c.Cluster(ctx, items)).To(BeEmpty())
		},
		Entry("call error", nlp.NewClusterer(failing(errors.New("timeout")), zerolog.Nop())),
		Entry("disabled", nlp.NewClusterer(nil, zerolog.Nop())),
		Entry("no JSON", nlp.NewClusterer(constant("no clusters today"), zerolog.Nop())),
		Entry("wrong shape", nlp.NewClusterer(constant(`{"clusters":"many"}`), zerolog.Nop())),
	)

	It("skips the call for no items", func() {
		gen := newScripted()
		Expect(nlp.NewClusterer(gen, zerolog.Nop()).Cluster(ctx, nil)).To(BeEmpty())
		Expect(gen.prompts).To(BeEmpty())
	})
})
