package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"pulse/analytics"
	"pulse/llm"
	"pulse/models"
	"pulse/nlp"
)

// Temperature used for insight generation.
const Temperature = 0.4

const (
	minPriority     = 1
	maxPriority     = 10
	defaultPriority = 5
)

// Candidate is a proposed insight before it is stored.
type Candidate struct {
	Title       string             `json:"title" jsonschema:"required,description=Brief actionable title"`
	Description string             `json:"description" jsonschema:"required,description=Detailed description with context and impact"`
	Type        models.InsightType `json:"type" jsonschema:"required,enum=alert,enum=trend,enum=recommendation,enum=anomaly"`
	Priority    int                `json:"priority" jsonschema:"required,minimum=1,maximum=10,description=Urgency and impact where 10 is highest"`
}

type insightResponse struct {
	Insights []Candidate `json:"insights" jsonschema:"required,minItems=2,maxItems=4"`
}

// candidateWire accepts fractional priorities.
type candidateWire struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Priority    float64 `json:"priority"`
}

var insightSchema = nlp.Schema(&insightResponse{})

// Generator turns an aggregate digest into insight candidates. There is no
// rule-based fallback; any failure yields an empty list.
type Generator struct {
	gen llm.Generator
	log zerolog.Logger
}

func NewGenerator(gen llm.Generator, log zerolog.Logger) *Generator {
	if gen == nil {
		gen = llm.Disabled()
	}
	return &Generator{gen: gen, log: log}
}

func (g *Generator) Generate(ctx context.Context, d analytics.Digest) []Candidate {
	out := []Candidate{}

	raw, err := g.gen.Generate(ctx, insightPrompt(d), Temperature)
	if err != nil {
		g.log.Warn().Err(err).Int("total", d.Total).Msg("insight request failed")
		return out
	}

	var resp struct {
		Insights []json.RawMessage `json:"insights"`
	}
	if err := nlp.DecodeJSON(raw, &resp); err != nil {
		g.log.Warn().Err(err).Msg("insight response unparsable")
		return out
	}

	for _, entry := range resp.Insights {
		var w candidateWire
		if err := json.Unmarshal(entry, &w); err != nil {
			g.log.Debug().Err(err).Msg("skipping malformed insight")
			continue
		}
		c, ok := w.candidate()
		if !ok {
			g.log.Debug().Str("type", w.Type).Str("title", w.Title).Msg("skipping invalid insight")
			continue
		}
		out = append(out, c)
	}
	return out
}

func (w candidateWire) candidate() (Candidate, bool) {
	c := Candidate{
		Title:       strings.TrimSpace(w.Title),
		Description: strings.TrimSpace(w.Description),
		Type:        models.InsightType(strings.ToLower(strings.TrimSpace(w.Type))),
		Priority:    clampPriority(w.Priority),
	}
	if c.Title == "" || !c.Type.Valid() {
		return Candidate{}, false
	}
	return c, true
}

func clampPriority(v float64) int {
	if v == 0 || math.IsNaN(v) {
		return defaultPriority
	}
	p := math.Round(math.Max(-100, math.Min(100, v)))
	return int(math.Max(minPriority, math.Min(maxPriority, p)))
}

func insightPrompt(d analytics.Digest) string {
	return fmt.Sprintf(`Based on the following customer feedback analysis, generate 2-4 actionable insights for the product team.

Analysis Summary:
- Total feedback items: %d
- Sentiment breakdown: %d positive, %d negative, %d neutral
- Top topics: %s
- Most mentioned features: %s
- Urgent feedback items: %d

Respond with a single JSON object matching this schema:
%s

Guidelines:
- Focus on actionable insights that can drive product decisions
- Use type "alert" for critical issues when negative sentiment is high
- Use type "trend" for patterns in the feedback
- Use type "recommendation" for improvement suggestions
- Use type "anomaly" when something unusual stands out
- Priority should reflect urgency and impact (10 = highest)`,
		d.Total,
		d.Sentiment.Positive, d.Sentiment.Negative, d.Sentiment.Neutral,
		strings.Join(d.TopTopics, ", "),
		strings.Join(d.TopFeatures, ", "),
		d.UrgentCount,
		insightSchema)
}
