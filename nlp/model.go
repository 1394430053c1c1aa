package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"pulse/llm"
)

// ModelAnnotator asks the language model for an annotation and falls back
// to the rule-based annotator whenever the call or its response fails.
type ModelAnnotator struct {
	gen       llm.Generator
	rules     *RuleAnnotator
	fallback  bool
	log       zerolog.Logger
	fallbacks atomic.Int64
}

// Option configures a ModelAnnotator.
type Option func(*ModelAnnotator)

// WithoutFallback makes Annotate return model failures instead of
// substituting the rule-based result.
func WithoutFallback() Option {
	return func(a *ModelAnnotator) { a.fallback = false }
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(l zerolog.Logger) Option {
	return func(a *ModelAnnotator) { a.log = l }
}

// NewModelAnnotator builds an annotator over gen. A nil gen behaves as a
// disabled provider and a nil rules uses the default lexicon, so the
// result always answers, from the rules if nothing else.
func NewModelAnnotator(gen llm.Generator, rules *RuleAnnotator, opts ...Option) *ModelAnnotator {
	if gen == nil {
		gen = llm.Disabled()
	}
	if rules == nil {
		rules = NewRuleAnnotator(nil)
	}
	a := &ModelAnnotator{
		gen:      gen,
		rules:    rules,
		fallback: true,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fallbacks returns how many annotations were served by the rules.
func (a *ModelAnnotator) Fallbacks() int64 {
	return a.fallbacks.Load()
}

// WithStrict returns a copy that reports model failures instead of falling
// back. The copy shares the generator and rules but has its own counter.
func (a *ModelAnnotator) WithStrict() *ModelAnnotator {
	return NewModelAnnotator(a.gen, a.rules, WithLogger(a.log), WithoutFallback())
}

// Annotate asks the model first. On any failure it returns the rule-based
// result and counts a fallback, unless fallback is disabled.
func (a *ModelAnnotator) Annotate(ctx context.Context, text string) (Analysis, error) {
	out, err := a.fromModel(ctx, text)
	if err == nil {
		return out, nil
	}
	if !a.fallback {
		return Analysis{}, err
	}

	a.fallbacks.Add(1)
	a.log.Warn().Err(err).Int("text_length", len(text)).Msg("model annotation failed, using rules")
	return a.rules.Analyze(text), nil
}

func (a *ModelAnnotator) fromModel(ctx context.Context, text string) (Analysis, error) {
	raw, err := a.gen.Generate(ctx, annotatePrompt(text), AnnotateTemperature)
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to generate annotation: %w", err)
	}

	var fields map[string]any
	if err := DecodeJSON(raw, &fields); err != nil {
		return Analysis{}, err
	}
	return normalize(fields, text), nil
}

// normalize fills every field of the result from a loosely typed model
// response, substituting defaults for anything missing or mistyped.
func normalize(fields map[string]any, text string) Analysis {
	score := round2(clampScore(number(fields["sentiment_score"])))

	urgency := DefaultUrgency
	if u := number(fields["urgency_score"]); u != 0 {
		urgency = clampUrgency(int(math.Round(math.Max(-100, math.Min(100, u)))))
	}

	summary, _ := fields["summary"].(string)
	if strings.TrimSpace(summary) == "" {
		summary, _ = truncateRunes(text, SummaryLength)
	}

	return Analysis{
		// The label always follows the score so the two cannot disagree.
		Sentiment:       LabelFor(score),
		SentimentScore:  score,
		Topics:          firstN(stringList(fields["topics"]), MaxTopics),
		Keywords:        firstN(stringList(fields["keywords"]), MaxKeywords),
		FeatureMentions: stringList(fields["feature_mentions"]),
		UrgencyScore:    urgency,
		Summary:         summary,
	}
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

// stringList keeps the non-empty string elements of a JSON array.
func stringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
