package nlp

import (
	"context"
	"strings"
	"unicode/utf8"

	"pulse/lexicon"
)

const (
	sentimentStep     = 0.2
	minKeywordLength  = 5
	negativeUrgency   = 2
	urgentPatternBump = 3
	politeBump        = 1
)

// RuleAnnotator is the deterministic, dependency-free annotator. It is safe
// for concurrent use as long as the lexicon is not mutated.
type RuleAnnotator struct {
	lex *lexicon.Lexicon
}

// NewRuleAnnotator returns an annotator over lex, or over the built-in
// lexicon when lex is nil.
func NewRuleAnnotator(lex *lexicon.Lexicon) *RuleAnnotator {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &RuleAnnotator{lex: lex}
}

// Annotate satisfies Annotator. It never fails.
func (r *RuleAnnotator) Annotate(_ context.Context, text string) (Analysis, error) {
	return r.Analyze(text), nil
}

// Analyze scores sentiment from word counts, then matches topics, features
// and urgency cues against the lexicon.
func (r *RuleAnnotator) Analyze(text string) Analysis {
	lower := strings.ToLower(text)

	// Count matches as integers so the score lands exactly on a step.
	hits := 0
	for _, w := range r.lex.Positive {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	for _, w := range r.lex.Negative {
		if strings.Contains(lower, w) {
			hits--
		}
	}
	score := round2(clampScore(float64(hits) * sentimentStep))
	sentiment := LabelFor(score)

	topics := make([]string, 0, MaxTopics)
	for _, t := range r.lex.Topics {
		if len(topics) == MaxTopics {
			break
		}
		if t.Pattern.MatchString(lower) {
			topics = append(topics, t.Label)
		}
	}

	keywords := make([]string, 0, MaxKeywords)
	for _, tok := range strings.Fields(text) {
		if len(keywords) == MaxKeywords {
			break
		}
		if utf8.RuneCountInString(tok) < minKeywordLength || r.isStopWord(tok) {
			continue
		}
		keywords = append(keywords, tok)
	}

	features := []string{}
	for _, f := range r.lex.Features {
		if strings.Contains(lower, strings.ToLower(f)) {
			features = append(features, f)
		}
	}

	urgency := DefaultUrgency
	if sentiment == Negative {
		urgency += negativeUrgency
	}
	if r.lex.Urgent.MatchString(lower) {
		urgency += urgentPatternBump
	}
	if r.lex.Polite.MatchString(lower) {
		urgency += politeBump
	}

	summary, cut := truncateRunes(text, SummaryLength)
	if cut {
		summary += "..."
	}

	return Analysis{
		Sentiment:       sentiment,
		SentimentScore:  score,
		Topics:          topics,
		Keywords:        keywords,
		FeatureMentions: features,
		UrgencyScore:    clampUrgency(urgency),
		Summary:         summary,
	}
}

func (r *RuleAnnotator) isStopWord(tok string) bool {
	lower := strings.ToLower(tok)
	for _, s := range r.lex.StopWords {
		if lower == s {
			return true
		}
	}
	return false
}
