package nlp

import (
	"math"
	"unicode/utf8"
)

// Sentiment is the banded label derived from a sentiment score.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
	Neutral  Sentiment = "neutral"
)

// Valid reports whether s is one of the three labels.
func (s Sentiment) Valid() bool {
	switch s {
	case Positive, Negative, Neutral:
		return true
	}
	return false
}

const (
	// SentimentBand is the half-width of the neutral band around zero.
	SentimentBand = 0.2

	MinUrgency     = 1
	MaxUrgency     = 10
	DefaultUrgency = 5

	MaxTopics     = 4
	MaxKeywords   = 5
	SummaryLength = 100
)

// Analysis is the structured annotation produced for one feedback text.
// The jsonschema tags describe the shape requested from the model.
type Analysis struct {
	Sentiment       Sentiment `json:"sentiment" jsonschema:"required,enum=positive,enum=negative,enum=neutral"`
	SentimentScore  float64   `json:"sentiment_score" jsonschema:"required,minimum=-1,maximum=1,description=-1 is very negative and 1 is very positive"`
	Topics          []string  `json:"topics" jsonschema:"required,minItems=2,maxItems=4,description=High-level categories such as UI/UX or Performance or Features or Pricing or Support"`
	Keywords        []string  `json:"keywords" jsonschema:"required,minItems=3,maxItems=5,description=The most meaningful words from the feedback"`
	FeatureMentions []string  `json:"feature_mentions" jsonschema:"required,description=Specific product features mentioned such as dashboard or mobile app or search"`
	UrgencyScore    int       `json:"urgency_score" jsonschema:"required,minimum=1,maximum=10,description=1 is low and 10 is critical"`
	Summary         string    `json:"summary" jsonschema:"required,description=One sentence summary of the feedback"`
}

// LabelFor maps a score onto its sentiment label. Every code path that
// derives a label goes through here so label and score never disagree.
func LabelFor(score float64) Sentiment {
	switch {
	case score > SentimentBand:
		return Positive
	case score < -SentimentBand:
		return Negative
	default:
		return Neutral
	}
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(-1, math.Min(1, score))
}

func clampUrgency(u int) int {
	if u < MinUrgency {
		return MinUrgency
	}
	if u > MaxUrgency {
		return MaxUrgency
	}
	return u
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// truncateRunes returns the first n runes of s and whether anything was cut.
func truncateRunes(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		values = values[:n]
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
