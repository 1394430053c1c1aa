package analytics

import (
	"pulse/models"
)

// UrgentThreshold is the urgency score at which feedback counts as urgent.
const UrgentThreshold = 8

const digestTopN = 5

type SentimentCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Digest is the compact summary handed to the insight generator.
type Digest struct {
	Total       int             `json:"total"`
	Sentiment   SentimentCounts `json:"sentiment"`
	TopTopics   []string        `json:"topTopics"`
	TopFeatures []string        `json:"topFeatures"`
	UrgentCount int             `json:"urgentCount"`
}

// NewDigest condenses a summary and the feedback it was built from.
func NewDigest(s Summary, feedback []models.Feedback) Digest {
	d := Digest{
		Total: s.Sentiment.Total,
		Sentiment: SentimentCounts{
			Positive: s.Sentiment.Positive,
			Negative: s.Sentiment.Negative,
			Neutral:  s.Sentiment.Neutral,
		},
		TopTopics:   []string{},
		TopFeatures: []string{},
	}
	for i, t := range s.Topics {
		if i == digestTopN {
			break
		}
		d.TopTopics = append(d.TopTopics, t.Topic)
	}
	for i, f := range s.Features {
		if i == digestTopN {
			break
		}
		d.TopFeatures = append(d.TopFeatures, f.Feature)
	}
	for _, f := range feedback {
		if f.Annotation != nil && f.Annotation.UrgencyScore >= UrgentThreshold {
			d.UrgentCount++
		}
	}
	return d
}
