package analytics

import (
	"pulse/models"
	"pulse/nlp"
)

const sampleSize = 5

// VariantMetrics describes the feedback collected for one experiment arm.
// The figures are descriptive only; no significance testing is done.
type VariantMetrics struct {
	Name         string            `json:"name"`
	Count        int               `json:"count"`
	Sentiment    SentimentCounts   `json:"sentiment"`
	AvgSentiment float64           `json:"avg_sentiment"`
	AvgRating    float64           `json:"avg_rating"`
	Sample       []models.Feedback `json:"-"`
}

type Comparison struct {
	VariantA VariantMetrics `json:"variant_a"`
	VariantB VariantMetrics `json:"variant_b"`
}

func CompareVariants(nameA string, a []models.Feedback, nameB string, b []models.Feedback) Comparison {
	return Comparison{
		VariantA: variantMetrics(nameA, a),
		VariantB: variantMetrics(nameB, b),
	}
}

func variantMetrics(name string, feedback []models.Feedback) VariantMetrics {
	m := VariantMetrics{Name: name, Count: len(feedback)}

	var scoreSum, ratingSum float64
	annotated := 0
	for _, f := range feedback {
		ratingSum += float64(f.Rating)
		if f.Annotation == nil {
			continue
		}
		annotated++
		scoreSum += f.Annotation.SentimentScore
		switch nlp.Sentiment(f.Annotation.Sentiment) {
		case nlp.Positive:
			m.Sentiment.Positive++
		case nlp.Negative:
			m.Sentiment.Negative++
		case nlp.Neutral:
			m.Sentiment.Neutral++
		}
	}

	if annotated > 0 {
		m.AvgSentiment = round(scoreSum/float64(annotated), 2)
	}
	if len(feedback) > 0 {
		m.AvgRating = round(ratingSum/float64(len(feedback)), 2)
	}

	n := min(sampleSize, len(feedback))
	m.Sample = append([]models.Feedback{}, feedback[:n]...)
	return m
}
