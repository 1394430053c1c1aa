package analytics

import (
	"math"
	"sort"

	"pulse/models"
	"pulse/nlp"
)

const (
	dateLayout  = "2006-01-02"
	maxFeatures = 10
)

type SentimentMetrics struct {
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Neutral  int     `json:"neutral"`
	Total    int     `json:"total"`
	AvgScore float64 `json:"avg_score"`
}

type TrendPoint struct {
	Date     string `json:"date"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
	Neutral  int    `json:"neutral"`
	Total    int    `json:"total"`
}

type FeatureMention struct {
	Feature   string  `json:"feature"`
	Count     int     `json:"count"`
	Sentiment float64 `json:"sentiment"` // average sentiment score of the mentioning feedback
}

type TopicShare struct {
	Topic      string  `json:"topic"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"` // share of all topic occurrences
}

// Summary is the derived, never persisted rollup over a filtered feedback set.
type Summary struct {
	Sentiment SentimentMetrics `json:"sentiment"`
	Trends    []TrendPoint     `json:"trends"`
	Features  []FeatureMention `json:"features"`
	Topics    []TopicShare     `json:"topics"`
}

type featureAcc struct {
	name  string
	count int
	sum   float64
}

type topicAcc struct {
	name  string
	count int
}

// Compute aggregates feedback in a single pass. The input is assumed to be
// already filtered to the window of interest; items without an annotation
// count toward totals only.
func Compute(feedback []models.Feedback) Summary {
	var (
		metrics   SentimentMetrics
		scoreSum  float64
		annotated int

		trend    = map[string]*TrendPoint{}
		features []*featureAcc
		byFeat   = map[string]*featureAcc{}
		topics   []*topicAcc
		byTopic  = map[string]*topicAcc{}
		topicSum int
	)

	for _, f := range feedback {
		metrics.Total++

		day := f.CreatedAt.UTC().Format(dateLayout)
		point, ok := trend[day]
		if !ok {
			point = &TrendPoint{Date: day}
			trend[day] = point
		}
		point.Total++

		a := f.Annotation
		if a == nil {
			continue
		}

		annotated++
		scoreSum += a.SentimentScore
		switch nlp.Sentiment(a.Sentiment) {
		case nlp.Positive:
			metrics.Positive++
			point.Positive++
		case nlp.Negative:
			metrics.Negative++
			point.Negative++
		case nlp.Neutral:
			metrics.Neutral++
			point.Neutral++
		}

		for _, name := range a.FeatureMentions {
			acc, ok := byFeat[name]
			if !ok {
				acc = &featureAcc{name: name}
				byFeat[name] = acc
				features = append(features, acc)
			}
			acc.count++
			acc.sum += a.SentimentScore
		}

		for _, name := range a.Topics {
			acc, ok := byTopic[name]
			if !ok {
				acc = &topicAcc{name: name}
				byTopic[name] = acc
				topics = append(topics, acc)
			}
			acc.count++
			topicSum++
		}
	}

	if annotated > 0 {
		metrics.AvgScore = round(scoreSum/float64(annotated), 2)
	}

	return Summary{
		Sentiment: metrics,
		Trends:    trendSeries(trend),
		Features:  rankFeatures(features),
		Topics:    topicShares(topics, topicSum),
	}
}

func trendSeries(trend map[string]*TrendPoint) []TrendPoint {
	out := make([]TrendPoint, 0, len(trend))
	for _, p := range trend {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func rankFeatures(accs []*featureAcc) []FeatureMention {
	// Stable sort keeps first-seen order among equal counts.
	sort.SliceStable(accs, func(i, j int) bool { return accs[i].count > accs[j].count })
	if len(accs) > maxFeatures {
		accs = accs[:maxFeatures]
	}
	out := make([]FeatureMention, len(accs))
	for i, acc := range accs {
		out[i] = FeatureMention{
			Feature:   acc.name,
			Count:     acc.count,
			Sentiment: round(acc.sum/float64(acc.count), 2),
		}
	}
	return out
}

func topicShares(accs []*topicAcc, total int) []TopicShare {
	out := make([]TopicShare, 0, len(accs))
	if total == 0 {
		return out
	}
	sort.SliceStable(accs, func(i, j int) bool { return accs[i].count > accs[j].count })
	for _, acc := range accs {
		out = append(out, TopicShare{
			Topic:      acc.name,
			Count:      acc.count,
			Percentage: round(100*float64(acc.count)/float64(total), 1),
		})
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
