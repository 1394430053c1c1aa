package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pulse/db"
	"pulse/models"
	"pulse/nlp"
)

const (
	DefaultCount = 100
	DefaultSeed  = 42

	windowDays  = 30
	customers   = 100
	assignEvery = 4
)

var Texts = []string{
	"The new dashboard is amazing! Love the clean interface and fast loading times.",
	"App crashes frequently when uploading large files. Very frustrating experience.",
	"Customer support was helpful but response time could be faster.",
	"The mobile app needs dark mode. It's too bright at night.",
	"Pricing is too high compared to competitors. Consider a mid-tier plan.",
	"Export feature is broken. Can't download my data in CSV format.",
	"Love the new collaboration features! Makes team work so much easier.",
	"Search functionality is slow and often returns irrelevant results.",
	"The onboarding tutorial was clear and helpful for new users.",
	"Missing integration with Slack. This would be a game changer.",
	"UI is confusing. Took me forever to find the settings page.",
	"Performance has improved significantly after the last update!",
	"Need better documentation for the API. Current docs are incomplete.",
	"The analytics dashboard provides great insights into our data.",
	"Login process is too complicated. Should support social auth.",
	"Notifications are too frequent and can't be customized.",
	"Great product overall but needs more customization options.",
	"Data sync between devices is unreliable and causes conflicts.",
	"The new AI features are impressive and save a lot of time.",
	"Mobile app is buggy. Desktop version works much better.",
}

var Products = []string{"product-a", "product-b", "product-c"}

type clusterSpec struct {
	name        string
	description string
	priority    int
	member      func(text string, a *models.Annotation) bool
}

func containsAny(text string, words ...string) bool {
	text = strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

var clusterSpecs = []clusterSpec{
	{
		name:        "Performance Issues",
		description: "Feedback related to app speed, crashes, and loading times",
		priority:    9,
		member: func(text string, a *models.Annotation) bool {
			return a.Sentiment == string(nlp.Negative) && containsAny(text, "crash", "slow", "performance")
		},
	},
	{
		name:        "UI/UX Improvements",
		description: "Suggestions for interface design and user experience",
		priority:    7,
		member: func(text string, _ *models.Annotation) bool {
			return containsAny(text, "ui", "interface", "design")
		},
	},
	{
		name:        "Feature Requests",
		description: "New features and integrations requested by users",
		priority:    8,
		member: func(text string, _ *models.Annotation) bool {
			return containsAny(text, "need", "missing", "integration")
		},
	},
	{
		name:        "Pricing Concerns",
		description: "Feedback about pricing, plans, and value proposition",
		priority:    6,
		member: func(text string, _ *models.Annotation) bool {
			return containsAny(text, "pricing", "price", "expensive")
		},
	},
	{
		name:        "Positive Feedback",
		description: "General praise and satisfaction with the product",
		priority:    3,
		member: func(_ string, a *models.Annotation) bool {
			return a.Sentiment == string(nlp.Positive)
		},
	},
}

type Options struct {
	Count int
	Seed  uint64
	Now   time.Time
}

type Result struct {
	Feedback     int `json:"feedback"`
	Clusters     int `json:"clusters"`
	Insights     int `json:"insights"`
	Requirements int `json:"requirements"`
	ABTests      int `json:"ab_tests"`
}

// Seeder fills a store with deterministic demo data.
type Seeder struct {
	stores db.Stores
	rules  *nlp.RuleAnnotator
	log    zerolog.Logger
}

func NewSeeder(stores db.Stores, rules *nlp.RuleAnnotator, log zerolog.Logger) *Seeder {
	if rules == nil {
		rules = nlp.NewRuleAnnotator(nil)
	}
	return &Seeder{stores: stores, rules: rules, log: log}
}

func (s *Seeder) Seed(ctx context.Context, opts Options) (Result, error) {
	if opts.Count <= 0 {
		opts.Count = DefaultCount
	}
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	opts.Now = opts.Now.UTC()
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed>>1|1))

	var res Result

	rows := s.feedback(rng, opts)
	if err := s.stores.Feedback.CreateFeedbackBatch(ctx, rows); err != nil {
		return res, fmt.Errorf("failed to seed feedback: %w", err)
	}
	res.Feedback = len(rows)

	for _, spec := range clusterSpecs {
		c, ids := cluster(spec, rows)
		if err := s.stores.Clusters.SaveCluster(ctx, c, ids); err != nil {
			return res, fmt.Errorf("failed to seed cluster %q: %w", spec.name, err)
		}
		res.Clusters++
	}

	ins := insights()
	if err := s.stores.Insights.CreateInsights(ctx, ins); err != nil {
		return res, fmt.Errorf("failed to seed insights: %w", err)
	}
	res.Insights = len(ins)

	for _, r := range requirements(opts.Now) {
		if err := s.stores.Requirements.CreateRequirement(ctx, r); err != nil {
			return res, fmt.Errorf("failed to seed requirement %q: %w", r.Title, err)
		}
		res.Requirements++
	}

	for i, t := range abTests(opts.Now) {
		if err := s.stores.Experiments.CreateABTest(ctx, t); err != nil {
			return res, fmt.Errorf("failed to seed test %q: %w", t.TestName, err)
		}
		res.ABTests++
		for j, f := range rows {
			if (j+i)%assignEvery != 0 {
				continue
			}
			variant := models.VariantA
			if rng.IntN(2) == 1 {
				variant = models.VariantB
			}
			if err := s.stores.Experiments.Assign(ctx, models.ABTestAssignment{TestID: t.ID, FeedbackID: f.ID, Variant: variant}); err != nil {
				return res, fmt.Errorf("failed to assign feedback %d: %w", f.ID, err)
			}
		}
	}

	s.log.Info().
		Int("feedback", res.Feedback).
		Int("clusters", res.Clusters).
		Int("insights", res.Insights).
		Int("requirements", res.Requirements).
		Int("ab_tests", res.ABTests).
		Msg("seeded demo data")
	return res, nil
}

func (s *Seeder) feedback(rng *rand.Rand, opts Options) []*models.Feedback {
	start := opts.Now.AddDate(0, 0, -windowDays)
	span := opts.Now.Sub(start)

	rows := make([]*models.Feedback, opts.Count)
	for i := range rows {
		text := Texts[rng.IntN(len(Texts))]
		created := start.Add(time.Duration(rng.Int64N(int64(span))))

		f := &models.Feedback{
			CustomerID: fmt.Sprintf("customer-%d", rng.IntN(customers)+1),
			ProductID:  Products[rng.IntN(len(Products))],
			Text:       text,
			Rating:     rng.IntN(5) + 1,
			Source:     models.Sources[rng.IntN(len(models.Sources))],
			Metadata:   map[string]any{},
		}
		f.CreatedAt = created
		f.UpdatedAt = created
		f.Annotation = models.NewAnnotation(0, s.rules.Analyze(text), created)
		f.HasAnnotation = true
		rows[i] = f
	}
	return rows
}

func cluster(spec clusterSpec, rows []*models.Feedback) (*models.Cluster, []uint) {
	var (
		ids []uint
		sum float64
	)
	for _, f := range rows {
		if f.Annotation == nil || !spec.member(f.Text, f.Annotation) {
			continue
		}
		ids = append(ids, f.ID)
		sum += f.Annotation.SentimentScore
	}

	c := &models.Cluster{
		Name:          spec.name,
		Description:   spec.description,
		FeedbackCount: len(ids),
		PriorityScore: spec.priority,
	}
	if len(ids) > 0 {
		c.AvgSentiment = math.Round(sum/float64(len(ids))*100) / 100
	}
	return c, ids
}

func insights() []*models.Insight {
	return []*models.Insight{
		{
			Title:       "Critical: Performance degradation detected",
			Description: "15 users reported crashes in the last 48 hours. This is 3x higher than the baseline.",
			Type:        models.InsightAlert,
			Priority:    10,
			Status:      models.InsightNew,
			Data:        map[string]any{"affected_users": 15, "baseline": 5},
		},
		{
			Title:       "Trending: Dark mode requests increasing",
			Description: "Dark mode mentioned in 8 feedback items this week, up from 2 last week.",
			Type:        models.InsightTrend,
			Priority:    7,
			Status:      models.InsightNew,
			Data:        map[string]any{"current_week": 8, "last_week": 2},
		},
		{
			Title:       "Recommendation: Add Slack integration",
			Description: "Slack integration requested by 12 users. High correlation with enterprise customers.",
			Type:        models.InsightRecommendation,
			Priority:    8,
			Status:      models.InsightNew,
			Data:        map[string]any{"request_count": 12, "customer_segment": "enterprise"},
		},
	}
}

func day(now time.Time, offset int) *time.Time {
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
	return &d
}

func requirements(now time.Time) []*models.Requirement {
	return []*models.Requirement{
		{
			Title:       "Implement Dark Mode",
			Description: "Add system-wide dark mode support with automatic switching based on system preferences",
			Status:      models.RequirementActive,
			Priority:    8,
			TargetDate:  day(now, 30),
		},
		{
			Title:       "Slack Integration",
			Description: "Build native Slack integration for notifications and data sharing",
			Status:      models.RequirementDraft,
			Priority:    7,
			TargetDate:  day(now, 60),
		},
		{
			Title:       "Performance Optimization",
			Description: "Optimize app performance to reduce crashes and improve loading times",
			Status:      models.RequirementActive,
			Priority:    10,
			TargetDate:  day(now, 14),
		},
	}
}

func abTests(now time.Time) []*models.ABTest {
	at := func(days int) *time.Time {
		t := now.AddDate(0, 0, days)
		return &t
	}
	return []*models.ABTest{
		{
			TestName:     "New Onboarding Flow",
			Description:  "Testing simplified onboarding vs. current flow",
			Hypothesis:   "Simplified onboarding will reduce time-to-value and increase user satisfaction",
			VariantAName: "Current Flow",
			VariantBName: "Simplified Flow",
			Status:       models.ABTestRunning,
			StartDate:    at(-7),
		},
		{
			TestName:     "Dashboard Layout",
			Description:  "Testing card-based vs. list-based dashboard layout",
			Hypothesis:   "Card-based layout will improve information scanning and user engagement",
			VariantAName: "List Layout",
			VariantBName: "Card Layout",
			Status:       models.ABTestCompleted,
			StartDate:    at(-21),
			EndDate:      at(-7),
		},
	}
}
