package lexicon

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// TopicRule maps a topic label to the pattern that detects it in lowercased text.
type TopicRule struct {
	Label   string
	Pattern *regexp.Regexp
}

// Lexicon is the static reference data used by the rule-based annotator.
// It must not be mutated once handed to an annotator.
type Lexicon struct {
	Features  []string
	Positive  []string
	Negative  []string
	StopWords []string
	Topics    []TopicRule
	Urgent    *regexp.Regexp
	Polite    *regexp.Regexp
}

var (
	defaultFeatures = []string{
		"dashboard",
		"mobile app",
		"search",
		"export",
		"analytics",
		"notifications",
		"API",
		"collaboration",
		"integration",
		"authentication",
		"pricing",
		"support",
		"documentation",
		"performance",
		"UI",
		"UX",
		"dark mode",
		"onboarding",
	}

	defaultPositive = []string{"love", "great", "amazing", "excellent", "helpful", "good", "better", "improved", "easy", "fast"}
	defaultNegative = []string{"crash", "broken", "slow", "frustrating", "bad", "terrible", "confusing", "missing", "bug", "issue"}
	defaultStop     = []string{"about", "would", "could", "should", "their", "there"}

	// Order matters: annotations keep the first four matches in this order.
	defaultTopics = []topicSpec{
		{"UI/UX", `ui|ux|interface|design|layout`},
		{"Performance", `performance|slow|fast|crash|speed|loading`},
		{"Features", `feature|integration|missing|need`},
		{"Pricing", `price|pricing|cost|expensive|plan`},
		{"Support", `support|help|customer service`},
		{"Mobile", `mobile|app|ios|android`},
		{"Documentation", `document|docs|api|guide`},
	}

	defaultUrgent = `urgent|critical|crash|broken|can't|cannot`
	defaultPolite = `please|need|important`
)

type topicSpec struct {
	Label   string `yaml:"label"`
	Pattern string `yaml:"pattern"`
}

// file is the on-disk shape of a lexicon override.
type file struct {
	Features  []string    `yaml:"features"`
	Positive  []string    `yaml:"positive"`
	Negative  []string    `yaml:"negative"`
	StopWords []string    `yaml:"stop_words"`
	Topics    []topicSpec `yaml:"topics"`
	Urgent    string      `yaml:"urgent"`
	Polite    string      `yaml:"polite"`
}

// Default returns the built-in catalog.
func Default() *Lexicon {
	lex, err := build(file{})
	if err != nil {
		panic(fmt.Sprintf("lexicon: default catalog does not compile: %v", err))
	}
	return lex
}

// Load reads a YAML override. Sections left out of the file keep their defaults.
func Load(path string) (*Lexicon, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a lexicon from YAML bytes.
func Parse(raw []byte) (*Lexicon, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	return build(f)
}

func build(f file) (*Lexicon, error) {
	lex := &Lexicon{
		Features:  orDefault(f.Features, defaultFeatures),
		Positive:  orDefault(f.Positive, defaultPositive),
		Negative:  orDefault(f.Negative, defaultNegative),
		StopWords: orDefault(f.StopWords, defaultStop),
	}

	topics := f.Topics
	if len(topics) == 0 {
		topics = defaultTopics
	}
	for _, t := range topics {
		re, err := regexp.Compile(t.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern for topic %q: %w", t.Label, err)
		}
		lex.Topics = append(lex.Topics, TopicRule{Label: t.Label, Pattern: re})
	}

	var err error
	if lex.Urgent, err = compileOr(f.Urgent, defaultUrgent); err != nil {
		return nil, fmt.Errorf("invalid urgent pattern: %w", err)
	}
	if lex.Polite, err = compileOr(f.Polite, defaultPolite); err != nil {
		return nil, fmt.Errorf("invalid polite pattern: %w", err)
	}

	return lex, nil
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		values = fallback
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func compileOr(pattern, fallback string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = fallback
	}
	return regexp.Compile(pattern)
}
