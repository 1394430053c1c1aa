package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pulse/db"
	"pulse/models"
)

const (
	defaultRating = 3
	storeChunk    = 500
)

// ReviewSection represents a parsed markdown section
type ReviewSection struct {
	Title      string
	AuthorName string
	PostedDate string
	Content    string
	Rating     int
	SourceURL  string
}

// Record is one entry of a JSON import file. Both the API field names and
// the tweet export names are accepted.
type Record struct {
	CustomerID string         `json:"customer_id"`
	Username   string         `json:"username"`
	ProductID  string         `json:"product_id"`
	Text       string         `json:"feedback_text"`
	AltText    string         `json:"text"`
	Rating     int            `json:"rating"`
	Source     string         `json:"source"`
	URL        string         `json:"url"`
	CreatedAt  string         `json:"created_at"`
	Metadata   map[string]any `json:"metadata"`
}

type Options struct {
	ProductID string
	// Source overrides the source inferred from the file name.
	Source string
}

type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

type Importer struct {
	store db.FeedbackStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewImporter(store db.FeedbackStore, log zerolog.Logger) *Importer {
	return &Importer{store: store, log: log, now: time.Now}
}

// ImportFile reads a markdown review dump or a JSON array and stores the
// feedback it contains.
func (im *Importer) ImportFile(ctx context.Context, path string, opts Options) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	if opts.Source == "" {
		opts.Source = DetermineSource(filepath.Base(path))
	}
	if !models.ValidSource(opts.Source) {
		return Result{}, models.Invalid("source", "must be one of: %s", strings.Join(models.Sources, ", "))
	}

	var rows []*models.Feedback
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		sections, err := ParseMarkdown(file)
		if err != nil {
			return Result{}, err
		}
		rows = im.fromSections(sections, opts)
	case ".json":
		var records []Record
		if err := json.NewDecoder(file).Decode(&records); err != nil {
			return Result{}, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		rows = im.fromRecords(records, opts)
	default:
		return Result{}, models.Invalid("file", "unsupported file type %q", filepath.Ext(path))
	}

	return im.save(ctx, rows, path)
}

// save drops unusable rows and stores the rest in chunks.
func (im *Importer) save(ctx context.Context, rows []*models.Feedback, origin string) (Result, error) {
	res := Result{}
	var valid []*models.Feedback
	for _, f := range rows {
		if strings.TrimSpace(f.Text) == "" || f.Rating < 1 || f.Rating > 5 || !models.ValidSource(f.Source) {
			im.log.Warn().Str("customer_id", f.CustomerID).Int("rating", f.Rating).Msg("skipping invalid feedback")
			res.Skipped++
			continue
		}
		valid = append(valid, f)
	}

	for start := 0; start < len(valid); start += storeChunk {
		chunk := valid[start:min(start+storeChunk, len(valid))]
		if err := im.store.CreateFeedbackBatch(ctx, chunk); err != nil {
			return res, fmt.Errorf("failed to store feedback: %w", err)
		}
		res.Imported += len(chunk)
	}

	im.log.Info().Str("origin", origin).Int("imported", res.Imported).Int("skipped", res.Skipped).Msg("feedback import completed")
	return res, nil
}

func (im *Importer) fromSections(sections []ReviewSection, opts Options) []*models.Feedback {
	out := make([]*models.Feedback, 0, len(sections))
	for _, s := range sections {
		f := &models.Feedback{
			CustomerID: s.AuthorName,
			ProductID:  opts.ProductID,
			Text:       s.Content,
			Rating:     s.Rating,
			Source:     opts.Source,
			Metadata:   map[string]any{},
		}
		if f.Rating == 0 {
			f.Rating = defaultRating
		}
		if s.Title != "" {
			f.Metadata["title"] = s.Title
		}
		if s.SourceURL != "" {
			f.Metadata["url"] = s.SourceURL
		}
		f.CreatedAt = im.parseDate(s.PostedDate)
		out = append(out, f)
	}
	return out
}

func (im *Importer) fromRecords(records []Record, opts Options) []*models.Feedback {
	out := make([]*models.Feedback, 0, len(records))
	for _, r := range records {
		f := &models.Feedback{
			CustomerID: firstNonEmpty(r.CustomerID, r.Username),
			ProductID:  firstNonEmpty(r.ProductID, opts.ProductID),
			Text:       firstNonEmpty(r.Text, r.AltText),
			Rating:     r.Rating,
			Source:     firstNonEmpty(r.Source, opts.Source),
			Metadata:   r.Metadata,
		}
		if f.Metadata == nil {
			f.Metadata = map[string]any{}
		}
		if f.Rating == 0 {
			f.Rating = defaultRating
		}
		if r.URL != "" {
			f.Metadata["url"] = r.URL
		}
		f.CreatedAt = im.parseDate(r.CreatedAt)
		out = append(out, f)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// ParseMarkdown splits a review dump into sections. Each section starts with
// a "### Title" line and may carry "**URL**:", "*by Author - Date*" and star
// rating lines; everything else is content.
func ParseMarkdown(r io.Reader) ([]ReviewSection, error) {
	var (
		sections []ReviewSection
		current  *ReviewSection
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "### "):
			if current != nil {
				sections = append(sections, *current)
			}
			current = &ReviewSection{Title: strings.TrimSpace(strings.TrimPrefix(line, "### "))}

		case current == nil:
			continue

		case strings.Contains(line, "**URL**:"):
			current.SourceURL = strings.TrimSpace(strings.SplitN(line, "**URL**:", 2)[1])

		case strings.HasPrefix(strings.TrimSpace(line), "*by"):
			byline := strings.Trim(strings.TrimSpace(line), "*")
			author, date, _ := strings.Cut(strings.TrimPrefix(byline, "by"), " - ")
			current.AuthorName = strings.TrimSpace(author)
			current.PostedDate = strings.TrimSpace(date)

		case strings.Contains(line, "★"):
			current.Rating = strings.Count(line, "★")

		default:
			if len(strings.TrimSpace(line)) > 0 && !strings.HasPrefix(line, "#") {
				if len(current.Content) > 0 {
					current.Content += "\n"
				}
				current.Content += line
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read markdown: %w", err)
	}

	if current != nil {
		sections = append(sections, *current)
	}
	return sections, nil
}

// DetermineSource maps an export file name to a feedback source.
func DetermineSource(fileName string) string {
	name := strings.ToLower(fileName)
	switch {
	case strings.Contains(name, "appstore"), strings.Contains(name, "playstore"), strings.Contains(name, "review"):
		return models.SourceAppReview
	case strings.Contains(name, "reddit"), strings.Contains(name, "tweet"), strings.Contains(name, "twitter"):
		return models.SourceSocialMedia
	case strings.Contains(name, "ticket"), strings.Contains(name, "support"):
		return models.SourceSupportTicket
	default:
		return models.SourceSurvey
	}
}

func (im *Importer) parseDate(dateStr string) time.Time {
	formats := []string{
		"January 2, 2006",
		"Jan 2, 2006",
		"2006-01-02",
		time.RFC3339,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, strings.TrimSpace(dateStr)); err == nil {
			return t.UTC()
		}
	}

	// Fall back to import time
	return im.now().UTC()
}
