package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"pulse/models"
)

const (
	twitterAPI = "https://api.twitter.com/2"

	tweetPageSize = "100"
	maxTweetPages = 10
	maxRetries    = 3

	// recent search only reaches back seven days
	recentWindow = 7 * 24 * time.Hour
	// and rejects end times closer than ten seconds to now
	endTimeSlack = 10 * time.Second
)

type Tweet struct {
	ID        string
	Text      string
	Username  string
	CreatedAt time.Time
}

// twitterResponse is one page of the v2 recent search API.
type twitterResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		AuthorID  string `json:"author_id"`
		CreatedAt string `json:"created_at"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

// TwitterClient pulls recent tweets that mention or come from a handle.
type TwitterClient struct {
	baseURL    string
	token      string
	client     *http.Client
	pageGap    time.Duration
	retryDelay time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

type TwitterOption func(*TwitterClient)

func WithBaseURL(u string) TwitterOption {
	return func(c *TwitterClient) { c.baseURL = u }
}

// WithPacing sets the pause between pages and the first retry delay.
func WithPacing(pageGap, retryDelay time.Duration) TwitterOption {
	return func(c *TwitterClient) {
		c.pageGap = pageGap
		c.retryDelay = retryDelay
	}
}

func NewTwitterClient(bearerToken string, log zerolog.Logger, opts ...TwitterOption) *TwitterClient {
	c := &TwitterClient{
		baseURL:    twitterAPI,
		token:      bearerToken,
		client:     &http.Client{Timeout: 10 * time.Second},
		pageGap:    3 * time.Second,
		retryDelay: 5 * time.Second,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRecent pages through tweets from handle between start and end.
func (c *TwitterClient) FetchRecent(ctx context.Context, handle string, start, end time.Time) ([]Tweet, error) {
	now := c.now()
	if limit := now.Add(-endTimeSlack); end.IsZero() || end.After(limit) {
		end = limit
	}
	if oldest := now.Add(-recentWindow); start.Before(oldest) {
		c.log.Debug().Time("start", oldest).Msg("clamped start to the recent search window")
		start = oldest
	}

	var (
		all       []Tweet
		nextToken string
	)
	for page := 0; page < maxTweetPages; page++ {
		if page > 0 && c.pageGap > 0 {
			select {
			case <-time.After(c.pageGap):
			case <-ctx.Done():
				return all, ctx.Err()
			}
		}

		var (
			tweets []Tweet
			token  string
		)
		op := func() error {
			var err error
			tweets, token, err = c.fetchPage(ctx, handle, start, end, nextToken)
			return err
		}
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.retryDelay
		policy := backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
		err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
			c.log.Warn().Err(err).Int("page", page+1).Dur("retry_in", wait).Msg("tweet fetch failed, retrying")
		})
		if err != nil {
			return all, fmt.Errorf("page %d fetch failed: %w", page+1, err)
		}

		all = append(all, tweets...)
		c.log.Debug().Int("page", page+1).Int("tweets", len(tweets)).Int("total", len(all)).Msg("fetched tweets")
		if token == "" {
			break
		}
		nextToken = token
	}

	c.log.Info().Str("handle", handle).Int("tweets", len(all)).Msg("completed tweet fetch")
	return all, nil
}

func (c *TwitterClient) fetchPage(ctx context.Context, handle string, start, end time.Time, nextToken string) ([]Tweet, string, error) {
	params := url.Values{
		"query":        {fmt.Sprintf("from:%s lang:en -is:retweet", handle)},
		"tweet.fields": {"created_at,author_id"},
		"expansions":   {"author_id"},
		"user.fields":  {"username"},
		"max_results":  {tweetPageSize},
		"start_time":   {start.UTC().Format(time.RFC3339)},
		"end_time":     {end.UTC().Format(time.RFC3339)},
	}
	if nextToken != "" {
		params.Set("next_token", nextToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tweets/search/recent?"+params.Encode(), nil)
	if err != nil {
		return nil, "", backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, "", fmt.Errorf("API returned status code %d: %s", resp.StatusCode, body)
	case resp.StatusCode != http.StatusOK:
		return nil, "", backoff.Permanent(fmt.Errorf("API returned status code %d: %s", resp.StatusCode, body))
	}

	var page twitterResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", backoff.Permanent(fmt.Errorf("failed to parse JSON response: %w", err))
	}

	authors := make(map[string]string, len(page.Includes.Users))
	for _, u := range page.Includes.Users {
		authors[u.ID] = u.Username
	}

	tweets := make([]Tweet, 0, len(page.Data))
	for _, t := range page.Data {
		created, err := time.Parse(time.RFC3339, t.CreatedAt)
		if err != nil {
			c.log.Warn().Err(err).Str("tweet_id", t.ID).Msg("skipping tweet with bad timestamp")
			continue
		}
		tweets = append(tweets, Tweet{
			ID:        t.ID,
			Text:      t.Text,
			Username:  authors[t.AuthorID],
			CreatedAt: created.UTC(),
		})
	}
	return tweets, page.Meta.NextToken, nil
}

// ImportTweets fetches the last week of tweets for handle and stores them as
// social media feedback.
func (im *Importer) ImportTweets(ctx context.Context, client *TwitterClient, handle string, opts Options) (Result, error) {
	end := im.now()
	tweets, err := client.FetchRecent(ctx, handle, end.Add(-recentWindow), end)
	if err != nil {
		return Result{}, err
	}

	seen := make(map[string]bool, len(tweets))
	rows := make([]*models.Feedback, 0, len(tweets))
	for _, t := range tweets {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true

		f := &models.Feedback{
			CustomerID: "@" + t.Username,
			ProductID:  opts.ProductID,
			Text:       t.Text,
			Rating:     defaultRating,
			Source:     models.SourceSocialMedia,
			Metadata: map[string]any{
				"tweet_id": t.ID,
				"handle":   handle,
				"url":      fmt.Sprintf("https://twitter.com/%s/status/%s", t.Username, t.ID),
			},
		}
		f.CreatedAt = t.CreatedAt
		rows = append(rows, f)
	}

	return im.save(ctx, rows, "@"+handle)
}
