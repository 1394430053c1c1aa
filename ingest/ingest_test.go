package ingest_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"pulse/db"
	"pulse/ingest"
	"pulse/models"
)

func TestIngest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ingest Suite")
}

const reviews = `# App Store reviews

### Crashes on upload
**URL**: https://example.com/r/1
*by jdoe - March 3, 2024*
★★
The app crashes every time I upload a large file.
Please fix this.

### Love it
*by amy - 2024-03-05*
★★★★★
Fast and clean dashboard.

### Empty one
★★★
`

var _ = Describe("ParseMarkdown", func() {
	It("splits sections and reads their fields", func() {
		sections, err := ingest.ParseMarkdown(strings.NewReader(reviews))
		Expect(err).NotTo(HaveOccurred())
		Expect(sections).To(HaveLen(3))

		Expect(sections[0]).To(Equal(ingest.ReviewSection{
			Title:      "Crashes on upload",
			AuthorName: "jdoe",
			PostedDate: "March 3, 2024",
			Content:    "The app crashes every time I upload a large file.\nPlease fix this.",
			Rating:     2,
			SourceURL:  "https://example.com/r/1",
		}))
		Expect(sections[1].Rating).To(Equal(5))
		Expect(sections[2].Content).To(BeEmpty())
	})
})

var _ = Describe("DetermineSource", func() {
	DescribeTable("maps file names",
		func(name, source string) {
			Expect(ingest.DetermineSource(name)).To(Equal(source))
		},
		Entry(nil, "appstore_reviews.md", models.SourceAppReview),
		Entry(nil, "PlayStore.json", models.SourceAppReview),
		Entry(nil, "reddit_threads.md", models.SourceSocialMedia),
		Entry(nil, "tweets.json", models.SourceSocialMedia),
		Entry(nil, "zendesk_tickets.json", models.SourceSupportTicket),
		Entry(nil, "nps_2024.md", models.SourceSurvey),
	)
})

var _ = Describe("Importer", func() {
	var (
		ctx context.Context
		mem *db.Memory
		im  *ingest.Importer
		dir string
	)

	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		ExpectWithOffset(1, os.WriteFile(path, []byte(body), 0o600)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		ctx = context.Background()
		mem = db.NewMemory()
		im = ingest.NewImporter(mem, zerolog.Nop())
		dir = GinkgoT().TempDir()
	})

	It("imports markdown and skips empty sections", func() {
		res, err := im.ImportFile(ctx, write("appstore.md", reviews), ingest.Options{ProductID: "product-a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(ingest.Result{Imported: 2, Skipped: 1}))

		rows, _, err := mem.ListFeedback(ctx, db.FeedbackFilter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		for _, f := range rows {
			Expect(f.Source).To(Equal(models.SourceAppReview))
			Expect(f.ProductID).To(Equal("product-a"))
			Expect(f.HasAnnotation).To(BeFalse())
		}
		Expect(rows[0].CustomerID).To(Equal("amy"))
		Expect(rows[1].CreatedAt).To(Equal(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)))
		Expect(rows[1].Metadata).To(HaveKeyWithValue("url", "https://example.com/r/1"))
	})

	It("imports JSON in either field style", func() {
		body := `[
		  {"customer_id": "c1", "product_id": "product-b", "feedback_text": "Pricing is too high", "rating": 2, "source": "survey"},
		  {"username": "@bob", "text": "search is slow today", "created_at": "2024-04-01T10:00:00Z", "url": "https://x.example/1"},
		  {"customer_id": "c3", "feedback_text": "bad rating", "rating": 9},
		  {"customer_id": "c4", "feedback_text": "   "}
		]`
		res, err := im.ImportFile(ctx, write("tweets.json", body), ingest.Options{ProductID: "product-c"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(ingest.Result{Imported: 2, Skipped: 2}))

		f, err := mem.GetFeedback(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.CustomerID).To(Equal("@bob"))
		Expect(f.ProductID).To(Equal("product-c"))
		Expect(f.Source).To(Equal(models.SourceSocialMedia))
		Expect(f.Rating).To(Equal(3))

		first, _ := mem.GetFeedback(ctx, 1)
		Expect(first.Source).To(Equal(models.SourceSurvey))
	})

	It("rejects unknown files and sources", func() {
		_, err := im.ImportFile(ctx, write("notes.txt", "hi"), ingest.Options{})
		Expect(err).To(MatchError(ContainSubstring("unsupported file type")))

		_, err = im.ImportFile(ctx, write("a.md", reviews), ingest.Options{Source: "email"})
		Expect(err).To(MatchError(ContainSubstring("source")))

		_, err = im.ImportFile(ctx, filepath.Join(dir, "missing.json"), ingest.Options{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Twitter import", func() {
	var (
		ctx   context.Context
		mem   *db.Memory
		calls atomic.Int32
	)

	page := func(next string, ids ...string) string {
		var data []string
		for _, id := range ids {
			data = append(data, fmt.Sprintf(`{"id": %q, "text": "tweet %s about slow search", "author_id": "u1", "created_at": "2024-05-01T12:00:00Z"}`, id, id))
		}
		return fmt.Sprintf(`{"data": [%s], "includes": {"users": [{"id": "u1", "username": "jane"}]}, "meta": {"next_token": %q}}`,
			strings.Join(data, ","), next)
	}

	BeforeEach(func() {
		ctx = context.Background()
		mem = db.NewMemory()
		calls.Store(0)
	})

	It("pages, retries throttled pages and dedupes tweets", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			n := calls.Add(1)
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer token"))
			Expect(r.URL.Query().Get("query")).To(ContainSubstring("from:acme"))
			switch {
			case r.URL.Query().Get("next_token") == "":
				fmt.Fprint(w, page("p2", "1", "2"))
			case n == 2:
				w.WriteHeader(http.StatusTooManyRequests)
			default:
				fmt.Fprint(w, page("", "2", "3"))
			}
		}))
		defer srv.Close()

		client := ingest.NewTwitterClient("token", zerolog.Nop(), ingest.WithBaseURL(srv.URL), ingest.WithPacing(0, time.Millisecond))
		res, err := ingest.NewImporter(mem, zerolog.Nop()).ImportTweets(ctx, client, "acme", ingest.Options{ProductID: "product-a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(ingest.Result{Imported: 3}))
		Expect(calls.Load()).To(BeEquivalentTo(3))

		f, err := mem.GetFeedback(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.CustomerID).To(Equal("@jane"))
		Expect(f.Source).To(Equal(models.SourceSocialMedia))
		Expect(f.Metadata).To(HaveKeyWithValue("url", "https://twitter.com/jane/status/1"))
	})

	It("gives up on client errors without retrying", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		client := ingest.NewTwitterClient("bad", zerolog.Nop(), ingest.WithBaseURL(srv.URL), ingest.WithPacing(0, time.Millisecond))
		_, err := client.FetchRecent(ctx, "acme", time.Time{}, time.Time{})
		Expect(err).To(MatchError(ContainSubstring("401")))
		Expect(calls.Load()).To(BeEquivalentTo(1))
	})
})
