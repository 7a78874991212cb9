package dataflows

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const newsPage = `<html><body>
<article>
  <a href="./articles/abc123">open</a>
  <h3>Dollar slips as Fed signals patience</h3>
  <div data-n-tid="9">Reuters</div>
  <time datetime="2024-05-01T10:00:00Z">2 hours ago</time>
</article>
<article>
  <a href="/read?url=https%3A%2F%2Fexample.com%2Fecb">open</a>
  <h4>ECB keeps rates unchanged</h4>
  <time>3 hours ago</time>
</article>
<article><span>no headline here</span></article>
</body></html>`

func TestHeadlineScraperParsesArticles(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		io.WriteString(w, newsPage)
	}))
	defer srv.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewHeadlineScraper(nil)
	s.baseURL = srv.URL
	s.now = func() time.Time { return now }

	articles, err := s.Headlines(context.Background(), HeadlineQuery{Query: "EUR/USD forex"})
	if err != nil {
		t.Fatalf("Headlines: %v", err)
	}
	if gotQuery != "EUR/USD forex" {
		t.Fatalf("query = %q", gotQuery)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[0].Source != "Reuters" || articles[0].URL != srv.URL+"/articles/abc123" {
		t.Fatalf("unexpected first article %+v", articles[0])
	}
	if !articles[0].PublishedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("published = %v", articles[0].PublishedAt)
	}
	if articles[1].URL != "https://example.com/ecb" || articles[1].Source != "Google News" {
		t.Fatalf("unexpected second article %+v", articles[1])
	}
	if !articles[1].PublishedAt.Equal(now.Add(-3 * time.Hour)) {
		t.Fatalf("relative time = %v", articles[1].PublishedAt)
	}
}

func TestHeadlineScraperLimitsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, newsPage)
	}))
	defer srv.Close()

	s := NewHeadlineScraper(nil)
	s.baseURL = srv.URL
	articles, err := s.Headlines(context.Background(), HeadlineQuery{Query: "fx", MaxResults: 1})
	if err != nil {
		t.Fatalf("Headlines: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if _, err := s.Headlines(context.Background(), HeadlineQuery{}); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := &HeadlineScraper{now: func() time.Time { return now }}
	cases := map[string]time.Duration{
		"just now":      0,
		"5 minutes ago": 5 * time.Minute,
		"1 hour ago":    time.Hour,
		"2 days ago":    48 * time.Hour,
		"1 week ago":    7 * 24 * time.Hour,
		"Yesterday":     24 * time.Hour,
		"last month":    time.Hour,
	}
	for text, ago := range cases {
		if got := s.relativeTime(text); !got.Equal(now.Add(-ago)) {
			t.Fatalf("relativeTime(%q) = %v, want %v", text, got, now.Add(-ago))
		}
	}
}
