package dataflows

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/dyike/forexcell/internal/cache"
	"github.com/dyike/forexcell/internal/metrics"
	"github.com/dyike/forexcell/models"
)

const (
	googleNewsBase = "https://news.google.com"
	newsCacheTTL   = 2 * time.Hour
)

// HeadlineScraper collects forex headlines from the Google News search page.
type HeadlineScraper struct {
	client  *resty.Client
	cache   *cache.MarketCache
	baseURL string
	now     func() time.Time
}

// NewHeadlineScraper creates a scraper. c may be nil to disable caching.
func NewHeadlineScraper(c *cache.MarketCache) *HeadlineScraper {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; forexcell/1.0)")

	return &HeadlineScraper{
		client:  client,
		cache:   c,
		baseURL: googleNewsBase,
		now:     time.Now,
	}
}

// HeadlineQuery represents parameters for a headline search
type HeadlineQuery struct {
	Query      string
	Language   string
	Country    string
	Since      time.Time
	MaxResults int
}

// Headlines returns up to MaxResults articles matching the query.
func (s *HeadlineScraper) Headlines(ctx context.Context, q HeadlineQuery) ([]models.NewsArticle, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if q.Language == "" {
		q.Language = "en"
	}
	if q.Country == "" {
		q.Country = "US"
	}
	if q.MaxResults <= 0 {
		q.MaxResults = 20
	}

	key := cache.Key("news", q.Query, q.Language, q.Country, q.Since.Format("2006-01-02"), q.MaxResults)
	if v, ok := s.cache.Get(key); ok {
		if articles, ok := v.([]models.NewsArticle); ok {
			return articles, nil
		}
	}

	var articles []models.NewsArticle
	err := WithRetry(ctx, DefaultRetryConfig(), func() error {
		resp, err := s.client.R().SetContext(ctx).Get(s.searchURL(q))
		if err != nil {
			return fmt.Errorf("fetch google news: %w", err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("HTTP error %d when fetching google news", resp.StatusCode())
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
		if err != nil {
			return fmt.Errorf("parse google news page: %w", err)
		}
		articles = s.parseResults(doc, q.Query)
		return nil
	})
	metrics.ProviderRequests.WithLabelValues("googlenews", "search", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	if len(articles) > q.MaxResults {
		articles = articles[:q.MaxResults]
	}

	s.cache.SetWithTTL(key, articles, newsCacheTTL)
	return articles, nil
}

func (s *HeadlineScraper) searchURL(q HeadlineQuery) string {
	text := q.Query
	if !q.Since.IsZero() {
		text += " after:" + q.Since.Format("2006-01-02")
	}
	v := url.Values{}
	v.Set("q", text)
	v.Set("hl", q.Language)
	v.Set("gl", q.Country)
	v.Set("ceid", q.Country+":"+q.Language)
	return s.baseURL + "/search?" + v.Encode()
}

func (s *HeadlineScraper) parseResults(doc *goquery.Document, query string) []models.NewsArticle {
	var articles []models.NewsArticle
	doc.Find("article").Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find("h3").First().Text())
		if title == "" {
			title = strings.TrimSpace(sel.Find("h4").First().Text())
		}
		if title == "" {
			title = strings.TrimSpace(sel.Find("a").Last().Text())
		}
		if title == "" {
			return
		}
		href, ok := sel.Find("a").First().Attr("href")
		if !ok {
			return
		}

		source := strings.TrimSpace(sel.Find("div[data-n-tid]").First().Text())
		if source == "" {
			source = "Google News"
		}
		published := s.now().Add(-time.Hour)
		if ts, ok := sel.Find("time").First().Attr("datetime"); ok {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				published = t
			}
		} else {
			published = s.relativeTime(sel.Find("time").First().Text())
		}

		articles = append(articles, models.NewsArticle{
			Title:       title,
			URL:         s.absoluteURL(href),
			Source:      source,
			PublishedAt: published,
			Keywords:    []string{query},
			Metadata:    map[string]string{"scraper": "google_news", "original_url": href},
		})
	})
	return articles
}

// absoluteURL unwraps redirect links and resolves relative ones.
func (s *HeadlineScraper) absoluteURL(href string) string {
	if _, target, ok := strings.Cut(href, "url="); ok {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
	}
	switch {
	case strings.HasPrefix(href, "./"):
		return s.baseURL + href[1:]
	case strings.HasPrefix(href, "/"):
		return s.baseURL + href
	}
	return href
}

var relativeAgo = regexp.MustCompile(`(\d+)\s*(minute|hour|day|week)s?\s*ago`)

// relativeTime converts "3 hours ago" style text. Unparseable text is
// treated as one hour old.
func (s *HeadlineScraper) relativeTime(text string) time.Time {
	now := s.now()
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "just now" {
		return now
	}
	if text == "yesterday" {
		return now.Add(-24 * time.Hour)
	}
	m := relativeAgo.FindStringSubmatch(text)
	if m == nil {
		return now.Add(-time.Hour)
	}
	n, _ := strconv.Atoi(m[1])
	unit := map[string]time.Duration{
		"minute": time.Minute,
		"hour":   time.Hour,
		"day":    24 * time.Hour,
		"week":   7 * 24 * time.Hour,
	}[m[2]]
	return now.Add(-time.Duration(n) * unit)
}
