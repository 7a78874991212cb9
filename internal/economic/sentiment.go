package economic

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/dyike/forexcell/models"
)

// Sentiment labels, strongest bullish first.
const (
	SentimentStrongBull = "strongly_bullish"
	SentimentMildBull   = "mildly_bullish"
	SentimentNeutral    = "neutral"
	SentimentMildBear   = "mildly_bearish"
	SentimentStrongBear = "strongly_bearish"
)

const (
	newsFetchLimit  = 15
	newsScoredLimit = 10
	maxThemes       = 3
	maxImportant    = 3
	maxTitleLength  = 100
	sourceSimulated = "simulated"
	sourceAlphaNews = "alpha_vantage"
)

var newsTopics = []string{"economy_monetary", "financial_markets"}

var themeKeywords = []struct {
	theme    string
	keywords []string
}{
	{"monetary policy", []string{"interest rate", "monetary policy", "fed", "ecb", "central bank", "rate decision"}},
	{"inflation", []string{"inflation", "cpi", "price", "consumer price"}},
	{"employment", []string{"employment", "jobs", "unemployment", "nonfarm", "payroll"}},
	{"economic growth", []string{"gdp", "growth", "economy", "economic", "recession"}},
	{"geopolitics", []string{"geopolitical", "war", "conflict", "sanctions", "trade"}},
	{"market sentiment", []string{"sentiment", "confidence", "optimism", "pessimism", "risk appetite"}},
}

var importantKeywords = []string{"rate", "inflation", "employment", "gdp", "fed", "ecb"}

var sentimentExplanations = map[string]string{
	SentimentStrongBull: "Sentiment is positive; most coverage is optimistic about the economic outlook",
	SentimentMildBull:   "Sentiment leans positive with some uncertainty",
	SentimentNeutral:    "Sentiment is balanced between bullish and bearish factors",
	SentimentMildBear:   "Sentiment leans cautious with concern about the outlook",
	SentimentStrongBear: "Sentiment is negative and risk aversion is rising",
}

// SentimentLabel buckets an average sentiment score.
func SentimentLabel(score float64) string {
	switch {
	case score > 0.2:
		return SentimentStrongBull
	case score > 0.05:
		return SentimentMildBull
	case score < -0.2:
		return SentimentStrongBear
	case score < -0.05:
		return SentimentMildBear
	default:
		return SentimentNeutral
	}
}

// DetectThemes returns the themes whose keywords appear in text.
func DetectThemes(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, t := range themeKeywords {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				out = append(out, t.theme)
				break
			}
		}
	}
	return out
}

// News fetches and scores the latest articles for pair, falling back to
// simulated sentiment when the feed is unavailable or empty.
func (c *Calendar) News(ctx context.Context, pair string) models.SentimentSummary {
	if c.offline() {
		return c.simulatedSentiment(pair)
	}
	articles, err := c.source.NewsSentiment(ctx, pairTickers[pair], newsTopics, newsFetchLimit)
	if err != nil {
		c.log.Warn().Err(err).Str("pair", pair).Msg("news sentiment unavailable, simulating")
		return c.simulatedSentiment(pair)
	}
	if len(articles) == 0 {
		return c.simulatedSentiment(pair)
	}
	return ScoreArticles(articles)
}

// ScoreArticles aggregates the first ten articles into a sentiment summary.
func ScoreArticles(articles []models.NewsArticle) models.SentimentSummary {
	var (
		sum       float64
		scored    int
		counts    = map[string]int{}
		important []models.ImportantArticle
	)
	for i, a := range articles {
		if i == newsScoredLimit {
			break
		}
		if a.SentimentScore != 0 {
			sum += a.SentimentScore
			scored++
		}
		content := strings.ToLower(a.Title + " " + a.Summary)
		for _, theme := range DetectThemes(content) {
			counts[theme]++
		}
		if containsAny(content, importantKeywords) {
			label := a.SentimentLabel
			if label == "" {
				label = "Neutral"
			}
			relevance := a.RelevanceScore
			if relevance == "" {
				relevance = "0"
			}
			important = append(important, models.ImportantArticle{
				Title:     truncate(a.Title, maxTitleLength),
				Sentiment: label,
				Relevance: relevance,
			})
		}
	}

	avg := 0.0
	if scored > 0 {
		avg = sum / float64(scored)
	}
	label := SentimentLabel(avg)
	if len(important) > maxImportant {
		important = important[:maxImportant]
	}
	if important == nil {
		important = []models.ImportantArticle{}
	}
	return models.SentimentSummary{
		Sentiment:         label,
		Score:             math.Round(avg*1000) / 1000,
		Explanation:       sentimentExplanations[label],
		KeyThemes:         topThemes(counts),
		ImportantArticles: important,
		TotalArticles:     len(articles),
		Source:            sourceAlphaNews,
	}
}

// topThemes orders themes by frequency; ties keep the keyword table order.
func topThemes(counts map[string]int) []string {
	themes := make([]string, 0, len(counts))
	rank := map[string]int{}
	for i, t := range themeKeywords {
		rank[t.theme] = i
		if counts[t.theme] > 0 {
			themes = append(themes, t.theme)
		}
	}
	sort.SliceStable(themes, func(i, j int) bool {
		if counts[themes[i]] != counts[themes[j]] {
			return counts[themes[i]] > counts[themes[j]]
		}
		return rank[themes[i]] < rank[themes[j]]
	})
	if len(themes) > maxThemes {
		themes = themes[:maxThemes]
	}
	return themes
}

var simulatedBuckets = []struct {
	label   string
	weight  float64
	low, hi float64
}{
	{SentimentStrongBull, 0.20, 0.21, 0.5},
	{SentimentMildBull, 0.25, 0.06, 0.2},
	{SentimentNeutral, 0.30, -0.05, 0.05},
	{SentimentMildBear, 0.15, -0.2, -0.06},
	{SentimentStrongBear, 0.10, -0.5, -0.21},
}

// simulatedSentiment is seeded by pair and date so a day's runs agree.
func (c *Calendar) simulatedSentiment(pair string) models.SentimentSummary {
	h := fnv.New64a()
	h.Write([]byte(pair + "|" + c.now().Format("2006-01-02")))
	r := rand.New(rand.NewSource(int64(h.Sum64())))

	pick := r.Float64()
	bucket := simulatedBuckets[len(simulatedBuckets)-1]
	for _, b := range simulatedBuckets {
		if pick < b.weight {
			bucket = b
			break
		}
		pick -= b.weight
	}
	score := bucket.low + r.Float64()*(bucket.hi-bucket.low)

	pool := []string{"monetary policy", "inflation", "employment", "economic growth", "geopolitics"}
	themes := make([]string, 0, maxThemes)
	for _, i := range r.Perm(len(pool))[:maxThemes] {
		themes = append(themes, pool[i])
	}
	return models.SentimentSummary{
		Sentiment:         bucket.label,
		Score:             math.Round(score*1000) / 1000,
		Explanation:       sentimentExplanations[bucket.label],
		KeyThemes:         themes,
		ImportantArticles: []models.ImportantArticle{},
		TotalArticles:     8 + r.Intn(13),
		Source:            sourceSimulated,
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
