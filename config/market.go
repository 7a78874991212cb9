package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var timeframePattern = regexp.MustCompile(`^[1-9][0-9]*(m|min|h|d|day|w|week|mo|month)$`)

// CanonicalPair returns pair in BASE/QUOTE form. "eurusd" and "eur/usd"
// are both accepted.
func CanonicalPair(pair string) (string, bool) {
	p := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(pair), " ", ""))
	base, quote, ok := strings.Cut(p, "/")
	if !ok {
		if len(p) != 6 {
			return "", false
		}
		base, quote = p[:3], p[3:]
	}
	if !isCurrency(base) || !isCurrency(quote) || base == quote {
		return "", false
	}
	return base + "/" + quote, true
}

func isCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// normalizeMarket rewrites supported pairs to BASE/QUOTE form and drops
// duplicates. Entries that are not pairs are kept for Validate to reject.
func (c *Config) normalizeMarket() {
	c.DefaultTimeframe = strings.ToLower(strings.TrimSpace(c.DefaultTimeframe))
	if len(c.SupportedPairs) == 0 {
		return
	}
	out := make([]string, 0, len(c.SupportedPairs))
	for _, p := range c.SupportedPairs {
		if canon, ok := CanonicalPair(p); ok {
			p = canon
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	c.SupportedPairs = out
}

func (c *Config) validateMarket() error {
	for _, p := range c.SupportedPairs {
		if _, ok := CanonicalPair(p); !ok {
			return fmt.Errorf("invalid currency pair %q in supported_pairs", p)
		}
	}
	if tf := strings.ToLower(strings.TrimSpace(c.DefaultTimeframe)); tf != "" && !timeframePattern.MatchString(tf) {
		return fmt.Errorf("invalid default_timeframe %q", c.DefaultTimeframe)
	}
	switch strings.ToLower(c.MarketDataProvider) {
	case "twelvedata", "yahoo", "":
	default:
		return fmt.Errorf("unsupported market_data_provider %q", c.MarketDataProvider)
	}
	return nil
}

// pairChanges lists the pairs next adds to and removes from prev.
func pairChanges(prev, next []string) (added, removed []string) {
	for _, p := range next {
		if !slices.Contains(prev, p) {
			added = append(added, p)
		}
	}
	for _, p := range prev {
		if !slices.Contains(next, p) {
			removed = append(removed, p)
		}
	}
	return added, removed
}
