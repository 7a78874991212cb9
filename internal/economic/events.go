package economic

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/dyike/forexcell/internal/dataflows"
	"github.com/dyike/forexcell/models"
)

const (
	ImpactVeryHigh = "very_high"
	ImpactHigh     = "high"
	ImpactMedium   = "medium"
)

type indicatorSpec struct {
	function    string
	interval    string
	name        string
	impact      string
	currency    string
	description string
	explainKey  string
}

// indicators are the released US series fetched for every analysis.
var indicators = []indicatorSpec{
	{"CPI", "monthly", "US Consumer Price Index (CPI)", ImpactHigh, "USD", "Core measure of US inflation", "US CPI Data"},
	{"FEDERAL_FUNDS_RATE", "", "US Federal Funds Rate", ImpactVeryHigh, "USD", "The Federal Reserve's policy benchmark rate", "Federal Reserve Meeting"},
	{"UNEMPLOYMENT", "monthly", "US Unemployment Rate", ImpactHigh, "USD", "Health of the US labour market", ""},
}

func isHighImpact(impact string) bool {
	return impact == ImpactHigh || impact == ImpactVeryHigh
}

// Events fetches the latest release of each indicator, newest first. When
// nothing can be fetched a single CPI placeholder is returned.
func (c *Calendar) Events(ctx context.Context) models.EventsSnapshot {
	if c.offline() {
		return c.fallbackEvents()
	}

	var (
		events    []models.EconomicEvent
		attempted int
	)
	for _, spec := range indicators {
		if c.source.LimitReached() {
			break
		}
		attempted++
		series, err := c.source.EconomicIndicator(ctx, spec.function, spec.interval)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			c.log.Warn().Err(err).Str("indicator", spec.function).Msg("indicator unavailable")
			continue
		}
		if series == nil || len(series.Data) == 0 {
			continue
		}
		events = append(events, eventFromRelease(spec, series.Data[0]))
	}
	if len(events) == 0 {
		return c.fallbackEvents()
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Date > events[j].Date })
	snap := models.EventsSnapshot{
		Events:               events,
		NextEvent:            &events[0],
		SuccessfulIndicators: len(events),
		AttemptedIndicators:  attempted,
		Source:               "alpha_vantage_historical_data",
	}
	for _, ev := range events {
		if isHighImpact(ev.Impact) {
			snap.HighImpactCount++
		}
	}
	return snap
}

func eventFromRelease(spec indicatorSpec, point dataflows.IndicatorPoint) models.EconomicEvent {
	value, date := point.Value, point.Date
	if value == "" {
		value = "N/A"
	}
	if date == "" {
		date = "N/A"
	}
	return models.EconomicEvent{
		Name:           spec.name,
		Date:           date,
		Time:           "released",
		Impact:         spec.impact,
		CurrencyImpact: []string{spec.currency},
		ActualValue:    value,
		Status:         "released",
		Explanation:    explanationFor(spec),
		DataSource:     "Alpha Vantage",
		Importance:     "historical actual data",
	}
}

func explanationFor(spec indicatorSpec) *models.EventExplanation {
	if e, ok := eventExplanations[spec.explainKey]; ok {
		return &e
	}
	return &models.EventExplanation{
		WhatIsIt:     spec.description,
		WhyItMatters: "The release moves " + spec.currency + " and monetary policy expectations",
		TypicalImpact: models.ImpactProfile{
			Direction: "Better than expected supports " + spec.currency + ", worse than expected weighs on it",
			Magnitude: spec.impact + " volatility",
			Duration:  "hours to days",
		},
	}
}

func (c *Calendar) fallbackEvents() models.EventsSnapshot {
	cpi := eventExplanations["US CPI Data"]
	ev := models.EconomicEvent{
		Name:           "US Consumer Price Index (CPI)",
		Date:           c.now().Format("2006-01-02"),
		Time:           "released",
		Impact:         ImpactHigh,
		CurrencyImpact: []string{"USD"},
		ActualValue:    "fetch the latest value with an API key",
		Status:         "requires API",
		Explanation:    &cpi,
		DataSource:     "Alpha Vantage (requires a valid API key)",
		Importance:     "core inflation indicator",
	}
	events := []models.EconomicEvent{ev}
	return models.EventsSnapshot{
		Events:          events,
		NextEvent:       &events[0],
		HighImpactCount: 1,
		Source:          "fallback_historical_data",
	}
}

func calendarEvents(events []models.EconomicEvent) []models.CalendarEvent {
	out := make([]models.CalendarEvent, 0, len(events))
	for _, ev := range events {
		explanation := ev.Explanation
		if e, ok := eventExplanations[ev.Name]; ok {
			explanation = &e
		}
		impact := ev.Impact
		if impact == "" {
			impact = ImpactMedium
		}
		out = append(out, models.CalendarEvent{
			EventName:       ev.Name,
			EventDate:       ev.Date,
			EventTime:       ev.Time,
			Country:         CountryForEvent(ev.Name),
			ImportanceLevel: impact,
			ActualValue:     ev.ActualValue,
			Status:          ev.Status,
			Explanation:     explanation,
		})
	}
	return out
}

var countryKeywords = []struct {
	country  string
	keywords []string
}{
	{"United States", []string{"US", "NONFARM", "CPI", "FOMC", "FED", "FEDERAL", "ISM", "PCE"}},
	{"Euro Area", []string{"ECB", "EUR", "EURO"}},
	{"United Kingdom", []string{"BANK OF ENGLAND", "BOE", "GBP", "UK"}},
	{"Japan", []string{"BOJ", "JPY", "JAPAN"}},
	{"Switzerland", []string{"CHF", "SNB"}},
	{"Canada", []string{"CAD", "BOC"}},
	{"Australia", []string{"AUD", "RBA"}},
	{"New Zealand", []string{"NZD", "RBNZ"}},
}

// CountryForEvent infers the issuing economy from an event name. Keywords
// match whole words except multi-word names.
func CountryForEvent(name string) string {
	upper := strings.ToUpper(name)
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(upper, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		words[w] = true
	}
	for _, ck := range countryKeywords {
		for _, kw := range ck.keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(upper, kw) {
					return ck.country
				}
			} else if words[kw] {
				return ck.country
			}
		}
	}
	return "Global/Unknown"
}
