package economic

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dyike/forexcell/models"
)

var ErrUnknownEvent = errors.New("no explanation for event")

var eventExplanations = map[string]models.EventExplanation{
	"US Nonfarm Payrolls": {
		WhatIsIt:     "Monthly change in US non-farm employment",
		WhyItMatters: "The main read on the US labour market and a key input to Federal Reserve policy",
		TypicalImpact: models.ImpactProfile{
			Direction: "Stronger than expected supports USD, weaker weighs on it",
			Magnitude: "High volatility, moves of 50-100 pips are common",
			Duration:  "Hours to days",
		},
		AffectedCurrencies: []string{"USD", "EUR/USD", "GBP/USD", "USD/JPY"},
		MarketExpectations: &models.MarketExpectations{
			ConsensusForecast: "Median of economist surveys",
			PreviousValue:     "Compare with the revised prior month",
			DeviationImpact:   "A 0.1% miss can trigger a large move",
		},
		TradingImplications: &models.TradingImplications{
			PreEventStrategy:  "Reduce size and widen stops",
			PostEventReaction: "Wait 5-10 minutes after the release before entering",
			RiskManagement:    "Trade it as an event with strict position limits",
		},
	},
	"US CPI Data": {
		WhatIsIt:     "US consumer price index, the price change of a basket of goods and services",
		WhyItMatters: "The core inflation gauge that drives Federal Reserve rate decisions",
		TypicalImpact: models.ImpactProfile{
			Direction: "Hotter than expected supports USD, cooler weighs on it",
			Magnitude: "Very high volatility, core CPI matters most",
			Duration:  "Until the next Federal Reserve meeting",
		},
		AffectedCurrencies: []string{"USD", "all major pairs"},
		MarketExpectations: &models.MarketExpectations{
			ConsensusForecast: "Focus on the expected core CPI year-on-year rate",
			PreviousValue:     "Compare with the prior month trend",
			DeviationImpact:   "A 0.1% surprise in core CPI can reprice expectations",
		},
		TradingImplications: &models.TradingImplications{
			PreEventStrategy:  "Avoid opening new positions before the release",
			PostEventReaction: "Watch how the market reprices the Fed path",
			RiskManagement:    "Use breakout entries around key technical levels",
		},
	},
	"Federal Reserve Meeting": {
		WhatIsIt:     "The Federal Open Market Committee rate meeting",
		WhyItMatters: "Sets US monetary policy and steers global capital flows",
		TypicalImpact: models.ImpactProfile{
			Direction: "Hawkish signals support USD, dovish signals weigh on it",
			Magnitude: "Very high volatility, statement wording is key",
			Duration:  "Weeks to months",
		},
		AffectedCurrencies: []string{"USD", "all pairs", "gold"},
		MarketExpectations: &models.MarketExpectations{
			ConsensusForecast: "Watch the dot plot and inflation projections",
			PreviousValue:     "Compare with the previous statement",
			DeviationImpact:   "Any change in wording matters",
		},
		TradingImplications: &models.TradingImplications{
			PreEventStrategy:  "Cut exposure and mark technical levels",
			PostEventReaction: "Read the statement and the press conference",
			RiskManagement:    "Scale in and use trailing stops",
		},
	},
	"ECB Interest Rate Decision": {
		WhatIsIt:     "European Central Bank policy meeting and rate decision",
		WhyItMatters: "Sets euro area monetary policy and the euro exchange rate",
		TypicalImpact: models.ImpactProfile{
			Direction: "Hikes or hawkish tone support EUR, cuts or dovish tone weigh on it",
			Magnitude: "High volatility, the press conference matters",
			Duration:  "Until the next meeting",
		},
		AffectedCurrencies: []string{"EUR", "EUR/USD", "EUR/GBP", "EUR/JPY"},
		MarketExpectations: &models.MarketExpectations{
			ConsensusForecast: "Watch the rate decision and asset purchases",
			PreviousValue:     "Compare the inflation and growth projections",
			DeviationImpact:   "A change in the President's tone has a large effect",
		},
		TradingImplications: &models.TradingImplications{
			PreEventStrategy:  "Track euro area inflation and growth data",
			PostEventReaction: "Read the policy statement and press conference",
			RiskManagement:    "Place event-driven stop orders",
		},
	},
	"Bank of England Rate Decision": {
		WhatIsIt:     "Bank of England Monetary Policy Committee rate decision",
		WhyItMatters: "Sets the UK base rate and the pound exchange rate",
		TypicalImpact: models.ImpactProfile{
			Direction: "Hikes support GBP, cuts weigh on it",
			Magnitude: "High volatility, the vote split matters",
			Duration:  "Days to weeks",
		},
		AffectedCurrencies: []string{"GBP", "GBP/USD", "EUR/GBP"},
		MarketExpectations: &models.MarketExpectations{
			ConsensusForecast: "Watch the expected vote split",
			PreviousValue:     "Compare with the Monetary Policy Report forecasts",
			DeviationImpact:   "An unexpected vote has a large effect",
		},
		TradingImplications: &models.TradingImplications{
			PreEventStrategy:  "Review UK inflation and employment data",
			PostEventReaction: "Read the minutes and the Governor's remarks",
			RiskManagement:    "Trade the news with tight risk",
		},
	},
}

var eventAliases = map[string]string{
	"NFP":      "US Nonfarm Payrolls",
	"NONFARM":  "US Nonfarm Payrolls",
	"PAYROLLS": "US Nonfarm Payrolls",
	"CPI":      "US CPI Data",
	"FED":      "Federal Reserve Meeting",
	"FOMC":     "Federal Reserve Meeting",
	"ECB":      "ECB Interest Rate Decision",
	"BOE":      "Bank of England Rate Decision",
}

var eventAdvice = map[string]models.EventAdvice{
	"US Nonfarm Payrolls": {
		Strategy:       "Breakout trading",
		RiskManagement: "Wait five minutes after the release before entering",
		KeyLevels:      "Previous session high and low",
	},
	"US CPI Data": {
		Strategy:       "Trend following",
		RiskManagement: "Core CPI matters more than the headline",
		KeyLevels:      "Shifts in inflation expectations",
	},
	"Federal Reserve Meeting": {
		Strategy:       "Statement-driven trading",
		RiskManagement: "Watch for changes in the dot plot",
		KeyLevels:      "Combine technical and fundamental levels",
	},
}

var defaultEventAdvice = models.EventAdvice{
	Strategy:       "Trade cautiously",
	RiskManagement: "Use sensible stops",
	KeyLevels:      "Watch major technical levels",
}

// AvailableEvents lists the events with a detailed explanation.
func AvailableEvents() []string {
	names := make([]string, 0, len(eventExplanations))
	for name := range eventExplanations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EventDetails is the explanation of one economic event and how to trade it.
type EventDetails struct {
	Success      bool                    `json:"success"`
	EventName    string                  `json:"event_name"`
	CurrencyPair string                  `json:"currency_pair,omitempty"`
	Explanation  models.EventExplanation `json:"detailed_explanation"`
	Advice       models.EventAdvice      `json:"trading_advice"`
}

// LookupEvent resolves a full event name or a short alias such as "NFP".
func LookupEvent(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if _, ok := eventExplanations[name]; ok {
		return name, true
	}
	if full, ok := eventAliases[strings.ToUpper(name)]; ok {
		return full, true
	}
	for full := range eventExplanations {
		if strings.EqualFold(full, name) {
			return full, true
		}
	}
	return "", false
}

func (c *Calendar) EventDetails(name, pair string) (*EventDetails, error) {
	full, ok := LookupEvent(name)
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownEvent, name, strings.Join(AvailableEvents(), ", "))
	}
	advice, ok := eventAdvice[full]
	if !ok {
		advice = defaultEventAdvice
	}
	return &EventDetails{
		Success:      true,
		EventName:    full,
		CurrencyPair: pair,
		Explanation:  eventExplanations[full],
		Advice:       advice,
	}, nil
}
