// Package graph runs the canonical forex analysis as an eino graph:
// query analysis, then the data nodes the query needs, then synthesis.
package graph

import (
	"github.com/dyike/forexcell/models"
)

// Node names.
const (
	QueryAnalysis = "query_analysis"
	MarketData    = "market_data"
	Economic      = "economic"
	Technical     = "technical"
	Synthesis     = "synthesis"
)

// AnalysisState flows through every node.
type AnalysisState struct {
	Query    string `json:"query"`
	Pair     string `json:"currency_pair"`
	Interval string `json:"interval"`

	QueryAnalysis *models.QueryAnalysis `json:"query_analysis,omitempty"`
	MarketData    map[string]any        `json:"market_data,omitempty"`
	EconomicData  map[string]any        `json:"economic_data,omitempty"`
	TechnicalData map[string]any        `json:"technical_data,omitempty"`
	Report        map[string]any        `json:"report,omitempty"`

	Visited []string          `json:"visited"`
	Skipped []string          `json:"skipped,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func NewAnalysisState(pair, query string) *AnalysisState {
	return &AnalysisState{
		Query:    query,
		Pair:     pair,
		Interval: "1h",
		Errors:   map[string]string{},
	}
}

// route is the graph-local state: the data nodes still to visit.
type route struct {
	Pending []string
	Goto    string
}
