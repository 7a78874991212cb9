package models

// QueryAnalysis is the LLM's reading of a free-form user question.
type QueryAnalysis struct {
	IdentifiedPairs     []string `json:"identified_currency_pairs"`
	PrimaryPair         string   `json:"primary_currency_pair"`
	QueryType           string   `json:"query_type"`
	UserConcerns        []string `json:"user_concerns"`
	AnalysisFocus       []string `json:"analysis_focus"`
	RequiredData        []string `json:"required_data"`
	AnalysisSuggestions []string `json:"analysis_suggestions"`
	ComplexityLevel     string   `json:"complexity_level"`
	Source              string   `json:"source,omitempty"`
}

// NeedsData reports whether the analysis asked for the given data kind.
// An empty RequiredData list means everything is needed.
func (q *QueryAnalysis) NeedsData(kind string) bool {
	if q == nil || len(q.RequiredData) == 0 {
		return true
	}
	for _, d := range q.RequiredData {
		if d == kind {
			return true
		}
	}
	return false
}

// Data kinds referenced by QueryAnalysis.RequiredData.
const (
	DataMarket    = "market_data"
	DataEconomic  = "economic_data"
	DataTechnical = "technical_indicators"
	DataNews      = "news_sentiment"
)

// ReasoningPlan is the first ReAct step: which pair and which data to collect.
type ReasoningPlan struct {
	Reasoning             string   `json:"reasoning"`
	TargetPair            string   `json:"target_currency_pair"`
	NeedEconomicData      bool     `json:"need_economic_data"`
	NeedTechnicalAnalysis bool     `json:"need_technical_analysis"`
	NeedMarketData        bool     `json:"need_market_data"`
	NeedNewsAnalysis      bool     `json:"need_news_analysis"`
	InvestigationSteps    []string `json:"investigation_steps"`
	KeyFactors            []string `json:"key_factors"`
	ExpectedDataSources   []string `json:"expected_data_sources"`
	Source                string   `json:"source,omitempty"`
}

type EvidenceEvaluation struct {
	Reasoning          string   `json:"reasoning"`
	EvidenceSufficient bool     `json:"evidence_sufficient"`
	NeedMoreData       bool     `json:"need_more_data"`
	MissingInformation []string `json:"missing_information"`
	KeyInsights        []string `json:"key_insights"`
	NextSteps          []string `json:"next_steps"`
	ConfidenceLevel    string   `json:"confidence_level"`
}

type FinalAnalysis struct {
	ProcessSummary     string            `json:"reasoning_process_summary"`
	KeyFindings        []string          `json:"key_findings"`
	PrimaryCauses      []string          `json:"primary_causes"`
	SupportingEvidence map[string]string `json:"supporting_evidence"`
	ConfidenceLevel    string            `json:"confidence_level"`
	FinalConclusion    string            `json:"final_conclusion"`
	Recommendations    []string          `json:"recommendations"`
	Limitations        []string          `json:"limitations"`
}

// DataAvailability summarizes which inputs reached the synthesis step.
type DataAvailability struct {
	HasMarketData     bool   `json:"has_market_data"`
	HasEconomicData   bool   `json:"has_economic_data"`
	HasTechnicalData  bool   `json:"has_technical_data"`
	MarketDataType    string `json:"market_data_type,omitempty"`
	EconomicDataType  string `json:"economic_data_type,omitempty"`
	TechnicalDataType string `json:"technical_data_type,omitempty"`
}

// Sources lists the available inputs in a fixed order.
func (d DataAvailability) Sources() []string {
	var out []string
	if d.HasMarketData {
		out = append(out, "market")
	}
	if d.HasEconomicData {
		out = append(out, "economic")
	}
	if d.HasTechnicalData {
		out = append(out, "technical")
	}
	return out
}

// ComprehensiveReport is the final markdown analysis.
type ComprehensiveReport struct {
	Success       bool             `json:"success"`
	Analysis      string           `json:"analysis"`
	QueryAnalysis *QueryAnalysis   `json:"query_analysis,omitempty"`
	DataContext   DataAvailability `json:"data_context"`
	Focus         []string         `json:"analysis_focus"`
	Model         string           `json:"model_used"`
	UserQuery     string           `json:"user_query"`
	Sources       []string         `json:"data_sources_used"`
	Fallback      bool             `json:"fallback,omitempty"`
}
