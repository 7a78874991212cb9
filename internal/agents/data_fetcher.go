package agents

import (
	"context"
	"fmt"

	"github.com/dyike/forexcell/internal/dataflows"
	"github.com/dyike/forexcell/models"
)

// MarketData is the part of dataflows.DataFetcher the agent uses.
type MarketData interface {
	Fetch(ctx context.Context, req dataflows.FetchRequest) (*models.FetchResult, error)
	BatchFetch(ctx context.Context, reqs []dataflows.FetchRequest) []*models.FetchResult
	Price(ctx context.Context, pair string) (*dataflows.PriceResult, error)
	SearchSymbols(ctx context.Context, query string, limit int) ([]dataflows.SymbolMatch, error)
	UsageStats() dataflows.UsageStats
	HealthCheck(ctx context.Context) dataflows.HealthStatus
	Capabilities() map[string]any
}

const DataFetcherName = "data_fetcher"

type DataFetcherAgent struct {
	data MarketData
}

func NewDataFetcherAgent(data MarketData) *DataFetcherAgent {
	return &DataFetcherAgent{data: data}
}

func (a *DataFetcherAgent) Name() string { return DataFetcherName }

func (a *DataFetcherAgent) Description() string {
	return "Fetches real-time quotes and historical or intraday OHLC bars for currency pairs"
}

func (a *DataFetcherAgent) Info() AgentInfo {
	return AgentInfo{
		Name:        a.Name(),
		Description: a.Description(),
		Actions:     []string{"fetch", "batch", "price", "search", "capabilities", "usage", "health"},
	}
}

func (a *DataFetcherAgent) Execute(ctx context.Context, task Task) (Result, error) {
	switch action(task, "fetch") {
	case "capabilities":
		return result(a.Name(), a.data.Capabilities())
	case "usage":
		return result(a.Name(), a.data.UsageStats())
	case "health":
		return result(a.Name(), a.data.HealthCheck(ctx))
	case "batch":
		return a.batch(ctx, task)
	case "price":
		res, err := a.data.Price(ctx, str(task, "EUR/USD", "currency_pair", "symbol"))
		if err != nil {
			return nil, err
		}
		return result(a.Name(), res)
	case "search":
		return a.search(ctx, task)
	case "fetch", "":
		res, err := a.data.Fetch(ctx, fetchRequest(task, str(task, "EUR/USD", "currency_pair", "symbol")))
		if err != nil {
			return nil, err
		}
		return result(a.Name(), res)
	default:
		return nil, fmt.Errorf("unsupported action %q", task["action"])
	}
}

func (a *DataFetcherAgent) batch(ctx context.Context, task Task) (Result, error) {
	pairs := stringList(task, "pairs")
	if len(pairs) == 0 {
		pairs = stringList(task, "currency_pairs")
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("batch requires pairs")
	}
	reqs := make([]dataflows.FetchRequest, 0, len(pairs))
	for _, p := range pairs {
		reqs = append(reqs, fetchRequest(task, p))
	}
	results := a.data.BatchFetch(ctx, reqs)
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	return result(a.Name(), map[string]any{
		"success":        ok > 0,
		"results":        results,
		"total_requests": len(results),
		"successful":     ok,
	})
}

func (a *DataFetcherAgent) search(ctx context.Context, task Task) (Result, error) {
	query := str(task, "", "query", "symbol", "currency_pair")
	if query == "" {
		return nil, fmt.Errorf("search requires a query")
	}
	matches, err := a.data.SearchSymbols(ctx, query, intVal(task, "limit", 10))
	if err != nil {
		return nil, err
	}
	return result(a.Name(), map[string]any{
		"query":   query,
		"matches": matches,
		"count":   len(matches),
	})
}

func fetchRequest(task Task, pair string) dataflows.FetchRequest {
	return dataflows.FetchRequest{
		Pair:       pair,
		DataType:   str(task, dataflows.DataRealtime, "data_type"),
		Interval:   str(task, "1h", "interval", "timeframe"),
		OutputSize: intVal(task, "output_size", 100),
	}
}
