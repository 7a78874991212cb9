package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyike/forexcell/internal/economic"
)

const EconomicCalendarName = "economic_calendar"

type EconomicCalendarAgent struct {
	cal *economic.Calendar
}

func NewEconomicCalendarAgent(cal *economic.Calendar) *EconomicCalendarAgent {
	return &EconomicCalendarAgent{cal: cal}
}

func (a *EconomicCalendarAgent) Name() string { return EconomicCalendarName }

func (a *EconomicCalendarAgent) Description() string {
	return "Economic releases, news sentiment and fundamental trading bias for the major pairs"
}

func (a *EconomicCalendarAgent) Info() AgentInfo {
	return AgentInfo{
		Name:        a.Name(),
		Description: a.Description(),
		Actions:     []string{"trading_analysis", "multi_currency", "event_details", "health"},
	}
}

func (a *EconomicCalendarAgent) Execute(ctx context.Context, task Task) (Result, error) {
	days := intVal(task, "days_ahead", 3)
	fundamental := boolVal(task, "include_fundamental", true)

	switch action(task, "trading_analysis") {
	case "trading_analysis", "":
		pair := str(task, "", "currency_pair", "symbol")
		out, err := a.cal.TradingAnalysis(ctx, pair, days, fundamental)
		if errors.Is(err, economic.ErrUnsupportedPair) {
			return Result{
				"success":         false,
				"agent":           a.Name(),
				"error":           err.Error(),
				"currency_pair":   pair,
				"supported_pairs": a.cal.SupportedPairs(),
			}, nil
		}
		if err != nil {
			return nil, err
		}
		return result(a.Name(), out)
	case "multi_currency":
		out, err := a.cal.MultiCurrency(ctx, days, fundamental)
		if err != nil {
			return nil, err
		}
		return result(a.Name(), out)
	case "event_details":
		name := str(task, "", "event_name", "event")
		if name == "" {
			return nil, fmt.Errorf("event_details requires event_name")
		}
		out, err := a.cal.EventDetails(name, str(task, "", "currency_pair"))
		if err != nil {
			return Result{
				"success":          false,
				"agent":            a.Name(),
				"error":            err.Error(),
				"available_events": economic.AvailableEvents(),
			}, nil
		}
		return result(a.Name(), out)
	case "health":
		return result(a.Name(), a.cal.HealthCheck())
	default:
		return nil, fmt.Errorf("unsupported action %q", task["action"])
	}
}
