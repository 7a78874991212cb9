package economic

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dyike/forexcell/models"
)

var criticalLevels = map[string]struct{ support, resistance []string }{
	"EUR/USD": {[]string{"1.0750", "1.0700"}, []string{"1.0850", "1.0900"}},
	"GBP/USD": {[]string{"1.2550", "1.2500"}, []string{"1.2650", "1.2700"}},
	"USD/JPY": {[]string{"148.00", "147.50"}, []string{"149.00", "149.50"}},
	"USD/CHF": {[]string{"0.8800", "0.8750"}, []string{"0.8900", "0.8950"}},
	"AUD/USD": {[]string{"0.6550", "0.6500"}, []string{"0.6650", "0.6700"}},
	"USD/CAD": {[]string{"1.3450", "1.3400"}, []string{"1.3550", "1.3600"}},
	"NZD/USD": {[]string{"0.6050", "0.6000"}, []string{"0.6150", "0.6200"}},
}

// PricePlaces is the quoting precision of a pair: two places for yen
// crosses, four otherwise.
func PricePlaces(pair string) int32 {
	if strings.HasSuffix(strings.ToUpper(pair), "JPY") {
		return 2
	}
	return 4
}

// PipSize is the value of one pip for pair.
func PipSize(pair string) decimal.Decimal {
	return decimal.New(1, -PricePlaces(pair))
}

// CriticalLevelsFor returns the reference support and resistance prices,
// nearest first. Unknown pairs get empty lists.
func CriticalLevelsFor(pair string) models.CriticalLevels {
	out := models.CriticalLevels{Support: []string{}, Resistance: []string{}}
	lv, ok := criticalLevels[pair]
	if !ok {
		return out
	}
	places := PricePlaces(pair)
	for _, s := range lv.support {
		out.Support = append(out.Support, decimal.RequireFromString(s).StringFixed(places))
	}
	for _, r := range lv.resistance {
		out.Resistance = append(out.Resistance, decimal.RequireFromString(r).StringFixed(places))
	}
	return out
}

// EntryZone returns the band between the two nearest levels on the side
// the bias trades from, e.g. "1.0700-1.0750" for a long EUR/USD, and its
// width in pips.
func EntryZone(pair, bias string) (string, decimal.Decimal, bool) {
	levels := CriticalLevelsFor(pair)
	var side []string
	switch bias {
	case BiasLong:
		side = levels.Support
	case BiasShort:
		side = levels.Resistance
	default:
		return "", decimal.Zero, false
	}
	if len(side) < 2 {
		return "", decimal.Zero, false
	}
	a := decimal.RequireFromString(side[0])
	b := decimal.RequireFromString(side[1])
	lo, hi := decimal.Min(a, b), decimal.Max(a, b)
	places := PricePlaces(pair)
	width := hi.Sub(lo).Div(PipSize(pair)).Round(1)
	return lo.StringFixed(places) + "-" + hi.StringFixed(places), width, true
}
