package graph

import (
	"context"

	"github.com/cloudwego/eino/compose"
	"github.com/dyike/forexcell/models"
)

// dataNodes lists the data nodes in visiting order with the data kind that
// enables each one.
var dataNodes = []struct {
	node string
	kind string
}{
	{MarketData, models.DataMarket},
	{Economic, models.DataEconomic},
	{Technical, models.DataTechnical},
}

// plan returns the data nodes qa asks for. A nil analysis asks for all.
func plan(qa *models.QueryAnalysis) (pending, skipped []string) {
	for _, d := range dataNodes {
		if qa.NeedsData(d.kind) {
			pending = append(pending, d.node)
		} else {
			skipped = append(skipped, d.node)
		}
	}
	return pending, skipped
}

// advance pops the next pending node into Goto, falling through to synthesis.
func advance(ctx context.Context) {
	_ = compose.ProcessState[*route](ctx, func(_ context.Context, r *route) error {
		if len(r.Pending) == 0 {
			r.Goto = Synthesis
			return nil
		}
		r.Goto, r.Pending = r.Pending[0], r.Pending[1:]
		return nil
	})
}

func handOff(ctx context.Context, _ *AnalysisState) (next string, err error) {
	err = compose.ProcessState[*route](ctx, func(_ context.Context, r *route) error {
		next = r.Goto
		return nil
	})
	return next, err
}
