package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/tool"

	"github.com/dyike/forexcell/internal/dataflows"
	"github.com/dyike/forexcell/internal/economic"
	"github.com/dyike/forexcell/models"
)

type fakeHeadlines struct{ query string }

func (f *fakeHeadlines) Headlines(_ context.Context, q dataflows.HeadlineQuery) ([]models.NewsArticle, error) {
	f.query = q.Query
	return []models.NewsArticle{
		{Title: "ECB holds rates", Source: "Reuters"},
		{Title: "Dollar firms before payrolls"},
	}, nil
}

func TestFinancialNewsForPair(t *testing.T) {
	cal := economic.NewCalendar(nil)
	rep, err := FinancialNews(context.Background(), cal, "eur/usd")
	if err != nil {
		t.Fatalf("FinancialNews: %v", err)
	}
	if !strings.Contains(rep.Report, "EUR/USD forex analysis") || !strings.Contains(rep.Report, "Trading view") {
		t.Fatalf("report = %q", rep.Report)
	}

	if _, err := FinancialNews(context.Background(), cal, "EUR/SEK"); err == nil {
		t.Fatal("expected unsupported pair error")
	}
}

func TestFinancialNewsWholeMarket(t *testing.T) {
	rep, err := FinancialNews(context.Background(), economic.NewCalendar(nil), "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rep.Report, "Multi-currency market analysis") || !strings.Contains(rep.Report, "EUR/USD") {
		t.Fatalf("report = %q", rep.Report)
	}
}

func TestWebSearchIncludesHeadlines(t *testing.T) {
	h := &fakeHeadlines{}
	rep, err := WebSearch(context.Background(), economic.NewCalendar(nil), h, "ECB decision")
	if err != nil {
		t.Fatal(err)
	}
	if h.query != "ECB decision" {
		t.Fatalf("query = %q", h.query)
	}
	if !strings.Contains(rep.Report, "1. ECB holds rates (Reuters)") || !strings.Contains(rep.Report, "2. Dollar firms before payrolls\n") {
		t.Fatalf("report = %q", rep.Report)
	}
}

func TestBreakingNews(t *testing.T) {
	rep, err := BreakingNews(context.Background(), economic.NewCalendar(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rep.Report, "Dominant bias") {
		t.Fatalf("report = %q", rep.Report)
	}
}

func TestWebSearchToolRequiresQuery(t *testing.T) {
	ctx := context.Background()
	bt := NewWebSearchTool(economic.NewCalendar(nil), &fakeHeadlines{})
	info, err := bt.Info(ctx)
	if err != nil || info.Name != "web_search" {
		t.Fatalf("info = %+v, %v", info, err)
	}
	inv, ok := bt.(tool.InvokableTool)
	if !ok {
		t.Fatal("web_search is not invokable")
	}
	if _, err := inv.InvokableRun(ctx, `{"query":"  "}`); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestJoinOrNone(t *testing.T) {
	if joinOrNone(nil) != "none" || joinOrNone([]string{"a", "b"}) != "a, b" {
		t.Fatal("joinOrNone mismatch")
	}
}
