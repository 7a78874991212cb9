package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/dyike/forexcell/models"
	"github.com/dyike/forexcell/pkg/sqlite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "forexcell.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(id string, started time.Time) *models.RunReport {
	return &models.RunReport{
		RunID:      id,
		Workflow:   "forex_analysis",
		Params:     map[string]any{"currency_pair": "EUR/USD"},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Order:      []string{"fetch", "report"},
		Results: map[string]*models.StepResult{
			"fetch":  {Step: "fetch", Type: "tool", Success: true, Result: map[string]any{"rate": 1.08}, DurationMS: 120},
			"report": {Step: "report", Type: "print", Success: false, Error: "boom", DurationMS: 3},
		},
		Stored:  map[string]any{"currency_pair": "EUR/USD"},
		Summary: models.RunSummary{Total: 2, Successful: 1, Failed: 1, Errors: []string{"report: boom"}},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	if err := s.SaveRun(ctx, sampleRun("run-1", started)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("run not found")
	}
	if !got.StartedAt.Equal(started) || got.Workflow != "forex_analysis" {
		t.Fatalf("unexpected run %+v", got)
	}
	if !reflect.DeepEqual(got.Order, []string{"fetch", "report"}) {
		t.Fatalf("step order lost: %v", got.Order)
	}
	fetch := got.Results["fetch"]
	if !fetch.Success || fetch.DurationMS != 120 {
		t.Fatalf("unexpected fetch step %+v", fetch)
	}
	if rate := fetch.Result.(map[string]any)["rate"]; rate != 1.08 {
		t.Fatalf("result not decoded: %v", fetch.Result)
	}
	if got.Results["report"].Error != "boom" || got.Summary.Failed != 1 {
		t.Fatalf("failure details lost: %+v", got.Summary)
	}

	missing, err := s.GetRun(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing run, got %v %v", missing, err)
	}
}

func TestSaveRunReplacesSteps(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := sampleRun("run-1", time.Now().UTC())
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	run.Order = []string{"fetch"}
	delete(run.Results, "report")
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Results) != 1 {
		t.Fatalf("expected one step after resave, got %d", len(got.Results))
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := s.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "c" || runs[1].RunID != "b" {
		t.Fatalf("unexpected order %+v", runs)
	}
	if runs[0].Status != StatusDone || runs[0].Summary.Total != 2 {
		t.Fatalf("unexpected item %+v", runs[0])
	}
}

func TestWatchlistLifecycle(t *testing.T) {
	s, err := Open(sqlite.Memory)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	w, err := s.CreateWatchlist(ctx, "u1", "majors", "main pairs", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateWatchlist(ctx, "u1", "majors", "", false); !errors.Is(err, ErrWatchlistExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	for _, ticker := range []string{"eur/usd", "USD/JPY"} {
		added, err := s.AddAsset(ctx, w.ID, ticker, "", nil)
		if err != nil || !added {
			t.Fatalf("add %s: %v %v", ticker, added, err)
		}
	}
	added, err := s.AddAsset(ctx, w.ID, "EUR/USD", "again", nil)
	if err != nil || added {
		t.Fatalf("duplicate add should report false, got %v %v", added, err)
	}

	tickers, err := s.Tickers(ctx, w.ID)
	if err != nil {
		t.Fatalf("tickers: %v", err)
	}
	if !reflect.DeepEqual(tickers, []string{"EUR/USD", "USD/JPY"}) {
		t.Fatalf("unexpected tickers %v", tickers)
	}

	removed, err := s.RemoveAsset(ctx, w.ID, "eur/usd")
	if err != nil || !removed {
		t.Fatalf("remove: %v %v", removed, err)
	}
	if removed, _ := s.RemoveAsset(ctx, w.ID, "EUR/USD"); removed {
		t.Fatal("second remove should report false")
	}

	lists, err := s.ListWatchlists(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lists) != 1 || len(lists[0].Items) != 1 || !lists[0].IsDefault {
		t.Fatalf("unexpected lists %+v", lists)
	}

	if ok, err := s.DeleteWatchlist(ctx, w.ID); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if got, err := s.GetWatchlist(ctx, w.ID); err != nil || got != nil {
		t.Fatalf("expected deleted watchlist, got %v %v", got, err)
	}
}
