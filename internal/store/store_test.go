package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"excess_mortality/mortality"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func f(v float64) *float64 { return &v }

func sampleResult(t *testing.T) *mortality.Result {
	t.Helper()
	rec := func(date, category, outcome string, observed float64, diff *float64) mortality.RawRecord {
		return mortality.RawRecord{
			GeographyCode: "NY", GeographyName: "New York", Date: date, Category: category, Outcome: outcome,
			TimePeriod: mortality.DefaultTimePeriod, Method: mortality.DefaultMethod, Observed: observed, Difference: diff,
		}
	}
	raw := []mortality.RawRecord{
		rec("04/04/2020", "Non-Hispanic White", mortality.DefaultOutcomeAllCause, 1100, f(100)),
		rec("04/11/2020", "Non-Hispanic White", mortality.DefaultOutcomeAllCause, 1050, f(50)),
		rec("04/04/2020", "Non-Hispanic White", mortality.DefaultOutcomeCovid, 30, f(30)),
		rec("04/04/2020", "Non-Hispanic Asian", mortality.DefaultOutcomeAllCause, 0, f(0)),
	}
	baseline := mortality.DemographicBaseline{"New York": {mortality.White: mortality.Defined(0.55)}}
	res, err := mortality.Run(raw, baseline, mortality.DefaultOptions())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return res
}

func TestSaveAndReadBack(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	res := sampleResult(t)
	started := time.Date(2020, time.October, 2, 8, 0, 0, 0, time.UTC)

	runID, err := st.StartRun(ctx, started)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := st.SaveResult(ctx, runID, 4, res, started.Add(time.Second)); err != nil {
		t.Fatalf("save: %v", err)
	}

	latest, err := st.LatestRun(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.RunID != runID || latest.Status != StatusSucceeded || latest.RecordsKept != 4 {
		t.Fatalf("unexpected run %+v", latest)
	}

	report, err := st.Summaries(ctx, runID)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if diff := cmp.Diff(res.Report.Summaries, report.Summaries); diff != "" {
		t.Fatalf("summaries mismatch (-want +got):\n%s", diff)
	}
	if label, ok := report.CategoryLabel("NY", mortality.Asian); !ok || label != "Data Unavailable" {
		t.Fatalf("unexpected asian label %q", label)
	}

	wide, err := st.WideRows(ctx, runID, "NY")
	if err != nil {
		t.Fatalf("wide rows: %v", err)
	}
	if diff := cmp.Diff(res.WideFor("NY"), wide); diff != "" {
		t.Fatalf("wide rows mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedRunIsNotLatest(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	now := time.Date(2020, time.October, 2, 8, 0, 0, 0, time.UTC)

	if _, err := st.LatestRun(ctx); !errors.Is(err, ErrNoRun) {
		t.Fatalf("expected ErrNoRun, got %v", err)
	}
	runID, err := st.StartRun(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.FailRun(ctx, runID, errors.New("row 3: parse date"), now); err != nil {
		t.Fatal(err)
	}
	if _, err := st.LatestRun(ctx); !errors.Is(err, ErrNoRun) {
		t.Fatalf("expected ErrNoRun after failed run, got %v", err)
	}
	runs, err := st.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != StatusFailed || runs[0].LastError == nil || *runs[0].LastError != "row 3: parse date" {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestHealth(t *testing.T) {
	st := openTest(t)
	if err := st.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}
