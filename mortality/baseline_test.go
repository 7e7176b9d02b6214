package mortality

import (
	"errors"
	"math"
	"testing"
)

func baselineRows() []BaselineRow {
	return []BaselineRow{
		{Geography: "Alabama", Counts: map[string]float64{"NHWA": 3200, "NHBA": 1300, "H": 220, "NHAA": 70, "NHIA": 30, "NHNA": 5, "NHTOM": 95}},
		{Geography: "Hawaii", Counts: map[string]float64{"NHWA": 300, "NHBA": 30, "H": 150, "NHAA": 530, "NHIA": 5, "NHNA": 140, "NHTOM": 270}},
	}
}

func TestBuildBaselineSharesSumToOne(t *testing.T) {
	baseline, err := BuildBaseline(baselineRows(), DefaultBaselineOptions())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, geo := range baseline.Geographies() {
		var sum float64
		for _, cat := range DefaultCategories {
			share := baseline.Share(geo, cat)
			if !share.Valid {
				t.Fatalf("%s/%s: expected defined share", geo, cat)
			}
			sum += share.Value
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Fatalf("%s: shares sum to %v", geo, sum)
		}
	}
}

func TestBuildBaselineSumsSharedIdentifiers(t *testing.T) {
	baseline, err := BuildBaseline(baselineRows(), DefaultBaselineOptions())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := baseline.Share("Hawaii", Other).Value
	want := (140.0 + 270.0) / 1425.0
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestBuildBaselineWholePopulationFromRawCounts(t *testing.T) {
	rows := append(baselineRows(), BaselineRow{
		Geography: DefaultWholeGeography,
		Counts:    map[string]float64{"NHWA": 1, "NHBA": 1, "H": 1, "NHAA": 1, "NHIA": 1, "NHNA": 1, "NHTOM": 1},
	})
	baseline, err := BuildBaseline(rows, DefaultBaselineOptions())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// Asian: (70+530)/(4920+1425); averaging the two state shares would give a different value.
	got := baseline.Share(DefaultWholeGeography, Asian).Value
	want := 600.0 / 6345.0
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, got)
	}
	ratioOfRatios := (70.0/4920.0 + 530.0/1425.0) / 2
	if math.Abs(got-ratioOfRatios) < 1e-6 {
		t.Fatal("whole-population share must not average state shares")
	}
}

func TestBuildBaselineMissingColumn(t *testing.T) {
	rows := []BaselineRow{{Geography: "Ohio", Counts: map[string]float64{"NHWA": 10}}}
	_, err := BuildBaseline(rows, DefaultBaselineOptions())
	var serr *SchemaError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestBuildBaselineNegativeCount(t *testing.T) {
	rows := baselineRows()
	rows[1].Counts["H"] = -4
	_, err := BuildBaseline(rows, DefaultBaselineOptions())
	var perr *ParseError
	if !errors.As(err, &perr) || perr.Row != 2 || perr.Field != "H" {
		t.Fatalf("expected ParseError on row 2 field H, got %v", err)
	}
}

func TestBaselineShareAbsentPair(t *testing.T) {
	baseline := DemographicBaseline{"Utah": {White: Defined(0.8)}}
	if baseline.Share("Utah", Black).Valid {
		t.Fatal("expected missing category to be undefined")
	}
	if baseline.Share("Idaho", White).Valid {
		t.Fatal("expected missing geography to be undefined")
	}
}
