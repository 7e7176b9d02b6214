package mortality

import "fmt"

// Result is the complete output of one run. It is not modified after Run returns.
type Result struct {
	Canonical []CanonicalRecord
	Wide      []WideRow
	Rollups   []CategoryRollup
	Totals    []GeographyTotals
	Report    *Report

	wideIndex map[string][]WideRow
}

// WideFor returns the wide rows of one geography, ordered by date then category.
func (r *Result) WideFor(code string) []WideRow {
	return r.wideIndex[code]
}

// Geographies lists geography codes in report order.
func (r *Result) Geographies() []string {
	return r.Report.Codes()
}

// Run normalizes the raw records and produces the wide table and the annotated
// report. Any error aborts the run with no partial result.
func Run(raw []RawRecord, baseline DemographicBaseline, opts Options) (*Result, error) {
	canonical, err := Normalize(raw, opts)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	wide := Reshape(canonical, opts)
	rollups := Aggregate(canonical, opts)
	totals := AggregateTotals(canonical, opts)
	report := Annotate(rollups, totals, baseline, opts.LabelOptions())

	index := make(map[string][]WideRow)
	for _, row := range wide {
		index[row.GeographyCode] = append(index[row.GeographyCode], row)
	}
	return &Result{
		Canonical: canonical,
		Wide:      wide,
		Rollups:   rollups,
		Totals:    totals,
		Report:    report,
		wideIndex: index,
	}, nil
}
