// Package ingest reads the mortality and demographic CSV inputs into the
// record types consumed by the mortality pipeline.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"excess_mortality/mortality"
)

// Mortality dataset column names.
const (
	ColGeographyCode     = "State Abbreviation"
	ColGeographyName     = "Jurisdiction"
	ColDate              = "Week Ending Date"
	ColCategory          = "Race/Ethnicity"
	ColOutcome           = "Outcome"
	ColTimePeriod        = "Time Period"
	ColMethod            = "Type"
	ColObserved          = "Number of Deaths"
	ColDifference        = "Difference from 2015-2019 to 2020"
	ColPercentDifference = "Percent Difference from 2015-2019 to 2020"
)

// DefaultBaselineGeographyColumn names the geography column of the census table.
const DefaultBaselineGeographyColumn = "NAME"

var mortalityColumns = []string{
	ColGeographyCode, ColGeographyName, ColDate, ColCategory, ColOutcome,
	ColTimePeriod, ColMethod, ColObserved, ColDifference, ColPercentDifference,
}

// table is a column-name view over a string-typed dataframe.
type table struct {
	cols map[string][]string
	rows int
}

func readTable(r io.Reader, required []string) (*table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		// gota refuses tables without data rows; only the header is left to inspect.
		if strings.Contains(df.Err.Error(), "empty DataFrame") {
			return nil, &mortality.SchemaError{Field: "table", Value: "", Reason: "no data rows"}
		}
		return nil, &mortality.SchemaError{Field: "table", Value: "", Reason: fmt.Sprintf("malformed csv: %v", df.Err)}
	}
	present := make(map[string]bool)
	for _, name := range df.Names() {
		present[name] = true
	}
	t := &table{cols: make(map[string][]string, len(required)), rows: df.Nrow()}
	for _, name := range required {
		if !present[name] {
			return nil, &mortality.SchemaError{Field: "column", Value: name, Reason: "expected column missing"}
		}
		t.cols[name] = df.Col(name).Records()
	}
	return t, nil
}

func (t *table) cell(col string, row int) string {
	return strings.TrimSpace(t.cols[col][row])
}

// ReadMortality reads the weekly mortality table. Rows are numbered from 1,
// excluding the header.
func ReadMortality(r io.Reader) ([]mortality.RawRecord, error) {
	t, err := readTable(r, mortalityColumns)
	if err != nil {
		return nil, err
	}
	out := make([]mortality.RawRecord, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		row := i + 1
		observed, err := parseNumber(t.cell(ColObserved, i))
		if err != nil {
			return nil, &mortality.ParseError{Row: row, Field: ColObserved, Value: t.cell(ColObserved, i), Err: err}
		}
		if observed == nil {
			return nil, &mortality.ParseError{Row: row, Field: ColObserved, Value: "", Err: errEmpty}
		}
		diff, err := parseNumber(t.cell(ColDifference, i))
		if err != nil {
			return nil, &mortality.ParseError{Row: row, Field: ColDifference, Value: t.cell(ColDifference, i), Err: err}
		}
		pct, err := parseNumber(t.cell(ColPercentDifference, i))
		if err != nil {
			return nil, &mortality.ParseError{Row: row, Field: ColPercentDifference, Value: t.cell(ColPercentDifference, i), Err: err}
		}
		out = append(out, mortality.RawRecord{
			Row:               row,
			GeographyCode:     t.cell(ColGeographyCode, i),
			GeographyName:     t.cell(ColGeographyName, i),
			Date:              t.cell(ColDate, i),
			Category:          t.cell(ColCategory, i),
			Outcome:           t.cell(ColOutcome, i),
			TimePeriod:        t.cell(ColTimePeriod, i),
			Method:            t.cell(ColMethod, i),
			Observed:          *observed,
			Difference:        diff,
			PercentDifference: pct,
		})
	}
	return out, nil
}

// ReadBaseline reads the census table: one geography column plus one count
// column per identifier in columns.
func ReadBaseline(r io.Reader, geographyColumn string, columns []string) ([]mortality.BaselineRow, error) {
	if geographyColumn == "" {
		geographyColumn = DefaultBaselineGeographyColumn
	}
	required := append([]string{geographyColumn}, columns...)
	t, err := readTable(r, required)
	if err != nil {
		return nil, err
	}
	out := make([]mortality.BaselineRow, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		row := mortality.BaselineRow{Row: i + 1, Geography: t.cell(geographyColumn, i), Counts: make(map[string]float64, len(columns))}
		for _, col := range columns {
			v, err := parseNumber(t.cell(col, i))
			if err != nil {
				return nil, &mortality.ParseError{Row: i + 1, Field: col, Value: t.cell(col, i), Err: err}
			}
			if v == nil {
				return nil, &mortality.ParseError{Row: i + 1, Field: col, Value: "", Err: errEmpty}
			}
			row.Counts[col] = *v
		}
		out = append(out, row)
	}
	return out, nil
}

var (
	errEmpty     = errors.New("empty value")
	errNotFinite = errors.New("not a finite number")
)

// parseNumber returns nil for an empty cell. Thousands separators are accepted.
func parseNumber(raw string) (*float64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, errNotFinite
	}
	return &v, nil
}
