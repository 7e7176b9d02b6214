package mortality

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultWholeGeography names the synthetic all-jurisdictions geography.
const DefaultWholeGeography = "United States"

// BaselineRow carries raw population counts for one geography, keyed by the
// census column identifier.
type BaselineRow struct {
	Row       int
	Geography string
	Counts    map[string]float64
}

// BaselineOptions controls how census columns fold into categories.
type BaselineOptions struct {
	Columns        map[string]Category
	WholeGeography string
}

// DefaultBaselineColumns maps census race/ethnicity column identifiers to categories.
// Several identifiers may share a category; their counts are added.
func DefaultBaselineColumns() map[string]Category {
	return map[string]Category{
		"NHWA":  White,
		"NHBA":  Black,
		"H":     Hispanic,
		"NHAA":  Asian,
		"NHIA":  NativeAmerican,
		"NHNA":  Other,
		"NHTOM": Other,
	}
}

func DefaultBaselineOptions() BaselineOptions {
	return BaselineOptions{Columns: DefaultBaselineColumns(), WholeGeography: DefaultWholeGeography}
}

// DemographicBaseline maps geography name to category population share.
type DemographicBaseline map[string]map[Category]Ratio

// Share returns the population share, undefined when the pair is absent.
func (b DemographicBaseline) Share(geography string, category Category) Ratio {
	shares, ok := b[geography]
	if !ok {
		return Ratio{}
	}
	return shares[category]
}

// Geographies lists baseline geography names in sorted order.
func (b DemographicBaseline) Geographies() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildBaseline folds raw counts into categories, derives the whole-population
// geography from summed raw counts, and only then converts counts to shares.
func BuildBaseline(rows []BaselineRow, opts BaselineOptions) (DemographicBaseline, error) {
	columns := opts.Columns
	if len(columns) == 0 {
		columns = DefaultBaselineColumns()
	}
	ids := make([]string, 0, len(columns))
	for id := range columns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	counts := make(map[string]map[Category]float64)
	whole := make(map[Category]float64)
	for i, row := range rows {
		rowNum := row.Row
		if rowNum == 0 {
			rowNum = i + 1
		}
		geo := strings.TrimSpace(row.Geography)
		if geo == "" {
			return nil, &SchemaError{Row: rowNum, Field: "geography", Value: row.Geography, Reason: "empty geography name"}
		}
		for _, id := range ids {
			v, ok := row.Counts[id]
			if !ok {
				return nil, &SchemaError{Row: rowNum, Field: "column", Value: id, Reason: "missing baseline column"}
			}
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &ParseError{Row: rowNum, Field: id, Value: strconv.FormatFloat(v, 'f', -1, 64), Err: errInvalidCount}
			}
		}
		// An upstream whole-population row would double count; it is rebuilt below.
		if opts.WholeGeography != "" && geo == opts.WholeGeography {
			continue
		}
		byCat, ok := counts[geo]
		if !ok {
			byCat = make(map[Category]float64)
			counts[geo] = byCat
		}
		for _, id := range ids {
			cat := columns[id]
			byCat[cat] += row.Counts[id]
			whole[cat] += row.Counts[id]
		}
	}
	if opts.WholeGeography != "" && len(counts) > 0 {
		counts[opts.WholeGeography] = whole
	}

	baseline := make(DemographicBaseline, len(counts))
	for geo, byCat := range counts {
		var total float64
		for _, v := range byCat {
			total += v
		}
		shares := make(map[Category]Ratio, len(byCat))
		for cat, v := range byCat {
			shares[cat] = Divide(v, total)
		}
		baseline[geo] = shares
	}
	return baseline, nil
}
