package mortality

import (
	"sort"
	"time"
)

type wideKey struct {
	code     string
	date     time.Time
	category Category
}

// Reshape pivots the all-cause and covid outcomes into one row per
// (geography, date, category). A side with no source record stays nil.
func Reshape(records []CanonicalRecord, opts Options) []WideRow {
	index := make(map[wideKey]int)
	var rows []WideRow
	for _, rec := range records {
		allCause := rec.Outcome == opts.OutcomeAllCause
		covid := rec.Outcome == opts.OutcomeCovid
		if !allCause && !covid {
			continue
		}
		key := wideKey{code: rec.GeographyCode, date: rec.Date, category: rec.Category}
		idx, ok := index[key]
		if !ok {
			idx = len(rows)
			index[key] = idx
			rows = append(rows, WideRow{
				GeographyCode: rec.GeographyCode,
				GeographyName: rec.GeographyName,
				Date:          rec.Date,
				Category:      rec.Category,
			})
		}
		row := &rows[idx]
		if allCause {
			row.AllCauseDifference = copyFloat(rec.Difference)
			row.AllCausePercent = copyFloat(rec.PercentDifference)
		} else {
			row.CovidDifference = copyFloat(rec.Difference)
			row.CovidPercent = copyFloat(rec.PercentDifference)
		}
	}

	order := opts.categoryOrder()
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.GeographyCode != b.GeographyCode {
			return a.GeographyCode < b.GeographyCode
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return order[a.Category] < order[b.Category]
	})
	return rows
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return floatPtr(*v)
}
