package mortality

import "sort"

type rollupKey struct {
	code     string
	category Category
}

// Aggregate sums the all-cause outcome per geography and category and derives
// the excess rate against the implied non-excess baseline (observed minus excess).
// Null differences count as zero.
func Aggregate(records []CanonicalRecord, opts Options) []CategoryRollup {
	index := make(map[rollupKey]int)
	var out []CategoryRollup
	for _, rec := range records {
		if rec.Outcome != opts.OutcomeAllCause {
			continue
		}
		key := rollupKey{code: rec.GeographyCode, category: rec.Category}
		idx, ok := index[key]
		if !ok {
			idx = len(out)
			index[key] = idx
			out = append(out, CategoryRollup{
				GeographyCode: rec.GeographyCode,
				GeographyName: rec.GeographyName,
				Category:      rec.Category,
			})
		}
		out[idx].Difference += OrZero(rec.Difference)
		out[idx].Observed += rec.Observed
	}
	for i := range out {
		out[i].Rate = Divide(out[i].Difference, out[i].Observed-out[i].Difference)
	}

	order := opts.categoryOrder()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].GeographyCode != out[j].GeographyCode {
			return out[i].GeographyCode < out[j].GeographyCode
		}
		return order[out[i].Category] < order[out[j].Category]
	})
	rankRollups(out)
	return out
}

// rankRollups assigns 1..n by descending rate within each geography.
// Rollups with an undefined rate keep rank 0. Expects out sorted by geography.
func rankRollups(out []CategoryRollup) {
	for start := 0; start < len(out); {
		end := start
		for end < len(out) && out[end].GeographyCode == out[start].GeographyCode {
			end++
		}
		var ranked []int
		for i := start; i < end; i++ {
			out[i].Rank = 0
			if out[i].Rate.Valid {
				ranked = append(ranked, i)
			}
		}
		sort.SliceStable(ranked, func(a, b int) bool {
			return out[ranked[a]].Rate.Value > out[ranked[b]].Rate.Value
		})
		for pos, i := range ranked {
			out[i].Rank = pos + 1
		}
		start = end
	}
}

// AggregateTotals sums both outcome types per geography, treating nulls as zero.
func AggregateTotals(records []CanonicalRecord, opts Options) []GeographyTotals {
	index := make(map[string]int)
	var out []GeographyTotals
	for _, rec := range records {
		allCause := rec.Outcome == opts.OutcomeAllCause
		covid := rec.Outcome == opts.OutcomeCovid
		if !allCause && !covid {
			continue
		}
		idx, ok := index[rec.GeographyCode]
		if !ok {
			idx = len(out)
			index[rec.GeographyCode] = idx
			out = append(out, GeographyTotals{GeographyCode: rec.GeographyCode, GeographyName: rec.GeographyName})
		}
		if allCause {
			out[idx].AllCause += OrZero(rec.Difference)
		} else {
			out[idx].Covid += OrZero(rec.Difference)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeographyCode < out[j].GeographyCode })
	return out
}
