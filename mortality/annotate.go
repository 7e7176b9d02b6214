package mortality

import (
	"sort"

	"excess_mortality/formatting"
)

// LabelOptions carries the constants the label templates need.
type LabelOptions struct {
	Year       int
	Categories []Category
}

// LabelOptions derives label settings from pipeline options.
func (o Options) LabelOptions() LabelOptions {
	return LabelOptions{Year: o.labelYear(), Categories: o.categories()}
}

// Report is the annotated summary table with key lookups for the renderer.
type Report struct {
	Summaries []GeographySummary
	index     map[string]int
}

// Summary returns the summary for a geography code.
func (r *Report) Summary(code string) (GeographySummary, bool) {
	if r == nil {
		return GeographySummary{}, false
	}
	idx, ok := r.index[code]
	if !ok {
		return GeographySummary{}, false
	}
	return r.Summaries[idx], true
}

// GeographyLabel returns the narrative label for a geography code.
func (r *Report) GeographyLabel(code string) (string, bool) {
	s, ok := r.Summary(code)
	if !ok {
		return "", false
	}
	return s.Label, true
}

// CategoryLabel returns the label for one category of a geography.
func (r *Report) CategoryLabel(code string, category Category) (string, bool) {
	s, ok := r.Summary(code)
	if !ok {
		return "", false
	}
	label, ok := s.CategoryLabels[category]
	return label, ok
}

// Codes lists geography codes in report order.
func (r *Report) Codes() []string {
	if r == nil {
		return nil
	}
	codes := make([]string, len(r.Summaries))
	for i, s := range r.Summaries {
		codes[i] = s.GeographyCode
	}
	return codes
}

// NewReport indexes summaries by geography code after sorting them by code.
func NewReport(summaries []GeographySummary) *Report {
	sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].GeographyCode < summaries[j].GeographyCode })
	index := make(map[string]int, len(summaries))
	for i, s := range summaries {
		index[s.GeographyCode] = i
	}
	return &Report{Summaries: summaries, index: index}
}

// Annotate joins category rollups and geography totals against the demographic
// baseline and renders the labels. Baseline misses stay undefined.
func Annotate(rollups []CategoryRollup, totals []GeographyTotals, baseline DemographicBaseline, opts LabelOptions) *Report {
	year := opts.Year
	if year == 0 {
		year = DefaultLabelYear
	}
	cats := opts.Categories
	if len(cats) == 0 {
		cats = DefaultCategories
	}
	order := make(map[Category]int, len(cats))
	for i, c := range cats {
		order[c] = i
	}

	byGeo := make(map[string][]CategoryRollup)
	for _, r := range rollups {
		byGeo[r.GeographyCode] = append(byGeo[r.GeographyCode], r)
	}

	summaries := make([]GeographySummary, 0, len(totals))
	for _, t := range totals {
		summary := GeographySummary{
			GeographyCode:  t.GeographyCode,
			GeographyName:  t.GeographyName,
			AllCauseExcess: t.AllCause,
			CovidExcess:    t.Covid,
			CovidShare:     Divide(t.Covid, t.AllCause),
			CategoryLabels: make(map[Category]string),
		}
		summary.Label = geographyLabel(t, summary.CovidShare, year)

		geoRollups := byGeo[t.GeographyCode]
		sort.SliceStable(geoRollups, func(i, j int) bool { return order[geoRollups[i].Category] < order[geoRollups[j].Category] })
		for _, r := range geoRollups {
			cs := CategorySummary{
				Category:        r.Category,
				Excess:          r.Difference,
				Observed:        r.Observed,
				Rate:            r.Rate,
				DeathShare:      Divide(r.Difference, t.AllCause),
				PopulationShare: baseline.Share(t.GeographyName, r.Category),
				Rank:            r.Rank,
			}
			cs.Label = categoryLabel(baseline, t.GeographyName, r)
			summary.Categories = append(summary.Categories, cs)
			summary.CategoryLabels[r.Category] = cs.Label
		}
		summaries = append(summaries, summary)
	}
	return NewReport(summaries)
}

func geographyLabel(t GeographyTotals, share Ratio, year int) string {
	return formatting.GeographyLabel(year, t.AllCause, t.Covid, share.Value, share.Valid)
}

// categoryLabel falls back to the unavailable text when either the rate or the
// geography's population share for the category is undefined.
func categoryLabel(baseline DemographicBaseline, geography string, r CategoryRollup) string {
	if !baseline.Share(geography, r.Category).Valid {
		return formatting.DataUnavailable
	}
	return formatting.CategoryLabel(r.Difference, r.Rate.Value, r.Rate.Valid)
}
