package mortality

import (
	"strings"
	"time"

	"excess_mortality/formatting"
)

// Normalize parses dates, maps categories onto the recognized set and keeps only
// records of the configured period and method that fall before the cutoff.
// The first malformed or duplicated record aborts the run.
func Normalize(raw []RawRecord, opts Options) ([]CanonicalRecord, error) {
	layout := opts.DateLayout
	if layout == "" {
		layout = DefaultDateLayout
	}
	known := opts.categoryOrder()

	type recordKey struct {
		code     string
		date     time.Time
		category Category
		outcome  string
	}
	seen := make(map[recordKey]struct{}, len(raw))

	out := make([]CanonicalRecord, 0, len(raw))
	for i, rec := range raw {
		row := rec.Row
		if row == 0 {
			row = i + 1
		}
		date, err := time.Parse(layout, strings.TrimSpace(rec.Date))
		if err != nil {
			return nil, &ParseError{Row: row, Field: "date", Value: rec.Date, Err: err}
		}
		cat, schemaErr := normalizeCategory(rec.Category, opts, known)
		if schemaErr != nil {
			schemaErr.Row = row
			return nil, schemaErr
		}

		if rec.TimePeriod != opts.TimePeriod || rec.Method != opts.Method {
			continue
		}
		if !opts.Cutoff.IsZero() && !date.Before(opts.Cutoff) {
			continue
		}
		code := strings.TrimSpace(rec.GeographyCode)
		key := recordKey{code: code, date: date, category: cat, outcome: rec.Outcome}
		if _, dup := seen[key]; dup {
			return nil, &SchemaError{Row: row, Field: "record", Value: code + " " + rec.Date + " " + string(cat) + " " + rec.Outcome,
				Reason: "duplicate (geography, date, category, outcome)"}
		}
		seen[key] = struct{}{}
		out = append(out, CanonicalRecord{
			Row:               row,
			GeographyCode:     code,
			GeographyName:     strings.TrimSpace(rec.GeographyName),
			Date:              date,
			Category:          cat,
			Outcome:           rec.Outcome,
			Observed:          rec.Observed,
			Difference:        rec.Difference,
			PercentDifference: rec.PercentDifference,
		})
	}
	return out, nil
}

func normalizeCategory(label string, opts Options, known map[Category]int) (Category, *SchemaError) {
	cleaned := formatting.NormalizeLabel(label)
	if opts.CategoryPrefix != "" {
		cleaned = strings.TrimPrefix(cleaned, opts.CategoryPrefix)
	}
	if alias, ok := opts.Aliases[cleaned]; ok {
		cleaned = string(alias)
	}
	cat := Category(cleaned)
	if _, ok := known[cat]; !ok {
		return "", &SchemaError{Field: "category", Value: label, Reason: "no known category mapping"}
	}
	return cat, nil
}
