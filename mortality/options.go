package mortality

import "time"

// Options carries the overridable constants of a pipeline run.
type Options struct {
	DateLayout      string
	Cutoff          time.Time
	TimePeriod      string
	Method          string
	OutcomeAllCause string
	OutcomeCovid    string
	CategoryPrefix  string
	Aliases         map[string]Category
	Categories      []Category
	LabelYear       int
}

const (
	DefaultDateLayout      = "01/02/2006"
	DefaultTimePeriod      = "2020"
	DefaultMethod          = "Predicted (weighted)"
	DefaultOutcomeAllCause = "All Cause"
	DefaultOutcomeCovid    = "COVID-19"
	DefaultCategoryPrefix  = "Non-Hispanic "
	DefaultLabelYear       = 2020
)

// DefaultCutoff is the exclusive end of the analysis window.
var DefaultCutoff = time.Date(2020, time.October, 1, 0, 0, 0, 0, time.UTC)

// DefaultAliases maps upstream labels (after prefix stripping) onto categories.
func DefaultAliases() map[string]Category {
	return map[string]Category{
		"American Indian or Alaska Native": NativeAmerican,
	}
}

func DefaultOptions() Options {
	return Options{
		DateLayout:      DefaultDateLayout,
		Cutoff:          DefaultCutoff,
		TimePeriod:      DefaultTimePeriod,
		Method:          DefaultMethod,
		OutcomeAllCause: DefaultOutcomeAllCause,
		OutcomeCovid:    DefaultOutcomeCovid,
		CategoryPrefix:  DefaultCategoryPrefix,
		Aliases:         DefaultAliases(),
		Categories:      append([]Category(nil), DefaultCategories...),
		LabelYear:       DefaultLabelYear,
	}
}

func (o Options) categories() []Category {
	if len(o.Categories) == 0 {
		return DefaultCategories
	}
	return o.Categories
}

// categoryOrder returns the display position of each recognized category.
func (o Options) categoryOrder() map[Category]int {
	cats := o.categories()
	order := make(map[Category]int, len(cats))
	for i, c := range cats {
		order[c] = i
	}
	return order
}

func (o Options) labelYear() int {
	if o.LabelYear == 0 {
		return DefaultLabelYear
	}
	return o.LabelYear
}
