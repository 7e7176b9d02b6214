package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"excess_mortality/mortality"
)

const cutoffLayout = "2006-01-02"

// PipelineConfig captures the overridable constants of the mortality pipeline.
// The fields can be customized under the `pipeline` key of config.yaml.
type PipelineConfig struct {
	Cutoff          time.Time
	DateLayout      string
	TimePeriod      string
	Method          string
	OutcomeAllCause string
	OutcomeCovid    string
	CategoryPrefix  string
	Categories      []string
	Aliases         map[string]string
	BaselineColumns map[string]string
	BaselineGeoCol  string
	WholeGeography  string
	LabelYear       int
}

type pipelineFileConfig struct {
	Cutoff          string            `json:"cutoff" yaml:"cutoff"`
	DateLayout      string            `json:"date_layout" yaml:"date_layout"`
	TimePeriod      string            `json:"time_period" yaml:"time_period"`
	Method          string            `json:"method" yaml:"method"`
	OutcomeAllCause string            `json:"outcome_all_cause" yaml:"outcome_all_cause"`
	OutcomeCovid    string            `json:"outcome_covid" yaml:"outcome_covid"`
	CategoryPrefix  *string           `json:"category_prefix" yaml:"category_prefix"`
	Categories      []string          `json:"categories" yaml:"categories"`
	Aliases         map[string]string `json:"aliases" yaml:"aliases"`
	BaselineColumns map[string]string `json:"baseline_columns" yaml:"baseline_columns"`
	BaselineGeoCol  string            `json:"baseline_geography_column" yaml:"baseline_geography_column"`
	WholeGeography  string            `json:"whole_geography" yaml:"whole_geography"`
	LabelYear       *int              `json:"label_year" yaml:"label_year"`
}

// DefaultPipelineConfig returns the baked-in pipeline constants.
func DefaultPipelineConfig() PipelineConfig {
	opts := mortality.DefaultOptions()
	cats := make([]string, len(opts.Categories))
	for i, c := range opts.Categories {
		cats[i] = string(c)
	}
	return PipelineConfig{
		Cutoff:          opts.Cutoff,
		DateLayout:      opts.DateLayout,
		TimePeriod:      opts.TimePeriod,
		Method:          opts.Method,
		OutcomeAllCause: opts.OutcomeAllCause,
		OutcomeCovid:    opts.OutcomeCovid,
		CategoryPrefix:  opts.CategoryPrefix,
		Categories:      cats,
		Aliases:         stringMap(opts.Aliases),
		BaselineColumns: stringMap(mortality.DefaultBaselineColumns()),
		BaselineGeoCol:  "NAME",
		WholeGeography:  mortality.DefaultWholeGeography,
		LabelYear:       opts.LabelYear,
	}
}

// mergePipelineConfig overlays non-empty file fields onto the base config.
func mergePipelineConfig(base PipelineConfig, override pipelineFileConfig) (PipelineConfig, error) {
	if v := strings.TrimSpace(override.Cutoff); v != "" {
		cutoff, err := time.Parse(cutoffLayout, v)
		if err != nil {
			return base, fmt.Errorf("pipeline.cutoff: %w", err)
		}
		base.Cutoff = cutoff
	}
	if v := strings.TrimSpace(override.DateLayout); v != "" {
		base.DateLayout = v
	}
	if v := strings.TrimSpace(override.TimePeriod); v != "" {
		base.TimePeriod = v
	}
	if v := strings.TrimSpace(override.Method); v != "" {
		base.Method = v
	}
	if v := strings.TrimSpace(override.OutcomeAllCause); v != "" {
		base.OutcomeAllCause = v
	}
	if v := strings.TrimSpace(override.OutcomeCovid); v != "" {
		base.OutcomeCovid = v
	}
	if override.CategoryPrefix != nil {
		base.CategoryPrefix = *override.CategoryPrefix
	}
	if len(override.Categories) > 0 {
		base.Categories = append([]string{}, override.Categories...)
	}
	if len(override.Aliases) > 0 {
		base.Aliases = copyStringMap(override.Aliases)
	}
	if len(override.BaselineColumns) > 0 {
		base.BaselineColumns = copyStringMap(override.BaselineColumns)
	}
	if v := strings.TrimSpace(override.BaselineGeoCol); v != "" {
		base.BaselineGeoCol = v
	}
	if v := strings.TrimSpace(override.WholeGeography); v != "" {
		base.WholeGeography = v
	}
	if override.LabelYear != nil && *override.LabelYear > 0 {
		base.LabelYear = *override.LabelYear
	}
	return base, nil
}

func validatePipeline(p PipelineConfig) error {
	if len(p.Categories) == 0 {
		return fmt.Errorf("pipeline.categories must not be empty")
	}
	known := make(map[string]bool, len(p.Categories))
	for _, c := range p.Categories {
		if known[c] {
			return fmt.Errorf("pipeline.categories lists %q twice", c)
		}
		known[c] = true
	}
	for alias, target := range p.Aliases {
		if !known[target] {
			return fmt.Errorf("pipeline.aliases[%q] targets unknown category %q", alias, target)
		}
	}
	if len(p.BaselineColumns) == 0 {
		return fmt.Errorf("pipeline.baseline_columns must not be empty")
	}
	for col, target := range p.BaselineColumns {
		if !known[target] {
			return fmt.Errorf("pipeline.baseline_columns[%q] targets unknown category %q", col, target)
		}
	}
	if p.Cutoff.IsZero() {
		return fmt.Errorf("pipeline.cutoff is required")
	}
	if p.LabelYear <= 0 {
		return fmt.Errorf("pipeline.label_year must be positive")
	}
	return nil
}

// Options converts the pipeline config to mortality options.
func (p PipelineConfig) Options() mortality.Options {
	cats := make([]mortality.Category, len(p.Categories))
	for i, c := range p.Categories {
		cats[i] = mortality.Category(c)
	}
	aliases := make(map[string]mortality.Category, len(p.Aliases))
	for k, v := range p.Aliases {
		aliases[k] = mortality.Category(v)
	}
	return mortality.Options{
		DateLayout:      p.DateLayout,
		Cutoff:          p.Cutoff,
		TimePeriod:      p.TimePeriod,
		Method:          p.Method,
		OutcomeAllCause: p.OutcomeAllCause,
		OutcomeCovid:    p.OutcomeCovid,
		CategoryPrefix:  p.CategoryPrefix,
		Aliases:         aliases,
		Categories:      cats,
		LabelYear:       p.LabelYear,
	}
}

// BaselineOptions converts the baseline column mapping to mortality options.
func (p PipelineConfig) BaselineOptions() mortality.BaselineOptions {
	cols := make(map[string]mortality.Category, len(p.BaselineColumns))
	for k, v := range p.BaselineColumns {
		cols[k] = mortality.Category(v)
	}
	return mortality.BaselineOptions{Columns: cols, WholeGeography: p.WholeGeography}
}

// BaselineColumnIDs lists the census columns to read, sorted.
func (p PipelineConfig) BaselineColumnIDs() []string {
	ids := make([]string, 0, len(p.BaselineColumns))
	for id := range p.BaselineColumns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func stringMap(m map[string]mortality.Category) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = string(v)
	}
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
