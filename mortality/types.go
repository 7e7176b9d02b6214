package mortality

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// Category is a race/ethnicity classification.
type Category string

const (
	White          Category = "White"
	Black          Category = "Black"
	Hispanic       Category = "Hispanic"
	Asian          Category = "Asian"
	NativeAmerican Category = "Native American"
	Other          Category = "Other"
)

// DefaultCategories is the recognized category set in display order.
var DefaultCategories = []Category{White, Black, Hispanic, Asian, NativeAmerican, Other}

// RawRecord is one row of the unprocessed weekly dataset.
type RawRecord struct {
	Row               int
	GeographyCode     string
	GeographyName     string
	Date              string
	Category          string
	Outcome           string
	TimePeriod        string
	Method            string
	Observed          float64
	Difference        *float64
	PercentDifference *float64
}

// CanonicalRecord is a RawRecord after date parsing, category remapping and filtering.
type CanonicalRecord struct {
	Row               int
	GeographyCode     string
	GeographyName     string
	Date              time.Time
	Category          Category
	Outcome           string
	Observed          float64
	Difference        *float64
	PercentDifference *float64
}

// WideRow holds both outcome types for one (geography, date, category) key.
// A nil field means the source had no value for that side.
type WideRow struct {
	GeographyCode      string    `json:"geography_code"`
	GeographyName      string    `json:"geography_name"`
	Date               time.Time `json:"date"`
	Category           Category  `json:"category"`
	AllCauseDifference *float64  `json:"all_cause_difference"`
	AllCausePercent    *float64  `json:"all_cause_percent"`
	CovidDifference    *float64  `json:"covid_difference"`
	CovidPercent       *float64  `json:"covid_percent"`
}

// CategoryRollup sums the all-cause outcome for one geography and category.
type CategoryRollup struct {
	GeographyCode string   `json:"geography_code"`
	GeographyName string   `json:"geography_name"`
	Category      Category `json:"category"`
	Difference    float64  `json:"difference"`
	Observed      float64  `json:"observed"`
	Rate          Ratio    `json:"rate"`
	Rank          int      `json:"rank"`
}

// GeographyTotals sums differences per outcome for one geography.
type GeographyTotals struct {
	GeographyCode string  `json:"geography_code"`
	GeographyName string  `json:"geography_name"`
	AllCause      float64 `json:"all_cause"`
	Covid         float64 `json:"covid"`
}

// CategorySummary is the per-category part of a GeographySummary.
type CategorySummary struct {
	Category        Category `json:"category"`
	Excess          float64  `json:"excess"`
	Observed        float64  `json:"observed"`
	Rate            Ratio    `json:"rate"`
	DeathShare      Ratio    `json:"death_share"`
	PopulationShare Ratio    `json:"population_share"`
	Rank            int      `json:"rank"`
	Label           string   `json:"label"`
}

// GeographySummary is the annotated record handed to the renderer.
type GeographySummary struct {
	GeographyCode  string              `json:"geography_code"`
	GeographyName  string              `json:"geography_name"`
	AllCauseExcess float64             `json:"all_cause_excess"`
	CovidExcess    float64             `json:"covid_excess"`
	CovidShare     Ratio               `json:"covid_share"`
	Categories     []CategorySummary   `json:"categories"`
	CategoryLabels map[Category]string `json:"category_labels"`
	Label          string              `json:"label"`
}

// ErrUndefinedRatio is returned when reading a ratio whose denominator was zero.
var ErrUndefinedRatio = errors.New("undefined ratio")

// Ratio is a quotient that may be undefined. The zero value is undefined.
type Ratio struct {
	Value float64
	Valid bool
}

// Defined wraps a known value.
func Defined(v float64) Ratio {
	return Ratio{Value: v, Valid: true}
}

// Divide returns num/den, or an undefined ratio when den is zero or the result is not finite.
func Divide(num, den float64) Ratio {
	if den == 0 {
		return Ratio{}
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Ratio{}
	}
	return Defined(v)
}

// Float returns the value or ErrUndefinedRatio.
func (r Ratio) Float() (float64, error) {
	if !r.Valid {
		return 0, ErrUndefinedRatio
	}
	return r.Value, nil
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ratio{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Defined(v)
	return nil
}

// OrZero reads a nullable value, treating unset as zero for summation.
func OrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func floatPtr(v float64) *float64 {
	return &v
}
