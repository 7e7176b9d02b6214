package formatting

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// DataUnavailable replaces a category label whose rate could not be computed.
const DataUnavailable = "Data Unavailable"

// GeographyLabel renders the narrative line for one geography.
// The parenthetical share is omitted when shareValid is false.
func GeographyLabel(year int, allCause, covid, share float64, shareValid bool) string {
	excess := roundInt(allCause)
	direction := "more"
	if excess < 0 {
		direction = "fewer"
		excess = -excess
	}
	lines := []string{
		fmt.Sprintf("%s %s people have died in %d relative to previous years.", humanize.Comma(excess), direction, year),
	}
	attributed := humanize.Comma(roundInt(covid))
	if shareValid {
		lines = append(lines, fmt.Sprintf("%s (or %d%%) of these deaths were directly attributed to COVID-19.", attributed, roundInt(share*100)))
	} else {
		lines = append(lines, fmt.Sprintf("%s of these deaths were directly attributed to COVID-19.", attributed))
	}
	return strings.Join(lines, " ")
}

// CategoryLabel renders the signed excess count and signed percentage for a category.
func CategoryLabel(excess, rate float64, rateValid bool) string {
	if !rateValid || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return DataUnavailable
	}
	return fmt.Sprintf("%s deaths (%s%%) relative to previous years", signedComma(roundInt(excess)), signedComma(roundInt(rate*100)))
}

func signedComma(v int64) string {
	if v > 0 {
		return "+" + humanize.Comma(v)
	}
	return humanize.Comma(v)
}

// roundInt rounds half away from zero.
func roundInt(v float64) int64 {
	r := math.Round(v)
	if r == 0 {
		return 0
	}
	return int64(r)
}
