package processors

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Holding-period fields are free text in the source documents, so the parser
// has to recognize a range of shapes: plain numbers, "5 anni", "18 months",
// "3-5 years", or purely qualitative wording ("long term"). Patterns are
// tried in order; the first match wins.
var (
	integerPattern = regexp.MustCompile(`^\d+$`)
	decimalPattern = regexp.MustCompile(`^\d+[.,]\d+$`)
	yearsPattern   = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:years?|yrs?|ann[oi])`)
	monthsPattern  = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:months?|mes[ei])`)
)

// ParseHorizon normalizes a raw recommended-holding-period field into years.
//
// Parse order, first match wins:
//  1. numeric type: used directly as years
//  2. integer string: parsed as integer years
//  3. decimal string: parsed as float years
//  4. number followed by a year unit token ("5 years", "3 anni")
//  5. number followed by a month unit token ("18 months", "6 mesi"): divided by 12
//  6. text containing "short": 2 years
//  7. text containing "medium": 5 years
//  8. text containing "long": 10 years
//
// Anything else is reported as absent (ok=false) and excluded from
// aggregation; it never degrades to zero years. ParseHorizon never fails.
func ParseHorizon(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return finiteYears(v)
	case float32:
		return finiteYears(float64(v))
	case int:
		return finiteYears(float64(v))
	case int64:
		return finiteYears(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return finiteYears(f)
	case string:
		return parseHorizonString(v)
	default:
		return 0, false
	}
}

func parseHorizonString(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	if integerPattern.MatchString(s) {
		years, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return float64(years), true
	}

	if decimalPattern.MatchString(s) {
		years, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil {
			return 0, false
		}
		return finiteYears(years)
	}

	if m := yearsPattern.FindStringSubmatch(s); m != nil {
		years, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil {
			return finiteYears(years)
		}
	}

	if m := monthsPattern.FindStringSubmatch(s); m != nil {
		months, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil {
			return finiteYears(months / 12.0)
		}
	}

	// Qualitative buckets for wording like "short term" or "lungo periodo"
	// already translated upstream to "long".
	switch {
	case strings.Contains(s, "short"):
		return ShortTermYears, true
	case strings.Contains(s, "medium"):
		return MediumTermYears, true
	case strings.Contains(s, "long"):
		return LongTermYears, true
	}

	return 0, false
}

func finiteYears(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
