package processors

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseCost normalizes one raw product cost field into a fractional decimal.
//
// Cost fields arrive in whatever shape the source document used: a number, a
// numeric string ("2.00"), or a percentage string ("2.00%", possibly padded
// with whitespace). Every input is treated as percentage points and divided by
// 100 whether or not a "%" marker is present, so 2.0 and "2.00%" both yield
// 0.02. All cost figures in the source data are percentage points, so a value
// like "0.02" means 0.02% (0.0002), not 2%.
//
// The second return value is false when the field is absent, empty, or not
// parseable to a finite number; such fields are excluded from aggregation
// rather than contributing zero. ParseCost never fails.
func ParseCost(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return finiteFraction(v)
	case float32:
		return finiteFraction(float64(v))
	case int:
		return finiteFraction(float64(v))
	case int64:
		return finiteFraction(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return finiteFraction(f)
	case string:
		return parseCostString(v)
	default:
		return 0, false
	}
}

func parseCostString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// Source documents use the decimal comma as often as the decimal point.
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finiteFraction(f)
}

func finiteFraction(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f / 100.0, true
}
