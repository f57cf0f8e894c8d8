package processors

// WeightedAverageBy computes a weight-conditioned average over the items whose
// extractor reports a present value: sum(w_i*v_i) / sum(w_i), with absent
// values excluded from both numerator and denominator. Missing data is never
// treated as zero.
//
// Weights are allocation fractions (percentage / 100) and are NOT rescaled to
// sum to 1 over the present-only subset. If only 60% of the allocation weight
// carries a known value, the divisor is that 0.60, which makes the result a
// true weighted average over the informative lines.
//
// When no weight mass has a present value, the fallback is returned and the
// second return value is false, so callers can distinguish "no data, policy
// default applied" from a computed figure.
func WeightedAverageBy[T any](items []T, weight func(T) float64, value func(T) (float64, bool), fallback float64) (float64, bool) {
	var weightedSum, coverage float64
	for _, item := range items {
		v, ok := value(item)
		if !ok {
			continue
		}
		w := weight(item)
		weightedSum += w * v
		coverage += w
	}
	if coverage <= 0 {
		return fallback, false
	}
	return weightedSum / coverage, true
}

// WeightedValue is the plain (weight, optional value) pair form used when no
// richer carrier type is at hand.
type WeightedValue struct {
	Weight  float64
	Value   float64
	Present bool
}

// WeightedAverage is WeightedAverageBy over bare WeightedValue pairs.
func WeightedAverage(values []WeightedValue, fallback float64) (float64, bool) {
	return WeightedAverageBy(values,
		func(v WeightedValue) float64 { return v.Weight },
		func(v WeightedValue) (float64, bool) { return v.Value, v.Present },
		fallback)
}
