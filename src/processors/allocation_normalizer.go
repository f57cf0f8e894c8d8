package processors

import (
	"math"

	"github.com/username/advisorcrm/backend/src/models"
)

// NormalizeAllocation validates an allocation's percentage sum and rescales it
// to exactly 100 when the raw sum deviates by more than the tolerance. Each
// line becomes percentage * 100 / total, which preserves the relative
// proportions between lines.
//
// Upstream allocations (hand-entered or LLM-proposed) do not always sum
// exactly to 100. This must run before any weighted aggregation that treats
// percentages as fractions-of-100.
//
// The input slice is never mutated; the returned slice is a working copy.
func NormalizeAllocation(lines []models.AllocationLine) []models.AllocationLine {
	normalized := make([]models.AllocationLine, len(lines))
	copy(normalized, lines)

	total := models.AllocationTotal(normalized)
	if total <= 0 {
		return normalized
	}
	if math.Abs(total-100.0) <= AllocationSumTolerance {
		return normalized
	}

	for i := range normalized {
		normalized[i].Percentage = normalized[i].Percentage * 100.0 / total
	}
	return normalized
}
