package models

// AllocationLine pairs a product with a percentage weight (0-100) inside a
// portfolio allocation. Category is an optional override of the product's own
// asset category; when empty, the product's category applies.
type AllocationLine struct {
	ProductID  int64   `json:"productId"`
	Percentage float64 `json:"percentage"`
	Category   string  `json:"category,omitempty"`
}

// AllocationTotal sums the raw percentages of an allocation.
func AllocationTotal(lines []AllocationLine) float64 {
	var total float64
	for _, l := range lines {
		total += l.Percentage
	}
	return total
}
