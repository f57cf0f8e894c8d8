package processors

// Business policy defaults for the metrics engine. These figures are asserted
// by compliance, not derived: downstream consumers (report templates, the
// suitability workflow in the CRM) depend on the exact values, so they must
// not be re-tuned here.
const (
	// DefaultRiskScore is the SRI reported when no product in the
	// allocation carries a risk indicator.
	DefaultRiskScore = 7.0

	// DefaultHorizonYears is the effective holding period used by the TER
	// formula when no product reports a holding period.
	DefaultHorizonYears = 10.0

	// Qualitative holding-period buckets for free-text fields.
	ShortTermYears  = 2.0
	MediumTermYears = 5.0
	LongTermYears   = 10.0

	// AllocationSumTolerance is the maximum deviation of an allocation's
	// percentage sum from 100 before the allocation is rescaled.
	AllocationSumTolerance = 0.1
)
