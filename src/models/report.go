package models

// MetricsReport is the computed output of the portfolio metrics calculator.
// It is ephemeral: built once per calculation, never mutated afterwards, and
// either returned to the caller or persisted as the basis of a ModelPortfolio.
//
// The per-line trace slices exist for auditability: a reviewer must be able to
// reconstruct how each scalar was derived from which product lines.
type MetricsReport struct {
	AverageRisk float64 `json:"averageRisk"`

	// Nil when no product in the allocation carries a usable holding period.
	// The TER formula still substitutes the 10-year policy default in that case.
	AverageInvestmentHorizon *float64 `json:"averageInvestmentHorizon"`

	AssetClassDistribution map[string]float64 `json:"assetClassDistribution"`

	TotalExpenseRatio float64 `json:"totalExpenseRatio"`
	EntryCost         float64 `json:"entryCost"`
	ExitCost          float64 `json:"exitCost"`
	OngoingCost       float64 `json:"ongoingCost"`
	TransactionCost   float64 `json:"transactionCost"`

	ProductDetails     []ProductDetail `json:"productDetails"`
	RiskCalculation    []RiskTrace     `json:"riskCalculation"`
	HorizonCalculation []HorizonTrace  `json:"horizonCalculation"`
	CostCalculation    []CostTrace     `json:"costCalculation"`
}

// ProductDetail is the per-line audit row: the resolved category, the
// (possibly rescaled) percentage and the normalized per-product figures.
// Risk and Horizon are nil when the product carries no usable value.
type ProductDetail struct {
	ProductID       int64    `json:"productId"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	Percentage      float64  `json:"percentage"`
	Risk            *float64 `json:"risk"`
	Horizon         *float64 `json:"horizon"`
	EntryCost       float64  `json:"entryCost"`
	ExitCost        float64  `json:"exitCost"`
	OngoingCost     float64  `json:"ongoingCost"`
	TransactionCost float64  `json:"transactionCost"`
}

// RiskTrace records one line's contribution to the weighted risk average.
type RiskTrace struct {
	Weight       float64 `json:"weight"`
	Risk         float64 `json:"risk"`
	Contribution float64 `json:"contribution"`
}

// HorizonTrace records one line's contribution to the weighted horizon average.
type HorizonTrace struct {
	Weight       float64 `json:"weight"`
	Horizon      float64 `json:"horizon"`
	Contribution float64 `json:"contribution"`
}

// CostTrace records one line's normalized cost components. A component is zero
// when the raw field was absent or unparseable; absence is tracked per
// component inside the calculator, not in the trace.
type CostTrace struct {
	Weight      float64 `json:"weight"`
	Entry       float64 `json:"entry"`
	Exit        float64 `json:"exit"`
	Ongoing     float64 `json:"ongoing"`
	Transaction float64 `json:"transaction"`
}
