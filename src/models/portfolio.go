package models

import "time"

// ModelPortfolio is the persisted form of a computed allocation: the scalar
// metrics are stored denormalized alongside the categorical distribution, and
// the portfolio owns its allocation rows. Updates go through full
// recomputation; rows are removed by cascading delete.
type ModelPortfolio struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	AverageRisk       float64  `json:"average_risk"`
	AverageHorizon    *float64 `json:"average_horizon"`
	TotalExpenseRatio float64  `json:"total_expense_ratio"`
	EntryCost         float64  `json:"entry_cost"`
	ExitCost          float64  `json:"exit_cost"`
	OngoingCost       float64  `json:"ongoing_cost"`
	TransactionCost   float64  `json:"transaction_cost"`

	AssetDistribution map[string]float64 `json:"asset_distribution"`

	CreatedAt time.Time `json:"created_at"`

	Allocations []PortfolioAllocationRow `json:"allocations,omitempty"`
}

// PortfolioAllocationRow is one persisted allocation line. Percentage is
// stored as a decimal-formatted string, exactly as written to the database.
type PortfolioAllocationRow struct {
	ID          int64  `json:"id"`
	PortfolioID int64  `json:"portfolio_id"`
	ProductID   int64  `json:"product_id"`
	Percentage  string `json:"percentage"`
	Category    string `json:"category,omitempty"`
}
