package models

import "time"

// Asset categories used in the product catalog and in allocation overrides.
// Unknown or missing categories fall back to CategoryOther.
const (
	CategoryEquity      = "equity"
	CategoryBonds       = "bonds"
	CategoryCash        = "cash"
	CategoryRealEstate  = "real_estate"
	CategoryCommodities = "commodities"
	CategoryOther       = "other"
)

// ProductRecord represents one financial instrument from the product catalog.
// The cost and holding-period fields are stored exactly as extracted from the
// source documents (KID/KIID sheets), so they arrive in heterogeneous formats:
// "2.00%", "2.00", "0.45", free text. Normalization happens only inside the
// metrics engine, never at the storage layer.
type ProductRecord struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ISIN          string `json:"isin,omitempty"`
	AssetCategory string `json:"asset_category"`

	// SRI 1-7. Nil when the source document does not report one.
	RiskIndicator *int `json:"risk_indicator"`

	HoldingPeriodRaw   string `json:"holding_period_raw"`
	EntryCostRaw       string `json:"entry_cost_raw"`
	ExitCostRaw        string `json:"exit_cost_raw"`
	OngoingCostRaw     string `json:"ongoing_cost_raw"`
	TransactionCostRaw string `json:"transaction_cost_raw"`
	PerformanceFeeRaw  string `json:"performance_fee_raw"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category returns the product's asset category, defaulting to "other".
func (p *ProductRecord) Category() string {
	if p.AssetCategory == "" {
		return CategoryOther
	}
	return p.AssetCategory
}
