// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"

	"github.com/username/advisorcrm/backend/src/models"
)

// Define common service errors
var (
	ErrEmptyAllocation  = errors.New("allocation list is empty")
	ErrProposerDisabled = errors.New("allocation proposer is not configured")
	ErrProposalFailed   = errors.New("allocation proposal failed")
)

// ProductStore is the product-lookup collaborator boundary. Missing IDs are
// tolerated: the returned map simply lacks them.
type ProductStore interface {
	GetProductsByIDs(ids []int64) (map[int64]models.ProductRecord, error)
	ListProducts() ([]models.ProductRecord, error)
	GetProductByID(id int64) (*models.ProductRecord, error)
}

// PortfolioStore is the persistence collaborator boundary. InsertModelPortfolio
// must write the header and its allocation rows in one atomic transaction.
type PortfolioStore interface {
	InsertModelPortfolio(p *models.ModelPortfolio, lines []models.AllocationLine) (int64, error)
	ListModelPortfolios() ([]models.ModelPortfolio, error)
	GetModelPortfolio(id int64) (*models.ModelPortfolio, error)
	DeleteModelPortfolio(id int64) error
}

// MetricsService computes portfolio metrics reports and persists model
// portfolios built from them.
type MetricsService interface {
	// CalculateMetrics normalizes the allocation, resolves products and
	// returns the report plus the normalized working copy of the lines.
	// Malformed per-product data never fails the calculation; only a
	// failing product lookup is returned as an error.
	CalculateMetrics(ctx context.Context, lines []models.AllocationLine) (*models.MetricsReport, []models.AllocationLine, error)

	// SavePortfolio computes the report and persists header + allocation
	// rows atomically, returning the new portfolio ID with the report.
	SavePortfolio(ctx context.Context, name, description string, lines []models.AllocationLine) (int64, *models.MetricsReport, error)
}

// AllocationProposer is the LLM collaborator boundary: it turns an advisory
// brief and a risk target into a candidate allocation over the given catalog.
// Proposed allocations are candidates only; the caller normalizes and computes
// metrics over them before showing anything to an advisor.
type AllocationProposer interface {
	ProposeAllocation(ctx context.Context, brief string, riskTarget int, products []models.ProductRecord) ([]models.AllocationLine, error)
}
