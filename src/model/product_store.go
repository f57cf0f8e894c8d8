package model

import (
	"database/sql"
	"strings"
	"time"

	"github.com/username/advisorcrm/backend/src/logger"
	"github.com/username/advisorcrm/backend/src/models"
)

// ProductStore provides read access to the product catalog. Products are
// owned by the CRM's document-ingestion flow and are read-only here.
type ProductStore struct {
	db *sql.DB
}

func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

const productColumns = `id, name, isin, asset_category, risk_indicator, holding_period_raw,
	entry_cost_raw, exit_cost_raw, ongoing_cost_raw, transaction_cost_raw, performance_fee_raw,
	created_at, updated_at`

// GetProductsByIDs retrieves multiple products in a single query.
// It returns a map keyed by product ID; missing IDs are simply not present in
// the map, which the calculator tolerates.
func (s *ProductStore) GetProductsByIDs(ids []int64) (map[int64]models.ProductRecord, error) {
	products := make(map[int64]models.ProductRecord)
	if len(ids) == 0 {
		return products, nil
	}
	// Using `IN` clause is efficient for batch lookups.
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			logger.L.Error("Error scanning product row", "error", err)
			continue
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

// ListProducts returns the whole catalog ordered by name.
func (s *ProductStore) ListProducts() ([]models.ProductRecord, error) {
	rows, err := s.db.Query(`SELECT ` + productColumns + ` FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []models.ProductRecord{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			logger.L.Error("Error scanning product row", "error", err)
			continue
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProductByID returns a single product, or sql.ErrNoRows when absent.
func (s *ProductStore) GetProductByID(id int64) (*models.ProductRecord, error) {
	row := s.db.QueryRow(`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertProduct stores a new catalog entry with raw fields kept verbatim.
func (s *ProductStore) InsertProduct(p *models.ProductRecord) (int64, error) {
	now := time.Now()
	res, err := s.db.Exec(`
		INSERT INTO products (name, isin, asset_category, risk_indicator, holding_period_raw,
			entry_cost_raw, exit_cost_raw, ongoing_cost_raw, transaction_cost_raw, performance_fee_raw,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.ISIN, p.Category(), nullableInt(p.RiskIndicator), p.HoldingPeriodRaw,
		p.EntryCostRaw, p.ExitCostRaw, p.OngoingCostRaw, p.TransactionCostRaw, p.PerformanceFeeRaw,
		now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (models.ProductRecord, error) {
	var p models.ProductRecord
	var isin sql.NullString
	var risk sql.NullInt64
	var holding, entry, exit, ongoing, txn, perf sql.NullString
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&isin,
		&p.AssetCategory,
		&risk,
		&holding,
		&entry,
		&exit,
		&ongoing,
		&txn,
		&perf,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return p, err
	}
	p.ISIN = isin.String
	if risk.Valid {
		r := int(risk.Int64)
		p.RiskIndicator = &r
	}
	p.HoldingPeriodRaw = holding.String
	p.EntryCostRaw = entry.String
	p.ExitCostRaw = exit.String
	p.OngoingCostRaw = ongoing.String
	p.TransactionCostRaw = txn.String
	p.PerformanceFeeRaw = perf.String
	return p, nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
