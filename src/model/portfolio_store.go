package model

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/username/advisorcrm/backend/src/logger"
	"github.com/username/advisorcrm/backend/src/models"
)

// PortfolioStore persists model portfolios: one header row carrying the
// denormalized metrics plus N allocation rows. The header and its rows are
// always written in a single transaction so a partially-written portfolio is
// never observable.
type PortfolioStore struct {
	db *sql.DB
}

func NewPortfolioStore(db *sql.DB) *PortfolioStore {
	return &PortfolioStore{db: db}
}

// InsertModelPortfolio writes the header and allocation rows atomically and
// returns the new portfolio ID. Percentages are persisted as decimal-formatted
// strings.
func (s *PortfolioStore) InsertModelPortfolio(p *models.ModelPortfolio, lines []models.AllocationLine) (int64, error) {
	distribution, err := json.Marshal(p.AssetDistribution)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO model_portfolios (name, description, average_risk, average_horizon,
			total_expense_ratio, entry_cost, exit_cost, ongoing_cost, transaction_cost,
			asset_distribution, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.AverageRisk, nullableFloat(p.AverageHorizon),
		p.TotalExpenseRatio, p.EntryCost, p.ExitCost, p.OngoingCost, p.TransactionCost,
		string(distribution), time.Now())
	if err != nil {
		return 0, err
	}
	portfolioID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO model_portfolio_allocations (portfolio_id, product_id, percentage, category)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, line := range lines {
		percentage := strconv.FormatFloat(line.Percentage, 'f', 2, 64)
		if _, err := stmt.Exec(portfolioID, line.ProductID, percentage, line.Category); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return portfolioID, nil
}

// ListModelPortfolios returns all portfolio headers, newest first, without
// their allocation rows.
func (s *PortfolioStore) ListModelPortfolios() ([]models.ModelPortfolio, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, average_risk, average_horizon, total_expense_ratio,
			entry_cost, exit_cost, ongoing_cost, transaction_cost, asset_distribution, created_at
		FROM model_portfolios ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	portfolios := []models.ModelPortfolio{}
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			logger.L.Error("Error scanning portfolio row", "error", err)
			continue
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

// GetModelPortfolio returns a portfolio header with its allocation rows, or
// sql.ErrNoRows when absent.
func (s *PortfolioStore) GetModelPortfolio(id int64) (*models.ModelPortfolio, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, average_risk, average_horizon, total_expense_ratio,
			entry_cost, exit_cost, ongoing_cost, transaction_cost, asset_distribution, created_at
		FROM model_portfolios WHERE id = ?`, id)
	p, err := scanPortfolio(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT id, portfolio_id, product_id, percentage, category
		FROM model_portfolio_allocations WHERE portfolio_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a models.PortfolioAllocationRow
		var category sql.NullString
		if err := rows.Scan(&a.ID, &a.PortfolioID, &a.ProductID, &a.Percentage, &category); err != nil {
			return nil, err
		}
		a.Category = category.String
		p.Allocations = append(p.Allocations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteModelPortfolio removes a portfolio and its allocation rows. The child
// delete is explicit so removal does not depend on the connection having
// foreign_keys enabled.
func (s *PortfolioStore) DeleteModelPortfolio(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM model_portfolio_allocations WHERE portfolio_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM model_portfolios WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

func scanPortfolio(row rowScanner) (models.ModelPortfolio, error) {
	var p models.ModelPortfolio
	var description sql.NullString
	var horizon sql.NullFloat64
	var distribution string
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&description,
		&p.AverageRisk,
		&horizon,
		&p.TotalExpenseRatio,
		&p.EntryCost,
		&p.ExitCost,
		&p.OngoingCost,
		&p.TransactionCost,
		&distribution,
		&p.CreatedAt,
	); err != nil {
		return p, err
	}
	p.Description = description.String
	if horizon.Valid {
		h := horizon.Float64
		p.AverageHorizon = &h
	}
	if err := json.Unmarshal([]byte(distribution), &p.AssetDistribution); err != nil {
		logger.L.Warn("Malformed asset_distribution JSON, leaving empty", "portfolioID", p.ID, "error", err)
		p.AssetDistribution = map[string]float64{}
	}
	return p, nil
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
