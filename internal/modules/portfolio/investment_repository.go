package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// InvestmentRepository handles CRUD operations for investments.
// Database: portfolio.db (investments table).
type InvestmentRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewInvestmentRepository creates a new investment repository
func NewInvestmentRepository(db *sql.DB, log zerolog.Logger) *InvestmentRepository {
	return &InvestmentRepository{
		db:  db,
		log: log.With().Str("repository", "investment").Logger(),
	}
}

const investmentColumns = `id, name, company_name, sector, industry, region, country,
	investment_type, investment_date, investment_amount, current_value,
	ownership_percentage, status, created_at, updated_at`

// Create inserts a new investment and returns it with its assigned id
func (r *InvestmentRepository) Create(inv Investment) (*Investment, error) {
	if inv.Status == "" {
		inv.Status = StatusActive
	}
	now := time.Now().Unix()

	result, err := r.db.Exec(`
		INSERT INTO investments
		(name, company_name, sector, industry, region, country, investment_type,
		 investment_date, investment_amount, current_value, ownership_percentage,
		 status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.Name,
		nullString(inv.CompanyName),
		nullString(inv.Sector),
		nullString(inv.Industry),
		nullString(inv.Region),
		nullString(inv.Country),
		nullString(inv.InvestmentType),
		nullString(inv.InvestmentDate),
		inv.InvestmentAmount,
		inv.CurrentValue,
		inv.OwnershipPercentage,
		inv.Status,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert investment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get investment id: %w", err)
	}

	return r.GetByID(id)
}

// GetByID returns an investment by id, or nil when it does not exist
func (r *InvestmentRepository) GetByID(id int64) (*Investment, error) {
	row := r.db.QueryRow(`SELECT `+investmentColumns+` FROM investments WHERE id = ?`, id)

	inv, err := scanInvestment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get investment %d: %w", id, err)
	}
	return inv, nil
}

// List returns investments matching the filter, newest first
func (r *InvestmentRepository) List(filter InvestmentFilter) ([]Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Sector != "" {
		query += ` AND sector = ?`
		args = append(args, filter.Sector)
	}
	if filter.Industry != "" {
		query += ` AND industry = ?`
		args = append(args, filter.Industry)
	}
	if filter.Region != "" {
		query += ` AND region = ?`
		args = append(args, filter.Region)
	}

	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	defer rows.Close()

	var investments []Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		investments = append(investments, *inv)
	}

	return investments, rows.Err()
}

// Update replaces the mutable fields of an investment
func (r *InvestmentRepository) Update(inv Investment) (*Investment, error) {
	result, err := r.db.Exec(`
		UPDATE investments
		SET name = ?,
			company_name = ?,
			sector = ?,
			industry = ?,
			region = ?,
			country = ?,
			investment_type = ?,
			investment_date = ?,
			investment_amount = ?,
			current_value = ?,
			ownership_percentage = ?,
			status = ?,
			updated_at = ?
		WHERE id = ?
	`,
		inv.Name,
		nullString(inv.CompanyName),
		nullString(inv.Sector),
		nullString(inv.Industry),
		nullString(inv.Region),
		nullString(inv.Country),
		nullString(inv.InvestmentType),
		nullString(inv.InvestmentDate),
		inv.InvestmentAmount,
		inv.CurrentValue,
		inv.OwnershipPercentage,
		inv.Status,
		time.Now().Unix(),
		inv.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update investment %d: %w", inv.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return r.GetByID(inv.ID)
}

// UpdateStatus changes only the status of an investment.
// Returns false when the investment does not exist.
func (r *InvestmentRepository) UpdateStatus(id int64, status string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE investments SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now().Unix(), id)
	if err != nil {
		return false, fmt.Errorf("failed to update investment %d status: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// DistinctSectors returns every non-empty sector present across holdings.
// Used by the nightly benchmark refresh to enumerate peer groups.
func (r *InvestmentRepository) DistinctSectors() ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT sector FROM investments
		WHERE sector IS NOT NULL AND sector != ''
		ORDER BY sector
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct sectors: %w", err)
	}
	defer rows.Close()

	var sectors []string
	for rows.Next() {
		var sector string
		if err := rows.Scan(&sector); err != nil {
			return nil, fmt.Errorf("failed to scan sector: %w", err)
		}
		sectors = append(sectors, sector)
	}

	return sectors, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan code
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInvestment(s scanner) (*Investment, error) {
	var inv Investment
	var companyName, sector, industry, region, country, invType, invDate sql.NullString
	var amount, value, ownership sql.NullFloat64
	var createdAt, updatedAt int64

	err := s.Scan(
		&inv.ID,
		&inv.Name,
		&companyName,
		&sector,
		&industry,
		&region,
		&country,
		&invType,
		&invDate,
		&amount,
		&value,
		&ownership,
		&inv.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.CompanyName = companyName.String
	inv.Sector = sector.String
	inv.Industry = industry.String
	inv.Region = region.String
	inv.Country = country.String
	inv.InvestmentType = invType.String
	inv.InvestmentDate = invDate.String
	inv.InvestmentAmount = nullableFloat(amount)
	inv.CurrentValue = nullableFloat(value)
	inv.OwnershipPercentage = nullableFloat(ownership)
	inv.CreatedAt = time.Unix(createdAt, 0).UTC()
	inv.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &inv, nil
}

// nullString maps "" to NULL so empty strings never masquerade as values
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
