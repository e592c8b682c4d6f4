package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "freight-cloud/internal/masterdata/domain"
)

const defaultAgenciesTable = "agencies"

// AgencyRepository is a Postgres implementation for agencies.
type AgencyRepository struct {
	db    DBTX
	table string
}

// NewAgencyRepository constructs a repository.
func NewAgencyRepository(db DBTX, opts ...AgencyOption) *AgencyRepository {
	repo := &AgencyRepository{db: db, table: defaultAgenciesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// AgencyOption configures the repository.
type AgencyOption func(*AgencyRepository)

// WithAgencyTable overrides the default table name.
func WithAgencyTable(table string) AgencyOption {
	return func(repo *AgencyRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads an agency by id.
func (r *AgencyRepository) Get(ctx context.Context, id string) (*masterdata.Agency, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("agency repo: nil db")
	}
	if id == "" {
		return nil, errors.New("agency repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, company_id, name, city, region, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var agency masterdata.Agency
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&agency.ID,
		&agency.CompanyID,
		&agency.Name,
		&agency.City,
		&agency.Region,
		&agency.CreatedAt,
		&agency.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	agency.CreatedAt = agency.CreatedAt.UTC()
	agency.UpdatedAt = agency.UpdatedAt.UTC()
	return &agency, nil
}

// ListByCompany returns all agencies for a company ordered by id.
func (r *AgencyRepository) ListByCompany(ctx context.Context, companyID string) ([]masterdata.Agency, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("agency repo: nil db")
	}
	if companyID == "" {
		return nil, errors.New("agency repo: empty company id")
	}

	query := fmt.Sprintf(`
SELECT id, company_id, name, city, region, created_at, updated_at
FROM %s
WHERE company_id = $1
ORDER BY id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Agency
	for rows.Next() {
		var agency masterdata.Agency
		if err := rows.Scan(
			&agency.ID,
			&agency.CompanyID,
			&agency.Name,
			&agency.City,
			&agency.Region,
			&agency.CreatedAt,
			&agency.UpdatedAt,
		); err != nil {
			return nil, err
		}
		agency.CreatedAt = agency.CreatedAt.UTC()
		agency.UpdatedAt = agency.UpdatedAt.UTC()
		result = append(result, agency)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts an agency.
func (r *AgencyRepository) Save(ctx context.Context, agency *masterdata.Agency) error {
	if r == nil || r.db == nil {
		return errors.New("agency repo: nil db")
	}
	if agency == nil {
		return errors.New("agency repo: nil agency")
	}
	if err := agency.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	company_id,
	name,
	city,
	region
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (id)
DO UPDATE SET
	company_id = EXCLUDED.company_id,
	name = EXCLUDED.name,
	city = EXCLUDED.city,
	region = EXCLUDED.region,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		agency.ID,
		agency.CompanyID,
		agency.Name,
		agency.City,
		agency.Region,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if agency.CreatedAt.IsZero() {
		agency.CreatedAt = now
	}
	agency.UpdatedAt = now
	return nil
}
