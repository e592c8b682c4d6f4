package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "freight-cloud/internal/masterdata/domain"
)

const defaultVehiclesTable = "vehicles"

// VehicleRepository is a Postgres implementation for vehicles.
type VehicleRepository struct {
	db    DBTX
	table string
}

// NewVehicleRepository constructs a repository.
func NewVehicleRepository(db DBTX, opts ...VehicleOption) *VehicleRepository {
	repo := &VehicleRepository{db: db, table: defaultVehiclesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// VehicleOption configures the repository.
type VehicleOption func(*VehicleRepository)

// WithVehicleTable overrides the default table name.
func WithVehicleTable(table string) VehicleOption {
	return func(repo *VehicleRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a vehicle by id.
func (r *VehicleRepository) Get(ctx context.Context, id string) (*masterdata.Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("vehicle repo: nil db")
	}
	if id == "" {
		return nil, errors.New("vehicle repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, company_id, registration, capacity, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var vehicle masterdata.Vehicle
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&vehicle.ID,
		&vehicle.CompanyID,
		&vehicle.Registration,
		&vehicle.Capacity,
		&vehicle.CreatedAt,
		&vehicle.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	vehicle.CreatedAt = vehicle.CreatedAt.UTC()
	vehicle.UpdatedAt = vehicle.UpdatedAt.UTC()
	return &vehicle, nil
}

// ListByCompany returns all vehicles for a company ordered by id.
func (r *VehicleRepository) ListByCompany(ctx context.Context, companyID string) ([]masterdata.Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("vehicle repo: nil db")
	}
	if companyID == "" {
		return nil, errors.New("vehicle repo: empty company id")
	}

	query := fmt.Sprintf(`
SELECT id, company_id, registration, capacity, created_at, updated_at
FROM %s
WHERE company_id = $1
ORDER BY id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Vehicle
	for rows.Next() {
		var vehicle masterdata.Vehicle
		if err := rows.Scan(
			&vehicle.ID,
			&vehicle.CompanyID,
			&vehicle.Registration,
			&vehicle.Capacity,
			&vehicle.CreatedAt,
			&vehicle.UpdatedAt,
		); err != nil {
			return nil, err
		}
		vehicle.CreatedAt = vehicle.CreatedAt.UTC()
		vehicle.UpdatedAt = vehicle.UpdatedAt.UTC()
		result = append(result, vehicle)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts a vehicle.
func (r *VehicleRepository) Save(ctx context.Context, vehicle *masterdata.Vehicle) error {
	if r == nil || r.db == nil {
		return errors.New("vehicle repo: nil db")
	}
	if vehicle == nil {
		return errors.New("vehicle repo: nil vehicle")
	}
	if err := vehicle.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	company_id,
	registration,
	capacity
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (id)
DO UPDATE SET
	company_id = EXCLUDED.company_id,
	registration = EXCLUDED.registration,
	capacity = EXCLUDED.capacity,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		vehicle.ID,
		vehicle.CompanyID,
		vehicle.Registration,
		vehicle.Capacity,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = now
	}
	vehicle.UpdatedAt = now
	return nil
}
