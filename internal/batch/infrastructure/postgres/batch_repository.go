package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	batch "freight-cloud/internal/batch/domain"
)

const (
	defaultBatchesTable        = "freight_batches"
	defaultBatchShipmentsTable = "freight_batch_shipments"
)

// BatchRepository is a Postgres implementation for batch aggregates. The
// header row carries a version column; Update commits through a
// version-guarded UPDATE so stale writers observe ErrVersionConflict.
type BatchRepository struct {
	db             *sql.DB
	table          string
	shipmentsTable string
}

// NewBatchRepository constructs a repository.
func NewBatchRepository(db *sql.DB, opts ...RepositoryOption) *BatchRepository {
	repo := &BatchRepository{
		db:             db,
		table:          defaultBatchesTable,
		shipmentsTable: defaultBatchShipmentsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*BatchRepository)

// WithTables overrides the default table names.
func WithTables(batches, shipments string) RepositoryOption {
	return func(repo *BatchRepository) {
		if batches != "" {
			repo.table = batches
		}
		if shipments != "" {
			repo.shipmentsTable = shipments
		}
	}
}

// Insert stores a new batch header and its (usually empty) shipment rows.
func (r *BatchRepository) Insert(ctx context.Context, b *batch.Batch) error {
	if r == nil || r.db == nil {
		return errors.New("batch repo: nil db")
	}
	if b == nil {
		return batch.ErrNilBatch
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	departure_agency_id,
	arrival_agency_id,
	vehicle_id,
	trip_id,
	departure_at,
	status,
	created_at,
	created_by,
	version
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, r.table)
	_, err = tx.ExecContext(ctx, query,
		b.ID(),
		b.DepartureAgencyID(),
		b.ArrivalAgencyID(),
		b.VehicleID(),
		nullString(b.TripID()),
		b.DepartureAt().UTC(),
		string(b.Status()),
		b.CreatedAt().UTC(),
		b.CreatedBy(),
		b.Version(),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := r.replaceShipments(ctx, tx, b); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Get loads a batch with its shipment membership.
func (r *BatchRepository) Get(ctx context.Context, batchID string) (*batch.Batch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("batch repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, departure_agency_id, arrival_agency_id, vehicle_id, trip_id,
	departure_at, status, created_at, created_by, version
FROM %s
WHERE id = $1
LIMIT 1`, r.table)
	b, err := r.scanBatch(ctx, r.db.QueryRowContext(ctx, query, batchID))
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Update commits the aggregate when the stored version matches
// expectedVersion, bumping the version by one. Shipment rows are rewritten
// inside the same transaction so readers never observe a half-committed
// membership.
func (r *BatchRepository) Update(ctx context.Context, b *batch.Batch, expectedVersion int) error {
	if r == nil || r.db == nil {
		return errors.New("batch repo: nil db")
	}
	if b == nil {
		return batch.ErrNilBatch
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = $1, version = version + 1, updated_at = NOW()
WHERE id = $2 AND version = $3`, r.table)
	result, err := tx.ExecContext(ctx, query, string(b.Status()), b.ID(), expectedVersion)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if affected == 0 {
		_ = tx.Rollback()
		return batch.ErrVersionConflict
	}
	if err := r.replaceShipments(ctx, tx, b); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	b.SetVersion(expectedVersion + 1)
	return nil
}

// ListActiveByVehicle returns non-closed batches assigned to a vehicle.
func (r *BatchRepository) ListActiveByVehicle(ctx context.Context, vehicleID string) ([]*batch.Batch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("batch repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, departure_agency_id, arrival_agency_id, vehicle_id, trip_id,
	departure_at, status, created_at, created_by, version
FROM %s
WHERE vehicle_id = $1 AND status <> $2
ORDER BY departure_at ASC`, r.table)
	return r.collectBatches(ctx, query, vehicleID, string(batch.StatusClosed))
}

// FindActiveByShipment returns the non-closed batch holding a shipment.
func (r *BatchRepository) FindActiveByShipment(ctx context.Context, shipmentID string) (*batch.Batch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("batch repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT b.id, b.departure_agency_id, b.arrival_agency_id, b.vehicle_id, b.trip_id,
	b.departure_at, b.status, b.created_at, b.created_by, b.version
FROM %s b
JOIN %s s ON s.batch_id = b.id
WHERE s.shipment_id = $1 AND b.status <> $2
LIMIT 1`, r.table, r.shipmentsTable)
	b, err := r.scanBatch(ctx, r.db.QueryRowContext(ctx, query, shipmentID, string(batch.StatusClosed)))
	if err != nil {
		if errors.Is(err, batch.ErrBatchNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// ListByAgencyWindow returns batches on either end for the agency with
// departure in [from, to), optionally filtered to the given statuses.
func (r *BatchRepository) ListByAgencyWindow(ctx context.Context, agencyID string, from, to time.Time, statuses []batch.Status) ([]*batch.Batch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("batch repo: nil db")
	}

	args := []any{agencyID, from.UTC(), to.UTC()}
	statusFilter := ""
	if len(statuses) > 0 {
		placeholders := make([]string, 0, len(statuses))
		for _, status := range statuses {
			args = append(args, string(status))
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		statusFilter = fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ","))
	}

	query := fmt.Sprintf(`
SELECT id, departure_agency_id, arrival_agency_id, vehicle_id, trip_id,
	departure_at, status, created_at, created_by, version
FROM %s
WHERE (departure_agency_id = $1 OR arrival_agency_id = $1)
	AND departure_at >= $2 AND departure_at < $3%s
ORDER BY departure_at ASC, id ASC`, r.table, statusFilter)
	return r.collectBatches(ctx, query, args...)
}

func (r *BatchRepository) replaceShipments(ctx context.Context, tx *sql.Tx, b *batch.Batch) error {
	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE batch_id = $1`, r.shipmentsTable)
	if _, err := tx.ExecContext(ctx, deleteQuery, b.ID()); err != nil {
		return err
	}
	insertQuery := fmt.Sprintf(`
INSERT INTO %s (batch_id, position, shipment_id)
VALUES ($1,$2,$3)`, r.shipmentsTable)
	for i, shipmentID := range b.ShipmentIDs() {
		if _, err := tx.ExecContext(ctx, insertQuery, b.ID(), i, shipmentID); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *BatchRepository) scanBatch(ctx context.Context, row rowScanner) (*batch.Batch, error) {
	var id string
	var departureAgencyID string
	var arrivalAgencyID string
	var vehicleID string
	var tripID sql.NullString
	var departureAt time.Time
	var status string
	var createdAt time.Time
	var createdBy string
	var version int
	err := row.Scan(&id, &departureAgencyID, &arrivalAgencyID, &vehicleID, &tripID,
		&departureAt, &status, &createdAt, &createdBy, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, batch.ErrBatchNotFound
		}
		return nil, err
	}

	shipmentIDs, err := r.loadShipments(ctx, id)
	if err != nil {
		return nil, err
	}
	return batch.Restore(
		id,
		departureAgencyID,
		arrivalAgencyID,
		vehicleID,
		tripID.String,
		departureAt,
		shipmentIDs,
		batch.Status(status),
		createdAt,
		createdBy,
		version,
	), nil
}

func (r *BatchRepository) loadShipments(ctx context.Context, batchID string) ([]string, error) {
	query := fmt.Sprintf(`
SELECT shipment_id
FROM %s
WHERE batch_id = $1
ORDER BY position ASC`, r.shipmentsTable)
	rows, err := r.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var shipmentID string
		if err := rows.Scan(&shipmentID); err != nil {
			return nil, err
		}
		result = append(result, shipmentID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *BatchRepository) collectBatches(ctx context.Context, query string, args ...any) ([]*batch.Batch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type header struct {
		id                string
		departureAgencyID string
		arrivalAgencyID   string
		vehicleID         string
		tripID            sql.NullString
		departureAt       time.Time
		status            string
		createdAt         time.Time
		createdBy         string
		version           int
	}
	var headers []header
	for rows.Next() {
		var h header
		if err := rows.Scan(&h.id, &h.departureAgencyID, &h.arrivalAgencyID, &h.vehicleID,
			&h.tripID, &h.departureAt, &h.status, &h.createdAt, &h.createdBy, &h.version); err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var result []*batch.Batch
	for _, h := range headers {
		shipmentIDs, err := r.loadShipments(ctx, h.id)
		if err != nil {
			return nil, err
		}
		result = append(result, batch.Restore(
			h.id,
			h.departureAgencyID,
			h.arrivalAgencyID,
			h.vehicleID,
			h.tripID.String,
			h.departureAt,
			shipmentIDs,
			batch.Status(h.status),
			h.createdAt,
			h.createdBy,
			h.version,
		))
	}
	return result, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
