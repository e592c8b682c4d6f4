package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ledger "freight-cloud/internal/ledger/domain"
)

const defaultEventsTable = "revenue_events"

// LedgerRepository is a Postgres implementation of the revenue ledger.
// Idempotency is enforced by the primary key on event_id; Insert never
// updates an existing row.
type LedgerRepository struct {
	db    *sql.DB
	table string
}

// NewLedgerRepository constructs a repository.
func NewLedgerRepository(db *sql.DB, opts ...RepositoryOption) *LedgerRepository {
	repo := &LedgerRepository{db: db, table: defaultEventsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*LedgerRepository)

// WithTable overrides the events table name.
func WithTable(table string) RepositoryOption {
	return func(repo *LedgerRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Insert appends an event. Returns the stored event and inserted=false when
// the event id already exists.
func (r *LedgerRepository) Insert(ctx context.Context, event ledger.RevenueEvent) (ledger.RevenueEvent, bool, error) {
	if r == nil || r.db == nil {
		return ledger.RevenueEvent{}, false, errors.New("ledger repo: nil db")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	event_id,
	source_type,
	source_id,
	agency_id,
	vehicle_id,
	amount,
	currency,
	category,
	occurred_at,
	reversal_of,
	reason,
	recorded_by,
	recorded_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
ON CONFLICT (event_id)
DO NOTHING`, r.table)

	result, err := r.db.ExecContext(ctx, query,
		event.EventID,
		string(event.SourceType),
		event.SourceID,
		event.AgencyID,
		nullString(event.VehicleID),
		event.Amount,
		event.Currency,
		string(event.Category),
		event.OccurredAt.UTC(),
		nullString(event.ReversalOf),
		nullString(event.Reason),
		nullString(event.RecordedBy),
		event.RecordedAt.UTC(),
	)
	if err != nil {
		return ledger.RevenueEvent{}, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return ledger.RevenueEvent{}, false, err
	}
	if affected == 0 {
		stored, err := r.Get(ctx, event.EventID)
		if err != nil {
			return ledger.RevenueEvent{}, false, err
		}
		return stored, false, nil
	}
	return event, true, nil
}

// Get loads an event by id.
func (r *LedgerRepository) Get(ctx context.Context, eventID string) (ledger.RevenueEvent, error) {
	if r == nil || r.db == nil {
		return ledger.RevenueEvent{}, errors.New("ledger repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT event_id, source_type, source_id, agency_id, vehicle_id, amount,
	currency, category, occurred_at, reversal_of, reason, recorded_by, recorded_at
FROM %s
WHERE event_id = $1
LIMIT 1`, r.table)
	return scanEvent(r.db.QueryRowContext(ctx, query, eventID))
}

// ListByAgency returns events for [from, to) in deterministic order.
func (r *LedgerRepository) ListByAgency(ctx context.Context, agencyID string, from, to time.Time) ([]ledger.RevenueEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT event_id, source_type, source_id, agency_id, vehicle_id, amount,
	currency, category, occurred_at, reversal_of, reason, recorded_by, recorded_at
FROM %s
WHERE agency_id = $1 AND occurred_at >= $2 AND occurred_at < $3
ORDER BY occurred_at ASC, event_id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, agencyID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListBySource returns all events attributed to a source.
func (r *LedgerRepository) ListBySource(ctx context.Context, sourceType ledger.SourceType, sourceID string) ([]ledger.RevenueEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT event_id, source_type, source_id, agency_id, vehicle_id, amount,
	currency, category, occurred_at, reversal_of, reason, recorded_by, recorded_at
FROM %s
WHERE source_type = $1 AND source_id = $2
ORDER BY occurred_at ASC, event_id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, string(sourceType), sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// FindReversal returns the reversal event for an original event id.
func (r *LedgerRepository) FindReversal(ctx context.Context, originalEventID string) (ledger.RevenueEvent, error) {
	if r == nil || r.db == nil {
		return ledger.RevenueEvent{}, errors.New("ledger repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT event_id, source_type, source_id, agency_id, vehicle_id, amount,
	currency, category, occurred_at, reversal_of, reason, recorded_by, recorded_at
FROM %s
WHERE reversal_of = $1
LIMIT 1`, r.table)
	return scanEvent(r.db.QueryRowContext(ctx, query, originalEventID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (ledger.RevenueEvent, error) {
	var event ledger.RevenueEvent
	var sourceType string
	var category string
	var vehicleID sql.NullString
	var reversalOf sql.NullString
	var reason sql.NullString
	var recordedBy sql.NullString
	err := row.Scan(
		&event.EventID,
		&sourceType,
		&event.SourceID,
		&event.AgencyID,
		&vehicleID,
		&event.Amount,
		&event.Currency,
		&category,
		&event.OccurredAt,
		&reversalOf,
		&reason,
		&recordedBy,
		&event.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.RevenueEvent{}, ledger.ErrEventNotFound
		}
		return ledger.RevenueEvent{}, err
	}
	event.SourceType = ledger.SourceType(sourceType)
	event.Category = ledger.Category(category)
	if vehicleID.Valid {
		event.VehicleID = vehicleID.String
	}
	if reversalOf.Valid {
		event.ReversalOf = reversalOf.String
	}
	if reason.Valid {
		event.Reason = reason.String
	}
	if recordedBy.Valid {
		event.RecordedBy = recordedBy.String
	}
	event.OccurredAt = event.OccurredAt.UTC()
	event.RecordedAt = event.RecordedAt.UTC()
	return event, nil
}

func collectEvents(rows *sql.Rows) ([]ledger.RevenueEvent, error) {
	var result []ledger.RevenueEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
