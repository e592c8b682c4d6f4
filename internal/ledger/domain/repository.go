package ledger

import (
	"context"
	"time"
)

// Repository is the append-only store of revenue events. Implementations
// must enforce event_id uniqueness at the storage layer; Insert never
// overwrites an existing event.
type Repository interface {
	// Insert stores the event. It returns inserted=false and the stored
	// event when an event with the same id already exists.
	Insert(ctx context.Context, event RevenueEvent) (stored RevenueEvent, inserted bool, err error)

	// Get loads an event by id, ErrEventNotFound when absent.
	Get(ctx context.Context, eventID string) (RevenueEvent, error)

	// ListByAgency returns events for the agency in [from, to), ascending
	// by occurred_at with event_id tie-break.
	ListByAgency(ctx context.Context, agencyID string, from, to time.Time) ([]RevenueEvent, error)

	// ListBySource returns all events attributed to a source.
	ListBySource(ctx context.Context, sourceType SourceType, sourceID string) ([]RevenueEvent, error)

	// FindReversal returns the reversal of an event, ErrEventNotFound when
	// none exists.
	FindReversal(ctx context.Context, originalEventID string) (RevenueEvent, error)
}
