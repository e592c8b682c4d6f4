package batch

import (
	"context"
	"time"
)

// Repository persists batch aggregates with optimistic concurrency. Update
// commits only when the stored version equals expectedVersion and bumps the
// version by one; a stale write returns ErrVersionConflict.
type Repository interface {
	Insert(ctx context.Context, b *Batch) error
	Get(ctx context.Context, batchID string) (*Batch, error)
	Update(ctx context.Context, b *Batch, expectedVersion int) error

	// ListActiveByVehicle returns non-CLOSED batches assigned to a vehicle.
	ListActiveByVehicle(ctx context.Context, vehicleID string) ([]*Batch, error)

	// FindActiveByShipment returns the non-CLOSED batch holding a shipment,
	// or nil when the shipment is free.
	FindActiveByShipment(ctx context.Context, shipmentID string) (*Batch, error)

	// ListByAgencyWindow returns batches with the agency on either end and
	// departure in [from, to), filtered to the given statuses.
	ListByAgencyWindow(ctx context.Context, agencyID string, from, to time.Time, statuses []Status) ([]*Batch, error)
}
