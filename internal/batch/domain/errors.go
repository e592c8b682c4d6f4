package batch

import "errors"

var (
	// ErrEmptyBatchID is returned when a batch id is empty.
	ErrEmptyBatchID = errors.New("batch: empty batch id")
	// ErrEmptyAgencyID is returned when an agency id is empty.
	ErrEmptyAgencyID = errors.New("batch: empty agency id")
	// ErrEmptyVehicleID is returned when the vehicle id is empty.
	ErrEmptyVehicleID = errors.New("batch: empty vehicle id")
	// ErrEmptyShipmentID is returned when a shipment id is empty.
	ErrEmptyShipmentID = errors.New("batch: empty shipment id")
	// ErrSameAgency is returned when departure and arrival agencies match.
	ErrSameAgency = errors.New("batch: departure and arrival agency are the same")
	// ErrInvalidDepartureAt is returned when the departure timestamp is zero.
	ErrInvalidDepartureAt = errors.New("batch: invalid departure time")
	// ErrBatchNotFound is returned when the batch does not exist.
	ErrBatchNotFound = errors.New("batch: not found")
	// ErrBatchNotOpen is returned when shipments are added after departure commit.
	ErrBatchNotOpen = errors.New("batch: not open")
	// ErrShipmentConflict is returned when the shipment is held by a non-closed batch.
	ErrShipmentConflict = errors.New("batch: shipment already assigned")
	// ErrVehicleWindowConflict is returned when the vehicle holds an active batch
	// in an overlapping departure window.
	ErrVehicleWindowConflict = errors.New("batch: vehicle departure window conflict")
	// ErrInvalidTransition is returned for any non-adjacent status move.
	ErrInvalidTransition = errors.New("batch: invalid transition")
	// ErrEmptyBatch is returned when an empty batch is committed for departure.
	ErrEmptyBatch = errors.New("batch: no shipments")
	// ErrVersionConflict is returned when a commit lost an optimistic race.
	// Callers inside the service retry; it never reaches API clients.
	ErrVersionConflict = errors.New("batch: version conflict")
	// ErrNilBatch is returned when persisting a nil aggregate.
	ErrNilBatch = errors.New("batch: nil aggregate")
)
