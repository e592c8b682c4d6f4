package batch

import "time"

// Status is the lifecycle state of a batch. Transitions are strictly
// monotonic: OPEN -> DEPARTED -> ARRIVED -> CLOSED.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusDeparted Status = "DEPARTED"
	StatusArrived  Status = "ARRIVED"
	StatusClosed   Status = "CLOSED"
)

// ValidStatus reports whether the value is a known status.
func ValidStatus(status Status) bool {
	switch status {
	case StatusOpen, StatusDeparted, StatusArrived, StatusClosed:
		return true
	}
	return false
}

// next returns the only status reachable from the current one.
func (s Status) next() (Status, bool) {
	switch s {
	case StatusOpen:
		return StatusDeparted, true
	case StatusDeparted:
		return StatusArrived, true
	case StatusArrived:
		return StatusClosed, true
	}
	return "", false
}

// Batch is a consolidated shipment run between two agencies on one vehicle
// trip. Shipment membership is append-only while OPEN and frozen as soon as
// DEPARTED commits. The version stamp backs optimistic concurrency; it is
// bumped by the repository on every committed mutation.
type Batch struct {
	id                string
	departureAgencyID string
	arrivalAgencyID   string
	vehicleID         string
	tripID            string
	departureAt       time.Time
	shipmentIDs       []string
	status            Status
	createdAt         time.Time
	createdBy         string
	version           int
}

// NewBatch creates an OPEN batch. Departure and arrival agencies must differ.
func NewBatch(id, departureAgencyID, arrivalAgencyID, vehicleID, tripID string, departureAt time.Time, createdBy string, createdAt time.Time) (*Batch, error) {
	if id == "" {
		return nil, ErrEmptyBatchID
	}
	if departureAgencyID == "" || arrivalAgencyID == "" {
		return nil, ErrEmptyAgencyID
	}
	if departureAgencyID == arrivalAgencyID {
		return nil, ErrSameAgency
	}
	if vehicleID == "" {
		return nil, ErrEmptyVehicleID
	}
	if departureAt.IsZero() {
		return nil, ErrInvalidDepartureAt
	}
	return &Batch{
		id:                id,
		departureAgencyID: departureAgencyID,
		arrivalAgencyID:   arrivalAgencyID,
		vehicleID:         vehicleID,
		tripID:            tripID,
		departureAt:       departureAt.UTC(),
		status:            StatusOpen,
		createdAt:         createdAt.UTC(),
		createdBy:         createdBy,
		version:           1,
	}, nil
}

// Restore rebuilds a persisted batch; used by repositories only.
func Restore(id, departureAgencyID, arrivalAgencyID, vehicleID, tripID string, departureAt time.Time, shipmentIDs []string, status Status, createdAt time.Time, createdBy string, version int) *Batch {
	return &Batch{
		id:                id,
		departureAgencyID: departureAgencyID,
		arrivalAgencyID:   arrivalAgencyID,
		vehicleID:         vehicleID,
		tripID:            tripID,
		departureAt:       departureAt.UTC(),
		shipmentIDs:       append([]string(nil), shipmentIDs...),
		status:            status,
		createdAt:         createdAt.UTC(),
		createdBy:         createdBy,
		version:           version,
	}
}

// AddShipment appends a shipment id. Only legal while OPEN; duplicates
// within the batch are rejected as conflicts.
func (b *Batch) AddShipment(shipmentID string) error {
	if shipmentID == "" {
		return ErrEmptyShipmentID
	}
	if b.status != StatusOpen {
		return ErrBatchNotOpen
	}
	for _, existing := range b.shipmentIDs {
		if existing == shipmentID {
			return ErrShipmentConflict
		}
	}
	b.shipmentIDs = append(b.shipmentIDs, shipmentID)
	return nil
}

// TransitionTo moves the batch one step forward. Any other requested move
// fails and leaves the batch unchanged.
func (b *Batch) TransitionTo(target Status) error {
	if !ValidStatus(target) {
		return ErrInvalidTransition
	}
	next, ok := b.status.next()
	if !ok || next != target {
		return ErrInvalidTransition
	}
	if b.status == StatusOpen && len(b.shipmentIDs) == 0 {
		return ErrEmptyBatch
	}
	b.status = target
	return nil
}

// OverlapsWindow reports whether this batch's departure window overlaps
// [departureAt, departureAt+window). Touching windows do not overlap.
func (b *Batch) OverlapsWindow(departureAt time.Time, window time.Duration) bool {
	start := b.departureAt
	end := start.Add(window)
	otherStart := departureAt.UTC()
	otherEnd := otherStart.Add(window)
	return start.Before(otherEnd) && otherStart.Before(end)
}

// Active reports whether the batch still holds its vehicle and shipments.
func (b *Batch) Active() bool { return b.status != StatusClosed }

func (b *Batch) ID() string                { return b.id }
func (b *Batch) DepartureAgencyID() string { return b.departureAgencyID }
func (b *Batch) ArrivalAgencyID() string   { return b.arrivalAgencyID }
func (b *Batch) VehicleID() string         { return b.vehicleID }
func (b *Batch) TripID() string            { return b.tripID }
func (b *Batch) DepartureAt() time.Time    { return b.departureAt }
func (b *Batch) Status() Status            { return b.status }
func (b *Batch) CreatedAt() time.Time      { return b.createdAt }
func (b *Batch) CreatedBy() string         { return b.createdBy }
func (b *Batch) Version() int              { return b.version }

// ShipmentIDs returns a detached copy of the shipment membership.
func (b *Batch) ShipmentIDs() []string {
	return append([]string(nil), b.shipmentIDs...)
}

// HasShipment reports whether the shipment is a member of this batch.
func (b *Batch) HasShipment(shipmentID string) bool {
	for _, existing := range b.shipmentIDs {
		if existing == shipmentID {
			return true
		}
	}
	return false
}

// Clone returns a detached copy.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	copy := *b
	copy.shipmentIDs = append([]string(nil), b.shipmentIDs...)
	return &copy
}

// SetVersion stamps the committed version; used by repositories only.
func (b *Batch) SetVersion(version int) { b.version = version }
