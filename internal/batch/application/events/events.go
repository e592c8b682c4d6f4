package events

import (
	"time"

	batch "freight-cloud/internal/batch/domain"
)

// BatchTransitioned is emitted after a batch status transition commits.
// The reconciliation side consumes it to learn when a batch's shipments
// become eligible for settlement.
type BatchTransitioned struct {
	BatchID    string       `json:"batch_id"`
	AgencyID   string       `json:"agency_id"`
	VehicleID  string       `json:"vehicle_id"`
	From       batch.Status `json:"from"`
	To         batch.Status `json:"to"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// BatchCreated is emitted when a new batch is opened.
type BatchCreated struct {
	BatchID           string    `json:"batch_id"`
	DepartureAgencyID string    `json:"departure_agency_id"`
	ArrivalAgencyID   string    `json:"arrival_agency_id"`
	VehicleID         string    `json:"vehicle_id"`
	DepartureAt       time.Time `json:"departure_at"`
	OccurredAt        time.Time `json:"occurred_at"`
}
