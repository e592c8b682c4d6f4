package reconciliation

import (
	"time"

	ledger "freight-cloud/internal/ledger/domain"
)

// BatchSummary describes one batch inside a report window.
type BatchSummary struct {
	BatchID           string    `json:"batch_id"`
	VehicleID         string    `json:"vehicle_id"`
	Status            string    `json:"status"`
	DepartureAt       time.Time `json:"departure_at"`
	ShipmentCount     int       `json:"shipment_count"`
	BilledAmount      int64     `json:"billed_amount"`
	UnbilledShipments []string  `json:"unbilled_shipments"`
}

// VehicleSummary compares billed revenue with closed-batch workload so
// under- or over-billing per vehicle is visible.
type VehicleSummary struct {
	VehicleID       string `json:"vehicle_id"`
	LogisticsAmount int64  `json:"logistics_amount"`
	ClosedBatches   int    `json:"closed_batches"`
	BatchesInWindow int    `json:"batches_in_window"`
}

// Report is a pure, deterministic join of batch and ledger snapshots for
// one agency and time window. Amounts are minor currency units.
type Report struct {
	CompanyID       string           `json:"company_id"`
	AgencyID        string           `json:"agency_id"`
	From            time.Time        `json:"from"`
	To              time.Time        `json:"to"`
	IncludesPartial bool             `json:"includes_partial"`
	CategoryTotals  map[string]int64 `json:"category_totals"`
	VehicleTotals   map[string]int64 `json:"vehicle_totals"`
	Batches         []BatchSummary   `json:"batches"`
	Vehicles        []VehicleSummary `json:"vehicles"`
	UnbilledTotal   int              `json:"unbilled_total"`
	UnmatchedEvents []string         `json:"unmatched_events"`
	TicketTotal     int64            `json:"ticket_total"`
	EventCount      int              `json:"event_count"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// CategoryTotal returns the total for a ledger category.
func (r *Report) CategoryTotal(category ledger.Category) int64 {
	if r == nil || r.CategoryTotals == nil {
		return 0
	}
	return r.CategoryTotals[string(category)]
}
