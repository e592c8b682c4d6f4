package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	batch "freight-cloud/internal/batch/domain"
	ledger "freight-cloud/internal/ledger/domain"
	reconciliation "freight-cloud/internal/reconciliation/domain"
)

// BatchReader provides the batch snapshot for a report window.
type BatchReader interface {
	ListByAgencyWindow(ctx context.Context, agencyID string, from, to time.Time, statuses []batch.Status) ([]*batch.Batch, error)
}

// LedgerReader provides the revenue snapshot for a report window.
type LedgerReader interface {
	ListByAgency(ctx context.Context, agencyID string, from, to time.Time) ([]ledger.RevenueEvent, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock uses wall-clock time.
type SystemClock struct{}

// Now returns current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ReportRequest describes one reconciliation run.
type ReportRequest struct {
	CompanyID      string
	AgencyID       string
	From           time.Time
	To             time.Time
	IncludePartial bool
}

// Engine joins batch and ledger snapshots into agency reports. It only
// reads, so concurrent invocations need no coordination.
type Engine struct {
	batches BatchReader
	ledger  LedgerReader
	clock   Clock
}

// NewEngine constructs an engine.
func NewEngine(batches BatchReader, events LedgerReader, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{batches: batches, ledger: events, clock: clock}
}

// BuildReport computes a report for one agency and window. The result is
// deterministic given the snapshots read; any read failure fails the whole
// report with ErrPartialData.
func (e *Engine) BuildReport(ctx context.Context, req ReportRequest) (*reconciliation.Report, error) {
	if req.CompanyID == "" {
		return nil, reconciliation.ErrEmptyCompanyID
	}
	if req.AgencyID == "" {
		return nil, reconciliation.ErrEmptyAgencyID
	}
	if req.From.IsZero() || req.To.IsZero() || !req.To.After(req.From) {
		return nil, reconciliation.ErrInvalidWindow
	}

	statuses := []batch.Status{batch.StatusClosed}
	if req.IncludePartial {
		statuses = append(statuses, batch.StatusArrived)
	}

	batches, err := e.batches.ListByAgencyWindow(ctx, req.AgencyID, req.From.UTC(), req.To.UTC(), statuses)
	if err != nil {
		return nil, fmt.Errorf("%w: batch snapshot: %v", reconciliation.ErrPartialData, err)
	}
	events, err := e.ledger.ListByAgency(ctx, req.AgencyID, req.From.UTC(), req.To.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: ledger snapshot: %v", reconciliation.ErrPartialData, err)
	}

	report := &reconciliation.Report{
		CompanyID:       req.CompanyID,
		AgencyID:        req.AgencyID,
		From:            req.From.UTC(),
		To:              req.To.UTC(),
		IncludesPartial: req.IncludePartial,
		CategoryTotals:  make(map[string]int64),
		VehicleTotals:   make(map[string]int64),
		EventCount:      len(events),
		GeneratedAt:     e.clock.Now().UTC(),
	}

	summaries := make([]*reconciliation.BatchSummary, 0, len(batches))
	byBatchID := make(map[string]*reconciliation.BatchSummary, len(batches))
	byShipmentID := make(map[string]*reconciliation.BatchSummary)
	billedShipments := make(map[string]bool)
	batchLevelBilled := make(map[string]bool)

	for _, b := range batches {
		summary := &reconciliation.BatchSummary{
			BatchID:       b.ID(),
			VehicleID:     b.VehicleID(),
			Status:        string(b.Status()),
			DepartureAt:   b.DepartureAt(),
			ShipmentCount: len(b.ShipmentIDs()),
		}
		summaries = append(summaries, summary)
		byBatchID[b.ID()] = summary
		for _, shipmentID := range b.ShipmentIDs() {
			byShipmentID[shipmentID] = summary
		}
	}

	for _, event := range events {
		report.CategoryTotals[string(event.Category)] += event.Amount

		if event.SourceType == ledger.SourceTicket {
			report.TicketTotal += event.Amount
			if event.VehicleID != "" {
				report.VehicleTotals[event.VehicleID] += event.Amount
			}
			continue
		}

		// LOGISTICS: source id is a batch id or one of its shipment ids.
		if summary, ok := byBatchID[event.SourceID]; ok {
			summary.BilledAmount += event.Amount
			batchLevelBilled[summary.BatchID] = true
			report.VehicleTotals[summary.VehicleID] += event.Amount
			continue
		}
		if summary, ok := byShipmentID[event.SourceID]; ok {
			summary.BilledAmount += event.Amount
			billedShipments[event.SourceID] = true
			report.VehicleTotals[summary.VehicleID] += event.Amount
			continue
		}
		if event.VehicleID != "" {
			report.VehicleTotals[event.VehicleID] += event.Amount
		}
		report.UnmatchedEvents = append(report.UnmatchedEvents, event.EventID)
	}

	vehicles := make(map[string]*reconciliation.VehicleSummary)
	for i, b := range batches {
		summary := summaries[i]
		if !batchLevelBilled[b.ID()] {
			for _, shipmentID := range b.ShipmentIDs() {
				if !billedShipments[shipmentID] {
					summary.UnbilledShipments = append(summary.UnbilledShipments, shipmentID)
				}
			}
		}
		report.UnbilledTotal += len(summary.UnbilledShipments)

		vehicle := vehicles[b.VehicleID()]
		if vehicle == nil {
			vehicle = &reconciliation.VehicleSummary{VehicleID: b.VehicleID()}
			vehicles[b.VehicleID()] = vehicle
		}
		vehicle.BatchesInWindow++
		if b.Status() == batch.StatusClosed {
			vehicle.ClosedBatches++
		}
		vehicle.LogisticsAmount += summary.BilledAmount
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].DepartureAt.Equal(summaries[j].DepartureAt) {
			return summaries[i].BatchID < summaries[j].BatchID
		}
		return summaries[i].DepartureAt.Before(summaries[j].DepartureAt)
	})
	for _, summary := range summaries {
		report.Batches = append(report.Batches, *summary)
	}

	vehicleIDs := make([]string, 0, len(vehicles))
	for id := range vehicles {
		vehicleIDs = append(vehicleIDs, id)
	}
	sort.Strings(vehicleIDs)
	for _, id := range vehicleIDs {
		report.Vehicles = append(report.Vehicles, *vehicles[id])
	}
	sort.Strings(report.UnmatchedEvents)

	return report, nil
}
