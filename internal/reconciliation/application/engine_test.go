package application

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	batch "freight-cloud/internal/batch/domain"
	batchmemory "freight-cloud/internal/batch/infrastructure/memory"
	ledger "freight-cloud/internal/ledger/domain"
	ledgermemory "freight-cloud/internal/ledger/infrastructure/memory"
	reconciliation "freight-cloud/internal/reconciliation/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var (
	windowFrom = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	windowTo   = time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
)

func storeBatch(t *testing.T, repo *batchmemory.BatchRepository, id, vehicleID string, departureAt time.Time, status batch.Status, shipmentIDs ...string) {
	t.Helper()
	b := batch.Restore(id, "agency-dep", "agency-arr", vehicleID, "trip-"+id, departureAt, shipmentIDs, status, departureAt.Add(-time.Hour), "ops@test", 1)
	if err := repo.Insert(context.Background(), b); err != nil {
		t.Fatalf("insert batch %s: %v", id, err)
	}
}

func storeEvent(t *testing.T, repo *ledgermemory.LedgerRepository, id string, sourceType ledger.SourceType, sourceID, vehicleID string, amount int64, category ledger.Category, occurredAt time.Time) {
	t.Helper()
	_, _, err := repo.Insert(context.Background(), ledger.RevenueEvent{
		EventID:    id,
		SourceType: sourceType,
		SourceID:   sourceID,
		AgencyID:   "agency-dep",
		VehicleID:  vehicleID,
		Amount:     amount,
		Currency:   "XOF",
		Category:   category,
		OccurredAt: occurredAt,
		RecordedAt: occurredAt,
	})
	if err != nil {
		t.Fatalf("insert event %s: %v", id, err)
	}
}

func baseRequest() ReportRequest {
	return ReportRequest{
		CompanyID: "company-1",
		AgencyID:  "agency-dep",
		From:      windowFrom,
		To:        windowTo,
	}
}

func TestBuildReportValidation(t *testing.T) {
	engine := NewEngine(batchmemory.NewBatchRepository(), ledgermemory.NewLedgerRepository(), fixedClock{now: windowTo})
	ctx := context.Background()

	req := baseRequest()
	req.CompanyID = ""
	if _, err := engine.BuildReport(ctx, req); !errors.Is(err, reconciliation.ErrEmptyCompanyID) {
		t.Fatalf("expected ErrEmptyCompanyID, got %v", err)
	}

	req = baseRequest()
	req.AgencyID = ""
	if _, err := engine.BuildReport(ctx, req); !errors.Is(err, reconciliation.ErrEmptyAgencyID) {
		t.Fatalf("expected ErrEmptyAgencyID, got %v", err)
	}

	req = baseRequest()
	req.To = req.From
	if _, err := engine.BuildReport(ctx, req); !errors.Is(err, reconciliation.ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestBuildReportUnbilledShipments(t *testing.T) {
	batches := batchmemory.NewBatchRepository()
	events := ledgermemory.NewLedgerRepository()
	engine := NewEngine(batches, events, fixedClock{now: windowTo})

	// CLOSED batch with two shipments and zero revenue events.
	storeBatch(t, batches, "btc-1", "veh-1", windowFrom.Add(8*time.Hour), batch.StatusClosed, "shp-1", "shp-2")

	report, err := engine.BuildReport(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.UnbilledTotal != 2 {
		t.Fatalf("unbilled total = %d, want 2", report.UnbilledTotal)
	}
	if len(report.Batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(report.Batches))
	}
	if got := report.Batches[0].UnbilledShipments; len(got) != 2 {
		t.Fatalf("unbilled shipments = %v, want both", got)
	}
	if report.Batches[0].BilledAmount != 0 {
		t.Fatalf("billed amount = %d, want 0", report.Batches[0].BilledAmount)
	}
}

func TestBuildReportBatchLevelBillingCoversShipments(t *testing.T) {
	batches := batchmemory.NewBatchRepository()
	events := ledgermemory.NewLedgerRepository()
	engine := NewEngine(batches, events, fixedClock{now: windowTo})

	storeBatch(t, batches, "btc-1", "veh-1", windowFrom.Add(8*time.Hour), batch.StatusClosed, "shp-1", "shp-2")
	// One LOGISTICS event billing the whole batch by batch id.
	storeEvent(t, events, "evt-1", ledger.SourceLogistics, "btc-1", "veh-1", 40000, ledger.CategoryTransport, windowFrom.Add(9*time.Hour))

	report, err := engine.BuildReport(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.UnbilledTotal != 0 {
		t.Fatalf("unbilled total = %d, want 0", report.UnbilledTotal)
	}
	if report.Batches[0].BilledAmount != 40000 {
		t.Fatalf("billed amount = %d, want 40000", report.Batches[0].BilledAmount)
	}
	if report.CategoryTotals["TRANSPORT"] != 40000 {
		t.Fatalf("transport total = %d, want 40000", report.CategoryTotals["TRANSPORT"])
	}
	if report.VehicleTotals["veh-1"] != 40000 {
		t.Fatalf("vehicle total = %d, want 40000", report.VehicleTotals["veh-1"])
	}
}

func TestBuildReportShipmentLevelBilling(t *testing.T) {
	batches := batchmemory.NewBatchRepository()
	events := ledgermemory.NewLedgerRepository()
	engine := NewEngine(batches, events, fixedClock{now: windowTo})

	storeBatch(t, batches, "btc-1", "veh-1", windowFrom.Add(8*time.Hour), batch.StatusClosed, "shp-1", "shp-2")
	// Only one of the two shipments is billed.
	storeEvent(t, events, "evt-1", ledger.SourceLogistics, "shp-1", "veh-1", 15000, ledger.CategoryTransport, windowFrom.Add(9*time.Hour))

	report, err := engine.BuildReport(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.UnbilledTotal != 1 {
		t.Fatalf("unbilled total = %d, want 1", report.UnbilledTotal)
	}
	if got := report.Batches[0].UnbilledShipments; !reflect.DeepEqual(got, []string{"shp-2"}) {
		t.Fatalf("unbilled shipments = %v, want [shp-2]", got)
	}
	if report.Batches[0].BilledAmount != 15000 {
		t.Fatalf("billed amount = %d, want 15000", report.Batches[0].BilledAmount)
	}
}

func TestBuildReportTicketEventsAreOpaque(t *testing.T) {
	batches := batchmemory.NewBatchRepository()
	events := ledgermemory.NewLedgerRepository()
	engine := NewEngine(batches, events, fixedClock{now: windowTo})

	// TICKET source ids never resolve against batches and never count as unmatched.
	storeEvent(t, events, "evt-1", ledger.SourceTicket, "resv-777", "veh-9", 5000, ledger.CategoryTransport, windowFrom.Add(6*time.Hour))
	storeEvent(t, events, "evt-2", ledger.SourceTicket, "resv-778", "", 2500, ledger.CategoryInsurance, windowFrom.Add(7*time.Hour))

	report, err := engine.BuildReport(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.TicketTotal != 7500 {
		t.Fatalf("ticket total = %d, want 7500", report.TicketTotal)
	}
	if len(report.UnmatchedEvents) != 0 {
		t.Fatalf("unmatched = %v, want none", report.UnmatchedEvents)
	}
	if report.VehicleTotals["veh-9"] != 5000 {
		t.Fatalf("vehicle total = %d, want 5000", report.VehicleTotals["veh-9"])
	}
	if report.CategoryTotals["INSURANCE"] != 2500 {
		t.Fatalf("insurance total = %d, want 2500", report.CategoryTotals["INSURANCE"])
	}
}

func TestBuildReportUnmatchedLogisticsEvents(t *testing.T) {
	batches := batchmemory.NewBatchRepository()
	events := ledgermemory.NewLedgerRepository()
	engine := NewEngine(batches, events, fixedClock{now: windowTo})

	storeEvent(t, events, "evt-z", ledger.SourceLogistics, "btc-ghost", "veh-1", 1000, ledger.CategoryTransport, windowFrom.Add(2*time.Hour))
	storeEvent(t, events, "evt-a", ledger.SourceLogistics, "shp-ghost", "", 2000, ledger.CategoryTransport, windowFrom.Add(3*time.Hour))

	report, err := engine.BuildReport(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if !reflect.DeepEqual(report.UnmatchedEvents, []string{"evt-a", "evt-z"}) {
		t.Fatalf("unmatched = %v, want sorted [evt-a evt-z]", report.UnmatchedEvents)
	}
	// Unmatched amounts still count toward category totals.
	if report.CategoryTotals["TRANSPORT"] != 3000 {
		t.Fatalf("transport total = %d, want 3000", report.CategoryTotals["TRANSPORT"])
	}
}

func TestBuildReportIncludePartial(t *testing.T) {
	batches := batchmemory.NewBatchRepository()
	events := ledgermemory.NewLedgerRepository()
	engine := NewEngine(batches, events, fixedClock{now: windowTo})

	storeBatch(t, batches, "btc-1", "veh-1", windowFrom.Add(8*time.Hour), batch.StatusClosed, "shp-1")
	storeBatch(t, batches, "btc-2", "veh-2", windowFrom.Add(10*time.Hour), batch.StatusArrived, "shp-2")
	storeBatch(t, batches, "btc-3", "veh-3", windowFrom.Add(11*time.Hour), batch.StatusDeparted, "shp-3")

	report, err := engine.BuildReport(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Batches) != 1 {
		t.Fatalf("default scope batches = %d, want only CLOSED", len(report.Batches))
	}

	req := baseRequest()
	req.IncludePartial = true
	report, err = engine.BuildReport(context.Background(), req)
	if err != nil {
		t.Fatalf("build partial report: %v", err)
	}
	if len(report.Batches) != 2 {
		t.Fatalf("partial scope batches = %d, want CLOSED+ARRIVED", len(report.Batches))
	}
	if !report.IncludesPartial {
		t.Fatal("report should be flagged as partial scope")
	}
}

func TestBuildReportVehicleSummaries(t *testing.T) {
	batches := batchmemory.NewBatchRepository()
	events := ledgermemory.NewLedgerRepository()
	engine := NewEngine(batches, events, fixedClock{now: windowTo})

	storeBatch(t, batches, "btc-1", "veh-1", windowFrom.Add(1*time.Hour), batch.StatusClosed, "shp-1")
	storeBatch(t, batches, "btc-2", "veh-1", windowFrom.Add(12*time.Hour), batch.StatusClosed, "shp-2")
	storeEvent(t, events, "evt-1", ledger.SourceLogistics, "btc-1", "veh-1", 10000, ledger.CategoryTransport, windowFrom.Add(2*time.Hour))
	storeEvent(t, events, "evt-2", ledger.SourceLogistics, "btc-2", "veh-1", 20000, ledger.CategoryTransport, windowFrom.Add(13*time.Hour))

	report, err := engine.BuildReport(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Vehicles) != 1 {
		t.Fatalf("vehicles = %d, want 1", len(report.Vehicles))
	}
	vehicle := report.Vehicles[0]
	if vehicle.ClosedBatches != 2 || vehicle.BatchesInWindow != 2 {
		t.Fatalf("vehicle counts = %+v, want 2 closed of 2", vehicle)
	}
	if vehicle.LogisticsAmount != 30000 {
		t.Fatalf("vehicle logistics amount = %d, want 30000", vehicle.LogisticsAmount)
	}
}

func TestBuildReportDeterministic(t *testing.T) {
	batches := batchmemory.NewBatchRepository()
	events := ledgermemory.NewLedgerRepository()
	engine := NewEngine(batches, events, fixedClock{now: windowTo})

	storeBatch(t, batches, "btc-b", "veh-2", windowFrom.Add(8*time.Hour), batch.StatusClosed, "shp-1")
	storeBatch(t, batches, "btc-a", "veh-1", windowFrom.Add(8*time.Hour), batch.StatusClosed, "shp-2")
	storeEvent(t, events, "evt-1", ledger.SourceLogistics, "btc-a", "veh-1", 1000, ledger.CategoryTransport, windowFrom.Add(9*time.Hour))

	first, err := engine.BuildReport(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, err := engine.BuildReport(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical snapshots produced different reports")
	}
	// Same departure time ties break on batch id.
	if first.Batches[0].BatchID != "btc-a" || first.Batches[1].BatchID != "btc-b" {
		t.Fatalf("batch order = [%s %s], want [btc-a btc-b]", first.Batches[0].BatchID, first.Batches[1].BatchID)
	}
}

type failingBatchReader struct{}

func (failingBatchReader) ListByAgencyWindow(context.Context, string, time.Time, time.Time, []batch.Status) ([]*batch.Batch, error) {
	return nil, errors.New("connection refused")
}

type failingLedgerReader struct{}

func (failingLedgerReader) ListByAgency(context.Context, string, time.Time, time.Time) ([]ledger.RevenueEvent, error) {
	return nil, errors.New("connection refused")
}

func TestBuildReportPartialDataFails(t *testing.T) {
	ctx := context.Background()

	engine := NewEngine(failingBatchReader{}, ledgermemory.NewLedgerRepository(), fixedClock{now: windowTo})
	if _, err := engine.BuildReport(ctx, baseRequest()); !errors.Is(err, reconciliation.ErrPartialData) {
		t.Fatalf("batch read failure: expected ErrPartialData, got %v", err)
	}

	engine = NewEngine(batchmemory.NewBatchRepository(), failingLedgerReader{}, fixedClock{now: windowTo})
	if _, err := engine.BuildReport(ctx, baseRequest()); !errors.Is(err, reconciliation.ErrPartialData) {
		t.Fatalf("ledger read failure: expected ErrPartialData, got %v", err)
	}
}
