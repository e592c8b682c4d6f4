package integration_test

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	batch "freight-cloud/internal/batch/domain"
	batchrepo "freight-cloud/internal/batch/infrastructure/postgres"
	ledger "freight-cloud/internal/ledger/domain"
	ledgerrepo "freight-cloud/internal/ledger/infrastructure/postgres"
	reconapp "freight-cloud/internal/reconciliation/application"
	reconrepo "freight-cloud/internal/reconciliation/infrastructure/postgres"
	reconnotify "freight-cloud/internal/reconciliation/notify"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestReconciliationRunner_EndToEnd(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	for _, table := range []string{
		"freight_batches", "freight_batch_shipments", "revenue_events",
		"reconciliation_jobs", "reconciliation_reports", "reconciliation_alerts",
	} {
		if !tableExists(db, table) {
			t.Skip("missing tables; run migrations")
		}
	}

	ctx := context.Background()
	for _, stmt := range []string{
		"DELETE FROM reconciliation_alerts",
		"DELETE FROM reconciliation_reports",
		"DELETE FROM reconciliation_jobs",
		"DELETE FROM revenue_events",
		"DELETE FROM freight_batch_shipments",
		"DELETE FROM freight_batches",
	} {
		_, _ = db.ExecContext(ctx, stmt)
	}

	day := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	// A closed batch with two shipments; only one is billed, and one
	// revenue event references a source nobody knows.
	batches := batchrepo.NewBatchRepository(db)
	closed := batch.Restore("btc-e2e-1", "agency-dep", "agency-arr", "veh-1", "",
		day.Add(8*time.Hour), []string{"shp-1", "shp-2"}, batch.StatusClosed,
		day.Add(7*time.Hour), "tester", 4)
	if err := batches.Insert(ctx, closed); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	events := ledgerrepo.NewLedgerRepository(db)
	billed := ledger.RevenueEvent{
		EventID:    "evt-e2e-1",
		SourceType: ledger.SourceLogistics,
		SourceID:   "shp-1",
		AgencyID:   "agency-dep",
		VehicleID:  "veh-1",
		Amount:     15000,
		Currency:   "XOF",
		Category:   ledger.CategoryTransport,
		OccurredAt: day.Add(9 * time.Hour),
		RecordedAt: day.Add(9 * time.Hour),
	}
	ghost := billed
	ghost.EventID = "evt-e2e-ghost"
	ghost.SourceID = "shp-nobody"
	ghost.Amount = 4000
	for _, event := range []ledger.RevenueEvent{billed, ghost} {
		if _, _, err := events.Insert(ctx, event); err != nil {
			t.Fatalf("insert event %s: %v", event.EventID, err)
		}
	}

	var webhookHits atomic.Int64
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()

	cfg := reconapp.Config{
		Defaults:      reconapp.Thresholds{UnbilledShipments: 1, UnmatchedEvents: 1},
		StorageRoot:   t.TempDir(),
		WebhookURL:    webhook.URL,
		PublicBaseURL: "http://localhost:8080",
	}
	engine := reconapp.NewEngine(batches, events, reconapp.SystemClock{})
	repo := reconrepo.NewRepository(db)
	logger := log.New(os.Stderr, "[recon-test] ", log.LstdFlags)
	runner := reconapp.NewRunner(engine, repo, cfg, reconnotify.NewWebhookNotifier(webhook.URL), nil, logger)

	req := reconapp.ReportRequest{
		CompanyID: "company-test",
		AgencyID:  "agency-dep",
		From:      day,
		To:        day.Add(24 * time.Hour),
	}
	record, err := runner.Run(ctx, req, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if record.Status != "generated" {
		t.Fatalf("report status = %s, want generated", record.Status)
	}
	if record.UnbilledTotal != 1 {
		t.Fatalf("unbilled_total = %d, want 1 (shp-2)", record.UnbilledTotal)
	}
	if record.UnmatchedEvents != 1 {
		t.Fatalf("unmatched_events = %d, want 1 (evt-e2e-ghost)", record.UnmatchedEvents)
	}
	if record.TotalAmount != 19000 {
		t.Fatalf("total_amount = %d, want 19000", record.TotalAmount)
	}
	if _, err := os.Stat(record.Location); err != nil {
		t.Fatalf("report archive missing: %v", err)
	}

	var jobStatus string
	if err := db.QueryRowContext(ctx,
		"SELECT status FROM reconciliation_jobs WHERE id = $1", record.JobID).Scan(&jobStatus); err != nil {
		t.Fatalf("read job: %v", err)
	}
	if jobStatus != "succeeded" {
		t.Fatalf("job status = %s, want succeeded", jobStatus)
	}

	var alertCount int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reconciliation_alerts WHERE report_id = $1", record.ID).Scan(&alertCount); err != nil {
		t.Fatalf("count alerts: %v", err)
	}
	if alertCount != 1 {
		t.Fatalf("alerts = %d, want 1", alertCount)
	}
	if webhookHits.Load() != 1 {
		t.Fatalf("webhook hits = %d, want 1", webhookHits.Load())
	}

	// A rerun for the same window returns the stored report and does not
	// notify again.
	rerun, err := runner.Run(ctx, req, nil)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if rerun.ID != record.ID {
		t.Fatalf("rerun report id = %s, want %s", rerun.ID, record.ID)
	}
	if webhookHits.Load() != 1 {
		t.Fatalf("webhook hits after rerun = %d, want 1", webhookHits.Load())
	}
}

func TestReconciliationRunner_NoAlertBelowThreshold(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	for _, table := range []string{
		"freight_batches", "freight_batch_shipments", "revenue_events",
		"reconciliation_jobs", "reconciliation_reports", "reconciliation_alerts",
	} {
		if !tableExists(db, table) {
			t.Skip("missing tables; run migrations")
		}
	}

	ctx := context.Background()
	for _, stmt := range []string{
		"DELETE FROM reconciliation_alerts",
		"DELETE FROM reconciliation_reports",
		"DELETE FROM reconciliation_jobs",
		"DELETE FROM revenue_events",
		"DELETE FROM freight_batch_shipments",
		"DELETE FROM freight_batches",
	} {
		_, _ = db.ExecContext(ctx, stmt)
	}

	day := time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC)

	batches := batchrepo.NewBatchRepository(db)
	closed := batch.Restore("btc-ok-1", "agency-dep", "agency-arr", "veh-1", "",
		day.Add(8*time.Hour), []string{"shp-1"}, batch.StatusClosed,
		day.Add(7*time.Hour), "tester", 4)
	if err := batches.Insert(ctx, closed); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	events := ledgerrepo.NewLedgerRepository(db)
	if _, _, err := events.Insert(ctx, ledger.RevenueEvent{
		EventID:    "evt-ok-1",
		SourceType: ledger.SourceLogistics,
		SourceID:   "btc-ok-1",
		AgencyID:   "agency-dep",
		VehicleID:  "veh-1",
		Amount:     20000,
		Currency:   "XOF",
		Category:   ledger.CategoryTransport,
		OccurredAt: day.Add(9 * time.Hour),
		RecordedAt: day.Add(9 * time.Hour),
	}); err != nil {
		t.Fatalf("insert event: %v", err)
	}

	var webhookHits atomic.Int64
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()

	cfg := reconapp.Config{
		Defaults:      reconapp.Thresholds{UnbilledShipments: 1, UnmatchedEvents: 1},
		StorageRoot:   t.TempDir(),
		WebhookURL:    webhook.URL,
		PublicBaseURL: "http://localhost:8080",
	}
	engine := reconapp.NewEngine(batches, events, reconapp.SystemClock{})
	repo := reconrepo.NewRepository(db)
	logger := log.New(os.Stderr, "[recon-test] ", log.LstdFlags)
	runner := reconapp.NewRunner(engine, repo, cfg, reconnotify.NewWebhookNotifier(webhook.URL), nil, logger)

	record, err := runner.Run(ctx, reconapp.ReportRequest{
		CompanyID: "company-test",
		AgencyID:  "agency-dep",
		From:      day,
		To:        day.Add(24 * time.Hour),
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if record.UnbilledTotal != 0 || record.UnmatchedEvents != 0 {
		t.Fatalf("clean window reported unbilled=%d unmatched=%d", record.UnbilledTotal, record.UnmatchedEvents)
	}

	var alertCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reconciliation_alerts").Scan(&alertCount); err != nil {
		t.Fatalf("count alerts: %v", err)
	}
	if alertCount != 0 {
		t.Fatalf("alerts = %d, want 0", alertCount)
	}
	if webhookHits.Load() != 0 {
		t.Fatalf("webhook hits = %d, want 0", webhookHits.Load())
	}
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
