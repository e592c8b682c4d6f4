package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	ledger "freight-cloud/internal/ledger/domain"
	ledgerrepo "freight-cloud/internal/ledger/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func openLedgerDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if !tableExists(db, "revenue_events") {
		t.Skip("missing tables; run migrations")
	}

	_, _ = db.ExecContext(context.Background(), "DELETE FROM revenue_events")
	return db
}

func sampleRevenueEvent(eventID string) ledger.RevenueEvent {
	return ledger.RevenueEvent{
		EventID:    eventID,
		SourceType: ledger.SourceLogistics,
		SourceID:   "btc-1",
		AgencyID:   "agency-dep",
		VehicleID:  "veh-1",
		Amount:     12500,
		Currency:   "XOF",
		Category:   ledger.CategoryTransport,
		OccurredAt: time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC),
		RecordedBy: "cashier-1",
		RecordedAt: time.Date(2026, time.March, 10, 9, 30, 5, 0, time.UTC),
	}
}

func TestLedgerRepository_InsertIdempotent(t *testing.T) {
	db := openLedgerDB(t)
	repo := ledgerrepo.NewLedgerRepository(db)
	ctx := context.Background()

	event := sampleRevenueEvent("evt-idem-1")
	stored, inserted, err := repo.Insert(ctx, event)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Fatal("first insert must report inserted")
	}
	if stored.Amount != 12500 {
		t.Fatalf("amount = %d, want 12500", stored.Amount)
	}

	// A replay with a different amount is swallowed; the original wins.
	replay := event
	replay.Amount = 99999
	stored, inserted, err = repo.Insert(ctx, replay)
	if err != nil {
		t.Fatalf("replay insert: %v", err)
	}
	if inserted {
		t.Fatal("replay must not insert")
	}
	if stored.Amount != 12500 {
		t.Fatalf("stored amount = %d, original must win", stored.Amount)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM revenue_events").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}
}

func TestLedgerRepository_GetMissing(t *testing.T) {
	db := openLedgerDB(t)
	repo := ledgerrepo.NewLedgerRepository(db)

	if _, err := repo.Get(context.Background(), "evt-missing"); !errors.Is(err, ledger.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestLedgerRepository_ListByAgencyOrdering(t *testing.T) {
	db := openLedgerDB(t)
	repo := ledgerrepo.NewLedgerRepository(db)
	ctx := context.Background()

	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	later := sampleRevenueEvent("evt-b")
	later.OccurredAt = base.Add(time.Hour)
	tieSecond := sampleRevenueEvent("evt-z")
	tieSecond.OccurredAt = base
	tieFirst := sampleRevenueEvent("evt-a")
	tieFirst.OccurredAt = base
	otherAgency := sampleRevenueEvent("evt-x")
	otherAgency.AgencyID = "agency-other"
	otherAgency.OccurredAt = base

	for _, event := range []ledger.RevenueEvent{later, tieSecond, tieFirst, otherAgency} {
		if _, _, err := repo.Insert(ctx, event); err != nil {
			t.Fatalf("insert %s: %v", event.EventID, err)
		}
	}

	listed, err := repo.ListByAgency(ctx, "agency-dep", base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("listed %d events, want 3", len(listed))
	}
	// occurred_at ascending, event_id breaks ties.
	want := []string{"evt-a", "evt-z", "evt-b"}
	for i, id := range want {
		if listed[i].EventID != id {
			t.Fatalf("order[%d] = %s, want %s", i, listed[i].EventID, id)
		}
	}
}

func TestLedgerRepository_FindReversal(t *testing.T) {
	db := openLedgerDB(t)
	repo := ledgerrepo.NewLedgerRepository(db)
	ctx := context.Background()

	original := sampleRevenueEvent("evt-rev-1")
	if _, _, err := repo.Insert(ctx, original); err != nil {
		t.Fatalf("insert original: %v", err)
	}

	if _, err := repo.FindReversal(ctx, "evt-rev-1"); !errors.Is(err, ledger.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound before reversal, got %v", err)
	}

	reversal := original
	reversal.EventID = ledger.ReversalEventID("evt-rev-1")
	reversal.Amount = -original.Amount
	reversal.ReversalOf = "evt-rev-1"
	reversal.Reason = "wrong amount"
	if _, _, err := repo.Insert(ctx, reversal); err != nil {
		t.Fatalf("insert reversal: %v", err)
	}

	found, err := repo.FindReversal(ctx, "evt-rev-1")
	if err != nil {
		t.Fatalf("find reversal: %v", err)
	}
	if found.EventID != reversal.EventID || found.Amount != -12500 {
		t.Fatalf("reversal = %+v", found)
	}
}

func TestLedgerRepository_ListBySource(t *testing.T) {
	db := openLedgerDB(t)
	repo := ledgerrepo.NewLedgerRepository(db)
	ctx := context.Background()

	batchLevel := sampleRevenueEvent("evt-src-1")
	shipmentLevel := sampleRevenueEvent("evt-src-2")
	shipmentLevel.SourceID = "shp-1"
	ticket := sampleRevenueEvent("evt-src-3")
	ticket.SourceType = ledger.SourceTicket
	ticket.SourceID = "resv-1"

	for _, event := range []ledger.RevenueEvent{batchLevel, shipmentLevel, ticket} {
		if _, _, err := repo.Insert(ctx, event); err != nil {
			t.Fatalf("insert %s: %v", event.EventID, err)
		}
	}

	listed, err := repo.ListBySource(ctx, ledger.SourceLogistics, "btc-1")
	if err != nil {
		t.Fatalf("list by source: %v", err)
	}
	if len(listed) != 1 || listed[0].EventID != "evt-src-1" {
		t.Fatalf("listed = %+v, want only evt-src-1", listed)
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
