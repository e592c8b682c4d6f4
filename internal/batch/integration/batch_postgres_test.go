package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	batch "freight-cloud/internal/batch/domain"
	batchrepo "freight-cloud/internal/batch/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func openBatchDB(t *testing.T) *sql.DB {
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

	if !tableExists(db, "freight_batches") || !tableExists(db, "freight_batch_shipments") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM freight_batch_shipments")
	_, _ = db.ExecContext(ctx, "DELETE FROM freight_batches")
	return db
}

func seedBatch(t *testing.T, id, depAgency, arrAgency, vehicle string, departureAt time.Time, shipments ...string) *batch.Batch {
	t.Helper()
	b, err := batch.NewBatch(id, depAgency, arrAgency, vehicle, "", departureAt, "tester", departureAt.Add(-time.Hour))
	if err != nil {
		t.Fatalf("new batch %s: %v", id, err)
	}
	for _, shipmentID := range shipments {
		if err := b.AddShipment(shipmentID); err != nil {
			t.Fatalf("add shipment %s: %v", shipmentID, err)
		}
	}
	return b
}

func TestBatchRepository_RoundTrip(t *testing.T) {
	db := openBatchDB(t)
	repo := batchrepo.NewBatchRepository(db)
	ctx := context.Background()

	departureAt := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	b := seedBatch(t, "btc-rt-1", "agency-dep", "agency-arr", "veh-1", departureAt, "shp-1", "shp-2")

	if err := repo.Insert(ctx, b); err != nil {
		t.Fatalf("insert: %v", err)
	}

	loaded, err := repo.Get(ctx, "btc-rt-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Status() != batch.StatusOpen {
		t.Fatalf("status = %s, want OPEN", loaded.Status())
	}
	if !loaded.DepartureAt().Equal(departureAt) {
		t.Fatalf("departure_at = %s, want %s", loaded.DepartureAt(), departureAt)
	}
	shipments := loaded.ShipmentIDs()
	if len(shipments) != 2 || shipments[0] != "shp-1" || shipments[1] != "shp-2" {
		t.Fatalf("shipments = %v, want insertion order preserved", shipments)
	}

	if _, err := repo.Get(ctx, "btc-missing"); !errors.Is(err, batch.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestBatchRepository_UpdateVersionConflict(t *testing.T) {
	db := openBatchDB(t)
	repo := batchrepo.NewBatchRepository(db)
	ctx := context.Background()

	departureAt := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	b := seedBatch(t, "btc-vc-1", "agency-dep", "agency-arr", "veh-1", departureAt, "shp-1")
	if err := repo.Insert(ctx, b); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := b.TransitionTo(batch.StatusDeparted); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := repo.Update(ctx, b, 1); err != nil {
		t.Fatalf("update: %v", err)
	}

	loaded, err := repo.Get(ctx, "btc-vc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Status() != batch.StatusDeparted {
		t.Fatalf("status = %s, want DEPARTED", loaded.Status())
	}
	if loaded.Version() != 2 {
		t.Fatalf("version = %d, want 2", loaded.Version())
	}

	// Committing against the stale version must lose the race.
	if err := repo.Update(ctx, b, 1); !errors.Is(err, batch.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestBatchRepository_FindActiveByShipment(t *testing.T) {
	db := openBatchDB(t)
	repo := batchrepo.NewBatchRepository(db)
	ctx := context.Background()

	departureAt := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	b := seedBatch(t, "btc-as-1", "agency-dep", "agency-arr", "veh-1", departureAt, "shp-held")
	if err := repo.Insert(ctx, b); err != nil {
		t.Fatalf("insert: %v", err)
	}

	holder, err := repo.FindActiveByShipment(ctx, "shp-held")
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if holder == nil || holder.ID() != "btc-as-1" {
		t.Fatalf("holder = %v, want btc-as-1", holder)
	}

	// Walk the batch to CLOSED; the shipment is released.
	version := 1
	for _, target := range []batch.Status{batch.StatusDeparted, batch.StatusArrived, batch.StatusClosed} {
		if err := b.TransitionTo(target); err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
		if err := repo.Update(ctx, b, version); err != nil {
			t.Fatalf("update to %s: %v", target, err)
		}
		version++
	}

	holder, err = repo.FindActiveByShipment(ctx, "shp-held")
	if err != nil {
		t.Fatalf("find after close: %v", err)
	}
	if holder != nil {
		t.Fatalf("shipment still held by %s after close", holder.ID())
	}
}

func TestBatchRepository_ListByAgencyWindow(t *testing.T) {
	db := openBatchDB(t)
	repo := batchrepo.NewBatchRepository(db)
	ctx := context.Background()

	day := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	inside := seedBatch(t, "btc-w-1", "agency-dep", "agency-arr", "veh-1", day.Add(8*time.Hour), "shp-1")
	asArrival := seedBatch(t, "btc-w-2", "agency-other", "agency-dep", "veh-2", day.Add(10*time.Hour), "shp-2")
	outside := seedBatch(t, "btc-w-3", "agency-dep", "agency-arr", "veh-3", day.Add(30*time.Hour), "shp-3")
	for _, b := range []*batch.Batch{inside, asArrival, outside} {
		if err := repo.Insert(ctx, b); err != nil {
			t.Fatalf("insert %s: %v", b.ID(), err)
		}
	}

	listed, err := repo.ListByAgencyWindow(ctx, "agency-dep", day, day.Add(24*time.Hour), nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d batches, want 2", len(listed))
	}
	if listed[0].ID() != "btc-w-1" || listed[1].ID() != "btc-w-2" {
		t.Fatalf("order = [%s %s], want departure_at ascending", listed[0].ID(), listed[1].ID())
	}

	// Status filter narrows the result.
	listed, err = repo.ListByAgencyWindow(ctx, "agency-dep", day, day.Add(24*time.Hour), []batch.Status{batch.StatusClosed})
	if err != nil {
		t.Fatalf("list closed: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("listed %d closed batches, want 0", len(listed))
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
