package application

import (
	"context"
	"errors"
	"testing"
	"time"

	ledger "freight-cloud/internal/ledger/domain"
	"freight-cloud/internal/ledger/infrastructure/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *memory.LedgerRepository) {
	t.Helper()
	repo := memory.NewLedgerRepository()
	service, err := NewService(repo, fixedClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, repo
}

func sampleEvent(eventID string) ledger.RevenueEvent {
	return ledger.RevenueEvent{
		EventID:    eventID,
		SourceType: ledger.SourceLogistics,
		SourceID:   "btc-1",
		AgencyID:   "agency-dep",
		VehicleID:  "veh-1",
		Amount:     12500,
		Currency:   "XOF",
		Category:   ledger.CategoryTransport,
		OccurredAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestAppendAccepted(t *testing.T) {
	service, repo := newTestService(t)
	ctx := context.Background()

	result, err := service.Append(ctx, sampleEvent("evt-1"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if result.Status != StatusAccepted {
		t.Fatalf("status = %s, want accepted", result.Status)
	}
	if result.Event.RecordedAt.IsZero() {
		t.Fatal("recorded_at not stamped")
	}
	if repo.Len() != 1 {
		t.Fatalf("stored %d events, want 1", repo.Len())
	}
}

func TestAppendDuplicateIsNoOp(t *testing.T) {
	service, repo := newTestService(t)
	ctx := context.Background()

	first, err := service.Append(ctx, sampleEvent("evt-1"))
	if err != nil {
		t.Fatalf("first append: %v", err)
	}

	// Same id with a different amount: the original must win untouched.
	retry := sampleEvent("evt-1")
	retry.Amount = 99999
	second, err := service.Append(ctx, retry)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if second.Status != StatusDuplicate {
		t.Fatalf("status = %s, want duplicate", second.Status)
	}
	if second.Event.Amount != first.Event.Amount {
		t.Fatalf("duplicate returned amount %d, want original %d", second.Event.Amount, first.Event.Amount)
	}
	if repo.Len() != 1 {
		t.Fatalf("stored %d events, want 1", repo.Len())
	}
}

func TestAppendValidation(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*ledger.RevenueEvent)
		want   error
	}{
		{"missing id", func(e *ledger.RevenueEvent) { e.EventID = "" }, ledger.ErrEmptyEventID},
		{"missing agency", func(e *ledger.RevenueEvent) { e.AgencyID = "" }, ledger.ErrEmptyAgencyID},
		{"missing source", func(e *ledger.RevenueEvent) { e.SourceID = "" }, ledger.ErrEmptySourceID},
		{"bad source type", func(e *ledger.RevenueEvent) { e.SourceType = "PARCEL" }, ledger.ErrUnknownSourceType},
		{"bad category", func(e *ledger.RevenueEvent) { e.Category = "FUEL" }, ledger.ErrUnknownCategory},
		{"negative amount", func(e *ledger.RevenueEvent) { e.Amount = -1 }, ledger.ErrNegativeAmount},
		{"zero occurred_at", func(e *ledger.RevenueEvent) { e.OccurredAt = time.Time{} }, ledger.ErrInvalidOccurredAt},
	}
	for _, tc := range cases {
		event := sampleEvent("evt-x")
		tc.mutate(&event)
		if _, err := service.Append(ctx, event); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestReverse(t *testing.T) {
	service, repo := newTestService(t)
	ctx := context.Background()

	if _, err := service.Append(ctx, sampleEvent("evt-1")); err != nil {
		t.Fatalf("append: %v", err)
	}

	reversal, err := service.Reverse(ctx, "evt-1", "mis-keyed amount", "finance@test")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if reversal.EventID != ledger.ReversalEventID("evt-1") {
		t.Fatalf("reversal id = %s", reversal.EventID)
	}
	if reversal.Amount != -12500 {
		t.Fatalf("reversal amount = %d, want -12500", reversal.Amount)
	}
	if reversal.ReversalOf != "evt-1" {
		t.Fatalf("reversal_of = %s", reversal.ReversalOf)
	}
	if reversal.Category != ledger.CategoryTransport {
		t.Fatalf("category = %s, want original category", reversal.Category)
	}

	// The original event is immutable.
	original, err := service.Get(ctx, "evt-1")
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.Amount != 12500 {
		t.Fatalf("original amount mutated to %d", original.Amount)
	}
	if repo.Len() != 2 {
		t.Fatalf("stored %d events, want 2", repo.Len())
	}
}

func TestReverseTwiceRejected(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.Append(ctx, sampleEvent("evt-1")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := service.Reverse(ctx, "evt-1", "first", "finance@test"); err != nil {
		t.Fatalf("first reverse: %v", err)
	}
	if _, err := service.Reverse(ctx, "evt-1", "second", "finance@test"); !errors.Is(err, ledger.ErrAlreadyReversed) {
		t.Fatalf("expected ErrAlreadyReversed, got %v", err)
	}
}

func TestReverseOfReversalRejected(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.Append(ctx, sampleEvent("evt-1")); err != nil {
		t.Fatalf("append: %v", err)
	}
	reversal, err := service.Reverse(ctx, "evt-1", "fix", "finance@test")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if _, err := service.Reverse(ctx, reversal.EventID, "undo the undo", "finance@test"); !errors.Is(err, ledger.ErrAlreadyReversed) {
		t.Fatalf("expected ErrAlreadyReversed for reversal-of-reversal, got %v", err)
	}
}

func TestReverseMissingEvent(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.Reverse(context.Background(), "evt-missing", "", "finance@test"); !errors.Is(err, ledger.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestListByAgencyOrdering(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for _, spec := range []struct {
		id     string
		offset time.Duration
	}{
		{"evt-b", time.Hour},
		{"evt-a", time.Hour},
		{"evt-c", 0},
	} {
		event := sampleEvent(spec.id)
		event.OccurredAt = base.Add(spec.offset)
		if _, err := service.Append(ctx, event); err != nil {
			t.Fatalf("append %s: %v", spec.id, err)
		}
	}

	events, err := service.ListByAgency(ctx, "agency-dep", base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, event := range events {
		got = append(got, event.EventID)
	}
	want := []string{"evt-c", "evt-a", "evt-b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
}
