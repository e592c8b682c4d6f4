package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	ledger "freight-cloud/internal/ledger/domain"
)

// LedgerRepository is an in-memory revenue ledger for tests and tooling.
type LedgerRepository struct {
	mu     sync.RWMutex
	events map[string]ledger.RevenueEvent
}

// NewLedgerRepository constructs a repository.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{events: make(map[string]ledger.RevenueEvent)}
}

// Insert appends an event unless the id is already taken.
func (r *LedgerRepository) Insert(ctx context.Context, event ledger.RevenueEvent) (ledger.RevenueEvent, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if stored, ok := r.events[event.EventID]; ok {
		return stored, false, nil
	}
	r.events[event.EventID] = event
	return event, true, nil
}

// Get loads an event by id.
func (r *LedgerRepository) Get(ctx context.Context, eventID string) (ledger.RevenueEvent, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.events[eventID]
	if !ok {
		return ledger.RevenueEvent{}, ledger.ErrEventNotFound
	}
	return stored, nil
}

// ListByAgency returns events in [from, to) ordered by occurred_at, event id.
func (r *LedgerRepository) ListByAgency(ctx context.Context, agencyID string, from, to time.Time) ([]ledger.RevenueEvent, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []ledger.RevenueEvent
	for _, event := range r.events {
		if event.AgencyID != agencyID {
			continue
		}
		if event.OccurredAt.Before(from) || !event.OccurredAt.Before(to) {
			continue
		}
		result = append(result, event)
	}
	sortEvents(result)
	return result, nil
}

// ListBySource returns events attributed to a source.
func (r *LedgerRepository) ListBySource(ctx context.Context, sourceType ledger.SourceType, sourceID string) ([]ledger.RevenueEvent, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []ledger.RevenueEvent
	for _, event := range r.events {
		if event.SourceType == sourceType && event.SourceID == sourceID {
			result = append(result, event)
		}
	}
	sortEvents(result)
	return result, nil
}

// FindReversal returns the reversal of an event when present.
func (r *LedgerRepository) FindReversal(ctx context.Context, originalEventID string) (ledger.RevenueEvent, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, event := range r.events {
		if event.ReversalOf == originalEventID {
			return event, nil
		}
	}
	return ledger.RevenueEvent{}, ledger.ErrEventNotFound
}

// Len reports the number of stored events, for assertion convenience.
func (r *LedgerRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

func sortEvents(events []ledger.RevenueEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].EventID < events[j].EventID
		}
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})
}
