package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	batch "freight-cloud/internal/batch/domain"
)

// BatchRepository is an in-memory batch store with the same optimistic
// concurrency contract as the Postgres implementation.
type BatchRepository struct {
	mu   sync.RWMutex
	data map[string]*batch.Batch
}

// NewBatchRepository constructs a repository.
func NewBatchRepository() *BatchRepository {
	return &BatchRepository{data: make(map[string]*batch.Batch)}
}

// Insert stores a new batch.
func (r *BatchRepository) Insert(ctx context.Context, b *batch.Batch) error {
	_ = ctx
	if b == nil {
		return batch.ErrNilBatch
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[b.ID()] = b.Clone()
	return nil
}

// Get loads a detached copy of a batch.
func (r *BatchRepository) Get(ctx context.Context, batchID string) (*batch.Batch, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.data[batchID]
	if !ok {
		return nil, batch.ErrBatchNotFound
	}
	return stored.Clone(), nil
}

// Update commits only when the stored version matches expectedVersion.
func (r *BatchRepository) Update(ctx context.Context, b *batch.Batch, expectedVersion int) error {
	_ = ctx
	if b == nil {
		return batch.ErrNilBatch
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.data[b.ID()]
	if !ok {
		return batch.ErrBatchNotFound
	}
	if stored.Version() != expectedVersion {
		return batch.ErrVersionConflict
	}
	committed := b.Clone()
	committed.SetVersion(expectedVersion + 1)
	r.data[b.ID()] = committed
	b.SetVersion(expectedVersion + 1)
	return nil
}

// ListActiveByVehicle returns non-closed batches on a vehicle.
func (r *BatchRepository) ListActiveByVehicle(ctx context.Context, vehicleID string) ([]*batch.Batch, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*batch.Batch
	for _, stored := range r.data {
		if stored.VehicleID() == vehicleID && stored.Active() {
			result = append(result, stored.Clone())
		}
	}
	sortBatches(result)
	return result, nil
}

// FindActiveByShipment returns the non-closed batch holding a shipment.
func (r *BatchRepository) FindActiveByShipment(ctx context.Context, shipmentID string) (*batch.Batch, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stored := range r.data {
		if stored.Active() && stored.HasShipment(shipmentID) {
			return stored.Clone(), nil
		}
	}
	return nil, nil
}

// ListByAgencyWindow returns batches for an agency departing in [from, to).
func (r *BatchRepository) ListByAgencyWindow(ctx context.Context, agencyID string, from, to time.Time, statuses []batch.Status) ([]*batch.Batch, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := make(map[batch.Status]bool, len(statuses))
	for _, status := range statuses {
		allowed[status] = true
	}

	var result []*batch.Batch
	for _, stored := range r.data {
		if stored.DepartureAgencyID() != agencyID && stored.ArrivalAgencyID() != agencyID {
			continue
		}
		if stored.DepartureAt().Before(from) || !stored.DepartureAt().Before(to) {
			continue
		}
		if len(allowed) > 0 && !allowed[stored.Status()] {
			continue
		}
		result = append(result, stored.Clone())
	}
	sortBatches(result)
	return result, nil
}

func sortBatches(batches []*batch.Batch) {
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].DepartureAt().Equal(batches[j].DepartureAt()) {
			return batches[i].ID() < batches[j].ID()
		}
		return batches[i].DepartureAt().Before(batches[j].DepartureAt())
	})
}
