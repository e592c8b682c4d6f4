package application

import (
	"context"
	"errors"
	"time"

	"freight-cloud/internal/batch/application/events"
	batch "freight-cloud/internal/batch/domain"
	"freight-cloud/internal/eventing"
)

const defaultDepartureWindow = 6 * time.Hour

// maxCommitAttempts bounds the transparent retry on optimistic conflicts.
const maxCommitAttempts = 3

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Publisher emits domain events after commits.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// IDFactory mints batch identifiers.
type IDFactory interface {
	NewBatchID() string
}

type eventIDFactory struct{}

func (eventIDFactory) NewBatchID() string { return "btc-" + eventing.NewEventID() }

// CreateBatchInput carries the fields needed to open a batch.
type CreateBatchInput struct {
	DepartureAgencyID string
	ArrivalAgencyID   string
	VehicleID         string
	TripID            string
	DepartureAt       time.Time
	CreatedBy         string
}

// Service enforces the batch state machine and shipment membership rules
// under concurrent agency access.
type Service struct {
	repo      batch.Repository
	publisher Publisher
	clock     Clock
	ids       IDFactory
	window    time.Duration
}

// Option configures the service.
type Option func(*Service)

// WithDepartureWindow overrides the vehicle departure window.
func WithDepartureWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.window = window
		}
	}
}

// WithIDFactory overrides batch id generation.
func WithIDFactory(ids IDFactory) Option {
	return func(s *Service) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// NewService constructs the batch service.
func NewService(repo batch.Repository, publisher Publisher, clock Clock, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("batch service: nil repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	s := &Service{
		repo:      repo,
		publisher: publisher,
		clock:     clock,
		ids:       eventIDFactory{},
		window:    defaultDepartureWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateBatch opens a batch after checking the vehicle departure window
// against every active batch on the same vehicle.
func (s *Service) CreateBatch(ctx context.Context, input CreateBatchInput) (*batch.Batch, error) {
	now := s.clock.Now()
	b, err := batch.NewBatch(
		s.ids.NewBatchID(),
		input.DepartureAgencyID,
		input.ArrivalAgencyID,
		input.VehicleID,
		input.TripID,
		input.DepartureAt,
		input.CreatedBy,
		now,
	)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.ListActiveByVehicle(ctx, input.VehicleID)
	if err != nil {
		return nil, err
	}
	for _, other := range active {
		if other.OverlapsWindow(input.DepartureAt, s.window) {
			return nil, batch.ErrVehicleWindowConflict
		}
	}

	if err := s.repo.Insert(ctx, b); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, events.BatchCreated{
			BatchID:           b.ID(),
			DepartureAgencyID: b.DepartureAgencyID(),
			ArrivalAgencyID:   b.ArrivalAgencyID(),
			VehicleID:         b.VehicleID(),
			DepartureAt:       b.DepartureAt(),
			OccurredAt:        now,
		})
	}
	return b, nil
}

// AddShipment appends a shipment to an OPEN batch. A shipment may live in at
// most one non-closed batch across the whole company, so membership is
// checked globally before the optimistic commit.
func (s *Service) AddShipment(ctx context.Context, batchID, shipmentID string) (*batch.Batch, error) {
	if shipmentID == "" {
		return nil, batch.ErrEmptyShipmentID
	}
	return s.commit(ctx, batchID, func(b *batch.Batch) error {
		holder, err := s.repo.FindActiveByShipment(ctx, shipmentID)
		if err != nil {
			return err
		}
		if holder != nil && holder.ID() != b.ID() {
			return batch.ErrShipmentConflict
		}
		return b.AddShipment(shipmentID)
	})
}

// Transition moves a batch one step through its lifecycle and emits
// BatchTransitioned once the new status commits. The commit is atomic with
// respect to concurrent AddShipment calls: once any reader observes
// DEPARTED the shipment set is frozen.
func (s *Service) Transition(ctx context.Context, batchID string, target batch.Status, actor string) (*batch.Batch, error) {
	var from batch.Status
	committed, err := s.commit(ctx, batchID, func(b *batch.Batch) error {
		from = b.Status()
		return b.TransitionTo(target)
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, events.BatchTransitioned{
			BatchID:    committed.ID(),
			AgencyID:   committed.DepartureAgencyID(),
			VehicleID:  committed.VehicleID(),
			From:       from,
			To:         target,
			OccurredAt: s.clock.Now(),
		})
	}
	_ = actor
	return committed, nil
}

// GetBatch loads a batch by id.
func (s *Service) GetBatch(ctx context.Context, batchID string) (*batch.Batch, error) {
	if batchID == "" {
		return nil, batch.ErrEmptyBatchID
	}
	return s.repo.Get(ctx, batchID)
}

// ListByAgencyWindow exposes the repository query for reporting surfaces.
func (s *Service) ListByAgencyWindow(ctx context.Context, agencyID string, from, to time.Time, statuses []batch.Status) ([]*batch.Batch, error) {
	if agencyID == "" {
		return nil, batch.ErrEmptyAgencyID
	}
	return s.repo.ListByAgencyWindow(ctx, agencyID, from, to, statuses)
}

// commit runs read-mutate-update with bounded retry on version conflicts.
// Domain errors from mutate abort immediately and surface to the caller.
func (s *Service) commit(ctx context.Context, batchID string, mutate func(*batch.Batch) error) (*batch.Batch, error) {
	if batchID == "" {
		return nil, batch.ErrEmptyBatchID
	}

	var lastErr error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		b, err := s.repo.Get(ctx, batchID)
		if err != nil {
			return nil, err
		}
		expected := b.Version()

		if err := mutate(b); err != nil {
			return nil, err
		}

		if err := s.repo.Update(ctx, b, expected); err != nil {
			if errors.Is(err, batch.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return b, nil
	}
	return nil, lastErr
}
