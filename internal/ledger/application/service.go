package application

import (
	"context"
	"errors"
	"time"

	ledger "freight-cloud/internal/ledger/domain"
)

// AppendStatus tells callers whether their event landed or was already there.
type AppendStatus string

const (
	// StatusAccepted means the event was stored by this call.
	StatusAccepted AppendStatus = "accepted"
	// StatusDuplicate means an event with the same id was already stored;
	// the call was a no-op.
	StatusDuplicate AppendStatus = "duplicate"
)

// AppendResult is the outcome of an Append call. Event is always the stored
// event: the new one on Accepted, the original on Duplicate.
type AppendResult struct {
	Status AppendStatus        `json:"status"`
	Event  ledger.RevenueEvent `json:"event"`
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Service handles revenue ledger use cases.
type Service struct {
	repo  ledger.Repository
	clock Clock
}

// NewService constructs the ledger service.
func NewService(repo ledger.Repository, clock Clock) (*Service, error) {
	if repo == nil {
		return nil, errors.New("ledger service: nil repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{repo: repo, clock: clock}, nil
}

// Append validates and stores a revenue event. Retried submissions with the
// same event id are safe: the second call returns Duplicate with the
// originally stored event and the ledger is unchanged.
func (s *Service) Append(ctx context.Context, event ledger.RevenueEvent) (AppendResult, error) {
	if err := event.Validate(); err != nil {
		return AppendResult{}, err
	}
	if event.RecordedAt.IsZero() {
		event.RecordedAt = s.clock.Now()
	}

	stored, inserted, err := s.repo.Insert(ctx, event)
	if err != nil {
		return AppendResult{}, err
	}
	if !inserted {
		return AppendResult{Status: StatusDuplicate, Event: stored}, nil
	}
	return AppendResult{Status: StatusAccepted, Event: stored}, nil
}

// Get loads a single event by id.
func (s *Service) Get(ctx context.Context, eventID string) (ledger.RevenueEvent, error) {
	if eventID == "" {
		return ledger.RevenueEvent{}, ledger.ErrEmptyEventID
	}
	return s.repo.Get(ctx, eventID)
}

// ListByAgency returns the agency's events in [from, to), ordered by
// occurred_at ascending with event id tie-break.
func (s *Service) ListByAgency(ctx context.Context, agencyID string, from, to time.Time) ([]ledger.RevenueEvent, error) {
	if agencyID == "" {
		return nil, ledger.ErrEmptyAgencyID
	}
	return s.repo.ListByAgency(ctx, agencyID, from, to)
}

// ListBySource returns all events attributed to a source.
func (s *Service) ListBySource(ctx context.Context, sourceType ledger.SourceType, sourceID string) ([]ledger.RevenueEvent, error) {
	if sourceID == "" {
		return nil, ledger.ErrEmptySourceID
	}
	switch sourceType {
	case ledger.SourceLogistics, ledger.SourceTicket:
	default:
		return nil, ledger.ErrUnknownSourceType
	}
	return s.repo.ListBySource(ctx, sourceType, sourceID)
}

// Reverse issues the correction event for a stored event. The original is
// never touched; the reversal carries the negated amount, the same category
// and source, and a derived id so retries collapse onto one reversal.
func (s *Service) Reverse(ctx context.Context, originalEventID, reason, actor string) (ledger.RevenueEvent, error) {
	if originalEventID == "" {
		return ledger.RevenueEvent{}, ledger.ErrEmptyEventID
	}
	original, err := s.repo.Get(ctx, originalEventID)
	if err != nil {
		return ledger.RevenueEvent{}, err
	}
	if original.IsReversal() {
		// Reversals are terminal; correcting a correction means issuing
		// a fresh original event.
		return ledger.RevenueEvent{}, ledger.ErrAlreadyReversed
	}

	if _, err := s.repo.FindReversal(ctx, originalEventID); err == nil {
		return ledger.RevenueEvent{}, ledger.ErrAlreadyReversed
	} else if !errors.Is(err, ledger.ErrEventNotFound) {
		return ledger.RevenueEvent{}, err
	}

	now := s.clock.Now()
	reversal := ledger.RevenueEvent{
		EventID:    ledger.ReversalEventID(originalEventID),
		SourceType: original.SourceType,
		SourceID:   originalEventID,
		AgencyID:   original.AgencyID,
		VehicleID:  original.VehicleID,
		Amount:     -original.Amount,
		Currency:   original.Currency,
		Category:   original.Category,
		OccurredAt: now,
		ReversalOf: originalEventID,
		Reason:     reason,
		RecordedBy: actor,
		RecordedAt: now,
	}
	if err := reversal.Validate(); err != nil {
		return ledger.RevenueEvent{}, err
	}

	stored, inserted, err := s.repo.Insert(ctx, reversal)
	if err != nil {
		return ledger.RevenueEvent{}, err
	}
	if !inserted {
		// A concurrent retry won the insert race; at most one reversal
		// exists either way.
		return stored, nil
	}
	return stored, nil
}
