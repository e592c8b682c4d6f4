package ledger

import "errors"

var (
	// ErrEmptyEventID is returned when an event carries no idempotency key.
	ErrEmptyEventID = errors.New("ledger: empty event id")
	// ErrEmptyAgencyID is returned when an event carries no agency id.
	ErrEmptyAgencyID = errors.New("ledger: empty agency id")
	// ErrEmptySourceID is returned when an event carries no source id.
	ErrEmptySourceID = errors.New("ledger: empty source id")
	// ErrNegativeAmount is returned when a non-reversal event carries a negative amount.
	ErrNegativeAmount = errors.New("ledger: negative amount")
	// ErrUnknownCategory is returned for an unrecognized revenue category.
	ErrUnknownCategory = errors.New("ledger: unknown category")
	// ErrUnknownSourceType is returned for an unrecognized source type.
	ErrUnknownSourceType = errors.New("ledger: unknown source type")
	// ErrInvalidOccurredAt is returned when occurred_at is zero.
	ErrInvalidOccurredAt = errors.New("ledger: invalid occurred at")
	// ErrEventNotFound is returned when the referenced event does not exist.
	ErrEventNotFound = errors.New("ledger: event not found")
	// ErrAlreadyReversed is returned when a reversal already exists for the event.
	ErrAlreadyReversed = errors.New("ledger: event already reversed")
)
