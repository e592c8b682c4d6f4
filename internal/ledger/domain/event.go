package ledger

import "time"

// SourceType identifies the subsystem that produced a revenue event.
type SourceType string

const (
	// SourceLogistics marks revenue generated by freight batches and shipments.
	SourceLogistics SourceType = "LOGISTICS"
	// SourceTicket marks revenue generated by passenger reservations.
	SourceTicket SourceType = "TICKET"
)

// Category classifies the destination of a revenue amount.
type Category string

const (
	CategoryTransport          Category = "TRANSPORT"
	CategoryInsurance          Category = "INSURANCE"
	CategoryDestinationPayment Category = "DESTINATION_PAYMENT"
)

// RevenueEvent is an immutable financial fact. Amounts are minor currency
// units. A reversal carries the negative of the original amount and
// references it through ReversalOf; every other event must be non-negative.
type RevenueEvent struct {
	EventID    string     `json:"event_id"`
	SourceType SourceType `json:"source_type"`
	SourceID   string     `json:"source_id"`
	AgencyID   string     `json:"agency_id"`
	VehicleID  string     `json:"vehicle_id,omitempty"`
	Amount     int64      `json:"amount"`
	Currency   string     `json:"currency"`
	Category   Category   `json:"category"`
	OccurredAt time.Time  `json:"occurred_at"`
	ReversalOf string     `json:"reversal_of,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	RecordedBy string     `json:"recorded_by,omitempty"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// IsReversal reports whether the event reverses another event.
func (e RevenueEvent) IsReversal() bool { return e.ReversalOf != "" }

// Validate checks the event against ledger invariants before storage.
func (e RevenueEvent) Validate() error {
	if e.EventID == "" {
		return ErrEmptyEventID
	}
	if e.AgencyID == "" {
		return ErrEmptyAgencyID
	}
	if e.SourceID == "" {
		return ErrEmptySourceID
	}
	switch e.SourceType {
	case SourceLogistics, SourceTicket:
	default:
		return ErrUnknownSourceType
	}
	switch e.Category {
	case CategoryTransport, CategoryInsurance, CategoryDestinationPayment:
	default:
		return ErrUnknownCategory
	}
	if e.Amount < 0 && !e.IsReversal() {
		return ErrNegativeAmount
	}
	if e.OccurredAt.IsZero() {
		return ErrInvalidOccurredAt
	}
	return nil
}

// ReversalEventID derives the deterministic id of the reversal for an
// original event, so retried reversal requests stay idempotent.
func ReversalEventID(originalEventID string) string {
	return originalEventID + "/reversal"
}
