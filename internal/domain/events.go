package domain

import "time"

// EventKind is the type of an inbound provider notification.
type EventKind string

const (
	EventPaymentCaptured EventKind = "PAYMENT_CAPTURED"
	EventRefundSucceeded EventKind = "REFUND_SUCCEEDED"
	EventDisputeOpened   EventKind = "DISPUTE_OPENED"
	EventPayoutPaid      EventKind = "PAYOUT_PAID"
	EventPayoutFailed    EventKind = "PAYOUT_FAILED"
)

// InboundEvent is a normalized webhook delivered by a payment provider.
// RetryCount is the number of earlier delivery attempts.
type InboundEvent struct {
	EventID               string        `json:"event_id"`
	Provider              string        `json:"provider"`
	Kind                  EventKind     `json:"kind"`
	RetryCount            int           `json:"retry_count"`
	AccountID             string        `json:"account_id,omitempty"`
	ProviderTransactionID string        `json:"provider_transaction_id,omitempty"`
	AmountMinor           int64         `json:"amount_minor,omitempty"`
	FeeMinor              int64         `json:"fee_minor,omitempty"`
	Currency              string        `json:"currency,omitempty"`
	PayoutID              string        `json:"payout_id,omitempty"`
	ExternalTransactionID string        `json:"external_transaction_id,omitempty"`
	FailureReason         string        `json:"failure_reason,omitempty"`
	Dispute               *DisputeEvent `json:"dispute,omitempty"`
	OccurredAt            time.Time     `json:"occurred_at"`
}

// DisputeEvent carries the dispute fields of a DISPUTE_OPENED notification.
type DisputeEvent struct {
	ProviderDisputeID string     `json:"provider_dispute_id"`
	DisputeType       string     `json:"dispute_type"`
	Reason            string     `json:"reason"`
	EvidenceDueBy     *time.Time `json:"evidence_due_by,omitempty"`
	FreezeFunds       bool       `json:"freeze_funds"`
}

// IngestionOutcome tells the delivery channel what to do with an event.
type IngestionOutcome string

const (
	OutcomeAck        IngestionOutcome = "ACK"
	OutcomeRetry      IngestionOutcome = "RETRY"
	OutcomeDeadLetter IngestionOutcome = "DEAD_LETTER"
)
