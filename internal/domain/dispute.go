package domain

import "time"

// DisputeStatus is a state of the dispute workflow.
type DisputeStatus string

const (
	DisputeStatusReceived          DisputeStatus = "RECEIVED"
	DisputeStatusUnderReview       DisputeStatus = "UNDER_REVIEW"
	DisputeStatusEvidenceRequired  DisputeStatus = "EVIDENCE_REQUIRED"
	DisputeStatusEvidenceSubmitted DisputeStatus = "EVIDENCE_SUBMITTED"
	DisputeStatusWon               DisputeStatus = "WON"
	DisputeStatusLost              DisputeStatus = "LOST"
	DisputeStatusAccepted          DisputeStatus = "ACCEPTED"
	DisputeStatusExpired           DisputeStatus = "EXPIRED"
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusReceived:          {DisputeStatusUnderReview, DisputeStatusAccepted, DisputeStatusExpired},
	DisputeStatusUnderReview:       {DisputeStatusEvidenceRequired, DisputeStatusAccepted, DisputeStatusExpired},
	DisputeStatusEvidenceRequired:  {DisputeStatusEvidenceSubmitted, DisputeStatusExpired},
	DisputeStatusEvidenceSubmitted: {DisputeStatusWon, DisputeStatusLost, DisputeStatusExpired},
}

// CanTransitionTo reports whether the dispute graph has an edge s -> next.
func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	for _, allowed := range disputeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the dispute has been resolved.
func (s DisputeStatus) IsTerminal() bool {
	return len(disputeTransitions[s]) == 0
}

// DebitsAccount reports whether resolving into s charges the disputed amount.
func (s DisputeStatus) DebitsAccount() bool {
	return s == DisputeStatusLost || s == DisputeStatusAccepted || s == DisputeStatusExpired
}

// ActiveDisputeStatuses lists the non-terminal states.
func ActiveDisputeStatuses() []DisputeStatus {
	return []DisputeStatus{
		DisputeStatusReceived,
		DisputeStatusUnderReview,
		DisputeStatusEvidenceRequired,
		DisputeStatusEvidenceSubmitted,
	}
}

// Dispute is a chargeback raised by a payment provider against a transaction.
type Dispute struct {
	ID                string        `json:"id"`
	ProviderDisputeID string        `json:"provider_dispute_id"`
	PaymentProvider   string        `json:"payment_provider"`
	TransactionID     string        `json:"transaction_id"`
	AccountID         string        `json:"account_id"`
	DisputeType       string        `json:"dispute_type"`
	Reason            string        `json:"reason"`
	DisputedAmount    int64         `json:"disputed_amount"`
	Currency          string        `json:"currency"`
	Status            DisputeStatus `json:"status"`
	EvidenceDueBy     *time.Time    `json:"evidence_due_by,omitempty"`
	EvidenceSubmitted bool          `json:"evidence_submitted"`
	DeadlineMissed    bool          `json:"deadline_missed"`
	FundsFrozen       bool          `json:"funds_frozen"`
	FrozenAmount      int64         `json:"frozen_amount"`
	FundsReleasedAt   *time.Time    `json:"funds_released_at,omitempty"`
	ChargebackTxID    string        `json:"chargeback_transaction_id,omitempty"`
	ChargebackBlocked bool          `json:"chargeback_blocked"`
	ResolvedAt        *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// EvidenceOverdue reports whether the evidence deadline passed without a
// submission while the dispute is still open.
func (d *Dispute) EvidenceOverdue(now time.Time) bool {
	return !d.Status.IsTerminal() &&
		!d.EvidenceSubmitted &&
		d.EvidenceDueBy != nil &&
		d.EvidenceDueBy.Before(now)
}
