package domain

import (
	"strings"
	"time"
)

// PayoutStatus is a state of the payout state machine.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "PENDING"
	PayoutStatusApproved   PayoutStatus = "APPROVED"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusPaid       PayoutStatus = "PAID"
	PayoutStatusFailed     PayoutStatus = "FAILED"
	PayoutStatusCancelled  PayoutStatus = "CANCELLED"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:    {PayoutStatusApproved, PayoutStatusCancelled},
	PayoutStatusApproved:   {PayoutStatusProcessing, PayoutStatusCancelled},
	PayoutStatusProcessing: {PayoutStatusPaid, PayoutStatusFailed},
}

// CanTransitionTo reports whether the payout graph has an edge s -> next.
func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, allowed := range payoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s PayoutStatus) IsTerminal() bool {
	return len(payoutTransitions[s]) == 0
}

// HoldsReservation reports whether a payout in this state still has funds
// reserved on its account.
func (s PayoutStatus) HoldsReservation() bool {
	return s == PayoutStatusPending || s == PayoutStatusApproved || s == PayoutStatusProcessing
}

// PayoutMethod is the rail used to send money out.
type PayoutMethod string

const (
	PayoutMethodBank   PayoutMethod = "BANK"
	PayoutMethodMobile PayoutMethod = "MOBILE"
)

// PayoutDestination carries either bank or mobile money details.
type PayoutDestination struct {
	BankName          string `json:"bank_name,omitempty"`
	BankCode          string `json:"bank_code,omitempty"`
	AccountNumber     string `json:"account_number,omitempty"`
	AccountHolderName string `json:"account_holder_name,omitempty"`
	MobileProvider    string `json:"mobile_provider,omitempty"`
	MobileNumber      string `json:"mobile_number,omitempty"`
}

// Validate checks that the destination has the fields its method needs.
func (d PayoutDestination) Validate(method PayoutMethod) error {
	switch method {
	case PayoutMethodBank:
		if strings.TrimSpace(d.AccountNumber) == "" || strings.TrimSpace(d.BankCode) == "" {
			return ErrInvalidPayoutDestination
		}
	case PayoutMethodMobile:
		if strings.TrimSpace(d.MobileNumber) == "" {
			return ErrInvalidPayoutDestination
		}
	default:
		return ErrInvalidPayoutDestination
	}
	return nil
}

// Payout is a withdrawal request from a provider account.
type Payout struct {
	ID                    string            `json:"id"`
	ReferenceNumber       string            `json:"reference_number"`
	AccountID             string            `json:"account_id"`
	ProviderID            string            `json:"provider_id"`
	AmountMinor           int64             `json:"amount_minor"`
	Currency              string            `json:"currency"`
	Method                PayoutMethod      `json:"method"`
	Destination           PayoutDestination `json:"destination"`
	Status                PayoutStatus      `json:"status"`
	RequestedBy           string            `json:"requested_by,omitempty"`
	ApprovedBy            string            `json:"approved_by,omitempty"`
	ProcessedBy           string            `json:"processed_by,omitempty"`
	ExternalTransactionID string            `json:"external_transaction_id,omitempty"`
	SettlementTxID        string            `json:"settlement_transaction_id,omitempty"`
	FailureReason         string            `json:"failure_reason,omitempty"`
	CancelReason          string            `json:"cancel_reason,omitempty"`
	RequestedAt           time.Time         `json:"requested_at"`
	ApprovedAt            *time.Time        `json:"approved_at,omitempty"`
	ProcessedAt           *time.Time        `json:"processed_at,omitempty"`
	CompletedAt           *time.Time        `json:"completed_at,omitempty"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// PayoutFilter narrows payout listings.
type PayoutFilter struct {
	ProviderID      string
	Status          PayoutStatus
	ProcessedBefore *time.Time
	Limit           int
}

// PayoutStats aggregates payouts per status for dashboards.
type PayoutStats struct {
	Count       map[PayoutStatus]int   `json:"count"`
	AmountMinor map[PayoutStatus]int64 `json:"amount_minor"`
}
