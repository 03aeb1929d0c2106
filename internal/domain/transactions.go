package domain

import "time"

// EntryType defines the direction of a ledger entry (DEBIT or CREDIT).
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// Valid reports whether t is DEBIT or CREDIT.
func (t EntryType) Valid() bool {
	return t == EntryTypeDebit || t == EntryTypeCredit
}

// Opposite returns the entry type that cancels t.
func (t EntryType) Opposite() EntryType {
	if t == EntryTypeDebit {
		return EntryTypeCredit
	}
	return EntryTypeDebit
}

// TransactionType is the business event a transaction records.
type TransactionType string

const (
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeRefund     TransactionType = "REFUND"
	TransactionTypePayout     TransactionType = "PAYOUT"
	TransactionTypeFee        TransactionType = "FEE"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
	TransactionTypeChargeback TransactionType = "CHARGEBACK"
)

// TransactionStatus is the status of a transaction. COMPLETED and FAILED are
// terminal.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// CanTransitionTo reports whether s may move to next. Only PENDING moves.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == TransactionStatusPending &&
		(next == TransactionStatusCompleted || next == TransactionStatusFailed)
}

// LedgerEntry is an immutable posting against one account. Amount is never
// negative; the direction is carried by EntryType.
type LedgerEntry struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	EntryType     EntryType `json:"entry_type"`
	AmountMinor   int64     `json:"amount_minor"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

// SignedAmount returns the entry amount using the ledger's convention:
// credits are positive, debits are negative.
func (e LedgerEntry) SignedAmount() int64 {
	return SignedAmount(e.EntryType, e.AmountMinor)
}

// SignedAmount applies the credit-positive convention to an amount.
func SignedAmount(t EntryType, amount int64) int64 {
	if t == EntryTypeDebit {
		return -amount
	}
	return amount
}

// Transaction groups two or more balanced ledger entries recorded for one
// business event. Only Status, ReconciledAt, ReversedBy and FailureReason
// change after creation.
type Transaction struct {
	ID                    string            `json:"id"`
	TransactionType       TransactionType   `json:"transaction_type"`
	Status                TransactionStatus `json:"status"`
	Currency              string            `json:"currency"`
	AmountMinor           int64             `json:"amount_minor"`
	PaymentProvider       string            `json:"payment_provider,omitempty"`
	ProviderTransactionID string            `json:"provider_transaction_id,omitempty"`
	IdempotencyKey        string            `json:"idempotency_key,omitempty"`
	Description           string            `json:"description,omitempty"`
	ReversalOf            string            `json:"reversal_of,omitempty"`
	ReversedBy            string            `json:"reversed_by,omitempty"`
	FailureReason         string            `json:"failure_reason,omitempty"`
	ReconciledAt          *time.Time        `json:"reconciled_at,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	Entries               []LedgerEntry     `json:"entries,omitempty"`
}

// IsReversed reports whether a compensating transaction has been posted.
func (t *Transaction) IsReversed() bool {
	return t.ReversedBy != ""
}
