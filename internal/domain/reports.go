package domain

import "time"

// JobStatus is the status of a reconciliation job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// DiscrepancyType classifies a mismatch between internal and provider records.
type DiscrepancyType string

const (
	DiscrepancyMissingInternal DiscrepancyType = "MISSING_INTERNAL"
	DiscrepancyMissingProvider DiscrepancyType = "MISSING_PROVIDER"
	DiscrepancyAmountMismatch  DiscrepancyType = "AMOUNT_MISMATCH"
	DiscrepancyStatusMismatch  DiscrepancyType = "STATUS_MISMATCH"
)

// Severity ranks how urgently a discrepancy needs attention.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ProviderStatus is the normalized status of a provider statement line.
type ProviderStatus string

const (
	ProviderStatusCompleted ProviderStatus = "COMPLETED"
	ProviderStatusPending   ProviderStatus = "PENDING"
	ProviderStatusFailed    ProviderStatus = "FAILED"
	ProviderStatusRefunded  ProviderStatus = "REFUNDED"
)

// ProviderRecord is one line of a provider statement, normalized to minor units.
type ProviderRecord struct {
	ProviderTransactionID string         `json:"provider_transaction_id"`
	AmountMinor           int64          `json:"amount_minor"`
	Currency              string         `json:"currency"`
	Status                ProviderStatus `json:"status"`
	OccurredAt            time.Time      `json:"occurred_at"`
	Source                string         `json:"source,omitempty"`
}

// ReconciliationJob is one run of the matcher over (provider, period).
type ReconciliationJob struct {
	ID                        string     `json:"id"`
	Provider                  string     `json:"provider"`
	PeriodStart               time.Time  `json:"period_start"`
	PeriodEnd                 time.Time  `json:"period_end"`
	Status                    JobStatus  `json:"status"`
	TotalProviderTransactions int        `json:"total_provider_transactions"`
	TotalInternalTransactions int        `json:"total_internal_transactions"`
	MatchedTransactions       int        `json:"matched_transactions"`
	DiscrepanciesFound        int        `json:"discrepancies_found"`
	ErrorMessage              string     `json:"error_message,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
	StartedAt                 *time.Time `json:"started_at,omitempty"`
	CompletedAt               *time.Time `json:"completed_at,omitempty"`
}

// Overlaps reports whether the job covers any instant of [start, end).
func (j *ReconciliationJob) Overlaps(provider string, start, end time.Time) bool {
	return j.Provider == provider && j.PeriodStart.Before(end) && start.Before(j.PeriodEnd)
}

// Discrepancy is a detected mismatch recorded against a job.
type Discrepancy struct {
	ID                    string          `json:"id"`
	JobID                 string          `json:"job_id"`
	TransactionID         string          `json:"transaction_id,omitempty"`
	ProviderTransactionID string          `json:"provider_transaction_id"`
	DiscrepancyType       DiscrepancyType `json:"discrepancy_type"`
	Severity              Severity        `json:"severity"`
	InternalAmount        int64           `json:"internal_amount"`
	ProviderAmount        int64           `json:"provider_amount"`
	AmountDifference      int64           `json:"amount_difference"`
	InternalStatus        string          `json:"internal_status,omitempty"`
	ProviderStatus        string          `json:"provider_status,omitempty"`
	Description           string          `json:"description"`
	Resolved              bool            `json:"resolved"`
	ResolvedBy            string          `json:"resolved_by,omitempty"`
	ResolutionNote        string          `json:"resolution_note,omitempty"`
	ResolvedAt            *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// SeverityThresholds configure how amount differences map onto severities.
type SeverityThresholds struct {
	MediumValueMinor int64
	HighValueMinor   int64
}

// ClassifySeverity assigns a severity from the discrepancy type and the
// magnitude of the amount difference.
func ClassifySeverity(t DiscrepancyType, amountDifference int64, th SeverityThresholds) Severity {
	magnitude := amountDifference
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude >= th.HighValueMinor {
		if t == DiscrepancyStatusMismatch {
			return SeverityHigh
		}
		return SeverityCritical
	}

	switch t {
	case DiscrepancyMissingInternal:
		// money at the provider that the ledger never saw
		return SeverityHigh
	case DiscrepancyMissingProvider, DiscrepancyAmountMismatch:
		if magnitude >= th.MediumValueMinor {
			return SeverityHigh
		}
		if magnitude == 0 {
			return SeverityLow
		}
		return SeverityMedium
	default:
		return SeverityMedium
	}
}

// IntegrityReport is the output of the ledger verification sweep.
type IntegrityReport struct {
	CheckedAt              time.Time          `json:"checked_at"`
	AccountsChecked        int                `json:"accounts_checked"`
	TransactionsChecked    int                `json:"transactions_checked"`
	UnbalancedTransactions []TransactionTotal `json:"unbalanced_transactions"`
	OrphanedEntries        []LedgerEntry      `json:"orphaned_entries"`
	BalanceDrift           []BalanceDrift     `json:"balance_drift"`
	NegativeAvailable      []Balance          `json:"negative_available"`
}

// Healthy reports whether no anomaly was found.
func (r *IntegrityReport) Healthy() bool {
	return len(r.UnbalancedTransactions) == 0 &&
		len(r.OrphanedEntries) == 0 &&
		len(r.BalanceDrift) == 0 &&
		len(r.NegativeAvailable) == 0
}

// TransactionTotal is the signed entry sum of one transaction and currency.
type TransactionTotal struct {
	TransactionID string `json:"transaction_id"`
	Currency      string `json:"currency"`
	SignedSum     int64  `json:"signed_sum"`
	EntryCount    int    `json:"entry_count"`
}

// BalanceDrift records an account whose running balance disagrees with the
// sum of its entries.
type BalanceDrift struct {
	AccountID      string `json:"account_id"`
	RunningBalance int64  `json:"running_balance"`
	EntrySum       int64  `json:"entry_sum"`
}

// AttentionReport lists stuck states that need an operator.
type AttentionReport struct {
	GeneratedAt       time.Time           `json:"generated_at"`
	StuckPayouts      []Payout            `json:"stuck_payouts"`
	StaleJobs         []ReconciliationJob `json:"stale_jobs"`
	OverdueDisputes   []Dispute           `json:"overdue_disputes"`
	ChargebackBlocked []Dispute           `json:"chargeback_blocked"`
}

// Total is the number of items in the report.
func (r *AttentionReport) Total() int {
	return len(r.StuckPayouts) + len(r.StaleJobs) + len(r.OverdueDisputes) + len(r.ChargebackBlocked)
}
