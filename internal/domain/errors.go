package domain

import "errors"

// Validation errors. They are returned synchronously and nothing is committed
// when one of them is reported.
var (
	ErrUnbalancedTransaction        = errors.New("transaction entries do not balance")
	ErrCurrencyMismatch             = errors.New("currency mismatch")
	ErrAccountFrozen                = errors.New("account is frozen or closed")
	ErrAccountNotFound              = errors.New("account not found")
	ErrAccountNotEmpty              = errors.New("account still holds funds")
	ErrInsufficientBalance          = errors.New("insufficient available balance")
	ErrTooFewEntries                = errors.New("a transaction needs at least two entries")
	ErrInvalidAmount                = errors.New("amount must be positive")
	ErrInvalidEntryType             = errors.New("entry type must be DEBIT or CREDIT")
	ErrTransactionNotFound          = errors.New("transaction not found")
	ErrAlreadyReversed              = errors.New("transaction already reversed")
	ErrInvalidTransactionTransition = errors.New("invalid transaction status transition")
	ErrInvalidPayoutTransition      = errors.New("invalid payout status transition")
	ErrInvalidPayoutDestination     = errors.New("invalid payout destination")
	ErrPayoutNotFound               = errors.New("payout not found")
	ErrInvalidDisputeTransition     = errors.New("invalid dispute status transition")
	ErrDisputeNotFound              = errors.New("dispute not found")
	ErrInvalidDispute               = errors.New("invalid dispute")
	ErrJobNotFound                  = errors.New("reconciliation job not found")
	ErrDiscrepancyNotFound          = errors.New("discrepancy not found")
	ErrReconciliationInProgress     = errors.New("reconciliation already running for an overlapping period")
	ErrInvalidPeriod                = errors.New("period end must be after period start")
	ErrConcurrentUpdate             = errors.New("record was modified concurrently")
	ErrInvalidEvent                 = errors.New("invalid inbound event")
	ErrDuplicateTransaction         = errors.New("idempotency key already used")
	ErrDuplicateDispute             = errors.New("provider dispute already recorded")
	ErrJobNotStale                  = errors.New("only a running job past its maximum runtime can be abandoned")
)

// IsValidationError reports whether err is one of the caller-facing validation
// errors above. Anything else is treated as transient by the ingestion boundary.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var validationErrors = []error{
	ErrUnbalancedTransaction,
	ErrCurrencyMismatch,
	ErrAccountFrozen,
	ErrAccountNotFound,
	ErrAccountNotEmpty,
	ErrInsufficientBalance,
	ErrTooFewEntries,
	ErrInvalidAmount,
	ErrInvalidEntryType,
	ErrTransactionNotFound,
	ErrAlreadyReversed,
	ErrInvalidTransactionTransition,
	ErrInvalidPayoutTransition,
	ErrInvalidPayoutDestination,
	ErrPayoutNotFound,
	ErrInvalidDisputeTransition,
	ErrDisputeNotFound,
	ErrInvalidDispute,
	ErrInvalidEvent,
	ErrInvalidPeriod,
}
