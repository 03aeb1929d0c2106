package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/metrics"
)

// Owner ids of the platform accounts the core posts against.
const (
	PayoutClearingOwner     = "platform:payout-clearing"
	FeeRevenueOwner         = "platform:fees"
	ChargebackClearingOwner = "platform:chargebacks"
)

// SettlementOwner is the owner id of the external account that mirrors funds
// held by a payment provider.
func SettlementOwner(provider string) string {
	return "settlement:" + provider
}

// EntryRequest is one leg of a posting.
type EntryRequest struct {
	AccountID   string           `json:"account_id"`
	EntryType   domain.EntryType `json:"entry_type"`
	AmountMinor int64            `json:"amount_minor"`
	Currency    string           `json:"currency"`
}

// PostTransactionRequest describes a business event to record.
type PostTransactionRequest struct {
	TransactionType       domain.TransactionType   `json:"transaction_type"`
	Status                domain.TransactionStatus `json:"status,omitempty"`
	PaymentProvider       string                   `json:"payment_provider,omitempty"`
	ProviderTransactionID string                   `json:"provider_transaction_id,omitempty"`
	IdempotencyKey        string                   `json:"idempotency_key,omitempty"`
	Description           string                   `json:"description,omitempty"`
	Entries               []EntryRequest           `json:"entries"`

	reversalOf  string
	allowFrozen bool
}

// LedgerUseCase is the double-entry posting engine.
type LedgerUseCase struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

// NewLedgerUseCase creates a new instance of the ledger engine.
func NewLedgerUseCase(store Store, log *zap.Logger) *LedgerUseCase {
	return &LedgerUseCase{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureAccount returns the account of (owner, ownerType, currency), creating
// it on first reference.
func (uc *LedgerUseCase) EnsureAccount(ctx context.Context, ownerID string, ownerType domain.OwnerType, currency string, accountType domain.AccountType) (*domain.Account, error) {
	key := domain.AccountKey{OwnerID: ownerID, OwnerType: ownerType, Currency: domain.NormalizeCurrency(currency)}
	if key.OwnerID == "" || key.Currency == "" {
		return nil, fmt.Errorf("owner and currency are required: %w", domain.ErrAccountNotFound)
	}

	acc, err := uc.store.FindAccount(ctx, key)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("could not look up account: %w", err)
	}

	now := uc.now()
	acc, err = uc.store.CreateAccount(ctx, &domain.Account{
		ID:          uuid.NewString(),
		OwnerID:     key.OwnerID,
		OwnerType:   key.OwnerType,
		Currency:    key.Currency,
		AccountType: accountType,
		Status:      domain.AccountStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create account: %w", err)
	}
	uc.log.Info("account created",
		zap.String("account_id", acc.ID),
		zap.String("owner_id", acc.OwnerID),
		zap.String("owner_type", string(acc.OwnerType)),
		zap.String("currency", acc.Currency))
	return acc, nil
}

// PlatformAccount returns a platform-owned account for the given purpose.
func (uc *LedgerUseCase) PlatformAccount(ctx context.Context, ownerID, currency string, accountType domain.AccountType) (*domain.Account, error) {
	return uc.EnsureAccount(ctx, ownerID, domain.OwnerTypePlatform, currency, accountType)
}

// GetAccountBalance returns balance, reservations and availability of an account.
func (uc *LedgerUseCase) GetAccountBalance(ctx context.Context, accountID string) (domain.Balance, error) {
	acc, err := uc.store.GetAccount(ctx, accountID)
	if err != nil {
		return domain.Balance{}, err
	}
	return domain.BalanceOf(acc), nil
}

// GetTransaction returns a transaction with its entries.
func (uc *LedgerUseCase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return uc.store.GetTransaction(ctx, id)
}

// FindByIdempotencyKey returns the transaction recorded under key.
func (uc *LedgerUseCase) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return uc.store.FindTransactionByIdempotencyKey(ctx, key)
}

// PostTransaction validates and records a balanced set of entries. The
// transaction row, its entries and the balance updates are committed together.
// A request whose idempotency key was already used returns the earlier
// transaction.
func (uc *LedgerUseCase) PostTransaction(ctx context.Context, req PostTransactionRequest) (*domain.Transaction, error) {
	if err := validatePosting(&req); err != nil {
		metrics.RecordPostingRejected(rejectionReason(err))
		return nil, err
	}

	var posted *domain.Transaction
	err := uc.store.WithinTx(ctx, func(tx Tx) error {
		if req.IdempotencyKey != "" {
			existing, err := tx.FindTransactionByIdempotencyKey(ctx, req.IdempotencyKey)
			if err == nil {
				posted = existing
				return nil
			}
			if !errors.Is(err, domain.ErrTransactionNotFound) {
				return err
			}
		}

		accounts, err := tx.LockAccounts(ctx, entryAccountIDs(req.Entries)...)
		if err != nil {
			return err
		}
		posted, err = uc.postLocked(ctx, tx, accounts, req)
		return err
	})
	if errors.Is(err, domain.ErrDuplicateTransaction) && req.IdempotencyKey != "" {
		// lost a race with a concurrent delivery of the same event
		return uc.store.FindTransactionByIdempotencyKey(ctx, req.IdempotencyKey)
	}
	if err != nil {
		metrics.RecordPostingRejected(rejectionReason(err))
		return nil, err
	}
	return posted, nil
}

// ReverseTransaction posts the exact negation of a completed transaction
// against the same accounts. The original is never modified except for the
// ReversedBy marker; a second reversal returns ErrAlreadyReversed.
func (uc *LedgerUseCase) ReverseTransaction(ctx context.Context, originalTxID, reason string) (*domain.Transaction, error) {
	var reversal *domain.Transaction
	err := uc.store.WithinTx(ctx, func(tx Tx) error {
		orig, err := tx.GetTransaction(ctx, originalTxID)
		if err != nil {
			return err
		}
		accounts, err := tx.LockAccounts(ctx, transactionAccountIDs(orig)...)
		if err != nil {
			return err
		}
		// re-read under the account locks so concurrent reversals serialize
		orig, err = tx.GetTransaction(ctx, originalTxID)
		if err != nil {
			return err
		}
		if orig.IsReversed() {
			return fmt.Errorf("transaction %s reversed by %s: %w", orig.ID, orig.ReversedBy, domain.ErrAlreadyReversed)
		}
		if orig.Status != domain.TransactionStatusCompleted {
			return fmt.Errorf("cannot reverse %s transaction %s: %w", orig.Status, orig.ID, domain.ErrInvalidTransactionTransition)
		}

		reversal, err = uc.reverseLocked(ctx, tx, accounts, orig, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info("transaction reversed",
		zap.String("transaction_id", originalTxID),
		zap.String("reversal_id", reversal.ID),
		zap.String("reason", reason))
	return reversal, nil
}

// CompleteTransaction moves a PENDING transaction to COMPLETED.
func (uc *LedgerUseCase) CompleteTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := uc.store.WithinTx(ctx, func(tx Tx) error {
		txn, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.LockAccounts(ctx, transactionAccountIDs(txn)...); err != nil {
			return err
		}
		if txn, err = tx.GetTransaction(ctx, id); err != nil {
			return err
		}
		if !txn.Status.CanTransitionTo(domain.TransactionStatusCompleted) {
			return fmt.Errorf("transaction %s is %s: %w", txn.ID, txn.Status, domain.ErrInvalidTransactionTransition)
		}
		txn.Status = domain.TransactionStatusCompleted
		out = txn
		return tx.UpdateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FailTransaction moves a PENDING transaction to FAILED and posts the
// compensating entries, so the failed event leaves no net effect on balances.
func (uc *LedgerUseCase) FailTransaction(ctx context.Context, id, reason string) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := uc.store.WithinTx(ctx, func(tx Tx) error {
		txn, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		accounts, err := tx.LockAccounts(ctx, transactionAccountIDs(txn)...)
		if err != nil {
			return err
		}
		if txn, err = tx.GetTransaction(ctx, id); err != nil {
			return err
		}
		if !txn.Status.CanTransitionTo(domain.TransactionStatusFailed) {
			return fmt.Errorf("transaction %s is %s: %w", txn.ID, txn.Status, domain.ErrInvalidTransactionTransition)
		}

		txn.Status = domain.TransactionStatusFailed
		txn.FailureReason = reason
		if _, err := uc.reverseLocked(ctx, tx, accounts, txn, "failed: "+reason); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Warn("transaction failed", zap.String("transaction_id", id), zap.String("reason", reason))
	return out, nil
}

// FreezeAccount blocks new postings against an account.
func (uc *LedgerUseCase) FreezeAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return uc.setAccountStatus(ctx, accountID, domain.AccountStatusFrozen)
}

// UnfreezeAccount re-activates a frozen account.
func (uc *LedgerUseCase) UnfreezeAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return uc.setAccountStatus(ctx, accountID, domain.AccountStatusActive)
}

// CloseAccount closes an empty account. Accounts are never deleted.
func (uc *LedgerUseCase) CloseAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return uc.setAccountStatus(ctx, accountID, domain.AccountStatusClosed)
}

func (uc *LedgerUseCase) setAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus) (*domain.Account, error) {
	var out *domain.Account
	err := uc.store.WithinTx(ctx, func(tx Tx) error {
		accounts, err := tx.LockAccounts(ctx, accountID)
		if err != nil {
			return err
		}
		acc := accounts[accountID]
		if acc.Status == domain.AccountStatusClosed {
			return fmt.Errorf("account %s is closed: %w", acc.ID, domain.ErrAccountFrozen)
		}
		if status == domain.AccountStatusClosed && (acc.BalanceMinor != 0 || acc.ReservedBalanceMinor != 0) {
			return fmt.Errorf("account %s: %w", acc.ID, domain.ErrAccountNotEmpty)
		}
		acc.Status = status
		acc.UpdatedAt = uc.now()
		out = acc
		return tx.UpdateAccount(ctx, acc)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info("account status changed", zap.String("account_id", accountID), zap.String("status", string(status)))
	return out, nil
}

// postLocked records req against accounts already locked by the caller.
// Balance changes are applied to the locked copies so that callers sharing the
// unit of work see them.
func (uc *LedgerUseCase) postLocked(ctx context.Context, tx Tx, accounts map[string]*domain.Account, req PostTransactionRequest) (*domain.Transaction, error) {
	if err := validatePosting(&req); err != nil {
		return nil, err
	}

	deltas := make(map[string]int64, len(req.Entries))
	for _, e := range req.Entries {
		acc, ok := accounts[e.AccountID]
		if !ok {
			return nil, fmt.Errorf("account %s: %w", e.AccountID, domain.ErrAccountNotFound)
		}
		if acc.Status == domain.AccountStatusClosed || (acc.Status == domain.AccountStatusFrozen && !req.allowFrozen) {
			return nil, fmt.Errorf("account %s is %s: %w", acc.ID, acc.Status, domain.ErrAccountFrozen)
		}
		if acc.Currency != e.Currency {
			return nil, fmt.Errorf("entry in %s against %s account %s: %w", e.Currency, acc.Currency, acc.ID, domain.ErrCurrencyMismatch)
		}
		deltas[acc.ID] += domain.SignedAmount(e.EntryType, e.AmountMinor)
	}

	for id, delta := range deltas {
		acc := accounts[id]
		if delta >= 0 || acc.AccountType.AllowsOverdraft() {
			continue
		}
		if acc.AvailableMinor()+delta < 0 {
			return nil, fmt.Errorf("account %s has %d available, posting needs %d: %w",
				acc.ID, acc.AvailableMinor(), -delta, domain.ErrInsufficientBalance)
		}
	}

	now := uc.now()
	status := req.Status
	if status == "" {
		status = domain.TransactionStatusCompleted
	}
	txn := &domain.Transaction{
		ID:                    uuid.NewString(),
		TransactionType:       req.TransactionType,
		Status:                status,
		Currency:              req.Entries[0].Currency,
		PaymentProvider:       req.PaymentProvider,
		ProviderTransactionID: req.ProviderTransactionID,
		IdempotencyKey:        req.IdempotencyKey,
		Description:           req.Description,
		ReversalOf:            req.reversalOf,
		CreatedAt:             now,
		Entries:               make([]domain.LedgerEntry, 0, len(req.Entries)),
	}
	for _, e := range req.Entries {
		if e.EntryType == domain.EntryTypeCredit {
			txn.AmountMinor += e.AmountMinor
		}
		txn.Entries = append(txn.Entries, domain.LedgerEntry{
			ID:            uuid.NewString(),
			TransactionID: txn.ID,
			AccountID:     e.AccountID,
			EntryType:     e.EntryType,
			AmountMinor:   e.AmountMinor,
			Currency:      e.Currency,
			CreatedAt:     now,
		})
	}

	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		acc := accounts[id]
		acc.BalanceMinor += deltas[id]
		acc.UpdatedAt = now
		if err := tx.UpdateAccount(ctx, acc); err != nil {
			return nil, err
		}
	}

	metrics.RecordTransactionPosted(string(txn.TransactionType))
	uc.log.Debug("transaction posted",
		zap.String("transaction_id", txn.ID),
		zap.String("type", string(txn.TransactionType)),
		zap.Int64("amount_minor", txn.AmountMinor),
		zap.String("currency", txn.Currency))
	return txn, nil
}

// reverseLocked posts the negation of orig and marks orig as reversed.
func (uc *LedgerUseCase) reverseLocked(ctx context.Context, tx Tx, accounts map[string]*domain.Account, orig *domain.Transaction, reason string) (*domain.Transaction, error) {
	req := PostTransactionRequest{
		TransactionType: domain.TransactionTypeAdjustment,
		PaymentProvider: orig.PaymentProvider,
		Description:     fmt.Sprintf("reversal of %s: %s", orig.ID, reason),
		Entries:         make([]EntryRequest, 0, len(orig.Entries)),
		reversalOf:      orig.ID,
		allowFrozen:     true,
	}
	for _, e := range orig.Entries {
		req.Entries = append(req.Entries, EntryRequest{
			AccountID:   e.AccountID,
			EntryType:   e.EntryType.Opposite(),
			AmountMinor: e.AmountMinor,
			Currency:    e.Currency,
		})
	}

	reversal, err := uc.postLocked(ctx, tx, accounts, req)
	if err != nil {
		return nil, err
	}
	orig.ReversedBy = reversal.ID
	if err := tx.UpdateTransaction(ctx, orig); err != nil {
		return nil, err
	}
	return reversal, nil
}

func validatePosting(req *PostTransactionRequest) error {
	if len(req.Entries) < 2 {
		return domain.ErrTooFewEntries
	}
	if req.TransactionType == "" {
		req.TransactionType = domain.TransactionTypeAdjustment
	}
	if req.Status != "" && req.Status != domain.TransactionStatusPending && req.Status != domain.TransactionStatusCompleted {
		return fmt.Errorf("new transactions start as PENDING or COMPLETED: %w", domain.ErrInvalidTransactionTransition)
	}

	currency := domain.NormalizeCurrency(req.Entries[0].Currency)
	var sum int64
	for i := range req.Entries {
		e := &req.Entries[i]
		e.Currency = domain.NormalizeCurrency(e.Currency)
		if !e.EntryType.Valid() {
			return domain.ErrInvalidEntryType
		}
		if e.AmountMinor <= 0 {
			return domain.ErrInvalidAmount
		}
		if e.Currency != currency {
			return fmt.Errorf("entries in %s and %s: %w", currency, e.Currency, domain.ErrCurrencyMismatch)
		}
		sum += domain.SignedAmount(e.EntryType, e.AmountMinor)
	}
	if sum != 0 {
		return fmt.Errorf("entries sum to %d: %w", sum, domain.ErrUnbalancedTransaction)
	}
	return nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnbalancedTransaction):
		return "unbalanced"
	case errors.Is(err, domain.ErrCurrencyMismatch):
		return "currency_mismatch"
	case errors.Is(err, domain.ErrAccountFrozen):
		return "account_frozen"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case domain.IsValidationError(err):
		return "invalid"
	default:
		return "error"
	}
}

func entryAccountIDs(entries []EntryRequest) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.AccountID)
	}
	return ids
}

func transactionAccountIDs(txn *domain.Transaction) []string {
	ids := make([]string, 0, len(txn.Entries))
	for _, e := range txn.Entries {
		ids = append(ids, e.AccountID)
	}
	return ids
}

// holdFunds is the shared "check available, then reserve" primitive used by
// payouts and dispute freezes. acc must be locked by the caller.
func holdFunds(acc *domain.Account, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if acc.AvailableMinor() < amount {
		return fmt.Errorf("account %s has %d available, hold needs %d: %w",
			acc.ID, acc.AvailableMinor(), amount, domain.ErrInsufficientBalance)
	}
	acc.ReservedBalanceMinor += amount
	return nil
}

// releaseFunds returns a hold to the available balance.
func releaseFunds(acc *domain.Account, amount int64) error {
	if amount < 0 || amount > acc.ReservedBalanceMinor {
		return fmt.Errorf("account %s: cannot release %d of %d reserved", acc.ID, amount, acc.ReservedBalanceMinor)
	}
	acc.ReservedBalanceMinor -= amount
	return nil
}
