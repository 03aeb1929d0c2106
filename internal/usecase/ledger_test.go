package usecase_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

func TestLedgerUseCase_PostTransaction_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, _ := f.fund(t, "provider-a", 5000, "BDT")
	b, err := f.ledger.EnsureAccount(ctx, "provider-b", domain.OwnerTypeProvider, "BDT", domain.AccountTypeWallet)
	require.NoError(t, err)
	usd, err := f.ledger.EnsureAccount(ctx, "provider-b", domain.OwnerTypeProvider, "USD", domain.AccountTypeWallet)
	require.NoError(t, err)
	frozen, _ := f.fund(t, "provider-frozen", 1000, "BDT")
	_, err = f.ledger.FreezeAccount(ctx, frozen.ID)
	require.NoError(t, err)

	entry := func(id string, typ domain.EntryType, amount int64, currency string) usecase.EntryRequest {
		return usecase.EntryRequest{AccountID: id, EntryType: typ, AmountMinor: amount, Currency: currency}
	}

	tests := []struct {
		name    string
		entries []usecase.EntryRequest
		wantErr error
	}{
		{
			name:    "single entry",
			entries: []usecase.EntryRequest{entry(a.ID, domain.EntryTypeDebit, 100, "BDT")},
			wantErr: domain.ErrTooFewEntries,
		},
		{
			name: "unbalanced",
			entries: []usecase.EntryRequest{
				entry(a.ID, domain.EntryTypeDebit, 100, "BDT"),
				entry(b.ID, domain.EntryTypeCredit, 99, "BDT"),
			},
			wantErr: domain.ErrUnbalancedTransaction,
		},
		{
			name: "entries in two currencies",
			entries: []usecase.EntryRequest{
				entry(a.ID, domain.EntryTypeDebit, 100, "BDT"),
				entry(usd.ID, domain.EntryTypeCredit, 100, "USD"),
			},
			wantErr: domain.ErrCurrencyMismatch,
		},
		{
			name: "entry currency differs from account",
			entries: []usecase.EntryRequest{
				entry(a.ID, domain.EntryTypeDebit, 100, "BDT"),
				entry(usd.ID, domain.EntryTypeCredit, 100, "BDT"),
			},
			wantErr: domain.ErrCurrencyMismatch,
		},
		{
			name: "zero amount",
			entries: []usecase.EntryRequest{
				entry(a.ID, domain.EntryTypeDebit, 0, "BDT"),
				entry(b.ID, domain.EntryTypeCredit, 0, "BDT"),
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "unknown entry type",
			entries: []usecase.EntryRequest{
				entry(a.ID, domain.EntryType("SIDEWAYS"), 100, "BDT"),
				entry(b.ID, domain.EntryTypeCredit, 100, "BDT"),
			},
			wantErr: domain.ErrInvalidEntryType,
		},
		{
			name: "frozen account",
			entries: []usecase.EntryRequest{
				entry(frozen.ID, domain.EntryTypeDebit, 100, "BDT"),
				entry(b.ID, domain.EntryTypeCredit, 100, "BDT"),
			},
			wantErr: domain.ErrAccountFrozen,
		},
		{
			name: "wallet would go negative",
			entries: []usecase.EntryRequest{
				entry(a.ID, domain.EntryTypeDebit, 5001, "BDT"),
				entry(b.ID, domain.EntryTypeCredit, 5001, "BDT"),
			},
			wantErr: domain.ErrInsufficientBalance,
		},
		{
			name: "unknown account",
			entries: []usecase.EntryRequest{
				entry("missing", domain.EntryTypeDebit, 100, "BDT"),
				entry(b.ID, domain.EntryTypeCredit, 100, "BDT"),
			},
			wantErr: domain.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.PostTransaction(ctx, usecase.PostTransactionRequest{
				TransactionType: domain.TransactionTypeAdjustment,
				Entries:         tt.entries,
			})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, domain.IsValidationError(err))
		})
	}

	// nothing above may have moved money
	assert.Equal(t, int64(5000), f.balance(t, a.ID).Balance)
	assert.Equal(t, int64(0), f.balance(t, b.ID).Balance)
	assert.Equal(t, int64(1000), f.balance(t, frozen.ID).Balance)
	f.requireLedgerHealthy(t)
}

func TestLedgerUseCase_PostTransaction_UpdatesBalances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, _ := f.fund(t, "provider-a", 10000, "BDT")
	b, err := f.ledger.EnsureAccount(ctx, "provider-b", domain.OwnerTypeProvider, "bdt", domain.AccountTypeWallet)
	require.NoError(t, err)
	assert.Equal(t, "BDT", b.Currency)

	txn, err := f.ledger.PostTransaction(ctx, usecase.PostTransactionRequest{
		TransactionType: domain.TransactionTypeAdjustment,
		Entries: []usecase.EntryRequest{
			{AccountID: a.ID, EntryType: domain.EntryTypeDebit, AmountMinor: 2500, Currency: "BDT"},
			{AccountID: b.ID, EntryType: domain.EntryTypeCredit, AmountMinor: 2500, Currency: "BDT"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, int64(2500), txn.AmountMinor)
	require.Len(t, txn.Entries, 2)

	var sum int64
	for _, e := range txn.Entries {
		sum += e.SignedAmount()
		assert.Equal(t, txn.ID, e.TransactionID)
	}
	assert.Zero(t, sum)

	assert.Equal(t, domain.Balance{AccountID: a.ID, Currency: "BDT", Balance: 7500, Available: 7500}, f.balance(t, a.ID))
	assert.Equal(t, domain.Balance{AccountID: b.ID, Currency: "BDT", Balance: 2500, Available: 2500}, f.balance(t, b.ID))
	f.requireLedgerHealthy(t)
}

func TestLedgerUseCase_EnsureAccount_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.ledger.EnsureAccount(ctx, "user-1", domain.OwnerTypeUser, "USD", domain.AccountTypeWallet)
	require.NoError(t, err)
	second, err := f.ledger.EnsureAccount(ctx, "user-1", domain.OwnerTypeUser, " usd ", domain.AccountTypeWallet)
	require.NoError(t, err)
	other, err := f.ledger.EnsureAccount(ctx, "user-1", domain.OwnerTypeUser, "EUR", domain.AccountTypeWallet)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, domain.AccountStatusActive, first.Status)
}

func TestLedgerUseCase_PostTransaction_IdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, _ := f.fund(t, "provider-a", 1000, "BDT")
	b, err := f.ledger.EnsureAccount(ctx, "provider-b", domain.OwnerTypeProvider, "BDT", domain.AccountTypeWallet)
	require.NoError(t, err)

	req := usecase.PostTransactionRequest{
		TransactionType: domain.TransactionTypeFee,
		IdempotencyKey:  "fee:2025-01",
		Entries: []usecase.EntryRequest{
			{AccountID: a.ID, EntryType: domain.EntryTypeDebit, AmountMinor: 100, Currency: "BDT"},
			{AccountID: b.ID, EntryType: domain.EntryTypeCredit, AmountMinor: 100, Currency: "BDT"},
		},
	}
	first, err := f.ledger.PostTransaction(ctx, req)
	require.NoError(t, err)
	second, err := f.ledger.PostTransaction(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(900), f.balance(t, a.ID).Balance)
	assert.Equal(t, int64(100), f.balance(t, b.ID).Balance)
}

func TestLedgerUseCase_ReverseTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, payment := f.fund(t, "provider-a", 3000, "BDT")

	reversal, err := f.ledger.ReverseTransaction(ctx, payment.ID, "captured twice")
	require.NoError(t, err)
	assert.Equal(t, payment.ID, reversal.ReversalOf)
	require.Len(t, reversal.Entries, len(payment.Entries))
	for i, e := range reversal.Entries {
		assert.Equal(t, payment.Entries[i].AccountID, e.AccountID)
		assert.Equal(t, payment.Entries[i].AmountMinor, e.AmountMinor)
		assert.Equal(t, payment.Entries[i].EntryType.Opposite(), e.EntryType)
	}
	assert.Equal(t, int64(0), f.balance(t, a.ID).Balance)

	original, err := f.ledger.GetTransaction(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, reversal.ID, original.ReversedBy)
	assert.Equal(t, payment.Entries, original.Entries)

	_, err = f.ledger.ReverseTransaction(ctx, payment.ID, "again")
	assert.ErrorIs(t, err, domain.ErrAlreadyReversed)
	assert.Equal(t, int64(0), f.balance(t, a.ID).Balance)
	f.requireLedgerHealthy(t)
}

func TestLedgerUseCase_ReverseTransaction_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, payment := f.fund(t, "provider-a", 3000, "BDT")

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.ReverseTransaction(ctx, payment.ID, "duplicate")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyReversed)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(0), f.balance(t, a.ID).Balance)
}

func TestLedgerUseCase_PendingTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, _ := f.fund(t, "provider-a", 1000, "BDT")
	b, err := f.ledger.EnsureAccount(ctx, "provider-b", domain.OwnerTypeProvider, "BDT", domain.AccountTypeWallet)
	require.NoError(t, err)

	post := func() *domain.Transaction {
		txn, err := f.ledger.PostTransaction(ctx, usecase.PostTransactionRequest{
			TransactionType: domain.TransactionTypeAdjustment,
			Status:          domain.TransactionStatusPending,
			Entries: []usecase.EntryRequest{
				{AccountID: a.ID, EntryType: domain.EntryTypeDebit, AmountMinor: 400, Currency: "BDT"},
				{AccountID: b.ID, EntryType: domain.EntryTypeCredit, AmountMinor: 400, Currency: "BDT"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStatusPending, txn.Status)
		return txn
	}

	completed, err := f.ledger.CompleteTransaction(ctx, post().ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, completed.Status)
	_, err = f.ledger.FailTransaction(ctx, completed.ID, "late failure")
	assert.ErrorIs(t, err, domain.ErrInvalidTransactionTransition)

	failed, err := f.ledger.FailTransaction(ctx, post().ID, "provider declined")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, failed.Status)
	assert.True(t, failed.IsReversed())
	_, err = f.ledger.CompleteTransaction(ctx, failed.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransactionTransition)

	// one completed posting of 400; the failed one nets out
	assert.Equal(t, int64(600), f.balance(t, a.ID).Balance)
	assert.Equal(t, int64(400), f.balance(t, b.ID).Balance)
	f.requireLedgerHealthy(t)
}

func TestLedgerUseCase_AccountLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, _ := f.fund(t, "provider-a", 1000, "BDT")
	empty, err := f.ledger.EnsureAccount(ctx, "provider-empty", domain.OwnerTypeProvider, "BDT", domain.AccountTypeWallet)
	require.NoError(t, err)

	_, err = f.ledger.CloseAccount(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotEmpty)

	frozen, err := f.ledger.FreezeAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusFrozen, frozen.Status)
	active, err := f.ledger.UnfreezeAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusActive, active.Status)

	closed, err := f.ledger.CloseAccount(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusClosed, closed.Status)
	_, err = f.ledger.UnfreezeAccount(ctx, empty.ID)
	assert.ErrorIs(t, err, domain.ErrAccountFrozen)

	// closed accounts stay readable
	b, err := f.ledger.GetAccountBalance(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Balance)
}

func TestLedgerUseCase_ConcurrentPostingsAcrossAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, _ := f.fund(t, "provider-a", 100000, "BDT")
	b, _ := f.fund(t, "provider-b", 100000, "BDT")

	move := func(from, to string) error {
		_, err := f.ledger.PostTransaction(ctx, usecase.PostTransactionRequest{
			TransactionType: domain.TransactionTypeAdjustment,
			Entries: []usecase.EntryRequest{
				{AccountID: from, EntryType: domain.EntryTypeDebit, AmountMinor: 10, Currency: "BDT"},
				{AccountID: to, EntryType: domain.EntryTypeCredit, AmountMinor: 10, Currency: "BDT"},
			},
		})
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, move(a.ID, b.ID))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, move(b.ID, a.ID))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100000), f.balance(t, a.ID).Balance)
	assert.Equal(t, int64(100000), f.balance(t, b.ID).Balance)
	f.requireLedgerHealthy(t)
}
