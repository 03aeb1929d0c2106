package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/gateway/memory"
	"payledger/internal/usecase"
)

const testProvider = "bkash"

type fixture struct {
	store    *memory.Store
	ledger   *usecase.LedgerUseCase
	payouts  *usecase.PayoutUseCase
	disputes *usecase.DisputeUseCase
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, usecase.DisputeConfig{}, time.Hour)
}

func newFixtureWith(t *testing.T, disputeCfg usecase.DisputeConfig, processingTimeout time.Duration) *fixture {
	t.Helper()
	store := memory.NewStore()
	log := zap.NewNop()
	ledger := usecase.NewLedgerUseCase(store, log)
	return &fixture{
		store:    store,
		ledger:   ledger,
		payouts:  usecase.NewPayoutUseCase(store, ledger, log, processingTimeout),
		disputes: usecase.NewDisputeUseCase(store, ledger, log, disputeCfg),
	}
}

// fund credits a provider wallet from the provider settlement account and
// returns the payment transaction.
func (f *fixture) fund(t *testing.T, owner string, amount int64, currency string) (*domain.Account, *domain.Transaction) {
	t.Helper()
	ctx := context.Background()
	acc, err := f.ledger.EnsureAccount(ctx, owner, domain.OwnerTypeProvider, currency, domain.AccountTypeWallet)
	require.NoError(t, err)
	settlement, err := f.ledger.PlatformAccount(ctx, usecase.SettlementOwner(testProvider), currency, domain.AccountTypeExternal)
	require.NoError(t, err)

	ptid := "PT-" + uuid.NewString()[:8]
	txn, err := f.ledger.PostTransaction(ctx, usecase.PostTransactionRequest{
		TransactionType:       domain.TransactionTypePayment,
		PaymentProvider:       testProvider,
		ProviderTransactionID: ptid,
		IdempotencyKey:        usecase.IdempotencyKey(testProvider, domain.TransactionTypePayment, ptid),
		Entries: []usecase.EntryRequest{
			{AccountID: settlement.ID, EntryType: domain.EntryTypeDebit, AmountMinor: amount, Currency: currency},
			{AccountID: acc.ID, EntryType: domain.EntryTypeCredit, AmountMinor: amount, Currency: currency},
		},
	})
	require.NoError(t, err)
	return acc, txn
}

func (f *fixture) balance(t *testing.T, accountID string) domain.Balance {
	t.Helper()
	b, err := f.ledger.GetAccountBalance(context.Background(), accountID)
	require.NoError(t, err)
	return b
}

// requireLedgerHealthy runs the verification sweep over the fixture store.
func (f *fixture) requireLedgerHealthy(t *testing.T) {
	t.Helper()
	report, err := usecase.NewVerificationUseCase(f.store, zap.NewNop()).Verify(context.Background())
	require.NoError(t, err)
	require.True(t, report.Healthy(), "integrity report: %+v", report)
}

func bankDestination() domain.PayoutDestination {
	return domain.PayoutDestination{
		BankName:          "Dutch-Bangla Bank",
		BankCode:          "090",
		AccountNumber:     "1234567890",
		AccountHolderName: "Rahim Store",
	}
}
