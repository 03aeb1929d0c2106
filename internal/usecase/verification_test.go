package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/usecase"
	mock_usecase "payledger/internal/usecase/mocks"
)

func TestVerificationUseCase_Verify(t *testing.T) {
	wallet := domain.Account{ID: "acc-wallet", AccountType: domain.AccountTypeWallet, Currency: "BDT", BalanceMinor: 1000}
	settlement := domain.Account{ID: "acc-settlement", AccountType: domain.AccountTypeExternal, Currency: "BDT", BalanceMinor: -1000}
	balanced := []domain.TransactionTotal{{TransactionID: "tx-1", Currency: "BDT", SignedSum: 0, EntryCount: 2}}

	tests := []struct {
		name      string
		accounts  []domain.Account
		sums      map[string]int64
		totals    []domain.TransactionTotal
		orphans   []domain.LedgerEntry
		assertion func(t *testing.T, report *domain.IntegrityReport)
	}{
		{
			name:     "healthy ledger",
			accounts: []domain.Account{wallet, settlement},
			sums:     map[string]int64{"acc-wallet": 1000, "acc-settlement": -1000},
			totals:   balanced,
			assertion: func(t *testing.T, report *domain.IntegrityReport) {
				assert.True(t, report.Healthy())
				assert.Equal(t, 2, report.AccountsChecked)
				assert.Equal(t, 1, report.TransactionsChecked)
				assert.NotNil(t, report.OrphanedEntries)
				assert.NotNil(t, report.BalanceDrift)
			},
		},
		{
			name:     "running balance drifted",
			accounts: []domain.Account{wallet, settlement},
			sums:     map[string]int64{"acc-wallet": 900, "acc-settlement": -1000},
			totals:   balanced,
			assertion: func(t *testing.T, report *domain.IntegrityReport) {
				require.Len(t, report.BalanceDrift, 1)
				assert.Equal(t, domain.BalanceDrift{AccountID: "acc-wallet", RunningBalance: 1000, EntrySum: 900}, report.BalanceDrift[0])
				assert.False(t, report.Healthy())
			},
		},
		{
			name:     "unbalanced transaction",
			accounts: []domain.Account{wallet, settlement},
			sums:     map[string]int64{"acc-wallet": 1000, "acc-settlement": -1000},
			totals: []domain.TransactionTotal{
				{TransactionID: "tx-1", Currency: "BDT", SignedSum: 0, EntryCount: 2},
				{TransactionID: "tx-2", Currency: "BDT", SignedSum: 50, EntryCount: 2},
				{TransactionID: "tx-2", Currency: "USD", SignedSum: 0, EntryCount: 2},
			},
			assertion: func(t *testing.T, report *domain.IntegrityReport) {
				require.Len(t, report.UnbalancedTransactions, 1)
				assert.Equal(t, "tx-2", report.UnbalancedTransactions[0].TransactionID)
				assert.Equal(t, 2, report.TransactionsChecked)
			},
		},
		{
			name: "negative availability only for wallets",
			accounts: []domain.Account{
				{ID: "acc-wallet", AccountType: domain.AccountTypeWallet, Currency: "BDT", BalanceMinor: 100, ReservedBalanceMinor: 300},
				settlement,
			},
			sums:   map[string]int64{"acc-wallet": 100, "acc-settlement": -1000},
			totals: balanced,
			assertion: func(t *testing.T, report *domain.IntegrityReport) {
				require.Len(t, report.NegativeAvailable, 1)
				assert.Equal(t, int64(-200), report.NegativeAvailable[0].Available)
				assert.Empty(t, report.BalanceDrift)
			},
		},
		{
			name:     "orphaned entry",
			accounts: []domain.Account{wallet, settlement},
			sums:     map[string]int64{"acc-wallet": 1000, "acc-settlement": -1000},
			totals:   balanced,
			orphans:  []domain.LedgerEntry{{ID: "entry-9", TransactionID: "tx-gone", AccountID: "acc-wallet"}},
			assertion: func(t *testing.T, report *domain.IntegrityReport) {
				require.Len(t, report.OrphanedEntries, 1)
				assert.Equal(t, "entry-9", report.OrphanedEntries[0].ID)
				assert.False(t, report.Healthy())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			reader := mock_usecase.NewMockIntegrityReader(ctrl)
			reader.EXPECT().ListAccounts(gomock.Any()).Return(tt.accounts, nil)
			reader.EXPECT().AccountEntrySums(gomock.Any()).Return(tt.sums, nil)
			reader.EXPECT().TransactionTotals(gomock.Any()).Return(tt.totals, nil)
			reader.EXPECT().OrphanedEntries(gomock.Any()).Return(tt.orphans, nil)

			report, err := usecase.NewVerificationUseCase(reader, zap.NewNop()).Verify(context.Background())
			require.NoError(t, err)
			tt.assertion(t, report)
		})
	}
}

func TestVerificationUseCase_ReaderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mock_usecase.NewMockIntegrityReader(ctrl)
	reader.EXPECT().ListAccounts(gomock.Any()).Return(nil, errors.New("db down"))

	_, err := usecase.NewVerificationUseCase(reader, zap.NewNop()).Verify(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestVerificationUseCase_AfterActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, payment := f.fund(t, "provider-a", 8000, "BDT")
	f.fund(t, "provider-b", 3000, "USD")
	_, err := f.ledger.ReverseTransaction(ctx, payment.ID, "duplicate capture")
	require.NoError(t, err)

	report, err := usecase.NewVerificationUseCase(f.store, zap.NewNop()).Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.Healthy())
	assert.Equal(t, 4, report.AccountsChecked)
	assert.Equal(t, 3, report.TransactionsChecked)
}
