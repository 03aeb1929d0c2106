package usecase_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

func TestPayoutUseCase_SettlementScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc, _ := f.fund(t, "provider-a", 10000, "BDT")

	p, err := f.payouts.RequestPayout(ctx, usecase.PayoutRequest{
		ProviderID:  "provider-a",
		AmountMinor: 4000,
		Currency:    "BDT",
		Method:      domain.PayoutMethodBank,
		Destination: bankDestination(),
		RequestedBy: "provider-a",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, p.Status)
	assert.Regexp(t, regexp.MustCompile(`^PO-\d{8}-[0-9A-F]{8}$`), p.ReferenceNumber)
	assert.Equal(t, domain.Balance{AccountID: acc.ID, Currency: "BDT", Balance: 10000, Reserved: 4000, Available: 6000}, f.balance(t, acc.ID))

	p, err = f.payouts.ApprovePayout(ctx, p.ID, "ops-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusApproved, p.Status)
	assert.Equal(t, "ops-1", p.ApprovedBy)
	require.NotNil(t, p.ApprovedAt)

	p, err = f.payouts.ProcessPayout(ctx, p.ID, "ops-2")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusProcessing, p.Status)
	assert.Equal(t, int64(10000), f.balance(t, acc.ID).Balance)

	p, err = f.payouts.MarkPayoutPaid(ctx, p.ID, "BANK-REF-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPaid, p.Status)
	assert.Equal(t, "BANK-REF-1", p.ExternalTransactionID)
	assert.Equal(t, domain.Balance{AccountID: acc.ID, Currency: "BDT", Balance: 6000, Reserved: 0, Available: 6000}, f.balance(t, acc.ID))

	settlement, err := f.ledger.GetTransaction(ctx, p.SettlementTxID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypePayout, settlement.TransactionType)
	require.Len(t, settlement.Entries, 2)
	for _, e := range settlement.Entries {
		assert.Equal(t, int64(4000), e.AmountMinor)
	}
	assert.Zero(t, settlement.Entries[0].SignedAmount()+settlement.Entries[1].SignedAmount())
	f.requireLedgerHealthy(t)
}

func TestPayoutUseCase_ConcurrentRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc, _ := f.fund(t, "provider-a", 10000, "BDT")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.payouts.RequestPayout(ctx, usecase.PayoutRequest{
				ProviderID:  "provider-a",
				AmountMinor: 6000,
				Currency:    "BDT",
				Method:      domain.PayoutMethodMobile,
				Destination: domain.PayoutDestination{MobileProvider: "bkash", MobileNumber: "01700000000"},
			})
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, domain.ErrInsufficientBalance):
			insufficient++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, int64(6000), f.balance(t, acc.ID).Reserved)
	assert.Equal(t, int64(4000), f.balance(t, acc.ID).Available)
}

func TestPayoutUseCase_IllegalTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		prepare []func(f *fixture, id string) error
		attempt func(f *fixture, id string) error
		want    domain.PayoutStatus
	}{
		{
			name:    "paid straight from pending",
			attempt: func(f *fixture, id string) error { _, err := f.payouts.MarkPayoutPaid(ctx, id, "X"); return err },
			want:    domain.PayoutStatusPending,
		},
		{
			name:    "process before approval",
			attempt: func(f *fixture, id string) error { _, err := f.payouts.ProcessPayout(ctx, id, "ops"); return err },
			want:    domain.PayoutStatusPending,
		},
		{
			name:    "fail before processing",
			attempt: func(f *fixture, id string) error { _, err := f.payouts.MarkPayoutFailed(ctx, id, "x"); return err },
			want:    domain.PayoutStatusPending,
		},
		{
			name: "approve twice",
			prepare: []func(f *fixture, id string) error{
				func(f *fixture, id string) error { _, err := f.payouts.ApprovePayout(ctx, id, "ops"); return err },
			},
			attempt: func(f *fixture, id string) error { _, err := f.payouts.ApprovePayout(ctx, id, "ops"); return err },
			want:    domain.PayoutStatusApproved,
		},
		{
			name: "cancel while processing",
			prepare: []func(f *fixture, id string) error{
				func(f *fixture, id string) error { _, err := f.payouts.ApprovePayout(ctx, id, "ops"); return err },
				func(f *fixture, id string) error { _, err := f.payouts.ProcessPayout(ctx, id, "ops"); return err },
			},
			attempt: func(f *fixture, id string) error {
				_, err := f.payouts.CancelPayout(ctx, id, "changed mind")
				return err
			},
			want: domain.PayoutStatusProcessing,
		},
		{
			name: "pay a cancelled payout",
			prepare: []func(f *fixture, id string) error{
				func(f *fixture, id string) error { _, err := f.payouts.CancelPayout(ctx, id, "dup"); return err },
			},
			attempt: func(f *fixture, id string) error { _, err := f.payouts.MarkPayoutPaid(ctx, id, "X"); return err },
			want:    domain.PayoutStatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			acc, _ := f.fund(t, "provider-a", 10000, "BDT")
			p, err := f.payouts.RequestPayout(ctx, usecase.PayoutRequest{
				ProviderID: "provider-a", AmountMinor: 3000, Currency: "BDT",
				Method: domain.PayoutMethodBank, Destination: bankDestination(),
			})
			require.NoError(t, err)
			for _, step := range tt.prepare {
				require.NoError(t, step(f, p.ID))
			}
			before := f.balance(t, acc.ID)

			err = tt.attempt(f, p.ID)
			assert.ErrorIs(t, err, domain.ErrInvalidPayoutTransition)

			got, err := f.payouts.GetPayout(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, before, f.balance(t, acc.ID))
		})
	}
}

func TestPayoutUseCase_ReleasesReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc, _ := f.fund(t, "provider-a", 10000, "BDT")
	request := func() *domain.Payout {
		p, err := f.payouts.RequestPayout(ctx, usecase.PayoutRequest{
			ProviderID: "provider-a", AmountMinor: 2000, Currency: "BDT",
			Method: domain.PayoutMethodBank, Destination: bankDestination(),
		})
		require.NoError(t, err)
		return p
	}

	cancelled := request()
	_, err := f.payouts.ApprovePayout(ctx, cancelled.ID, "ops")
	require.NoError(t, err)
	cancelled, err = f.payouts.CancelPayout(ctx, cancelled.ID, "provider asked")
	require.NoError(t, err)
	assert.Equal(t, "provider asked", cancelled.CancelReason)

	failed := request()
	_, err = f.payouts.ApprovePayout(ctx, failed.ID, "ops")
	require.NoError(t, err)
	_, err = f.payouts.ProcessPayout(ctx, failed.ID, "ops")
	require.NoError(t, err)
	failed, err = f.payouts.MarkPayoutFailed(ctx, failed.ID, "account closed at bank")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusFailed, failed.Status)
	assert.Empty(t, failed.SettlementTxID)

	assert.Equal(t, domain.Balance{AccountID: acc.ID, Currency: "BDT", Balance: 10000, Available: 10000}, f.balance(t, acc.ID))

	stats, err := f.payouts.Stats(ctx, "provider-a")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count[domain.PayoutStatusCancelled])
	assert.Equal(t, 1, stats.Count[domain.PayoutStatusFailed])
	assert.Equal(t, int64(2000), stats.AmountMinor[domain.PayoutStatusFailed])
	f.requireLedgerHealthy(t)
}

func TestPayoutUseCase_RequestValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc, _ := f.fund(t, "provider-a", 1000, "BDT")

	tests := []struct {
		name    string
		req     usecase.PayoutRequest
		wantErr error
	}{
		{
			name:    "bank without account number",
			req:     usecase.PayoutRequest{ProviderID: "provider-a", AmountMinor: 100, Currency: "BDT", Method: domain.PayoutMethodBank, Destination: domain.PayoutDestination{BankCode: "090"}},
			wantErr: domain.ErrInvalidPayoutDestination,
		},
		{
			name:    "mobile without number",
			req:     usecase.PayoutRequest{ProviderID: "provider-a", AmountMinor: 100, Currency: "BDT", Method: domain.PayoutMethodMobile},
			wantErr: domain.ErrInvalidPayoutDestination,
		},
		{
			name:    "negative amount",
			req:     usecase.PayoutRequest{ProviderID: "provider-a", AmountMinor: -1, Currency: "BDT", Method: domain.PayoutMethodBank, Destination: bankDestination()},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "more than available",
			req:     usecase.PayoutRequest{ProviderID: "provider-a", AmountMinor: 1001, Currency: "BDT", Method: domain.PayoutMethodBank, Destination: bankDestination()},
			wantErr: domain.ErrInsufficientBalance,
		},
		{
			name:    "no account in currency",
			req:     usecase.PayoutRequest{ProviderID: "provider-a", AmountMinor: 100, Currency: "USD", Method: domain.PayoutMethodBank, Destination: bankDestination()},
			wantErr: domain.ErrAccountNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.payouts.RequestPayout(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := f.ledger.FreezeAccount(ctx, acc.ID)
	require.NoError(t, err)
	_, err = f.payouts.RequestPayout(ctx, usecase.PayoutRequest{
		ProviderID: "provider-a", AmountMinor: 100, Currency: "BDT",
		Method: domain.PayoutMethodBank, Destination: bankDestination(),
	})
	assert.ErrorIs(t, err, domain.ErrAccountFrozen)
	assert.Equal(t, int64(0), f.balance(t, acc.ID).Reserved)
}

func TestPayoutUseCase_ListStuckPayouts(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWith(t, usecase.DisputeConfig{}, time.Millisecond)
	f.fund(t, "provider-a", 10000, "BDT")

	request := func() *domain.Payout {
		p, err := f.payouts.RequestPayout(ctx, usecase.PayoutRequest{
			ProviderID: "provider-a", AmountMinor: 1000, Currency: "BDT",
			Method: domain.PayoutMethodBank, Destination: bankDestination(),
		})
		require.NoError(t, err)
		_, err = f.payouts.ApprovePayout(ctx, p.ID, "ops")
		require.NoError(t, err)
		return p
	}

	stuck := request()
	_, err := f.payouts.ProcessPayout(ctx, stuck.ID, "ops")
	require.NoError(t, err)
	request() // approved only

	time.Sleep(10 * time.Millisecond)

	got, err := f.payouts.ListStuckPayouts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stuck.ID, got[0].ID)
}
