package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

func TestAttentionUseCase_Scan(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stuck", func(t *testing.T) {
		f := newFixture(t)
		f.fund(t, "provider-a", 1000, "BDT")
		recon := usecase.NewReconciliationUseCase(f.store, staticSource{}, zap.NewNop(), testReconciliationConfig())

		report, err := usecase.NewAttentionUseCase(f.payouts, recon, f.disputes, zap.NewNop()).Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Total())
		assert.NotNil(t, report.StuckPayouts)
		assert.NotNil(t, report.StaleJobs)
		assert.NotNil(t, report.OverdueDisputes)
		assert.NotNil(t, report.ChargebackBlocked)
	})

	t.Run("stuck records are listed", func(t *testing.T) {
		f := newFixtureWith(t, usecase.DisputeConfig{}, time.Millisecond)
		_, payment := f.fund(t, "provider-a", 10000, "BDT")

		p, err := f.payouts.RequestPayout(ctx, usecase.PayoutRequest{
			ProviderID: "provider-a", AmountMinor: 1000, Currency: "BDT",
			Method: domain.PayoutMethodBank, Destination: bankDestination(),
		})
		require.NoError(t, err)
		_, err = f.payouts.ApprovePayout(ctx, p.ID, "ops-1")
		require.NoError(t, err)
		_, err = f.payouts.ProcessPayout(ctx, p.ID, "ops-1")
		require.NoError(t, err)

		past := time.Now().Add(-time.Hour)
		d := openDispute(t, f, payment, 500, false, &past)

		startedAt := time.Now().Add(-3 * time.Hour)
		periodStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, f.store.TryStartJob(ctx, &domain.ReconciliationJob{
			ID: "job-stuck", Provider: testProvider, PeriodStart: periodStart, PeriodEnd: periodStart.AddDate(0, 0, 1),
			Status: domain.JobStatusRunning, StartedAt: &startedAt,
		}))
		cfg := testReconciliationConfig()
		cfg.MaxRuntime = time.Hour
		recon := usecase.NewReconciliationUseCase(f.store, staticSource{}, zap.NewNop(), cfg)

		time.Sleep(10 * time.Millisecond)
		report, err := usecase.NewAttentionUseCase(f.payouts, recon, f.disputes, zap.NewNop()).Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Total())
		require.Len(t, report.StuckPayouts, 1)
		assert.Equal(t, p.ID, report.StuckPayouts[0].ID)
		require.Len(t, report.StaleJobs, 1)
		assert.Equal(t, "job-stuck", report.StaleJobs[0].ID)
		require.Len(t, report.OverdueDisputes, 1)
		assert.Equal(t, d.ID, report.OverdueDisputes[0].ID)
	})
	t.Run("blocked chargebacks are listed", func(t *testing.T) {
		f := newFixture(t)
		_, payment := f.fund(t, "provider-a", 1000, "BDT")
		d := openDispute(t, f, payment, 1000, false, nil)
		_, err := f.payouts.RequestPayout(ctx, usecase.PayoutRequest{
			ProviderID: "provider-a", AmountMinor: 1000, Currency: "BDT",
			Method: domain.PayoutMethodBank, Destination: bankDestination(),
		})
		require.NoError(t, err)
		_, err = f.disputes.AcceptDispute(ctx, d.ID)
		require.ErrorIs(t, err, domain.ErrInsufficientBalance)

		recon := usecase.NewReconciliationUseCase(f.store, staticSource{}, zap.NewNop(), testReconciliationConfig())
		report, err := usecase.NewAttentionUseCase(f.payouts, recon, f.disputes, zap.NewNop()).Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Total())
		require.Len(t, report.ChargebackBlocked, 1)
		assert.Equal(t, d.ID, report.ChargebackBlocked[0].ID)
	})
}
