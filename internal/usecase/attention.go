package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/metrics"
)

// AttentionUseCase collects stuck states for operators. Nothing it finds is
// resolved automatically.
type AttentionUseCase struct {
	payouts        *PayoutUseCase
	reconciliation *ReconciliationUseCase
	disputes       *DisputeUseCase
	log            *zap.Logger
}

// NewAttentionUseCase creates a new instance of the attention scan.
func NewAttentionUseCase(payouts *PayoutUseCase, reconciliation *ReconciliationUseCase, disputes *DisputeUseCase, log *zap.Logger) *AttentionUseCase {
	return &AttentionUseCase{payouts: payouts, reconciliation: reconciliation, disputes: disputes, log: log}
}

// Scan lists payouts stuck in PROCESSING, reconciliation jobs RUNNING past
// their maximum runtime, disputes past their evidence deadline and disputes
// whose chargeback could not be posted.
func (uc *AttentionUseCase) Scan(ctx context.Context) (*domain.AttentionReport, error) {
	stuck, err := uc.payouts.ListStuckPayouts(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list stuck payouts: %w", err)
	}
	stale, err := uc.reconciliation.ListStaleJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list stale jobs: %w", err)
	}
	overdue, err := uc.disputes.ListOverdue(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list overdue disputes: %w", err)
	}
	blocked, err := uc.disputes.ListChargebackBlocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list blocked chargebacks: %w", err)
	}

	report := &domain.AttentionReport{
		GeneratedAt:       time.Now().UTC(),
		StuckPayouts:      nonNil(stuck),
		StaleJobs:         nonNil(stale),
		OverdueDisputes:   nonNil(overdue),
		ChargebackBlocked: nonNil(blocked),
	}
	metrics.SetAttentionItems("stuck_payouts", len(report.StuckPayouts))
	metrics.SetAttentionItems("stale_jobs", len(report.StaleJobs))
	metrics.SetAttentionItems("overdue_disputes", len(report.OverdueDisputes))
	metrics.SetAttentionItems("chargeback_blocked", len(report.ChargebackBlocked))

	if report.Total() > 0 {
		uc.log.Warn("records need attention",
			zap.Int("stuck_payouts", len(report.StuckPayouts)),
			zap.Int("stale_jobs", len(report.StaleJobs)),
			zap.Int("overdue_disputes", len(report.OverdueDisputes)),
			zap.Int("chargeback_blocked", len(report.ChargebackBlocked)))
	}
	return report, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
