package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/metrics"
)

// VerificationUseCase runs the ledger integrity sweep. It only reports; it
// never corrects what it finds.
type VerificationUseCase struct {
	reader IntegrityReader
	log    *zap.Logger
	now    func() time.Time
}

// NewVerificationUseCase creates a new instance of the verification sweep.
func NewVerificationUseCase(reader IntegrityReader, log *zap.Logger) *VerificationUseCase {
	return &VerificationUseCase{reader: reader, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Verify checks that every transaction balances, that no entry is orphaned,
// that each running balance equals the sum of its entries and that no
// non-overdraft account has negative availability.
func (uc *VerificationUseCase) Verify(ctx context.Context) (*domain.IntegrityReport, error) {
	accounts, err := uc.reader.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list accounts: %w", err)
	}
	sums, err := uc.reader.AccountEntrySums(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not sum entries: %w", err)
	}
	totals, err := uc.reader.TransactionTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not total transactions: %w", err)
	}
	orphans, err := uc.reader.OrphanedEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not find orphaned entries: %w", err)
	}

	report := &domain.IntegrityReport{
		CheckedAt:              uc.now(),
		AccountsChecked:        len(accounts),
		UnbalancedTransactions: []domain.TransactionTotal{},
		OrphanedEntries:        orphans,
		BalanceDrift:           []domain.BalanceDrift{},
		NegativeAvailable:      []domain.Balance{},
	}
	if report.OrphanedEntries == nil {
		report.OrphanedEntries = []domain.LedgerEntry{}
	}

	seen := make(map[string]bool, len(totals))
	for _, t := range totals {
		seen[t.TransactionID] = true
		if t.SignedSum != 0 {
			report.UnbalancedTransactions = append(report.UnbalancedTransactions, t)
		}
	}
	report.TransactionsChecked = len(seen)

	for i := range accounts {
		acc := &accounts[i]
		if sum := sums[acc.ID]; sum != acc.BalanceMinor {
			report.BalanceDrift = append(report.BalanceDrift, domain.BalanceDrift{
				AccountID:      acc.ID,
				RunningBalance: acc.BalanceMinor,
				EntrySum:       sum,
			})
		}
		if !acc.AccountType.AllowsOverdraft() && acc.AvailableMinor() < 0 {
			report.NegativeAvailable = append(report.NegativeAvailable, domain.BalanceOf(acc))
		}
	}
	sort.Slice(report.BalanceDrift, func(i, j int) bool {
		return report.BalanceDrift[i].AccountID < report.BalanceDrift[j].AccountID
	})

	metrics.SetIntegrityAnomalies("unbalanced_transactions", len(report.UnbalancedTransactions))
	metrics.SetIntegrityAnomalies("orphaned_entries", len(report.OrphanedEntries))
	metrics.SetIntegrityAnomalies("balance_drift", len(report.BalanceDrift))
	metrics.SetIntegrityAnomalies("negative_available", len(report.NegativeAvailable))

	if !report.Healthy() {
		uc.log.Warn("ledger integrity anomalies found",
			zap.Int("unbalanced_transactions", len(report.UnbalancedTransactions)),
			zap.Int("orphaned_entries", len(report.OrphanedEntries)),
			zap.Int("balance_drift", len(report.BalanceDrift)),
			zap.Int("negative_available", len(report.NegativeAvailable)))
	} else {
		uc.log.Info("ledger verified",
			zap.Int("accounts", report.AccountsChecked),
			zap.Int("transactions", report.TransactionsChecked))
	}
	return report, nil
}
