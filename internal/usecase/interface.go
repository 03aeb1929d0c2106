package usecase

import (
	"context"
	"time"

	"payledger/internal/domain"
)

// IntegrityReader exposes the aggregates used by the verification sweep.
//
//go:generate mockgen -destination=mocks/mock_repository.go -package=mock_usecase -source=interface.go
type IntegrityReader interface {
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	AccountEntrySums(ctx context.Context) (map[string]int64, error)
	TransactionTotals(ctx context.Context) ([]domain.TransactionTotal, error)
	OrphanedEntries(ctx context.Context) ([]domain.LedgerEntry, error)
}

// ReconciliationRepository persists reconciliation jobs and discrepancies and
// gives the matcher its view of internal transactions.
type ReconciliationRepository interface {
	// TryStartJob inserts job unless a PENDING or RUNNING job overlaps its
	// provider and period, in which case it returns ErrReconciliationInProgress.
	TryStartJob(ctx context.Context, job *domain.ReconciliationJob) error
	UpdateJob(ctx context.Context, job *domain.ReconciliationJob) error
	GetJob(ctx context.Context, id string) (*domain.ReconciliationJob, error)
	ListJobs(ctx context.Context, status domain.JobStatus) ([]domain.ReconciliationJob, error)
	InsertDiscrepancy(ctx context.Context, d *domain.Discrepancy) error
	GetDiscrepancy(ctx context.Context, id string) (*domain.Discrepancy, error)
	UpdateDiscrepancy(ctx context.Context, d *domain.Discrepancy) error
	ListDiscrepancies(ctx context.Context, jobID string) ([]domain.Discrepancy, error)
	ListProviderTransactions(ctx context.Context, provider string, start, end time.Time) ([]domain.Transaction, error)
	MarkReconciled(ctx context.Context, transactionIDs []string, at time.Time) error
}

// StatementSource supplies the provider's own records for a period.
type StatementSource interface {
	FetchStatement(ctx context.Context, provider string, start, end time.Time) ([]domain.ProviderRecord, error)
}
