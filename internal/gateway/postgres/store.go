// Package postgres is the PostgreSQL implementation of the ledger store.
// Account rows are locked with SELECT ... FOR UPDATE in ascending id order and
// every balance change is written in the same database transaction as the
// entries that cause it.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

var _ usecase.Store = (*Store)(nil)

const uniqueViolation = "23505"

const (
	idempotencyKeyIndex   = "transactions_idempotency_key_key"
	providerDisputeKey    = "disputes_provider_dispute_key"
	accountColumns        = `id, owner_id, owner_type, currency, account_type, status, balance_minor, reserved_balance_minor, version, created_at, updated_at`
	transactionColumns    = `id, transaction_type, status, currency, amount_minor, payment_provider, provider_transaction_id, COALESCE(idempotency_key, ''), description, COALESCE(reversal_of, ''), COALESCE(reversed_by, ''), failure_reason, reconciled_at, created_at`
	entryColumns          = `id, transaction_id, account_id, entry_type, amount_minor, currency, created_at`
	payoutColumns         = `id, reference_number, account_id, provider_id, amount_minor, currency, method, destination, status, requested_by, approved_by, processed_by, external_transaction_id, settlement_tx_id, failure_reason, cancel_reason, requested_at, approved_at, processed_at, completed_at, updated_at`
	disputeColumns        = `id, provider_dispute_id, payment_provider, transaction_id, account_id, dispute_type, reason, disputed_amount, currency, status, evidence_due_by, evidence_submitted, deadline_missed, funds_frozen, frozen_amount, funds_released_at, chargeback_tx_id, chargeback_blocked, resolved_at, created_at, updated_at`
	jobColumns            = `id, provider, period_start, period_end, status, total_provider_transactions, total_internal_transactions, matched_transactions, discrepancies_found, error_message, created_at, started_at, completed_at`
	discrepancyColumns    = `id, job_id, transaction_id, provider_transaction_id, discrepancy_type, severity, internal_amount, provider_amount, amount_difference, internal_status, provider_status, description, resolved, resolved_by, resolution_note, resolved_at, created_at`
	signedEntryAmountExpr = `CASE WHEN entry_type = 'CREDIT' THEN amount_minor ELSE -amount_minor END`
)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a connection pool and checks that the database answers.
func Connect(ctx context.Context, dsn string, maxConns int32, maxConnIdle, maxConnLife time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = min(2, maxConns)
	cfg.MaxConnIdleTime = maxConnIdle
	cfg.MaxConnLifetime = maxConnLife

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// OpenDB exposes the pool through database/sql.
func OpenDB(pool *pgxpool.Pool) *sql.DB {
	return stdlib.OpenDBFromPool(pool)
}

// Store implements usecase.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewStore creates a store on pool.
func NewStore(pool *pgxpool.Pool, log *zap.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// WithinTx runs fn inside a database transaction and commits when fn
// returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx usecase.Tx) error) error {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(newTx(dbTx)); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		s.log.Error("commit failed", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateAccount inserts account unless its natural key exists and returns the
// stored row.
func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (owner_id, owner_type, currency) DO NOTHING`,
		account.ID, account.OwnerID, account.OwnerType, account.Currency, account.AccountType, account.Status,
		account.BalanceMinor, account.ReservedBalanceMinor, account.Version, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}
	return findAccount(ctx, s.pool, domain.AccountKey{
		OwnerID:   account.OwnerID,
		OwnerType: account.OwnerType,
		Currency:  account.Currency,
	})
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return getAccount(ctx, s.pool, id)
}

func (s *Store) FindAccount(ctx context.Context, key domain.AccountKey) (*domain.Account, error) {
	return findAccount(ctx, s.pool, key)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return getTransaction(ctx, s.pool, id)
}

func (s *Store) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return findTransactionByKey(ctx, s.pool, key)
}

func (s *Store) GetPayout(ctx context.Context, id string) (*domain.Payout, error) {
	return getPayout(ctx, s.pool, id, false)
}

// ListPayouts returns payouts matching filter in request order.
func (s *Store) ListPayouts(ctx context.Context, filter domain.PayoutFilter) ([]domain.Payout, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.ProviderID != "" {
		add("provider_id = $%d", filter.ProviderID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.ProcessedBefore != nil {
		add("processed_at < $%d", *filter.ProcessedBefore)
	}

	query := `SELECT ` + payoutColumns + ` FROM payouts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY requested_at, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	return collect(rows, scanPayout)
}

func (s *Store) GetDispute(ctx context.Context, id string) (*domain.Dispute, error) {
	return getDispute(ctx, s.pool, id, false)
}

func (s *Store) FindDisputeByProviderID(ctx context.Context, provider, providerDisputeID string) (*domain.Dispute, error) {
	return findDispute(ctx, s.pool, provider, providerDisputeID)
}

// ListDisputes returns disputes in any of statuses, or all when none is given.
func (s *Store) ListDisputes(ctx context.Context, statuses ...domain.DisputeStatus) ([]domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes`
	var args []any
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		query += ` WHERE status = ANY($1)`
		args = append(args, names)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", err)
	}
	return collect(rows, scanDispute)
}

// ListAccounts returns every account in creation order.
func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return collect(rows, scanAccount)
}

// AccountEntrySums returns the signed entry total of every account that has
// entries.
func (s *Store) AccountEntrySums(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT account_id, SUM(`+signedEntryAmountExpr+`)::BIGINT
		FROM ledger_entries
		GROUP BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to sum entries: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]int64)
	for rows.Next() {
		var (
			accountID string
			sum       int64
		)
		if err := rows.Scan(&accountID, &sum); err != nil {
			return nil, err
		}
		sums[accountID] = sum
	}
	return sums, rows.Err()
}

// TransactionTotals returns the signed sum of every transaction per currency.
func (s *Store) TransactionTotals(ctx context.Context) ([]domain.TransactionTotal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT transaction_id, currency, SUM(`+signedEntryAmountExpr+`)::BIGINT, COUNT(*)
		FROM ledger_entries
		GROUP BY transaction_id, currency
		ORDER BY transaction_id, currency`)
	if err != nil {
		return nil, fmt.Errorf("failed to total transactions: %w", err)
	}
	return collect(rows, func(row pgx.Row) (*domain.TransactionTotal, error) {
		var t domain.TransactionTotal
		if err := row.Scan(&t.TransactionID, &t.Currency, &t.SignedSum, &t.EntryCount); err != nil {
			return nil, err
		}
		return &t, nil
	})
}

// OrphanedEntries returns entries whose account or transaction is missing.
func (s *Store) OrphanedEntries(ctx context.Context) ([]domain.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.transaction_id, e.account_id, e.entry_type, e.amount_minor, e.currency, e.created_at
		FROM ledger_entries e
		LEFT JOIN accounts a ON a.id = e.account_id
		LEFT JOIN transactions t ON t.id = e.transaction_id
		WHERE a.id IS NULL OR t.id IS NULL
		ORDER BY e.created_at, e.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned entries: %w", err)
	}
	return collect(rows, scanEntry)
}

// TryStartJob inserts job unless a pending or running job of the same
// provider overlaps its period. Concurrent starts for one provider are
// serialized with a transaction-scoped advisory lock.
func (s *Store) TryStartJob(ctx context.Context, job *domain.ReconciliationJob) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "reconciliation:"+job.Provider); err != nil {
			return fmt.Errorf("failed to take reconciliation lock: %w", err)
		}

		var overlapping bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM reconciliation_jobs
				WHERE provider = $1
				  AND status IN ('PENDING', 'RUNNING')
				  AND period_start < $3
				  AND $2 < period_end
			)`, job.Provider, job.PeriodStart, job.PeriodEnd).Scan(&overlapping)
		if err != nil {
			return fmt.Errorf("failed to check running jobs: %w", err)
		}
		if overlapping {
			return domain.ErrReconciliationInProgress
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO reconciliation_jobs (`+jobColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			job.ID, job.Provider, job.PeriodStart, job.PeriodEnd, job.Status,
			job.TotalProviderTransactions, job.TotalInternalTransactions, job.MatchedTransactions, job.DiscrepanciesFound,
			job.ErrorMessage, job.CreatedAt, job.StartedAt, job.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to insert job: %w", err)
		}
		return nil
	})
}

// UpdateJob replaces the mutable fields of a job.
func (s *Store) UpdateJob(ctx context.Context, job *domain.ReconciliationJob) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reconciliation_jobs SET
			status = $2,
			total_provider_transactions = $3,
			total_internal_transactions = $4,
			matched_transactions = $5,
			discrepancies_found = $6,
			error_message = $7,
			started_at = $8,
			completed_at = $9
		WHERE id = $1`,
		job.ID, job.Status, job.TotalProviderTransactions, job.TotalInternalTransactions,
		job.MatchedTransactions, job.DiscrepanciesFound, job.ErrorMessage, job.StartedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.ReconciliationJob, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM reconciliation_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	return job, err
}

// ListJobs returns jobs in status, or all jobs when status is empty.
func (s *Store) ListJobs(ctx context.Context, status domain.JobStatus) ([]domain.ReconciliationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM reconciliation_jobs`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	rows, err := s.pool.Query(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return collect(rows, scanJob)
}

func (s *Store) InsertDiscrepancy(ctx context.Context, d *domain.Discrepancy) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reconciliation_discrepancies (`+discrepancyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		d.ID, d.JobID, d.TransactionID, d.ProviderTransactionID, d.DiscrepancyType, d.Severity,
		d.InternalAmount, d.ProviderAmount, d.AmountDifference, d.InternalStatus, d.ProviderStatus,
		d.Description, d.Resolved, d.ResolvedBy, d.ResolutionNote, d.ResolvedAt, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert discrepancy: %w", err)
	}
	return nil
}

func (s *Store) GetDiscrepancy(ctx context.Context, id string) (*domain.Discrepancy, error) {
	d, err := scanDiscrepancy(s.pool.QueryRow(ctx,
		`SELECT `+discrepancyColumns+` FROM reconciliation_discrepancies WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDiscrepancyNotFound
	}
	return d, err
}

// UpdateDiscrepancy stores the resolution fields of a discrepancy.
func (s *Store) UpdateDiscrepancy(ctx context.Context, d *domain.Discrepancy) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reconciliation_discrepancies SET
			resolved = $2,
			resolved_by = $3,
			resolution_note = $4,
			resolved_at = $5
		WHERE id = $1`,
		d.ID, d.Resolved, d.ResolvedBy, d.ResolutionNote, d.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to update discrepancy %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDiscrepancyNotFound
	}
	return nil
}

// ListDiscrepancies returns the discrepancies of a job, or all when jobID is empty.
func (s *Store) ListDiscrepancies(ctx context.Context, jobID string) ([]domain.Discrepancy, error) {
	query := `SELECT ` + discrepancyColumns + ` FROM reconciliation_discrepancies`
	var args []any
	if jobID != "" {
		query += ` WHERE job_id = $1`
		args = append(args, jobID)
	}
	rows, err := s.pool.Query(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list discrepancies: %w", err)
	}
	return collect(rows, scanDiscrepancy)
}

// ListProviderTransactions returns the provider-originated transactions
// created in [start, end). Compensating reversals are not provider records.
func (s *Store) ListProviderTransactions(ctx context.Context, provider string, start, end time.Time) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE payment_provider = $1
		  AND provider_transaction_id <> ''
		  AND reversal_of IS NULL
		  AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, id`, provider, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider transactions: %w", err)
	}
	txns, err := collect(rows, scanTransaction)
	if err != nil {
		return nil, err
	}
	if err := attachEntries(ctx, s.pool, txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// MarkReconciled sets reconciled_at on the given transactions.
func (s *Store) MarkReconciled(ctx context.Context, transactionIDs []string, at time.Time) error {
	if len(transactionIDs) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `UPDATE transactions SET reconciled_at = $2 WHERE id = ANY($1)`, transactionIDs, at); err != nil {
		return fmt.Errorf("failed to mark transactions reconciled: %w", err)
	}
	return nil
}

func getAccount(ctx context.Context, q querier, id string) (*domain.Account, error) {
	acc, err := scanAccount(q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	return acc, err
}

func findAccount(ctx context.Context, q querier, key domain.AccountKey) (*domain.Account, error) {
	acc, err := scanAccount(q.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE owner_id = $1 AND owner_type = $2 AND currency = $3`,
		key.OwnerID, key.OwnerType, key.Currency))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	return acc, err
}

func getTransaction(ctx context.Context, q querier, id string) (*domain.Transaction, error) {
	return loadTransaction(ctx, q, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func findTransactionByKey(ctx context.Context, q querier, key string) (*domain.Transaction, error) {
	return loadTransaction(ctx, q, `SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1`, key)
}

func loadTransaction(ctx context.Context, q querier, query string, arg string) (*domain.Transaction, error) {
	txn, err := scanTransaction(q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE transaction_id = $1 ORDER BY position`, txn.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries of %s: %w", txn.ID, err)
	}
	if txn.Entries, err = collect(rows, scanEntry); err != nil {
		return nil, err
	}
	return txn, nil
}

// attachEntries loads the entries of txns with a single query.
func attachEntries(ctx context.Context, q querier, txns []domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	ids := make([]string, len(txns))
	index := make(map[string]int, len(txns))
	for i := range txns {
		ids[i] = txns[i].ID
		index[txns[i].ID] = i
	}
	rows, err := q.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE transaction_id = ANY($1)
		ORDER BY transaction_id, position`, ids)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}
	entries, err := collect(rows, scanEntry)
	if err != nil {
		return err
	}
	for _, e := range entries {
		i := index[e.TransactionID]
		txns[i].Entries = append(txns[i].Entries, e)
	}
	return nil
}

func getPayout(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	p, err := scanPayout(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPayoutNotFound
	}
	return p, err
}

func getDispute(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	d, err := scanDispute(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDisputeNotFound
	}
	return d, err
}

func findDispute(ctx context.Context, q querier, provider, providerDisputeID string) (*domain.Dispute, error) {
	d, err := scanDispute(q.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE payment_provider = $1 AND provider_dispute_id = $2`, provider, providerDisputeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDisputeNotFound
	}
	return d, err
}

// uniqueConstraint returns the name of the violated unique constraint or
// index, if err is a unique violation.
func uniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.OwnerType, &a.Currency, &a.AccountType, &a.Status,
		&a.BalanceMinor, &a.ReservedBalanceMinor, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.TransactionType, &t.Status, &t.Currency, &t.AmountMinor, &t.PaymentProvider,
		&t.ProviderTransactionID, &t.IdempotencyKey, &t.Description, &t.ReversalOf, &t.ReversedBy,
		&t.FailureReason, &t.ReconciledAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	if err := row.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.EntryType, &e.AmountMinor, &e.Currency, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var p domain.Payout
	err := row.Scan(&p.ID, &p.ReferenceNumber, &p.AccountID, &p.ProviderID, &p.AmountMinor, &p.Currency,
		&p.Method, &p.Destination, &p.Status, &p.RequestedBy, &p.ApprovedBy, &p.ProcessedBy,
		&p.ExternalTransactionID, &p.SettlementTxID, &p.FailureReason, &p.CancelReason,
		&p.RequestedAt, &p.ApprovedAt, &p.ProcessedAt, &p.CompletedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanDispute(row pgx.Row) (*domain.Dispute, error) {
	var d domain.Dispute
	err := row.Scan(&d.ID, &d.ProviderDisputeID, &d.PaymentProvider, &d.TransactionID, &d.AccountID,
		&d.DisputeType, &d.Reason, &d.DisputedAmount, &d.Currency, &d.Status, &d.EvidenceDueBy,
		&d.EvidenceSubmitted, &d.DeadlineMissed, &d.FundsFrozen, &d.FrozenAmount, &d.FundsReleasedAt,
		&d.ChargebackTxID, &d.ChargebackBlocked, &d.ResolvedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanJob(row pgx.Row) (*domain.ReconciliationJob, error) {
	var j domain.ReconciliationJob
	err := row.Scan(&j.ID, &j.Provider, &j.PeriodStart, &j.PeriodEnd, &j.Status,
		&j.TotalProviderTransactions, &j.TotalInternalTransactions, &j.MatchedTransactions, &j.DiscrepanciesFound,
		&j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func scanDiscrepancy(row pgx.Row) (*domain.Discrepancy, error) {
	var d domain.Discrepancy
	err := row.Scan(&d.ID, &d.JobID, &d.TransactionID, &d.ProviderTransactionID, &d.DiscrepancyType, &d.Severity,
		&d.InternalAmount, &d.ProviderAmount, &d.AmountDifference, &d.InternalStatus, &d.ProviderStatus,
		&d.Description, &d.Resolved, &d.ResolvedBy, &d.ResolutionNote, &d.ResolvedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
