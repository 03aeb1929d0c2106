package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/metrics"
)

// ReconciliationConfig holds the matcher settings.
type ReconciliationConfig struct {
	AmountEpsilonMinor int64
	Thresholds         domain.SeverityThresholds
	MaxRuntime         time.Duration
	FetchRetries       uint64
	FetchBackoff       time.Duration
}

// ReconciliationUseCase orchestrates the reconciliation process.
type ReconciliationUseCase struct {
	repo   ReconciliationRepository
	source StatementSource
	log    *zap.Logger
	cfg    ReconciliationConfig
	now    func() time.Time
}

// NewReconciliationUseCase creates a new instance of the usecase.
func NewReconciliationUseCase(repo ReconciliationRepository, source StatementSource, log *zap.Logger, cfg ReconciliationConfig) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		repo:   repo,
		source: source,
		log:    log,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RunReconciliation matches the provider's statement for [start, end) against
// the internal transactions of the same provider and period. A failure after
// the job started leaves the job FAILED with the discrepancies persisted so
// far; the job is returned together with the error.
func (uc *ReconciliationUseCase) RunReconciliation(ctx context.Context, provider string, start, end time.Time) (*domain.ReconciliationJob, error) {
	if !end.After(start) {
		return nil, domain.ErrInvalidPeriod
	}

	job := &domain.ReconciliationJob{
		ID:          uuid.NewString(),
		Provider:    provider,
		PeriodStart: start,
		PeriodEnd:   end,
		Status:      domain.JobStatusPending,
		CreatedAt:   uc.now(),
	}
	if err := uc.repo.TryStartJob(ctx, job); err != nil {
		return nil, fmt.Errorf("could not start reconciliation: %w", err)
	}

	startedAt := uc.now()
	job.Status = domain.JobStatusRunning
	job.StartedAt = &startedAt
	if err := uc.repo.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("could not mark job running: %w", err)
	}

	runCtx := ctx
	if uc.cfg.MaxRuntime > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, uc.cfg.MaxRuntime)
		defer cancel()
	}

	matchErr := uc.match(runCtx, job)

	completedAt := uc.now()
	job.CompletedAt = &completedAt
	if matchErr != nil {
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = matchErr.Error()
	} else {
		job.Status = domain.JobStatusCompleted
	}
	// the run context may already be cancelled; the final status must still land
	if err := uc.repo.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		return job, errors.Join(matchErr, fmt.Errorf("could not record job status: %w", err))
	}
	metrics.RecordReconciliationRun(provider, string(job.Status), completedAt.Sub(startedAt).Seconds())

	if matchErr != nil {
		uc.log.Error("reconciliation failed",
			zap.String("job_id", job.ID),
			zap.String("provider", provider),
			zap.Int("discrepancies_persisted", job.DiscrepanciesFound),
			zap.Error(matchErr))
		return job, fmt.Errorf("reconciliation %s failed: %w", job.ID, matchErr)
	}
	uc.log.Info("reconciliation completed",
		zap.String("job_id", job.ID),
		zap.String("provider", provider),
		zap.Int("provider_transactions", job.TotalProviderTransactions),
		zap.Int("internal_transactions", job.TotalInternalTransactions),
		zap.Int("matched", job.MatchedTransactions),
		zap.Int("discrepancies", job.DiscrepanciesFound))
	return job, nil
}

// match performs the main reconciliation logic.
func (uc *ReconciliationUseCase) match(ctx context.Context, job *domain.ReconciliationJob) error {
	// Step 1: Data Ingestion
	records, err := uc.fetchStatement(ctx, job.Provider, job.PeriodStart, job.PeriodEnd)
	if err != nil {
		return fmt.Errorf("could not fetch provider statement: %w", err)
	}
	internal, err := uc.repo.ListProviderTransactions(ctx, job.Provider, job.PeriodStart, job.PeriodEnd)
	if err != nil {
		return fmt.Errorf("could not get internal transactions: %w", err)
	}

	// Step 2: Timeframe Filtering
	records = filterRecordsByPeriod(records, job.PeriodStart, job.PeriodEnd)
	job.TotalProviderTransactions = len(records)
	job.TotalInternalTransactions = len(internal)

	groups, order := groupByProviderID(internal)

	// Step 3: Matching by provider transaction id
	matchedGroups := make(map[string]bool, len(groups))
	seenProvider := make(map[string]bool, len(records))
	var clean []string
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		if seenProvider[rec.ProviderTransactionID] {
			if err := uc.record(ctx, job, domain.Discrepancy{
				ProviderTransactionID: rec.ProviderTransactionID,
				DiscrepancyType:       domain.DiscrepancyMissingInternal,
				ProviderAmount:        rec.AmountMinor,
				AmountDifference:      rec.AmountMinor,
				ProviderStatus:        string(rec.Status),
				Description:           "duplicate provider record",
			}); err != nil {
				return err
			}
			continue
		}
		seenProvider[rec.ProviderTransactionID] = true

		g, ok := groups[rec.ProviderTransactionID]
		if !ok {
			if err := uc.record(ctx, job, domain.Discrepancy{
				ProviderTransactionID: rec.ProviderTransactionID,
				DiscrepancyType:       domain.DiscrepancyMissingInternal,
				ProviderAmount:        rec.AmountMinor,
				AmountDifference:      rec.AmountMinor,
				ProviderStatus:        string(rec.Status),
				Description:           "provider transaction has no internal record",
			}); err != nil {
				return err
			}
			continue
		}

		matchedGroups[rec.ProviderTransactionID] = true
		job.MatchedTransactions++
		found, err := uc.processMatch(ctx, job, g.primary, g.status(), rec)
		if err != nil {
			return err
		}
		if !found {
			clean = append(clean, g.members()...)
		}
	}

	// Step 4: Collate Unmatched Transactions
	for _, ptid := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		g := groups[ptid]
		if !matchedGroups[ptid] {
			if err := uc.record(ctx, job, domain.Discrepancy{
				TransactionID:         g.primary.ID,
				ProviderTransactionID: ptid,
				DiscrepancyType:       domain.DiscrepancyMissingProvider,
				InternalAmount:        g.primary.AmountMinor,
				AmountDifference:      -g.primary.AmountMinor,
				InternalStatus:        string(g.status()),
				Description:           "internal transaction missing from provider statement",
			}); err != nil {
				return err
			}
		}
		for _, dup := range g.duplicates {
			if err := uc.record(ctx, job, domain.Discrepancy{
				TransactionID:         dup.ID,
				ProviderTransactionID: ptid,
				DiscrepancyType:       domain.DiscrepancyMissingProvider,
				InternalAmount:        dup.AmountMinor,
				AmountDifference:      -dup.AmountMinor,
				InternalStatus:        string(effectiveStatus(dup)),
				Description:           "duplicate internal record for provider transaction",
			}); err != nil {
				return err
			}
		}
	}

	if len(clean) > 0 {
		if err := uc.repo.MarkReconciled(ctx, clean, uc.now()); err != nil {
			return fmt.Errorf("could not mark transactions reconciled: %w", err)
		}
	}
	return nil
}

// processMatch handles a matched pair and records a discrepancy for each
// disagreement. It reports whether any was found.
func (uc *ReconciliationUseCase) processMatch(ctx context.Context, job *domain.ReconciliationJob, txn *domain.Transaction, internalStatus domain.ProviderStatus, rec domain.ProviderRecord) (bool, error) {
	base := domain.Discrepancy{
		TransactionID:         txn.ID,
		ProviderTransactionID: rec.ProviderTransactionID,
		InternalAmount:        txn.AmountMinor,
		ProviderAmount:        rec.AmountMinor,
		InternalStatus:        string(internalStatus),
		ProviderStatus:        string(rec.Status),
	}
	found := false

	diff := rec.AmountMinor - txn.AmountMinor
	switch {
	case domain.NormalizeCurrency(rec.Currency) != txn.Currency:
		d := base
		d.DiscrepancyType = domain.DiscrepancyAmountMismatch
		d.AmountDifference = diff
		d.Description = fmt.Sprintf("currency differs: internal %s, provider %s", txn.Currency, rec.Currency)
		if err := uc.record(ctx, job, d); err != nil {
			return found, err
		}
		found = true
	case abs(diff) > uc.cfg.AmountEpsilonMinor:
		d := base
		d.DiscrepancyType = domain.DiscrepancyAmountMismatch
		d.AmountDifference = diff
		d.Description = fmt.Sprintf("amount differs by %d", diff)
		if err := uc.record(ctx, job, d); err != nil {
			return found, err
		}
		found = true
	}

	if internalStatus != rec.Status {
		d := base
		d.DiscrepancyType = domain.DiscrepancyStatusMismatch
		d.AmountDifference = diff
		d.Description = fmt.Sprintf("status differs: internal %s, provider %s", internalStatus, rec.Status)
		if err := uc.record(ctx, job, d); err != nil {
			return found, err
		}
		found = true
	}
	return found, nil
}

// record classifies and persists a discrepancy immediately, so that a later
// failure keeps what was already found.
func (uc *ReconciliationUseCase) record(ctx context.Context, job *domain.ReconciliationJob, d domain.Discrepancy) error {
	d.ID = uuid.NewString()
	d.JobID = job.ID
	d.Severity = domain.ClassifySeverity(d.DiscrepancyType, d.AmountDifference, uc.cfg.Thresholds)
	d.CreatedAt = uc.now()
	if err := uc.repo.InsertDiscrepancy(ctx, &d); err != nil {
		return fmt.Errorf("could not persist discrepancy: %w", err)
	}
	job.DiscrepanciesFound++
	metrics.RecordDiscrepancy(string(d.DiscrepancyType), string(d.Severity))
	return nil
}

// fetchStatement retries transient fetch errors with exponential backoff. It
// runs before any internal data is touched and never under a lock.
func (uc *ReconciliationUseCase) fetchStatement(ctx context.Context, provider string, start, end time.Time) ([]domain.ProviderRecord, error) {
	b := backoff.NewExponentialBackOff()
	if uc.cfg.FetchBackoff > 0 {
		b.InitialInterval = uc.cfg.FetchBackoff
	}
	b.MaxElapsedTime = 0

	var records []domain.ProviderRecord
	op := func() error {
		var err error
		records, err = uc.source.FetchStatement(ctx, provider, start, end)
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		uc.log.Warn("statement fetch failed, retrying",
			zap.String("provider", provider),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, uc.cfg.FetchRetries), ctx), notify)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetJob returns a reconciliation job by id.
func (uc *ReconciliationUseCase) GetJob(ctx context.Context, id string) (*domain.ReconciliationJob, error) {
	return uc.repo.GetJob(ctx, id)
}

// ListJobs returns jobs in status, or all jobs when status is empty.
func (uc *ReconciliationUseCase) ListJobs(ctx context.Context, status domain.JobStatus) ([]domain.ReconciliationJob, error) {
	return uc.repo.ListJobs(ctx, status)
}

// ListDiscrepancies returns the discrepancies recorded by a job.
func (uc *ReconciliationUseCase) ListDiscrepancies(ctx context.Context, jobID string) ([]domain.Discrepancy, error) {
	return uc.repo.ListDiscrepancies(ctx, jobID)
}

// ResolveDiscrepancy records an operator's resolution. Resolving twice keeps
// the first resolution.
func (uc *ReconciliationUseCase) ResolveDiscrepancy(ctx context.Context, id, resolvedBy, note string) (*domain.Discrepancy, error) {
	d, err := uc.repo.GetDiscrepancy(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Resolved {
		return d, nil
	}
	now := uc.now()
	d.Resolved = true
	d.ResolvedBy = resolvedBy
	d.ResolutionNote = note
	d.ResolvedAt = &now
	if err := uc.repo.UpdateDiscrepancy(ctx, d); err != nil {
		return nil, fmt.Errorf("could not resolve discrepancy: %w", err)
	}
	uc.log.Info("discrepancy resolved", zap.String("discrepancy_id", d.ID), zap.String("resolved_by", resolvedBy))
	return d, nil
}

// ListStaleJobs returns RUNNING jobs that started longer than the configured
// maximum runtime ago.
func (uc *ReconciliationUseCase) ListStaleJobs(ctx context.Context) ([]domain.ReconciliationJob, error) {
	running, err := uc.repo.ListJobs(ctx, domain.JobStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("could not list running jobs: %w", err)
	}
	if uc.cfg.MaxRuntime <= 0 {
		return nil, nil
	}
	cutoff := uc.now().Add(-uc.cfg.MaxRuntime)
	var stale []domain.ReconciliationJob
	for _, job := range running {
		if job.StartedAt != nil && job.StartedAt.Before(cutoff) {
			stale = append(stale, job)
		}
	}
	return stale, nil
}

// AbandonJob closes a stale RUNNING job as FAILED so that its period can be
// reconciled again. Jobs still inside their maximum runtime are refused; with
// no maximum runtime configured any RUNNING job may be abandoned.
func (uc *ReconciliationUseCase) AbandonJob(ctx context.Context, id, abandonedBy, reason string) (*domain.ReconciliationJob, error) {
	job, err := uc.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusRunning {
		return nil, fmt.Errorf("job %s is %s: %w", job.ID, job.Status, domain.ErrJobNotStale)
	}
	now := uc.now()
	if uc.cfg.MaxRuntime > 0 && (job.StartedAt == nil || !job.StartedAt.Before(now.Add(-uc.cfg.MaxRuntime))) {
		return nil, fmt.Errorf("job %s started less than %s ago: %w", job.ID, uc.cfg.MaxRuntime, domain.ErrJobNotStale)
	}

	job.Status = domain.JobStatusFailed
	job.CompletedAt = &now
	job.ErrorMessage = fmt.Sprintf("abandoned by %s: %s", abandonedBy, reason)
	if err := uc.repo.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("could not abandon job: %w", err)
	}
	metrics.RecordJobAbandoned(job.Provider)
	uc.log.Warn("reconciliation job abandoned",
		zap.String("job_id", job.ID),
		zap.String("provider", job.Provider),
		zap.String("abandoned_by", abandonedBy),
		zap.String("reason", reason))
	return job, nil
}

// effectiveStatus maps an internal transaction onto the provider status
// vocabulary. A reversed payment reads as refunded.
func effectiveStatus(txn *domain.Transaction) domain.ProviderStatus {
	switch {
	case txn.Status == domain.TransactionStatusFailed:
		return domain.ProviderStatusFailed
	case txn.IsReversed():
		return domain.ProviderStatusRefunded
	case txn.Status == domain.TransactionStatusPending:
		return domain.ProviderStatusPending
	default:
		return domain.ProviderStatusCompleted
	}
}

// providerGroup holds the internal transactions that share one provider
// transaction id. Refunds settle against the primary transaction; further
// non-refund transactions are duplicates.
type providerGroup struct {
	primary    *domain.Transaction
	refunds    []*domain.Transaction
	duplicates []*domain.Transaction
}

// groupByProviderID groups internal transactions by provider transaction id
// and returns the ids in first-seen order.
func groupByProviderID(internal []domain.Transaction) (map[string]*providerGroup, []string) {
	groups := make(map[string]*providerGroup, len(internal))
	var order []string
	for i := range internal {
		txn := &internal[i]
		g, ok := groups[txn.ProviderTransactionID]
		if !ok {
			g = &providerGroup{}
			groups[txn.ProviderTransactionID] = g
			order = append(order, txn.ProviderTransactionID)
		}
		switch {
		case txn.TransactionType == domain.TransactionTypeRefund:
			g.refunds = append(g.refunds, txn)
		case g.primary == nil:
			g.primary = txn
		default:
			g.duplicates = append(g.duplicates, txn)
		}
	}
	// a refund whose payment fell in an earlier period stands alone
	for _, g := range groups {
		if g.primary == nil {
			g.primary, g.refunds = g.refunds[0], g.refunds[1:]
		}
	}
	return groups, order
}

// status is the provider-facing status of the group. A completed payment
// whose completed refunds cover its amount reads as refunded.
func (g *providerGroup) status() domain.ProviderStatus {
	st := effectiveStatus(g.primary)
	if st != domain.ProviderStatusCompleted {
		return st
	}
	if g.primary.TransactionType == domain.TransactionTypeRefund {
		return domain.ProviderStatusRefunded
	}
	var refunded int64
	for _, r := range g.refunds {
		if effectiveStatus(r) == domain.ProviderStatusCompleted {
			refunded += r.AmountMinor
		}
	}
	if refunded > 0 && refunded >= g.primary.AmountMinor {
		return domain.ProviderStatusRefunded
	}
	return st
}

// members are the ids reconciled together when the group matches cleanly.
func (g *providerGroup) members() []string {
	ids := []string{g.primary.ID}
	for _, r := range g.refunds {
		ids = append(ids, r.ID)
	}
	return ids
}

func filterRecordsByPeriod(records []domain.ProviderRecord, start, end time.Time) []domain.ProviderRecord {
	filtered := make([]domain.ProviderRecord, 0, len(records))
	for _, rec := range records {
		// undated lines are trusted to belong to the requested period
		if rec.OccurredAt.IsZero() || (!rec.OccurredAt.Before(start) && rec.OccurredAt.Before(end)) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
