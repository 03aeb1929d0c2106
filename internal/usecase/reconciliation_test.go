package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/usecase"
	mock_usecase "payledger/internal/usecase/mocks"
)

var testThresholds = domain.SeverityThresholds{MediumValueMinor: 10000, HighValueMinor: 1000000}

func testReconciliationConfig() usecase.ReconciliationConfig {
	return usecase.ReconciliationConfig{
		AmountEpsilonMinor: 0,
		Thresholds:         testThresholds,
		MaxRuntime:         time.Minute,
		FetchBackoff:       time.Millisecond,
	}
}

func TestReconciliationUseCase_RunReconciliation(t *testing.T) {
	baseTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	start := baseTime
	end := baseTime.AddDate(0, 0, 7) // 7 days later

	completed := func(id, ptid string, amount int64) domain.Transaction {
		return domain.Transaction{
			ID:                    id,
			TransactionType:       domain.TransactionTypePayment,
			Status:                domain.TransactionStatusCompleted,
			Currency:              "BDT",
			AmountMinor:           amount,
			PaymentProvider:       testProvider,
			ProviderTransactionID: ptid,
			CreatedAt:             baseTime.AddDate(0, 0, 1),
		}
	}
	record := func(ptid string, amount int64, status domain.ProviderStatus) domain.ProviderRecord {
		return domain.ProviderRecord{
			ProviderTransactionID: ptid,
			AmountMinor:           amount,
			Currency:              "BDT",
			Status:                status,
			OccurredAt:            baseTime.AddDate(0, 0, 1),
		}
	}
	reversed := completed("TX-4", "PT-4", 500)
	reversed.ReversedBy = "TX-REV"
	refund := func(id, ptid string, amount int64) domain.Transaction {
		txn := completed(id, ptid, amount)
		txn.TransactionType = domain.TransactionTypeRefund
		return txn
	}

	tests := []struct {
		name             string
		internal         []domain.Transaction
		statement        []domain.ProviderRecord
		wantDiscrepancy  []domain.Discrepancy
		wantReconciled   []string
		wantMatched      int
		wantProviderRows int
	}{
		{
			name:     "identical datasets",
			internal: []domain.Transaction{completed("TX-1", "PT-1", 1000), completed("TX-2", "PT-2", 2500)},
			statement: []domain.ProviderRecord{
				record("PT-2", 2500, domain.ProviderStatusCompleted),
				record("PT-1", 1000, domain.ProviderStatusCompleted),
			},
			wantReconciled:   []string{"TX-2", "TX-1"},
			wantMatched:      2,
			wantProviderRows: 2,
		},
		{
			name:     "one provider-only record",
			internal: []domain.Transaction{completed("TX-1", "PT-1", 1000)},
			statement: []domain.ProviderRecord{
				record("PT-1", 1000, domain.ProviderStatusCompleted),
				record("PT-9", 4200, domain.ProviderStatusCompleted),
			},
			wantDiscrepancy: []domain.Discrepancy{
				{ProviderTransactionID: "PT-9", DiscrepancyType: domain.DiscrepancyMissingInternal, Severity: domain.SeverityHigh, ProviderAmount: 4200, AmountDifference: 4200},
			},
			wantReconciled:   []string{"TX-1"},
			wantMatched:      1,
			wantProviderRows: 2,
		},
		{
			name: "every mismatch kind",
			internal: []domain.Transaction{
				completed("TX-1", "PT-1", 1000),
				completed("TX-2", "PT-2", 2000),
				completed("TX-3", "PT-3", 3000),
				reversed,
			},
			statement: []domain.ProviderRecord{
				record("PT-1", 1000, domain.ProviderStatusCompleted),
				record("PT-2", 2100, domain.ProviderStatusCompleted),
				record("PT-4", 500, domain.ProviderStatusCompleted),
				// outside the period; dropped before matching
				{ProviderTransactionID: "PT-OLD", AmountMinor: 1, Currency: "BDT", Status: domain.ProviderStatusCompleted, OccurredAt: baseTime.AddDate(0, 0, -1)},
			},
			wantDiscrepancy: []domain.Discrepancy{
				{TransactionID: "TX-2", ProviderTransactionID: "PT-2", DiscrepancyType: domain.DiscrepancyAmountMismatch, Severity: domain.SeverityMedium, InternalAmount: 2000, ProviderAmount: 2100, AmountDifference: 100},
				{TransactionID: "TX-4", ProviderTransactionID: "PT-4", DiscrepancyType: domain.DiscrepancyStatusMismatch, Severity: domain.SeverityMedium, InternalAmount: 500, ProviderAmount: 500},
				{TransactionID: "TX-3", ProviderTransactionID: "PT-3", DiscrepancyType: domain.DiscrepancyMissingProvider, Severity: domain.SeverityMedium, InternalAmount: 3000, AmountDifference: -3000},
			},
			wantReconciled:   []string{"TX-1"},
			wantMatched:      3,
			wantProviderRows: 3,
		},
		{
			name: "refunded payment",
			internal: []domain.Transaction{
				completed("TX-5", "PT-5", 800),
				refund("TX-6", "PT-5", 800),
			},
			statement: []domain.ProviderRecord{
				record("PT-5", 800, domain.ProviderStatusRefunded),
			},
			wantReconciled:   []string{"TX-5", "TX-6"},
			wantMatched:      1,
			wantProviderRows: 1,
		},
		{
			name: "partial refund keeps the payment completed",
			internal: []domain.Transaction{
				completed("TX-5", "PT-5", 800),
				refund("TX-6", "PT-5", 300),
			},
			statement: []domain.ProviderRecord{
				record("PT-5", 800, domain.ProviderStatusRefunded),
			},
			wantDiscrepancy: []domain.Discrepancy{
				{TransactionID: "TX-5", ProviderTransactionID: "PT-5", DiscrepancyType: domain.DiscrepancyStatusMismatch, Severity: domain.SeverityMedium, InternalAmount: 800, ProviderAmount: 800},
			},
			wantMatched:      1,
			wantProviderRows: 1,
		},
		{
			name: "refund whose payment is outside the period",
			internal: []domain.Transaction{
				refund("TX-7", "PT-7", 400),
			},
			statement: []domain.ProviderRecord{
				record("PT-7", 400, domain.ProviderStatusRefunded),
			},
			wantReconciled:   []string{"TX-7"},
			wantMatched:      1,
			wantProviderRows: 1,
		},
		{
			name: "duplicate internal payment",
			internal: []domain.Transaction{
				completed("TX-1", "PT-1", 1000),
				refund("TX-2", "PT-1", 1000),
				completed("TX-3", "PT-1", 1000),
			},
			statement: []domain.ProviderRecord{
				record("PT-1", 1000, domain.ProviderStatusRefunded),
			},
			wantDiscrepancy: []domain.Discrepancy{
				{TransactionID: "TX-3", ProviderTransactionID: "PT-1", DiscrepancyType: domain.DiscrepancyMissingProvider, Severity: domain.SeverityMedium, InternalAmount: 1000, AmountDifference: -1000},
			},
			wantReconciled:   []string{"TX-1", "TX-2"},
			wantMatched:      1,
			wantProviderRows: 1,
		},
		{
			name:     "duplicate provider lines",
			internal: []domain.Transaction{completed("TX-1", "PT-1", 1000)},
			statement: []domain.ProviderRecord{
				record("PT-1", 1000, domain.ProviderStatusCompleted),
				record("PT-1", 1000, domain.ProviderStatusCompleted),
			},
			wantDiscrepancy: []domain.Discrepancy{
				{ProviderTransactionID: "PT-1", DiscrepancyType: domain.DiscrepancyMissingInternal, Severity: domain.SeverityHigh, ProviderAmount: 1000, AmountDifference: 1000},
			},
			wantReconciled:   []string{"TX-1"},
			wantMatched:      1,
			wantProviderRows: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := mock_usecase.NewMockReconciliationRepository(ctrl)
			source := mock_usecase.NewMockStatementSource(ctrl)

			var statuses []domain.JobStatus
			var inserted []domain.Discrepancy
			repo.EXPECT().TryStartJob(gomock.Any(), gomock.Any()).Return(nil)
			repo.EXPECT().UpdateJob(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, job *domain.ReconciliationJob) error {
				statuses = append(statuses, job.Status)
				return nil
			}).Times(2)
			source.EXPECT().FetchStatement(gomock.Any(), testProvider, start, end).Return(tt.statement, nil)
			repo.EXPECT().ListProviderTransactions(gomock.Any(), testProvider, start, end).Return(tt.internal, nil)
			repo.EXPECT().InsertDiscrepancy(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d *domain.Discrepancy) error {
				inserted = append(inserted, *d)
				return nil
			}).Times(len(tt.wantDiscrepancy))
			if len(tt.wantReconciled) > 0 {
				repo.EXPECT().MarkReconciled(gomock.Any(), tt.wantReconciled, gomock.Any()).Return(nil)
			}

			uc := usecase.NewReconciliationUseCase(repo, source, zap.NewNop(), testReconciliationConfig())
			job, err := uc.RunReconciliation(context.Background(), testProvider, start, end)

			require.NoError(t, err)
			assert.Equal(t, []domain.JobStatus{domain.JobStatusRunning, domain.JobStatusCompleted}, statuses)
			assert.Equal(t, domain.JobStatusCompleted, job.Status)
			assert.Equal(t, len(tt.wantDiscrepancy), job.DiscrepanciesFound)
			assert.Equal(t, tt.wantMatched, job.MatchedTransactions)
			assert.Equal(t, tt.wantProviderRows, job.TotalProviderTransactions)
			assert.Equal(t, len(tt.internal), job.TotalInternalTransactions)
			require.NotNil(t, job.CompletedAt)

			require.Len(t, inserted, len(tt.wantDiscrepancy))
			for i, want := range tt.wantDiscrepancy {
				got := inserted[i]
				assert.Equal(t, job.ID, got.JobID)
				assert.NotEmpty(t, got.ID)
				assert.Equal(t, want.TransactionID, got.TransactionID)
				assert.Equal(t, want.ProviderTransactionID, got.ProviderTransactionID)
				assert.Equal(t, want.DiscrepancyType, got.DiscrepancyType)
				assert.Equal(t, want.Severity, got.Severity)
				assert.Equal(t, want.InternalAmount, got.InternalAmount)
				assert.Equal(t, want.ProviderAmount, got.ProviderAmount)
				assert.Equal(t, want.AmountDifference, got.AmountDifference)
			}
		})
	}
}

func TestReconciliationUseCase_RunReconciliation_Failures(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	t.Run("invalid period", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		uc := usecase.NewReconciliationUseCase(mock_usecase.NewMockReconciliationRepository(ctrl), mock_usecase.NewMockStatementSource(ctrl), zap.NewNop(), testReconciliationConfig())
		_, err := uc.RunReconciliation(context.Background(), testProvider, end, start)
		assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
	})

	t.Run("overlapping job is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock_usecase.NewMockReconciliationRepository(ctrl)
		repo.EXPECT().TryStartJob(gomock.Any(), gomock.Any()).Return(domain.ErrReconciliationInProgress)

		uc := usecase.NewReconciliationUseCase(repo, mock_usecase.NewMockStatementSource(ctrl), zap.NewNop(), testReconciliationConfig())
		job, err := uc.RunReconciliation(context.Background(), testProvider, start, end)
		assert.Nil(t, job)
		assert.ErrorIs(t, err, domain.ErrReconciliationInProgress)
	})

	t.Run("failure keeps persisted discrepancies", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock_usecase.NewMockReconciliationRepository(ctrl)
		source := mock_usecase.NewMockStatementSource(ctrl)

		var final domain.ReconciliationJob
		repo.EXPECT().TryStartJob(gomock.Any(), gomock.Any()).Return(nil)
		repo.EXPECT().UpdateJob(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, job *domain.ReconciliationJob) error {
			final = *job
			return nil
		}).Times(2)
		source.EXPECT().FetchStatement(gomock.Any(), testProvider, start, end).Return([]domain.ProviderRecord{
			{ProviderTransactionID: "PT-1", AmountMinor: 100, Currency: "BDT", Status: domain.ProviderStatusCompleted},
			{ProviderTransactionID: "PT-2", AmountMinor: 200, Currency: "BDT", Status: domain.ProviderStatusCompleted},
		}, nil)
		repo.EXPECT().ListProviderTransactions(gomock.Any(), testProvider, start, end).Return(nil, nil)
		gomock.InOrder(
			repo.EXPECT().InsertDiscrepancy(gomock.Any(), gomock.Any()).Return(nil),
			repo.EXPECT().InsertDiscrepancy(gomock.Any(), gomock.Any()).Return(errors.New("connection reset")),
		)

		uc := usecase.NewReconciliationUseCase(repo, source, zap.NewNop(), testReconciliationConfig())
		job, err := uc.RunReconciliation(context.Background(), testProvider, start, end)

		require.Error(t, err)
		require.NotNil(t, job)
		assert.Equal(t, domain.JobStatusFailed, job.Status)
		assert.Equal(t, 1, job.DiscrepanciesFound)
		assert.Contains(t, job.ErrorMessage, "connection reset")
		assert.Equal(t, domain.JobStatusFailed, final.Status)
	})

	t.Run("statement fetch is retried", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock_usecase.NewMockReconciliationRepository(ctrl)
		source := mock_usecase.NewMockStatementSource(ctrl)

		repo.EXPECT().TryStartJob(gomock.Any(), gomock.Any()).Return(nil)
		repo.EXPECT().UpdateJob(gomock.Any(), gomock.Any()).Return(nil).Times(2)
		gomock.InOrder(
			source.EXPECT().FetchStatement(gomock.Any(), testProvider, start, end).Return(nil, errors.New("503 from provider")),
			source.EXPECT().FetchStatement(gomock.Any(), testProvider, start, end).Return([]domain.ProviderRecord{}, nil),
		)
		repo.EXPECT().ListProviderTransactions(gomock.Any(), testProvider, start, end).Return(nil, nil)

		cfg := testReconciliationConfig()
		cfg.FetchRetries = 2
		uc := usecase.NewReconciliationUseCase(repo, source, zap.NewNop(), cfg)
		job, err := uc.RunReconciliation(context.Background(), testProvider, start, end)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, job.Status)
	})

	t.Run("fetch gives up after retries", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock_usecase.NewMockReconciliationRepository(ctrl)
		source := mock_usecase.NewMockStatementSource(ctrl)

		repo.EXPECT().TryStartJob(gomock.Any(), gomock.Any()).Return(nil)
		repo.EXPECT().UpdateJob(gomock.Any(), gomock.Any()).Return(nil).Times(2)
		source.EXPECT().FetchStatement(gomock.Any(), testProvider, start, end).Return(nil, errors.New("timeout")).Times(2)

		cfg := testReconciliationConfig()
		cfg.FetchRetries = 1
		uc := usecase.NewReconciliationUseCase(repo, source, zap.NewNop(), cfg)
		job, err := uc.RunReconciliation(context.Background(), testProvider, start, end)
		require.Error(t, err)
		assert.Equal(t, domain.JobStatusFailed, job.Status)
		assert.Contains(t, job.ErrorMessage, "timeout")
	})
}

func TestReconciliationUseCase_ListStaleJobs(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_usecase.NewMockReconciliationRepository(ctrl)

	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now().Add(-time.Second)
	repo.EXPECT().ListJobs(gomock.Any(), domain.JobStatusRunning).Return([]domain.ReconciliationJob{
		{ID: "job-old", Status: domain.JobStatusRunning, StartedAt: &old},
		{ID: "job-recent", Status: domain.JobStatusRunning, StartedAt: &recent},
	}, nil)

	cfg := testReconciliationConfig()
	cfg.MaxRuntime = time.Hour
	uc := usecase.NewReconciliationUseCase(repo, mock_usecase.NewMockStatementSource(ctrl), zap.NewNop(), cfg)
	stale, err := uc.ListStaleJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "job-old", stale[0].ID)
}

func TestReconciliationUseCase_ResolveDiscrepancy(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_usecase.NewMockReconciliationRepository(ctrl)

	repo.EXPECT().GetDiscrepancy(gomock.Any(), "d-1").Return(&domain.Discrepancy{ID: "d-1"}, nil)
	repo.EXPECT().UpdateDiscrepancy(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d *domain.Discrepancy) error {
		assert.True(t, d.Resolved)
		assert.Equal(t, "ops-1", d.ResolvedBy)
		return nil
	})
	repo.EXPECT().GetDiscrepancy(gomock.Any(), "d-2").Return(&domain.Discrepancy{ID: "d-2", Resolved: true, ResolvedBy: "ops-0"}, nil)

	uc := usecase.NewReconciliationUseCase(repo, mock_usecase.NewMockStatementSource(ctrl), zap.NewNop(), testReconciliationConfig())
	d, err := uc.ResolveDiscrepancy(context.Background(), "d-1", "ops-1", "provider confirmed late settlement")
	require.NoError(t, err)
	assert.NotNil(t, d.ResolvedAt)

	d, err = uc.ResolveDiscrepancy(context.Background(), "d-2", "ops-1", "again")
	require.NoError(t, err)
	assert.Equal(t, "ops-0", d.ResolvedBy)
}

// staticSource serves a fixed statement.
type staticSource []domain.ProviderRecord

func (s staticSource) FetchStatement(context.Context, string, time.Time, time.Time) ([]domain.ProviderRecord, error) {
	return s, nil
}

func TestReconciliationUseCase_AgainstLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, p1 := f.fund(t, "provider-a", 1500, "BDT")
	_, p2 := f.fund(t, "provider-b", 700, "BDT")
	acc3, p3 := f.fund(t, "provider-c", 900, "BDT")
	settlement, err := f.ledger.PlatformAccount(ctx, usecase.SettlementOwner(testProvider), "BDT", domain.AccountTypeExternal)
	require.NoError(t, err)
	r3, err := f.ledger.PostTransaction(ctx, usecase.PostTransactionRequest{
		TransactionType:       domain.TransactionTypeRefund,
		PaymentProvider:       testProvider,
		ProviderTransactionID: p3.ProviderTransactionID,
		IdempotencyKey:        usecase.IdempotencyKey(testProvider, domain.TransactionTypeRefund, p3.ProviderTransactionID),
		Entries: []usecase.EntryRequest{
			{AccountID: acc3.ID, EntryType: domain.EntryTypeDebit, AmountMinor: 900, Currency: "BDT"},
			{AccountID: settlement.ID, EntryType: domain.EntryTypeCredit, AmountMinor: 900, Currency: "BDT"},
		},
	})
	require.NoError(t, err)
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)

	statement := staticSource{
		{ProviderTransactionID: p1.ProviderTransactionID, AmountMinor: 1500, Currency: "BDT", Status: domain.ProviderStatusCompleted},
		{ProviderTransactionID: p2.ProviderTransactionID, AmountMinor: 700, Currency: "bdt", Status: domain.ProviderStatusCompleted},
		{ProviderTransactionID: p3.ProviderTransactionID, AmountMinor: 900, Currency: "BDT", Status: domain.ProviderStatusRefunded},
	}
	uc := usecase.NewReconciliationUseCase(f.store, statement, zap.NewNop(), testReconciliationConfig())

	job, err := uc.RunReconciliation(ctx, testProvider, start, end)
	require.NoError(t, err)
	assert.Equal(t, 0, job.DiscrepanciesFound)
	assert.Equal(t, 3, job.MatchedTransactions)
	assert.Equal(t, 4, job.TotalInternalTransactions)

	for _, id := range []string{p1.ID, p2.ID, p3.ID, r3.ID} {
		txn, err := f.ledger.GetTransaction(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, txn.ReconciledAt)
	}

	stored, err := uc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)

	// a finished job does not block the next run over the same period
	extra := append(statement, domain.ProviderRecord{ProviderTransactionID: "PT-ghost", AmountMinor: 999, Currency: "BDT", Status: domain.ProviderStatusCompleted})
	uc = usecase.NewReconciliationUseCase(f.store, extra, zap.NewNop(), testReconciliationConfig())
	job, err = uc.RunReconciliation(ctx, testProvider, start, end)
	require.NoError(t, err)
	require.Equal(t, 1, job.DiscrepanciesFound)

	found, err := uc.ListDiscrepancies(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, domain.DiscrepancyMissingInternal, found[0].DiscrepancyType)
	assert.Equal(t, int64(999), found[0].AmountDifference)
}

func TestReconciliationUseCase_OverlapAgainstStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	running := &domain.ReconciliationJob{
		ID: "running", Provider: testProvider, PeriodStart: start, PeriodEnd: start.AddDate(0, 0, 7),
		Status: domain.JobStatusRunning,
	}
	require.NoError(t, f.store.TryStartJob(ctx, running))

	uc := usecase.NewReconciliationUseCase(f.store, staticSource{}, zap.NewNop(), testReconciliationConfig())
	_, err := uc.RunReconciliation(ctx, testProvider, start.AddDate(0, 0, 3), start.AddDate(0, 0, 10))
	assert.ErrorIs(t, err, domain.ErrReconciliationInProgress)

	// another provider or a disjoint period may run
	_, err = uc.RunReconciliation(ctx, "nagad", start, start.AddDate(0, 0, 7))
	assert.NoError(t, err)
	_, err = uc.RunReconciliation(ctx, testProvider, start.AddDate(0, 0, 7), start.AddDate(0, 0, 8))
	assert.NoError(t, err)
}

func TestReconciliationUseCase_AbandonJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	crashedAt := time.Now().Add(-48 * time.Hour)
	require.NoError(t, f.store.TryStartJob(ctx, &domain.ReconciliationJob{
		ID: "crashed", Provider: testProvider, PeriodStart: start, PeriodEnd: end,
		Status: domain.JobStatusRunning, StartedAt: &crashedAt,
	}))

	cfg := testReconciliationConfig()
	cfg.MaxRuntime = time.Hour
	uc := usecase.NewReconciliationUseCase(f.store, staticSource{}, zap.NewNop(), cfg)

	stale, err := uc.ListStaleJobs(ctx)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	_, err = uc.RunReconciliation(ctx, testProvider, start, end)
	require.ErrorIs(t, err, domain.ErrReconciliationInProgress)

	job, err := uc.AbandonJob(ctx, "crashed", "ops-1", "process restarted mid-run")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Contains(t, job.ErrorMessage, "ops-1")

	stored, err := uc.GetJob(ctx, "crashed")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	stale, err = uc.ListStaleJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, stale)

	rerun, err := uc.RunReconciliation(ctx, testProvider, start, end)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, rerun.Status)

	// finished and live jobs are refused
	_, err = uc.AbandonJob(ctx, rerun.ID, "ops-1", "")
	assert.ErrorIs(t, err, domain.ErrJobNotStale)
	liveAt := time.Now()
	require.NoError(t, f.store.TryStartJob(ctx, &domain.ReconciliationJob{
		ID: "live", Provider: "nagad", PeriodStart: start, PeriodEnd: end,
		Status: domain.JobStatusRunning, StartedAt: &liveAt,
	}))
	_, err = uc.AbandonJob(ctx, "live", "ops-1", "")
	assert.ErrorIs(t, err, domain.ErrJobNotStale)
	_, err = uc.AbandonJob(ctx, "missing", "ops-1", "")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

// blockingSource never answers before the context ends.
type blockingSource struct{}

func (blockingSource) FetchStatement(ctx context.Context, _ string, _, _ time.Time) ([]domain.ProviderRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestReconciliationUseCase_RunIsBounded(t *testing.T) {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	t.Run("max runtime", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		cfg := testReconciliationConfig()
		cfg.MaxRuntime = 50 * time.Millisecond
		cfg.FetchRetries = 3
		uc := usecase.NewReconciliationUseCase(f.store, blockingSource{}, zap.NewNop(), cfg)

		job, err := uc.RunReconciliation(ctx, testProvider, start, end)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		require.NotNil(t, job)
		assert.Equal(t, domain.JobStatusFailed, job.Status)
		assert.Contains(t, job.ErrorMessage, context.DeadlineExceeded.Error())

		stored, err := uc.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, stored.Status)
		running, err := uc.ListJobs(ctx, domain.JobStatusRunning)
		require.NoError(t, err)
		assert.Empty(t, running)
	})

	t.Run("caller cancellation", func(t *testing.T) {
		f := newFixture(t)
		cfg := testReconciliationConfig()
		cfg.MaxRuntime = time.Hour
		uc := usecase.NewReconciliationUseCase(f.store, blockingSource{}, zap.NewNop(), cfg)

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)
		job, err := uc.RunReconciliation(ctx, testProvider, start, end)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, job)

		stored, err := uc.GetJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, stored.Status)
		assert.Contains(t, stored.ErrorMessage, context.Canceled.Error())
	})
}
