// Package app wires configuration, storage, use-cases, background tasks and
// the HTTP API into one runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"payledger/internal/config"
	"payledger/internal/domain"
	"payledger/internal/gateway"
	"payledger/internal/gateway/memory"
	"payledger/internal/gateway/postgres"
	"payledger/internal/httpapi"
	"payledger/internal/scheduler"
	"payledger/internal/usecase"
)

// Task names.
const (
	TaskDisputeDeadlines = "dispute-deadlines"
	TaskAttention        = "attention"
	TaskVerification     = "verification"
)

// ReconciliationTask is the task name of the scheduled run for provider.
func ReconciliationTask(provider string) string {
	return "reconcile:" + provider
}

// App holds the assembled process.
type App struct {
	Config *config.Config
	Log    *zap.Logger
	Store  usecase.Store

	Ledger         *usecase.LedgerUseCase
	Payouts        *usecase.PayoutUseCase
	Disputes       *usecase.DisputeUseCase
	Reconciliation *usecase.ReconciliationUseCase
	Verification   *usecase.VerificationUseCase
	Attention      *usecase.AttentionUseCase
	Ingestion      *usecase.IngestionUseCase

	Scheduler *scheduler.Scheduler
	HTTP      *fiber.App

	closeStore func()
	now        func() time.Time
}

// New assembles the process. The statement source may be nil, in which case
// one is built from the configuration.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, source usecase.StatementSource) (*App, error) {
	store, closeStore, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if source == nil {
		source = StatementSource(cfg)
	}

	a := &App{
		Config:     cfg,
		Log:        log,
		Store:      store,
		closeStore: closeStore,
		now:        func() time.Time { return time.Now().UTC() },
	}
	a.Ledger = usecase.NewLedgerUseCase(store, log.Named("ledger"))
	a.Payouts = usecase.NewPayoutUseCase(store, a.Ledger, log.Named("payouts"), cfg.PayoutProcessingTimeout)
	a.Disputes = usecase.NewDisputeUseCase(store, a.Ledger, log.Named("disputes"), cfg.Dispute())
	a.Reconciliation = usecase.NewReconciliationUseCase(store, source, log.Named("reconciliation"), cfg.Reconciliation())
	a.Verification = usecase.NewVerificationUseCase(store, log.Named("verification"))
	a.Attention = usecase.NewAttentionUseCase(a.Payouts, a.Reconciliation, a.Disputes, log.Named("attention"))
	a.Ingestion = usecase.NewIngestionUseCase(a.Ledger, a.Payouts, a.Disputes, log.Named("ingestion"), cfg.Ingestion())

	a.Scheduler = scheduler.New(log.Named("scheduler"))
	if err := a.registerTasks(); err != nil {
		a.Close()
		return nil, err
	}

	a.HTTP = httpapi.New(httpapi.Deps{
		Ledger:         a.Ledger,
		Payouts:        a.Payouts,
		Disputes:       a.Disputes,
		Reconciliation: a.Reconciliation,
		Verification:   a.Verification,
		Attention:      a.Attention,
		Ingestion:      a.Ingestion,
		Tasks:          a.Scheduler,
		Log:            log.Named("http"),
	})
	return a, nil
}

// OpenStore returns the Postgres store when a database is configured and the
// in-memory store otherwise. The returned func releases the store.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (usecase.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no database configured, records are kept in memory only")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns), cfg.DBMaxConnIdle, cfg.DBMaxConnLife)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MigrateOnStart {
		db := postgres.OpenDB(pool)
		err := postgres.Apply(ctx, db)
		db.Close()
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("database migrated")
	}
	log.Info("connected to database", zap.Int32("max_conns", pool.Config().MaxConns))
	return postgres.NewStore(pool, log.Named("postgres")), pool.Close, nil
}

// StatementSource picks the provider API when a URL is configured and the
// statement directory otherwise.
func StatementSource(cfg *config.Config) usecase.StatementSource {
	if cfg.StatementURL != "" {
		return gateway.NewHTTPStatementSource(cfg.StatementURL, cfg.StatementToken, cfg.StatementWait)
	}
	return gateway.NewCSVStatementReader(cfg.StatementDir)
}

func (a *App) registerTasks() error {
	for _, provider := range a.Config.ProviderList() {
		if err := a.Scheduler.Register(ReconciliationTask(provider), a.Config.ReconciliationSchedule, a.reconcileTask(provider)); err != nil {
			return err
		}
	}
	if err := a.Scheduler.Register(TaskDisputeDeadlines, a.Config.DisputeSweepSchedule, func(ctx context.Context) error {
		swept, err := a.Disputes.SweepDeadlines(ctx)
		if err != nil {
			return err
		}
		if len(swept) > 0 {
			a.Log.Info("dispute deadlines swept", zap.Int("disputes", len(swept)))
		}
		return nil
	}); err != nil {
		return err
	}
	if err := a.Scheduler.Register(TaskAttention, a.Config.AttentionSchedule, func(ctx context.Context) error {
		_, err := a.Attention.Scan(ctx)
		return err
	}); err != nil {
		return err
	}
	return a.Scheduler.Register(TaskVerification, a.Config.VerificationSchedule, func(ctx context.Context) error {
		report, err := a.Verification.Verify(ctx)
		if err != nil {
			return err
		}
		if !report.Healthy() {
			return fmt.Errorf("ledger integrity check found %d unbalanced transactions, %d orphaned entries, %d drifted and %d negative accounts",
				len(report.UnbalancedTransactions), len(report.OrphanedEntries), len(report.BalanceDrift), len(report.NegativeAvailable))
		}
		return nil
	})
}

// reconcileTask reconciles the window that ended at the most recent UTC
// midnight. An overlapping run already in progress is not an error.
func (a *App) reconcileTask(provider string) scheduler.Task {
	return func(ctx context.Context) error {
		end := a.now().Truncate(24 * time.Hour)
		start := end.Add(-a.Config.ReconWindow)
		job, err := a.Reconciliation.RunReconciliation(ctx, provider, start, end)
		if errors.Is(err, domain.ErrReconciliationInProgress) {
			a.Log.Warn("reconciliation skipped, overlapping job running", zap.String("provider", provider))
			return nil
		}
		if err != nil {
			return err
		}
		a.Log.Info("scheduled reconciliation finished",
			zap.String("provider", provider),
			zap.String("job_id", job.ID),
			zap.Int("discrepancies", job.DiscrepanciesFound))
		return nil
	}
}

// Run serves HTTP and runs scheduled tasks until ctx is cancelled, then shuts
// both down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	a.Scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("server starting", zap.String("addr", a.Config.HTTPAddr), zap.String("env", a.Config.Env))
		errCh <- a.HTTP.Listen(a.Config.HTTPAddr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.Log.Info("shutting down")
	case runErr = <-errCh:
		a.Log.Error("server stopped", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	if err := a.HTTP.ShutdownWithContext(shutdownCtx); err != nil {
		a.Log.Error("server shutdown failed", zap.Error(err))
	}
	if err := a.Scheduler.Stop(shutdownCtx); err != nil {
		a.Log.Error("scheduler shutdown failed", zap.Error(err))
	}
	return runErr
}

// Close releases the store.
func (a *App) Close() {
	if a.closeStore != nil {
		a.closeStore()
	}
}
