// Package httpapi exposes the ledger core over HTTP with fiber.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/metrics"
	"payledger/internal/scheduler"
	"payledger/internal/usecase"
)

// TaskRunner triggers background tasks by name.
type TaskRunner interface {
	Trigger(ctx context.Context, name string) error
	Tasks() []string
}

// Deps are the use-cases served by the API.
type Deps struct {
	Ledger         *usecase.LedgerUseCase
	Payouts        *usecase.PayoutUseCase
	Disputes       *usecase.DisputeUseCase
	Reconciliation *usecase.ReconciliationUseCase
	Verification   *usecase.VerificationUseCase
	Attention      *usecase.AttentionUseCase
	Ingestion      *usecase.IngestionUseCase
	Tasks          TaskRunner
	Log            *zap.Logger
}

type handler struct {
	Deps
}

// New builds the fiber application with every route registered.
func New(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Log),
	})
	app.Use(recover.New())
	app.Use(requestLogger(deps.Log))

	h := &handler{Deps: deps}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/v1")

	api.Post("/webhooks/:provider", h.receiveWebhook)

	api.Post("/accounts", h.ensureAccount)
	api.Get("/accounts/:id/balance", h.getBalance)
	api.Post("/accounts/:id/freeze", h.freezeAccount)
	api.Post("/accounts/:id/unfreeze", h.unfreezeAccount)
	api.Post("/accounts/:id/close", h.closeAccount)

	api.Post("/transactions", h.postTransaction)
	api.Get("/transactions/:id", h.getTransaction)
	api.Post("/transactions/:id/reverse", h.reverseTransaction)
	api.Post("/transactions/:id/complete", h.completeTransaction)
	api.Post("/transactions/:id/fail", h.failTransaction)

	api.Post("/payouts", h.requestPayout)
	api.Get("/payouts", h.listPayouts)
	api.Get("/payouts/stats", h.payoutStats)
	api.Get("/payouts/stuck", h.stuckPayouts)
	api.Get("/payouts/:id", h.getPayout)
	api.Post("/payouts/:id/approve", h.approvePayout)
	api.Post("/payouts/:id/process", h.processPayout)
	api.Post("/payouts/:id/paid", h.markPayoutPaid)
	api.Post("/payouts/:id/failed", h.markPayoutFailed)
	api.Post("/payouts/:id/cancel", h.cancelPayout)

	api.Post("/disputes", h.openDispute)
	api.Get("/disputes", h.listDisputes)
	api.Get("/disputes/overdue", h.overdueDisputes)
	api.Get("/disputes/:id", h.getDispute)
	api.Post("/disputes/:id/review", h.reviewDispute)
	api.Post("/disputes/:id/request-evidence", h.requestEvidence)
	api.Post("/disputes/:id/evidence", h.submitEvidence)
	api.Post("/disputes/:id/resolve", h.resolveDispute)
	api.Post("/disputes/:id/accept", h.acceptDispute)

	api.Post("/reconciliation/jobs", h.runReconciliation)
	api.Get("/reconciliation/jobs", h.listJobs)
	api.Get("/reconciliation/jobs/:id", h.getJob)
	api.Get("/reconciliation/jobs/:id/discrepancies", h.jobDiscrepancies)
	api.Post("/reconciliation/jobs/:id/abandon", h.abandonJob)
	api.Get("/reconciliation/discrepancies", h.allDiscrepancies)
	api.Post("/reconciliation/discrepancies/:id/resolve", h.resolveDiscrepancy)

	api.Get("/attention", h.attention)
	api.Get("/integrity", h.integrity)
	api.Get("/tasks", h.listTasks)
	api.Post("/tasks/:name/run", h.runTask)

	return app
}

// StatusFor maps a use-case error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrPayoutNotFound),
		errors.Is(err, domain.ErrDisputeNotFound),
		errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrDiscrepancyNotFound),
		errors.Is(err, scheduler.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrAccountFrozen),
		errors.Is(err, domain.ErrAccountNotEmpty),
		errors.Is(err, domain.ErrAlreadyReversed),
		errors.Is(err, domain.ErrInvalidTransactionTransition),
		errors.Is(err, domain.ErrInvalidPayoutTransition),
		errors.Is(err, domain.ErrInvalidDisputeTransition),
		errors.Is(err, domain.ErrReconciliationInProgress),
		errors.Is(err, domain.ErrConcurrentUpdate),
		errors.Is(err, domain.ErrJobNotStale),
		errors.Is(err, domain.ErrDuplicateDispute),
		errors.Is(err, domain.ErrDuplicateTransaction),
		errors.Is(err, scheduler.ErrTaskRunning):
		return http.StatusConflict
	case domain.IsValidationError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := http.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		} else {
			log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}

func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("took", time.Since(start)))
		return err
	}
}
