package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

type actorRequest struct {
	Actor string `json:"actor"`
}

type paidRequest struct {
	ExternalTransactionID string `json:"external_transaction_id"`
}

func (h *handler) requestPayout(c *fiber.Ctx) error {
	var req usecase.PayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	p, err := h.Payouts.RequestPayout(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(p)
}

func (h *handler) listPayouts(c *fiber.Ctx) error {
	filter := domain.PayoutFilter{
		ProviderID: c.Query("provider_id"),
		Status:     domain.PayoutStatus(strings.ToUpper(c.Query("status"))),
		Limit:      c.QueryInt("limit", 100),
	}
	if raw := c.Query("processed_before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "processed_before must be RFC3339")
		}
		filter.ProcessedBefore = &before
	}
	payouts, err := h.Payouts.ListPayouts(c.UserContext(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(payouts)
}

func (h *handler) payoutStats(c *fiber.Ctx) error {
	stats, err := h.Payouts.Stats(c.UserContext(), c.Query("provider_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(stats)
}

func (h *handler) stuckPayouts(c *fiber.Ctx) error {
	payouts, err := h.Payouts.ListStuckPayouts(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(payouts)
}

func (h *handler) getPayout(c *fiber.Ctx) error {
	p, err := h.Payouts.GetPayout(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

func (h *handler) approvePayout(c *fiber.Ctx) error {
	var req actorRequest
	if err := parseOptional(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.payoutResult(c)(h.Payouts.ApprovePayout(c.UserContext(), c.Params("id"), req.Actor))
}

func (h *handler) processPayout(c *fiber.Ctx) error {
	var req actorRequest
	if err := parseOptional(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.payoutResult(c)(h.Payouts.ProcessPayout(c.UserContext(), c.Params("id"), req.Actor))
}

func (h *handler) markPayoutPaid(c *fiber.Ctx) error {
	var req paidRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.payoutResult(c)(h.Payouts.MarkPayoutPaid(c.UserContext(), c.Params("id"), req.ExternalTransactionID))
}

func (h *handler) markPayoutFailed(c *fiber.Ctx) error {
	var req reasonRequest
	if err := parseOptional(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.payoutResult(c)(h.Payouts.MarkPayoutFailed(c.UserContext(), c.Params("id"), req.Reason))
}

func (h *handler) cancelPayout(c *fiber.Ctx) error {
	var req reasonRequest
	if err := parseOptional(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.payoutResult(c)(h.Payouts.CancelPayout(c.UserContext(), c.Params("id"), req.Reason))
}

func (h *handler) payoutResult(c *fiber.Ctx) func(*domain.Payout, error) error {
	return func(p *domain.Payout, err error) error {
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(p)
	}
}
