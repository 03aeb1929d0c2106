package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

type evidenceRequest struct {
	DueBy time.Time `json:"due_by"`
}

type outcomeRequest struct {
	Outcome domain.DisputeStatus `json:"outcome"`
}

func (h *handler) openDispute(c *fiber.Ctx) error {
	var req usecase.DisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	d, err := h.Disputes.OpenDispute(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(d)
}

// listDisputes accepts a comma separated status filter.
func (h *handler) listDisputes(c *fiber.Ctx) error {
	var statuses []domain.DisputeStatus
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, domain.DisputeStatus(strings.ToUpper(s)))
		}
	}
	disputes, err := h.Disputes.ListDisputes(c.UserContext(), statuses...)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(disputes)
}

func (h *handler) overdueDisputes(c *fiber.Ctx) error {
	disputes, err := h.Disputes.ListOverdue(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	if disputes == nil {
		disputes = []domain.Dispute{}
	}
	return c.JSON(disputes)
}

func (h *handler) getDispute(c *fiber.Ctx) error {
	return h.disputeResult(c)(h.Disputes.GetDispute(c.UserContext(), c.Params("id")))
}

func (h *handler) reviewDispute(c *fiber.Ctx) error {
	return h.disputeResult(c)(h.Disputes.StartReview(c.UserContext(), c.Params("id")))
}

func (h *handler) requestEvidence(c *fiber.Ctx) error {
	var req evidenceRequest
	if err := parseOptional(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.disputeResult(c)(h.Disputes.RequestEvidence(c.UserContext(), c.Params("id"), req.DueBy))
}

func (h *handler) submitEvidence(c *fiber.Ctx) error {
	return h.disputeResult(c)(h.Disputes.SubmitEvidence(c.UserContext(), c.Params("id")))
}

func (h *handler) resolveDispute(c *fiber.Ctx) error {
	var req outcomeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	outcome := domain.DisputeStatus(strings.ToUpper(string(req.Outcome)))
	return h.disputeResult(c)(h.Disputes.ResolveDispute(c.UserContext(), c.Params("id"), outcome))
}

func (h *handler) acceptDispute(c *fiber.Ctx) error {
	return h.disputeResult(c)(h.Disputes.AcceptDispute(c.UserContext(), c.Params("id")))
}

func (h *handler) disputeResult(c *fiber.Ctx) func(*domain.Dispute, error) error {
	return func(d *domain.Dispute, err error) error {
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(d)
	}
}
