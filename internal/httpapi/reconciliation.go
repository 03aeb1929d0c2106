package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"payledger/internal/domain"
)

type runRequest struct {
	Provider string    `json:"provider"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
	Note       string `json:"note"`
}

type abandonRequest struct {
	AbandonedBy string `json:"abandoned_by"`
	Reason      string `json:"reason"`
}

// runReconciliation runs a job synchronously. A job that started and then
// failed is returned alongside the error.
func (h *handler) runReconciliation(c *fiber.Ctx) error {
	var req runRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Provider == "" {
		return badRequest(c, "provider is required")
	}
	job, err := h.Reconciliation.RunReconciliation(c.UserContext(), req.Provider, req.Start, req.End)
	if err != nil {
		if job == nil {
			return h.fail(c, err)
		}
		return c.Status(StatusFor(err)).JSON(fiber.Map{"error": err.Error(), "job": job})
	}
	return c.Status(http.StatusCreated).JSON(job)
}

func (h *handler) listJobs(c *fiber.Ctx) error {
	jobs, err := h.Reconciliation.ListJobs(c.UserContext(), domain.JobStatus(strings.ToUpper(c.Query("status"))))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(jobs)
}

func (h *handler) getJob(c *fiber.Ctx) error {
	job, err := h.Reconciliation.GetJob(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(job)
}

func (h *handler) abandonJob(c *fiber.Ctx) error {
	var req abandonRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.AbandonedBy == "" {
		return badRequest(c, "abandoned_by is required")
	}
	job, err := h.Reconciliation.AbandonJob(c.UserContext(), c.Params("id"), req.AbandonedBy, req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(job)
}

func (h *handler) jobDiscrepancies(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.Reconciliation.GetJob(c.UserContext(), id); err != nil {
		return h.fail(c, err)
	}
	return h.discrepancies(c, id)
}

func (h *handler) allDiscrepancies(c *fiber.Ctx) error {
	return h.discrepancies(c, "")
}

func (h *handler) discrepancies(c *fiber.Ctx, jobID string) error {
	list, err := h.Reconciliation.ListDiscrepancies(c.UserContext(), jobID)
	if err != nil {
		return h.fail(c, err)
	}
	if c.QueryBool("unresolved") {
		open := make([]domain.Discrepancy, 0, len(list))
		for _, d := range list {
			if !d.Resolved {
				open = append(open, d)
			}
		}
		list = open
	}
	return c.JSON(list)
}

func (h *handler) resolveDiscrepancy(c *fiber.Ctx) error {
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.ResolvedBy == "" {
		return badRequest(c, "resolved_by is required")
	}
	d, err := h.Reconciliation.ResolveDiscrepancy(c.UserContext(), c.Params("id"), req.ResolvedBy, req.Note)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(d)
}
