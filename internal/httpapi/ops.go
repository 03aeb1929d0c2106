package httpapi

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"payledger/internal/domain"
)

// retryCountHeader carries the number of earlier delivery attempts of a
// webhook. It overrides retry_count in the body.
const retryCountHeader = "X-Retry-Count"

// receiveWebhook applies a provider notification. The response code tells
// the sender what to do: 200 settles the event, 503 asks for redelivery after
// Retry-After seconds and 422 means it will never succeed.
func (h *handler) receiveWebhook(c *fiber.Ctx) error {
	var ev domain.InboundEvent
	if err := c.BodyParser(&ev); err != nil {
		return badRequest(c, "invalid body")
	}
	ev.Provider = c.Params("provider")
	if raw := c.Get(retryCountHeader); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return badRequest(c, retryCountHeader+" must be a non-negative integer")
		}
		ev.RetryCount = n
	}

	res := h.Ingestion.Handle(c.UserContext(), ev)
	switch res.Outcome {
	case domain.OutcomeAck:
		return c.JSON(res)
	case domain.OutcomeRetry:
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
		return c.Status(http.StatusServiceUnavailable).JSON(res)
	default:
		return c.Status(http.StatusUnprocessableEntity).JSON(res)
	}
}

func (h *handler) attention(c *fiber.Ctx) error {
	report, err := h.Attention.Scan(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

// integrity runs the verification sweep. An unhealthy ledger answers 200
// with the findings; only a failed sweep is an error.
func (h *handler) integrity(c *fiber.Ctx) error {
	report, err := h.Verification.Verify(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"healthy": report.Healthy(), "report": report})
}

func (h *handler) listTasks(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"tasks": h.Tasks.Tasks()})
}

func (h *handler) runTask(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := h.Tasks.Trigger(c.UserContext(), name); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"task": name, "status": "completed"})
}
