package httpapi

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

type accountRequest struct {
	OwnerID     string             `json:"owner_id"`
	OwnerType   domain.OwnerType   `json:"owner_type"`
	Currency    string             `json:"currency"`
	AccountType domain.AccountType `json:"account_type"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *handler) ensureAccount(c *fiber.Ctx) error {
	var req accountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.OwnerID == "" || req.Currency == "" {
		return badRequest(c, "owner_id and currency are required")
	}
	if req.OwnerType == "" {
		req.OwnerType = domain.OwnerTypeProvider
	}
	if req.AccountType == "" {
		req.AccountType = domain.AccountTypeWallet
	}
	acc, err := h.Ledger.EnsureAccount(c.UserContext(), req.OwnerID, req.OwnerType, req.Currency, req.AccountType)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(acc)
}

func (h *handler) getBalance(c *fiber.Ctx) error {
	b, err := h.Ledger.GetAccountBalance(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(b)
}

func (h *handler) freezeAccount(c *fiber.Ctx) error {
	return h.accountResult(c, h.Ledger.FreezeAccount)
}

func (h *handler) unfreezeAccount(c *fiber.Ctx) error {
	return h.accountResult(c, h.Ledger.UnfreezeAccount)
}

func (h *handler) closeAccount(c *fiber.Ctx) error {
	return h.accountResult(c, h.Ledger.CloseAccount)
}

func (h *handler) accountResult(c *fiber.Ctx, op func(ctx context.Context, id string) (*domain.Account, error)) error {
	acc, err := op(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(acc)
}

func (h *handler) postTransaction(c *fiber.Ctx) error {
	var req usecase.PostTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	txn, err := h.Ledger.PostTransaction(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(txn)
}

func (h *handler) getTransaction(c *fiber.Ctx) error {
	txn, err := h.Ledger.GetTransaction(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(txn)
}

func (h *handler) reverseTransaction(c *fiber.Ctx) error {
	var req reasonRequest
	if err := parseOptional(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	txn, err := h.Ledger.ReverseTransaction(c.UserContext(), c.Params("id"), req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(txn)
}

func (h *handler) completeTransaction(c *fiber.Ctx) error {
	txn, err := h.Ledger.CompleteTransaction(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(txn)
}

func (h *handler) failTransaction(c *fiber.Ctx) error {
	var req reasonRequest
	if err := parseOptional(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	txn, err := h.Ledger.FailTransaction(c.UserContext(), c.Params("id"), req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(txn)
}

// parseOptional decodes the body when there is one.
func parseOptional(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return c.BodyParser(out)
}
