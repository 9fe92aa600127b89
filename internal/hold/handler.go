package hold

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cargoloop/cargoloop/internal/wallet"
)

// Handler exposes the hold lifecycle over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds a hold HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	ReferenceType  string          `json:"reference_type"`
	ReferenceID    string          `json:"reference_id"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Create reserves funds on the wallet.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	created, err := h.service.Create(c.UserContext(), CreateInput{
		WalletID:       c.Params("walletID"),
		Amount:         req.Amount,
		Reference:      wallet.Reference{Type: req.ReferenceType, ID: req.ReferenceID},
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return fiber.NewError(wallet.StatusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(wallet.ToHoldResponse(created))
}

// Get returns a hold by identifier.
func (h *Handler) Get(c *fiber.Ctx) error {
	found, err := h.service.Get(c.UserContext(), c.Params("holdID"))
	if err != nil {
		return fiber.NewError(wallet.StatusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(wallet.ToHoldResponse(found))
}

// Capture spends the held amount.
func (h *Handler) Capture(c *fiber.Ctx) error {
	entry, err := h.service.Capture(c.UserContext(), c.Params("holdID"), c.Get("X-Actor-ID"))
	if err != nil {
		return fiber.NewError(wallet.StatusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"hold_id":         c.Params("holdID"),
		"entry_id":        entry.ID,
		"amount":          entry.Amount.StringFixed(2),
		"running_balance": entry.RunningBalance.StringFixed(2),
		"created_at":      entry.CreatedAt.Format(time.RFC3339Nano),
	})
}

// Release returns the held funds without spending.
func (h *Handler) Release(c *fiber.Ctx) error {
	released, err := h.service.Release(c.UserContext(), c.Params("holdID"))
	if err != nil {
		return fiber.NewError(wallet.StatusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(wallet.ToHoldResponse(released))
}
