package refund

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cargoloop/cargoloop/internal/wallet"
)

// Handler exposes refunds over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds a refund HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type refundRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	ReferenceType  string          `json:"reference_type"`
	ReferenceID    string          `json:"reference_id"`
	Reason         string          `json:"reason"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Refund credits back part or all of a prior charge.
func (h *Handler) Refund(c *fiber.Ctx) error {
	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.service.Refund(c.UserContext(), Input{
		WalletID:       c.Params("walletID"),
		Amount:         req.Amount,
		Reference:      wallet.Reference{Type: req.ReferenceType, ID: req.ReferenceID},
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
		ActorID:        c.Get("X-Actor-ID"),
	})
	if err != nil {
		return fiber.NewError(wallet.StatusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"entry_id":        entry.ID,
		"wallet_id":       entry.WalletID,
		"amount":          entry.Amount.StringFixed(2),
		"running_balance": entry.RunningBalance.StringFixed(2),
		"reference_type":  entry.ReferenceType,
		"reference_id":    entry.ReferenceID,
		"created_at":      entry.CreatedAt.Format(time.RFC3339Nano),
	})
}
