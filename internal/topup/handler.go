package topup

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cargoloop/cargoloop/internal/wallet"
)

// Handler exposes the topup flow over HTTP. Confirm and Fail are webhook
// endpoints driven by the payment gateway.
type Handler struct {
	service *Service
}

// NewHandler builds a topup HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func toTopupResponse(t wallet.Topup) fiber.Map {
	m := fiber.Map{
		"id":                t.ID,
		"wallet_id":         t.WalletID,
		"amount":            t.Amount.StringFixed(2),
		"currency":          t.Currency,
		"gateway":           t.Gateway,
		"payment_reference": t.PaymentReference,
		"status":            t.Status,
		"created_at":        t.CreatedAt.Format(time.RFC3339Nano),
	}
	if t.CheckoutURL != "" {
		m["checkout_url"] = t.CheckoutURL
	}
	if t.FailureReason != "" {
		m["failure_reason"] = t.FailureReason
	}
	return m
}

type initiateRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Initiate opens a gateway checkout and records a pending topup.
func (h *Handler) Initiate(c *fiber.Ctx) error {
	var req initiateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	t, err := h.service.Initiate(c.UserContext(), InitiateInput{
		WalletID:       c.Params("walletID"),
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return fiber.NewError(wallet.StatusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toTopupResponse(t))
}

// Get returns a topup by identifier.
func (h *Handler) Get(c *fiber.Ctx) error {
	t, err := h.service.Get(c.UserContext(), c.Params("topupID"))
	if err != nil {
		return fiber.NewError(wallet.StatusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toTopupResponse(t))
}

type confirmRequest struct {
	PaymentReference string `json:"payment_reference"`
}

// Confirm settles a pending topup and credits the wallet. Redelivered
// confirmations return the original result with a 200.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	t, entry, err := h.service.Confirm(c.UserContext(), c.Params("topupID"), req.PaymentReference, c.Get("X-Actor-ID"))
	if err != nil {
		return fiber.NewError(wallet.StatusFor(err), err.Error())
	}
	resp := toTopupResponse(t)
	resp["entry_id"] = entry.ID
	resp["running_balance"] = entry.RunningBalance.StringFixed(2)
	return c.Status(http.StatusOK).JSON(resp)
}

type failRequest struct {
	Reason string `json:"reason"`
}

// Fail marks a pending topup as failed.
func (h *Handler) Fail(c *fiber.Ctx) error {
	var req failRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	t, err := h.service.Fail(c.UserContext(), c.Params("topupID"), req.Reason)
	if err != nil {
		return fiber.NewError(wallet.StatusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toTopupResponse(t))
}
