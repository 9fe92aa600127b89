package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const (
	tenantHeader = "X-Tenant-ID"
	actorHeader  = "X-Actor-ID"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type walletResponse struct {
	ID               string `json:"id"`
	TenantID         string `json:"tenant_id"`
	Currency         string `json:"currency"`
	Available        string `json:"available_balance"`
	Reserved         string `json:"reserved_balance"`
	Effective        string `json:"effective_balance"`
	Status           string `json:"status"`
	AllowNegative    bool   `json:"allow_negative"`
	AutoTopupEnabled bool   `json:"auto_topup_enabled"`
	CreatedAt        string `json:"created_at"`
}

func toWalletResponse(w Wallet) walletResponse {
	return walletResponse{
		ID:               w.ID,
		TenantID:         w.TenantID,
		Currency:         w.Currency,
		Available:        w.Available.StringFixed(2),
		Reserved:         w.Reserved.StringFixed(2),
		Effective:        w.Effective().StringFixed(2),
		Status:           w.Status,
		AllowNegative:    w.AllowNegative,
		AutoTopupEnabled: w.AutoTopupEnabled,
		CreatedAt:        w.CreatedAt.Format(time.RFC3339Nano),
	}
}

type entryResponse struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Amount         string `json:"amount"`
	RunningBalance string `json:"running_balance"`
	ReferenceType  string `json:"reference_type,omitempty"`
	ReferenceID    string `json:"reference_id,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:             e.ID,
		Type:           e.Type,
		Amount:         e.Amount.StringFixed(2),
		RunningBalance: e.RunningBalance.StringFixed(2),
		ReferenceType:  e.ReferenceType,
		ReferenceID:    e.ReferenceID,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339Nano),
	}
}

// StatusFor maps engine errors to HTTP status codes. Shared by the flow
// handlers so every surface reports the taxonomy the same way.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrHoldNotFound), errors.Is(err, ErrTopupNotFound), errors.Is(err, ErrChargeNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrWalletFrozen):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrHoldNotActive), errors.Is(err, ErrTopupNotPending),
		errors.Is(err, ErrRefundExceedsOriginal), errors.Is(err, ErrIdempotencyConflict):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

type ensureRequest struct {
	Currency string `json:"currency"`
}

// Ensure resolves (and lazily creates) the tenant's wallet.
func (h *Handler) Ensure(c *fiber.Ctx) error {
	var req ensureRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tenantID := c.Get(tenantHeader)
	if tenantID == "" {
		return fiber.NewError(http.StatusBadRequest, "missing "+tenantHeader+" header")
	}
	w, err := h.service.Ensure(c.UserContext(), tenantID, req.Currency)
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toWalletResponse(w))
}

// Get returns the wallet with fresh balances.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.Get(c.UserContext(), c.Params("walletID"))
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(w))
}

type chargeRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   string          `json:"reference_id"`
}

// Charge debits the wallet directly.
func (h *Handler) Charge(c *fiber.Ctx) error {
	var req chargeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.service.Charge(c.UserContext(), ChargeInput{
		WalletID:  c.Params("walletID"),
		Amount:    req.Amount,
		Reference: Reference{Type: req.ReferenceType, ID: req.ReferenceID},
		ActorID:   c.Get(actorHeader),
	})
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toEntryResponse(entry))
}

// Statement pages through the wallet's ledger.
func (h *Handler) Statement(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	entries, err := h.service.Statement(c.UserContext(), c.Params("walletID"), limit, offset)
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": c.Params("walletID"),
		"entries":   out,
		"limit":     limit,
		"offset":    offset,
	})
}

// ToHoldResponse converts a hold for the HTTP surface. Exported for the hold
// handler which shares the shape.
func ToHoldResponse(h Hold) fiber.Map {
	return fiber.Map{
		"id":             h.ID,
		"wallet_id":      h.WalletID,
		"amount":         h.Amount.StringFixed(2),
		"reference_type": h.ReferenceType,
		"reference_id":   h.ReferenceID,
		"status":         h.Status,
		"expires_at":     h.ExpiresAt.Format(time.RFC3339Nano),
	}
}

// ActiveHolds lists the wallet's active holds.
func (h *Handler) ActiveHolds(c *fiber.Ctx) error {
	holds, err := h.service.ActiveHolds(c.UserContext(), c.Params("walletID"))
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	out := make([]fiber.Map, 0, len(holds))
	for _, hold := range holds {
		out = append(out, ToHoldResponse(hold))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"wallet_id": c.Params("walletID"), "holds": out})
}

type policyRequest struct {
	LowBalanceThreshold decimal.Decimal `json:"low_balance_threshold"`
	AutoTopupEnabled    bool            `json:"auto_topup_enabled"`
	AutoTopupAmount     decimal.Decimal `json:"auto_topup_amount"`
	AutoTopupTrigger    decimal.Decimal `json:"auto_topup_trigger"`
	AllowNegative       bool            `json:"allow_negative"`
}

// UpdatePolicy replaces the owner-mutable wallet settings.
func (h *Handler) UpdatePolicy(c *fiber.Ctx) error {
	var req policyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.UpdatePolicy(c.UserContext(), c.Params("walletID"), Policy{
		LowBalanceThreshold: req.LowBalanceThreshold,
		AutoTopupEnabled:    req.AutoTopupEnabled,
		AutoTopupAmount:     req.AutoTopupAmount,
		AutoTopupTrigger:    req.AutoTopupTrigger,
		AllowNegative:       req.AllowNegative,
	})
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(w))
}

// Freeze blocks debits and holds on the wallet.
func (h *Handler) Freeze(c *fiber.Ctx) error {
	w, err := h.service.Freeze(c.UserContext(), c.Params("walletID"))
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(w))
}

// Unfreeze reactivates the wallet.
func (h *Handler) Unfreeze(c *fiber.Ctx) error {
	w, err := h.service.Unfreeze(c.UserContext(), c.Params("walletID"))
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(toWalletResponse(w))
}
