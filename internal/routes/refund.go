package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cargoloop/cargoloop/internal/refund"
)

// RegisterRefundRoutes wires the refund endpoint.
func RegisterRefundRoutes(router fiber.Router, h *refund.Handler) {
	router.Post("/wallets/:walletID/refunds", h.Refund)
}
