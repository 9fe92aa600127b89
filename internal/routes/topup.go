package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cargoloop/cargoloop/internal/topup"
)

// RegisterTopupRoutes wires topup endpoints. Confirm and fail are the
// gateway webhook surface.
func RegisterTopupRoutes(router fiber.Router, h *topup.Handler) {
	router.Post("/wallets/:walletID/topups", h.Initiate)
	router.Get("/topups/:topupID", h.Get)
	router.Post("/topups/:topupID/confirm", h.Confirm)
	router.Post("/topups/:topupID/fail", h.Fail)
}
