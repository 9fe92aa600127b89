package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cargoloop/cargoloop/internal/hold"
)

// RegisterHoldRoutes wires the pre-authorization hold endpoints.
func RegisterHoldRoutes(router fiber.Router, h *hold.Handler) {
	router.Post("/wallets/:walletID/holds", h.Create)
	router.Get("/holds/:holdID", h.Get)
	router.Post("/holds/:holdID/capture", h.Capture)
	router.Post("/holds/:holdID/release", h.Release)
}
