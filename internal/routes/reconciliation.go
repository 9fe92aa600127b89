package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cargoloop/cargoloop/internal/reconciliation"
)

// RegisterReconciliationRoutes wires the reconciliation job endpoints.
func RegisterReconciliationRoutes(router fiber.Router, h *reconciliation.Handler) {
	router.Post("/reconciliation/run", h.Run)
	router.Get("/reconciliation/:reportID", h.Get)
	router.Post("/reconciliation/:reportID/review", h.Review)
}
