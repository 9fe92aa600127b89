package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cargoloop/cargoloop/internal/wallet"
)

// RegisterWalletRoutes wires wallet account endpoints.
func RegisterWalletRoutes(router fiber.Router, h *wallet.Handler) {
	router.Post("/wallets", h.Ensure)
	router.Get("/wallets/:walletID", h.Get)
	router.Get("/wallets/:walletID/statement", h.Statement)
	router.Get("/wallets/:walletID/holds", h.ActiveHolds)
	router.Patch("/wallets/:walletID/policy", h.UpdatePolicy)
	router.Post("/wallets/:walletID/freeze", h.Freeze)
	router.Post("/wallets/:walletID/unfreeze", h.Unfreeze)
	router.Post("/wallets/:walletID/charges", h.Charge)
}
