package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cargoloop/cargoloop/internal/config"
	"github.com/cargoloop/cargoloop/internal/hold"
	"github.com/cargoloop/cargoloop/internal/middleware"
	"github.com/cargoloop/cargoloop/internal/notification"
	"github.com/cargoloop/cargoloop/internal/reconciliation"
	"github.com/cargoloop/cargoloop/internal/refund"
	"github.com/cargoloop/cargoloop/internal/topup"
	"github.com/cargoloop/cargoloop/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. It returns the
// background sweeper so the server can manage its lifecycle.
func Setup(app *fiber.App, d Deps) (*wallet.Sweeper, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.TenantRateLimit(d.Cache, d.Cfg.TenantRateLimit))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Engine store: Postgres in production, in-memory for development.
	var store wallet.Store
	var reports reconciliation.ReportStore
	if d.DB != nil {
		store = wallet.NewPostgresStore(d.DB)
		reports = reconciliation.NewPostgresReportStore(d.DB)
	} else {
		store = wallet.NewMemoryStore()
		reports = reconciliation.NewMemoryReportStore()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	walletSvc := wallet.NewService(store, notifier)

	holdSvc, err := hold.NewService(store, walletSvc, d.Cfg.HoldTTL)
	if err != nil {
		return nil, err
	}
	topupSvc, err := topup.NewService(store, walletSvc, nil, d.Cfg.PaymentGateway)
	if err != nil {
		return nil, err
	}
	refundSvc := refund.NewService(store)
	reconSvc, err := reconciliation.NewService(store, reconciliation.StaticProvider{}, reports)
	if err != nil {
		return nil, err
	}

	walletHandler := wallet.NewHandler(walletSvc)
	holdHandler := hold.NewHandler(holdSvc)
	topupHandler := topup.NewHandler(topupSvc)
	refundHandler := refund.NewHandler(refundSvc)
	reconHandler := reconciliation.NewHandler(reconSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, walletHandler)
	RegisterHoldRoutes(api, holdHandler)
	RegisterTopupRoutes(api, topupHandler)
	RegisterRefundRoutes(api, refundHandler)
	RegisterReconciliationRoutes(api, reconHandler)

	sweeper := wallet.NewSweeper(store, d.Cfg.SweepInterval, d.Cfg.TopupPendingTTL, d.Logger)
	return sweeper, nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
