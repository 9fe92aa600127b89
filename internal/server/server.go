package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cargoloop/cargoloop/internal/config"
	"github.com/cargoloop/cargoloop/internal/routes"
	"github.com/cargoloop/cargoloop/internal/wallet"
)

// Server wraps the Fiber application, shared dependencies, and the
// background sweeper.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	sweeper *wallet.Sweeper
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	sweeper, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, sweeper: sweeper}, nil
}

// Listen starts the sweeper and the HTTP server.
func (s *Server) Listen() error {
	s.sweeper.Start()
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops the sweeper and gracefully drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sweeper.Stop()
	return s.app.ShutdownWithContext(ctx)
}
