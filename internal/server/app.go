// Package server wires the sync server together: database, migrations,
// services and the HTTP API.
package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/maildrift/maildrift/internal/logging"
	"github.com/maildrift/maildrift/internal/server/config"
	"github.com/maildrift/maildrift/internal/server/httpapi"
	"github.com/maildrift/maildrift/internal/server/ratelimit"
	"github.com/maildrift/maildrift/internal/server/repo"
	"github.com/maildrift/maildrift/internal/server/services"
)

// App owns the server's long-lived components and their lifecycle.
type App struct {
	cfg    *config.Config
	logger logging.Logger
	db     *repo.Manager
	http   *httpapi.Server
}

// NewApp builds the server from configuration, connecting to Postgres and
// applying pending migrations.
func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewJSON()

	db, err := repo.Open(context.Background(), cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	secret := []byte(cfg.SecretKey)
	users := services.NewUserService(db.Conn(), logger, secret,
		cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)
	feedSvc := services.NewFeedService(db.Conn(), logger)
	mutations := services.NewMutationService(db.Conn(), logger)
	limiter := ratelimit.New(cfg.RateLimitPerWindow, cfg.RateLimitWindow)

	return &App{
		cfg:    cfg,
		logger: logger,
		db:     db,
		http:   httpapi.New(cfg.EndpointAddr, logger, users, feedSvc, mutations, limiter),
	}, nil
}

// Run serves until interrupted, then shuts down cleanly.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.db.Close()

	return a.http.Run(ctx)
}
