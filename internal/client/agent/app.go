// Package agent composes the client: cache store, outbox, API transport and
// sync loop, wired into one App the binary runs.
package agent

import (
	"context"

	"github.com/maildrift/maildrift/internal/client/api"
	"github.com/maildrift/maildrift/internal/client/config"
	"github.com/maildrift/maildrift/internal/client/outbox"
	"github.com/maildrift/maildrift/internal/client/store"
	"github.com/maildrift/maildrift/internal/client/syncer"
	"github.com/maildrift/maildrift/internal/logging"
)

// App owns the client's long-lived components and their lifecycle.
type App struct {
	cfg     *config.Config
	logger  logging.Logger
	store   *store.Store
	outbox  *outbox.Outbox
	api     *api.Client
	syncer  *syncer.Syncer
	actions *Actions

	kick chan struct{}
}

// New builds the client from configuration. The cache file is opened (and
// its schema applied) here; nothing touches the network yet.
func New(cfg *config.Config, logger logging.Logger) (*App, error) {
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	ob := outbox.New(st, logger)
	client := api.New(cfg.ServerURL, cfg.RequestTimeout, logger)
	kick := make(chan struct{}, 1)
	sc := syncer.New(st, ob, client, logger, cfg.SyncInterval, kick)

	app := &App{
		cfg:    cfg,
		logger: logger.With("module", "agent"),
		store:  st,
		outbox: ob,
		api:    client,
		syncer: sc,
		kick:   kick,
	}
	app.actions = NewActions(st, ob, logger, app.Kick)
	return app, nil
}

// Store exposes the cache for read paths (list views, live subscriptions).
func (a *App) Store() *store.Store { return a.store }

// Actions exposes the optimistic write surface.
func (a *App) Actions() *Actions { return a.actions }

// Kick requests an immediate sync cycle without waiting for the timer.
// Non-blocking; concurrent kicks coalesce. The syncer serves kicks from its
// own loop, so a kicked cycle never runs alongside a periodic one.
func (a *App) Kick() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// Run logs in and drives the sync loop until ctx is cancelled. The cache
// remains readable even if login or sync fails; only convergence stalls.
func (a *App) Run(ctx context.Context) error {
	if err := a.api.Login(ctx, a.cfg.Email, a.cfg.Password); err != nil {
		return err
	}
	a.logger.Info(ctx, "logged in", "server", a.cfg.ServerURL)

	return a.syncer.Run(ctx)
}

// Close releases the cache.
func (a *App) Close() error {
	return a.store.Close()
}
