// Package httpapi exposes the sync engine over HTTP: token auth, the delta
// feed and the mutation endpoint. Handlers depend on small interfaces so
// tests can drive them with fakes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maildrift/maildrift/internal/feed"
	"github.com/maildrift/maildrift/internal/logging"
	"github.com/maildrift/maildrift/internal/server/ratelimit"
	"github.com/maildrift/maildrift/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// UserAPI is the slice of the user service the handlers need.
type UserAPI interface {
	Register(ctx context.Context, email, password, displayName string) (*feed.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(accessToken string) (string, error)
}

// FeedAPI compiles delta bundles for the changes endpoint.
type FeedAPI interface {
	Compile(ctx context.Context, userID string, since int64) (*feed.Bundle, error)
}

// MutationAPI applies actions for the mutate endpoint.
type MutationAPI interface {
	Apply(ctx context.Context, userID string, action feed.Action) (*feed.Bundle, error)
}

// Server wires the services into a gin router and owns the HTTP lifecycle.
type Server struct {
	addr      string
	logger    logging.Logger
	users     UserAPI
	feed      FeedAPI
	mutations MutationAPI
	limiter   *ratelimit.Limiter
	engine    *gin.Engine
}

func New(addr string, logger logging.Logger, users UserAPI, feedAPI FeedAPI, mutations MutationAPI, limiter *ratelimit.Limiter) *Server {
	s := &Server{
		addr:      addr,
		logger:    logger.With("module", "httpapi"),
		users:     users,
		feed:      feedAPI,
		mutations: mutations,
		limiter:   limiter,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	api := engine.Group("/api")
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/refresh", s.handleRefresh)
	api.POST("/auth/logout", s.handleLogout)

	authed := api.Group("", s.bearerAuth)
	authed.GET("/changes", s.handleChanges)
	authed.POST("/mutate", s.rateLimit, s.handleMutate)

	s.engine = engine
	return s
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests. A
// background ticker sweeps expired rate-limit buckets while serving.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	s.logger.Info(ctx, "http server started", "addr", s.addr)
	for {
		select {
		case <-sweep.C:
			s.limiter.Sweep()
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			s.logger.Info(ctx, "http server stopping")
			return srv.Shutdown(shutdownCtx)
		}
	}
}
