// Package rest exposes the authentication and project membership operations
// over HTTP using echo.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/guard"
	"github.com/dmitrijs2005/gatekeeper/internal/server/notify"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/projectusers"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/users"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// Deps bundles everything the HTTP layer calls into.
type Deps struct {
	Sessions    SessionService
	Credentials CredentialService
	Guard       Authorizer
	Users       users.Repository
	Members     projectusers.Repository
	Notifier    notify.Notifier
	Logger      logging.Logger
	// AccessSecret verifies bearer tokens.
	AccessSecret []byte
	// Redis enables rate limiting on credential endpoints when non-nil.
	Redis     *redis.Client
	RateLimit RateLimitConfig
}

type HTTPServer struct {
	address string
	echo    *echo.Echo
	logger  logging.Logger
}

func NewHTTPServer(address string, d Deps) *HTTPServer {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	logger = logger.With("module", "http_server")
	d.Logger = logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	h := &handler{
		sessions:    d.Sessions,
		credentials: d.Credentials,
		users:       d.Users,
		members:     d.Members,
		notifier:    d.Notifier,
		logger:      logger,
	}
	limited := NewTokenBucket(d.RateLimit, d.Redis, logger)
	authn := BearerAuth(d.AccessSecret)

	e.GET("/healthz", h.health)

	a := e.Group("/auth")
	a.POST("/login", h.login, limited)
	a.POST("/refresh", h.refresh)
	a.POST("/logout", h.logout)
	a.POST("/forgot-password", h.forgotPassword, limited)
	a.POST("/reset-password", h.resetPassword)
	a.POST("/verify", h.verify)

	e.GET("/me", h.me, authn)

	p := e.Group("/projects", authn)
	p.GET("/:projectId/users", h.listProjectUsers, ProjectAccess(d.Guard, guard.AccessUser))
	p.POST("/users", h.addProjectUser, ProjectAccess(d.Guard, guard.AccessAdmin))
	p.DELETE("/:projectId/users/:userId", h.removeProjectUser, ProjectAccess(d.Guard, guard.AccessAdmin))

	return &HTTPServer{address: address, echo: e, logger: logger}
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		errCh <- s.echo.Start(s.address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
