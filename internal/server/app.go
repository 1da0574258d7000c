// Package server wires storage, services and both transports together and
// runs them until the process receives a termination signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/guard"
	"github.com/dmitrijs2005/gatekeeper/internal/server/notify"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/rest"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gatekeeper/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	redis    *redis.Client
	notifier notify.Notifier
	http     *rest.HTTPServer
	grpc     *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	issuer := services.NewTokenIssuer(db, rm, c.SecretKey)
	sessions := services.NewSessionManager(db, rm, issuer, c)
	verifier := services.NewCredentialVerifier(db, rm, issuer, cryptox.NewPasswordHasher(c.BcryptCost))

	app := &App{config: c, logger: logger, db: db}

	if c.AMQPURL != "" {
		p, err := notify.NewAMQPPublisher(c.AMQPURL, c.ResetQueue)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("amqp init error: %w", err)
		}
		app.notifier = p
	} else {
		app.notifier = notify.NewLogNotifier(logger)
	}

	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	}

	httpGuard := guard.New(rm.Projects(db), rm.ProjectUsers(db), guard.WithLogger(logger))
	grpcGuard := guard.New(rm.Projects(db), rm.ProjectUsers(db), guard.WithLogger(logger),
		guard.AddRules(guard.Rule{Source: guard.SourceMetadata, Name: "project_id"}))

	app.http = rest.NewHTTPServer(c.EndpointAddrHTTP, rest.Deps{
		Sessions:     sessions,
		Credentials:  verifier,
		Guard:        httpGuard,
		Users:        rm.Users(db),
		Members:      rm.ProjectUsers(db),
		Notifier:     app.notifier,
		Logger:       logger,
		AccessSecret: []byte(c.SecretKey),
		Redis:        app.redis,
		RateLimit: rest.RateLimitConfig{
			Capacity:       c.RateLimitCapacity,
			RefillInterval: c.RateLimitRefillInterval,
		},
	})
	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, sessions, verifier, grpcGuard, rm.ProjectUsers(db), c.SecretKey)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) serve(ctx context.Context, cancelFunc context.CancelFunc, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		app.logger.Error(ctx, "server stopped", "server", name, "error", err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.serve(ctx, cancelFunc, "http", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.serve(ctx, cancelFunc, "grpc", app.grpc.Run)
	}()

	wg.Wait()

	app.close(ctx)
}

func (app *App) close(ctx context.Context) {
	if err := app.notifier.Close(); err != nil {
		app.logger.Warn(ctx, "notifier close failed", "error", err.Error())
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "redis close failed", "error", err.Error())
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err.Error())
	}
	app.logger.Info(ctx, "App stopped")
}
