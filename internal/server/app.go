// Package server wires the storefront together: database, object storage,
// payment gateway, optional Redis and RabbitMQ, and the HTTP API.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/psicopedagogiando/tienda/internal/logging"
	"github.com/psicopedagogiando/tienda/internal/server/config"
	"github.com/psicopedagogiando/tienda/internal/server/events"
	"github.com/psicopedagogiando/tienda/internal/server/httpapi"
	"github.com/psicopedagogiando/tienda/internal/server/latch"
	"github.com/psicopedagogiando/tienda/internal/server/payments"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/repomanager"
	"github.com/psicopedagogiando/tienda/internal/server/services"
	"github.com/psicopedagogiando/tienda/internal/server/storage"
)

const (
	shutdownTimeout    = 10 * time.Second
	tokenPurgeInterval = time.Hour
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   redis.UniversalClient
	users   *services.UserService
	handler http.Handler
}

// OpenDB opens the PostgreSQL pool and verifies it answers.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// openRedis returns nil when no URL is configured or the server does not
// answer; Redis only backs optional features.
func openRedis(ctx context.Context, url string, logger logging.Logger) redis.UniversalClient {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn(ctx, "invalid redis url, continuing without redis", "err", err)
		return nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn(ctx, "redis unavailable, continuing without redis", "err", err)
		_ = client.Close()
		return nil
	}
	return client
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogFormat, c.LogLevel, "tienda", os.Stdout)

	db, err := OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := storage.New(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	rdb := openRedis(ctx, c.RedisURL, logger)

	var l latch.Latch = latch.NewMemory(c.LatchValidityDuration)
	if rdb != nil {
		l = latch.NewRedis(rdb, c.LatchValidityDuration)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if c.AMQPURL != "" {
		publisher = events.NewAMQPPublisher(c.AMQPURL)
	}

	gateway := payments.NewMercadoPagoClient(c, nil)
	if c.MercadoPagoAccessToken == "" {
		logger.Warn(ctx, "payment gateway token not set, checkout is disabled")
	}

	users := services.NewUserService(db, rm, c)
	catalog := services.NewCatalogService(db, rm, store, logger)
	svc := httpapi.Services{
		Users:      users,
		Catalog:    catalog,
		Purchases:  services.NewPurchaseService(db, rm, store, gateway, logger),
		Reconciler: services.NewReconciler(db, rm, l, publisher, logger),
		Content:    services.NewContentService(db, rm, store, catalog, logger),
	}
	handler := httpapi.NewRouter(httpapi.NewHandler(svc, c, logger, rdb))

	return &App{config: c, logger: logger, db: db, redis: rdb, users: users, handler: handler}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown error", "err", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server error", "err", err)
		cancelFunc()
	}
}

func (app *App) purgeTokens(ctx context.Context) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.users.PurgeExpiredTokens(ctx)
			if err != nil {
				app.logger.Warn(ctx, "refresh token purge failed", "err", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired refresh tokens purged", "count", n)
			}
		}
	}
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests and
// closes the backing connections.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.purgeTokens(ctx)
	}()

	wg.Wait()

	if app.redis != nil {
		_ = app.redis.Close()
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "err", err)
	}
	app.logger.Info(context.Background(), "app stopped")
}
