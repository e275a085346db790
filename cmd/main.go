package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/events"
	httpapi "storefront/internal/http"
	"storefront/internal/logger"
	"storefront/internal/policy"
	"storefront/internal/repository"
	"storefront/internal/service"

	_ "storefront/docs"
)

const eventQueueSize = 256

// @title Storefront API
// @version 1.0
// @description Carts, checkout and order management for an online shop.
// @BasePath /api/v1
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeStore, err := openStorage(ctx, cfg.Storage, zl)
	if err != nil {
		return err
	}
	defer closeStore()

	pub := openEvents(ctx, cfg.NATS, zl)
	defer pub.Close()

	authz := policy.NewRolePolicy()
	productsSvc := service.NewProductService(repos.Products, authz, zl)
	customersSvc := service.NewCustomerService(repos, authz, zl)
	cartsSvc := service.NewCartService(repos, productsSvc, authz, pub, zl)
	ordersSvc := service.NewOrderService(repos, productsSvc, authz, pub, zl,
		service.WithStrictTransitions(cfg.Orders.StrictTransitions))

	if cfg.Bootstrap.AdminUsername != "" {
		if _, err := customersSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminEmail); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	srv := httpapi.NewServer(productsSvc, customersSvc, cartsSvc, ordersSvc, zl)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv.Engine(),
	}

	serveErr := make(chan error, 1)
	go func() {
		zl.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down", zap.Duration("timeout", cfg.HTTP.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStorage(ctx context.Context, cfg config.StorageConfig, zl *zap.Logger) (repository.Repositories, func(), error) {
	if cfg.Backend != config.StoragePostgres {
		zl.Info("using in-memory storage")
		return repository.NewMemoryRepositories(), func() {}, nil
	}
	db, err := repository.OpenPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return repository.Repositories{}, nil, fmt.Errorf("open postgres: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			zl.Warn("close postgres", zap.Error(err))
		}
	}
	if err := repository.Migrate(ctx, db); err != nil {
		closeDB()
		return repository.Repositories{}, nil, fmt.Errorf("migrate: %w", err)
	}
	zl.Info("connected to postgres")
	return repository.NewPostgresRepositories(db), closeDB, nil
}

// openEvents без NATS_URL или при недоступном брокере события не публикуются
func openEvents(ctx context.Context, cfg config.NATSConfig, zl *zap.Logger) events.Publisher {
	if cfg.URL == "" {
		zl.Info("NATS URL not set, event publishing disabled")
		return events.Noop{}
	}
	pub, err := events.Connect(ctx, cfg.URL, zl)
	if err != nil {
		zl.Warn("failed to connect to NATS, continuing without event publishing",
			zap.String("url", cfg.URL), zap.Error(err))
		return events.Noop{}
	}
	zl.Info("connected to NATS", zap.String("url", cfg.URL))
	return events.NewAsync(pub, eventQueueSize, zl)
}
