package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"DoeInteligente/internal/config"
	"DoeInteligente/internal/favorites"
	"DoeInteligente/internal/repository"
	"DoeInteligente/internal/service"
	externalHttp "DoeInteligente/internal/transport/http"
	"DoeInteligente/pkg/cache"
	"DoeInteligente/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and SPA server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// runServe собирает зависимости по конфигурации и запускает HTTP-сервер с graceful shutdown
func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []func(context.Context) error

	// хранилище заявок
	var repo service.RequestRepo
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := openPostgres(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err := migrateUp(db, cfg.Migrations.Postgres); err != nil {
			return err
		}
		repo = repository.NewRequestRepository(db)
		checks = append(checks, db.PingContext)
		log.Info("using postgres request storage", zap.String("host", cfg.DB.Host), zap.String("db", cfg.DB.Name))
	default:
		repo = repository.NewMemoryRequestRepository(repository.SeedRequests(time.Now().UTC()))
		log.Info("using in-memory request storage")
	}

	// избранное: Redis или память процесса
	var persistence favorites.Persistence = favorites.NewMemoryPersistence()
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer func() {
			if err := rc.Close(); err != nil {
				log.Warn("failed to close Redis client", zap.Error(err))
			}
		}()
		if err := rc.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping Redis: %w", err)
		}
		persistence = favorites.NewRedisPersistence(rc)
		checks = append(checks, rc.Ping)
		log.Info("favorites stored in redis", zap.String("addr", cfg.Redis.Addr))
	}
	favs := favorites.NewStore(persistence, cfg.Favorites.StorageName)

	// публикация событий: NATS или отбрасывание
	var pub service.Publisher = logger.Discard{}
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer func() {
			// корректно дренируем и закрываем NATS-соединение
			if err := nc.Drain(); err != nil {
				log.Warn("failed to drain NATS connection", zap.Error(err))
			}
			nc.Close()
		}()
		pub = logger.NewClient(nc, cfg.NATS.Subject)
		checks = append(checks, func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		})
		log.Info("publishing events to nats", zap.String("subject", cfg.NATS.Subject))
	}

	requests := service.NewRequestsService(repo, favs, pub, log, cfg.HTTP.PublicURL)
	registration := service.NewRegistrationService(pub, log)

	// настраиваем HTTP маршруты и middleware
	r := mux.NewRouter()
	r.Use(externalHttp.LoggingMiddleware(log), externalHttp.RecoveryMiddleware(log), externalHttp.CacheControlMiddleware)
	h := externalHttp.NewHandler(requests, registration, log,
		externalHttp.WithIndexFile(cfg.HTTP.IndexFile),
		externalHttp.WithReadiness(func(ctx context.Context) error {
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		}))
	h.RegisterRoutes(r)

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.HTTP.Addr), zap.String("api", cfg.HTTP.PublicURL+"/api"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server exited properly")
	return nil
}

// openPostgres подключается к Postgres и проверяет соединение
func openPostgres(ctx context.Context, c config.DB) (*sql.DB, error) {
	db, err := sql.Open("postgres", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	return db, nil
}
