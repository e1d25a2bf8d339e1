package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/ClickHouse/clickhouse-go"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/clickhouse"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"DoeInteligente/internal/config"
	"DoeInteligente/internal/consumer"
	"DoeInteligente/internal/repository"
	"DoeInteligente/pkg/logger"
)

func main() {
	// Читаем конфигурацию из окружения (и config.yaml, если есть)
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("consumer stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	if cfg.NATS.URL == "" || cfg.ClickHouse.DSN == "" {
		return errors.New("nats.url and clickhouse.dsn are required")
	}

	// Подключаемся к NATS
	nc, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	// Подключаемся к ClickHouse
	db, err := sql.Open("clickhouse", cfg.ClickHouse.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer func() { _ = db.Close() }()

	// Применяем миграции ClickHouse с помощью golang-migrate
	driver, err := clickhouse.WithInstance(db, &clickhouse.Config{})
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.Migrations.ClickHouse, "clickhouse", driver)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply ClickHouse migrations: %w", err)
	}

	// Создаём репозиторий и консьюмера
	repo := repository.NewClickhouseRepo(db, log)
	cons := consumer.NewConsumer(repo, cfg.Consumer.BatchSize, log)

	// HTTP-сервер для healthz и readyz
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !nc.IsConnected() || db.PingContext(r.Context()) != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	healthSrv := &http.Server{Addr: ":" + cfg.Consumer.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info("starting health server", zap.String("port", cfg.Consumer.Port))
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Периодический сброс буфера
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cons.Run(ctx, cfg.Consumer.FlushInterval)
	}()

	// Подписываемся на тему NATS
	sub, err := nc.Subscribe(cfg.NATS.Subject, func(msg *nats.Msg) {
		if err := cons.HandleMessage(context.Background(), msg.Data); err != nil {
			log.Error("failed to handle message", zap.Error(err))
		}
	})
	if err != nil {
		stop()
		wg.Wait()
		return fmt.Errorf("failed to subscribe to subject %s: %w", cfg.NATS.Subject, err)
	}
	log.Info("consuming events", zap.String("subject", cfg.NATS.Subject), zap.Int("batch", cfg.Consumer.BatchSize))

	// Ждём сигнала завершения
	<-ctx.Done()
	log.Info("shutting down consumer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("health server shutdown failed", zap.Error(err))
	}
	wg.Wait()

	// Отписываемся и сбрасываем оставшиеся события
	if err := sub.Unsubscribe(); err != nil {
		log.Warn("failed to unsubscribe", zap.Error(err))
	}
	if err := cons.Flush(shutdownCtx); err != nil {
		return fmt.Errorf("failed to flush consumer events: %w", err)
	}
	return nil
}
