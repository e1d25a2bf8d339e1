package repository

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"DoeInteligente/internal/model"
)

// ClickhouseRepo реализует пакетную запись событий в ClickHouse (таблица events_log)
type ClickhouseRepo struct {
	db  *sql.DB
	log *zap.Logger
}

// NewClickhouseRepo создаёт новый репозиторий для ClickHouse
func NewClickhouseRepo(db *sql.DB, log *zap.Logger) *ClickhouseRepo {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClickhouseRepo{db: db, log: log}
}

// BatchInsertLogs записывает пакет событий в events_log.
// clickhouse-go собирает все Exec подготовленного выражения в один блок и отправляет его при Commit
func (r *ClickhouseRepo) BatchInsertLogs(ctx context.Context, events []model.Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	r.log.Debug("clickhouse batch insert started", zap.Int("events", len(events)))
	query := `INSERT INTO events_log (Id, Kind, Payload, EventTime) VALUES (?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Kind, string(e.Payload), e.OccurredAt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.log.Info("clickhouse batch inserted", zap.Int("events", len(events)))
	return nil
}
