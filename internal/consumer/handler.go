// Пакет consumer читает события из NATS и пакетно пишет их в ClickHouse
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"DoeInteligente/internal/model"
)

// ErrInvalidEvent возвращается для сообщений без id или kind
var ErrInvalidEvent = errors.New("event without id or kind")

// Repo описывает интерфейс репозитория ClickHouse для пакетной записи событий
type Repo interface {
	BatchInsertLogs(ctx context.Context, events []model.Event) error
}

// Consumer буферизует события и отправляет их пакетно в ClickHouse.
// batchSize определяет макс. количество событий до отправки, mu защищает буфер
type Consumer struct {
	repo      Repo
	batchSize int
	log       *zap.Logger
	events    []model.Event
	mu        sync.Mutex
}

// NewConsumer создаёт Consumer с указанным репозиторием и размером пакета
func NewConsumer(repo Repo, batchSize int, log *zap.Logger) *Consumer {
	if batchSize < 1 {
		batchSize = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{repo: repo, batchSize: batchSize, log: log, events: make([]model.Event, 0, batchSize)}
}

// HandleMessage разбирает событие из NATS, добавляет его в буфер
// и при достижении batchSize отправляет пакет в ClickHouse
func (c *Consumer) HandleMessage(ctx context.Context, data []byte) error {
	var e model.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	if e.ID == "" || e.Kind == "" {
		return ErrInvalidEvent
	}
	c.log.Debug("event received", zap.String("id", e.ID), zap.String("kind", e.Kind))

	c.mu.Lock()
	c.events = append(c.events, e)
	if len(c.events) < c.batchSize {
		c.mu.Unlock()
		return nil
	}
	batch := c.take()
	c.mu.Unlock()
	return c.repo.BatchInsertLogs(ctx, batch)
}

// take забирает копию буфера; вызывается под mu
func (c *Consumer) take() []model.Event {
	batch := make([]model.Event, len(c.events))
	copy(batch, c.events)
	c.events = c.events[:0]
	return batch
}

// Flush отправляет все накопленные события, если они есть
func (c *Consumer) Flush(ctx context.Context) error {
	c.mu.Lock()
	if len(c.events) == 0 {
		c.mu.Unlock()
		return nil
	}
	batch := c.take()
	c.mu.Unlock()
	return c.repo.BatchInsertLogs(ctx, batch)
}

// Run сбрасывает буфер каждые interval, пока не отменён ctx.
// Остаток после отмены сбрасывает вызывающий через Flush
func (c *Consumer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Flush(ctx); err != nil {
				c.log.Error("periodic flush failed", zap.Error(err))
			}
		}
	}
}
