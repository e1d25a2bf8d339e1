// Пакет logger предоставляет структурированный логгер (zap) и публикацию событий в NATS
package logger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"DoeInteligente/internal/model"
)

// Conn определяет минимальный интерфейс NATS-подключения.
// *nats.Conn удовлетворяет ему через метод Publish
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSClient хранит Conn и тему subject для публикации событий
type NATSClient struct {
	conn    Conn
	subject string
	now     func() time.Time
}

// NewClient создаёт новый NATSClient, связывая Conn и subject
func NewClient(conn Conn, subject string) *NATSClient {
	return &NATSClient{conn: conn, subject: subject, now: time.Now}
}

// PublishLog отправляет сырые данные в subject
func (n *NATSClient) PublishLog(data []byte) error {
	return n.conn.Publish(n.subject, data)
}

// PublishEvent упаковывает payload в model.Event с указанным kind и публикует его
func (n *NATSClient) PublishEvent(kind string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	data, err := json.Marshal(model.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    raw,
		OccurredAt: n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return n.PublishLog(data)
}

// Discard публикатор, отбрасывающий события (NATS не настроен)
type Discard struct{}

func (Discard) PublishEvent(string, interface{}) error { return nil }
