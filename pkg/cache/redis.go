// Пакет cache предоставляет обёртку для работы с Redis как хранилищем блобов
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss возвращается, когда запрошенный ключ отсутствует в Redis.
// Используется для явного отличия отсутствия ключа от других ошибок Redis.
var ErrCacheMiss = errors.New("cache miss")

// RedisClient обёртка над *redis.Client с методами Set, Get и Ping
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient создаёт новый RedisClient с заданными опциями подключения
func NewRedisClient(opts *redis.Options) *RedisClient {
	return &RedisClient{client: redis.NewClient(opts)}
}

// NewRedisClientFrom оборачивает уже созданный *redis.Client
func NewRedisClientFrom(c *redis.Client) *RedisClient {
	return &RedisClient{client: c}
}

// Set сохраняет значение value под ключом key.
// expiration 0 означает хранение без срока жизни
func (r *RedisClient) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Get возвращает значение по ключу key.
// Если ключ не найден (redis.Nil), возвращается ErrCacheMiss
func (r *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Ping проверяет доступность Redis (используется в /readyz)
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение с Redis
func (r *RedisClient) Close() error {
	return r.client.Close()
}
