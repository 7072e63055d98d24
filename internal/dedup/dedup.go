// Package dedup запоминает уже обработанные комментарии в Redis.
// После переподключения платформа может прислать часть комментариев повторно:
// леджер и так не начислит очко дважды, но маркер экономит лишние запросы к API.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const keyPrefix = "points-bot:comment:"

// Redis — маркеры обработанных комментариев с TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis подключается к Redis и проверяет соединение.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s недоступен: %w", addr, err)
	}
	log.WithField("addr", addr).Info("Подключение к Redis установлено")
	return New(client, ttl), nil
}

// New оборачивает готовый клиент.
func New(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Seen атомарно ставит маркер и сообщает, стоял ли он уже.
func (r *Redis) Seen(ctx context.Context, commentID string) (bool, error) {
	created, err := r.client.SetNX(ctx, keyPrefix+commentID, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}
	return !created, nil
}

// Forget снимает маркер, чтобы комментарий можно было обработать ещё раз.
func (r *Redis) Forget(ctx context.Context, commentID string) error {
	return r.client.Del(ctx, keyPrefix+commentID).Err()
}

// Close закрывает соединение.
func (r *Redis) Close() error {
	return r.client.Close()
}
