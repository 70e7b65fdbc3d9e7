package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "taskboard:identity:"

// Redis - cache-aside для пар имя -> id пользователя.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Connect создает клиента и проверяет соединение.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("проверка соединения redis: %w", err)
	}
	return client, nil
}

func (c *Redis) Get(ctx context.Context, name string) (string, bool, error) {
	id, err := c.client.Get(ctx, c.prefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("чтение из кэша: %w", err)
	}
	return id, true, nil
}

func (c *Redis) Set(ctx context.Context, name, id string) error {
	if err := c.client.Set(ctx, c.prefix+name, id, c.ttl).Err(); err != nil {
		return fmt.Errorf("запись в кэш: %w", err)
	}
	return nil
}
