package parameters

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSource keeps parameters as plain string keys, one key per entry name.
type RedisSource struct {
	client redis.Cmdable
}

func NewRedisSource(client redis.Cmdable) *RedisSource {
	return &RedisSource{client: client}
}

func (s *RedisSource) Get(ctx context.Context, name string) (string, error) {
	value, err := s.client.Get(ctx, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set writes an entry. Used by the params command; the service itself never writes.
func (s *RedisSource) Set(ctx context.Context, name, value string) error {
	return s.client.Set(ctx, name, value, 0).Err()
}
