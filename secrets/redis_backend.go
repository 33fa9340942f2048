package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "dtuevent:secrets:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisBackend stores each secret as a marker key plus a list of versions.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBackend connects and pings the server before returning.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("secrets: redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("secrets: redis ping: %w", err)
	}
	return NewRedisBackendWithClient(client, cfg.Prefix), nil
}

func NewRedisBackendWithClient(client redis.UniversalClient, prefix string) *RedisBackend {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) CreateSecret(ctx context.Context, name string) error {
	created, err := b.client.SetNX(ctx, b.markerKey(name), time.Now().UTC().Format(time.RFC3339), 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return ErrSecretExists
	}
	return nil
}

func (b *RedisBackend) AddVersion(ctx context.Context, name string, payload []byte) error {
	exists, err := b.client.Exists(ctx, b.markerKey(name)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("secrets: secret %s does not exist", name)
	}
	return b.client.RPush(ctx, b.versionsKey(name), payload).Err()
}

func (b *RedisBackend) AccessLatest(ctx context.Context, name string) ([]byte, error) {
	payload, err := b.client.LIndex(ctx, b.versionsKey(name), -1).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (b *RedisBackend) VersionCount(ctx context.Context, name string) (int, error) {
	count, err := b.client.LLen(ctx, b.versionsKey(name)).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) markerKey(name string) string {
	return b.prefix + strings.TrimSpace(name)
}

func (b *RedisBackend) versionsKey(name string) string {
	return b.markerKey(name) + ":versions"
}

var (
	_ Backend        = (*RedisBackend)(nil)
	_ VersionCounter = (*RedisBackend)(nil)
)
