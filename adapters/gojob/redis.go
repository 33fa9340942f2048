package gojob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jobredis "github.com/goliatone/go-job/queue/adapters/redis"
	goredis "github.com/redis/go-redis/v9"
)

const defaultQueueName = "dtuevent:jobs"

// RedisClient exposes a go-redis client through the operations the go-job
// redis storage needs. Missing keys read as empty values.
type RedisClient struct {
	client goredis.UniversalClient
}

func NewRedisClient(client goredis.UniversalClient) *RedisClient {
	return &RedisClient{client: client}
}

func (c *RedisClient) HSet(ctx context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	fields := make(map[string]any, len(values))
	for field, value := range values {
		fields[field] = value
	}
	return c.client.HSet(ctx, key, fields).Err()
}

func (c *RedisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, key).Result()
}

func (c *RedisClient) HGet(ctx context.Context, key, field string) (string, error) {
	value, err := c.client.HGet(ctx, key, field).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return value, err
}

func (c *RedisClient) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return c.client.HDel(ctx, key, fields...).Err()
}

func (c *RedisClient) LPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	return c.client.LPush(ctx, key, toAny(values)...).Err()
}

func (c *RedisClient) RPop(ctx context.Context, key string) (string, error) {
	value, err := c.client.RPop(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return value, err
}

func (c *RedisClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.client.ZAdd(ctx, key, goredis.Z{Score: score, Member: member}).Err()
}

func (c *RedisClient) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return c.client.ZRem(ctx, key, toAny(members)...).Err()
}

func (c *RedisClient) ZRangeByScore(ctx context.Context, key string, max float64, limit int64) ([]jobredis.ZItem, error) {
	scored, err := c.client.ZRangeByScoreWithScores(ctx, key, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(max, 'f', -1, 64),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	items := make([]jobredis.ZItem, 0, len(scored))
	for _, z := range scored {
		items = append(items, jobredis.ZItem{Member: fmt.Sprint(z.Member), Score: z.Score})
	}
	return items, nil
}

func (c *RedisClient) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	result, err := c.client.Eval(ctx, script, keys, args...).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	return result, err
}

func (c *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

func (c *RedisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

type RedisQueueConfig struct {
	Name              string
	VisibilityTimeout time.Duration
}

// NewRedisQueue returns a go-job queue that both enqueues and dequeues.
func NewRedisQueue(client goredis.UniversalClient, cfg RedisQueueConfig) (*jobredis.Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("gojob: redis client is required")
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = defaultQueueName
	}
	storage := jobredis.NewStorage(NewRedisClient(client),
		jobredis.WithQueueName(name),
		jobredis.WithVisibilityTimeout(cfg.VisibilityTimeout),
	)
	return jobredis.NewAdapter(storage), nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}
	return out
}

var _ jobredis.Client = (*RedisClient)(nil)
