package staletrack

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultKeyPrefix = "kensaku:stale:"

// RedisConfig configures the Redis tracker
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
	KeyPrefix  string
}

// Redis stores entries in one hash per entity kind
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisClient creates a Redis client from config and checks the
// connection.
func NewRedisClient(ctx context.Context, config RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.DB > 0 {
		opts.DB = config.DB
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// NewRedis wraps an existing client
func NewRedis(client *redis.Client, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Redis{
		client: client,
		prefix: keyPrefix,
		now:    time.Now,
	}
}

func (r *Redis) key(kind string) string {
	return r.prefix + kind
}

func (r *Redis) Mark(ctx context.Context, kind string, id int64, reason string, cause error) error {
	key := r.key(kind)
	field := strconv.FormatInt(id, 10)

	var prev *Entry
	data, err := r.client.HGet(ctx, key, field).Result()
	switch {
	case err == redis.Nil:
	case err != nil:
		return fmt.Errorf("redis hget failed: %w", err)
	default:
		var e Entry
		// A corrupt entry is overwritten rather than blocking the mark
		if json.Unmarshal([]byte(data), &e) == nil {
			prev = &e
		}
	}

	payload, err := json.Marshal(newEntry(prev, kind, id, reason, cause, r.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if err := r.client.HSet(ctx, key, field, payload).Err(); err != nil {
		return fmt.Errorf("redis hset failed: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, kind string, id int64) error {
	if err := r.client.HDel(ctx, r.key(kind), strconv.FormatInt(id, 10)).Err(); err != nil {
		return fmt.Errorf("redis hdel failed: %w", err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context, kind string, limit int) ([]Entry, error) {
	key := r.key(kind)
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for field, data := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			// Drop corrupt data so it cannot wedge the repair loop
			r.client.HDel(ctx, key, field)
			continue
		}
		entries = append(entries, e)
	}

	return sortAndLimit(entries, limit), nil
}
