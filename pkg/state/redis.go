package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"axiombot/pkg/logger"
)

// maxTxRetries bounds optimistic-lock retries when two writers race on a section.
const maxTxRetries = 8

// RedisBackend stores each section under its own key.
type RedisBackend struct {
	log    *logger.Logger
	client *redis.Client
	prefix string
}

// RedisBackendConfig configures the Redis backend.
type RedisBackendConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key namespace, default "axiombot:"
}

// NewRedisBackend connects and pings the server.
func NewRedisBackend(log *logger.Logger, cfg *RedisBackendConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisBackend(log, client, cfg.Prefix)
}

func newRedisBackend(log *logger.Logger, client *redis.Client, prefix string) (*RedisBackend, error) {
	if prefix == "" {
		prefix = "axiombot:"
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	log.Info("Connected to Redis",
		zap.String("addr", client.Options().Addr),
		zap.Int("db", client.Options().DB),
		zap.String("prefix", prefix))

	return &RedisBackend{log: log, client: client, prefix: prefix}, nil
}

func (r *RedisBackend) key(section string) string {
	return r.prefix + section
}

func (r *RedisBackend) Load(ctx context.Context, section string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(section)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (r *RedisBackend) Update(ctx context.Context, section string, fn UpdateFunc) error {
	key := r.key(section)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			r.log.Debug("Section changed during update, retrying",
				zap.String("section", section), zap.Int("attempt", attempt+1))
			continue
		}
		return err
	}
	return fmt.Errorf("redis update %s: too much contention", section)
}

func (r *RedisBackend) Sections(ctx context.Context) ([]string, error) {
	var names []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the Redis connection.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
