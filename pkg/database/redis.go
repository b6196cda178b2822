package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Akhilsri/SheetSolver-sub000/internal/config"
)

// redisPingTimeout ограничивает проверку подключения при старте
const redisPingTimeout = 5 * time.Second

// redisOptions собирает опции клиента из конфигурации и проверяет режим.
// Возвращает режим, в котором будет работать клиент.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	addresses := cfg.Addrs
	if len(addresses) == 0 {
		if cfg.Addr == "" {
			return nil, "", fmt.Errorf("redis configuration error: addrs or addr must be provided")
		}
		addresses = []string{cfg.Addr}
	}

	mode := cfg.Mode
	if mode == "" {
		mode = "single"
	}

	options := &redis.UniversalOptions{
		Addrs:        addresses,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
	}
	if cfg.MinRetryBackoff != 0 {
		options.MinRetryBackoff = time.Duration(cfg.MinRetryBackoff) * time.Millisecond
	}
	if cfg.MaxRetryBackoff != 0 {
		options.MaxRetryBackoff = time.Duration(cfg.MaxRetryBackoff) * time.Millisecond
	}

	switch mode {
	case "sentinel":
		if cfg.MasterName == "" {
			return nil, "", fmt.Errorf("redis sentinel mode requires master_name")
		}
		options.MasterName = cfg.MasterName
	case "cluster":
		if len(addresses) < 2 {
			// С одним адресом UniversalClient создал бы обычный клиент
			return nil, "", fmt.Errorf("redis cluster mode requires at least 2 addrs, got %d", len(addresses))
		}
		if cfg.DB != 0 {
			return nil, "", fmt.Errorf("redis cluster mode supports only db 0, got %d", cfg.DB)
		}
	case "single":
		if len(addresses) > 1 {
			addresses = addresses[:1]
			options.Addrs = addresses
		}
	default:
		return nil, "", fmt.Errorf("unsupported redis mode: %s", mode)
	}
	return options, mode, nil
}

// NewUniversalRedisClient создает клиент Redis для кеша тем, rate limiter'а и
// публикации событий дуэлей. Поддерживает режимы single, sentinel, cluster.
func NewUniversalRedisClient(cfg config.RedisConfig) (redis.UniversalClient, error) {
	options, mode, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewUniversalClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis for topic cache and duel events is unreachable (mode: %s, addrs: %v): %w", mode, options.Addrs, err)
	}
	return client, nil
}
