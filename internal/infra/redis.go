package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the Redis instance holding challenges, idempotency
// records and rate-limit counters. Connections are named after the application so
// they can be told apart in CLIENT LIST.
func NewRedisClient(ctx context.Context, url, appName string) (*redis.Client, error) {
	opt, err := redisOptions(url, appName)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func redisOptions(url, appName string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = clientName(appName)
	}
	return opt, nil
}

// clientName turns an application name into a token Redis accepts as a
// connection name, which may not contain spaces.
func clientName(appName string) string {
	return strings.Join(strings.Fields(strings.ToLower(appName)), "-")
}
