package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "picker:"

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// EventChannel is the pub/sub channel for a topic of admin-facing events.
func EventChannel(topic string) string {
	return fmt.Sprintf("%sevents:%s", keyPrefix, topic)
}

// AdminSessionKey is where an admin session is stored, keyed by token hash.
func AdminSessionKey(tokenHash string) string {
	return fmt.Sprintf("%sadmin_session:%s", keyPrefix, tokenHash)
}

// RateLimitKey namespaces sliding-window limiter buckets.
func RateLimitKey(key string) string {
	return fmt.Sprintf("%sratelimit:%s", keyPrefix, key)
}
