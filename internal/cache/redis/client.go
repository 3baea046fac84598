package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/contact-recon/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) SetDomainPattern(ctx context.Context, domain string, pattern interface{}, ttl time.Duration) error {
	data, err := json.Marshal(pattern)
	if err != nil {
		return fmt.Errorf("failed to marshal pattern: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("pattern:%s", domain), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set pattern cache: %w", err)
	}

	return nil
}

func (c *Client) GetDomainPattern(ctx context.Context, domain string, pattern interface{}) (bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("pattern:%s", domain)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get pattern cache: %w", err)
	}

	err = json.Unmarshal(data, pattern)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal pattern: %w", err)
	}

	logger.Debug("Pattern cache hit", zap.String("domain", domain))
	return true, nil
}

func (c *Client) DeleteDomainPattern(ctx context.Context, domain string) error {
	return c.client.Del(ctx, fmt.Sprintf("pattern:%s", domain)).Err()
}

func (c *Client) SetDashboard(ctx context.Context, summary interface{}, ttl time.Duration) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	err = c.client.Set(ctx, "dashboard:summary", data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set dashboard cache: %w", err)
	}

	return nil
}

func (c *Client) GetDashboard(ctx context.Context, summary interface{}) (bool, error) {
	data, err := c.client.Get(ctx, "dashboard:summary").Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get dashboard cache: %w", err)
	}

	err = json.Unmarshal(data, summary)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	return true, nil
}
