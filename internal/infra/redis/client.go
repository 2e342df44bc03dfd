package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"slotwatch/internal/core/domain"
)

// Client wraps Redis operations for the per-target run state (rotation
// pointer and captcha cooldown). Every write replaces the full record, so a
// crashed invocation can never leave a half-written value behind.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func rotationKey(target string) string {
	return fmt.Sprintf("rotation:%s", target)
}

func cooldownKey(target string) string {
	return fmt.Sprintf("cooldown:%s", target)
}

// RotationPointer returns the persisted rotation pointer for target, 0 if absent.
func (c *Client) RotationPointer(ctx context.Context, target string) (int, error) {
	val, err := c.rdb.Get(ctx, rotationKey(target)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get rotation pointer: %w", err)
	}

	index, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid rotation pointer %q: %w", val, err)
	}
	return index, nil
}

// SetRotationPointer replaces the rotation pointer for target.
func (c *Client) SetRotationPointer(ctx context.Context, target string, index int) error {
	if err := c.rdb.Set(ctx, rotationKey(target), strconv.Itoa(index), 0).Err(); err != nil {
		return fmt.Errorf("failed to set rotation pointer: %w", err)
	}
	return nil
}

// Cooldown returns the cooldown record for target, nil if absent.
func (c *Client) Cooldown(ctx context.Context, target string) (*domain.CooldownState, error) {
	val, err := c.rdb.Get(ctx, cooldownKey(target)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cooldown: %w", err)
	}

	var state domain.CooldownState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		// An unreadable record is treated as absent, matching the
		// file-based predecessor: clear it and continue.
		_ = c.rdb.Del(ctx, cooldownKey(target)).Err()
		return nil, nil
	}
	return &state, nil
}

// SetCooldown replaces the cooldown record for target.
func (c *Client) SetCooldown(
	ctx context.Context,
	target string,
	state *domain.CooldownState,
) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal cooldown: %w", err)
	}
	if err := c.rdb.Set(ctx, cooldownKey(target), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set cooldown: %w", err)
	}
	return nil
}

// ClearCooldown removes the cooldown record for target.
func (c *Client) ClearCooldown(ctx context.Context, target string) error {
	if err := c.rdb.Del(ctx, cooldownKey(target)).Err(); err != nil {
		return fmt.Errorf("failed to clear cooldown: %w", err)
	}
	return nil
}
