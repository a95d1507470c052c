package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pharmamarket/internal/models"

	"github.com/go-redis/redis/v8"
)

// inboxMaxLen bounds each user's notification inbox.
const inboxMaxLen = 100

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewClientFromRedis wraps an existing connection. Used by tests running
// against miniredis.
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func inboxKey(userID int64) string {
	return fmt.Sprintf("inbox:user:%d", userID)
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order:%d", orderID)
}

// PushInbox prepends a notification to the user's inbox, keeping only the
// most recent entries.
func (c *Client) PushInbox(ctx context.Context, event *models.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := inboxKey(event.UserID)
	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, inboxMaxLen-1)

	_, err = pipe.Exec(ctx)
	return err
}

// ListInbox returns the user's most recent notifications, newest first.
func (c *Client) ListInbox(ctx context.Context, userID int64, limit int64) ([]models.NotificationEvent, error) {
	raw, err := c.rdb.LRange(ctx, inboxKey(userID), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]models.NotificationEvent, 0, len(raw))
	for _, item := range raw {
		var event models.NotificationEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// CacheOrder stores an order summary with a TTL.
func (c *Client) CacheOrder(ctx context.Context, order *models.Order, ttl time.Duration) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	return c.rdb.Set(ctx, orderKey(order.ID), payload, ttl).Err()
}

// GetCachedOrder retrieves a cached order summary, returning nil on a miss.
func (c *Client) GetCachedOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	raw, err := c.rdb.Get(ctx, orderKey(orderID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var order models.Order
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// InvalidateOrder drops a cached order summary. Called after every status
// transition.
func (c *Client) InvalidateOrder(ctx context.Context, orderID int64) error {
	return c.rdb.Del(ctx, orderKey(orderID)).Err()
}
