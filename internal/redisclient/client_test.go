package redisclient

import (
	"context"
	"testing"
	"time"

	"pharmamarket/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewClientFromRedis(rdb)
}

func TestInboxPushAndList(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	first := &models.NotificationEvent{
		EventID: "e1", Type: models.NotifyOrderCreated, UserID: 10,
		Message: "New order #1 received", RelatedID: 1, Timestamp: time.Now(),
	}
	second := &models.NotificationEvent{
		EventID: "e2", Type: models.NotifyOrderStatus, UserID: 10,
		Message: "Order #1 is now processing", RelatedID: 1, Timestamp: time.Now(),
	}

	require.NoError(t, client.PushInbox(ctx, first))
	require.NoError(t, client.PushInbox(ctx, second))

	events, err := client.ListInbox(ctx, 10, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// newest first
	assert.Equal(t, "e2", events[0].EventID)
	assert.Equal(t, "e1", events[1].EventID)
}

func TestInboxIsPerUser(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.PushInbox(ctx, &models.NotificationEvent{EventID: "a", UserID: 1}))

	events, err := client.ListInbox(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestInboxTrimsToMaxLen(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < inboxMaxLen+20; i++ {
		require.NoError(t, client.PushInbox(ctx, &models.NotificationEvent{
			EventID: "e", UserID: 5,
		}))
	}

	events, err := client.ListInbox(ctx, 5, inboxMaxLen*2)
	require.NoError(t, err)
	assert.Len(t, events, inboxMaxLen)
}

func TestOrderCacheRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	order := &models.Order{ID: 3, PharmacyID: 1, WarehouseID: 2, Status: models.OrderStatusPending, TotalAmount: 180}
	require.NoError(t, client.CacheOrder(ctx, order, time.Minute))

	cached, err := client.GetCachedOrder(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, order.Status, cached.Status)
	assert.Equal(t, order.TotalAmount, cached.TotalAmount)

	require.NoError(t, client.InvalidateOrder(ctx, 3))

	cached, err = client.GetCachedOrder(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestOrderCacheMiss(t *testing.T) {
	client := newTestClient(t)

	cached, err := client.GetCachedOrder(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, cached)
}
