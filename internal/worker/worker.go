package worker

import (
	"context"
	"encoding/json"
	"log"

	"pharmamarket/internal/broker"
	"pharmamarket/internal/models"
	"pharmamarket/internal/redisclient"
	"pharmamarket/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NotificationWorker drains the notification topic into per-user redis
// inboxes. Delivery failures are logged and the message is retried via the
// consumer group; the core never waits on this path.
type NotificationWorker struct {
	consumer *broker.Consumer
	inbox    *redisclient.Client
	logger   *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, inbox *redisclient.Client) *NotificationWorker {
	return &NotificationWorker{
		consumer: consumer,
		inbox:    inbox,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")

	return w.consumer.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		var event models.NotificationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			w.logger.Error("failed to unmarshal notification", zap.Error(err))
			return nil // poison message, skip
		}

		if err := w.inbox.PushInbox(ctx, &event); err != nil {
			w.logger.Error("failed to deliver notification",
				zap.Int64("user_id", event.UserID),
				zap.String("type", event.Type),
				zap.Error(err))
			return err
		}

		util.NotificationsDeliveredTotal.Inc()
		return nil
	})
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}
