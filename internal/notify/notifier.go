package notify

import (
	"context"
	"time"

	"pharmamarket/internal/broker"
	"pharmamarket/internal/models"
	"pharmamarket/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier dispatches a user-facing notification. Implementations are
// fire-and-forget; the core ignores the outcome.
type Notifier interface {
	Notify(ctx context.Context, userID int64, notifType, message string, relatedID int64, metadata map[string]any) error
}

// BrokerNotifier publishes notification events to the broker topic, where
// the worker picks them up for delivery.
type BrokerNotifier struct {
	producer *broker.Producer
}

// NewBrokerNotifier creates a broker-backed notifier
func NewBrokerNotifier(producer *broker.Producer) *BrokerNotifier {
	return &BrokerNotifier{producer: producer}
}

// Notify publishes a NotificationEvent keyed by recipient.
func (n *BrokerNotifier) Notify(ctx context.Context, userID int64, notifType, message string, relatedID int64, metadata map[string]any) error {
	event := &models.NotificationEvent{
		EventID:   uuid.New().String(),
		Type:      notifType,
		UserID:    userID,
		Message:   message,
		RelatedID: relatedID,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}
	return n.producer.PublishNotification(ctx, event)
}

// Hooks is the post-commit hook list for a single command. State machines
// register side effects while the transaction is open; Run fires them only
// after the commit succeeds. Hook failures are logged and swallowed, never
// propagated to the caller.
type Hooks struct {
	hooks []func(ctx context.Context) error
}

// Add registers a hook to run after commit.
func (h *Hooks) Add(fn func(ctx context.Context) error) {
	h.hooks = append(h.hooks, fn)
}

// Run executes the registered hooks in order. Dispatch must not block the
// caller's request path longer than the hooks themselves take.
func (h *Hooks) Run(ctx context.Context) {
	logger := util.GetLogger()
	for _, fn := range h.hooks {
		if err := fn(ctx); err != nil {
			logger.Error("post-commit hook failed", zap.Error(err))
		}
	}
}
