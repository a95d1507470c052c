package models

import "time"

// Notification types pushed through the broker
const (
	NotifyOrderCreated  = "ORDER_CREATED"
	NotifyOrderStatus   = "ORDER_STATUS_CHANGED"
	NotifyOrderDeleted  = "ORDER_DELETED"
	NotifyReturnCreated = "RETURN_REQUESTED"
	NotifyReturnStatus  = "RETURN_STATUS_CHANGED"
	NotifyPaymentPosted = "INVOICE_PAYMENT_RECORDED"
)

// NotificationEvent is the wire payload for the notification topic. The core
// treats dispatch as fire-and-forget; the worker delivers these into per-user
// inboxes.
type NotificationEvent struct {
	EventID   string         `json:"event_id"`
	Type      string         `json:"type"`
	UserID    int64          `json:"user_id"`
	Message   string         `json:"message"`
	RelatedID int64          `json:"related_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
