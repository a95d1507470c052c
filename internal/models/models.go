package models

import (
	"database/sql"
	"time"
)

// Product represents a warehouse catalog entry. Stock lives directly on the
// product row; adjustments go through conditional updates in the store.
type Product struct {
	ID                int64     `db:"id" json:"id"`
	WarehouseID       int64     `db:"warehouse_id" json:"warehouse_id"`
	Name              string    `db:"name" json:"name"`
	Price             float64   `db:"price" json:"price"`
	Quantity          int       `db:"quantity" json:"quantity"`
	DiscountPercent   float64   `db:"discount_percent" json:"discount_percent"`
	BonusBuyQuantity  int       `db:"bonus_buy_quantity" json:"bonus_buy_quantity"`
	BonusFreeQuantity int       `db:"bonus_free_quantity" json:"bonus_free_quantity"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Order is a pharmacy purchase from a single warehouse.
type Order struct {
	ID                   int64        `db:"id" json:"id"`
	PharmacyID           int64        `db:"pharmacy_id" json:"pharmacy_id"`
	WarehouseID          int64        `db:"warehouse_id" json:"warehouse_id"`
	Status               string       `db:"status" json:"status"`
	TotalAmount          float64      `db:"total_amount" json:"total_amount"`
	Commission           float64      `db:"commission" json:"commission"`
	CancellableUntil     time.Time    `db:"cancellable_until" json:"cancellable_until"`
	ExpectedDeliveryDate sql.NullTime `db:"expected_delivery_date" json:"expected_delivery_date,omitempty"`
	PharmacyNote         string       `db:"pharmacy_note" json:"pharmacy_note,omitempty"`
	WarehouseNote        string       `db:"warehouse_note" json:"warehouse_note,omitempty"`
	IsDeleted            bool         `db:"is_deleted" json:"is_deleted"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at" json:"updated_at"`
	DeletedAt            sql.NullTime `db:"deleted_at" json:"deleted_at,omitempty"`
}

// OrderItem is immutable after creation. Price is the effective per-unit
// price after discount and bonus rules, so historic orders stay reproducible
// even when the catalog changes.
type OrderItem struct {
	ID        int64   `db:"id" json:"id"`
	OrderID   int64   `db:"order_id" json:"order_id"`
	ProductID int64   `db:"product_id" json:"product_id"`
	Quantity  int     `db:"quantity" json:"quantity"`
	Price     float64 `db:"price" json:"price"`
}

// Return is a pharmacy return request against a delivered order.
type Return struct {
	ID          int64     `db:"id" json:"id"`
	OrderID     int64     `db:"order_id" json:"order_id"`
	PharmacyID  int64     `db:"pharmacy_id" json:"pharmacy_id"`
	WarehouseID int64     `db:"warehouse_id" json:"warehouse_id"`
	Reason      string    `db:"reason" json:"reason"`
	Note        string    `db:"note" json:"note,omitempty"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ReturnItem is immutable after creation.
type ReturnItem struct {
	ID        int64 `db:"id" json:"id"`
	ReturnID  int64 `db:"return_id" json:"return_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
}

// Invoice is created atomically with its order (1:1). NetAmount is always
// Amount + Commission; every mutator keeps that in sync.
type Invoice struct {
	ID          int64        `db:"id" json:"id"`
	OrderID     int64        `db:"order_id" json:"order_id"`
	Amount      float64      `db:"amount" json:"amount"`
	Commission  float64      `db:"commission" json:"commission"`
	NetAmount   float64      `db:"net_amount" json:"net_amount"`
	Status      string       `db:"status" json:"status"`
	PaidAt      sql.NullTime `db:"paid_at" json:"paid_at,omitempty"`
	CancelledAt sql.NullTime `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// TargetAmount is the total owed by the settling party.
func (i *Invoice) TargetAmount() float64 {
	return i.Amount + i.Commission
}

// InvoicePayment is append-only; individual payments are never edited or
// deleted.
type InvoicePayment struct {
	ID            int64     `db:"id" json:"id"`
	InvoiceID     int64     `db:"invoice_id" json:"invoice_id"`
	Amount        float64   `db:"amount" json:"amount"`
	PaymentMethod string    `db:"payment_method" json:"payment_method,omitempty"`
	Reference     string    `db:"reference" json:"reference,omitempty"`
	Note          string    `db:"note" json:"note,omitempty"`
	PaidAt        time.Time `db:"paid_at" json:"paid_at"`
	CreatedBy     int64     `db:"created_by" json:"created_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// OrderEvent is the append-only audit trail. Meta holds the structured
// payload as raw JSON; timeline ordering is (created_at ASC, id ASC).
type OrderEvent struct {
	ID          int64     `db:"id" json:"id"`
	OrderID     int64     `db:"order_id" json:"order_id"`
	EventType   string    `db:"event_type" json:"event_type"`
	FromStatus  string    `db:"from_status" json:"from_status,omitempty"`
	ToStatus    string    `db:"to_status" json:"to_status,omitempty"`
	ActorUserID int64     `db:"actor_user_id" json:"actor_user_id"`
	ActorRole   string    `db:"actor_role" json:"actor_role"`
	Message     string    `db:"message" json:"message"`
	Meta        []byte    `db:"meta" json:"meta,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Actor is the already-verified identity attached to every command.
type Actor struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// Roles
const (
	RolePharmacy  = "pharmacy"
	RoleWarehouse = "warehouse"
	RoleAdmin     = "admin"
)

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Return statuses
const (
	ReturnStatusPending   = "pending"
	ReturnStatusApproved  = "approved"
	ReturnStatusRejected  = "rejected"
	ReturnStatusCompleted = "completed"
)

// Invoice statuses
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
)

// Order event types
const (
	EventOrderCreated        = "order_created"
	EventOrderStatusChanged  = "order_status_changed"
	EventOrderDeleted        = "order_deleted"
	EventOrderNoteUpdated    = "order_note_updated"
	EventReturnStatusChanged = "return_status_changed"
	EventInvoicePayment      = "invoice_payment_recorded"
)
