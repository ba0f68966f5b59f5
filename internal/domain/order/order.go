// Package order implements the order aggregate, its pricing rules, the
// status lifecycle, and the service orchestrating order operations.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates how an order is fulfilled.
type Type string

const (
	// TypeTable is a dine-in order bound to a physical table.
	TypeTable Type = "table"
	// TypePickup is collected by the customer.
	TypePickup Type = "pickup"
	// TypeDelivery is delivered to the customer's address.
	TypeDelivery Type = "delivery"
)

// ValidType reports whether t is a known order type.
func ValidType(t Type) bool {
	switch t {
	case TypeTable, TypePickup, TypeDelivery:
		return true
	}
	return false
}

// PaymentMethod enumerates the supported payment methods. Payment capture is
// an external concern; the order only records the chosen method.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentOnline PaymentMethod = "online"
)

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentOnline:
		return true
	}
	return false
}

// Sentinel errors for order operations.
var (
	ErrEmptyItems      = errors.New("items required")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrTableRequired   = errors.New("table reference required for table orders")
	ErrNotFound        = errors.New("order not found")
	ErrVersionConflict = errors.New("order was modified concurrently")
	ErrTableOccupied   = errors.New("table already has an open order")
	ErrNotEditable     = errors.New("order can only be edited while pending")
	ErrPrepMinutes     = errors.New("estimated preparation minutes required")
	ErrReasonRequired  = errors.New("reason required")
)

// ItemAddon is an addon line owned by an order item. Name and unit price are
// snapshots taken at order time: later catalog edits never alter them.
type ItemAddon struct {
	ID        string
	AddonID   string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

// Item is a product line owned by an order, with its addons. Name and unit
// price are snapshots taken at order time.
type Item struct {
	ID        string
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Notes     string
	Addons    []ItemAddon
	Subtotal  decimal.Decimal
}

// StatusChange is one append-only entry in an order's status history.
type StatusChange struct {
	Status    Status
	Actor     string
	Notes     string
	CreatedAt time.Time
}

// Rejection is the immutable record created when an order is rejected.
type Rejection struct {
	Reason    string
	Notes     string
	CreatedAt time.Time
}

// Order is the aggregate root. Monetary invariants:
//
//	subtotal = Σ item.Subtotal
//	item.Subtotal = unitPrice×qty + Σ addon.Subtotal
//	total = max(0, subtotal + deliveryFee - discountAmount)
type Order struct {
	ID               string
	TenantID         string
	CustomerID       string
	Type             Type
	Status           Status
	TableID          string
	PaymentMethod    PaymentMethod
	Items            []Item
	Subtotal         decimal.Decimal
	DeliveryFee      decimal.Decimal
	DiscountAmount   decimal.Decimal
	CouponCode       string
	Total            decimal.Decimal
	EstimatedReadyAt *time.Time
	Rejection        *Rejection
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Repository defines persistence for the order aggregate.
//
// Create writes the order, its items and addons, and the initial status
// history entry atomically. For table orders it must serialize against
// concurrent creation for the same table and report ErrTableOccupied when an
// open order already exists.
//
// Update writes the aggregate with an optimistic version check
// (ErrVersionConflict when the stored version differs) and appends the given
// status history entries in the same transaction. Item lists are rewritten,
// never patched.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, tenantID, orderID string) (*Order, error)
	Update(ctx context.Context, o *Order, history ...StatusChange) error
	GetActiveByTable(ctx context.Context, tenantID, tableID string) (*Order, error)
}

// NotificationSink receives order events. All calls are fire-and-forget from
// the engine's perspective: failures are logged by the caller and never
// propagate into the triggering operation.
type NotificationSink interface {
	NotifyNewOrder(ctx context.Context, o *Order) error
	NotifyStatusChanged(ctx context.Context, orderID string, from, to Status, notes string) error
	NotifyOrderReady(ctx context.Context, orderID string) error
	NotifyOrderCompleted(ctx context.Context, orderID string) error
}

// Accruer records loyalty earnings for a committed order. Failures must be
// swallowed by the caller: accrual never rolls back an order.
type Accruer interface {
	AccrueForOrder(ctx context.Context, o *Order) error
}
