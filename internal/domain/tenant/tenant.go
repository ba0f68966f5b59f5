// Package tenant holds the per-restaurant configuration orders are priced
// against.
package tenant

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no tenant matches the ID or slug.
var ErrNotFound = errors.New("tenant not found")

// Tenant is one restaurant on the platform.
type Tenant struct {
	ID   string
	Slug string
	Name string
	// DeliveryFee is the flat fee added to delivery orders.
	DeliveryFee decimal.Decimal
	// DeliveryBuffer extends the estimated ready time of delivery orders.
	DeliveryBuffer time.Duration
	Active         bool
}

// Directory resolves tenants by internal ID or public slug.
type Directory interface {
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
}
