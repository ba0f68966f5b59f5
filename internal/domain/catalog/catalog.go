// Package catalog exposes the tenant menu as read-only product and addon
// snapshots used at order build time.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrProductNotFound is returned when the tenant has no such product.
	ErrProductNotFound = errors.New("product not found")
	// ErrAddonNotFound is returned when the tenant has no such addon.
	ErrAddonNotFound = errors.New("addon not found")
)

// Product is a sellable menu entry.
type Product struct {
	ID       string
	TenantID string
	Name     string
	Price    decimal.Decimal
	Active   bool
}

// Addon is an optional extra attached to a product line.
type Addon struct {
	ID       string
	TenantID string
	Name     string
	Price    decimal.Decimal
	Active   bool
}

// Resolver looks up catalog entries by tenant-scoped ID.
type Resolver interface {
	GetProduct(ctx context.Context, tenantID, productID string) (*Product, error)
	GetAddon(ctx context.Context, tenantID, addonID string) (*Addon, error)
}

// Lister enumerates a tenant's active menu.
type Lister interface {
	ListProducts(ctx context.Context, tenantID string) ([]Product, error)
	ListAddons(ctx context.Context, tenantID string) ([]Addon, error)
}
