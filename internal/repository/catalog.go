package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tably/order-engine/internal/domain/catalog"
)

const (
	getProductSQL = `SELECT id, tenant_id, name, price, active
		FROM products WHERE tenant_id = $1 AND id = $2`

	getAddonSQL = `SELECT id, tenant_id, name, price, active
		FROM addons WHERE tenant_id = $1 AND id = $2`

	listProductsSQL = `SELECT id, tenant_id, name, price, active
		FROM products WHERE tenant_id = $1 AND active = TRUE ORDER BY name`

	listAddonsSQL = `SELECT id, tenant_id, name, price, active
		FROM addons WHERE tenant_id = $1 AND active = TRUE ORDER BY name`
)

var (
	_ catalog.Resolver = (*CatalogRepository)(nil)
	_ catalog.Lister   = (*CatalogRepository)(nil)
)

// CatalogRepository implements catalog.Resolver backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetProduct returns a tenant's product by ID.
func (r *CatalogRepository) GetProduct(ctx context.Context, tenantID, productID string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, tenantID, productID)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", productID, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[catalog.Product])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", productID, err)
	}
	return &p, nil
}

// ListProducts returns the tenant's active products ordered by name.
func (r *CatalogRepository) ListProducts(ctx context.Context, tenantID string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[catalog.Product])
}

// ListAddons returns the tenant's active addons ordered by name.
func (r *CatalogRepository) ListAddons(ctx context.Context, tenantID string) ([]catalog.Addon, error) {
	rows, err := r.pool.Query(ctx, listAddonsSQL, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing addons: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[catalog.Addon])
}

// GetAddon returns a tenant's addon by ID.
func (r *CatalogRepository) GetAddon(ctx context.Context, tenantID, addonID string) (*catalog.Addon, error) {
	rows, err := r.pool.Query(ctx, getAddonSQL, tenantID, addonID)
	if err != nil {
		return nil, fmt.Errorf("getting addon %q: %w", addonID, err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[catalog.Addon])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrAddonNotFound
		}
		return nil, fmt.Errorf("getting addon %q: %w", addonID, err)
	}
	return &a, nil
}
