package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tably/order-engine/internal/domain/tenant"
)

const (
	getTenantByIDSQL = `SELECT id, slug, name, delivery_fee, delivery_buffer_minutes, active
		FROM tenants WHERE id = $1`

	getTenantBySlugSQL = `SELECT id, slug, name, delivery_fee, delivery_buffer_minutes, active
		FROM tenants WHERE slug = $1`
)

var _ tenant.Directory = (*TenantRepository)(nil)

// TenantRepository implements tenant.Directory backed by PostgreSQL.
type TenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository returns a TenantRepository that uses the given pool.
func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

// GetByID returns a tenant by its internal identifier.
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	return r.get(ctx, getTenantByIDSQL, id)
}

// GetBySlug returns a tenant by its public storefront slug.
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	return r.get(ctx, getTenantBySlugSQL, slug)
}

func (r *TenantRepository) get(ctx context.Context, query, arg string) (*tenant.Tenant, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting tenant %q: %w", arg, err)
	}

	tn, err := pgx.CollectExactlyOneRow(rows, scanTenant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrNotFound
		}
		return nil, fmt.Errorf("getting tenant %q: %w", arg, err)
	}
	return &tn, nil
}

func scanTenant(row pgx.CollectableRow) (tenant.Tenant, error) {
	var (
		tn            tenant.Tenant
		bufferMinutes int32
	)
	err := row.Scan(&tn.ID, &tn.Slug, &tn.Name, &tn.DeliveryFee, &bufferMinutes, &tn.Active)
	tn.DeliveryBuffer = time.Duration(bufferMinutes) * time.Minute
	return tn, err
}
