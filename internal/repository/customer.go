package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tably/order-engine/internal/domain/customer"
)

const (
	findCustomerByPhoneSQL = `SELECT id, tenant_id, name, phone, created_at
		FROM customers WHERE tenant_id = $1 AND phone = $2`

	// The upsert makes create-or-get atomic: when two requests race on the
	// same (tenant, phone), both end up with the surviving row. The no-op
	// DO UPDATE is what lets RETURNING yield the existing row on conflict.
	upsertCustomerSQL = `INSERT INTO customers (id, tenant_id, name, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, phone) DO UPDATE SET phone = EXCLUDED.phone
		RETURNING id, tenant_id, name, phone, created_at`
)

var _ customer.Directory = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Directory backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// FindByPhone returns the tenant's customer with the given normalized phone.
func (r *CustomerRepository) FindByPhone(ctx context.Context, tenantID, phone string) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, findCustomerByPhoneSQL, tenantID, phone)
	if err != nil {
		return nil, fmt.Errorf("finding customer by phone: %w", err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[customer.Customer])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("finding customer by phone: %w", err)
	}
	return &c, nil
}

// CreateAndLink registers a customer under the tenant, returning the existing
// record when the (tenant, phone) pair is already taken.
func (r *CustomerRepository) CreateAndLink(ctx context.Context, tenantID string, info customer.Info) (*customer.Customer, error) {
	var c customer.Customer
	err := r.pool.QueryRow(ctx, upsertCustomerSQL,
		uuid.New().String(), tenantID, info.Name, info.Phone,
	).Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating customer: %w", err)
	}
	return &c, nil
}
