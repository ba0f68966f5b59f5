package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tably/order-engine/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, tenant_id, code, discount_type, value,
		starts_at, expires_at, usage_limit, usage_count,
		min_order_value, max_discount, active
		FROM coupons WHERE tenant_id = $1 AND UPPER(code) = UPPER($2)`

	// The guard on usage_count makes redemption atomic: near the cap, only
	// one of two concurrent increments can match the row.
	incrementCouponUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`
)

var _ coupon.Store = (*CouponRepository)(nil)

// CouponRepository implements coupon.Store backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// GetByCode looks up a tenant's coupon by its code (case-insensitive).
func (r *CouponRepository) GetByCode(ctx context.Context, tenantID, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, tenantID, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// IncrementUsage atomically consumes one use of the coupon. Returns
// coupon.ErrExhausted when no uses remain.
func (r *CouponRepository) IncrementUsage(ctx context.Context, couponID string) error {
	tag, err := r.pool.Exec(ctx, incrementCouponUsageSQL, couponID)
	if err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", couponID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrExhausted
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		usageLimit   *int32
	)
	err := row.Scan(
		&c.ID, &c.TenantID, &c.Code, &discountType, &c.Value,
		&c.StartsAt, &c.ExpiresAt, &usageLimit, &c.UsageCount,
		&c.MinOrderValue, &c.MaxDiscount, &c.Active,
	)
	c.Type = coupon.DiscountType(discountType)
	if usageLimit != nil {
		limit := int(*usageLimit)
		c.UsageLimit = &limit
	}
	return c, err
}
