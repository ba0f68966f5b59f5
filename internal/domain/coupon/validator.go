package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator evaluates a coupon code against an order subtotal and returns
// the computed discount. Redeem consumes one use and is called separately,
// after the order the discount belongs to has been persisted, so a failed
// order creation never burns a use.
type Validator interface {
	Validate(ctx context.Context, tenantID, code string, subtotal decimal.Decimal) (*Discount, error)
	Redeem(ctx context.Context, d *Discount) error
}

// StoreValidator implements Validator by looking up coupons from a Store.
type StoreValidator struct {
	store Store
	now   func() time.Time
}

// NewStoreValidator creates a StoreValidator backed by the given Store.
func NewStoreValidator(store Store) *StoreValidator {
	return &StoreValidator{store: store, now: time.Now}
}

// Validate looks up the coupon for the tenant, runs every eligibility check,
// and computes the discount. The first failing check is reported. Validate
// does not consume a use; that is Redeem's job.
func (v *StoreValidator) Validate(ctx context.Context, tenantID, code string, subtotal decimal.Decimal) (*Discount, error) {
	c, err := v.store.GetByCode(ctx, tenantID, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := Check(c, subtotal, v.now()); err != nil {
		return nil, err
	}

	amount, err := Apply(c, subtotal)
	if err != nil {
		return nil, err
	}

	return &Discount{CouponID: c.ID, Code: c.Code, Amount: amount}, nil
}

// Redeem atomically consumes one use of a previously validated coupon. The
// conditional update is the only authority on remaining uses under
// concurrency; losing the race reports ErrExhausted.
func (v *StoreValidator) Redeem(ctx context.Context, d *Discount) error {
	if err := v.store.IncrementUsage(ctx, d.CouponID); err != nil {
		if errors.Is(err, ErrExhausted) {
			return ErrExhausted
		}
		return errors.Wrap(err, "increment coupon usage")
	}
	return nil
}

// Check runs the eligibility checks for a coupon against an order subtotal
// at the given time. All checks are independent; the first failure is
// returned.
func Check(c *Coupon, subtotal decimal.Decimal, now time.Time) error {
	if !c.Active {
		return ErrInactive
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return ErrNotStarted
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	if c.MinOrderValue != nil && subtotal.LessThan(*c.MinOrderValue) {
		return ErrBelowMinOrder
	}
	return nil
}
