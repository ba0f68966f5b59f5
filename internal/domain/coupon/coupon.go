// Package coupon implements tenant-scoped discount codes: eligibility
// validation against an order subtotal and the discount calculation itself.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no coupon exists for the code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the coupon exists but is disabled.
	ErrInactive = errors.New("coupon is inactive")
	// ErrNotStarted is returned when the coupon's start date is in the future.
	ErrNotStarted = errors.New("coupon is not yet valid")
	// ErrExpired is returned when the coupon's expiration date has passed.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached is returned when the coupon has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrBelowMinOrder is returned when the order subtotal does not reach the
	// coupon's minimum order value.
	ErrBelowMinOrder = errors.New("order subtotal below coupon minimum")
	// ErrExhausted is returned when the conditional usage increment finds no
	// remaining uses. Unlike ErrUsageLimitReached this is detected at
	// redemption time and signals a lost race, not a stale read.
	ErrExhausted = errors.New("coupon exhausted")
)

// Coupon is a tenant-defined discount code with eligibility rules and a
// usage cap.
type Coupon struct {
	ID            string
	TenantID      string
	Code          string
	Type          DiscountType
	Value         decimal.Decimal
	StartsAt      *time.Time
	ExpiresAt     *time.Time
	UsageLimit    *int
	UsageCount    int
	MinOrderValue *decimal.Decimal
	MaxDiscount   *decimal.Decimal
	Active        bool
}

// Discount holds the computed discount amount for an accepted coupon. The
// coupon ID carries through to redemption, which happens separately once the
// order is persisted.
type Discount struct {
	CouponID string
	Code     string
	Amount   decimal.Decimal
}

// Store provides lookup and redemption of coupons.
//
// IncrementUsage must be atomic with respect to the usage limit: two
// concurrent redemptions near the cap must not both succeed. A conditional
// update that affects no row reports ErrExhausted.
type Store interface {
	GetByCode(ctx context.Context, tenantID, code string) (*Coupon, error)
	IncrementUsage(ctx context.Context, couponID string) error
}
