package loyalty

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/tably/order-engine/internal/domain/order"
)

// Processor computes and records point earnings for committed orders.
type Processor struct {
	store Store
	now   func() time.Time
}

// NewProcessor creates a loyalty accrual Processor.
func NewProcessor(store Store) *Processor {
	return &Processor{store: store, now: time.Now}
}

// AccrueForOrder records point earnings for a durably created order. It is a
// no-op when the tenant has no active program, the order total is below the
// program minimum, or the computed points round down to zero. Accrual is
// idempotent per order: re-processing the same order credits nothing.
func (p *Processor) AccrueForOrder(ctx context.Context, o *order.Order) error {
	program, err := p.store.GetProgram(ctx, o.TenantID)
	if err != nil {
		if errors.Is(err, ErrNoProgram) {
			return nil
		}
		return errors.Wrap(err, "get loyalty program")
	}

	if !program.Active || o.Total.LessThan(program.MinOrderValue) {
		return nil
	}

	// floor(total × rate); IntPart truncates, which floors non-negative values.
	points := o.Total.Mul(program.PointsPerCurrency).IntPart()
	if points <= 0 {
		return nil
	}

	balance, err := p.store.GetOrCreateBalance(ctx, o.CustomerID, o.TenantID)
	if err != nil {
		return errors.Wrap(err, "get or create balance")
	}

	now := p.now()
	tx := &Transaction{
		ID:        uuid.New().String(),
		BalanceID: balance.ID,
		OrderID:   o.ID,
		Type:      TransactionEarn,
		Points:    points,
		CreatedAt: now,
	}
	if program.ValidityDays > 0 {
		exp := now.AddDate(0, 0, program.ValidityDays)
		tx.ExpiresAt = &exp
	}

	if err := p.store.AppendTransaction(ctx, tx); err != nil {
		if errors.Is(err, ErrAlreadyAccrued) {
			return nil
		}
		return errors.Wrap(err, "append loyalty transaction")
	}

	if err := p.store.CreditBalance(ctx, balance.ID, points, now); err != nil {
		return errors.Wrap(err, "credit balance")
	}

	return nil
}
