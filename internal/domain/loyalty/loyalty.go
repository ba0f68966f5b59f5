// Package loyalty converts committed order spend into points. Accrual runs
// after order creation and is best-effort by design: its failures never roll
// back the order that triggered it.
package loyalty

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// TransactionType enumerates ledger entry kinds.
type TransactionType string

const (
	TransactionEarn   TransactionType = "earn"
	TransactionRedeem TransactionType = "redeem"
	TransactionExpire TransactionType = "expire"
)

var (
	// ErrNoProgram is returned when the tenant has no loyalty program.
	ErrNoProgram = errors.New("tenant has no loyalty program")
	// ErrAlreadyAccrued is returned when an earn transaction for the order
	// already exists. Accrual treats it as success: the order was processed.
	ErrAlreadyAccrued = errors.New("order already accrued")
)

// Program is a tenant's loyalty configuration.
type Program struct {
	TenantID          string
	PointsPerCurrency decimal.Decimal
	MinOrderValue     decimal.Decimal
	ValidityDays      int
	Active            bool
}

// Balance is a customer's point balance with one tenant.
type Balance struct {
	ID             string
	CustomerID     string
	TenantID       string
	Points         int64
	TotalEarned    int64
	LastActivityAt time.Time
}

// Transaction is one append-only ledger entry.
type Transaction struct {
	ID        string
	BalanceID string
	OrderID   string
	Type      TransactionType
	Points    int64
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Store persists loyalty programs, balances, and the transaction ledger.
//
// AppendTransaction must enforce at-most-one earn entry per order and report
// ErrAlreadyAccrued on a duplicate. CreditBalance must add the delta inside
// the database so concurrent accruals against the same balance cannot lose
// credits to a stale read.
type Store interface {
	GetProgram(ctx context.Context, tenantID string) (*Program, error)
	GetOrCreateBalance(ctx context.Context, customerID, tenantID string) (*Balance, error)
	AppendTransaction(ctx context.Context, tx *Transaction) error
	CreditBalance(ctx context.Context, balanceID string, points int64, at time.Time) error
}
