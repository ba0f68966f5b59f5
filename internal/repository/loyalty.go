package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tably/order-engine/internal/domain/loyalty"
)

const (
	getLoyaltyProgramSQL = `SELECT tenant_id, points_per_currency, min_order_value, validity_days, active
		FROM loyalty_programs WHERE tenant_id = $1`

	// No-op DO UPDATE so RETURNING yields the existing row on conflict.
	upsertLoyaltyBalanceSQL = `INSERT INTO loyalty_balances (id, customer_id, tenant_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, tenant_id) DO UPDATE SET customer_id = EXCLUDED.customer_id
		RETURNING id, customer_id, tenant_id, points, total_earned, last_activity_at`

	// The partial unique index on (order_id) for earn entries turns a double
	// accrual into an affected-rows-zero outcome instead of an error.
	appendLoyaltyTransactionSQL = `INSERT INTO loyalty_transactions
		(id, balance_id, order_id, tx_type, points, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING`

	// Additive update: the delta is applied in the database, so concurrent
	// accruals against the same balance serialize on the row instead of
	// overwriting each other from stale reads.
	creditLoyaltyBalanceSQL = `UPDATE loyalty_balances
		SET points = points + $2, total_earned = total_earned + $2, last_activity_at = $3
		WHERE id = $1`
)

var _ loyalty.Store = (*LoyaltyRepository)(nil)

// LoyaltyRepository implements loyalty.Store backed by PostgreSQL.
type LoyaltyRepository struct {
	pool *pgxpool.Pool
}

// NewLoyaltyRepository returns a LoyaltyRepository that uses the given pool.
func NewLoyaltyRepository(pool *pgxpool.Pool) *LoyaltyRepository {
	return &LoyaltyRepository{pool: pool}
}

// GetProgram returns the tenant's loyalty program configuration.
func (r *LoyaltyRepository) GetProgram(ctx context.Context, tenantID string) (*loyalty.Program, error) {
	rows, err := r.pool.Query(ctx, getLoyaltyProgramSQL, tenantID)
	if err != nil {
		return nil, fmt.Errorf("getting loyalty program: %w", err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanLoyaltyProgram)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loyalty.ErrNoProgram
		}
		return nil, fmt.Errorf("getting loyalty program: %w", err)
	}
	return &p, nil
}

// GetOrCreateBalance returns the customer's balance with the tenant, creating
// a zeroed one on first use.
func (r *LoyaltyRepository) GetOrCreateBalance(ctx context.Context, customerID, tenantID string) (*loyalty.Balance, error) {
	var b loyalty.Balance
	err := r.pool.QueryRow(ctx, upsertLoyaltyBalanceSQL,
		uuid.New().String(), customerID, tenantID,
	).Scan(&b.ID, &b.CustomerID, &b.TenantID, &b.Points, &b.TotalEarned, &b.LastActivityAt)
	if err != nil {
		return nil, fmt.Errorf("getting loyalty balance: %w", err)
	}
	return &b, nil
}

// AppendTransaction writes one ledger entry. Returns loyalty.ErrAlreadyAccrued
// when an earn entry for the order already exists.
func (r *LoyaltyRepository) AppendTransaction(ctx context.Context, tx *loyalty.Transaction) error {
	tag, err := r.pool.Exec(ctx, appendLoyaltyTransactionSQL,
		tx.ID, tx.BalanceID, tx.OrderID, string(tx.Type), tx.Points, tx.ExpiresAt, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending loyalty transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return loyalty.ErrAlreadyAccrued
	}
	return nil
}

// CreditBalance adds earned points to a balance.
func (r *LoyaltyRepository) CreditBalance(ctx context.Context, balanceID string, points int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, creditLoyaltyBalanceSQL, balanceID, points, at)
	if err != nil {
		return fmt.Errorf("crediting loyalty balance: %w", err)
	}
	return nil
}

func scanLoyaltyProgram(row pgx.CollectableRow) (loyalty.Program, error) {
	var (
		p            loyalty.Program
		validityDays int32
	)
	err := row.Scan(&p.TenantID, &p.PointsPerCurrency, &p.MinOrderValue, &validityDays, &p.Active)
	p.ValidityDays = int(validityDays)
	return p, err
}
