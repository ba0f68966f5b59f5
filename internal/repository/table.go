package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tably/order-engine/internal/domain/dining"
)

const getTableSQL = `SELECT id, tenant_id, label, seats, active
	FROM restaurant_tables WHERE tenant_id = $1 AND id = $2`

var _ dining.TableDirectory = (*TableRepository)(nil)

// TableRepository implements dining.TableDirectory backed by PostgreSQL.
type TableRepository struct {
	pool *pgxpool.Pool
}

// NewTableRepository returns a TableRepository that uses the given pool.
func NewTableRepository(pool *pgxpool.Pool) *TableRepository {
	return &TableRepository{pool: pool}
}

// GetTable returns a tenant's table by ID.
func (r *TableRepository) GetTable(ctx context.Context, tenantID, tableID string) (*dining.Table, error) {
	rows, err := r.pool.Query(ctx, getTableSQL, tenantID, tableID)
	if err != nil {
		return nil, fmt.Errorf("getting table %q: %w", tableID, err)
	}

	t, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[dining.Table])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dining.ErrTableNotFound
		}
		return nil, fmt.Errorf("getting table %q: %w", tableID, err)
	}
	return &t, nil
}
