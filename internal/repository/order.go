package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tably/order-engine/internal/domain/order"
)

const (
	// Serializes open-order creation per (tenant, table). The partial unique
	// index orders_one_open_per_table remains the hard guarantee.
	lockTableSQL = `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`

	hasOpenOrderForTableSQL = `SELECT EXISTS (
		SELECT 1 FROM orders
		WHERE tenant_id = $1 AND table_id = $2
		  AND order_type = 'table'
		  AND status NOT IN ('delivered', 'cancelled', 'rejected'))`

	insertOrderSQL = `INSERT INTO orders
		(id, tenant_id, customer_id, table_id, order_type, status, payment_method,
		 subtotal, delivery_fee, discount_amount, coupon_code, total,
		 estimated_ready_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	updateOrderSQL = `UPDATE orders SET
		table_id = $3, order_type = $4, status = $5, payment_method = $6,
		subtotal = $7, delivery_fee = $8, discount_amount = $9, coupon_code = $10,
		total = $11, estimated_ready_at = $12, version = version + 1, updated_at = $13
		WHERE id = $1 AND version = $2`

	getOrderSQL = `SELECT o.id, o.tenant_id, o.customer_id, o.table_id, o.order_type,
		o.status, o.payment_method, o.subtotal, o.delivery_fee, o.discount_amount,
		o.coupon_code, o.total, o.estimated_ready_at, o.version, o.created_at, o.updated_at,
		r.reason, r.notes, r.created_at
		FROM orders o
		LEFT JOIN order_rejections r ON r.order_id = o.id
		WHERE o.tenant_id = $1 AND o.id = $2`

	// "Created today" is evaluated against the database server's clock and
	// timezone, not the tenant's local midnight. Close enough while tenants
	// carry no timezone of their own; revisit if a tenant timezone column is
	// added.
	getActiveOrderByTableSQL = `SELECT o.id, o.tenant_id, o.customer_id, o.table_id, o.order_type,
		o.status, o.payment_method, o.subtotal, o.delivery_fee, o.discount_amount,
		o.coupon_code, o.total, o.estimated_ready_at, o.version, o.created_at, o.updated_at,
		r.reason, r.notes, r.created_at
		FROM orders o
		LEFT JOIN order_rejections r ON r.order_id = o.id
		WHERE o.tenant_id = $1 AND o.table_id = $2
		  AND o.status NOT IN ('delivered', 'cancelled', 'rejected')
		  AND o.created_at >= date_trunc('day', now())
		ORDER BY o.created_at DESC
		LIMIT 1`

	insertOrderItemSQL = `INSERT INTO order_items
		(id, order_id, product_id, name, unit_price, quantity, notes, subtotal, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	insertOrderItemAddonSQL = `INSERT INTO order_item_addons
		(id, order_item_id, addon_id, name, unit_price, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	deleteOrderItemsSQL = `DELETE FROM order_items WHERE order_id = $1`

	getOrderItemsSQL = `SELECT id, product_id, name, unit_price, quantity, notes, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY position`

	getOrderItemAddonsSQL = `SELECT a.order_item_id, a.id, a.addon_id, a.name, a.unit_price, a.quantity, a.subtotal
		FROM order_item_addons a
		JOIN order_items i ON i.id = a.order_item_id
		WHERE i.order_id = $1`

	insertStatusHistorySQL = `INSERT INTO order_status_history
		(order_id, status, actor, notes, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	insertRejectionSQL = `INSERT INTO order_rejections (order_id, reason, notes, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order aggregate and its initial status history entry in
// one transaction. Table orders take a per-table advisory lock first, so two
// concurrent creations for the same table cannot both pass the open-order
// check.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if o.Type == order.TypeTable {
		if _, err := tx.Exec(ctx, lockTableSQL, o.TenantID, o.TableID); err != nil {
			return fmt.Errorf("locking table %q: %w", o.TableID, err)
		}

		var occupied bool
		if err := tx.QueryRow(ctx, hasOpenOrderForTableSQL, o.TenantID, o.TableID).Scan(&occupied); err != nil {
			return fmt.Errorf("checking table %q: %w", o.TableID, err)
		}
		if occupied {
			return order.ErrTableOccupied
		}
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.TenantID, o.CustomerID, nullable(o.TableID), string(o.Type), string(o.Status),
		nullable(string(o.PaymentMethod)), o.Subtotal, o.DeliveryFee, o.DiscountAmount,
		nullable(o.CouponCode), o.Total, o.EstimatedReadyAt, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "orders_one_open_per_table") {
			return order.ErrTableOccupied
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	if err := insertItems(ctx, tx, o); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, insertStatusHistorySQL,
		o.ID, string(o.Status), "system", "", o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("writing status history for order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID loads the full aggregate: order row, items, addons, and the
// rejection record when present.
func (r *OrderRepository) GetByID(ctx context.Context, tenantID, orderID string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderSQL, tenantID, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Update writes the aggregate with an optimistic version check and appends the
// given status history entries in the same transaction. The item list is
// rewritten wholesale.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order, history ...order.StatusChange) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, updateOrderSQL,
		o.ID, o.Version, nullable(o.TableID), string(o.Type), string(o.Status),
		nullable(string(o.PaymentMethod)), o.Subtotal, o.DeliveryFee, o.DiscountAmount,
		nullable(o.CouponCode), o.Total, o.EstimatedReadyAt, o.UpdatedAt,
	)
	if err != nil {
		// Switching a pending order onto a table can collide with that
		// table's open order.
		if isUniqueViolation(err, "orders_one_open_per_table") {
			return order.ErrTableOccupied
		}
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
			return fmt.Errorf("checking order %q: %w", o.ID, err)
		}
		if !exists {
			return order.ErrNotFound
		}
		return order.ErrVersionConflict
	}

	if _, err := tx.Exec(ctx, deleteOrderItemsSQL, o.ID); err != nil {
		return fmt.Errorf("clearing items for order %q: %w", o.ID, err)
	}
	if err := insertItems(ctx, tx, o); err != nil {
		return err
	}

	for _, h := range history {
		_, err := tx.Exec(ctx, insertStatusHistorySQL,
			o.ID, string(h.Status), h.Actor, h.Notes, h.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("writing status history for order %q: %w", o.ID, err)
		}
	}

	if o.Rejection != nil {
		_, err := tx.Exec(ctx, insertRejectionSQL,
			o.ID, o.Rejection.Reason, o.Rejection.Notes, o.Rejection.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("writing rejection for order %q: %w", o.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}

	o.Version++
	return nil
}

// GetActiveByTable returns the most recent non-terminal order created today
// for the table.
func (r *OrderRepository) GetActiveByTable(ctx context.Context, tenantID, tableID string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, getActiveOrderByTableSQL, tenantID, tableID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding active order for table %q: %w", tableID, err)
	}

	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, o *order.Order) error {
	rows, err := r.pool.Query(ctx, getOrderItemsSQL, o.ID)
	if err != nil {
		return fmt.Errorf("loading items for order %q: %w", o.ID, err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Notes, &it.Subtotal)
		return it, err
	})
	if err != nil {
		return fmt.Errorf("loading items for order %q: %w", o.ID, err)
	}

	byItem := make(map[string]*order.Item, len(items))
	for i := range items {
		byItem[items[i].ID] = &items[i]
	}

	addonRows, err := r.pool.Query(ctx, getOrderItemAddonsSQL, o.ID)
	if err != nil {
		return fmt.Errorf("loading addons for order %q: %w", o.ID, err)
	}
	defer addonRows.Close()

	for addonRows.Next() {
		var (
			itemID string
			a      order.ItemAddon
		)
		if err := addonRows.Scan(&itemID, &a.ID, &a.AddonID, &a.Name, &a.UnitPrice, &a.Quantity, &a.Subtotal); err != nil {
			return fmt.Errorf("loading addons for order %q: %w", o.ID, err)
		}
		if it, ok := byItem[itemID]; ok {
			it.Addons = append(it.Addons, a)
		}
	}
	if err := addonRows.Err(); err != nil {
		return fmt.Errorf("loading addons for order %q: %w", o.ID, err)
	}

	o.Items = items
	return nil
}

func insertItems(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.New().String()
		}
		_, err := tx.Exec(ctx, insertOrderItemSQL,
			it.ID, o.ID, it.ProductID, it.Name, it.UnitPrice, it.Quantity, it.Notes, it.Subtotal, i,
		)
		if err != nil {
			return fmt.Errorf("creating item for order %q: %w", o.ID, err)
		}

		for j := range it.Addons {
			a := &it.Addons[j]
			if a.ID == "" {
				a.ID = uuid.New().String()
			}
			_, err := tx.Exec(ctx, insertOrderItemAddonSQL,
				a.ID, it.ID, a.AddonID, a.Name, a.UnitPrice, a.Quantity, a.Subtotal,
			)
			if err != nil {
				return fmt.Errorf("creating addon for order %q: %w", o.ID, err)
			}
		}
	}
	return nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o               order.Order
		tableID         *string
		paymentMethod   *string
		couponCode      *string
		rejectionReason *string
		rejectionNotes  *string
		rejectedAt      *time.Time
		orderType       string
		status          string
	)
	err := row.Scan(
		&o.ID, &o.TenantID, &o.CustomerID, &tableID, &orderType,
		&status, &paymentMethod, &o.Subtotal, &o.DeliveryFee, &o.DiscountAmount,
		&couponCode, &o.Total, &o.EstimatedReadyAt, &o.Version, &o.CreatedAt, &o.UpdatedAt,
		&rejectionReason, &rejectionNotes, &rejectedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Type = order.Type(orderType)
	o.Status = order.Status(status)
	if tableID != nil {
		o.TableID = *tableID
	}
	if paymentMethod != nil {
		o.PaymentMethod = order.PaymentMethod(*paymentMethod)
	}
	if couponCode != nil {
		o.CouponCode = *couponCode
	}
	if rejectionReason != nil {
		o.Rejection = &order.Rejection{Reason: *rejectionReason, CreatedAt: *rejectedAt}
		if rejectionNotes != nil {
			o.Rejection.Notes = *rejectionNotes
		}
	}
	return &o, nil
}

// nullable maps empty strings to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
