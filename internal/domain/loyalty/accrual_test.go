package loyalty

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tably/order-engine/internal/domain/order"
)

type mockLoyaltyStore struct {
	program    *Program
	programErr error

	balance    *Balance
	balanceErr error

	appended  *Transaction
	appendErr error

	creditedID     string
	creditedPoints int64
	creditedAt     time.Time
	creditCalls    int
	creditErr      error
}

func (m *mockLoyaltyStore) GetProgram(_ context.Context, _ string) (*Program, error) {
	return m.program, m.programErr
}

func (m *mockLoyaltyStore) GetOrCreateBalance(_ context.Context, _, _ string) (*Balance, error) {
	return m.balance, m.balanceErr
}

func (m *mockLoyaltyStore) AppendTransaction(_ context.Context, tx *Transaction) error {
	m.appended = tx
	return m.appendErr
}

func (m *mockLoyaltyStore) CreditBalance(_ context.Context, balanceID string, points int64, at time.Time) error {
	m.creditedID = balanceID
	m.creditedPoints = points
	m.creditedAt = at
	m.creditCalls++
	return m.creditErr
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testOrder(total string) *order.Order {
	return &order.Order{
		ID:         "o1",
		TenantID:   "t1",
		CustomerID: "c1",
		Total:      dec(total),
	}
}

func activeProgram() *Program {
	return &Program{
		TenantID:          "t1",
		PointsPerCurrency: decimal.NewFromInt(1),
		MinOrderValue:     decimal.Zero,
		Active:            true,
	}
}

func TestAccrueForOrder_FloorsPoints(t *testing.T) {
	store := &mockLoyaltyStore{
		program: activeProgram(),
		balance: &Balance{ID: "b1", CustomerID: "c1", TenantID: "t1", Points: 10, TotalEarned: 10},
	}

	p := NewProcessor(store)
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixedNow }

	err := p.AccrueForOrder(context.Background(), testOrder("99.99"))
	require.NoError(t, err)

	require.NotNil(t, store.appended)
	assert.Equal(t, int64(99), store.appended.Points)
	assert.Equal(t, TransactionEarn, store.appended.Type)
	assert.Equal(t, "o1", store.appended.OrderID)
	assert.Nil(t, store.appended.ExpiresAt)

	// The credit carries the earned delta, never an absolute balance, so
	// concurrent accruals cannot overwrite each other.
	assert.Equal(t, "b1", store.creditedID)
	assert.Equal(t, int64(99), store.creditedPoints)
	assert.Equal(t, fixedNow, store.creditedAt)
}

func TestAccrueForOrder_CreditsDeltaNotAbsolute(t *testing.T) {
	store := &mockLoyaltyStore{
		program: activeProgram(),
		balance: &Balance{ID: "b1", CustomerID: "c1", TenantID: "t1", Points: 500, TotalEarned: 500},
	}

	err := NewProcessor(store).AccrueForOrder(context.Background(), testOrder("99.00"))
	require.NoError(t, err)

	require.Equal(t, 1, store.creditCalls)
	// A pre-existing balance must not leak into the credited amount.
	assert.Equal(t, int64(99), store.creditedPoints)
}

func TestAccrueForOrder_NoProgram(t *testing.T) {
	store := &mockLoyaltyStore{programErr: ErrNoProgram}

	err := NewProcessor(store).AccrueForOrder(context.Background(), testOrder("50.00"))
	require.NoError(t, err)
	assert.Nil(t, store.appended)
	assert.Zero(t, store.creditCalls)
}

func TestAccrueForOrder_InactiveProgram(t *testing.T) {
	program := activeProgram()
	program.Active = false
	store := &mockLoyaltyStore{program: program}

	err := NewProcessor(store).AccrueForOrder(context.Background(), testOrder("50.00"))
	require.NoError(t, err)
	assert.Nil(t, store.appended)
}

func TestAccrueForOrder_BelowMinOrderValue(t *testing.T) {
	program := activeProgram()
	program.MinOrderValue = dec("100.00")
	store := &mockLoyaltyStore{program: program}

	err := NewProcessor(store).AccrueForOrder(context.Background(), testOrder("99.99"))
	require.NoError(t, err)
	assert.Nil(t, store.appended)
}

func TestAccrueForOrder_ZeroPoints(t *testing.T) {
	program := activeProgram()
	program.PointsPerCurrency = dec("0.01")
	store := &mockLoyaltyStore{program: program}

	// 0.50 × 0.01 = 0.005 points, floors to zero.
	err := NewProcessor(store).AccrueForOrder(context.Background(), testOrder("0.50"))
	require.NoError(t, err)
	assert.Nil(t, store.appended)
}

func TestAccrueForOrder_ExpiryStamped(t *testing.T) {
	program := activeProgram()
	program.ValidityDays = 90
	store := &mockLoyaltyStore{
		program: program,
		balance: &Balance{ID: "b1"},
	}

	p := NewProcessor(store)
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixedNow }

	err := p.AccrueForOrder(context.Background(), testOrder("20.00"))
	require.NoError(t, err)

	require.NotNil(t, store.appended)
	require.NotNil(t, store.appended.ExpiresAt)
	assert.Equal(t, fixedNow.AddDate(0, 0, 90), *store.appended.ExpiresAt)
}

func TestAccrueForOrder_IdempotentOnDuplicate(t *testing.T) {
	store := &mockLoyaltyStore{
		program:   activeProgram(),
		balance:   &Balance{ID: "b1", Points: 5, TotalEarned: 5},
		appendErr: ErrAlreadyAccrued,
	}

	err := NewProcessor(store).AccrueForOrder(context.Background(), testOrder("20.00"))
	require.NoError(t, err)
	// No balance mutation when the order was already credited.
	assert.Zero(t, store.creditCalls)
}

func TestAccrueForOrder_StoreErrorPropagates(t *testing.T) {
	store := &mockLoyaltyStore{
		program:    activeProgram(),
		balanceErr: errors.New("db down"),
	}

	err := NewProcessor(store).AccrueForOrder(context.Background(), testOrder("20.00"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get or create balance")
}
