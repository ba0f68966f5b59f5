package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tably/order-engine/internal/domain/catalog"
	"github.com/tably/order-engine/internal/domain/coupon"
	"github.com/tably/order-engine/internal/domain/customer"
	"github.com/tably/order-engine/internal/domain/dining"
	"github.com/tably/order-engine/internal/domain/fault"
	"github.com/tably/order-engine/internal/domain/tenant"
)

// --- Mock implementations ---

type mockTenants struct {
	tenant *tenant.Tenant
	err    error
}

func (m *mockTenants) GetByID(_ context.Context, _ string) (*tenant.Tenant, error) {
	return m.tenant, m.err
}

func (m *mockTenants) GetBySlug(_ context.Context, _ string) (*tenant.Tenant, error) {
	return m.tenant, m.err
}

type mockCatalog struct {
	products map[string]*catalog.Product
	addons   map[string]*catalog.Addon
}

func (m *mockCatalog) GetProduct(_ context.Context, _, id string) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *mockCatalog) GetAddon(_ context.Context, _, id string) (*catalog.Addon, error) {
	a, ok := m.addons[id]
	if !ok {
		return nil, catalog.ErrAddonNotFound
	}
	return a, nil
}

type mockCustomers struct {
	byPhone map[string]*customer.Customer
	created *customer.Customer
}

func (m *mockCustomers) FindByPhone(_ context.Context, _, phone string) (*customer.Customer, error) {
	c, ok := m.byPhone[phone]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

func (m *mockCustomers) CreateAndLink(_ context.Context, tenantID string, info customer.Info) (*customer.Customer, error) {
	c := &customer.Customer{ID: "cust-new", TenantID: tenantID, Name: info.Name, Phone: info.Phone}
	m.created = c
	return c, nil
}

type mockTables struct {
	tables map[string]*dining.Table
}

func (m *mockTables) GetTable(_ context.Context, _, id string) (*dining.Table, error) {
	t, ok := m.tables[id]
	if !ok {
		return nil, dining.ErrTableNotFound
	}
	return t, nil
}

type mockCouponValidator struct {
	discount *coupon.Discount
	err      error
	called   bool

	redeemErr error
	redeemed  int
}

func (m *mockCouponValidator) Validate(_ context.Context, _, _ string, _ decimal.Decimal) (*coupon.Discount, error) {
	m.called = true
	return m.discount, m.err
}

func (m *mockCouponValidator) Redeem(_ context.Context, _ *coupon.Discount) error {
	m.redeemed++
	return m.redeemErr
}

type mockOrderRepo struct {
	created   *Order
	createErr error

	byID      map[string]*Order
	updated   *Order
	history   []StatusChange
	updateErr error

	active    *Order
	activeErr error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, _, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *Order, history ...StatusChange) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = o
	m.history = append(m.history, history...)
	return nil
}

func (m *mockOrderRepo) GetActiveByTable(_ context.Context, _, _ string) (*Order, error) {
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	if m.active == nil {
		return nil, ErrNotFound
	}
	return m.active, nil
}

type mockAccruer struct {
	calls int
	err   error
}

func (m *mockAccruer) AccrueForOrder(_ context.Context, _ *Order) error {
	m.calls++
	return m.err
}

type mockNotifier struct {
	newOrders     int
	statusChanges int
	ready         int
	completed     int
	err           error
}

func (m *mockNotifier) NotifyNewOrder(_ context.Context, _ *Order) error {
	m.newOrders++
	return m.err
}

func (m *mockNotifier) NotifyStatusChanged(_ context.Context, _ string, _, _ Status, _ string) error {
	m.statusChanges++
	return m.err
}

func (m *mockNotifier) NotifyOrderReady(_ context.Context, _ string) error {
	m.ready++
	return m.err
}

func (m *mockNotifier) NotifyOrderCompleted(_ context.Context, _ string) error {
	m.completed++
	return m.err
}

// --- Helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	tenants   *mockTenants
	catalog   *mockCatalog
	customers *mockCustomers
	tables    *mockTables
	coupons   *mockCouponValidator
	orders    *mockOrderRepo
	accruer   *mockAccruer
	notifier  *mockNotifier
	svc       *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		tenants: &mockTenants{tenant: &tenant.Tenant{
			ID:             "t1",
			Slug:           "demo",
			DeliveryFee:    dec("5.00"),
			DeliveryBuffer: 20 * time.Minute,
		}},
		catalog: &mockCatalog{
			products: map[string]*catalog.Product{
				"p1": {ID: "p1", Name: "Margherita", Price: dec("10.00"), Active: true},
				"p2": {ID: "p2", Name: "Pepperoni", Price: dec("12.50"), Active: true},
				"p3": {ID: "p3", Name: "Retired", Price: dec("8.00"), Active: false},
			},
			addons: map[string]*catalog.Addon{
				"a1": {ID: "a1", Name: "Extra cheese", Price: dec("1.50"), Active: true},
				"a2": {ID: "a2", Name: "Gone", Price: dec("2.00"), Active: false},
			},
		},
		customers: &mockCustomers{byPhone: map[string]*customer.Customer{
			"5551234567": {ID: "cust-1", TenantID: "t1", Phone: "5551234567"},
		}},
		tables: &mockTables{tables: map[string]*dining.Table{
			"tbl-1": {ID: "tbl-1", TenantID: "t1", Label: "T1"},
		}},
		coupons:  &mockCouponValidator{},
		orders:   &mockOrderRepo{byID: map[string]*Order{}},
		accruer:  &mockAccruer{},
		notifier: &mockNotifier{},
	}

	env.svc = NewService(Dependencies{
		Tenants:   env.tenants,
		Catalog:   env.catalog,
		Customers: env.customers,
		Tables:    env.tables,
		Coupons:   env.coupons,
		Orders:    env.orders,
		Accruer:   env.accruer,
		Notifier:  env.notifier,
	}, zap.NewNop(), 0)
	env.svc.now = func() time.Time { return fixedNow }

	return env
}

func pickupRequest() CreateOrderRequest {
	return CreateOrderRequest{
		Customer: customer.Info{Name: "Ada", Phone: "555-123-4567"},
		Type:     TypePickup,
		Items:    []ItemInput{{ProductID: "p1", Quantity: 2}},
	}
}

// --- Creation tests ---

func TestCreateOrder_PickupTotals(t *testing.T) {
	env := newTestEnv()

	result, err := env.svc.CreateOrder(context.Background(), "t1", pickupRequest())
	require.NoError(t, err)

	o := result.Order
	assert.True(t, dec("20.00").Equal(o.Subtotal), "subtotal %s", o.Subtotal)
	assert.True(t, o.DeliveryFee.IsZero())
	assert.True(t, dec("20.00").Equal(o.Total), "total %s", o.Total)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, 1, o.Version)
	assert.Equal(t, "cust-1", o.CustomerID)
	assert.Equal(t, "Margherita", o.Items[0].Name)
	require.NotNil(t, env.orders.created)
}

func TestCreateOrder_DeliveryFeeApplied(t *testing.T) {
	env := newTestEnv()
	req := pickupRequest()
	req.Type = TypeDelivery

	result, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.NoError(t, err)

	o := result.Order
	assert.True(t, dec("5.00").Equal(o.DeliveryFee))
	assert.True(t, dec("25.00").Equal(o.Total), "total %s", o.Total)
}

func TestCreateOrder_AddonPricing(t *testing.T) {
	env := newTestEnv()
	req := CreateOrderRequest{
		Customer: customer.Info{Phone: "5551234567"},
		Type:     TypePickup,
		Items: []ItemInput{{
			ProductID: "p1",
			Quantity:  2,
			Addons:    []AddonInput{{AddonID: "a1", Quantity: 2}},
		}},
	}

	result, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.NoError(t, err)

	item := result.Order.Items[0]
	// 10.00×2 + 1.50×2 = 23.00
	assert.True(t, dec("23.00").Equal(item.Subtotal), "item subtotal %s", item.Subtotal)
	assert.True(t, dec("3.00").Equal(item.Addons[0].Subtotal))
	assert.True(t, dec("23.00").Equal(result.Order.Total))
}

func TestCreateOrder_DiscountApplied(t *testing.T) {
	env := newTestEnv()
	env.coupons.discount = &coupon.Discount{CouponID: "c1", Code: "SAVE5", Amount: dec("5.00")}

	req := CreateOrderRequest{
		Customer:   customer.Info{Phone: "5551234567"},
		Type:       TypePickup,
		Items:      []ItemInput{{ProductID: "p2", Quantity: 8}}, // 100.00
		CouponCode: "SAVE5",
	}

	result, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.NoError(t, err)

	o := result.Order
	assert.True(t, dec("100.00").Equal(o.Subtotal))
	assert.True(t, dec("5.00").Equal(o.DiscountAmount))
	assert.True(t, dec("95.00").Equal(o.Total), "total %s", o.Total)
	assert.Equal(t, "SAVE5", o.CouponCode)
	assert.Empty(t, result.CouponWarning)
	assert.Equal(t, 1, env.coupons.redeemed)
}

func TestCreateOrder_FailedCreateLeavesCouponUnspent(t *testing.T) {
	env := newTestEnv()
	env.coupons.discount = &coupon.Discount{CouponID: "c1", Code: "SAVE5", Amount: dec("5.00")}
	env.orders.createErr = ErrTableOccupied

	req := pickupRequest()
	req.Type = TypeTable
	req.TableID = "tbl-1"
	req.CouponCode = "SAVE5"

	_, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.ErrorIs(t, err, ErrTableOccupied)
	// The use must survive for the customer's retry.
	assert.Equal(t, 0, env.coupons.redeemed)
}

func TestCreateOrder_ExhaustedAtRedemptionDropsDiscount(t *testing.T) {
	env := newTestEnv()
	env.coupons.discount = &coupon.Discount{CouponID: "c1", Code: "SAVE5", Amount: dec("5.00")}
	env.coupons.redeemErr = coupon.ErrExhausted

	req := pickupRequest()
	req.CouponCode = "SAVE5"

	result, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.NoError(t, err)

	// Losing the redemption race keeps the order but removes the discount.
	o := result.Order
	assert.Empty(t, o.CouponCode)
	assert.True(t, o.DiscountAmount.IsZero())
	assert.True(t, dec("20.00").Equal(o.Total), "total %s", o.Total)
	assert.Contains(t, result.CouponWarning, "exhausted")
	require.NotNil(t, env.orders.updated, "stripped discount must be persisted")
}

func TestCreateOrder_RedemptionErrorKeepsDiscount(t *testing.T) {
	env := newTestEnv()
	env.coupons.discount = &coupon.Discount{CouponID: "c1", Code: "SAVE5", Amount: dec("5.00")}
	env.coupons.redeemErr = errors.New("db down")

	req := pickupRequest()
	req.CouponCode = "SAVE5"

	result, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.NoError(t, err)

	// A transient redemption failure is not the customer's problem: the
	// discount stands and the use stays uncounted.
	assert.Equal(t, "SAVE5", result.Order.CouponCode)
	assert.True(t, dec("5.00").Equal(result.Order.DiscountAmount))
	assert.Empty(t, result.CouponWarning)
}

func TestCreateOrder_RejectedCouponBecomesWarning(t *testing.T) {
	env := newTestEnv()
	env.coupons.err = coupon.ErrUsageLimitReached

	req := pickupRequest()
	req.CouponCode = "EXHAUSTED"

	result, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.NoError(t, err)

	o := result.Order
	assert.True(t, o.DiscountAmount.IsZero())
	assert.Empty(t, o.CouponCode)
	assert.True(t, dec("20.00").Equal(o.Total))
	assert.Contains(t, result.CouponWarning, "usage limit")
	require.NotNil(t, env.orders.created, "order must still be created")
}

func TestCreateOrder_CouponStoreErrorFails(t *testing.T) {
	env := newTestEnv()
	env.coupons.err = errors.Wrap(context.DeadlineExceeded, "lookup coupon")

	req := pickupRequest()
	req.CouponCode = "ANY"

	_, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.Error(t, err)
	assert.Equal(t, fault.UpstreamUnavailable, fault.KindOf(err))
	assert.Nil(t, env.orders.created)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	env := newTestEnv()
	req := pickupRequest()
	req.Items = nil

	_, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.ErrorIs(t, err, ErrEmptyItems)
	assert.Equal(t, fault.ValidationFailed, fault.KindOf(err))
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	env := newTestEnv()
	req := pickupRequest()
	req.Items = []ItemInput{{ProductID: "p1", Quantity: 0}}

	_, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, fault.ValidationFailed, fault.KindOf(err))
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	env := newTestEnv()
	req := pickupRequest()
	req.Items = []ItemInput{{ProductID: "missing", Quantity: 1}}

	_, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
}

func TestCreateOrder_InactiveProduct(t *testing.T) {
	env := newTestEnv()
	req := pickupRequest()
	req.Items = []ItemInput{{ProductID: "p3", Quantity: 1}}

	_, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.Error(t, err)
	assert.Equal(t, fault.InactiveEntity, fault.KindOf(err))
}

func TestCreateOrder_InactiveAddon(t *testing.T) {
	env := newTestEnv()
	req := pickupRequest()
	req.Items = []ItemInput{{
		ProductID: "p1",
		Quantity:  1,
		Addons:    []AddonInput{{AddonID: "a2", Quantity: 1}},
	}}

	_, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.Error(t, err)
	assert.Equal(t, fault.InactiveEntity, fault.KindOf(err))
}

func TestCreateOrder_InvalidPhone(t *testing.T) {
	env := newTestEnv()
	req := pickupRequest()
	req.Customer.Phone = "12345"

	_, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.ErrorIs(t, err, customer.ErrInvalidPhone)
	assert.Equal(t, fault.ValidationFailed, fault.KindOf(err))
}

func TestCreateOrder_TableRequired(t *testing.T) {
	env := newTestEnv()
	req := pickupRequest()
	req.Type = TypeTable

	_, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.ErrorIs(t, err, ErrTableRequired)
	assert.Equal(t, fault.ValidationFailed, fault.KindOf(err))
}

func TestCreateOrder_TableNotFound(t *testing.T) {
	env := newTestEnv()
	req := pickupRequest()
	req.Type = TypeTable
	req.TableID = "tbl-9"

	_, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.ErrorIs(t, err, dining.ErrTableNotFound)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
}

func TestCreateOrder_TableOccupied(t *testing.T) {
	env := newTestEnv()
	env.orders.createErr = ErrTableOccupied

	req := pickupRequest()
	req.Type = TypeTable
	req.TableID = "tbl-1"

	_, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.ErrorIs(t, err, ErrTableOccupied)
	assert.Equal(t, fault.Conflict, fault.KindOf(err))
}

func TestCreateOrder_NewCustomerCreated(t *testing.T) {
	env := newTestEnv()
	req := pickupRequest()
	req.Customer.Phone = "5559990000"
	req.Customer.Name = "Grace"

	result, err := env.svc.CreateOrder(context.Background(), "t1", req)
	require.NoError(t, err)

	require.NotNil(t, env.customers.created)
	assert.Equal(t, "5559990000", env.customers.created.Phone)
	assert.Equal(t, "cust-new", result.Order.CustomerID)
}

func TestCreateOrder_SnapshotSurvivesCatalogEdit(t *testing.T) {
	env := newTestEnv()

	result, err := env.svc.CreateOrder(context.Background(), "t1", pickupRequest())
	require.NoError(t, err)

	// A later catalog price change must not alter the created order.
	env.catalog.products["p1"].Price = dec("99.00")
	env.catalog.products["p1"].Name = "Renamed"

	assert.True(t, dec("10.00").Equal(result.Order.Items[0].UnitPrice))
	assert.Equal(t, "Margherita", result.Order.Items[0].Name)
	assert.True(t, dec("20.00").Equal(result.Order.Total))
}

func TestCreateOrder_SideEffectsFireAndForget(t *testing.T) {
	env := newTestEnv()
	env.accruer.err = errors.New("loyalty db down")
	env.notifier.err = errors.New("broker down")

	result, err := env.svc.CreateOrder(context.Background(), "t1", pickupRequest())
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Equal(t, 1, env.accruer.calls)
	assert.Equal(t, 1, env.notifier.newOrders)
}

func TestCreatePublicOrder_ResolvesSlug(t *testing.T) {
	env := newTestEnv()

	result, err := env.svc.CreatePublicOrder(context.Background(), "demo", pickupRequest())
	require.NoError(t, err)
	assert.Equal(t, "t1", result.Order.TenantID)
}

func TestCreatePublicOrder_UnknownSlug(t *testing.T) {
	env := newTestEnv()
	env.tenants.tenant = nil
	env.tenants.err = tenant.ErrNotFound

	_, err := env.svc.CreatePublicOrder(context.Background(), "nope", pickupRequest())
	require.ErrorIs(t, err, tenant.ErrNotFound)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
}

// --- Transition tests ---

func pendingOrder() *Order {
	return &Order{
		ID:       "o1",
		TenantID: "t1",
		Type:     TypePickup,
		Status:   StatusPending,
		Subtotal: dec("20.00"),
		Total:    dec("20.00"),
		Version:  1,
	}
}

func TestAcceptOrder_SetsEstimatedReadyAt(t *testing.T) {
	env := newTestEnv()
	env.orders.byID["o1"] = pendingOrder()

	o, err := env.svc.AcceptOrder(context.Background(), "t1", "o1", 15, "on it")
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, o.Status)
	require.NotNil(t, o.EstimatedReadyAt)
	assert.Equal(t, fixedNow.Add(15*time.Minute), *o.EstimatedReadyAt)

	require.Len(t, env.orders.history, 1)
	assert.Equal(t, StatusConfirmed, env.orders.history[0].Status)
	assert.Equal(t, ActorStaff, env.orders.history[0].Actor)
	assert.Equal(t, 1, env.notifier.statusChanges)
}

func TestAcceptOrder_DeliveryAddsBuffer(t *testing.T) {
	env := newTestEnv()
	o := pendingOrder()
	o.Type = TypeDelivery
	env.orders.byID["o1"] = o

	updated, err := env.svc.AcceptOrder(context.Background(), "t1", "o1", 15, "")
	require.NoError(t, err)

	require.NotNil(t, updated.EstimatedReadyAt)
	assert.Equal(t, fixedNow.Add(35*time.Minute), *updated.EstimatedReadyAt)
}

func TestAcceptOrder_RequiresPrepMinutes(t *testing.T) {
	env := newTestEnv()
	env.orders.byID["o1"] = pendingOrder()

	_, err := env.svc.AcceptOrder(context.Background(), "t1", "o1", 0, "")
	require.ErrorIs(t, err, ErrPrepMinutes)
	assert.Equal(t, fault.ValidationFailed, fault.KindOf(err))
}

func TestRejectOrder_RequiresReason(t *testing.T) {
	env := newTestEnv()
	env.orders.byID["o1"] = pendingOrder()

	_, err := env.svc.RejectOrder(context.Background(), "t1", "o1", "", "")
	require.ErrorIs(t, err, ErrReasonRequired)
}

func TestRejectOrder_RecordsRejection(t *testing.T) {
	env := newTestEnv()
	env.orders.byID["o1"] = pendingOrder()

	o, err := env.svc.RejectOrder(context.Background(), "t1", "o1", "out of stock", "sorry")
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, o.Status)
	require.NotNil(t, o.Rejection)
	assert.Equal(t, "out of stock", o.Rejection.Reason)
	assert.Equal(t, fixedNow, o.Rejection.CreatedAt)
}

func TestUpdateOrderStatus_IllegalTransition(t *testing.T) {
	env := newTestEnv()
	o := pendingOrder()
	o.Status = StatusPreparing
	env.orders.byID["o1"] = o

	_, err := env.svc.UpdateOrderStatus(context.Background(), "t1", "o1", TransitionRequest{
		Status: StatusConfirmed,
		Actor:  ActorStaff,
	})

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusPreparing, itErr.Current)
	assert.Equal(t, StatusConfirmed, itErr.Requested)
	assert.Equal(t, fault.InvalidStatusTransition, fault.KindOf(err))
}

func TestUpdateOrderStatus_TerminalStatesFrozen(t *testing.T) {
	env := newTestEnv()

	for _, terminal := range []Status{StatusDelivered, StatusCancelled, StatusRejected} {
		o := pendingOrder()
		o.Status = terminal
		env.orders.byID["o1"] = o

		_, err := env.svc.UpdateOrderStatus(context.Background(), "t1", "o1", TransitionRequest{
			Status: StatusCancelled,
			Actor:  ActorStaff,
		})
		require.Error(t, err, "from %s", terminal)
		assert.Equal(t, fault.InvalidStatusTransition, fault.KindOf(err))
	}
}

func TestCancelOrder_CustomerOnlyFromPending(t *testing.T) {
	env := newTestEnv()
	o := pendingOrder()
	o.Status = StatusConfirmed
	env.orders.byID["o1"] = o

	_, err := env.svc.CancelOrder(context.Background(), "t1", "o1", ActorCustomer, "changed my mind")
	require.Error(t, err)
	assert.Equal(t, fault.InvalidStatusTransition, fault.KindOf(err))

	// The same cancellation is fine for staff.
	_, err = env.svc.CancelOrder(context.Background(), "t1", "o1", ActorStaff, "no courier")
	require.NoError(t, err)
}

func TestUpdateOrderStatus_ReadyAndCompletedNotifications(t *testing.T) {
	env := newTestEnv()
	o := pendingOrder()
	o.Status = StatusPreparing
	env.orders.byID["o1"] = o

	_, err := env.svc.UpdateOrderStatus(context.Background(), "t1", "o1", TransitionRequest{
		Status: StatusReady, Actor: ActorStaff,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, env.notifier.ready)

	o.Status = StatusReady
	_, err = env.svc.UpdateOrderStatus(context.Background(), "t1", "o1", TransitionRequest{
		Status: StatusDelivered, Actor: ActorStaff,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, env.notifier.completed)
}

func TestUpdateOrderStatus_VersionConflict(t *testing.T) {
	env := newTestEnv()
	env.orders.byID["o1"] = pendingOrder()
	env.orders.updateErr = ErrVersionConflict

	_, err := env.svc.AcceptOrder(context.Background(), "t1", "o1", 10, "")
	require.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, fault.Conflict, fault.KindOf(err))
}

func TestUpdateOrderStatus_OrderNotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.AcceptOrder(context.Background(), "t1", "nope", 10, "")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
}

// --- Pre-confirmation edit tests ---

func TestAddItemsToOrder_RecomputesTotals(t *testing.T) {
	env := newTestEnv()
	o := pendingOrder()
	o.Items = []Item{{
		ProductID: "p1", Name: "Margherita", UnitPrice: dec("10.00"),
		Quantity: 2, Subtotal: dec("20.00"),
	}}
	env.orders.byID["o1"] = o

	updated, err := env.svc.AddItemsToOrder(context.Background(), "t1", "o1", []ItemInput{
		{ProductID: "p2", Quantity: 1},
	})
	require.NoError(t, err)

	require.Len(t, updated.Items, 2)
	assert.True(t, dec("32.50").Equal(updated.Subtotal), "subtotal %s", updated.Subtotal)
	assert.True(t, dec("32.50").Equal(updated.Total), "total %s", updated.Total)
	require.NotNil(t, env.orders.updated)
}

func TestAddItemsToOrder_OnlyWhilePending(t *testing.T) {
	env := newTestEnv()
	o := pendingOrder()
	o.Status = StatusConfirmed
	env.orders.byID["o1"] = o

	_, err := env.svc.AddItemsToOrder(context.Background(), "t1", "o1", []ItemInput{
		{ProductID: "p2", Quantity: 1},
	})
	require.ErrorIs(t, err, ErrNotEditable)
	assert.Equal(t, fault.Conflict, fault.KindOf(err))
}

func TestUpdateOrderPaymentMethod(t *testing.T) {
	env := newTestEnv()
	env.orders.byID["o1"] = pendingOrder()

	o, err := env.svc.UpdateOrderPaymentMethod(context.Background(), "t1", "o1", PaymentCard)
	require.NoError(t, err)
	assert.Equal(t, PaymentCard, o.PaymentMethod)

	_, err = env.svc.UpdateOrderPaymentMethod(context.Background(), "t1", "o1", "cheque")
	require.Error(t, err)
	assert.Equal(t, fault.ValidationFailed, fault.KindOf(err))
}

func TestUpdateOrderDeliveryType_ToDelivery(t *testing.T) {
	env := newTestEnv()
	env.orders.byID["o1"] = pendingOrder()

	o, err := env.svc.UpdateOrderDeliveryType(context.Background(), "t1", "o1", TypeDelivery, "")
	require.NoError(t, err)

	assert.Equal(t, TypeDelivery, o.Type)
	assert.True(t, dec("5.00").Equal(o.DeliveryFee))
	assert.True(t, dec("25.00").Equal(o.Total), "total %s", o.Total)
}

func TestUpdateOrderDeliveryType_ToTableClearsFee(t *testing.T) {
	env := newTestEnv()
	o := pendingOrder()
	o.Type = TypeDelivery
	o.DeliveryFee = dec("5.00")
	o.Total = dec("25.00")
	env.orders.byID["o1"] = o

	updated, err := env.svc.UpdateOrderDeliveryType(context.Background(), "t1", "o1", TypeTable, "tbl-1")
	require.NoError(t, err)

	assert.Equal(t, TypeTable, updated.Type)
	assert.Equal(t, "tbl-1", updated.TableID)
	assert.True(t, updated.DeliveryFee.IsZero())
	assert.True(t, dec("20.00").Equal(updated.Total))
}

func TestUpdateOrderDeliveryType_ToOccupiedTable(t *testing.T) {
	env := newTestEnv()
	env.orders.byID["o1"] = pendingOrder()
	env.orders.updateErr = ErrTableOccupied

	_, err := env.svc.UpdateOrderDeliveryType(context.Background(), "t1", "o1", TypeTable, "tbl-1")
	require.ErrorIs(t, err, ErrTableOccupied)
	assert.Equal(t, fault.Conflict, fault.KindOf(err))
}

func TestUpdateOrder_ReplacesItems(t *testing.T) {
	env := newTestEnv()
	o := pendingOrder()
	o.Items = []Item{{
		ProductID: "p1", Name: "Margherita", UnitPrice: dec("10.00"),
		Quantity: 2, Subtotal: dec("20.00"),
	}}
	env.orders.byID["o1"] = o

	updated, err := env.svc.UpdateOrder(context.Background(), "t1", "o1", UpdateOrderRequest{
		Items: []ItemInput{{ProductID: "p2", Quantity: 1}},
	})
	require.NoError(t, err)

	// The item list is replaced wholesale and totals recomputed from scratch.
	require.Len(t, updated.Items, 1)
	assert.Equal(t, "Pepperoni", updated.Items[0].Name)
	assert.True(t, dec("12.50").Equal(updated.Subtotal), "subtotal %s", updated.Subtotal)
	assert.True(t, dec("12.50").Equal(updated.Total), "total %s", updated.Total)
	require.NotNil(t, env.orders.updated)
}

func TestUpdateOrder_ReattributesCustomer(t *testing.T) {
	env := newTestEnv()
	o := pendingOrder()
	o.CustomerID = "cust-1"
	env.orders.byID["o1"] = o

	updated, err := env.svc.UpdateOrder(context.Background(), "t1", "o1", UpdateOrderRequest{
		Customer: &customer.Info{Name: "Grace", Phone: "555-999-0000"},
	})
	require.NoError(t, err)

	require.NotNil(t, env.customers.created)
	assert.Equal(t, "5559990000", env.customers.created.Phone)
	assert.Equal(t, "cust-new", updated.CustomerID)
}

func TestUpdateOrder_InvalidPhone(t *testing.T) {
	env := newTestEnv()
	env.orders.byID["o1"] = pendingOrder()

	_, err := env.svc.UpdateOrder(context.Background(), "t1", "o1", UpdateOrderRequest{
		Customer: &customer.Info{Phone: "12345"},
	})
	require.ErrorIs(t, err, customer.ErrInvalidPhone)
	assert.Equal(t, fault.ValidationFailed, fault.KindOf(err))
}

func TestUpdateOrder_OnlyWhilePending(t *testing.T) {
	env := newTestEnv()
	o := pendingOrder()
	o.Status = StatusConfirmed
	env.orders.byID["o1"] = o

	_, err := env.svc.UpdateOrder(context.Background(), "t1", "o1", UpdateOrderRequest{
		Items: []ItemInput{{ProductID: "p2", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrNotEditable)
	assert.Equal(t, fault.Conflict, fault.KindOf(err))
}

func TestUpdateOrder_NothingToUpdate(t *testing.T) {
	env := newTestEnv()
	env.orders.byID["o1"] = pendingOrder()

	_, err := env.svc.UpdateOrder(context.Background(), "t1", "o1", UpdateOrderRequest{})
	require.Error(t, err)
	assert.Equal(t, fault.ValidationFailed, fault.KindOf(err))
}

// --- Lookup tests ---

func TestGetActiveOrderByTable(t *testing.T) {
	env := newTestEnv()
	env.orders.active = pendingOrder()

	o, err := env.svc.GetActiveOrderByTable(context.Background(), "t1", "tbl-1")
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
}

func TestGetActiveOrderByTable_None(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.GetActiveOrderByTable(context.Background(), "t1", "tbl-1")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
}
