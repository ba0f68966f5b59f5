package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tably/order-engine/internal/domain/catalog"
	"github.com/tably/order-engine/internal/domain/coupon"
	"github.com/tably/order-engine/internal/domain/customer"
	"github.com/tably/order-engine/internal/domain/dining"
	"github.com/tably/order-engine/internal/domain/fault"
	"github.com/tably/order-engine/internal/domain/tenant"
)

// Actors recorded in status history entries.
const (
	ActorCustomer = "customer"
	ActorStaff    = "staff"
	ActorSystem   = "system"
)

const defaultCallTimeout = 5 * time.Second

// Dependencies are the collaborators the order service is built from.
// Accruer and Notifier are optional; every other field is required.
type Dependencies struct {
	Tenants   tenant.Directory
	Catalog   catalog.Resolver
	Customers customer.Directory
	Tables    dining.TableDirectory
	Coupons   coupon.Validator
	Orders    Repository
	Accruer   Accruer
	Notifier  NotificationSink
}

// Service implements every order operation: creation, lifecycle transitions,
// and pre-confirmation edits.
type Service struct {
	deps        Dependencies
	lg          *zap.Logger
	callTimeout time.Duration
	now         func() time.Time
}

// NewService creates an order Service. callTimeout bounds each collaborator
// call; zero selects the default of 5s.
func NewService(deps Dependencies, lg *zap.Logger, callTimeout time.Duration) *Service {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Service{
		deps:        deps,
		lg:          lg,
		callTimeout: callTimeout,
		now:         time.Now,
	}
}

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	Customer      customer.Info
	Type          Type
	PaymentMethod PaymentMethod
	TableID       string
	Items         []ItemInput
	CouponCode    string
}

// CreateOrderResult is the outcome of a successful order creation.
// CouponWarning is set when a supplied coupon code was rejected: the order is
// still created, without the discount.
type CreateOrderResult struct {
	Order         *Order
	CouponWarning string
}

// CreateOrder builds, prices, and persists an order for the tenant, then
// triggers loyalty accrual and notification as best-effort side effects.
func (s *Service) CreateOrder(ctx context.Context, tenantID string, req CreateOrderRequest) (*CreateOrderResult, error) {
	tn, err := s.getTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.createForTenant(ctx, tn, req, ActorStaff)
}

// CreatePublicOrder is the unauthenticated storefront path: the tenant is
// resolved by its public slug and the order is attributed to the customer.
func (s *Service) CreatePublicOrder(ctx context.Context, slug string, req CreateOrderRequest) (*CreateOrderResult, error) {
	callCtx, cancel := s.callCtx(ctx)
	tn, err := s.deps.Tenants.GetBySlug(callCtx, slug)
	cancel()
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return nil, fault.Wrap(err, fault.NotFound, "store %q not found", slug)
		}
		return nil, classifyUpstream(err, "resolve store %q", slug)
	}
	return s.createForTenant(ctx, tn, req, ActorCustomer)
}

func (s *Service) createForTenant(ctx context.Context, tn *tenant.Tenant, req CreateOrderRequest, actor string) (*CreateOrderResult, error) {
	if !ValidType(req.Type) {
		return nil, fault.New(fault.ValidationFailed, "unknown order type %q", req.Type)
	}
	if req.PaymentMethod != "" && !ValidPaymentMethod(req.PaymentMethod) {
		return nil, fault.New(fault.ValidationFailed, "unknown payment method %q", req.PaymentMethod)
	}

	phone, err := customer.NormalizePhone(req.Customer.Phone)
	if err != nil {
		return nil, fault.Wrap(err, fault.ValidationFailed, "invalid phone number")
	}
	req.Customer.Phone = phone

	// Table orders must reference an existing, tenant-owned table before
	// anything else is resolved.
	if req.Type == TypeTable {
		if req.TableID == "" {
			return nil, fault.Wrap(ErrTableRequired, fault.ValidationFailed, "table orders require a table")
		}
		callCtx, cancel := s.callCtx(ctx)
		_, err := s.deps.Tables.GetTable(callCtx, tn.ID, req.TableID)
		cancel()
		if err != nil {
			if errors.Is(err, dining.ErrTableNotFound) {
				return nil, fault.Wrap(err, fault.NotFound, "table %s not found", req.TableID)
			}
			return nil, classifyUpstream(err, "resolve table %s", req.TableID)
		}
	}

	itemsCtx, cancelItems := s.callCtx(ctx)
	items, err := buildItems(itemsCtx, s.deps.Catalog, tn.ID, req.Items)
	cancelItems()
	if err != nil {
		return nil, err
	}

	cust, err := s.resolveCustomer(ctx, tn.ID, req.Customer)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:             uuid.New().String(),
		TenantID:       tn.ID,
		CustomerID:     cust.ID,
		Type:           req.Type,
		Status:         StatusPending,
		TableID:        req.TableID,
		PaymentMethod:  req.PaymentMethod,
		Items:          items,
		DeliveryFee:    decimal.Zero,
		DiscountAmount: decimal.Zero,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Type == TypeDelivery {
		o.DeliveryFee = tn.DeliveryFee
	}
	reprice(o)

	// Coupon rejection degrades to a warning: the order proceeds without the
	// discount. Only transport/store errors abort creation.
	var (
		warning  string
		discount *coupon.Discount
	)
	if req.CouponCode != "" {
		couponCtx, cancel := s.callCtx(ctx)
		discount, err = s.deps.Coupons.Validate(couponCtx, tn.ID, req.CouponCode, o.Subtotal)
		cancel()
		switch {
		case err == nil:
			o.CouponCode = discount.Code
			o.DiscountAmount = discount.Amount
			reprice(o)
		case isCouponRejection(err):
			warning = err.Error()
			discount = nil
		default:
			return nil, classifyUpstream(err, "validate coupon %q", req.CouponCode)
		}
	}

	createCtx, cancelCreate := s.callCtx(ctx)
	err = s.deps.Orders.Create(createCtx, o)
	cancelCreate()
	if err != nil {
		if errors.Is(err, ErrTableOccupied) {
			return nil, fault.Wrap(err, fault.Conflict, "table %s already has an open order", req.TableID)
		}
		return nil, classifyUpstream(err, "create order")
	}

	// A use is consumed only once the order row exists, so an aborted
	// creation never burns one.
	if discount != nil {
		if w := s.redeemCoupon(ctx, o, discount); w != "" {
			warning = w
		}
	}

	if s.deps.Accruer != nil {
		s.runSideEffect(ctx, "loyalty_accrual", o.ID, func(ctx context.Context) error {
			return s.deps.Accruer.AccrueForOrder(ctx, o)
		})
	}
	if s.deps.Notifier != nil {
		s.runSideEffect(ctx, "notify_new_order", o.ID, func(ctx context.Context) error {
			return s.deps.Notifier.NotifyNewOrder(ctx, o)
		})
	}

	return &CreateOrderResult{Order: o, CouponWarning: warning}, nil
}

// resolveCustomer finds an existing customer by (tenant, phone) or creates
// one. The directory's create is create-or-get, so a lost race still returns
// the surviving record.
func (s *Service) resolveCustomer(ctx context.Context, tenantID string, info customer.Info) (*customer.Customer, error) {
	callCtx, cancel := s.callCtx(ctx)
	defer cancel()

	cust, err := s.deps.Customers.FindByPhone(callCtx, tenantID, info.Phone)
	if err == nil {
		return cust, nil
	}
	if !errors.Is(err, customer.ErrNotFound) {
		return nil, classifyUpstream(err, "find customer by phone")
	}

	cust, err = s.deps.Customers.CreateAndLink(callCtx, tenantID, info)
	if err != nil {
		return nil, classifyUpstream(err, "create customer")
	}
	return cust, nil
}

// redeemCoupon consumes one use of a validated coupon for an already created
// order. Losing the redemption race strips the discount and reprices the
// order instead of failing it; the returned warning reports the lost
// discount. Any other failure keeps the discount and is only logged, since a
// retry could count the same use twice.
func (s *Service) redeemCoupon(ctx context.Context, o *Order, d *coupon.Discount) string {
	callCtx, cancel := s.callCtx(ctx)
	err := s.deps.Coupons.Redeem(callCtx, d)
	cancel()
	if err == nil {
		return ""
	}
	if !errors.Is(err, coupon.ErrExhausted) {
		s.lg.Warn("coupon redemption failed",
			zap.String("order_id", o.ID),
			zap.String("coupon_code", d.Code),
			zap.Error(err),
		)
		return ""
	}

	o.CouponCode = ""
	o.DiscountAmount = decimal.Zero
	reprice(o)
	o.UpdatedAt = s.now()
	if err := s.update(ctx, o); err != nil {
		s.lg.Error("removing exhausted coupon from order failed",
			zap.String("order_id", o.ID),
			zap.String("coupon_code", d.Code),
			zap.Error(err),
		)
	}
	return coupon.ErrExhausted.Error()
}

// TransitionRequest asks for a status change on an existing order.
type TransitionRequest struct {
	Status Status
	Actor  string
	Notes  string
	// PrepMinutes is required when entering Confirmed.
	PrepMinutes int
	// Reason is required when entering Rejected.
	Reason string
}

// UpdateOrderStatus applies one transition through the status engine. The
// write carries an optimistic version check, so concurrent transitions from
// the same prior state cannot both succeed.
func (s *Service) UpdateOrderStatus(ctx context.Context, tenantID, orderID string, req TransitionRequest) (*Order, error) {
	if !ValidStatus(req.Status) {
		return nil, fault.New(fault.ValidationFailed, "unknown status %q", req.Status)
	}

	o, err := s.getOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(o.Status, req.Status) {
		return nil, invalidTransition(o.Status, req.Status)
	}

	// Cancellation from any state past Pending is operator-only.
	if req.Status == StatusCancelled && req.Actor == ActorCustomer && o.Status != StatusPending {
		return nil, invalidTransition(o.Status, req.Status)
	}

	now := s.now()
	from := o.Status

	switch req.Status {
	case StatusConfirmed:
		if req.PrepMinutes <= 0 {
			return nil, fault.Wrap(ErrPrepMinutes, fault.ValidationFailed, "confirming requires preparation minutes")
		}
		est := now.Add(time.Duration(req.PrepMinutes) * time.Minute)
		if o.Type == TypeDelivery {
			tn, err := s.getTenant(ctx, o.TenantID)
			if err != nil {
				return nil, err
			}
			est = est.Add(tn.DeliveryBuffer)
		}
		o.EstimatedReadyAt = &est
	case StatusRejected:
		if req.Reason == "" {
			return nil, fault.Wrap(ErrReasonRequired, fault.ValidationFailed, "rejecting requires a reason")
		}
		o.Rejection = &Rejection{Reason: req.Reason, Notes: req.Notes, CreatedAt: now}
	}

	o.Status = req.Status
	o.UpdatedAt = now

	change := StatusChange{Status: req.Status, Actor: req.Actor, Notes: req.Notes, CreatedAt: now}
	if err := s.update(ctx, o, change); err != nil {
		return nil, err
	}

	if s.deps.Notifier != nil {
		s.runSideEffect(ctx, "notify_status_changed", o.ID, func(ctx context.Context) error {
			return s.deps.Notifier.NotifyStatusChanged(ctx, o.ID, from, o.Status, req.Notes)
		})
		switch o.Status {
		case StatusReady:
			s.runSideEffect(ctx, "notify_order_ready", o.ID, func(ctx context.Context) error {
				return s.deps.Notifier.NotifyOrderReady(ctx, o.ID)
			})
		case StatusDelivered:
			s.runSideEffect(ctx, "notify_order_completed", o.ID, func(ctx context.Context) error {
				return s.deps.Notifier.NotifyOrderCompleted(ctx, o.ID)
			})
		}
	}

	return o, nil
}

// AcceptOrder confirms a pending order with an estimated preparation time.
func (s *Service) AcceptOrder(ctx context.Context, tenantID, orderID string, prepMinutes int, notes string) (*Order, error) {
	return s.UpdateOrderStatus(ctx, tenantID, orderID, TransitionRequest{
		Status:      StatusConfirmed,
		Actor:       ActorStaff,
		Notes:       notes,
		PrepMinutes: prepMinutes,
	})
}

// RejectOrder rejects an order with a mandatory reason.
func (s *Service) RejectOrder(ctx context.Context, tenantID, orderID, reason, notes string) (*Order, error) {
	return s.UpdateOrderStatus(ctx, tenantID, orderID, TransitionRequest{
		Status: StatusRejected,
		Actor:  ActorStaff,
		Notes:  notes,
		Reason: reason,
	})
}

// CancelOrder cancels an order. Customers may only cancel while the order is
// still pending; operators follow the transition table.
func (s *Service) CancelOrder(ctx context.Context, tenantID, orderID, actor, reason string) (*Order, error) {
	return s.UpdateOrderStatus(ctx, tenantID, orderID, TransitionRequest{
		Status: StatusCancelled,
		Actor:  actor,
		Notes:  reason,
	})
}

// UpdateOrderRequest carries a general pending-order edit. Nil or empty
// fields leave the corresponding part of the order untouched.
type UpdateOrderRequest struct {
	Customer *customer.Info
	Items    []ItemInput
}

// UpdateOrder edits a pending order: it can reattribute the order to another
// customer and replace the item list wholesale. Totals are recomputed from
// scratch after the edit.
func (s *Service) UpdateOrder(ctx context.Context, tenantID, orderID string, req UpdateOrderRequest) (*Order, error) {
	if req.Customer == nil && len(req.Items) == 0 {
		return nil, fault.New(fault.ValidationFailed, "nothing to update")
	}

	o, err := s.getOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, fault.Wrap(ErrNotEditable, fault.Conflict, "order %s is %s", orderID, o.Status)
	}

	if req.Customer != nil {
		phone, err := customer.NormalizePhone(req.Customer.Phone)
		if err != nil {
			return nil, fault.Wrap(err, fault.ValidationFailed, "invalid phone number")
		}
		info := *req.Customer
		info.Phone = phone
		cust, err := s.resolveCustomer(ctx, tenantID, info)
		if err != nil {
			return nil, err
		}
		o.CustomerID = cust.ID
	}

	if len(req.Items) > 0 {
		itemsCtx, cancel := s.callCtx(ctx)
		items, err := buildItems(itemsCtx, s.deps.Catalog, tenantID, req.Items)
		cancel()
		if err != nil {
			return nil, err
		}
		o.Items = items
	}

	reprice(o)
	o.UpdatedAt = s.now()

	if err := s.update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// AddItemsToOrder appends items to a pending order and recomputes all totals
// from scratch.
func (s *Service) AddItemsToOrder(ctx context.Context, tenantID, orderID string, inputs []ItemInput) (*Order, error) {
	o, err := s.getOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, fault.Wrap(ErrNotEditable, fault.Conflict, "order %s is %s", orderID, o.Status)
	}

	itemsCtx, cancel := s.callCtx(ctx)
	items, err := buildItems(itemsCtx, s.deps.Catalog, tenantID, inputs)
	cancel()
	if err != nil {
		return nil, err
	}

	o.Items = append(o.Items, items...)
	reprice(o)
	o.UpdatedAt = s.now()

	if err := s.update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateOrderPaymentMethod changes the payment method of a pending order.
func (s *Service) UpdateOrderPaymentMethod(ctx context.Context, tenantID, orderID string, method PaymentMethod) (*Order, error) {
	if !ValidPaymentMethod(method) {
		return nil, fault.New(fault.ValidationFailed, "unknown payment method %q", method)
	}

	o, err := s.getOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, fault.Wrap(ErrNotEditable, fault.Conflict, "order %s is %s", orderID, o.Status)
	}

	o.PaymentMethod = method
	o.UpdatedAt = s.now()

	if err := s.update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateOrderDeliveryType changes how a pending order is fulfilled and
// recomputes the delivery fee and total.
func (s *Service) UpdateOrderDeliveryType(ctx context.Context, tenantID, orderID string, newType Type, tableID string) (*Order, error) {
	if !ValidType(newType) {
		return nil, fault.New(fault.ValidationFailed, "unknown order type %q", newType)
	}

	o, err := s.getOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, fault.Wrap(ErrNotEditable, fault.Conflict, "order %s is %s", orderID, o.Status)
	}

	switch newType {
	case TypeTable:
		if tableID == "" {
			return nil, fault.Wrap(ErrTableRequired, fault.ValidationFailed, "table orders require a table")
		}
		callCtx, cancel := s.callCtx(ctx)
		_, err := s.deps.Tables.GetTable(callCtx, tenantID, tableID)
		cancel()
		if err != nil {
			if errors.Is(err, dining.ErrTableNotFound) {
				return nil, fault.Wrap(err, fault.NotFound, "table %s not found", tableID)
			}
			return nil, classifyUpstream(err, "resolve table %s", tableID)
		}
		o.TableID = tableID
		o.DeliveryFee = decimal.Zero
	case TypePickup:
		o.TableID = ""
		o.DeliveryFee = decimal.Zero
	case TypeDelivery:
		tn, err := s.getTenant(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		o.TableID = ""
		o.DeliveryFee = tn.DeliveryFee
	}

	o.Type = newType
	reprice(o)
	o.UpdatedAt = s.now()

	if err := s.update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrder returns an order visible to the tenant.
func (s *Service) GetOrder(ctx context.Context, tenantID, orderID string) (*Order, error) {
	return s.getOrder(ctx, tenantID, orderID)
}

// GetActiveOrderByTable returns the open tab for a table: the most recent
// non-terminal order created today.
func (s *Service) GetActiveOrderByTable(ctx context.Context, tenantID, tableID string) (*Order, error) {
	callCtx, cancel := s.callCtx(ctx)
	defer cancel()

	o, err := s.deps.Orders.GetActiveByTable(callCtx, tenantID, tableID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fault.Wrap(err, fault.NotFound, "no active order for table %s", tableID)
		}
		return nil, classifyUpstream(err, "find active order for table %s", tableID)
	}
	return o, nil
}

// --- internal helpers ---

func (s *Service) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.callTimeout)
}

func (s *Service) getTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	callCtx, cancel := s.callCtx(ctx)
	defer cancel()

	tn, err := s.deps.Tenants.GetByID(callCtx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return nil, fault.Wrap(err, fault.NotFound, "tenant %s not found", tenantID)
		}
		return nil, classifyUpstream(err, "resolve tenant %s", tenantID)
	}
	return tn, nil
}

func (s *Service) getOrder(ctx context.Context, tenantID, orderID string) (*Order, error) {
	callCtx, cancel := s.callCtx(ctx)
	defer cancel()

	o, err := s.deps.Orders.GetByID(callCtx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fault.Wrap(err, fault.NotFound, "order %s not found", orderID)
		}
		return nil, classifyUpstream(err, "get order %s", orderID)
	}
	return o, nil
}

func (s *Service) update(ctx context.Context, o *Order, history ...StatusChange) error {
	callCtx, cancel := s.callCtx(ctx)
	defer cancel()

	if err := s.deps.Orders.Update(callCtx, o, history...); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return fault.Wrap(err, fault.Conflict, "order %s was modified concurrently", o.ID)
		}
		if errors.Is(err, ErrTableOccupied) {
			return fault.Wrap(err, fault.Conflict, "table %s already has an open order", o.TableID)
		}
		if errors.Is(err, ErrNotFound) {
			return fault.Wrap(err, fault.NotFound, "order %s not found", o.ID)
		}
		return classifyUpstream(err, "update order %s", o.ID)
	}
	return nil
}

// runSideEffect executes a best-effort stage after the primary write. The
// context is detached from the request so a caller disconnect cannot abort
// it, failures are logged and swallowed.
func (s *Service) runSideEffect(ctx context.Context, name, orderID string, fn func(context.Context) error) {
	effectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.callTimeout)
	defer cancel()

	if err := fn(effectCtx); err != nil {
		s.lg.Warn("side effect failed",
			zap.String("effect", name),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}

func invalidTransition(current, requested Status) error {
	return fault.Wrap(
		&InvalidTransitionError{Current: current, Requested: requested},
		fault.InvalidStatusTransition,
		"cannot move order from %s to %s", current, requested,
	)
}

// classifyUpstream maps collaborator failures: deadline/cancellation becomes
// a retryable UpstreamUnavailable, anything else is Internal.
func classifyUpstream(err error, format string, args ...any) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fault.Wrap(err, fault.UpstreamUnavailable, format, args...)
	}
	return fault.Wrap(err, fault.Internal, format, args...)
}

// isCouponRejection reports whether err is one of the coupon validity
// failures that degrade to a warning instead of failing order creation.
func isCouponRejection(err error) bool {
	return errors.Is(err, coupon.ErrNotFound) ||
		errors.Is(err, coupon.ErrInactive) ||
		errors.Is(err, coupon.ErrNotStarted) ||
		errors.Is(err, coupon.ErrExpired) ||
		errors.Is(err, coupon.ErrUsageLimitReached) ||
		errors.Is(err, coupon.ErrBelowMinOrder) ||
		errors.Is(err, coupon.ErrExhausted)
}
