package handler

import (
	"net/http"
	"time"

	"github.com/tably/order-engine/internal/domain/customer"
	"github.com/tably/order-engine/internal/domain/order"
)

type customerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type addonRequest struct {
	AddonID  string `json:"addon_id"`
	Quantity int    `json:"quantity"`
}

type itemRequest struct {
	ProductID string         `json:"product_id"`
	Quantity  int            `json:"quantity"`
	Notes     string         `json:"notes,omitempty"`
	Addons    []addonRequest `json:"addons,omitempty"`
}

type createOrderRequest struct {
	Customer      customerRequest `json:"customer"`
	Type          string          `json:"type"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	TableID       string          `json:"table_id,omitempty"`
	Items         []itemRequest   `json:"items"`
	CouponCode    string          `json:"coupon_code,omitempty"`
}

type addonResponse struct {
	AddonID   string `json:"addon_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type itemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice string          `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Notes     string          `json:"notes,omitempty"`
	Addons    []addonResponse `json:"addons,omitempty"`
	Subtotal  string          `json:"subtotal"`
}

type rejectionResponse struct {
	Reason    string    `json:"reason"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type orderResponse struct {
	ID               string             `json:"id"`
	TenantID         string             `json:"tenant_id"`
	CustomerID       string             `json:"customer_id"`
	Type             string             `json:"type"`
	Status           string             `json:"status"`
	TableID          string             `json:"table_id,omitempty"`
	PaymentMethod    string             `json:"payment_method,omitempty"`
	Items            []itemResponse     `json:"items"`
	Subtotal         string             `json:"subtotal"`
	DeliveryFee      string             `json:"delivery_fee"`
	DiscountAmount   string             `json:"discount_amount"`
	CouponCode       string             `json:"coupon_code,omitempty"`
	Total            string             `json:"total"`
	EstimatedReadyAt *time.Time         `json:"estimated_ready_at,omitempty"`
	Rejection        *rejectionResponse `json:"rejection,omitempty"`
	Version          int                `json:"version"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

type createOrderResponse struct {
	Order         orderResponse `json:"order"`
	CouponWarning string        `json:"coupon_warning,omitempty"`
}

func toItemInputs(items []itemRequest) []order.ItemInput {
	inputs := make([]order.ItemInput, 0, len(items))
	for _, it := range items {
		in := order.ItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Notes:     it.Notes,
		}
		for _, a := range it.Addons {
			in.Addons = append(in.Addons, order.AddonInput{AddonID: a.AddonID, Quantity: a.Quantity})
		}
		inputs = append(inputs, in)
	}
	return inputs
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:               o.ID,
		TenantID:         o.TenantID,
		CustomerID:       o.CustomerID,
		Type:             string(o.Type),
		Status:           string(o.Status),
		TableID:          o.TableID,
		PaymentMethod:    string(o.PaymentMethod),
		Items:            make([]itemResponse, 0, len(o.Items)),
		Subtotal:         o.Subtotal.StringFixed(2),
		DeliveryFee:      o.DeliveryFee.StringFixed(2),
		DiscountAmount:   o.DiscountAmount.StringFixed(2),
		CouponCode:       o.CouponCode,
		Total:            o.Total.StringFixed(2),
		EstimatedReadyAt: o.EstimatedReadyAt,
		Version:          o.Version,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	for _, it := range o.Items {
		item := itemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Quantity:  it.Quantity,
			Notes:     it.Notes,
			Subtotal:  it.Subtotal.StringFixed(2),
		}
		for _, a := range it.Addons {
			item.Addons = append(item.Addons, addonResponse{
				AddonID:   a.AddonID,
				Name:      a.Name,
				UnitPrice: a.UnitPrice.StringFixed(2),
				Quantity:  a.Quantity,
				Subtotal:  a.Subtotal.StringFixed(2),
			})
		}
		resp.Items = append(resp.Items, item)
	}
	if o.Rejection != nil {
		resp.Rejection = &rejectionResponse{
			Reason:    o.Rejection.Reason,
			Notes:     o.Rejection.Notes,
			CreatedAt: o.Rejection.CreatedAt,
		}
	}
	return resp
}

func toCreateRequest(req createOrderRequest) order.CreateOrderRequest {
	return order.CreateOrderRequest{
		Customer:      customer.Info{Name: req.Customer.Name, Phone: req.Customer.Phone},
		Type:          order.Type(req.Type),
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		TableID:       req.TableID,
		Items:         toItemInputs(req.Items),
		CouponCode:    req.CouponCode,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.orders.CreateOrder(r.Context(), tenantID(r.Context()), toCreateRequest(req))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, createOrderResponse{
		Order:         toOrderResponse(result.Order),
		CouponWarning: result.CouponWarning,
	})
}

func (h *Handler) createPublicOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.orders.CreatePublicOrder(r.Context(), r.PathValue("slug"), toCreateRequest(req))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, createOrderResponse{
		Order:         toOrderResponse(result.Order),
		CouponWarning: result.CouponWarning,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), tenantID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateOrderRequest struct {
	Customer *customerRequest `json:"customer,omitempty"`
	Items    []itemRequest    `json:"items,omitempty"`
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	var upd order.UpdateOrderRequest
	if req.Customer != nil {
		upd.Customer = &customer.Info{Name: req.Customer.Name, Phone: req.Customer.Phone}
	}
	if len(req.Items) > 0 {
		upd.Items = toItemInputs(req.Items)
	}

	o, err := h.orders.UpdateOrder(r.Context(), tenantID(r.Context()), r.PathValue("id"), upd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateStatusRequest struct {
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
	PrepMinutes int    `json:"prep_minutes,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateOrderStatus(r.Context(), tenantID(r.Context()), r.PathValue("id"), order.TransitionRequest{
		Status:      order.Status(req.Status),
		Actor:       order.ActorStaff,
		Notes:       req.Notes,
		PrepMinutes: req.PrepMinutes,
		Reason:      req.Reason,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderResponse(o))
}

type acceptOrderRequest struct {
	PrepMinutes int    `json:"prep_minutes"`
	Notes       string `json:"notes,omitempty"`
}

func (h *Handler) acceptOrder(w http.ResponseWriter, r *http.Request) {
	var req acceptOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.AcceptOrder(r.Context(), tenantID(r.Context()), r.PathValue("id"), req.PrepMinutes, req.Notes)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderResponse(o))
}

type rejectOrderRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes,omitempty"`
}

func (h *Handler) rejectOrder(w http.ResponseWriter, r *http.Request) {
	var req rejectOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.RejectOrder(r.Context(), tenantID(r.Context()), r.PathValue("id"), req.Reason, req.Notes)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderResponse(o))
}

type cancelOrderRequest struct {
	Actor  string `json:"actor,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := req.Actor
	if actor == "" {
		actor = order.ActorStaff
	}

	o, err := h.orders.CancelOrder(r.Context(), tenantID(r.Context()), r.PathValue("id"), actor, req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderResponse(o))
}

type addItemsRequest struct {
	Items []itemRequest `json:"items"`
}

func (h *Handler) addItems(w http.ResponseWriter, r *http.Request) {
	var req addItemsRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.AddItemsToOrder(r.Context(), tenantID(r.Context()), r.PathValue("id"), toItemInputs(req.Items))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderResponse(o))
}

type updatePaymentMethodRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *Handler) updatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req updatePaymentMethodRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateOrderPaymentMethod(r.Context(), tenantID(r.Context()), r.PathValue("id"), order.PaymentMethod(req.PaymentMethod))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateDeliveryTypeRequest struct {
	Type    string `json:"type"`
	TableID string `json:"table_id,omitempty"`
}

func (h *Handler) updateDeliveryType(w http.ResponseWriter, r *http.Request) {
	var req updateDeliveryTypeRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateOrderDeliveryType(r.Context(), tenantID(r.Context()), r.PathValue("id"), order.Type(req.Type), req.TableID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) getActiveOrderByTable(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetActiveOrderByTable(r.Context(), tenantID(r.Context()), r.PathValue("tableID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toOrderResponse(o))
}
