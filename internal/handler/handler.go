// Package handler exposes the order engine over HTTP. Staff routes are
// authenticated by API key and scoped to the key's tenant; the public
// storefront route is addressed by tenant slug.
package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tably/order-engine/internal/domain/catalog"
	"github.com/tably/order-engine/internal/domain/order"
	"github.com/tably/order-engine/internal/domain/tenant"
)

// Handler wires the order service to HTTP routes.
type Handler struct {
	orders  *order.Service
	tenants tenant.Directory
	menu    catalog.Lister
	lg      *zap.Logger
}

// NewHandler constructs a Handler around the order service.
func NewHandler(orders *order.Service, tenants tenant.Directory, menu catalog.Lister, lg *zap.Logger) *Handler {
	return &Handler{orders: orders, tenants: tenants, menu: menu, lg: lg}
}

// Register attaches all routes to the mux. secured wraps staff routes with
// API key authentication.
func (h *Handler) Register(mux *http.ServeMux, secured func(http.Handler) http.Handler) {
	staff := func(fn http.HandlerFunc) http.Handler { return secured(fn) }

	mux.Handle("POST /api/v1/orders", staff(h.createOrder))
	mux.Handle("GET /api/v1/orders/{id}", staff(h.getOrder))
	mux.Handle("PATCH /api/v1/orders/{id}", staff(h.updateOrder))
	mux.Handle("PATCH /api/v1/orders/{id}/status", staff(h.updateStatus))
	mux.Handle("POST /api/v1/orders/{id}/accept", staff(h.acceptOrder))
	mux.Handle("POST /api/v1/orders/{id}/reject", staff(h.rejectOrder))
	mux.Handle("POST /api/v1/orders/{id}/cancel", staff(h.cancelOrder))
	mux.Handle("POST /api/v1/orders/{id}/items", staff(h.addItems))
	mux.Handle("PATCH /api/v1/orders/{id}/payment-method", staff(h.updatePaymentMethod))
	mux.Handle("PATCH /api/v1/orders/{id}/delivery-type", staff(h.updateDeliveryType))
	mux.Handle("GET /api/v1/tables/{tableID}/active-order", staff(h.getActiveOrderByTable))

	mux.HandleFunc("POST /api/v1/public/{slug}/orders", h.createPublicOrder)
	mux.HandleFunc("GET /api/v1/public/{slug}/menu", h.getMenu)
}
