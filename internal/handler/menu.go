package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/tably/order-engine/internal/domain/fault"
	"github.com/tably/order-engine/internal/domain/tenant"
)

type menuEntryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type menuResponse struct {
	Products []menuEntryResponse `json:"products"`
	Addons   []menuEntryResponse `json:"addons"`
}

// getMenu is the public storefront menu: active products and addons for the
// tenant behind the slug.
func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	tn, err := h.tenants.GetBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			h.respondError(w, r, fault.Wrap(err, fault.NotFound, "store %q not found", slug))
			return
		}
		h.respondError(w, r, err)
		return
	}

	products, err := h.menu.ListProducts(r.Context(), tn.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	addons, err := h.menu.ListAddons(r.Context(), tn.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := menuResponse{
		Products: make([]menuEntryResponse, 0, len(products)),
		Addons:   make([]menuEntryResponse, 0, len(addons)),
	}
	for _, p := range products {
		resp.Products = append(resp.Products, menuEntryResponse{
			ID: p.ID, Name: p.Name, Price: p.Price.StringFixed(2),
		})
	}
	for _, a := range addons {
		resp.Addons = append(resp.Addons, menuEntryResponse{
			ID: a.ID, Name: a.Name, Price: a.Price.StringFixed(2),
		})
	}

	h.respondJSON(w, http.StatusOK, resp)
}
