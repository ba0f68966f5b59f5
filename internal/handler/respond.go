package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/tably/order-engine/internal/domain/fault"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.lg.Warn("writing response", zap.Error(err))
	}
}

// respondError maps the failure kind to a response code. Internal failures are
// logged in full and returned opaque.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()

	if status == http.StatusInternalServerError {
		h.lg.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal error"
	}

	h.respondJSON(w, status, errorResponse{Code: string(kind), Message: msg})
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.ValidationFailed, fault.InactiveEntity, fault.CouponRejected:
		return http.StatusBadRequest
	case fault.NotFound:
		return http.StatusNotFound
	case fault.InvalidStatusTransition, fault.Conflict:
		return http.StatusConflict
	case fault.UpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondJSON(w, http.StatusBadRequest, errorResponse{
			Code:    string(fault.ValidationFailed),
			Message: "malformed request body",
		})
		return false
	}
	return true
}
