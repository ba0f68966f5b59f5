package handler

import (
	"context"
	"net/http"

	"github.com/tably/order-engine/internal/domain/auth"
)

type ctxKey int

const tenantIDKey ctxKey = iota

// tenantID returns the tenant the authenticated API key belongs to.
func tenantID(ctx context.Context) string {
	id, _ := ctx.Value(tenantIDKey).(string)
	return id
}

// APIKeyAuth authenticates staff requests via the X-API-Key header and scopes
// them to the key's tenant. Failures are uniform 401s.
func APIKeyAuth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			info, err := verifier.Verify(r.Context(), key)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), tenantIDKey, info.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
