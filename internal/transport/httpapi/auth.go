package httpapi

import (
	"context"
	"net/http"
)

// TenantHeader carries the authenticated tenant identity. Upstream
// termination (gateway, session layer) is expected to set it; this service
// only propagates it.
const TenantHeader = "X-Tenant-ID"

type contextKey struct{ name string }

var tenantKey = contextKey{"tenant"}

// TenantMiddleware stores the caller's tenant ID in the request context.
// Absence is not rejected here: public chat-by-handle requests carry no
// tenant, so each handler decides whether identity is required.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(TenantHeader); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), tenantKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

// tenantFromContext returns the caller's tenant ID, or "" when the request
// is anonymous.
func tenantFromContext(ctx context.Context) string {
	id, _ := ctx.Value(tenantKey).(string)
	return id
}

// requireTenant extracts the tenant ID or writes a 401. Returns "" when the
// response has been written.
func requireTenant(w http.ResponseWriter, r *http.Request) string {
	id := tenantFromContext(r.Context())
	if id == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing tenant identity")
	}
	return id
}
