package router

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mindwell-health/practice-platform/internal/tenancy"
)

const tenantHeader = "X-Tenant-Id"

// requireTenantID enforces the multi-tenancy header on API requests.
func requireTenantID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(tenantHeader))
		if raw == "" {
			http.Error(w, "missing X-Tenant-Id", http.StatusBadRequest)
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid X-Tenant-Id", http.StatusBadRequest)
			return
		}
		ctx := tenancy.WithTenantID(r.Context(), tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
