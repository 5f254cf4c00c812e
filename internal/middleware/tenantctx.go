package middleware

import (
	"context"
	"net/http"

	"github.com/quotearchive/quotesearch/internal/tenant"
)

type contextKey string

// ContextKeyTenant carries the resolved *tenant.Tenant in request contexts.
const ContextKeyTenant contextKey = "tenant"

// TenantResolver resolves the request Host header to a tenant and adds it
// to the request context. The core never parses hostnames beyond this
// boundary.
type TenantResolver struct {
	registry *tenant.Registry
}

// NewTenantResolver creates a new tenant resolution middleware
func NewTenantResolver(registry *tenant.Registry) *TenantResolver {
	return &TenantResolver{registry: registry}
}

// Handler wraps an HTTP handler with tenant resolution
func (tr *TenantResolver) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := tr.registry.Detect(r.Host)
		ctx := WithTenant(r.Context(), t)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithTenant returns a context carrying the tenant.
func WithTenant(ctx context.Context, t *tenant.Tenant) context.Context {
	return context.WithValue(ctx, ContextKeyTenant, t)
}

// TenantFrom extracts the tenant from the context, nil when absent.
func TenantFrom(ctx context.Context) *tenant.Tenant {
	t, _ := ctx.Value(ContextKeyTenant).(*tenant.Tenant)
	return t
}
