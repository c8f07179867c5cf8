package tenant_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cargo/internal/tenant"
)

func TestResolverHeaderWinsOverSubdomain(t *testing.T) {
	resolver := tenant.NewResolver("", "cargo.example", "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "acme.cargo.example"
	req.Header.Set("X-Tenant-ID", "from-header")

	require.Equal(t, "from-header", resolver.Resolve(req))
}

func TestResolverSubdomain(t *testing.T) {
	resolver := tenant.NewResolver("", "cargo.example", "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "acme.cargo.example:8080"
	require.Equal(t, "acme", resolver.Resolve(req))

	req.Host = "cargo.example"
	require.Equal(t, "", resolver.Resolve(req))

	req.Host = "other.example"
	require.Equal(t, "", resolver.Resolve(req))
}

func TestMiddlewareAppliesDefaultTenant(t *testing.T) {
	resolver := tenant.NewResolver("", "cargo.example", "fallback")

	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = tenant.From(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "cargo.example"
	resolver.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, "fallback", got)
}

func TestPrefixKey(t *testing.T) {
	require.Equal(t, "t1:rates:grid", tenant.PrefixKey("t1", "rates:grid"))
	require.Equal(t, "rates:grid", tenant.PrefixKey("", "rates:grid"))
}
