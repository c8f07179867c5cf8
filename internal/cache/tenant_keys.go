package cache

import (
	"context"

	"github.com/noah-isme/backend-cargo/internal/tenant"
)

// KeyCartonCatalog returns the per-tenant cache key for the active
// carton catalog.
func KeyCartonCatalog(ctx context.Context) string {
	return prefixed(ctx, "cartons:active")
}

// KeyRateGrid returns the per-tenant cache key for the shipping rate grid.
func KeyRateGrid(ctx context.Context) string {
	return prefixed(ctx, "rates:grid")
}

// KeySuggestion returns the per-tenant key for a quote's grouping suggestion.
func KeySuggestion(ctx context.Context, quoteID string) string {
	return prefixed(ctx, "suggestion:"+quoteID)
}

func prefixed(ctx context.Context, base string) string {
	id, _ := tenant.From(ctx)
	return tenant.PrefixKey(id, base)
}
