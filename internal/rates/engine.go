package rates

import (
	"context"
	"errors"

	"github.com/noah-isme/backend-cargo/internal/cache"
	"github.com/noah-isme/backend-cargo/internal/obs"
)

type queryProvider interface {
	LoadGrid(ctx context.Context) (Grid, error)
	UpsertRate(ctx context.Context, zoneID, serviceID, bracketID string, price *float64) error
}

// Engine loads the tenant grid, caches it, and answers price lookups.
type Engine struct {
	Q     queryProvider
	Cache *cache.JSON
}

// cachedGrid is the cache wire form of Grid. Cells cannot round-trip
// through JSON as a map because its key is a struct.
type cachedGrid struct {
	Zones    []Zone       `json:"zones"`
	Services []Service    `json:"services"`
	Brackets []Bracket    `json:"brackets"`
	Cells    []cachedCell `json:"cells"`
	Settings Settings     `json:"settings"`
}

type cachedCell struct {
	ZoneID    string   `json:"zoneId"`
	ServiceID string   `json:"serviceId"`
	BracketID string   `json:"bracketId"`
	Price     *float64 `json:"price"`
}

// Grid returns the tenant pricing grid, via cache when possible.
func (e *Engine) Grid(ctx context.Context) (Grid, error) {
	key := cache.KeyRateGrid(ctx)
	var cached cachedGrid
	if ok, err := e.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached.toGrid(), nil
	}
	grid, err := e.Q.LoadGrid(ctx)
	if err != nil {
		return Grid{}, err
	}
	_ = e.Cache.SetJSON(ctx, key, fromGrid(grid))
	return grid, nil
}

// SetRate writes one cell of the rate matrix and invalidates the cached
// grid. A nil price marks the cell explicitly unavailable.
func (e *Engine) SetRate(ctx context.Context, zoneID, serviceID, bracketID string, price *float64) error {
	if err := e.Q.UpsertRate(ctx, zoneID, serviceID, bracketID, price); err != nil {
		return err
	}
	return e.Cache.Delete(ctx, cache.KeyRateGrid(ctx))
}

// QuoteByZone resolves a price for an explicit zone code.
func (e *Engine) QuoteByZone(ctx context.Context, zoneCode, serviceName string, billableKg float64) (Quote, error) {
	grid, err := e.Grid(ctx)
	if err != nil {
		return Quote{}, err
	}
	quote, err := Lookup(grid, zoneCode, serviceName, billableKg)
	countLookup(err)
	return quote, err
}

// QuoteByCountry resolves the zone from an ISO country code first.
func (e *Engine) QuoteByCountry(ctx context.Context, country, serviceName string, billableKg float64) (Quote, error) {
	grid, err := e.Grid(ctx)
	if err != nil {
		return Quote{}, err
	}
	zone, ok := grid.ZoneForCountry(country)
	if !ok {
		countLookup(ErrZoneNotFound)
		return Quote{}, ErrZoneNotFound
	}
	quote, err := Lookup(grid, zone.Code, serviceName, billableKg)
	countLookup(err)
	return quote, err
}

func countLookup(err error) {
	if obs.RateLookupsTotal == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrZoneNotFound):
		result = "zone_not_found"
	case errors.Is(err, ErrServiceNotFound):
		result = "service_not_found"
	case errors.Is(err, ErrRateNotConfigured):
		result = "not_configured"
	case errors.Is(err, ErrRateUnavailable):
		result = "unavailable"
	case errors.Is(err, ErrOverweightUnsupported):
		result = "overweight_unsupported"
	default:
		result = "error"
	}
	obs.RateLookupsTotal.WithLabelValues(result).Inc()
}

func fromGrid(g Grid) cachedGrid {
	out := cachedGrid{Zones: g.Zones, Services: g.Services, Brackets: g.Brackets, Settings: g.Settings}
	for key, price := range g.Cells {
		out.Cells = append(out.Cells, cachedCell{
			ZoneID:    key.ZoneID,
			ServiceID: key.ServiceID,
			BracketID: key.BracketID,
			Price:     price,
		})
	}
	return out
}

func (c cachedGrid) toGrid() Grid {
	g := Grid{
		Zones:    c.Zones,
		Services: c.Services,
		Brackets: c.Brackets,
		Cells:    make(map[CellKey]*float64, len(c.Cells)),
		Settings: c.Settings,
	}
	for _, cell := range c.Cells {
		g.Cells[CellKey{ZoneID: cell.ZoneID, ServiceID: cell.ServiceID, BracketID: cell.BracketID}] = cell.Price
	}
	return g
}
