package rates

import "errors"

var (
	// ErrZoneNotFound is returned when the destination zone code is not
	// configured for the tenant.
	ErrZoneNotFound = errors.New("rates: shipping zone not found")
	// ErrServiceNotFound is returned for an unknown or inactive service.
	ErrServiceNotFound = errors.New("rates: shipping service not found")
	// ErrNoBrackets indicates the tenant has no weight brackets configured.
	ErrNoBrackets = errors.New("rates: no weight brackets configured")
	// ErrRateUnavailable is returned when the resolved cell explicitly
	// holds no price: the service does not serve that zone/weight. This
	// must surface as "not available", never as a zero cost.
	ErrRateUnavailable = errors.New("rates: service not available for this destination and weight")
	// ErrRateNotConfigured is returned when the cell is absent from the
	// grid, i.e. the tenant has not filled that part of the matrix yet.
	ErrRateNotConfigured = errors.New("rates: rate not configured for this zone, service and bracket")
	// ErrOverweightUnsupported is returned when the billable weight
	// exceeds every bracket and the tenant's overweight policy is
	// missing or unknown.
	ErrOverweightUnsupported = errors.New("rates: weight exceeds all brackets and no overweight policy applies")
)

// Quote is a successful rate resolution.
type Quote struct {
	Price float64 `json:"price"`
	// Bracket is the pricing tier used; nil when the overweight policy
	// applied instead.
	Bracket *Bracket `json:"bracket,omitempty"`
	// Overweight marks that the flat-fee overweight policy priced the
	// shipment.
	Overweight bool   `json:"overweight,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Lookup resolves the price for shipping billableKg to the zone
// identified by zoneCode with the named service. Bracket selection uses
// >= semantics: the smallest bracket whose MinWeightKg is greater than
// or equal to the billable weight wins, so a weight exactly on a
// boundary picks that boundary's bracket. Weights above every bracket
// fall through to the tenant's overweight policy.
func Lookup(grid Grid, zoneCode, serviceName string, billableKg float64) (Quote, error) {
	zone, ok := grid.ZoneByCode(zoneCode)
	if !ok {
		return Quote{}, ErrZoneNotFound
	}
	service, ok := grid.ServiceByName(serviceName)
	if !ok {
		return Quote{}, ErrServiceNotFound
	}
	brackets := grid.SortedBrackets()
	if len(brackets) == 0 {
		return Quote{}, ErrNoBrackets
	}

	var bracket *Bracket
	for i := range brackets {
		if brackets[i].MinWeightKg >= billableKg {
			bracket = &brackets[i]
			break
		}
	}
	if bracket == nil {
		return overweightQuote(grid.Settings)
	}

	price, present := grid.Cells[CellKey{ZoneID: zone.ID, ServiceID: service.ID, BracketID: bracket.ID}]
	if !present {
		return Quote{}, ErrRateNotConfigured
	}
	if price == nil {
		return Quote{}, ErrRateUnavailable
	}
	return Quote{Price: *price, Bracket: bracket}, nil
}

func overweightQuote(s Settings) (Quote, error) {
	if s.OverweightPolicy != FlatFee {
		return Quote{}, ErrOverweightUnsupported
	}
	return Quote{
		Price:      s.OverweightFlatFee,
		Overweight: true,
		Message:    s.OverweightMessage,
	}, nil
}
