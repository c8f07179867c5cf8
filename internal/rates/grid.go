// Package rates resolves shipping prices from a tenant's
// zone × service × weight-bracket pricing grid.
package rates

import (
	"sort"
	"strings"
)

// Zone groups destination countries under a short tenant-unique code.
type Zone struct {
	ID        string   `json:"id"`
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Countries []string `json:"countries"`
	IsActive  bool     `json:"isActive"`
}

// Service is a shipping service level (e.g. STANDARD, EXPRESS).
type Service struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Order    int    `json:"order"`
	IsActive bool   `json:"isActive"`
}

// Bracket is one pricing tier. MinWeightKg is the upper bound of the
// tier: a bracket labelled 10 kg covers weights up to and including
// 10 kg. The bracket set is shared across all zones and services of a
// tenant.
type Bracket struct {
	ID          string  `json:"id"`
	MinWeightKg float64 `json:"minWeight"`
	Order       int     `json:"order"`
}

// CellKey addresses one cell of the sparse rate matrix.
type CellKey struct {
	ZoneID    string
	ServiceID string
	BracketID string
}

// OverweightPolicy names how weights above the top bracket are priced.
type OverweightPolicy string

// FlatFee is the only overweight policy currently supported.
const FlatFee OverweightPolicy = "FLAT_FEE"

// Settings holds the tenant-level overweight configuration.
type Settings struct {
	OverweightPolicy  OverweightPolicy `json:"overweightPolicy"`
	OverweightFlatFee float64          `json:"overweightFlatFee"`
	OverweightMessage string           `json:"overweightMessage"`
}

// Grid is a tenant's full pricing configuration assembled by the repo
// layer. Cells is sparse: a missing key means "not yet configured",
// which is distinct from a present key holding nil ("explicitly not
// available").
type Grid struct {
	Zones    []Zone               `json:"zones"`
	Services []Service            `json:"services"`
	Brackets []Bracket            `json:"brackets"`
	Cells    map[CellKey]*float64 `json:"-"`
	Settings Settings             `json:"settings"`
}

// ZoneByCode finds an active zone by its code (case-insensitive).
func (g Grid) ZoneByCode(code string) (Zone, bool) {
	for _, z := range g.Zones {
		if z.IsActive && strings.EqualFold(z.Code, code) {
			return z, true
		}
	}
	return Zone{}, false
}

// ZoneForCountry resolves the active zone covering the given ISO country
// code.
func (g Grid) ZoneForCountry(country string) (Zone, bool) {
	for _, z := range g.Zones {
		if !z.IsActive {
			continue
		}
		for _, c := range z.Countries {
			if strings.EqualFold(c, country) {
				return z, true
			}
		}
	}
	return Zone{}, false
}

// ServiceByName finds an active service by name (case-insensitive).
func (g Grid) ServiceByName(name string) (Service, bool) {
	for _, s := range g.Services {
		if s.IsActive && strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Service{}, false
}

// SortedBrackets returns the brackets ordered ascending by MinWeightKg.
func (g Grid) SortedBrackets() []Bracket {
	out := append([]Bracket(nil), g.Brackets...)
	sort.Slice(out, func(i, j int) bool { return out[i].MinWeightKg < out[j].MinWeightKg })
	return out
}
