// Package packing selects cartons for auction lots and packs lot sets
// into carton instances. All functions are pure and operate on data the
// caller assembled for one tenant; nothing here touches storage.
package packing

import "github.com/noah-isme/backend-cargo/internal/weight"

// Carton is one entry of a tenant's carton catalog. Dimensions are
// inner dimensions in cm.
type Carton struct {
	ID          string  `json:"id"`
	Ref         string  `json:"ref"`
	InnerLength float64 `json:"innerLength"`
	InnerWidth  float64 `json:"innerWidth"`
	InnerHeight float64 `json:"innerHeight"`
	Price       float64 `json:"price"`
	IsDefault   bool    `json:"isDefault"`
	IsActive    bool    `json:"isActive"`
	// MaxWeightKg caps the real weight a carton instance may carry during
	// consolidation. Zero means no cap.
	MaxWeightKg float64 `json:"maxWeightKg,omitempty"`
}

// Volume returns the inner volume in cm³.
func (c Carton) Volume() float64 {
	return c.InnerLength * c.InnerWidth * c.InnerHeight
}

// VolumetricWeight returns the carton's volumetric weight in kg.
func (c Carton) VolumetricWeight(divisor float64) float64 {
	return weight.Volumetric(c.InnerLength, c.InnerWidth, c.InnerHeight, divisor)
}

// Item is a single lot (or one unit of a multi-quantity lot) to pack.
// Dimensions in cm, weight in kg.
type Item struct {
	Ref      string  `json:"ref,omitempty"`
	Length   float64 `json:"length"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Weight   float64 `json:"weight"`
	Quantity int     `json:"quantity,omitempty"`
}

// Volume returns the item volume in cm³.
func (it Item) Volume() float64 {
	return it.Length * it.Width * it.Height
}

// PackedCarton is one carton instance produced by a packing run together
// with the items assigned to it.
type PackedCarton struct {
	Carton           Carton  `json:"carton"`
	Items            []Item  `json:"items"`
	VolumetricWeight float64 `json:"volumetricWeight"`
}

// RealWeight sums the weights of the items inside the carton.
func (p PackedCarton) RealWeight() float64 {
	var total float64
	for _, it := range p.Items {
		total += it.Weight
	}
	return total
}

// Result aggregates the outcome of a packing run. Configuration problems
// (no catalog, no default carton) yield zero cartons plus a warning
// instead of an error so callers can surface an explainable partial
// result to the tenant.
type Result struct {
	Cartons               []PackedCarton `json:"cartons"`
	Warnings              []string       `json:"warnings,omitempty"`
	TotalPackagingCost    float64        `json:"totalPackagingCost"`
	TotalRealWeight       float64        `json:"totalRealWeight"`
	TotalVolumetricWeight float64        `json:"totalVolumetricWeight"`
}

// BillableWeight returns the chargeable weight for the whole run.
func (r Result) BillableWeight() float64 {
	return weight.Billable(r.TotalRealWeight, r.TotalVolumetricWeight)
}

// ExpandQuantities flattens items carrying Quantity > 1 into that many
// independent unit items. Units are packed separately, never split.
func ExpandQuantities(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		qty := it.Quantity
		if qty <= 1 {
			unit := it
			unit.Quantity = 1
			out = append(out, unit)
			continue
		}
		for i := 0; i < qty; i++ {
			unit := it
			unit.Quantity = 1
			out = append(out, unit)
		}
	}
	return out
}
