package packing

import (
	"fmt"
	"sort"
)

// openCarton tracks the running load of a carton instance during
// consolidation.
type openCarton struct {
	carton     Carton
	items      []Item
	usedVolume float64
	usedWeight float64
}

func (o *openCarton) accepts(it Item, marginCm float64) bool {
	if !Fits(it, o.carton, marginCm) {
		return false
	}
	if o.usedVolume+it.Volume() > o.carton.Volume() {
		return false
	}
	if o.carton.MaxWeightKg > 0 && o.usedWeight+it.Weight > o.carton.MaxWeightKg {
		return false
	}
	return true
}

func (o *openCarton) add(it Item) {
	o.items = append(o.items, it)
	o.usedVolume += it.Volume()
	o.usedWeight += it.Weight
}

// Consolidate packs items from several quotes into shared carton
// instances using First-Fit-Decreasing over the standard carton types:
// items are sorted by descending volume, each one goes into the first
// open carton that can take it (dimension fit, remaining volume and
// weight capacity), and a new instance of the smallest standard type
// that can hold the item alone is opened otherwise. An item larger than
// every standard type still gets the largest type plus a warning; it is
// never rejected.
func Consolidate(items []Item, standard []Carton, marginCm, divisor float64) Result {
	var res Result

	if len(standard) == 0 {
		standard = StandardCartons()
	}
	types := append([]Carton(nil), standard...)
	sort.Slice(types, func(i, j int) bool { return types[i].Volume() < types[j].Volume() })

	units := ExpandQuantities(items)
	sort.SliceStable(units, func(i, j int) bool { return units[i].Volume() > units[j].Volume() })

	var open []*openCarton
	for _, it := range units {
		placed := false
		for _, oc := range open {
			if oc.accepts(it, marginCm) {
				oc.add(it)
				placed = true
				break
			}
		}
		if placed {
			continue
		}

		chosen, ok := smallestFitting(it, types, marginCm)
		if !ok {
			// Largest standard type as a last resort; flagged, not dropped.
			chosen = types[len(types)-1]
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"item %s (%gx%gx%g cm) exceeds every standard carton; forcing into %s",
				itemLabel(it), it.Length, it.Width, it.Height, chosen.Ref))
		}
		oc := &openCarton{carton: chosen}
		oc.add(it)
		open = append(open, oc)
	}

	for _, oc := range open {
		packed := PackedCarton{
			Carton:           oc.carton,
			Items:            oc.items,
			VolumetricWeight: oc.carton.VolumetricWeight(divisor),
		}
		res.Cartons = append(res.Cartons, packed)
		res.TotalPackagingCost += oc.carton.Price
		res.TotalRealWeight += oc.usedWeight
		res.TotalVolumetricWeight += packed.VolumetricWeight
	}
	return res
}

func smallestFitting(it Item, typesByVolume []Carton, marginCm float64) (Carton, bool) {
	for _, t := range typesByVolume {
		if Fits(it, t, marginCm) {
			return t, true
		}
	}
	return Carton{}, false
}

// StandardCartons is the fixed catalog of carton types used for
// cross-quote consolidation. Grouping does not use the tenant catalog:
// consolidated shipments are packed into stock sizes the forwarder keeps
// on hand.
func StandardCartons() []Carton {
	return []Carton{
		{ID: "std-s", Ref: "S", InnerLength: 30, InnerWidth: 20, InnerHeight: 20, Price: 4, MaxWeightKg: 10, IsActive: true},
		{ID: "std-m", Ref: "M", InnerLength: 40, InnerWidth: 30, InnerHeight: 30, Price: 6, MaxWeightKg: 15, IsActive: true},
		{ID: "std-l", Ref: "L", InnerLength: 60, InnerWidth: 40, InnerHeight: 40, Price: 9, MaxWeightKg: 25, IsActive: true},
		{ID: "std-xl", Ref: "XL", InnerLength: 80, InnerWidth: 60, InnerHeight: 60, Price: 14, MaxWeightKg: 30, IsActive: true},
	}
}
