package packing

import "fmt"

// Pack assigns one carton instance per item using the tenant catalog.
// There is deliberately no multi-item consolidation on this path: each
// quote is packed lot by lot, and items no catalog carton can hold fall
// back to the tenant default carton with a warning. Consolidation across
// quotes happens in Consolidate, which implements the opposite policy.
//
// Configuration problems are not errors: an empty catalog or a missing
// default carton returns a Result with zero cartons and a descriptive
// warning so the tenant can fix their setup.
func Pack(items []Item, catalog []Carton, marginCm, divisor float64) Result {
	var res Result

	active := activeCartons(catalog)
	if len(active) == 0 {
		res.Warnings = append(res.Warnings, "carton catalog is empty or fully deactivated; configure at least one active carton")
		return res
	}
	fallback := defaultCarton(active)
	if fallback == nil {
		res.Warnings = append(res.Warnings, "no default carton configured; mark exactly one active carton as default")
		return res
	}

	for _, it := range ExpandQuantities(items) {
		chosen := FindBestCarton(it, active, marginCm)
		if chosen == nil {
			chosen = fallback
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"item %s (%gx%gx%g cm) fits no catalog carton; using default carton %s",
				itemLabel(it), it.Length, it.Width, it.Height, fallback.Ref))
		}
		packed := PackedCarton{
			Carton:           *chosen,
			Items:            []Item{it},
			VolumetricWeight: chosen.VolumetricWeight(divisor),
		}
		res.Cartons = append(res.Cartons, packed)
		res.TotalPackagingCost += chosen.Price
		res.TotalRealWeight += it.Weight
		res.TotalVolumetricWeight += packed.VolumetricWeight
	}
	return res
}

func activeCartons(catalog []Carton) []Carton {
	out := make([]Carton, 0, len(catalog))
	for _, c := range catalog {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out
}

func defaultCarton(catalog []Carton) *Carton {
	for i := range catalog {
		if catalog[i].IsDefault {
			return &catalog[i]
		}
	}
	return nil
}

func itemLabel(it Item) string {
	if it.Ref != "" {
		return it.Ref
	}
	return "(unnamed)"
}
