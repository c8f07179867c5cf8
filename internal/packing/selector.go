package packing

import "sort"

// FindBestCarton returns the smallest-volume active carton whose inner
// dimensions can hold the item once inflated by marginCm on every side
// (2×margin per axis). Fit is rotation aware: both dimension triples are
// sorted descending and compared pairwise, which allows any axis-aligned
// orientation. Returns nil when no catalog carton fits; the caller is
// expected to fall back to the tenant default carton and record a
// warning rather than fail the run.
func FindBestCarton(item Item, catalog []Carton, marginCm float64) *Carton {
	need := inflatedDims(item, marginCm)

	var best *Carton
	for i := range catalog {
		c := &catalog[i]
		if !c.IsActive {
			continue
		}
		if !fitsSorted(need, cartonDims(*c)) {
			continue
		}
		// Strict less keeps the first-encountered carton on volume ties,
		// so catalog order stays deterministic.
		if best == nil || c.Volume() < best.Volume() {
			best = c
		}
	}
	return best
}

// Fits reports whether the item, inflated by marginCm, can be placed in
// the carton in some axis-aligned orientation.
func Fits(item Item, carton Carton, marginCm float64) bool {
	return fitsSorted(inflatedDims(item, marginCm), cartonDims(carton))
}

func inflatedDims(item Item, marginCm float64) [3]float64 {
	if marginCm < 0 {
		marginCm = 0
	}
	pad := 2 * marginCm
	return sortedDesc(item.Length+pad, item.Width+pad, item.Height+pad)
}

func cartonDims(c Carton) [3]float64 {
	return sortedDesc(c.InnerLength, c.InnerWidth, c.InnerHeight)
}

func fitsSorted(need, have [3]float64) bool {
	return need[0] <= have[0] && need[1] <= have[1] && need[2] <= have[2]
}

func sortedDesc(a, b, c float64) [3]float64 {
	dims := [3]float64{a, b, c}
	sort.Sort(sort.Reverse(sort.Float64Slice(dims[:])))
	return dims
}
