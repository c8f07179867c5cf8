package packing

import "testing"

func testCatalog() []Carton {
	return []Carton{
		{ID: "s", Ref: "S", InnerLength: 30, InnerWidth: 20, InnerHeight: 20, Price: 5, IsActive: true},
		{ID: "m", Ref: "M", InnerLength: 40, InnerWidth: 30, InnerHeight: 30, Price: 8, IsDefault: true, IsActive: true},
	}
}

func TestFindBestCartonPicksSmallestFitting(t *testing.T) {
	item := Item{Length: 25, Width: 15, Height: 15, Weight: 2}
	got := FindBestCarton(item, testCatalog(), 2)
	if got == nil {
		t.Fatal("expected a carton, got nil")
	}
	// 25x15x15 + 2cm margin per side = 29x19x19, fits S (30x20x20).
	if got.Ref != "S" {
		t.Fatalf("expected S, got %s", got.Ref)
	}
}

func TestFindBestCartonRotationAware(t *testing.T) {
	// Tall thin item only fits when laid on its side.
	item := Item{Length: 18, Width: 18, Height: 28, Weight: 1}
	got := FindBestCarton(item, testCatalog(), 0)
	if got == nil || got.Ref != "S" {
		t.Fatalf("expected rotated fit into S, got %+v", got)
	}
}

func TestFindBestCartonNilWhenNothingFits(t *testing.T) {
	item := Item{Length: 100, Width: 100, Height: 100, Weight: 40}
	if got := FindBestCarton(item, testCatalog(), 2); got != nil {
		t.Fatalf("expected nil for oversized item, got %s", got.Ref)
	}
}

func TestFindBestCartonMarginTipsTheFit(t *testing.T) {
	// Without margin the item fits S exactly; with margin it needs M.
	item := Item{Length: 30, Width: 20, Height: 20, Weight: 2}
	if got := FindBestCarton(item, testCatalog(), 0); got == nil || got.Ref != "S" {
		t.Fatalf("expected exact fit into S, got %+v", got)
	}
	if got := FindBestCarton(item, testCatalog(), 1); got == nil || got.Ref != "M" {
		t.Fatalf("expected margin to push item into M, got %+v", got)
	}
}

func TestFindBestCartonSkipsInactive(t *testing.T) {
	catalog := testCatalog()
	catalog[0].IsActive = false
	item := Item{Length: 25, Width: 15, Height: 15}
	got := FindBestCarton(item, catalog, 2)
	if got == nil || got.Ref != "M" {
		t.Fatalf("inactive carton should be skipped, got %+v", got)
	}
}

func TestFindBestCartonTieKeepsCatalogOrder(t *testing.T) {
	catalog := []Carton{
		{ID: "a", Ref: "A", InnerLength: 30, InnerWidth: 20, InnerHeight: 20, IsActive: true},
		{ID: "b", Ref: "B", InnerLength: 20, InnerWidth: 30, InnerHeight: 20, IsActive: true},
	}
	item := Item{Length: 10, Width: 10, Height: 10}
	got := FindBestCarton(item, catalog, 0)
	if got == nil || got.Ref != "A" {
		t.Fatalf("equal-volume tie should keep the first catalog entry, got %+v", got)
	}
}

func TestFitSoundness(t *testing.T) {
	items := []Item{
		{Length: 25, Width: 15, Height: 15},
		{Length: 39, Width: 29, Height: 29},
		{Length: 31, Width: 10, Height: 10},
		{Length: 41, Width: 10, Height: 10},
	}
	for _, it := range items {
		got := FindBestCarton(it, testCatalog(), 0)
		if got != nil {
			if !Fits(it, *got, 0) {
				t.Fatalf("returned carton %s does not pass the fit test for %+v", got.Ref, it)
			}
			continue
		}
		for _, c := range testCatalog() {
			if Fits(it, c, 0) {
				t.Fatalf("nil returned although %s fits %+v", c.Ref, it)
			}
		}
	}
}
