package rates

import (
	"errors"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func testGrid() Grid {
	brackets := []Bracket{
		{ID: "b1", MinWeightKg: 1, Order: 1},
		{ID: "b2", MinWeightKg: 2, Order: 2},
		{ID: "b5", MinWeightKg: 5, Order: 3},
		{ID: "b10", MinWeightKg: 10, Order: 4},
		{ID: "b15", MinWeightKg: 15, Order: 5},
		{ID: "b20", MinWeightKg: 20, Order: 6},
		{ID: "b30", MinWeightKg: 30, Order: 7},
	}
	prices := []float64{6, 7, 9, 14, 18, 22, 30}

	g := Grid{
		Zones: []Zone{
			{ID: "zA", Code: "A", Name: "Western Europe", Countries: []string{"FR", "BE"}, IsActive: true},
			{ID: "zE", Code: "E", Name: "Oceania", Countries: []string{"AU", "NZ"}, IsActive: true},
		},
		Services: []Service{{ID: "svc1", Name: "STANDARD", Order: 1, IsActive: true}},
		Brackets: brackets,
		Cells:    map[CellKey]*float64{},
		Settings: Settings{OverweightPolicy: FlatFee, OverweightFlatFee: 90, OverweightMessage: "over 30kg: flat surcharge applies"},
	}
	for i, b := range brackets {
		g.Cells[CellKey{ZoneID: "zA", ServiceID: "svc1", BracketID: b.ID}] = ptr(prices[i])
		// Zone E is explicitly not served by STANDARD in the seed data.
		g.Cells[CellKey{ZoneID: "zE", ServiceID: "svc1", BracketID: b.ID}] = nil
	}
	return g
}

func TestLookupSelectsBracketInclusive(t *testing.T) {
	// 9.5 kg falls into the 10 kg bracket.
	q, err := Lookup(testGrid(), "A", "STANDARD", 9.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Bracket == nil || q.Bracket.MinWeightKg != 10 || q.Price != 14 {
		t.Fatalf("expected 10kg bracket at 14, got %+v", q)
	}

	// Exactly 10 kg still picks the 10 kg bracket, not 15.
	q, err = Lookup(testGrid(), "A", "STANDARD", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Bracket == nil || q.Bracket.MinWeightKg != 10 {
		t.Fatalf("boundary weight must stay in its bracket, got %+v", q.Bracket)
	}
}

func TestLookupMonotonicInWeight(t *testing.T) {
	g := testGrid()
	var prev float64
	for _, w := range []float64{0.5, 1, 1.5, 2, 4.9, 5, 9.99, 14, 19, 25, 30} {
		q, err := Lookup(g, "A", "STANDARD", w)
		if err != nil {
			t.Fatalf("weight %v: %v", w, err)
		}
		if q.Bracket.MinWeightKg < prev {
			t.Fatalf("heavier weight %v picked smaller bracket %v (prev %v)", w, q.Bracket.MinWeightKg, prev)
		}
		prev = q.Bracket.MinWeightKg
	}
}

func TestLookupNullCellIsUnavailable(t *testing.T) {
	_, err := Lookup(testGrid(), "E", "STANDARD", 5)
	if !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable for null cell, got %v", err)
	}
}

func TestLookupMissingCellIsNotConfigured(t *testing.T) {
	g := testGrid()
	delete(g.Cells, CellKey{ZoneID: "zA", ServiceID: "svc1", BracketID: "b5"})
	_, err := Lookup(g, "A", "STANDARD", 4)
	if !errors.Is(err, ErrRateNotConfigured) {
		t.Fatalf("expected ErrRateNotConfigured for absent cell, got %v", err)
	}
}

func TestLookupZoneAndServiceErrors(t *testing.T) {
	if _, err := Lookup(testGrid(), "Z", "STANDARD", 5); !errors.Is(err, ErrZoneNotFound) {
		t.Fatalf("expected ErrZoneNotFound, got %v", err)
	}
	if _, err := Lookup(testGrid(), "A", "EXPRESS", 5); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestLookupOverweightFlatFee(t *testing.T) {
	q, err := Lookup(testGrid(), "A", "STANDARD", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Overweight || q.Price != 90 || q.Bracket != nil {
		t.Fatalf("expected flat-fee overweight quote, got %+v", q)
	}
	if q.Message == "" {
		t.Fatal("overweight quote should carry the tenant message")
	}
}

func TestLookupOverweightWithoutPolicy(t *testing.T) {
	g := testGrid()
	g.Settings = Settings{}
	if _, err := Lookup(g, "A", "STANDARD", 42); !errors.Is(err, ErrOverweightUnsupported) {
		t.Fatalf("expected ErrOverweightUnsupported, got %v", err)
	}
}

func TestZoneForCountry(t *testing.T) {
	g := testGrid()
	z, ok := g.ZoneForCountry("fr")
	if !ok || z.Code != "A" {
		t.Fatalf("expected zone A for FR, got %+v ok=%v", z, ok)
	}
	if _, ok := g.ZoneForCountry("JP"); ok {
		t.Fatal("JP should not resolve to any zone")
	}
}
