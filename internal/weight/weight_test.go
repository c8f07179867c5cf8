package weight

import "testing"

func TestVolumetricPermutationInvariant(t *testing.T) {
	a := Volumetric(40, 30, 20, DefaultDivisor)
	b := Volumetric(20, 40, 30, DefaultDivisor)
	c := Volumetric(30, 20, 40, DefaultDivisor)
	if a != b || b != c {
		t.Fatalf("volumetric weight depends on axis order: %v %v %v", a, b, c)
	}
	if a != 4.8 {
		t.Fatalf("expected 4.8 kg for 40x30x20/5000, got %v", a)
	}
}

func TestVolumetricScalesWithDivisor(t *testing.T) {
	base := Volumetric(50, 40, 30, 5000)
	halved := Volumetric(50, 40, 30, 10000)
	if halved != base/2 {
		t.Fatalf("doubling divisor should halve the weight: %v vs %v", halved, base)
	}
}

func TestVolumetricDefaultDivisor(t *testing.T) {
	if got := Volumetric(40, 30, 20, 0); got != Volumetric(40, 30, 20, DefaultDivisor) {
		t.Fatalf("zero divisor should fall back to default, got %v", got)
	}
}

func TestBillableIsMax(t *testing.T) {
	cases := []struct {
		real, volumetric, want float64
	}{
		{10, 4.8, 10},
		{2, 4.8, 4.8},
		{7, 7, 7},
		{0, 0, 0},
	}
	for _, tc := range cases {
		got := Billable(tc.real, tc.volumetric)
		if got != tc.want {
			t.Fatalf("Billable(%v, %v) = %v, want %v", tc.real, tc.volumetric, got, tc.want)
		}
		if got < tc.real || got < tc.volumetric {
			t.Fatalf("billable weight below one of its inputs: %v", got)
		}
	}
}
