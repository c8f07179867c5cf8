package grouping

import "testing"

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{"case and accents", "12 Rue de la Généralité, Paris", "12 rue de la generalite paris"},
		{"street abbreviation", "5 Avenue Foch", "5 av foch"},
		{"punctuation and spacing", "3,   Boulevard  Saint-Michel.", "3 bd st michel"},
		{"english forms", "10 Baker Street, London", "10 baker st london"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got, want := NormalizeAddress(tc.a), NormalizeAddress(tc.b); got != want {
				t.Fatalf("normalized forms differ:\n  %q -> %q\n  %q -> %q", tc.a, got, tc.b, want)
			}
		})
	}
}

func TestNormalizeAddressDistinguishesDifferentStreets(t *testing.T) {
	a := NormalizeAddress("12 rue de la Paix, Paris")
	b := NormalizeAddress("14 rue de la Paix, Paris")
	if a == b {
		t.Fatal("different street numbers must not normalize equal")
	}
}

func TestSimilarity(t *testing.T) {
	if s := Similarity("12 Rue de la Paix", "12 rue de la paix"); s != 1 {
		t.Fatalf("identical normalized addresses should score 1, got %v", s)
	}
	s := Similarity("12 rue de la Paix, Paris", "12 rue de la Paix, Lyon")
	if s <= 0.5 || s >= 1 {
		t.Fatalf("near-identical addresses should score high but below 1, got %v", s)
	}
	if s := Similarity("abc", "xyz"); s > 0.1 {
		t.Fatalf("unrelated strings should score near 0, got %v", s)
	}
}
