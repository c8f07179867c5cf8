// Package grouping detects quotes that can ship together and manages
// the resulting shipment groups.
package grouping

import (
	"strings"
	"unicode"
)

// streetAbbrev maps common street-type words to their canonical short
// form. Both the long and short spellings normalize to the same token so
// "12 rue de la Paix" and "12 r de la paix" compare equal.
var streetAbbrev = map[string]string{
	"rue":       "r",
	"avenue":    "av",
	"ave":       "av",
	"boulevard": "bd",
	"blvd":      "bd",
	"chemin":    "ch",
	"impasse":   "imp",
	"place":     "pl",
	"route":     "rte",
	"allee":     "all",
	"street":    "st",
	"road":      "rd",
	"drive":     "dr",
	"lane":      "ln",
	"court":     "ct",
	"saint":     "st",
	"sainte":    "ste",
}

// accentFold maps accented latin letters to their base letter. Address
// input comes from OCR and manual entry in several languages; a small
// table covers the characters seen in practice without pulling in a
// full unicode normalization dependency.
var accentFold = map[rune]rune{
	'à': 'a', 'â': 'a', 'ä': 'a', 'á': 'a', 'ã': 'a', 'å': 'a',
	'ç': 'c',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'ñ': 'n',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o', 'ø': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'ý': 'y', 'ÿ': 'y',
	'œ': 'o', 'æ': 'a',
}

// NormalizeAddress canonicalizes a postal address for grouping
// comparisons: lowercase, accents stripped, street-type abbreviations
// contracted, punctuation removed and whitespace collapsed. Two
// addresses belong to the same shipment group iff their normalized
// forms are byte-equal; there is no fuzzy threshold on this path.
func NormalizeAddress(addr string) string {
	lowered := strings.ToLower(strings.TrimSpace(addr))

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if folded, ok := accentFold[r]; ok {
			r = folded
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r), r == ',', r == '.', r == ';', r == '-', r == '\'', r == '/':
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	for i, w := range words {
		if short, ok := streetAbbrev[w]; ok {
			words[i] = short
		}
	}
	return strings.Join(words, " ")
}

// Similarity scores how close two addresses look on a 0..1 scale using a
// normalized edit distance over the canonical forms. The score is shown
// next to UI suggestions only; it never decides group membership, which
// requires exact normalized equality.
func Similarity(a, b string) float64 {
	na, nb := NormalizeAddress(a), NormalizeAddress(b)
	if na == nb {
		return 1
	}
	longest := len(na)
	if len(nb) > longest {
		longest = len(nb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(editDistance(na, nb))/float64(longest)
}

func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
