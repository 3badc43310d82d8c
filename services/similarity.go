package services

import "strings"

// NameSimilarity vergleicht zwei Firmennamen nach Normalisierung und liefert einen Wert in [0, 1].
// Gleiche Namen ergeben 1, ein Name als Teil des anderen 0.9, sonst die Levenshtein-Ähnlichkeit.
func NameSimilarity(a, b string) float64 {
	na := NormalizeCompanyName(a)
	nb := NormalizeCompanyName(b)

	if na == nb {
		return 1
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.9
	}

	ra, rb := []rune(na), []rune(nb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein berechnet die Editierdistanz (Einfügen, Löschen, Ersetzen je Kosten 1) über Runen.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
