package usecase

import "github.com/meatlens/backend/internal/hebrew"

// nameTokens returns the distinct tokens of a product name
func nameTokens(name string) map[string]bool {
	tokens := hebrew.Tokenize(name)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// TokenOverlap returns |A∩B| / max(|A|,|B|) over the distinct tokens of a and b.
// Two empty names have similarity 0.
func TokenOverlap(a, b string) float64 {
	return overlap(nameTokens(a), nameTokens(b))
}

func overlap(a, b map[string]bool) float64 {
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	if larger == 0 {
		return 0
	}

	shared := 0
	for t := range a {
		if b[t] {
			shared++
		}
	}
	return float64(shared) / float64(larger)
}
