package volume

import (
	"strings"
)

// Heuristic fallbacks used when the external planner is unavailable or out
// of quota. Bands are keyed on token count: short heads carry high volume
// and competition, long tails the opposite. Values are rough but stable,
// which is what the scorer's percentile normalization needs.

var (
	priceTerms      = []string{"precio", "costo", "tarifa"}
	freeTerms       = []string{"gratis", "free"}
	courseTerms     = []string{"curso", "clase", "diplomado", "certificado"}
	localTerms      = []string{"lima", "perú", "peru", "madrid", "cdmx"}
	commercialTerms = []string{"precio", "costo", "mejor", "top", "comprar", "contratar"}
)

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// EstimateVolume returns a heuristic monthly search volume for a keyword.
func EstimateVolume(keyword string) int {
	if strings.TrimSpace(keyword) == "" {
		return 0
	}

	k := strings.ToLower(keyword)
	base := 0
	switch wc := len(strings.Fields(k)); {
	case wc <= 1:
		base = 20000
	case wc == 2:
		base = 8000
	case wc == 3:
		base = 4000
	case wc == 4:
		base = 2000
	default:
		base = 1200
	}

	if containsAny(k, priceTerms) {
		base = int(float64(base) * 0.9)
	}
	if containsAny(k, freeTerms) {
		base = int(float64(base) * 1.1)
	}
	if containsAny(k, courseTerms) {
		base = int(float64(base) * 0.85)
	}
	// Local searches draw from a smaller population.
	if containsAny(k, localTerms) {
		base = int(float64(base) * 0.7)
	}

	if base < 10 {
		base = 10
	}
	return base
}

// EstimateCompetition returns a heuristic competition index in [0.1, 0.95]
// where higher means harder to rank for.
func EstimateCompetition(keyword string) float64 {
	if strings.TrimSpace(keyword) == "" {
		return 0.5
	}

	k := strings.ToLower(keyword)
	wc := len(strings.Fields(k))

	var comp float64
	switch {
	case wc <= 1:
		comp = 0.85
	case wc == 2:
		comp = 0.7
	case wc == 3:
		comp = 0.55
	case wc == 4:
		comp = 0.45
	default:
		comp = 0.35
	}

	if containsAny(k, commercialTerms) {
		comp += 0.1
	}
	if wc >= 5 {
		comp -= 0.05
	}
	if containsAny(k, localTerms) {
		comp -= 0.05
	}

	if comp < 0.1 {
		comp = 0.1
	}
	if comp > 0.95 {
		comp = 0.95
	}
	return comp
}
