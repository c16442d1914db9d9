package scorer

import "strings"

// geoTerms maps a target market (lowercase country code) to terms that
// indicate local search intent for that market.
var geoTerms = map[string][]string{
	"pe": {"lima", "perú", "peru", "arequipa", "trujillo", "cusco"},
	"es": {"madrid", "barcelona", "valencia", "sevilla", "españa"},
	"mx": {"mexico", "méxico", "cdmx", "guadalajara", "monterrey"},
	"ar": {"argentina", "buenos aires", "córdoba", "rosario"},
	"co": {"colombia", "bogotá", "medellín", "cali"},
	"cl": {"chile", "santiago", "valparaíso", "concepción"},
}

// commercialIndicators are terms whose presence signals buying or hiring
// intent strong enough to earn the guardrail bonus.
var commercialIndicators = []string{
	"comprar", "contratar", "solicitar", "precio", "costo",
	"agencia", "servicio", "consultor", "mejor", "oferta",
}

// GeoMatch describes how a keyword relates geographically to the target
// market.
type GeoMatch int

const (
	// GeoNone means no geo-indicative term was found.
	GeoNone GeoMatch = iota
	// GeoTarget means a term for the target market was found.
	GeoTarget
	// GeoForeign means the only geo terms found belong to other markets.
	GeoForeign
)

// detectGeo classifies the keyword's geographic signal relative to the
// target market. A target-market term wins over any foreign term.
func detectGeo(keyword, targetGeo string) GeoMatch {
	k := strings.ToLower(keyword)

	for _, term := range geoTerms[strings.ToLower(targetGeo)] {
		if strings.Contains(k, term) {
			return GeoTarget
		}
	}

	for geo, terms := range geoTerms {
		if geo == strings.ToLower(targetGeo) {
			continue
		}
		for _, term := range terms {
			if strings.Contains(k, term) {
				return GeoForeign
			}
		}
	}

	return GeoNone
}

func hasCommercialIndicator(keyword string) bool {
	k := strings.ToLower(keyword)
	for _, term := range commercialIndicators {
		if strings.Contains(k, term) {
			return true
		}
	}
	return false
}
