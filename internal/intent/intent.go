// Package intent classifies keywords by the likely purpose behind the
// search: transactional, commercial or informational.
package intent

import (
	"regexp"
	"strings"

	"github.com/aqxion/keyword-cli/internal/model"
)

// Pattern sets tuned for Spanish-language service markets, with a few
// English modifiers that show up in mixed-language queries.
var (
	transactionalPatterns = compile(
		`\b(agencia|empresa|consultor|consultora|servicio|especialista)\b`,
		`\b(contratar|comprar|solicitar|cotizar|presupuesto)\b`,
		`\b(profesional|experto|certificado)\b`,
		`\bpara (pymes|empresas|negocios|startups)\b`,
	)
	commercialPatterns = compile(
		`\b(precio|costo|tarifa|mejor|top|comparar|vs)\b`,
		`\b(curso|capacitacion|capacitación|diplomado|online)\b`,
		`\b(herramientas|software|plataforma|saas)\b`,
		`\b(gratis|gratuito|barato|economico|económico|oferta)\b`,
		`\b(review|reseña|opinion|opinión)\b`,
	)
)

// Base probabilities that the detected category is correct, from observed
// precision on labeled market samples.
var baseProbability = map[model.Intent]float64{
	model.IntentTransactional: 0.85,
	model.IntentCommercial:    0.60,
	model.IntentInformational: 0.30,
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Classify returns the intent category for a keyword. Transactional
// patterns win over commercial; everything else is informational.
func Classify(text string) model.Intent {
	if text == "" {
		return model.IntentInformational
	}
	lower := strings.ToLower(text)

	for _, p := range transactionalPatterns {
		if p.MatchString(lower) {
			return model.IntentTransactional
		}
	}
	for _, p := range commercialPatterns {
		if p.MatchString(lower) {
			return model.IntentCommercial
		}
	}
	return model.IntentInformational
}

// Probability estimates how likely the classified intent is correct.
func Probability(text string) float64 {
	return baseProbability[Classify(text)]
}
