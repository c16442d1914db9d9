package cluster

import (
	"regexp"
	"strings"

	"github.com/aqxion/keyword-cli/internal/model"
)

// lexicalBucket is one rule-based grouping pattern. Buckets are evaluated
// in order; the first match wins.
type lexicalBucket struct {
	name    string
	pattern *regexp.Regexp
}

var defaultBuckets = []lexicalBucket{
	{"cursos", regexp.MustCompile(`\b(curso|clase|diplomado|certificado)s?\b`)},
	{"servicios", regexp.MustCompile(`\b(agencia|empresa|servicio|proveedor|consultor|contratar)\b`)},
	{"precios", regexp.MustCompile(`\b(precio|costo|tarifa|cuanto|cuánto)\b`)},
	{"gratis", regexp.MustCompile(`\b(gratis|free)\b`)},
	{"herramientas", regexp.MustCompile(`\b(herramienta|software|plataforma|app)s?\b`)},
	{"guias", regexp.MustCompile(`\b(como|cómo|que es|qué es|guia|guía|tutorial)\b`)},
}

// fallbackBucket collects everything no pattern matched.
const fallbackBucket = "otros"

// LexicalStrategy groups records by heuristic keyword patterns. It needs no
// embeddings and always assigns every record, so it terminates the chain.
type LexicalStrategy struct {
	// GeoTerms, when set, adds a geo bucket matched before the fallback.
	GeoTerms []string
}

// NewLexicalStrategy returns the lexical strategy with the market's geo
// terms wired into its geo bucket.
func NewLexicalStrategy(geoTerms []string) *LexicalStrategy {
	return &LexicalStrategy{GeoTerms: geoTerms}
}

func (s *LexicalStrategy) Name() string { return "lexical" }

// Assign never fails and never produces noise.
func (s *LexicalStrategy) Assign(records []model.KeywordRecord, _ [][]float64) (*Assignment, error) {
	labels := make([]int, len(records))
	ids := make(map[string]int)

	for i := range records {
		bucket := s.bucketFor(records[i].Text)
		id, ok := ids[bucket]
		if !ok {
			id = len(ids)
			ids[bucket] = id
		}
		labels[i] = id
	}

	return &Assignment{Labels: labels, Strategy: s.Name()}, nil
}

func (s *LexicalStrategy) bucketFor(text string) string {
	k := strings.ToLower(text)
	for _, b := range defaultBuckets {
		if b.pattern.MatchString(k) {
			return b.name
		}
	}
	for _, term := range s.GeoTerms {
		if strings.Contains(k, term) {
			return "geo"
		}
	}
	return fallbackBucket
}
