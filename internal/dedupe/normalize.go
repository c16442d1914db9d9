package dedupe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopwords removed before similarity comparison. Display text keeps them.
var stopwords = map[string]struct{}{
	"de": {}, "la": {}, "el": {}, "en": {}, "y": {}, "los": {}, "las": {},
	"del": {}, "por": {}, "con": {}, "un": {}, "una": {}, "que": {},
	"the": {}, "of": {}, "for": {}, "a": {}, "an": {}, "in": {}, "to": {},
	"and": {},
}

// diacriticStripper decomposes to NFD, drops combining marks, recomposes.
var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize produces the canonical comparison form of a keyword: lower-case,
// diacritics stripped, punctuation collapsed to spaces, stop-words removed.
func Normalize(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	stripped, _, err := transform.String(diacriticStripper, lower)
	if err != nil {
		stripped = lower
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		if _, skip := stopwords[f]; !skip {
			kept = append(kept, f)
		}
	}
	// A keyword made only of stop-words keeps them; an empty canonical form
	// would collide with every other such keyword.
	if len(kept) == 0 {
		kept = fields
	}
	return strings.Join(kept, " ")
}
