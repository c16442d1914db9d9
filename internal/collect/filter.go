package collect

import (
	"regexp"
	"strings"
	"unicode"
)

var disallowedRunes = regexp.MustCompile(`[^\p{L}\p{N}\s\-]`)

// cleanKeyword strips unwanted characters, collapses whitespace, and
// lowercases a raw suggestion.
func cleanKeyword(raw string) string {
	cleaned := disallowedRunes.ReplaceAllString(raw, "")
	return strings.ToLower(strings.Join(strings.Fields(cleaned), " "))
}

// validKeyword rejects suggestions that cannot be useful keywords: too
// short, too long, purely numeric, or URL fragments.
func validKeyword(keyword string) bool {
	if len(keyword) < 3 || len(keyword) > 100 {
		return false
	}

	digitsOnly := true
	for _, r := range keyword {
		if !unicode.IsDigit(r) {
			digitsOnly = false
			break
		}
	}
	if digitsOnly {
		return false
	}

	for _, frag := range []string{"http", "www", ".com", "@"} {
		if strings.Contains(keyword, frag) {
			return false
		}
	}
	return true
}

// filterKeywords cleans and validates raw suggestions, dropping duplicates
// while preserving order.
func filterKeywords(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, kw := range raw {
		cleaned := cleanKeyword(kw)
		if !validKeyword(cleaned) {
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, cleaned)
	}
	return out
}
