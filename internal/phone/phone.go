// Package phone canonicalizes Iraqi subscriber numbers. The rest of the
// system stores and looks up phones exclusively in the +964 canonical form
// this package produces.
package phone

import (
	"regexp"
	"strings"
)

const countryPrefix = "+964"

var canonicalRe = regexp.MustCompile(`^\+964[0-9]{9,10}$`)

// Normalize strips whitespace and hyphens and rewrites the accepted prefixes
// (leading 0, 00964, 964, +964) to the canonical +964 form. It returns
// ("", false) when the input matches none of the recognized prefixes.
// Normalize is idempotent: feeding a canonical number back in returns it
// unchanged.
func Normalize(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}

	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(raw)

	switch {
	case strings.HasPrefix(cleaned, "00964"):
		// International dialing form must win over the bare leading-0 rule.
		cleaned = countryPrefix + cleaned[5:]
	case strings.HasPrefix(cleaned, "0"):
		// National form: 07701234567 -> +9647701234567.
		cleaned = countryPrefix + cleaned[1:]
	case strings.HasPrefix(cleaned, "964"):
		cleaned = "+" + cleaned
	case strings.HasPrefix(cleaned, countryPrefix):
		// Already canonical.
	default:
		return "", false
	}

	return cleaned, true
}

// IsValid reports whether raw normalizes to +964 followed by 9 or 10 digits.
func IsValid(raw string) bool {
	normalized, ok := Normalize(raw)
	if !ok {
		return false
	}
	return canonicalRe.MatchString(normalized)
}
