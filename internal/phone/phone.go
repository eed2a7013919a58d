// Package phone canonicalizes free-text phone input into the identity key
// shared by clients and drivers.
package phone

import "strings"

const (
	// DefaultCountryCode is prepended to numbers typed without a leading '+'.
	DefaultCountryCode = "+51"

	countryDigits    = "51"
	internationalLen = 11
	localLen         = 9
)

// Normalize keeps digits and '+' from raw. A cleaned value that already starts
// with '+' is returned as is; anything else is reduced to digits and prefixed
// with DefaultCountryCode. Input without any digit yields "".
func Normalize(raw string) string {
	var b strings.Builder
	digits := 0
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == '+':
			b.WriteRune(r)
		}
	}
	if digits == 0 {
		return ""
	}

	cleaned := b.String()
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	return DefaultCountryCode + strings.ReplaceAll(cleaned, "+", "")
}

// IsPlausible is a syntactic check on a normalized number: 11 digits when the
// digit run starts with the country code, 9 digits for a bare local number.
func IsPlausible(normalized string) bool {
	d := digitsOf(normalized)
	if strings.HasPrefix(d, countryDigits) {
		return len(d) == internationalLen
	}
	return len(d) == localLen
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
