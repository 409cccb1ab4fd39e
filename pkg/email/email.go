// Package email holds small helpers for working with invitation email
// addresses: normalization for dedup keys and display-name derivation for
// invitation copy when the inviter has no profile name.
package email

import (
	"strings"
	"unicode"
)

// Normalize lowercases and trims an address so (email, trip) dedup keys are
// stable regardless of how the organizer typed the address.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsValid does a cheap structural check. Full RFC validation is pointless
// here; delivery failure is already an advisory outcome.
func IsValid(address string) bool {
	at := strings.IndexByte(address, '@')
	if at <= 0 || at == len(address)-1 {
		return false
	}
	domain := address[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(address, " \t\n")
}

// DeriveNameFromEmail derives a first/last display name from the local part
// of an address, used for invitation email copy.
func DeriveNameFromEmail(address string) (string, string) {
	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "Traveler", "Traveler"
	}

	first := capitalize(parts[0])
	last := "Traveler"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
