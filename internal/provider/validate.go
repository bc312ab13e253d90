package provider

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const (
	minPhoneDigits     = 9
	defaultCountryCode = "48"
)

// ValidEmail reports whether s looks like a deliverable email address
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// CleanPhone drops everything except digits and '+'
func CleanPhone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidPhone reports whether s carries at least nine digits
func ValidPhone(s string) bool {
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minPhoneDigits
}

// NormalizePhone converts a valid number to international form, assuming the
// default country when no '+' prefix is present.
func NormalizePhone(s string) string {
	clean := CleanPhone(s)
	switch {
	case strings.HasPrefix(clean, "+"):
		return clean
	case strings.HasPrefix(clean, defaultCountryCode):
		return "+" + clean
	case strings.HasPrefix(clean, "0"):
		return "+" + defaultCountryCode + clean[1:]
	default:
		return "+" + defaultCountryCode + clean
	}
}
