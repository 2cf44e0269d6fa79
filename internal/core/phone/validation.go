// Package phone screens visitor phone numbers before any call is placed.
//
// The checks are a heuristic filter against junk input, not a telecom-correct
// validator: no country-specific rules are applied.
package phone

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	// E.164: a leading +, a first digit 1-9, then 1 to 14 more digits.
	e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

	ascendingRuns = []string{"01234", "12345", "23456", "34567", "45678", "56789", "67890"}
)

var (
	// ErrRequired is returned for an empty phone number.
	ErrRequired = errors.New("phone number is required")

	// ErrFormat is returned when the number is not in international format.
	ErrFormat = errors.New("phone number must be in international format (e.g., +15551234567)")

	// ErrPattern is returned for numbers with a suspicious digit pattern.
	ErrPattern = errors.New("invalid phone number pattern")
)

// Clean strips whitespace, Unicode spaces included, and hyphens.
func Clean(raw string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
}

// IsE164Format returns whether a string is an E.164 formatted phone number.
func IsE164Format(phoneNumber string) bool {
	return e164Pattern.MatchString(phoneNumber)
}

// Validate cleans raw and returns the normalized number, or the first rule it
// breaks.
func Validate(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrRequired
	}

	cleaned := Clean(raw)
	if !IsE164Format(cleaned) {
		return "", ErrFormat
	}

	digits := cleaned[1:]
	if allSame(digits) || hasAscendingRun(digits) {
		return "", ErrPattern
	}

	return cleaned, nil
}

func allSame(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return len(digits) > 1
}

func hasAscendingRun(digits string) bool {
	for _, run := range ascendingRuns {
		if strings.Contains(digits, run) {
			return true
		}
	}
	return false
}

// Mask hides all but the last four digits, for logs.
func Mask(number string) string {
	if len(number) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
