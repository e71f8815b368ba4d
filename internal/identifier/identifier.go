package identifier

import (
	"errors"
	"regexp"
	"strings"
)

const (
	// DefaultCountryCode is prepended to bare ten-digit phone numbers.
	DefaultCountryCode = "+1"

	minPhoneDigits = 10
	maxPhoneDigits = 15
)

var (
	// ErrUnclassifiable indicates the raw input is neither an email nor a phone number.
	ErrUnclassifiable = errors.New("identifier: input is neither email nor phone")

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigits    = regexp.MustCompile(`\D`)
)

// Kind tags a raw login identifier as exactly one of email, phone, or invalid.
type Kind int

const (
	Invalid Kind = iota
	Email
	Phone
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case Email:
		return "email"
	case Phone:
		return "phone"
	default:
		return "invalid"
	}
}

// Classifier determines the kind of a raw identifier and canonicalizes it.
// It is pure and safe to call speculatively, for example from live form hints.
type Classifier struct {
	countryCode string
}

// NewClassifier constructs a classifier using the supplied default country code
// for bare ten-digit phone numbers. An empty code falls back to DefaultCountryCode.
func NewClassifier(countryCode string) *Classifier {
	code := strings.TrimSpace(countryCode)
	if code == "" {
		code = DefaultCountryCode
	}
	if !strings.HasPrefix(code, "+") {
		code = "+" + code
	}
	return &Classifier{countryCode: code}
}

// Classify reports whether raw is an email address, a phone number, or neither.
// Email wins ties: a string containing "@" is never classified as a phone.
func (c *Classifier) Classify(raw string) Kind {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Invalid
	}
	if strings.Contains(trimmed, "@") {
		if emailPattern.MatchString(trimmed) {
			return Email
		}
		return Invalid
	}
	digits := nonDigits.ReplaceAllString(trimmed, "")
	if len(digits) >= minPhoneDigits && len(digits) <= maxPhoneDigits {
		return Phone
	}
	return Invalid
}

// Normalize canonicalizes raw according to its kind. Emails are trimmed and
// lower-cased. Phone numbers are reduced to digits and given a country prefix:
// more than ten digits are assumed to already carry a country code, exactly ten
// digits receive the configured default.
func (c *Classifier) Normalize(raw string, kind Kind) (string, error) {
	trimmed := strings.TrimSpace(raw)
	switch kind {
	case Email:
		return strings.ToLower(trimmed), nil
	case Phone:
		digits := nonDigits.ReplaceAllString(trimmed, "")
		switch {
		case len(digits) > minPhoneDigits && len(digits) <= maxPhoneDigits:
			return "+" + digits, nil
		case len(digits) == minPhoneDigits:
			return c.countryCode + digits, nil
		default:
			return "", ErrUnclassifiable
		}
	default:
		return "", ErrUnclassifiable
	}
}

// ClassifyAndNormalize combines Classify and Normalize for the common case.
func (c *Classifier) ClassifyAndNormalize(raw string) (Kind, string, error) {
	kind := c.Classify(raw)
	if kind == Invalid {
		return Invalid, "", ErrUnclassifiable
	}
	normalized, err := c.Normalize(raw, kind)
	if err != nil {
		return Invalid, "", err
	}
	return kind, normalized, nil
}
