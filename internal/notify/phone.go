package notify

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizePhone converts a locally written number to E.164. Numbers without a country
// code get countryCode (e.g. "+91"). A "whatsapp:" prefix is accepted and dropped.
func NormalizePhone(raw, countryCode string) (string, error) {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "whatsapp:"))
	if s == "" {
		return "", fmt.Errorf("empty phone number")
	}

	plus := strings.HasPrefix(s, "+")
	var digits strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", fmt.Errorf("invalid character %q in phone number", r)
		}
	}
	d := digits.String()
	cc := strings.TrimPrefix(countryCode, "+")

	switch {
	case plus:
	case strings.HasPrefix(d, "00"):
		d = d[2:]
	case len(d) == 11 && strings.HasPrefix(d, "0"):
		d = cc + d[1:]
	case len(d) == 10:
		d = cc + d
	}

	if len(d) < 8 || len(d) > 15 {
		return "", fmt.Errorf("phone number %q has an invalid length", raw)
	}
	return "+" + d, nil
}

// WhatsAppAddress returns the provider address form "whatsapp:+E164".
func WhatsAppAddress(raw, countryCode string) (string, error) {
	e164, err := NormalizePhone(raw, countryCode)
	if err != nil {
		return "", err
	}
	return "whatsapp:" + e164, nil
}
