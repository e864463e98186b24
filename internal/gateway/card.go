package gateway

import (
	"errors"
	"strings"
)

// ErrInvalidCardNo is returned when a card number fails normalization or
// the Luhn checksum.
var ErrInvalidCardNo = errors.New("invalid card number")

// NormalizeCardNo strips whitespace and hyphens from a card number and
// validates it: 13-19 digits with a Luhn checksum congruent to 0 mod 10.
// Validation happens before any outbound call so garbage never reaches
// the PG.
func NormalizeCardNo(cardNo string) (string, error) {
	var b strings.Builder
	for _, r := range cardNo {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			// separator, skip
		default:
			return "", ErrInvalidCardNo
		}
	}
	digits := b.String()
	if len(digits) < 13 || len(digits) > 19 {
		return "", ErrInvalidCardNo
	}
	if !luhnValid(digits) {
		return "", ErrInvalidCardNo
	}
	return digits, nil
}

// luhnValid implements the Luhn checksum over an all-digit string.
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
