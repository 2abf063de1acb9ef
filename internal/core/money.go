// Package core holds the billing domain: money in integer centavos,
// fiscal-calendar math, and the entities the repository and handlers share.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in centavos. All arithmetic stays in integers;
// pesos are a display format only.
type Money struct {
	Centavos int64
}

// ParseDecimalToCentavos converts a positive decimal string to centavos with
// half-up rounding on the third decimal place. Both dot (12.34) and comma
// (12,34) separators are accepted. Returns an error for invalid formats,
// signed values, or zero amounts.
func ParseDecimalToCentavos(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Guard the ×100 against overflow
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCentavos int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracCentavos = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			fracCentavos += d2
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCentavos++
			}
		}
	}
	centavos := iv*100 + fracCentavos
	if centavos <= 0 {
		return 0, ErrInvalidAmount
	}
	return centavos, nil
}

// ParseSignedDecimalToCentavos is ParseDecimalToCentavos with an optional
// leading minus sign, for signed ledger amounts (expenses are negative).
func ParseSignedDecimalToCentavos(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	centavos, err := ParseDecimalToCentavos(s)
	if err != nil {
		return 0, err
	}
	if neg {
		return -centavos, nil
	}
	return centavos, nil
}

// Pesos returns the peso value as a float64 for display purposes only.
// Use centavos for calculations.
func (m Money) Pesos() float64 {
	return float64(m.Centavos) / 100.0
}

// FormatPesos renders centavos as a peso string with thousands separators,
// e.g. 123456789 -> "$1,234,567.89".
func FormatPesos(centavos int64) string {
	neg := centavos < 0
	if neg {
		centavos = -centavos
	}
	pesos := centavos / 100
	rem := centavos % 100

	digits := strconv.FormatInt(pesos, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	s := "$" + b.String() + "." + twoDigits(rem)
	if neg {
		return "-" + s
	}
	return s
}

// String implements fmt.Stringer using peso formatting.
func (m Money) String() string {
	return FormatPesos(m.Centavos)
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
