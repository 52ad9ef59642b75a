// Package amount implements the fixed-point decimal model used throughout
// trustora: every on-chain USDT value is tracked as a count of micro-units
// (1 unit = 1e-6 USDT) so comparisons and persistence never touch floats.
package amount

import (
	"fmt"
	"strconv"
	"strings"
)

// Scale is the number of fractional decimal digits tracked.
const Scale = 6

const scaleFactor = 1_000_000

// Micro is an amount expressed in micro-units (value * 1e6), stored as an
// int64. All arithmetic in this package is exact integer arithmetic.
type Micro int64

// Parse reads a decimal string (e.g. "12.5", "0.000001", "100") and
// quantizes it to micro-units using round-down truncation, matching the
// original system's ROUND_DOWN quantization policy: a deposit of
// 12.3456789 is recorded as 12.345678, never rounded up.
func Parse(s string) (Micro, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount: empty string")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if _, err := strconv.ParseUint(whole, 10, 63); err != nil {
		return 0, fmt.Errorf("amount: invalid integer part %q: %w", whole, err)
	}

	if hasFrac {
		for _, r := range frac {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("amount: invalid fractional part %q", frac)
			}
		}
		if len(frac) > Scale {
			frac = frac[:Scale] // truncate, never round up
		} else {
			frac = frac + strings.Repeat("0", Scale-len(frac))
		}
	} else {
		frac = strings.Repeat("0", Scale)
	}

	wholeVal, err := strconv.ParseInt(whole, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("amount: integer part overflow: %w", err)
	}
	fracVal, err := strconv.ParseInt(frac, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("amount: fractional part overflow: %w", err)
	}

	micro := wholeVal*scaleFactor + fracVal
	if neg {
		micro = -micro
	}
	return Micro(micro), nil
}

// MustParse is Parse but panics on error; intended for constants in tests
// and for well-known configuration defaults.
func MustParse(s string) Micro {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromFloat quantizes a float64 value into Micro using the same
// round-down policy as Parse. Present only for call sites that already
// hold a float (e.g. a JSON-decoded percent); new code should prefer Parse.
func FromFloat(f float64) Micro {
	return Micro(int64(f * scaleFactor))
}

// String formats the amount with exactly Scale fractional digits, the
// canonical textual form used both for display and for building
// HMAC-signed payout request payloads.
func (m Micro) String() string {
	neg := m < 0
	v := int64(m)
	if neg {
		v = -v
	}
	whole := v / scaleFactor
	frac := v % scaleFactor
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%06d", sign, whole, frac)
}

// Int64 returns the underlying micro-unit count.
func (m Micro) Int64() int64 { return int64(m) }

// FromInt64 builds a Micro directly from a micro-unit count, e.g. one read
// back from a database BIGINT column.
func FromInt64(v int64) Micro { return Micro(v) }

func (m Micro) Add(o Micro) Micro { return m + o }
func (m Micro) Sub(o Micro) Micro { return m - o }

func (m Micro) Cmp(o Micro) int {
	switch {
	case m < o:
		return -1
	case m > o:
		return 1
	default:
		return 0
	}
}

func (m Micro) IsZero() bool     { return m == 0 }
func (m Micro) IsNegative() bool { return m < 0 }
func (m Micro) IsPositive() bool { return m > 0 }
