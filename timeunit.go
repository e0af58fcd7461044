package txtrace

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// unit sizes in nanoseconds; sub-nanosecond units are zero and clamp
// to a 1ns wire multiplier (the clock description cannot express less).
var unitNanos = map[string]uint64{
	"s":  1_000_000_000,
	"ms": 1_000_000,
	"us": 1_000,
	"µs": 1_000,
	"ns": 1,
	"ps": 0,
	"fs": 0,
}

// parseTimeUnit converts a caller-supplied time-unit string such as
// "ns", "1ns", "10us" or "100ps" into the nanosecond multiplier the
// clock description packet carries. The numeric count defaults to 1.
func parseTimeUnit(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time unit: %w", ErrNilArgument)
	}

	split := 0
	for split < len(s) && unicode.IsDigit(rune(s[split])) {
		split++
	}

	count := uint64(1)
	if split > 0 {
		n, err := strconv.ParseUint(s[:split], 10, 64)
		if err != nil || n == 0 {
			return 0, fmt.Errorf("bad time unit count %q: %w", s, ErrInvalidName)
		}
		count = n
	}

	nanos, ok := unitNanos[strings.TrimSpace(s[split:])]
	if !ok {
		return 0, fmt.Errorf("unknown time unit %q: %w", s, ErrInvalidName)
	}

	mul := count * nanos
	if mul == 0 {
		mul = 1
	}
	return mul, nil
}
