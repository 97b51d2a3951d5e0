package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
	year = 365 * day
)

var durationUnits = []struct {
	name string
	size time.Duration
}{
	{"y", year},
	{"w", week},
	{"d", day},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
	{"ms", time.Millisecond},
	{"µs", time.Microsecond},
	{"ns", time.Nanosecond},
}

// FormatDuration renders d as a sequence of unit groups from years down to
// nanoseconds, for example "1d2h30m" or "1s500ms". The zero duration is "0ns".
// Negative durations carry a leading minus sign.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "0ns"
	}
	var b strings.Builder
	// Work in uint64 so math.MinInt64 negates cleanly.
	rem := uint64(d)
	if d < 0 {
		b.WriteByte('-')
		rem = uint64(-(d + 1)) + 1
	}
	for _, u := range durationUnits {
		size := uint64(u.size)
		if rem < size {
			continue
		}
		b.WriteString(strconv.FormatUint(rem/size, 10))
		b.WriteString(u.name)
		rem %= size
	}
	return b.String()
}

// ParseDuration parses the text form produced by FormatDuration. It accepts
// "us" as an alias of "µs".
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	if s == "" {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}

	var total uint64
	for s != "" {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 {
			return 0, fmt.Errorf("invalid duration %q", orig)
		}
		n, err := strconv.ParseUint(s[:i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
		}
		s = s[i:]

		j := 0
		for j < len(s) && (s[j] < '0' || s[j] > '9') {
			j++
		}
		unit, ok := unitSize(s[:j])
		if !ok {
			return 0, fmt.Errorf("invalid duration %q: unknown unit %q", orig, s[:j])
		}
		s = s[j:]

		if n > math.MaxInt64/uint64(unit) {
			return 0, fmt.Errorf("invalid duration %q: overflow", orig)
		}
		total += n * uint64(unit)
		if total > math.MaxInt64 {
			return 0, fmt.Errorf("invalid duration %q: overflow", orig)
		}
	}
	if neg {
		return -time.Duration(total), nil
	}
	return time.Duration(total), nil
}

func unitSize(name string) (time.Duration, bool) {
	if name == "us" {
		return time.Microsecond, true
	}
	for _, u := range durationUnits {
		if u.name == name {
			return u.size, true
		}
	}
	return 0, false
}
