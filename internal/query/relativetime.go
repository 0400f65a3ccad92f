package query

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Calendar unit approximations used for relative-time expressions. A year is
// 365 days and a month 30 days, applied consistently so "1y" and "365d"
// produce the same floor.
const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

var relativeUnits = map[string]time.Duration{
	"y":  year,
	"mo": month,
	"w":  week,
	"d":  day,
	"h":  time.Hour,
	"m":  time.Minute,
	"s":  time.Second,
}

// ParseRelative parses a humanized relative-time expression such as "1y",
// "6mo", "2w" or the compound "1y6mo" into a duration. The grammar is a
// sequence of integer+unit tokens with units y, mo, w, d, h, m, s.
func ParseRelative(expr string) (time.Duration, error) {
	s := strings.TrimSpace(strings.ToLower(expr))
	if s == "" {
		return 0, fmt.Errorf("empty relative-time expression")
	}

	var total time.Duration
	i := 0
	for i < len(s) {
		// integer part
		j := i
		for j < len(s) && unicode.IsDigit(rune(s[j])) {
			j++
		}
		if j == i {
			return 0, fmt.Errorf("expected digit at %q in %q", s[i:], expr)
		}
		var n int64
		for _, c := range s[i:j] {
			n = n*10 + int64(c-'0')
		}

		// unit part: longest match first so "mo" wins over "m"
		k := j
		for k < len(s) && !unicode.IsDigit(rune(s[k])) {
			k++
		}
		unit := s[j:k]
		if unit == "" {
			return 0, fmt.Errorf("missing unit after %q in %q", s[i:j], expr)
		}
		d, ok := relativeUnits[unit]
		if !ok {
			return 0, fmt.Errorf("unknown unit %q in %q", unit, expr)
		}

		total += time.Duration(n) * d
		i = k
	}

	return total, nil
}

// FloorDate converts a relative expression into the absolute date floor
// now − duration, truncated to date granularity in UTC.
func FloorDate(expr string, now time.Time) (time.Time, error) {
	d, err := ParseRelative(expr)
	if err != nil {
		return time.Time{}, err
	}
	t := now.Add(-d).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
