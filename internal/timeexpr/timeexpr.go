// Package timeexpr turns a human schedule string into a concrete timestamp.
//
// Supported forms:
//   - Relative: "+2h", "+30m"
//   - Absolute: "2026-01-23 10:00"
//   - Time of day: "10:00" (today, or tomorrow when not strictly in the future)
package timeexpr

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Layout is the absolute form accepted by Parse and used when echoing times back.
const Layout = "2006-01-02 15:04"

// ParseError reports a schedule string that none of the supported forms accept.
type ParseError struct {
	Expr   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return "cannot parse time: " + strconv.Quote(e.Expr)
	}
	return "cannot parse time " + strconv.Quote(e.Expr) + ": " + e.Reason
}

// IsParseError reports whether err carries a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

var (
	reRelative = regexp.MustCompile(`^\+(\d+)([A-Za-z]+)$`)
	reHHMM     = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// Parse resolves expr against the current wall clock in the local zone.
func Parse(expr string) (time.Time, error) {
	return ParseAt(expr, time.Now())
}

// ParseAt resolves expr relative to now. Absolute and time-of-day forms are
// interpreted in now's location.
func ParseAt(expr string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return time.Time{}, &ParseError{Expr: expr, Reason: "empty"}
	}

	if strings.HasPrefix(s, "+") {
		m := reRelative.FindStringSubmatch(s)
		if m == nil {
			return time.Time{}, &ParseError{Expr: expr, Reason: "expected +<N>h or +<N>m"}
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, &ParseError{Expr: expr, Reason: "amount out of range"}
		}
		var unit time.Duration
		switch m[2] {
		case "h":
			unit = time.Hour
		case "m":
			unit = time.Minute
		default:
			return time.Time{}, &ParseError{Expr: expr, Reason: "unknown time unit " + strconv.Quote(m[2]) + " (use 'h' or 'm')"}
		}
		if int64(n) > math.MaxInt64/int64(unit) {
			return time.Time{}, &ParseError{Expr: expr, Reason: "amount out of range"}
		}
		return now.Add(time.Duration(n) * unit), nil
	}

	if strings.Contains(s, "-") && strings.Contains(s, " ") {
		t, err := time.ParseInLocation(Layout, s, now.Location())
		if err != nil {
			return time.Time{}, &ParseError{Expr: expr, Reason: "expected YYYY-MM-DD HH:MM"}
		}
		return t, nil
	}

	if m := reHHMM.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		if h > 23 || mi > 59 {
			return time.Time{}, &ParseError{Expr: expr, Reason: "hour or minute out of range"}
		}
		target := time.Date(now.Year(), now.Month(), now.Day(), h, mi, 0, 0, now.Location())
		// Exactly-now counts as past and rolls to tomorrow.
		if !target.After(now) {
			target = target.AddDate(0, 0, 1)
		}
		return target, nil
	}

	return time.Time{}, &ParseError{Expr: expr}
}
