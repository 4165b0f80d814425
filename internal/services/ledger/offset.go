package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lotting_ledger/internal/utils"
)

var (
	ErrOffsetNoDigits     = errors.New("offset has no digits")
	ErrUnrecognizedOffset = errors.New("offset has no month or year unit")
)

// ParseError is a field- or phase-level parse failure. It never aborts a batch.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	monthUnits = []string{"개월", "달", "months", "month"}
	yearUnits  = []string{"년", "years", "year"}
)

// farFutureYears is how far the legacy resolver pushes an unrecognised offset.
const farFutureYears = 100

type OffsetResolver struct {
	// LegacyFarFuture maps unrecognised offsets to anchor+100y instead of failing.
	LegacyFarFuture bool
}

// Resolve turns a relative offset descriptor ("6개월", "2달", "1년", "") into a
// concrete date counted from anchor.
func (r OffsetResolver) Resolve(anchor time.Time, offset string) (time.Time, error) {
	d := strings.TrimSpace(offset)
	if d == "" {
		return anchor, nil
	}

	lower := strings.ToLower(d)
	switch {
	case hasAnySuffix(lower, monthUnits):
		n, err := leadingCount(d)
		if err != nil {
			return time.Time{}, err
		}
		return addMonths(anchor, n), nil
	case hasAnySuffix(lower, yearUnits):
		n, err := leadingCount(d)
		if err != nil {
			return time.Time{}, err
		}
		return addMonths(anchor, n*12), nil
	}

	if r.LegacyFarFuture {
		return addMonths(anchor, farFutureYears*12), nil
	}
	return time.Time{}, &ParseError{Field: "offset", Value: offset, Err: ErrUnrecognizedOffset}
}

func hasAnySuffix(s string, units []string) bool {
	for _, u := range units {
		if strings.HasSuffix(s, u) {
			return true
		}
	}
	return false
}

// leadingCount keeps only the digits of s and parses them as one number.
func leadingCount(s string) (int, error) {
	digits := utils.OnlyDigits(s)
	if digits == "" {
		return 0, &ParseError{Field: "offset", Value: s, Err: ErrOffsetNoDigits}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, &ParseError{Field: "offset", Value: s, Err: err}
	}
	return n, nil
}

// addMonths adds n months and clamps the day to the end of the target month,
// so Jan 31 + 1 month is the last day of February.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	ty := y + total/12
	tm := total % 12
	if tm < 0 {
		tm += 12
		ty--
	}
	target := time.Month(tm + 1)
	last := daysIn(ty, target, t.Location())
	if d > last {
		d = last
	}
	return time.Date(ty, target, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
