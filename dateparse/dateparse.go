package dateparse

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"

	// BoundLayout is how range bounds are handed to the calendar API.
	BoundLayout = "2006-01-02T15:04:05.000Z07:00"

	// DefaultSpan is the distance between start and end when only a start is given.
	DefaultSpan = 7
)

// ErrInvertedRange is returned when the start date comes after the end date.
var ErrInvertedRange = errors.New("start date must not be after end date")

// Range is an inclusive span of calendar days.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange truncates both dates to midnight and rejects start > end.
func NewRange(start, end time.Time) (Range, error) {
	r := Range{Start: day(start), End: day(end)}
	if r.Start.After(r.End) {
		return Range{}, fmt.Errorf("%s > %s: %w", r.Start.Format(dateLayout), r.End.Format(dateLayout), ErrInvertedRange)
	}
	return r, nil
}

// Validate re-checks a Range that was built by hand.
func (r Range) Validate() error {
	if day(r.Start).After(day(r.End)) {
		return ErrInvertedRange
	}
	return nil
}

// Bounds returns start 00:00:00.000 and end 23:59:59.999, interpreted in loc.
func (r Range) Bounds(loc *time.Location) (timeMin, timeMax string) {
	if loc == nil {
		loc = time.UTC
	}
	s := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, loc)
	e := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	return s.Format(BoundLayout), e.Format(BoundLayout)
}

// Days is the number of calendar days covered.
func (r Range) Days() int {
	return int(math.Round(day(r.End).Sub(day(r.Start)).Hours()/24)) + 1
}

func (r Range) String() string {
	return r.Start.Format(dateLayout) + " .. " + r.End.Format(dateLayout)
}

// Default is today through today+DefaultSpan.
func Default(now time.Time) Range {
	return Range{Start: day(now), End: day(now).AddDate(0, 0, DefaultSpan)}
}

// DefaultParser turns command-line arguments into a Range. Now anchors
// relative dates; its location decides which calendar day "today" is.
type DefaultParser struct {
	Now func() time.Time
}

// Parse parses command-line arguments into a range: no arguments gives the
// default range, one argument gives that day plus DefaultSpan days.
func (p *DefaultParser) Parse(args []string) (Range, error) {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}
	switch len(args) {
	case 0:
		return Default(now), nil
	case 1:
		start, err := ParseDate(args[0], now)
		if err != nil {
			return Range{}, err
		}
		return NewRange(start, start.AddDate(0, 0, DefaultSpan))
	case 2:
		start, err := ParseDate(args[0], now)
		if err != nil {
			return Range{}, err
		}
		end, err := ParseDate(args[1], now)
		if err != nil {
			return Range{}, err
		}
		return NewRange(start, end)
	default:
		return Range{}, errors.New("too many arguments")
	}
}

// ParseDate understands today, tomorrow, yesterday, +Nd, -Nd and YYYY-MM-DD.
func ParseDate(s string, now time.Time) (time.Time, error) {
	today := day(now)
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	if (s[0] == '+' || s[0] == '-') && strings.HasSuffix(s, "d") {
		digits := s[1 : len(s)-1]
		n, err := strconv.Atoi(digits)
		if err != nil || digits == "" || digits[0] == '+' || digits[0] == '-' {
			return time.Time{}, fmt.Errorf("could not parse relative date %q", s)
		}
		if s[0] == '-' {
			n = -n
		}
		return today.AddDate(0, 0, n), nil
	}

	parsed, err := time.ParseInLocation(dateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse date %q, want YYYY-MM-DD", s)
	}
	return parsed, nil
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
