// Package civildate maps instants to the calendar dates observed in a named
// IANA timezone and back to UTC day boundaries.
package civildate

import (
	"fmt"
	"strings"
	"time"

	"growthdash/internal/domain"
)

// DefaultTimezone is UTC-6 outside daylight saving time.
const DefaultTimezone = "America/Chicago"

// SentinelDate is returned for timestamps that cannot be parsed. It falls
// outside any realistic range so such rows are dropped by the bucket builder.
const SentinelDate = "1970-01-01"

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	domain.DateLayout,
}

// Normalizer converts between instants and civil dates in one location.
type Normalizer struct {
	loc *time.Location
}

// New loads the named timezone. An empty name selects DefaultTimezone.
func New(tz string) (*Normalizer, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", tz, err)
	}
	return &Normalizer{loc: loc}, nil
}

// ToCivilDate returns the calendar date t falls on in the normalizer's zone.
func (n *Normalizer) ToCivilDate(t time.Time) string {
	return t.In(n.loc).Format(domain.DateLayout)
}

// ParseToCivilDate parses a raw timestamp and returns its civil date. Values
// without an offset are taken as UTC; bare dates are already civil. When the
// value cannot be parsed it returns SentinelDate and false.
func (n *Normalizer) ParseToCivilDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SentinelDate, false
	}
	if len(raw) == len(domain.DateLayout) {
		if _, err := time.Parse(domain.DateLayout, raw); err == nil {
			return raw, true
		}
		return SentinelDate, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return n.ToCivilDate(t), true
		}
	}
	return SentinelDate, false
}

// DayBounds returns [local midnight, next local midnight) for date as UTC
// instants. Daylight saving days come out as 23 or 25 hours long.
func (n *Normalizer) DayBounds(date string) (time.Time, time.Time, error) {
	d, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidRange, date)
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, n.loc)
	end := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, n.loc)
	return start.UTC(), end.UTC(), nil
}

// Window builds the UTC bounds covering every day of r.
func (n *Normalizer) Window(r domain.DateRange) (domain.Window, error) {
	if err := r.Validate(); err != nil {
		return domain.Window{}, err
	}
	from, _, err := n.DayBounds(r.Start)
	if err != nil {
		return domain.Window{}, err
	}
	_, to, err := n.DayBounds(r.End)
	if err != nil {
		return domain.Window{}, err
	}
	return domain.Window{Range: r, From: from, To: to}, nil
}

// Today returns the current civil date.
func (n *Normalizer) Today(now time.Time) string {
	return n.ToCivilDate(now)
}

// AddDays shifts a civil date by n days.
func AddDays(date string, days int) (string, error) {
	d, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidRange, date)
	}
	return d.AddDate(0, 0, days).Format(domain.DateLayout), nil
}

// DaysBetween returns the number of whole civil days from a to b.
func DaysBetween(a, b string) (int, error) {
	da, err := time.Parse(domain.DateLayout, a)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidRange, a)
	}
	db, err := time.Parse(domain.DateLayout, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidRange, b)
	}
	return int(db.Sub(da).Hours() / 24), nil
}
