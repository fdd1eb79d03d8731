package report

import (
	"fmt"
	"strings"
	"time"
)

// ParseRange parses optional from/to bounds. Each accepts an RFC 3339
// timestamp or a YYYY-MM-DD date in loc; a date-only "to" covers the whole
// day. Blank bounds come back nil. Results are in UTC.
func ParseRange(from, to string, loc *time.Location) (*time.Time, *time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	f, err := parseBound(from, false, loc)
	if err != nil {
		return nil, nil, fmt.Errorf("from: %w", err)
	}
	t, err := parseBound(to, true, loc)
	if err != nil {
		return nil, nil, fmt.Errorf("to: %w", err)
	}
	if f != nil && t != nil && t.Before(*f) {
		return nil, nil, fmt.Errorf("to must not be before from")
	}
	return f, t, nil
}

func parseBound(s string, end bool, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return nil, fmt.Errorf("expected RFC3339 or YYYY-MM-DD, got %q", s)
	}
	if end {
		d = d.AddDate(0, 0, 1)
	}
	d = d.UTC()
	return &d, nil
}
