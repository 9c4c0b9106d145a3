package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of a calendar date
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day.
// It marshals to JSON as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate truncates t to midnight in its own location
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

// ParseDate parses a "YYYY-MM-DD" string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String returns the date as "YYYY-MM-DD"
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements custom JSON marshaling for Date.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts both "YYYY-MM-DD" and full RFC3339 timestamps,
// since PostgREST returns date columns in the short form.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if parsed, err := ParseDate(s); err == nil {
		*d = parsed
		return nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	*d = NewDate(t)
	return nil
}

// DatePtr is a convenience for building optional dates
func DatePtr(t time.Time) *Date {
	d := NewDate(t)
	return &d
}
