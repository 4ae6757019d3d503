// Package daykey derives calendar-day bucket keys in the business's
// reference timezone, so that "today" means the same thing regardless of
// server or client locale.
package daykey

import (
	"fmt"
	"time"
)

// Layout is the wire format of a day key.
const Layout = "2006-01-02"

// DefaultTimezone is the reference timezone when none is configured.
const DefaultTimezone = "America/Argentina/Tucuman"

// Clock produces day keys pinned to one fixed timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock loads the named timezone. If the tz database is unavailable it
// falls back to a fixed UTC-3 zone rather than failing startup.
func NewClock(tzName string) *Clock {
	if tzName == "" {
		tzName = DefaultTimezone
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc = time.FixedZone("ART", -3*3600)
	}
	return &Clock{loc: loc, now: time.Now}
}

// NewClockAt pins the clock to a fixed instant. Test helper.
func NewClockAt(tzName string, at time.Time) *Clock {
	c := NewClock(tzName)
	c.now = func() time.Time { return at }
	return c
}

// Today returns the current day key in the reference timezone.
func (c *Clock) Today() string {
	return c.now().In(c.loc).Format(Layout)
}

// Keyed returns the day key for an arbitrary instant.
func (c *Clock) Keyed(t time.Time) string {
	return t.In(c.loc).Format(Layout)
}

// Now returns the current instant; stored on records alongside the day key.
func (c *Clock) Now() time.Time {
	return c.now()
}

// Validate checks that s is a well-formed day key.
func Validate(s string) error {
	if _, err := time.Parse(Layout, s); err != nil {
		return fmt.Errorf("invalid day key %q: %w", s, err)
	}
	return nil
}
