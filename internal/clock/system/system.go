// Package system provides the wall clock used to decide what "today" is.
package system

import (
	"fmt"
	"time"
)

// fallbackZone approximates America/Sao_Paulo when tzdata is unavailable.
var fallbackZone = time.FixedZone("BRT", -3*60*60)

// Clock implements news.Clock in a fixed location.
type Clock struct {
	loc *time.Location
}

// New creates a Clock reporting times in loc. A nil loc means UTC.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the clock's location.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// LoadLocation resolves name, falling back to a fixed UTC-3 zone when the
// timezone database does not know it.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return fallbackZone, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallbackZone, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}
