package timeutil

import (
	"sync/atomic"
	"time"
)

var businessLocation atomic.Pointer[time.Location]

func init() {
	businessLocation.Store(time.UTC)
}

// SetLocation sets the business timezone by IANA name. An empty name keeps UTC.
func SetLocation(name string) error {
	if name == "" {
		businessLocation.Store(time.UTC)
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	businessLocation.Store(loc)
	return nil
}

// Location returns the business timezone.
func Location() *time.Location {
	return businessLocation.Load()
}

// Now returns the current time in the business timezone.
func Now() time.Time {
	return time.Now().In(Location())
}

// In converts t to the business timezone.
func In(t time.Time) time.Time {
	return t.In(Location())
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// SameMonth reports whether a and b fall in the same calendar month in loc.
func SameMonth(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.Month() == b.Month()
}
