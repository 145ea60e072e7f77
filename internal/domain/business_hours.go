package domain

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock offset from midnight with minute precision.
type TimeOfDay int

// EndOfDay is the exclusive upper bound of a day.
const EndOfDay TimeOfDay = 24 * 60

// ParseTimeOfDay parses an "HH:MM" (or "HH:MM:SS") value.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return TimeOfDay(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", raw)
}

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// BusinessHoursEntry is one weekly open window. A nil EntityID belongs to the
// global default calendar.
type BusinessHoursEntry struct {
	ID        string
	EntityID  *string
	DayOfWeek time.Weekday
	Start     TimeOfDay
	End       TimeOfDay
	Active    bool
}

// Usable reports whether the entry describes an open window. Entries whose end
// precedes their start are treated as closed.
func (e BusinessHoursEntry) Usable() bool {
	return e.Active && e.DayOfWeek >= time.Sunday && e.DayOfWeek <= time.Saturday && e.End > e.Start
}

// EffectiveEnd maps the conventional 23:59 close to the end of the day.
func (e BusinessHoursEntry) EffectiveEnd() TimeOfDay {
	if e.End >= NewTimeOfDay(23, 59) {
		return EndOfDay
	}
	return e.End
}
