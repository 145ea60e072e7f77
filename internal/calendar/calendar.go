// Package calendar answers business-hours questions against an entity's
// weekly calendar.
package calendar

import (
	"sort"
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// HoursResolver returns the weekly entries that apply to an entity.
type HoursResolver interface {
	ResolveBusinessHours(entityID string) []domain.BusinessHoursEntry
}

// Calendar performs calendar-aware time arithmetic. Instants are interpreted
// in the calendar's location.
type Calendar struct {
	hours HoursResolver
	loc   *time.Location
}

// New builds a calendar; a nil location means UTC.
func New(hours HoursResolver, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{hours: hours, loc: loc}
}

// Location returns the calendar's time zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

type window struct {
	start, end domain.TimeOfDay
}

// week holds the usable windows per weekday, sorted by start.
type week struct {
	days  [7][]window
	empty bool // no entries at all: always open
	open  bool // at least one usable window
}

func (c *Calendar) week(entityID string) week {
	var w week
	var entries []domain.BusinessHoursEntry
	if c.hours != nil {
		entries = c.hours.ResolveBusinessHours(entityID)
	}
	if len(entries) == 0 {
		w.empty = true
		return w
	}
	for _, e := range entries {
		if !e.Usable() {
			continue
		}
		w.days[e.DayOfWeek] = append(w.days[e.DayOfWeek], window{start: e.Start, end: e.EffectiveEnd()})
		w.open = true
	}
	for i := range w.days {
		w.days[i] = merge(w.days[i])
	}
	return w
}

// merge sorts windows and folds overlapping ones together.
func merge(windows []window) []window {
	if len(windows) < 2 {
		return windows
	}
	sort.Slice(windows, func(a, b int) bool { return windows[a].start < windows[b].start })
	out := windows[:1]
	for _, win := range windows[1:] {
		last := &out[len(out)-1]
		if win.start <= last.end {
			if win.end > last.end {
				last.end = win.end
			}
			continue
		}
		out = append(out, win)
	}
	return out
}

// IsWithinBusinessHours reports whether instant falls inside an open window.
// An entity without any calendar entries is always open.
func (c *Calendar) IsWithinBusinessHours(entityID string, instant time.Time) bool {
	w := c.week(entityID)
	if w.empty {
		return true
	}
	local := instant.In(c.loc)
	midnight := startOfDay(local)
	for _, win := range w.days[local.Weekday()] {
		if !local.Before(at(midnight, win.start)) && local.Before(at(midnight, win.end)) {
			return true
		}
	}
	return false
}

// AddBusinessHours advances start by the given number of open hours. Without
// calendar entries it is plain addition. The result always lies inside an open
// window or exactly at its close.
func (c *Calendar) AddBusinessHours(entityID string, start time.Time, hours float64) time.Time {
	remaining := hoursToDuration(hours)
	w := c.week(entityID)
	if w.empty || !w.open {
		return start.Add(remaining)
	}
	if remaining <= 0 {
		return start
	}

	cur := start.In(c.loc)
	closedDays := 0
	for {
		midnight := startOfDay(cur)
		advanced := false
		for _, win := range w.days[cur.Weekday()] {
			winEnd := at(midnight, win.end)
			if !cur.Before(winEnd) {
				continue
			}
			if winStart := at(midnight, win.start); cur.Before(winStart) {
				cur = winStart
			}
			available := winEnd.Sub(cur)
			if remaining <= available {
				return cur.Add(remaining)
			}
			remaining -= available
			cur = winEnd
			advanced = true
		}
		if advanced {
			closedDays = 0
		} else if closedDays++; closedDays > 7 {
			// Unreachable while w.open holds; guards against a bad calendar.
			return cur.Add(remaining)
		}
		cur = nextDay(midnight)
	}
}

// BusinessDuration returns the open time elapsed between from and to. It is
// negative when to precedes from.
func (c *Calendar) BusinessDuration(entityID string, from, to time.Time) time.Duration {
	if to.Before(from) {
		return -c.BusinessDuration(entityID, to, from)
	}
	w := c.week(entityID)
	if w.empty || !w.open {
		return to.Sub(from)
	}

	var total time.Duration
	cur := from.In(c.loc)
	end := to.In(c.loc)
	for cur.Before(end) {
		midnight := startOfDay(cur)
		for _, win := range w.days[cur.Weekday()] {
			ws, we := at(midnight, win.start), at(midnight, win.end)
			lo, hi := maxTime(ws, cur), minTime(we, end)
			if hi.After(lo) {
				total += hi.Sub(lo)
			}
		}
		cur = nextDay(midnight)
	}
	return total
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func nextDay(midnight time.Time) time.Time {
	y, m, d := midnight.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, midnight.Location())
}

// at resolves a wall-clock offset on the day of midnight, honouring DST.
func at(midnight time.Time, tod domain.TimeOfDay) time.Time {
	if tod >= domain.EndOfDay {
		return nextDay(midnight)
	}
	y, m, d := midnight.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, midnight.Location())
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
