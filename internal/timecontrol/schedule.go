package timecontrol

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimeOfDay is a wall clock time expressed in minutes since midnight.
type TimeOfDay int

// Clock builds a TimeOfDay from hours and minutes.
func Clock(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return Clock(t.Hour(), t.Minute()), nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()) }

// On anchors t to the calendar day of day in loc.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	if loc != nil {
		day = day.In(loc)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location())
}

// Interval is one contiguous block of normal working time within a day.
type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// ParseInterval parses "HH:MM-HH:MM".
func ParseInterval(s string) (Interval, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return Interval{}, fmt.Errorf("invalid interval %q: want HH:MM-HH:MM", s)
	}
	from, err := ParseTimeOfDay(start)
	if err != nil {
		return Interval{}, err
	}
	to, err := ParseTimeOfDay(end)
	if err != nil {
		return Interval{}, err
	}
	if to <= from {
		return Interval{}, fmt.Errorf("invalid interval %q: end must be after start", s)
	}
	return Interval{Start: from, End: to}, nil
}

func (iv Interval) String() string { return iv.Start.String() + "-" + iv.End.String() }

// Minutes returns the length of the interval.
func (iv Interval) Minutes() int {
	if iv.End <= iv.Start {
		return 0
	}
	return int(iv.End - iv.Start)
}

// WeeklySchedule holds the normal intervals of each weekday, indexed by time.Weekday.
// Days without work have an empty slice.
type WeeklySchedule [7][]Interval

// For returns the intervals configured for wd.
func (ws WeeklySchedule) For(wd time.Weekday) []Interval {
	if wd < time.Sunday || wd > time.Saturday {
		return nil
	}
	return ws[wd]
}

// HolidaySet is the set of days on which no normal intervals apply.
type HolidaySet map[DateKey]struct{}

// NewHolidaySet builds a set from keys. Invalid keys are skipped.
func NewHolidaySet(days ...DateKey) HolidaySet {
	hs := make(HolidaySet, len(days))
	for _, d := range days {
		if _, err := ParseDateKey(string(d)); err != nil {
			continue
		}
		hs[d] = struct{}{}
	}
	return hs
}

// Contains reports whether d is a holiday.
func (hs HolidaySet) Contains(d DateKey) bool {
	_, ok := hs[d]
	return ok
}

// Sorted returns the holidays in calendar order.
func (hs HolidaySet) Sorted() []DateKey {
	out := make([]DateKey, 0, len(hs))
	for d := range hs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Calendar binds a weekly schedule and holiday list to the zone local days are read in.
type Calendar struct {
	Schedule WeeklySchedule
	Holidays HolidaySet
	Location *time.Location
}

// NewCalendar returns a calendar; a nil loc means time.Local.
func NewCalendar(schedule WeeklySchedule, holidays HolidaySet, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	if holidays == nil {
		holidays = HolidaySet{}
	}
	return &Calendar{Schedule: schedule, Holidays: holidays, Location: loc}
}

// DefaultZone is the zone the workshop operates in.
const DefaultZone = "America/Bogota"

// DefaultSchedule is Monday to Friday 08:00-12:00 and 13:00-17:00, Saturday morning.
func DefaultSchedule() WeeklySchedule {
	weekday := []Interval{
		{Start: Clock(8, 0), End: Clock(12, 0)},
		{Start: Clock(13, 0), End: Clock(17, 0)},
	}
	var ws WeeklySchedule
	for wd := time.Monday; wd <= time.Friday; wd++ {
		ws[wd] = append([]Interval(nil), weekday...)
	}
	ws[time.Saturday] = []Interval{{Start: Clock(8, 0), End: Clock(12, 0)}}
	ws[time.Sunday] = []Interval{}
	return ws
}

// DefaultHolidays lists Colombian public holidays for 2025 and 2026.
func DefaultHolidays() HolidaySet {
	return NewHolidaySet(
		"2025-01-01", "2025-01-06", "2025-03-24", "2025-04-17", "2025-04-18",
		"2025-05-01", "2025-06-02", "2025-06-23", "2025-06-30", "2025-07-20",
		"2025-08-07", "2025-08-18", "2025-10-13", "2025-11-03", "2025-11-17",
		"2025-12-08", "2025-12-25",
		"2026-01-01", "2026-01-12", "2026-03-23", "2026-04-02", "2026-04-03",
		"2026-05-01", "2026-05-18", "2026-06-08", "2026-06-15", "2026-06-29",
		"2026-07-20", "2026-08-07", "2026-08-17", "2026-10-12", "2026-11-02",
		"2026-11-16", "2026-12-08", "2026-12-25",
	)
}

// DefaultCalendar combines the default schedule, holidays and zone.
// Without tzdata the zone falls back to time.Local.
func DefaultCalendar() *Calendar {
	loc, err := time.LoadLocation(DefaultZone)
	if err != nil {
		loc = time.Local
	}
	return NewCalendar(DefaultSchedule(), DefaultHolidays(), loc)
}

// IsHoliday reports whether d is in the holiday set.
func (c *Calendar) IsHoliday(d DateKey) bool { return c.Holidays.Contains(d) }

// ScheduleFor returns the normal intervals of day d: none on holidays, otherwise the
// weekday's configured intervals.
func (c *Calendar) ScheduleFor(d DateKey) []Interval {
	if c.IsHoliday(d) {
		return nil
	}
	wd, ok := d.Weekday()
	if !ok {
		return nil
	}
	return c.Schedule.For(wd)
}

// NormalizeDate maps t to its local calendar day.
func (c *Calendar) NormalizeDate(t time.Time) DateKey { return NormalizeDate(t, c.Location) }

// NormalizeDateString maps a date or timestamp string to its local calendar day.
func (c *Calendar) NormalizeDateString(s string) DateKey {
	return NormalizeDateString(s, c.Location)
}

// Today is the local calendar day of now.
func (c *Calendar) Today(now time.Time) DateKey { return c.NormalizeDate(now) }

// WeekRange returns Monday and Sunday of the ISO week containing now.
func (c *Calendar) WeekRange(now time.Time) (DateKey, DateKey) {
	today := c.Today(now)
	wd, _ := today.Weekday()
	start := today.AddDays(-((int(wd) + 6) % 7))
	return start, start.AddDays(6)
}

// WeekDays lists Monday through Sunday of the week containing now.
func (c *Calendar) WeekDays(now time.Time) []DateKey {
	start, _ := c.WeekRange(now)
	days := make([]DateKey, 7)
	for i := range days {
		days[i] = start.AddDays(i)
	}
	return days
}

// MonthRange returns the first and last day of the calendar month containing now.
func (c *Calendar) MonthRange(now time.Time) (DateKey, DateKey) {
	local := now.In(c.Location)
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return DateKey(first.Format(DateLayout)), DateKey(last.Format(DateLayout))
}
