package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soldgrupsas/soldgrup-sub001/internal/timecontrol"
)

// CalendarFile is the YAML shape of a calendar override:
//
//	timezone: America/Bogota
//	schedule:
//	  monday: ["08:00-12:00", "13:00-17:00"]
//	  saturday: ["08:00-12:00"]
//	holidays: ["2025-01-01", "2025-12-25"]
//	extend_holidays: true
//
// Weekdays present under schedule replace the default intervals of that day;
// an empty list turns the day off. Holidays replace the defaults unless
// extend_holidays is set.
type CalendarFile struct {
	Timezone       string              `yaml:"timezone"`
	Schedule       map[string][]string `yaml:"schedule"`
	Holidays       []string            `yaml:"holidays"`
	ExtendHolidays bool                `yaml:"extend_holidays"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// LoadCalendar returns the default calendar, overridden by the YAML file at path
// when path is not empty.
func LoadCalendar(path string) (*timecontrol.Calendar, error) {
	cal := timecontrol.DefaultCalendar()
	if path == "" {
		return cal, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar file: %w", err)
	}
	return ParseCalendar(data, cal)
}

// ParseCalendar applies a YAML override on top of base.
func ParseCalendar(data []byte, base *timecontrol.Calendar) (*timecontrol.Calendar, error) {
	var f CalendarFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse calendar file: %w", err)
	}

	loc := base.Location
	if f.Timezone != "" {
		l, err := time.LoadLocation(f.Timezone)
		if err != nil {
			return nil, fmt.Errorf("calendar timezone: %w", err)
		}
		loc = l
	}

	schedule := base.Schedule
	for name, slots := range f.Schedule {
		wd, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("calendar schedule: unknown weekday %q", name)
		}
		intervals := make([]timecontrol.Interval, 0, len(slots))
		for _, s := range slots {
			iv, err := timecontrol.ParseInterval(s)
			if err != nil {
				return nil, fmt.Errorf("calendar schedule %s: %w", name, err)
			}
			intervals = append(intervals, iv)
		}
		schedule[wd] = intervals
	}

	holidays := base.Holidays
	if f.Holidays != nil {
		keys := make([]timecontrol.DateKey, 0, len(f.Holidays))
		for _, h := range f.Holidays {
			d, err := timecontrol.ParseDateKey(h)
			if err != nil {
				return nil, fmt.Errorf("calendar holiday %q: %w", h, err)
			}
			keys = append(keys, d)
		}
		if f.ExtendHolidays {
			keys = append(keys, base.Holidays.Sorted()...)
		}
		holidays = timecontrol.NewHolidaySet(keys...)
	}

	return timecontrol.NewCalendar(schedule, holidays, loc), nil
}
