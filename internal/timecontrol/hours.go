package timecontrol

import "time"

// Tally is the worked time of one record, in whole minutes.
type Tally struct {
	Normal int `json:"normal_minutes"`
	Extra  int `json:"extra_minutes"`
	Total  int `json:"total_minutes"`
}

// Totals accumulates tallies over a period.
type Totals struct {
	Normal int `json:"normal_minutes"`
	Extra  int `json:"extra_minutes"`
	Total  int `json:"total_minutes"`
	Days   int `json:"days"`
}

// Add folds t into the totals. Open shifts still count as a day.
func (t *Totals) Add(tally Tally) {
	t.Normal += tally.Normal
	t.Extra += tally.Extra
	t.Total += tally.Total
	t.Days++
}

// ComputeHours splits the worked span of r into normal and extra minutes.
//
// Open shifts and spans where exit precedes entry tally zero. Intervals are the
// schedule of the record's day anchored to the entry's local date, so an overnight
// shift is measured against the entry day only and everything past that day's
// intervals is extra.
func (c *Calendar) ComputeHours(r Record) Tally {
	if r.EntryTime == nil || r.ExitTime == nil {
		return Tally{}
	}
	entry, exit := r.EntryTime.In(c.Location), r.ExitTime.In(c.Location)
	total := minutes(exit.Sub(entry))
	if total <= 0 {
		return Tally{}
	}

	day := r.Date
	if _, err := ParseDateKey(string(day)); err != nil {
		day = c.NormalizeDate(entry)
	}

	normal := 0
	for _, iv := range c.ScheduleFor(day) {
		start, end := iv.Start.On(entry, c.Location), iv.End.On(entry, c.Location)
		normal += minutes(overlap(entry, exit, start, end))
	}
	// overlapping intervals in a hand-written schedule must not push normal past total
	if normal > total {
		normal = total
	}
	return Tally{Normal: normal, Extra: total - normal, Total: total}
}

func overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

func minutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
