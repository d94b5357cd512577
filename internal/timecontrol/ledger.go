package timecontrol

import (
	"io"
	"log/slog"
	"sort"
	"time"
)

// Ledger is an immutable reconciled view of attendance records. Every mutation
// returns a new Ledger; the receiver is never modified.
type Ledger struct {
	cal       *Calendar
	log       *slog.Logger
	records   map[Key]Record
	ambiguous []Key
}

// NewLedger returns an empty ledger over cal. A nil logger discards output.
func NewLedger(cal *Calendar, logger *slog.Logger) *Ledger {
	if cal == nil {
		cal = DefaultCalendar()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ledger{cal: cal, log: logger, records: map[Key]Record{}}
}

// Calendar returns the calendar the ledger computes against.
func (l *Ledger) Calendar() *Calendar { return l.cal }

// Len is the number of reconciled records.
func (l *Ledger) Len() int { return len(l.records) }

// Reconcile replaces the whole view with the reconciliation of raw.
// Keys hit by more than two raw rows are logged and reported by Ambiguous.
func (l *Ledger) Reconcile(raw []Record) *Ledger {
	records, seen := fold(raw, l.cal.Location)
	var ambiguous []Key
	for k, n := range seen {
		if n > 2 {
			ambiguous = append(ambiguous, k)
			l.log.Warn("attendance rows collide on one worker day",
				"worker_id", k.WorkerID, "date", k.Date, "rows", n, "kept_id", records[k].ID)
		}
	}
	sortKeys(ambiguous)
	return &Ledger{cal: l.cal, log: l.log, records: records, ambiguous: ambiguous}
}

// Ambiguous lists the keys the last Reconcile resolved from more than two rows.
func (l *Ledger) Ambiguous() []Key { return append([]Key(nil), l.ambiguous...) }

// Put stores rec under its key, replacing whatever was there.
func (l *Ledger) Put(rec Record) *Ledger {
	day := l.cal.NormalizeDateString(string(rec.Date))
	if day.IsZero() || rec.WorkerID == "" {
		return l
	}
	rec = rec.Clone()
	rec.Date = day
	next := l.copy()
	next.records[Key{WorkerID: rec.WorkerID, Date: day}] = rec
	return next
}

// Apply merges rec using the reconcile tie-break against the record already held.
func (l *Ledger) Apply(rec Record) *Ledger {
	day := l.cal.NormalizeDateString(string(rec.Date))
	if day.IsZero() || rec.WorkerID == "" {
		return l
	}
	if cur, ok := l.records[Key{WorkerID: rec.WorkerID, Date: day}]; ok && preferID(cur.ID, rec.ID) {
		return l
	}
	return l.Put(rec)
}

// WithoutWorker drops every record of workerID.
func (l *Ledger) WithoutWorker(workerID string) *Ledger {
	next := l.copy()
	for k := range next.records {
		if k.WorkerID == workerID {
			delete(next.records, k)
		}
	}
	return next
}

func (l *Ledger) copy() *Ledger {
	records := make(map[Key]Record, len(l.records)+1)
	for k, v := range l.records {
		records[k] = v
	}
	return &Ledger{cal: l.cal, log: l.log, records: records, ambiguous: l.ambiguous}
}

// Lookup returns the record of workerID on day.
func (l *Ledger) Lookup(workerID string, day DateKey) (Record, bool) {
	r, ok := l.records[Key{WorkerID: workerID, Date: day}]
	if !ok {
		return Record{}, false
	}
	return r.Clone(), true
}

// State returns the capture state of workerID on day.
func (l *Ledger) State(workerID string, day DateKey) State {
	r, ok := l.Lookup(workerID, day)
	if !ok {
		return StateNoRecord
	}
	return StateOf(&r)
}

// Map returns a copy of the reconciled mapping.
func (l *Ledger) Map() map[Key]Record {
	out := make(map[Key]Record, len(l.records))
	for k, v := range l.records {
		out[k] = v.Clone()
	}
	return out
}

// Records returns all records ordered by date, then worker.
func (l *Ledger) Records() []Record {
	keys := make([]Key, 0, len(l.records))
	for k := range l.records {
		keys = append(keys, k)
	}
	sortKeys(keys)
	out := make([]Record, len(keys))
	for i, k := range keys {
		out[i] = l.records[k].Clone()
	}
	return out
}

// Between returns the records dated from..to inclusive, in Records order.
func (l *Ledger) Between(from, to DateKey) []Record {
	var out []Record
	for _, r := range l.Records() {
		if r.Date.Within(from, to) {
			out = append(out, r)
		}
	}
	return out
}

// TotalsBetween folds ComputeHours over the records dated from..to, per worker.
func (l *Ledger) TotalsBetween(from, to DateKey) map[string]Totals {
	out := map[string]Totals{}
	for k, r := range l.records {
		if !k.Date.Within(from, to) {
			continue
		}
		t := out[k.WorkerID]
		t.Add(l.cal.ComputeHours(r))
		out[k.WorkerID] = t
	}
	return out
}

// WeeklyTotals covers Monday to Sunday of the week containing now.
func (l *Ledger) WeeklyTotals(now time.Time) map[string]Totals {
	from, to := l.cal.WeekRange(now)
	return l.TotalsBetween(from, to)
}

// MonthlyTotals covers the calendar month containing now.
func (l *Ledger) MonthlyTotals(now time.Time) map[string]Totals {
	from, to := l.cal.MonthRange(now)
	return l.TotalsBetween(from, to)
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].WorkerID < keys[j].WorkerID
	})
}
