package timecontrol

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// CaptureKind is which half of the day a capture records.
type CaptureKind int

const (
	Entry CaptureKind = iota
	Exit
)

func (k CaptureKind) String() string {
	if k == Exit {
		return "exit"
	}
	return "entry"
}

// ParseCaptureKind accepts "entry" or "exit".
func ParseCaptureKind(s string) (CaptureKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "entry":
		return Entry, nil
	case "exit":
		return Exit, nil
	}
	return 0, fmt.Errorf("unknown capture kind %q", s)
}

// State is the capture progress of one worker on one day.
type State int

const (
	StateNoRecord State = iota
	StateEntryOnly
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateEntryOnly:
		return "entry_only"
	case StateComplete:
		return "complete"
	}
	return "no_record"
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StateOf derives the state from the times a record holds.
func StateOf(r *Record) State {
	switch {
	case r == nil || r.EntryTime == nil:
		return StateNoRecord
	case r.ExitTime == nil:
		return StateEntryOnly
	}
	return StateComplete
}

// NextCaptureIsValid is the transition table:
// NoRecord accepts Entry, EntryOnly accepts Exit, Complete accepts nothing.
func NextCaptureIsValid(s State, kind CaptureKind) bool {
	switch s {
	case StateNoRecord:
		return kind == Entry
	case StateEntryOnly:
		return kind == Exit
	}
	return false
}

// CheckCapture applies the orchestration rules before any I/O. A side whose time
// was stored without its photo counts as not captured, so it can be retried.
func CheckCapture(cal *Calendar, kind CaptureKind, day DateKey, existing *Record) error {
	switch kind {
	case Entry:
		if cal.IsHoliday(day) {
			return ErrHolidayEntry
		}
		if existing != nil && existing.HasEntry() {
			return ErrAlreadyEntered
		}
	case Exit:
		if existing == nil || existing.EntryTime == nil {
			return ErrNoEntry
		}
		if existing.HasExit() {
			return ErrAlreadyExited
		}
	default:
		return fmt.Errorf("%w: unknown capture kind %d", ErrInvalidPrecondition, kind)
	}
	return nil
}

// Capture merges one capture into existing. Only kind's time and photo change;
// the other side is carried over untouched. Without existing a new record dated
// at's local day is built.
func Capture(workerID string, kind CaptureKind, photoURL string, at time.Time, existing *Record, loc *time.Location) Record {
	var rec Record
	if existing != nil {
		rec = existing.Clone()
	} else {
		rec = Record{WorkerID: workerID, Date: NormalizeDate(at, loc)}
	}
	when := at
	switch kind {
	case Entry:
		rec.EntryTime = &when
		rec.EntryPhotoURL = photoURL
	case Exit:
		rec.ExitTime = &when
		rec.ExitPhotoURL = photoURL
	}
	return rec
}

// EvidencePath builds the storage path of an evidence photo:
// workerID/date/kind_timestamp_filename.
func EvidencePath(workerID string, day DateKey, kind CaptureKind, at time.Time, filename string) string {
	name := sanitize(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		name = "photo.jpg"
	}
	return path.Join(sanitize(workerID), string(day), fmt.Sprintf("%s_%d_%s", kind, at.UnixMilli(), name))
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
