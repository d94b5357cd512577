package timecontrol

import "time"

// Record is one worker's attendance for one calendar day.
// ID is empty until the store has assigned one.
type Record struct {
	ID            string     `json:"id,omitempty"`
	WorkerID      string     `json:"worker_id"`
	Date          DateKey    `json:"date"`
	EntryTime     *time.Time `json:"entry_time,omitempty"`
	ExitTime      *time.Time `json:"exit_time,omitempty"`
	EntryPhotoURL string     `json:"entry_photo_url,omitempty"`
	ExitPhotoURL  string     `json:"exit_photo_url,omitempty"`
}

// Key identifies a record in the reconciled view.
type Key struct {
	WorkerID string
	Date     DateKey
}

func (k Key) String() string { return k.WorkerID + "@" + string(k.Date) }

// HasEntry reports whether both entry time and photo were captured.
func (r Record) HasEntry() bool { return r.EntryTime != nil && r.EntryPhotoURL != "" }

// HasExit reports whether both exit time and photo were captured.
func (r Record) HasExit() bool { return r.ExitTime != nil && r.ExitPhotoURL != "" }

// Clone returns a copy that shares no pointers with r.
func (r Record) Clone() Record {
	out := r
	if r.EntryTime != nil {
		t := *r.EntryTime
		out.EntryTime = &t
	}
	if r.ExitTime != nil {
		t := *r.ExitTime
		out.ExitTime = &t
	}
	return out
}
