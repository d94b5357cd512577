package timecontrol

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture_NewEntry(t *testing.T) {
	when := time.Date(2025, 6, 9, 23, 10, 0, 0, bogota)
	rec := Capture("w1", Entry, "https://cdn/entry.jpg", when, nil, bogota)

	assert.Empty(t, rec.ID)
	assert.Equal(t, "w1", rec.WorkerID)
	assert.Equal(t, DateKey("2025-06-09"), rec.Date, "late captures stay on the local day")
	require.NotNil(t, rec.EntryTime)
	assert.True(t, when.Equal(*rec.EntryTime))
	assert.Equal(t, "https://cdn/entry.jpg", rec.EntryPhotoURL)
	assert.Nil(t, rec.ExitTime)
	assert.Empty(t, rec.ExitPhotoURL)
}

func TestCapture_ExitPreservesEntry(t *testing.T) {
	entry := at("2025-06-09", 8, 0)
	existing := Record{ID: "r1", WorkerID: "w1", Date: "2025-06-09", EntryTime: entry, EntryPhotoURL: "in.jpg"}

	rec := Capture("w1", Exit, "out.jpg", *at("2025-06-09", 17, 0), &existing, bogota)

	assert.Equal(t, "r1", rec.ID)
	require.NotNil(t, rec.EntryTime)
	assert.True(t, entry.Equal(*rec.EntryTime))
	assert.Equal(t, "in.jpg", rec.EntryPhotoURL)
	require.NotNil(t, rec.ExitTime)
	assert.Equal(t, 17, rec.ExitTime.Hour())
	assert.Equal(t, "out.jpg", rec.ExitPhotoURL)

	// existing is not aliased
	assert.Nil(t, existing.ExitTime)
	assert.NotSame(t, existing.EntryTime, rec.EntryTime)
}

func TestCapture_EntryRetryPreservesExit(t *testing.T) {
	existing := Record{WorkerID: "w1", Date: "2025-06-09", EntryTime: at("2025-06-09", 8, 0),
		ExitTime: at("2025-06-09", 17, 0), ExitPhotoURL: "out.jpg"}

	rec := Capture("w1", Entry, "in.jpg", *at("2025-06-09", 8, 5), &existing, bogota)

	assert.Equal(t, 5, rec.EntryTime.Minute())
	assert.Equal(t, "in.jpg", rec.EntryPhotoURL)
	assert.Equal(t, "out.jpg", rec.ExitPhotoURL)
	assert.Equal(t, 17, rec.ExitTime.Hour())
}

func TestNextCaptureIsValid(t *testing.T) {
	cases := []struct {
		state State
		kind  CaptureKind
		want  bool
	}{
		{StateNoRecord, Entry, true},
		{StateNoRecord, Exit, false},
		{StateEntryOnly, Entry, false},
		{StateEntryOnly, Exit, true},
		{StateComplete, Entry, false},
		{StateComplete, Exit, false},
	}
	for _, c := range cases {
		if got := NextCaptureIsValid(c.state, c.kind); got != c.want {
			t.Errorf("NextCaptureIsValid(%s, %s) = %v, want %v", c.state, c.kind, got, c.want)
		}
	}
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, StateNoRecord, StateOf(nil))
	assert.Equal(t, StateNoRecord, StateOf(&Record{}))
	assert.Equal(t, StateEntryOnly, StateOf(&Record{EntryTime: at("2025-06-09", 8, 0)}))
	assert.Equal(t, StateComplete, StateOf(&Record{EntryTime: at("2025-06-09", 8, 0), ExitTime: at("2025-06-09", 9, 0)}))
}

func TestCheckCapture(t *testing.T) {
	cal := testCalendar("2025-06-10")
	entered := &Record{EntryTime: at("2025-06-09", 8, 0), EntryPhotoURL: "in.jpg"}
	entryNoPhoto := &Record{EntryTime: at("2025-06-09", 8, 0)}
	done := &Record{EntryTime: at("2025-06-09", 8, 0), EntryPhotoURL: "in.jpg",
		ExitTime: at("2025-06-09", 17, 0), ExitPhotoURL: "out.jpg"}

	cases := []struct {
		name     string
		kind     CaptureKind
		day      DateKey
		existing *Record
		want     error
	}{
		{"first entry", Entry, "2025-06-09", nil, nil},
		{"entry on holiday", Entry, "2025-06-10", nil, ErrHolidayEntry},
		{"second entry", Entry, "2025-06-09", entered, ErrAlreadyEntered},
		{"entry retry after lost photo", Entry, "2025-06-09", entryNoPhoto, nil},
		{"exit without record", Exit, "2025-06-09", nil, ErrNoEntry},
		{"exit without entry time", Exit, "2025-06-09", &Record{}, ErrNoEntry},
		{"exit after entry", Exit, "2025-06-09", entered, nil},
		{"second exit", Exit, "2025-06-09", done, ErrAlreadyExited},
		{"exit on holiday after entry", Exit, "2025-06-10", entered, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := CheckCapture(cal, c.kind, c.day, c.existing)
			if c.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, c.want)
			assert.True(t, errors.Is(err, ErrInvalidPrecondition))
		})
	}
}

func TestLedgerState_FollowsCaptures(t *testing.T) {
	cal := testCalendar()
	l := NewLedger(cal, nil)
	assert.Equal(t, StateNoRecord, l.State("w1", "2025-06-09"))

	rec := Capture("w1", Entry, "in.jpg", *at("2025-06-09", 8, 0), nil, bogota)
	l = l.Put(rec)
	assert.Equal(t, StateEntryOnly, l.State("w1", "2025-06-09"))

	existing, _ := l.Lookup("w1", "2025-06-09")
	l = l.Put(Capture("w1", Exit, "out.jpg", *at("2025-06-09", 17, 0), &existing, bogota))
	assert.Equal(t, StateComplete, l.State("w1", "2025-06-09"))
}

func TestEvidencePath(t *testing.T) {
	when := time.UnixMilli(1749475800000)
	got := EvidencePath("w-1", "2025-06-09", Exit, when, `C:\fotos\my photo.jpg`)
	assert.Equal(t, "w-1/2025-06-09/exit_1749475800000_my_photo.jpg", got)

	got = EvidencePath("../w1", "2025-06-09", Entry, when, "")
	assert.Equal(t, ".._w1/2025-06-09/entry_1749475800000_photo.jpg", got)
}

func TestParseCaptureKind(t *testing.T) {
	k, err := ParseCaptureKind("EXIT")
	require.NoError(t, err)
	assert.Equal(t, Exit, k)
	_, err = ParseCaptureKind("lunch")
	assert.Error(t, err)
}
