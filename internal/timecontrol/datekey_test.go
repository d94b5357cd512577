package timecontrol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bogota = time.FixedZone("COT", -5*60*60)

func TestNormalizeDate_UsesLocalDay(t *testing.T) {
	// 23:30 in Bogota is already the next day in UTC
	late := time.Date(2025, 6, 2, 23, 30, 0, 0, bogota)
	assert.Equal(t, DateKey("2025-06-02"), NormalizeDate(late, bogota))
	assert.Equal(t, DateKey("2025-06-03"), NormalizeDate(late, time.UTC))
	assert.Equal(t, DateKey(""), NormalizeDate(time.Time{}, bogota))
}

func TestNormalizeDateString(t *testing.T) {
	cases := []struct {
		in   string
		want DateKey
	}{
		{"2025-06-02", "2025-06-02"},
		{" 2025-06-02 ", "2025-06-02"},
		{"2025-06-03T03:30:00Z", "2025-06-02"},
		{"2025-06-02T23:30:00-05:00", "2025-06-02"},
		{"2025-06-02T10:00:00", "2025-06-02"},
		{"2025-06-02 04:00:00+00", "2025-06-01"},
		{"not a date", ""},
		{"", ""},
	}
	for _, c := range cases {
		got := NormalizeDateString(c.in, bogota)
		if got != c.want {
			t.Errorf("NormalizeDateString(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeDateString_FastPathDoesNotValidate(t *testing.T) {
	// shaped like a key, returned as is
	assert.Equal(t, DateKey("2025-02-30"), NormalizeDateString("2025-02-30", bogota))
	_, err := ParseDateKey("2025-02-30")
	assert.Error(t, err)
}

func TestDateKey_Arithmetic(t *testing.T) {
	d := DateKey("2025-06-01")
	wd, ok := d.Weekday()
	require.True(t, ok)
	assert.Equal(t, time.Sunday, wd)
	assert.Equal(t, DateKey("2025-05-31"), d.AddDays(-1))
	assert.Equal(t, DateKey("2025-07-01"), d.AddDays(30))
	assert.True(t, d.Within("2025-06-01", "2025-06-07"))
	assert.False(t, d.Within("2025-06-02", "2025-06-08"))
	assert.False(t, DateKey("").Within("", "9999-12-31"))

	_, ok = DateKey("garbage").Weekday()
	assert.False(t, ok)
	assert.Equal(t, DateKey(""), DateKey("garbage").AddDays(1))
}
