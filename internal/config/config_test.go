package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soldgrupsas/soldgrup-sub001/internal/timecontrol"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CAPTURE_TIMEOUT", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "")
	cfg := Load()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 30*time.Second, cfg.CaptureTimeout)
	assert.False(t, cfg.Production())
	assert.False(t, cfg.CloudinaryConfigured())
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("CAPTURE_TIMEOUT", "45s")
	t.Setenv("RATE_LIMIT_PER_MIN", "10")
	t.Setenv("REFRESH_INTERVAL", "bogus")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "https://kiosk.example, ,https://admin.example")

	cfg := Load()
	assert.True(t, cfg.Production())
	assert.Equal(t, 45*time.Second, cfg.CaptureTimeout)
	assert.Equal(t, 10, cfg.RateLimitPerMin)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.True(t, cfg.CloudinaryConfigured())
	assert.Equal(t, []string{"https://kiosk.example", "https://admin.example"}, cfg.CORSOrigins)
}

func TestParseCalendar(t *testing.T) {
	data := []byte(`
timezone: UTC
schedule:
  Saturday: []
  sunday: ["09:00-13:00"]
holidays: ["2030-01-01"]
extend_holidays: true
`)
	cal, err := ParseCalendar(data, timecontrol.DefaultCalendar())
	require.NoError(t, err)

	assert.Equal(t, time.UTC, cal.Location)
	assert.Empty(t, cal.Schedule[time.Saturday])
	assert.Equal(t, []timecontrol.Interval{{Start: timecontrol.Clock(9, 0), End: timecontrol.Clock(13, 0)}}, cal.Schedule[time.Sunday])
	assert.Len(t, cal.Schedule[time.Monday], 2, "untouched days keep defaults")
	assert.True(t, cal.IsHoliday("2030-01-01"))
	assert.True(t, cal.IsHoliday("2025-12-25"))

	base := timecontrol.DefaultCalendar()
	assert.Len(t, base.Schedule[time.Saturday], 1, "base is not mutated")
}

func TestParseCalendar_ReplacesHolidays(t *testing.T) {
	cal, err := ParseCalendar([]byte(`holidays: ["2030-01-01"]`), timecontrol.DefaultCalendar())
	require.NoError(t, err)
	assert.False(t, cal.IsHoliday("2025-12-25"))
	assert.True(t, cal.IsHoliday("2030-01-01"))
}

func TestParseCalendar_Errors(t *testing.T) {
	bad := []string{
		`schedule: {funday: ["08:00-12:00"]}`,
		`schedule: {monday: ["12:00-08:00"]}`,
		`holidays: ["2025-02-30"]`,
		`timezone: Mars/Olympus`,
		`schedule: [`,
	}
	for _, b := range bad {
		_, err := ParseCalendar([]byte(b), timecontrol.DefaultCalendar())
		assert.Error(t, err, b)
	}
}

func TestLoadCalendar_File(t *testing.T) {
	cal, err := LoadCalendar("")
	require.NoError(t, err)
	assert.Len(t, cal.Schedule[time.Friday], 2)

	path := filepath.Join(t.TempDir(), "calendar.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schedule:\n  friday: [\"07:00-15:00\"]\n"), 0o600))
	cal, err = LoadCalendar(path)
	require.NoError(t, err)
	assert.Equal(t, 480, cal.Schedule[time.Friday][0].Minutes())

	_, err = LoadCalendar(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
