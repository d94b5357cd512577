package attendance_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soldgrupsas/soldgrup-sub001/internal/attendance"
	"github.com/soldgrupsas/soldgrup-sub001/internal/store"
	"github.com/soldgrupsas/soldgrup-sub001/internal/timecontrol"
)

// openTestRepo connects to TEST_DATABASE_URL and resets the tables.
func openTestRepo(t *testing.T) *attendance.Repository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := store.NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	_, err = db.Client.ExecContext(ctx, "TRUNCATE TABLE attendance_records, workers, refresh_tokens, devices CASCADE")
	require.NoError(t, err)
	return attendance.NewRepository(db.Client)
}

func TestRepositoryWorkers(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	cedula := "1032456789"
	hired := timecontrol.DateKey("2024-02-01")
	w, err := repo.CreateWorker(ctx, attendance.Worker{FirstName: "Ana", LastName: "Rojas", Cedula: &cedula, HireDate: &hired})
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID)
	require.NotNil(t, w.HireDate)
	assert.Equal(t, hired, *w.HireDate)

	_, err = repo.CreateWorker(ctx, attendance.Worker{FirstName: "Otra", LastName: "Persona", Cedula: &cedula})
	assert.ErrorIs(t, err, attendance.ErrDuplicateCedula)

	title := "Soldador"
	w.JobTitle = &title
	updated, err := repo.UpdateWorker(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, "Soldador", *updated.JobTitle)

	got, err := repo.GetWorker(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Rojas", got.FullName())

	all, err := repo.ListWorkers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.DeleteWorker(ctx, w.ID))
	assert.ErrorIs(t, repo.DeleteWorker(ctx, w.ID), attendance.ErrWorkerNotFound)
	_, err = repo.GetWorker(ctx, w.ID)
	assert.ErrorIs(t, err, attendance.ErrWorkerNotFound)
}

func TestRepositoryAttendanceRecords(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	w, err := repo.CreateWorker(ctx, attendance.Worker{FirstName: "Luis", LastName: "Diaz"})
	require.NoError(t, err)

	entry := time.Date(2025, 6, 9, 13, 0, 0, 0, time.UTC)
	first, err := repo.UpsertAttendanceRecord(ctx, timecontrol.Record{
		WorkerID: w.ID, Date: "2025-06-09", EntryTime: &entry, EntryPhotoURL: "https://cdn/entry.jpg",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, timecontrol.DateKey("2025-06-09"), first.Date)
	assert.Nil(t, first.ExitTime)
	assert.Empty(t, first.ExitPhotoURL)

	exit := entry.Add(9 * time.Hour)
	first.ExitTime = &exit
	first.ExitPhotoURL = "https://cdn/exit.jpg"
	second, err := repo.UpsertAttendanceRecord(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.ExitTime)
	assert.True(t, exit.Equal(*second.ExitTime))

	// A racing insert for the same day is stored as its own row.
	dup, err := repo.UpsertAttendanceRecord(ctx, timecontrol.Record{WorkerID: w.ID, Date: "2025-06-09", EntryTime: &entry})
	require.NoError(t, err)
	assert.Greater(t, dup.ID, first.ID)

	rows, err := repo.ListAttendanceRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = repo.UpsertAttendanceRecord(ctx, timecontrol.Record{ID: "missing", WorkerID: w.ID, Date: "2025-06-09"})
	assert.ErrorIs(t, err, attendance.ErrRecordNotFound)

	_, err = repo.UpsertAttendanceRecord(ctx, timecontrol.Record{WorkerID: "ghost", Date: "2025-06-09"})
	assert.ErrorIs(t, err, attendance.ErrWorkerNotFound)
}

func TestRepositoryDevices(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertDevice(ctx, "kiosk-1"))
	require.NoError(t, repo.UpsertDevice(ctx, "kiosk-1"))
	require.NoError(t, repo.SaveRefreshToken(ctx, "kiosk-1", "token-a", time.Now().Add(time.Hour)))
}

func TestRepositoryRefreshTokenRotation(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertDevice(ctx, "kiosk-2"))
	require.NoError(t, repo.SaveRefreshToken(ctx, "kiosk-2", "live", time.Now().Add(time.Hour)))
	require.NoError(t, repo.SaveRefreshToken(ctx, "kiosk-2", "stale", time.Now().Add(-time.Hour)))

	device, err := repo.ConsumeRefreshToken(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "kiosk-2", device)

	_, err = repo.ConsumeRefreshToken(ctx, "live")
	assert.ErrorIs(t, err, attendance.ErrRefreshTokenInvalid)
	_, err = repo.ConsumeRefreshToken(ctx, "stale")
	assert.ErrorIs(t, err, attendance.ErrRefreshTokenInvalid)
}
