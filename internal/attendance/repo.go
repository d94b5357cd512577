package attendance

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/soldgrupsas/soldgrup-sub001/internal/timecontrol"
)

// Repository persists workers and attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// newID returns a time-ordered id so that a greater id is a newer row.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// -------- Workers --------

const workerColumns = `id, first_name, last_name, cedula,
	to_char(birth_date, 'YYYY-MM-DD'), to_char(hire_date, 'YYYY-MM-DD'),
	eps, arl, job_title, salary, photo_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorker(row rowScanner) (Worker, error) {
	var w Worker
	var birth, hire sql.NullString
	if err := row.Scan(&w.ID, &w.FirstName, &w.LastName, &w.Cedula, &birth, &hire,
		&w.EPS, &w.ARL, &w.JobTitle, &w.Salary, &w.PhotoURL, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Worker{}, err
	}
	w.BirthDate = dateKeyPtr(birth)
	w.HireDate = dateKeyPtr(hire)
	return w, nil
}

func dateKeyPtr(s sql.NullString) *timecontrol.DateKey {
	if !s.Valid || s.String == "" {
		return nil
	}
	d := timecontrol.DateKey(s.String)
	return &d
}

func dateArg(d *timecontrol.DateKey) any {
	if d == nil {
		return nil
	}
	return string(*d)
}

// ListWorkers returns all workers ordered by name.
func (r *Repository) ListWorkers(ctx context.Context) ([]Worker, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+workerColumns+` FROM workers ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list workers")
	}
	defer rows.Close()

	var workers []Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan worker")
		}
		workers = append(workers, w)
	}
	return workers, errors.Wrap(rows.Err(), "list workers")
}

// GetWorker returns a single worker by id.
func (r *Repository) GetWorker(ctx context.Context, id string) (Worker, error) {
	w, err := scanWorker(r.db.QueryRowContext(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Worker{}, ErrWorkerNotFound
		}
		return Worker{}, errors.Wrap(err, "get worker")
	}
	return w, nil
}

// CreateWorker inserts w with a fresh id and returns the stored row.
func (r *Repository) CreateWorker(ctx context.Context, w Worker) (Worker, error) {
	if w.ID == "" {
		w.ID = newID()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO workers (id, first_name, last_name, cedula, birth_date, hire_date, eps, arl, job_title, salary, photo_url)
		VALUES ($1, $2, $3, $4, $5::date, $6::date, $7, $8, $9, $10, $11)
		RETURNING `+workerColumns,
		w.ID, w.FirstName, w.LastName, w.Cedula, dateArg(w.BirthDate), dateArg(w.HireDate),
		w.EPS, w.ARL, w.JobTitle, w.Salary, w.PhotoURL)
	stored, err := scanWorker(row)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return Worker{}, ErrDuplicateCedula
		}
		return Worker{}, errors.Wrap(err, "create worker")
	}
	return stored, nil
}

// UpdateWorker replaces every editable field of the worker with w's values.
func (r *Repository) UpdateWorker(ctx context.Context, w Worker) (Worker, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE workers SET
			first_name = $2, last_name = $3, cedula = $4, birth_date = $5::date, hire_date = $6::date,
			eps = $7, arl = $8, job_title = $9, salary = $10, photo_url = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING `+workerColumns,
		w.ID, w.FirstName, w.LastName, w.Cedula, dateArg(w.BirthDate), dateArg(w.HireDate),
		w.EPS, w.ARL, w.JobTitle, w.Salary, w.PhotoURL)
	stored, err := scanWorker(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Worker{}, ErrWorkerNotFound
	case pgCode(err) == pgUniqueViolation:
		return Worker{}, ErrDuplicateCedula
	case err != nil:
		return Worker{}, errors.Wrap(err, "update worker")
	}
	return stored, nil
}

// DeleteWorker removes the worker; its attendance rows go with it.
func (r *Repository) DeleteWorker(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM workers WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete worker")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrWorkerNotFound
	}
	return nil
}

// -------- Attendance records --------

const recordColumns = `id, worker_id, to_char(date, 'YYYY-MM-DD'), entry_time, exit_time,
	COALESCE(entry_photo_url, ''), COALESCE(exit_photo_url, '')`

func scanRecord(row rowScanner) (timecontrol.Record, error) {
	var rec timecontrol.Record
	var day string
	if err := row.Scan(&rec.ID, &rec.WorkerID, &day, &rec.EntryTime, &rec.ExitTime,
		&rec.EntryPhotoURL, &rec.ExitPhotoURL); err != nil {
		return timecontrol.Record{}, err
	}
	rec.Date = timecontrol.DateKey(day)
	return rec, nil
}

// ListAttendanceRecords returns every row, duplicates included, oldest first.
func (r *Repository) ListAttendanceRecords(ctx context.Context) ([]timecontrol.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM attendance_records ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list attendance records")
	}
	defer rows.Close()

	var records []timecontrol.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan attendance record")
		}
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "list attendance records")
}

// UpsertAttendanceRecord inserts rec when it has no id and updates it by id
// otherwise. The stored row is returned.
func (r *Repository) UpsertAttendanceRecord(ctx context.Context, rec timecontrol.Record) (timecontrol.Record, error) {
	var row *sql.Row
	if rec.ID == "" {
		row = r.db.QueryRowContext(ctx, `
			INSERT INTO attendance_records (id, worker_id, date, entry_time, exit_time, entry_photo_url, exit_photo_url)
			VALUES ($1, $2, $3::date, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
			RETURNING `+recordColumns,
			newID(), rec.WorkerID, string(rec.Date), utc(rec.EntryTime), utc(rec.ExitTime), rec.EntryPhotoURL, rec.ExitPhotoURL)
	} else {
		row = r.db.QueryRowContext(ctx, `
			UPDATE attendance_records SET
				date = $2::date, entry_time = $3, exit_time = $4,
				entry_photo_url = NULLIF($5, ''), exit_photo_url = NULLIF($6, ''), updated_at = NOW()
			WHERE id = $1
			RETURNING `+recordColumns,
			rec.ID, string(rec.Date), utc(rec.EntryTime), utc(rec.ExitTime), rec.EntryPhotoURL, rec.ExitPhotoURL)
	}

	stored, err := scanRecord(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return timecontrol.Record{}, ErrRecordNotFound
	case pgCode(err) == pgForeignKeyViolation:
		return timecontrol.Record{}, ErrWorkerNotFound
	case err != nil:
		return timecontrol.Record{}, errors.Wrap(err, "upsert attendance record")
	}
	return stored, nil
}

func utc(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// -------- Devices --------

// UpsertDevice ensures a kiosk device record exists.
func (r *Repository) UpsertDevice(ctx context.Context, deviceID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id)
		VALUES ($1)
		ON CONFLICT (device_id) DO NOTHING
	`, deviceID)
	return errors.Wrap(err, "upsert device")
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (device_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, deviceID, token, expiresAt)
	return errors.Wrap(err, "save refresh token")
}

// ConsumeRefreshToken revokes a live refresh token and returns its device.
// Each refresh token can be exchanged once.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, token string) (string, error) {
	var deviceID string
	err := r.db.QueryRowContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE token = $1 AND NOT revoked AND expires_at > NOW()
		RETURNING device_id
	`, token).Scan(&deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRefreshTokenInvalid
	}
	return deviceID, errors.Wrap(err, "consume refresh token")
}
