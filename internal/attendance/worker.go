package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/soldgrupsas/soldgrup-sub001/internal/timecontrol"
)

// Worker is a person who can be clocked in and out.
type Worker struct {
	ID        string               `json:"id"`
	FirstName string               `json:"first_name"`
	LastName  string               `json:"last_name"`
	Cedula    *string              `json:"cedula,omitempty"`
	BirthDate *timecontrol.DateKey `json:"birth_date,omitempty"`
	HireDate  *timecontrol.DateKey `json:"hire_date,omitempty"`
	EPS       *string              `json:"eps,omitempty"` // health insurer
	ARL       *string              `json:"arl,omitempty"` // occupational risk insurer
	JobTitle  *string              `json:"job_title,omitempty"`
	Salary    *int64               `json:"salary,omitempty"`
	PhotoURL  *string              `json:"photo_url,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// FullName joins first and last name.
func (w Worker) FullName() string {
	return strings.TrimSpace(w.FirstName + " " + w.LastName)
}

// normalize trims text fields and turns blank optionals into nil.
func (w *Worker) normalize() {
	w.FirstName = strings.TrimSpace(w.FirstName)
	w.LastName = strings.TrimSpace(w.LastName)
	for _, p := range []**string{&w.Cedula, &w.EPS, &w.ARL, &w.JobTitle, &w.PhotoURL} {
		if *p == nil {
			continue
		}
		v := strings.TrimSpace(**p)
		if v == "" {
			*p = nil
			continue
		}
		*p = &v
	}
	for _, p := range []**timecontrol.DateKey{&w.BirthDate, &w.HireDate} {
		if *p != nil && (*p).IsZero() {
			*p = nil
		}
	}
}

// Validate checks the fields an administrator must get right.
func (w Worker) Validate() error {
	if w.FirstName == "" || w.LastName == "" {
		return fmt.Errorf("%w: first and last name are required", ErrInvalidWorker)
	}
	if w.Cedula != nil {
		c := *w.Cedula
		if len(c) < 5 || len(c) > 15 || strings.Trim(c, "0123456789") != "" {
			return fmt.Errorf("%w: cedula must be 5 to 15 digits", ErrInvalidWorker)
		}
	}
	for name, d := range map[string]*timecontrol.DateKey{"birth_date": w.BirthDate, "hire_date": w.HireDate} {
		if d == nil {
			continue
		}
		if _, err := timecontrol.ParseDateKey(string(*d)); err != nil {
			return fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrInvalidWorker, name)
		}
	}
	if w.Salary != nil && *w.Salary < 0 {
		return fmt.Errorf("%w: salary cannot be negative", ErrInvalidWorker)
	}
	return nil
}
