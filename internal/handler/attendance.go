package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soldgrupsas/soldgrup-sub001/internal/attendance"
	"github.com/soldgrupsas/soldgrup-sub001/internal/report"
	"github.com/soldgrupsas/soldgrup-sub001/internal/timecontrol"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// dateParam reads an optional date; empty input is the zero key.
// Impossible calendar dates such as 2025-02-30 are rejected.
func (h *Handler) dateParam(raw string) (timecontrol.DateKey, error) {
	if raw == "" {
		return "", nil
	}
	day, err := timecontrol.ParseDateKey(string(h.svc.Calendar().NormalizeDateString(raw)))
	if err != nil {
		return "", fmt.Errorf("%w: unrecognised date %q", errBadRequest, raw)
	}
	return day, nil
}

// anchor is the instant ?date= points at, or now.
func (h *Handler) anchor(c *gin.Context) (time.Time, error) {
	day, err := h.dateParam(c.Query("date"))
	if err != nil {
		return time.Time{}, err
	}
	if day.IsZero() {
		return h.svc.Now(), nil
	}
	t, ok := day.Time(h.svc.Calendar().Location)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unrecognised date %q", errBadRequest, day)
	}
	return t, nil
}

// ListAttendance returns reconciled records with their state and tally.
func (h *Handler) ListAttendance(c *gin.Context) {
	from, err := h.dateParam(c.Query("from"))
	if err != nil {
		h.fail(c, err)
		return
	}
	to, err := h.dateParam(c.Query("to"))
	if err != nil {
		h.fail(c, err)
		return
	}
	cal := h.svc.Calendar()
	records := h.svc.Records(c.Query("worker_id"), from, to)
	views := make([]attendance.DayView, 0, len(records))
	for i := range records {
		rec := records[i]
		views = append(views, attendance.DayView{
			WorkerID: rec.WorkerID,
			Date:     rec.Date,
			Record:   &rec,
			State:    timecontrol.StateOf(&rec),
			Tally:    cal.ComputeHours(rec),
			Holiday:  cal.IsHoliday(rec.Date),
		})
	}
	c.JSON(http.StatusOK, gin.H{"records": views})
}

// Refresh reloads the ledger from the database.
func (h *Handler) Refresh(c *gin.Context) {
	if err := h.svc.Refresh(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	ledger := h.svc.Ledger()
	c.JSON(http.StatusOK, gin.H{"records": ledger.Len(), "ambiguous": ledger.Ambiguous()})
}

// WeekGrid lays out Monday to Sunday for every worker.
func (h *Handler) WeekGrid(c *gin.Context) {
	at, err := h.anchor(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	days, rows, err := h.svc.WeekGrid(c.Request.Context(), at)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "rows": rows})
}

// Day answers the point lookup of one worker on one date.
func (h *Handler) Day(c *gin.Context) {
	day, err := h.dateParam(c.Param("date"))
	if err != nil || day.IsZero() {
		h.fail(c, fmt.Errorf("%w: date must be YYYY-MM-DD", errBadRequest))
		return
	}
	view := h.svc.Day(c.Param("worker_id"), day)
	c.JSON(http.StatusOK, gin.H{
		"day":           view,
		"next_captures": nextCaptures(view.State),
		"pending":       h.svc.Pending(view.WorkerID) && day == h.svc.Calendar().Today(h.svc.Now()),
	})
}

func nextCaptures(s timecontrol.State) []string {
	out := []string{}
	for _, k := range []timecontrol.CaptureKind{timecontrol.Entry, timecontrol.Exit} {
		if timecontrol.NextCaptureIsValid(s, k) {
			out = append(out, k.String())
		}
	}
	return out
}

func (h *Handler) captureHandler(kind timecontrol.CaptureKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPhotoBytes+1<<20)
		file, header, err := c.Request.FormFile("photo")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large"})
				return
			}
			h.fail(c, attendance.ErrPhotoRequired)
			return
		}
		defer file.Close()

		photo, err := io.ReadAll(io.LimitReader(file, h.maxPhotoBytes+1))
		if err != nil {
			h.fail(c, fmt.Errorf("%w: read photo: %v", errBadRequest, err))
			return
		}
		if int64(len(photo)) > h.maxPhotoBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large"})
			return
		}

		view, err := h.svc.Capture(c.Request.Context(), attendance.CaptureRequest{
			WorkerID: c.Param("worker_id"),
			Kind:     kind,
			Photo:    photo,
			Filename: header.Filename,
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, view)
	}
}

// Abandon cancels the worker's capture in progress.
func (h *Handler) Abandon(c *gin.Context) {
	if err := h.svc.Abandon(c.Param("worker_id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) WeeklyTotals(c *gin.Context) {
	at, err := h.anchor(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	ledger := h.svc.Ledger()
	from, to := ledger.Calendar().WeekRange(at)
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "totals": ledger.WeeklyTotals(at)})
}

func (h *Handler) MonthlyTotals(c *gin.Context) {
	at, err := h.anchor(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	ledger := h.svc.Ledger()
	from, to := ledger.Calendar().MonthRange(at)
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "totals": ledger.MonthlyTotals(at)})
}

// MonthlyReport downloads the xlsx timesheet of ?month=YYYY-MM (default: current month).
func (h *Handler) MonthlyReport(c *gin.Context) {
	cal := h.svc.Calendar()
	at := h.svc.Now().In(cal.Location)
	if m := c.Query("month"); m != "" {
		parsed, err := report.ParseMonth(m, cal.Location)
		if err != nil {
			h.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		at = parsed
	}
	workers, err := h.svc.Workers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.MonthlyTimesheet(&buf, h.svc.Ledger(), workers, at); err != nil {
		h.fail(c, err)
		return
	}
	name := fmt.Sprintf("timesheet-%s.xlsx", at.Format(report.MonthLayout))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
