package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/soldgrupsas/soldgrup-sub001/internal/attendance"
	"github.com/soldgrupsas/soldgrup-sub001/internal/timecontrol"
)

const (
	SummarySheet = "Resumen"
	DetailSheet  = "Detalle"
	MonthLayout  = "2006-01"
)

var (
	summaryHeader = []any{"Trabajador", "Cédula", "Cargo", "Días", "Horas normales", "Horas extra", "Horas totales"}
	detailHeader  = []any{"Fecha", "Trabajador", "Entrada", "Salida", "Horas normales", "Horas extra", "Horas totales", "Foto entrada", "Foto salida"}
)

// ParseMonth reads YYYY-MM as the first instant of that month in loc.
func ParseMonth(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("month must be YYYY-MM: %w", err)
	}
	return t, nil
}

// MonthlyTimesheet writes an xlsx workbook with one summary line per worker and
// one detail line per record of the month containing anchor.
func MonthlyTimesheet(w io.Writer, ledger *timecontrol.Ledger, workers []attendance.Worker, anchor time.Time) error {
	cal := ledger.Calendar()
	from, to := cal.MonthRange(anchor)
	totals := ledger.TotalsBetween(from, to)
	records := ledger.Between(from, to)

	byID := make(map[string]attendance.Worker, len(workers))
	for _, wk := range workers {
		byID[wk.ID] = wk
	}
	ids := make([]string, 0, len(workers))
	for _, wk := range workers {
		ids = append(ids, wk.ID)
	}
	for id := range totals {
		if _, ok := byID[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, nj := name(byID, ids[i]), name(byID, ids[j])
		if ni != nj {
			return ni < nj
		}
		return ids[i] < ids[j]
	})

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(DetailSheet); err != nil {
		return err
	}

	title := fmt.Sprintf("Control de horas %s a %s", from, to)
	if err := f.SetCellValue(SummarySheet, "A1", title); err != nil {
		return err
	}
	if err := f.SetSheetRow(SummarySheet, "A2", &summaryHeader); err != nil {
		return err
	}
	row := 3
	for _, id := range ids {
		t := totals[id]
		wk := byID[id]
		line := []any{name(byID, id), deref(wk.Cedula), deref(wk.JobTitle), t.Days, hours(t.Normal), hours(t.Extra), hours(t.Total)}
		if err := setRow(f, SummarySheet, row, line); err != nil {
			return err
		}
		row++
	}

	if err := f.SetSheetRow(DetailSheet, "A1", &detailHeader); err != nil {
		return err
	}
	for i, rec := range records {
		tally := cal.ComputeHours(rec)
		line := []any{
			string(rec.Date), name(byID, rec.WorkerID),
			clock(rec.EntryTime, cal.Location), clock(rec.ExitTime, cal.Location),
			hours(tally.Normal), hours(tally.Extra), hours(tally.Total),
			rec.EntryPhotoURL, rec.ExitPhotoURL,
		}
		if err := setRow(f, DetailSheet, i+2, line); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SummarySheet, "A", "A", 32); err != nil {
		return err
	}
	if err := f.SetColWidth(DetailSheet, "B", "B", 32); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func name(byID map[string]attendance.Worker, id string) string {
	if wk, ok := byID[id]; ok {
		if n := wk.FullName(); n != "" {
			return n
		}
	}
	return id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// hours converts minutes to hours with two decimals.
func hours(minutes int) float64 {
	return math.Round(float64(minutes)/60*100) / 100
}

func clock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format("15:04")
}
