package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ardanlabs/conf"

	"github.com/soldgrupsas/soldgrup-sub001/internal/attendance"
	"github.com/soldgrupsas/soldgrup-sub001/internal/config"
	"github.com/soldgrupsas/soldgrup-sub001/internal/report"
	"github.com/soldgrupsas/soldgrup-sub001/internal/store"
)

// options are read from flags or REPORT_* variables.
type options struct {
	Month string `conf:"help:month to export as YYYY-MM; defaults to the current month"`
	Out   string `conf:"help:output file; defaults to timesheet-<month>.xlsx"`
}

// Report exports the monthly timesheet straight from the database.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return
		}
		logger.Error("report failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	var opts options
	if err := conf.Parse(os.Args[1:], "REPORT", &opts); err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			usage, uerr := conf.Usage("REPORT", &opts)
			if uerr != nil {
				return uerr
			}
			fmt.Println(usage)
		}
		return err
	}

	cfg := config.Load()
	cal, err := config.LoadCalendar(cfg.CalendarFile)
	if err != nil {
		return err
	}

	month := time.Now().In(cal.Location)
	if opts.Month != "" {
		if month, err = report.ParseMonth(opts.Month, cal.Location); err != nil {
			return err
		}
	}
	if opts.Out == "" {
		opts.Out = fmt.Sprintf("timesheet-%s.xlsx", month.Format(report.MonthLayout))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := attendance.NewService(attendance.NewRepository(db.Client), nil, cal, attendance.WithLogger(logger))
	if err := svc.Refresh(ctx); err != nil {
		return err
	}
	workers, err := svc.Workers(ctx)
	if err != nil {
		return err
	}
	for _, k := range svc.Ledger().Ambiguous() {
		logger.Warn("worker day resolved from more than two rows", "worker_id", k.WorkerID, "date", k.Date)
	}

	f, err := os.Create(opts.Out)
	if err != nil {
		return err
	}
	if err := report.MonthlyTimesheet(f, svc.Ledger(), workers, month); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("timesheet written", "file", opts.Out, "month", month.Format(report.MonthLayout), "workers", len(workers))
	return nil
}
