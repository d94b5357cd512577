package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soldgrupsas/soldgrup-sub001/internal/metrics"
	"github.com/soldgrupsas/soldgrup-sub001/internal/queue"
	"github.com/soldgrupsas/soldgrup-sub001/internal/timecontrol"
)

// EventCaptured is the queue message type carrying a stored record after a capture.
const EventCaptured = "attendance.captured"

// Store is the persistence collaborator.
type Store interface {
	ListWorkers(ctx context.Context) ([]Worker, error)
	GetWorker(ctx context.Context, id string) (Worker, error)
	CreateWorker(ctx context.Context, w Worker) (Worker, error)
	UpdateWorker(ctx context.Context, w Worker) (Worker, error)
	DeleteWorker(ctx context.Context, id string) error
	ListAttendanceRecords(ctx context.Context) ([]timecontrol.Record, error)
	UpsertAttendanceRecord(ctx context.Context, rec timecontrol.Record) (timecontrol.Record, error)
}

// PhotoStore uploads evidence photos. Uploading twice to one path overwrites.
type PhotoStore interface {
	UploadEvidencePhoto(ctx context.Context, data []byte, path string) (string, error)
}

// Publisher broadcasts capture events to other replicas.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service owns the reconciled ledger and guards captures against it.
type Service struct {
	store   Store
	photos  PhotoStore
	pub     Publisher
	log     *slog.Logger
	now     func() time.Time
	timeout time.Duration
	origin  string

	mu         sync.RWMutex
	ledger     *timecontrol.Ledger
	pending    map[timecontrol.Key]*pendingCapture
	refreshing int
	inflight   []timecontrol.Record
}

type pendingCapture struct {
	kind    timecontrol.CaptureKind
	cancel  context.CancelFunc
	started time.Time
	storing bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used by the service and its ledger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPublisher enables capture events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithCaptureTimeout bounds upload plus upsert of one capture.
func WithCaptureTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates a service with an empty ledger over cal. Call Refresh to load it.
func NewService(store Store, photos PhotoStore, cal *timecontrol.Calendar, opts ...Option) *Service {
	s := &Service{
		store:   store,
		photos:  photos,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		timeout: 30 * time.Second,
		origin:  uuid.NewString(),
		pending: make(map[timecontrol.Key]*pendingCapture),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = timecontrol.NewLedger(cal, s.log)
	return s
}

// Ledger returns the current snapshot. Snapshots are immutable.
func (s *Service) Ledger() *timecontrol.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger
}

// Calendar is the calendar the ledger computes against.
func (s *Service) Calendar() *timecontrol.Calendar { return s.Ledger().Calendar() }

// Now is the service clock.
func (s *Service) Now() time.Time { return s.now() }

// Refresh reloads every stored row and swaps in a freshly reconciled ledger.
// Records merged while the rows were loading are reapplied on top.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.refreshing++
	s.mu.Unlock()

	rows, err := s.store.ListAttendanceRecords(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing--
	if err != nil {
		if s.refreshing == 0 {
			s.inflight = nil
		}
		metrics.ReconcileRuns.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("refresh ledger: %w", err)
	}

	next := s.ledger.Reconcile(rows)
	for _, rec := range s.inflight {
		next = next.Apply(rec)
	}
	if s.refreshing == 0 {
		s.inflight = nil
	}
	s.ledger = next

	metrics.ReconcileRuns.WithLabelValues(metrics.ResultOK).Inc()
	metrics.AmbiguousKeys.Set(float64(len(next.Ambiguous())))
	metrics.LedgerRecords.Set(float64(next.Len()))
	s.log.Debug("ledger refreshed", "rows", len(rows), "records", next.Len(), "ambiguous", len(next.Ambiguous()))
	return nil
}

// RunRefresher refreshes the ledger every interval until ctx ends.
func (s *Service) RunRefresher(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("ledger refresher stopping")
			return
		case <-ticker.C:
			start := time.Now()
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("ledger refresh failed", "error", err, "duration", time.Since(start))
			}
		}
	}
}

// Apply merges a record stored elsewhere, keeping the tie-break winner.
func (s *Service) Apply(rec timecontrol.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = s.ledger.Apply(rec)
	if s.refreshing > 0 {
		s.inflight = append(s.inflight, rec.Clone())
	}
	metrics.LedgerRecords.Set(float64(s.ledger.Len()))
}

func (s *Service) put(rec timecontrol.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = s.ledger.Put(rec)
	if s.refreshing > 0 {
		s.inflight = append(s.inflight, rec.Clone())
	}
	metrics.LedgerRecords.Set(float64(s.ledger.Len()))
}

// Follow applies capture events published by other replicas until msgs closes.
func (s *Service) Follow(msgs <-chan queue.Message) {
	for msg := range msgs {
		if msg.Type != EventCaptured || msg.Origin == s.origin {
			continue
		}
		var rec timecontrol.Record
		if err := json.Unmarshal(msg.Body, &rec); err != nil {
			metrics.Events.WithLabelValues("in", metrics.ResultError).Inc()
			s.log.Warn("dropping malformed capture event", "error", err)
			continue
		}
		s.Apply(rec)
		metrics.Events.WithLabelValues("in", metrics.ResultOK).Inc()
	}
}

func (s *Service) publish(ctx context.Context, rec timecontrol.Record) {
	if s.pub == nil {
		return
	}
	body, err := json.Marshal(rec)
	if err == nil {
		err = s.pub.Publish(ctx, queue.Message{Type: EventCaptured, Origin: s.origin, Body: body})
	}
	if err != nil {
		metrics.Events.WithLabelValues("out", metrics.ResultError).Inc()
		s.log.Warn("capture event not published", "worker_id", rec.WorkerID, "date", rec.Date, "error", err)
		return
	}
	metrics.Events.WithLabelValues("out", metrics.ResultOK).Inc()
}

// CaptureRequest is one kiosk capture.
type CaptureRequest struct {
	WorkerID string
	Kind     timecontrol.CaptureKind
	Photo    []byte
	Filename string
}

// DayView is the ledger's answer for one worker on one day.
type DayView struct {
	WorkerID string              `json:"worker_id"`
	Date     timecontrol.DateKey `json:"date"`
	Record   *timecontrol.Record `json:"record,omitempty"`
	State    timecontrol.State   `json:"state"`
	Tally    timecontrol.Tally   `json:"tally"`
	Holiday  bool                `json:"holiday"`
}

// Capture records an entry or exit for today. Preconditions are checked against
// the ledger before any I/O; on failure the ledger is left as it was.
func (s *Service) Capture(ctx context.Context, req CaptureRequest) (DayView, error) {
	kind := req.Kind.String()
	if req.WorkerID == "" {
		return DayView{}, ErrWorkerRequired
	}
	if len(req.Photo) == 0 {
		return DayView{}, ErrPhotoRequired
	}

	now := s.now()
	snap := s.Ledger()
	cal := snap.Calendar()
	day := cal.Today(now)
	key := timecontrol.Key{WorkerID: req.WorkerID, Date: day}

	if err := s.check(req.Kind, key); err != nil {
		metrics.Captures.WithLabelValues(kind, metrics.ResultRejected).Inc()
		return DayView{}, err
	}

	captureCtx, p, done, err := s.begin(ctx, key, req.Kind, now)
	if err != nil {
		metrics.Captures.WithLabelValues(kind, metrics.ResultRejected).Inc()
		return DayView{}, err
	}
	defer done()

	rec, err := s.capture(captureCtx, p, req, day, now)
	if err != nil {
		err = s.captureError(ctx, captureCtx, err)
		metrics.Captures.WithLabelValues(kind, metrics.ResultError).Inc()
		s.log.Warn("capture failed", "worker_id", req.WorkerID, "kind", kind, "date", day, "error", err)
		return DayView{}, err
	}

	s.put(rec)
	s.publish(ctx, rec)
	metrics.Captures.WithLabelValues(kind, metrics.ResultOK).Inc()
	s.log.Info("capture stored", "worker_id", req.WorkerID, "kind", kind, "date", day, "record_id", rec.ID)
	return s.Day(req.WorkerID, day), nil
}

func (s *Service) check(kind timecontrol.CaptureKind, key timecontrol.Key) error {
	snap := s.Ledger()
	var existing *timecontrol.Record
	if rec, ok := snap.Lookup(key.WorkerID, key.Date); ok {
		existing = &rec
	}
	return timecontrol.CheckCapture(snap.Calendar(), kind, key.Date, existing)
}

// begin registers the pending capture of key, refusing a second one.
func (s *Service) begin(ctx context.Context, key timecontrol.Key, kind timecontrol.CaptureKind, now time.Time) (context.Context, *pendingCapture, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[key]; busy {
		return nil, nil, nil, ErrCaptureInProgress
	}
	captureCtx, cancel := context.WithTimeout(ctx, s.timeout)
	p := &pendingCapture{kind: kind, cancel: cancel, started: now}
	s.pending[key] = p
	return captureCtx, p, func() {
		cancel()
		s.mu.Lock()
		if s.pending[key] == p {
			delete(s.pending, key)
		}
		s.mu.Unlock()
	}, nil
}

// commit marks p as storing. From here on Abandon refuses and the stored row wins.
func (s *Service) commit(key timecontrol.Key, p *pendingCapture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[key] != p {
		return ErrCaptureAbandoned
	}
	p.storing = true
	return nil
}

func (s *Service) capture(ctx context.Context, p *pendingCapture, req CaptureRequest, day timecontrol.DateKey, now time.Time) (timecontrol.Record, error) {
	if _, err := s.store.GetWorker(ctx, req.WorkerID); err != nil {
		return timecontrol.Record{}, err
	}

	path := timecontrol.EvidencePath(req.WorkerID, day, req.Kind, now, req.Filename)
	start := time.Now()
	url, err := s.photos.UploadEvidencePhoto(ctx, req.Photo, path)
	metrics.UploadSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return timecontrol.Record{}, ctx.Err()
		}
		return timecontrol.Record{}, fmt.Errorf("%w: %v", ErrPhotoUpload, err)
	}

	// Another replica may have stored this day while the photo was uploading.
	key := timecontrol.Key{WorkerID: req.WorkerID, Date: day}
	if err := s.check(req.Kind, key); err != nil {
		return timecontrol.Record{}, err
	}
	snap := s.Ledger()
	var existing *timecontrol.Record
	if rec, ok := snap.Lookup(req.WorkerID, day); ok {
		existing = &rec
	}

	merged := timecontrol.Capture(req.WorkerID, req.Kind, url, now, existing, snap.Calendar().Location)
	if err := s.commit(key, p); err != nil {
		return timecontrol.Record{}, err
	}
	stored, err := s.store.UpsertAttendanceRecord(ctx, merged)
	if err != nil {
		return timecontrol.Record{}, err
	}
	return stored, nil
}

func (s *Service) captureError(parent, captureCtx context.Context, err error) error {
	if captureCtx.Err() == nil || parent.Err() != nil {
		return err
	}
	switch {
	case errors.Is(captureCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrCaptureTimeout, s.timeout)
	case errors.Is(captureCtx.Err(), context.Canceled):
		return ErrCaptureAbandoned
	}
	return err
}

// Abandon cancels the worker's capture in progress today. Once the capture is
// writing its record it can no longer be abandoned and ErrCaptureStoring is returned.
func (s *Service) Abandon(workerID string) error {
	key := timecontrol.Key{WorkerID: workerID, Date: s.Calendar().Today(s.now())}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	if !ok {
		return ErrNoPendingCapture
	}
	if p.storing {
		return ErrCaptureStoring
	}
	p.cancel()
	delete(s.pending, key)
	s.log.Info("capture abandoned", "worker_id", workerID, "kind", p.kind.String(), "date", key.Date,
		"pending_for", s.now().Sub(p.started))
	return nil
}

// Pending reports whether a capture for workerID is in progress today.
func (s *Service) Pending(workerID string) bool {
	key := timecontrol.Key{WorkerID: workerID, Date: s.Calendar().Today(s.now())}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[key]
	return ok
}

// Day returns the record, state and tally of workerID on day.
func (s *Service) Day(workerID string, day timecontrol.DateKey) DayView {
	snap := s.Ledger()
	cal := snap.Calendar()
	view := DayView{WorkerID: workerID, Date: day, Holiday: cal.IsHoliday(day)}
	if rec, ok := snap.Lookup(workerID, day); ok {
		view.Record = &rec
		view.State = timecontrol.StateOf(&rec)
		view.Tally = cal.ComputeHours(rec)
	}
	return view
}

// Records lists reconciled records, optionally for one worker and within from..to.
// A zero bound is open.
func (s *Service) Records(workerID string, from, to timecontrol.DateKey) []timecontrol.Record {
	var out []timecontrol.Record
	for _, rec := range s.Ledger().Records() {
		if workerID != "" && rec.WorkerID != workerID {
			continue
		}
		if !from.IsZero() && rec.Date.Before(from) {
			continue
		}
		if !to.IsZero() && rec.Date.After(to) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// WeekRow is one worker's line of the week grid.
type WeekRow struct {
	Worker Worker             `json:"worker"`
	Days   []DayView          `json:"days"`
	Totals timecontrol.Totals `json:"totals"`
}

// WeekGrid lays out Monday to Sunday of the week containing anchor for every worker.
func (s *Service) WeekGrid(ctx context.Context, anchor time.Time) ([]timecontrol.DateKey, []WeekRow, error) {
	workers, err := s.store.ListWorkers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("week grid: %w", err)
	}
	days := s.Calendar().WeekDays(anchor)
	rows := make([]WeekRow, 0, len(workers))
	for _, w := range workers {
		row := WeekRow{Worker: w, Days: make([]DayView, 0, len(days))}
		for _, d := range days {
			view := s.Day(w.ID, d)
			if view.Record != nil {
				row.Totals.Add(view.Tally)
			}
			row.Days = append(row.Days, view)
		}
		rows = append(rows, row)
	}
	return days, rows, nil
}

// Workers lists every worker.
func (s *Service) Workers(ctx context.Context) ([]Worker, error) {
	return s.store.ListWorkers(ctx)
}

// CreateWorker validates and stores a new worker.
func (s *Service) CreateWorker(ctx context.Context, w Worker) (Worker, error) {
	w.ID = ""
	w.normalize()
	if err := w.Validate(); err != nil {
		return Worker{}, err
	}
	return s.store.CreateWorker(ctx, w)
}

// UpdateWorker validates and replaces the worker id.
func (s *Service) UpdateWorker(ctx context.Context, id string, w Worker) (Worker, error) {
	if id == "" {
		return Worker{}, ErrWorkerRequired
	}
	w.ID = id
	w.normalize()
	if err := w.Validate(); err != nil {
		return Worker{}, err
	}
	return s.store.UpdateWorker(ctx, w)
}

// DeleteWorker removes the worker and drops its records from the ledger.
func (s *Service) DeleteWorker(ctx context.Context, id string) error {
	if id == "" {
		return ErrWorkerRequired
	}
	if err := s.store.DeleteWorker(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	s.ledger = s.ledger.WithoutWorker(id)
	metrics.LedgerRecords.Set(float64(s.ledger.Len()))
	s.mu.Unlock()
	return nil
}
