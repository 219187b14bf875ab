// Package autosave persists the latest editor state after edits settle.
//
// A Scheduler watches one document. Every observed change restarts a single
// debounce timer; when the timer fires the latest snapshot and a version
// record of it are written through the Saver in one atomic commit. Failed writes are logged and
// counted but never returned to the editing caller.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"pagebuilder/internal/domain"
)

const (
	// DefaultInterval is the debounce window between the last change and
	// the write.
	DefaultInterval = 30 * time.Second

	// DefaultWriteTimeout bounds a single background write.
	DefaultWriteTimeout = 10 * time.Second
)

var (
	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagebuilder_autosave_writes_total",
		Help: "Snapshot writes by trigger and outcome",
	}, []string{"trigger", "outcome"})

	writeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagebuilder_autosave_write_duration_seconds",
		Help:    "Duration of snapshot writes including the version append",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Saver is the durable side of the scheduler. CommitSnapshot writes the
// snapshot and its version record together or not at all.
type Saver interface {
	CommitSnapshot(ctx context.Context, id string, components domain.Components, settings domain.PageSettings) (*domain.Document, error)
}

// Options configures a Scheduler.
type Options struct {
	// DocumentID is the page being watched. Empty disables the scheduler.
	DocumentID string
	// Interval is the debounce window. Zero means DefaultInterval.
	Interval time.Duration
	// Enabled turns timer-driven saves on. Manual saves work either way.
	Enabled bool
	// WriteTimeout bounds timer-driven writes. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
	Logger       *zap.Logger
	// Now overrides time.Now.
	Now func() time.Time
}

// Result describes one finished write attempt.
type Result struct {
	DocumentID string
	Document   *domain.Document // nil on failure
	SavedAt    time.Time
	Manual     bool
	Err        error
}

// Status is the observable save state of a scheduler.
type Status struct {
	IsSaving  bool      `json:"isSaving"`
	LastSaved time.Time `json:"lastSaved"`
	Pending   bool      `json:"pending"`
	Overdue   bool      `json:"overdue"`
}

// Scheduler debounces writes for one document.
type Scheduler struct {
	saver Saver
	opts  Options
	log   *zap.Logger

	// writeMu keeps at most one write in flight.
	writeMu sync.Mutex

	mu         sync.Mutex
	components domain.Components
	settings   domain.PageSettings
	rev        uint64 // bumped by every Observe
	savedRev   uint64 // rev covered by the last successful write
	dirtySince time.Time
	timer      *time.Timer
	gen        uint64 // invalidates timers that were stopped too late
	closed     bool
	saving     bool
	lastSaved  time.Time
	hooks      []func(Result)
}

// New creates a scheduler. No timer runs until the first Observe.
func New(saver Saver, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		saver: saver,
		opts:  opts,
		log:   log.With(zap.String("page_id", opts.DocumentID)),
	}
}

// DocumentID returns the watched page id.
func (s *Scheduler) DocumentID() string { return s.opts.DocumentID }

// Interval returns the debounce window.
func (s *Scheduler) Interval() time.Duration { return s.opts.Interval }

func (s *Scheduler) autoEnabled() bool {
	return s.opts.DocumentID != "" && s.opts.Enabled
}

// OnSaved registers fn to run after every write attempt, successful or not.
// Hooks run on the writing goroutine.
func (s *Scheduler) OnSaved(fn func(Result)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Seed sets the state considered already persisted, without scheduling.
func (s *Scheduler) Seed(components domain.Components, settings domain.PageSettings, lastSaved time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components = components
	s.settings = settings
	s.lastSaved = lastSaved
	s.savedRev = s.rev
	s.dirtySince = time.Time{}
}

// SeedIfClean is Seed for a state loaded from outside, applied only when
// every observed change is saved and no write is in flight. It reports
// whether the seed was taken.
func (s *Scheduler) SeedIfClean(components domain.Components, settings domain.PageSettings, lastSaved time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rev != s.savedRev || s.saving {
		return false
	}
	s.components = components
	s.settings = settings
	s.lastSaved = lastSaved
	s.dirtySince = time.Time{}
	return true
}

// Observe records the latest state and restarts the debounce timer.
func (s *Scheduler) Observe(components domain.Components, settings domain.PageSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.components = components
	s.settings = settings
	s.rev++
	if s.dirtySince.IsZero() {
		s.dirtySince = s.opts.Now()
	}
	if !s.autoEnabled() {
		return
	}

	s.stopTimerLocked()
	gen := s.gen
	s.timer = time.AfterFunc(s.opts.Interval, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	defer cancel()
	s.write(ctx, false, gen)
}

// SaveNow writes the latest state immediately and cancels any pending
// timer. It reports whether the write succeeded.
func (s *Scheduler) SaveNow(ctx context.Context) bool {
	s.mu.Lock()
	if s.closed || s.opts.DocumentID == "" {
		s.mu.Unlock()
		return false
	}
	s.stopTimerLocked()
	s.mu.Unlock()
	return s.write(ctx, true, 0)
}

// Flush writes only when a change is still unsaved, then cancels the timer.
// It reports whether anything was written.
func (s *Scheduler) Flush(ctx context.Context) bool {
	if !s.Pending() {
		s.Cancel()
		return false
	}
	return s.SaveNow(ctx)
}

// Cancel clears the pending timer, if any.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()
}

// Close cancels the pending timer. Later calls to Observe and SaveNow are
// ignored. A write already in flight is allowed to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.closed = true
	s.mu.Unlock()
}

func (s *Scheduler) stopTimerLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// write persists the latest state. A timer write carries the generation it
// was armed with and is dropped when a manual save or a newer change got
// to writeMu first.
func (s *Scheduler) write(ctx context.Context, manual bool, gen uint64) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !manual && (s.closed || gen != s.gen || s.rev == s.savedRev) {
		s.mu.Unlock()
		return false
	}
	components, settings, rev := s.components, s.settings, s.rev
	s.saving = true
	s.mu.Unlock()

	start := time.Now()
	doc, err := s.persist(ctx, components, settings)
	writeDuration.Observe(time.Since(start).Seconds())

	trigger := "auto"
	if manual {
		trigger = "manual"
	}
	res := Result{DocumentID: s.opts.DocumentID, Manual: manual, Err: err}

	s.mu.Lock()
	s.saving = false
	if err == nil {
		res.Document = doc
		res.SavedAt = s.opts.Now()
		s.lastSaved = res.SavedAt
		s.savedRev = rev
		if s.rev == rev {
			s.dirtySince = time.Time{}
		} else {
			s.dirtySince = res.SavedAt
		}
	}
	hooks := append([]func(Result){}, s.hooks...)
	s.mu.Unlock()

	if err != nil {
		writesTotal.WithLabelValues(trigger, "error").Inc()
		s.log.Warn("autosave failed", zap.String("trigger", trigger), zap.Error(err))
	} else {
		writesTotal.WithLabelValues(trigger, "ok").Inc()
		s.log.Debug("autosave written", zap.String("trigger", trigger), zap.Int("components", len(components)))
	}
	for _, fn := range hooks {
		fn(res)
	}
	return err == nil
}

func (s *Scheduler) persist(ctx context.Context, components domain.Components, settings domain.PageSettings) (*domain.Document, error) {
	return s.saver.CommitSnapshot(ctx, s.opts.DocumentID, components, settings)
}

// ── Status ──────────────────────────────────────────────────

// IsSaving reports whether a write is in flight.
func (s *Scheduler) IsSaving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// LastSaved returns the time of the last successful write, zero if none.
func (s *Scheduler) LastSaved() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

// Pending reports whether an observed change has not been written yet.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev != s.savedRev
}

// Overdue reports whether a change has waited more than two debounce
// windows without a successful write, meaning the last save did not
// complete.
func (s *Scheduler) Overdue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overdueLocked(now)
}

func (s *Scheduler) overdueLocked(now time.Time) bool {
	if !s.autoEnabled() || s.rev == s.savedRev || s.dirtySince.IsZero() {
		return false
	}
	return now.Sub(s.dirtySince) > 2*s.opts.Interval
}

// Status returns a consistent snapshot of the observable state.
func (s *Scheduler) Status() Status {
	now := s.opts.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		IsSaving:  s.saving,
		LastSaved: s.lastSaved,
		Pending:   s.rev != s.savedRev,
		Overdue:   s.overdueLocked(now),
	}
}
