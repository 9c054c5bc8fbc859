// Package timer implements the stopwatch/pomodoro state machine.
//
// Elapsed and remaining time are always recomputed from persisted
// timestamps, never accumulated from ticks, so the values stay correct
// across throttled tickers, process restarts and machine sleep.
package timer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"focusbeat/backend/internal/clock"
	"focusbeat/backend/internal/logging"
	"focusbeat/backend/internal/model"
	"focusbeat/backend/internal/notify"
	"focusbeat/backend/internal/store"
)

var (
	ErrModeLocked       = errors.New("timer mode can only change while idle")
	ErrInvalidMode      = errors.New("invalid timer mode")
	ErrInvalidDurations = errors.New("pomodoro durations must be positive")
)

const notificationTag = "pomodoro-phase"

// SessionSink receives sessions that count toward focus stats.
type SessionSink interface {
	Record(ctx context.Context, session model.SessionData) error
}

type Durations struct {
	Work  time.Duration `json:"work"`
	Break time.Duration `json:"break"`
}

func DefaultDurations() Durations {
	return Durations{Work: model.DefaultWorkDuration, Break: model.DefaultBreakDuration}
}

func (d Durations) Validate() error {
	if d.Work <= 0 || d.Break <= 0 {
		return ErrInvalidDurations
	}
	return nil
}

func (d Durations) forPhase(phase model.PomodoroPhase) int64 {
	if phase == model.PhaseBreak {
		return d.Break.Milliseconds()
	}
	return d.Work.Milliseconds()
}

type Options struct {
	Clock     clock.Clock
	Store     store.Store
	Sessions  SessionSink
	Notifier  notify.Sender
	Logger    hclog.Logger
	Durations Durations
	// InitialMode applies when no snapshot is restored.
	InitialMode model.TimerMode
	// CreditOfflineTime keeps a running timer's original start timestamp on
	// restore, so time spent while the process was down counts as elapsed.
	CreditOfflineTime bool
	// Publish is called with the new view after every transition and on
	// every tick while running.
	Publish func(View)
	// OnSession sees every emitted session, including break phases that are
	// not forwarded to Sessions.
	OnSession func(model.SessionData)
}

// View is the derived display state.
type View struct {
	State           model.TimerState    `json:"state"`
	Mode            model.TimerMode     `json:"mode"`
	Phase           model.PomodoroPhase `json:"phase"`
	ElapsedMs       int64               `json:"elapsedMs"`
	RemainingMs     int64               `json:"remainingMs"`
	PhaseDurationMs int64               `json:"phaseDurationMs"`
	StartTimestamp  *int64              `json:"startTimestamp,omitempty"`
	WorkDurationMs  int64               `json:"workDurationMs"`
	BreakDurationMs int64               `json:"breakDurationMs"`
}

type Engine struct {
	mu        sync.Mutex
	clock     clock.Clock
	store     store.Store
	sessions  SessionSink
	notifier  notify.Sender
	logger    hclog.Logger
	durations Durations
	credit    bool
	publish   func(View)
	onSession func(model.SessionData)
	newID     func() string

	snap model.TimerSnapshot
}

func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.Durations.Validate() != nil {
		opts.Durations = DefaultDurations()
	}
	mode := opts.InitialMode
	if !mode.Valid() {
		mode = model.ModeStopwatch
	}

	e := &Engine{
		clock:     opts.Clock,
		store:     opts.Store,
		sessions:  opts.Sessions,
		notifier:  opts.Notifier,
		logger:    logging.OrNop(opts.Logger),
		durations: opts.Durations,
		credit:    opts.CreditOfflineTime,
		publish:   opts.Publish,
		onSession: opts.OnSession,
		newID:     uuid.NewString,
	}
	e.snap = e.idleSnapshot(mode)
	return e
}

// effects are run after the engine lock is released.
type effects struct {
	sessions     []model.SessionData
	notification *notify.Notification
	publish      bool
}

func (e *Engine) idleSnapshot(mode model.TimerMode) model.TimerSnapshot {
	snap := model.TimerSnapshot{
		State:         model.TimerIdle,
		Mode:          mode,
		PomodoroPhase: model.PhaseWork,
	}
	if mode == model.ModePomodoro {
		snap.PomodoroRemainingMs = e.durations.forPhase(model.PhaseWork)
	}
	return snap
}

func (e *Engine) now() int64 {
	return e.clock.Now().UnixMilli()
}

// runningDelta is the time since the current run segment started, clamped
// at zero when the clock moved backwards.
func (e *Engine) runningDelta(now int64) int64 {
	if e.snap.State != model.TimerRunning || e.snap.StartTimestamp == nil {
		return 0
	}
	delta := now - *e.snap.StartTimestamp
	if delta < 0 {
		return 0
	}
	return delta
}

func (e *Engine) elapsed(now int64) int64 {
	delta := e.runningDelta(now)
	if delta > math.MaxInt64-e.snap.PausedElapsed {
		return math.MaxInt64
	}
	return e.snap.PausedElapsed + delta
}

// sessionStart is the wall-clock start of the session ending at end. Older
// snapshots without a recorded start fall back to end minus duration.
func (e *Engine) sessionStart(end, duration int64) int64 {
	if start := e.snap.SessionStart; start > 0 && start <= end {
		return start
	}
	return clampStart(end - duration)
}

func (e *Engine) remaining(now int64) int64 {
	remaining := e.snap.PomodoroRemainingMs - e.runningDelta(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (e *Engine) viewLocked(now int64) View {
	view := View{
		State:           e.snap.State,
		Mode:            e.snap.Mode,
		Phase:           e.snap.PomodoroPhase,
		ElapsedMs:       e.elapsed(now),
		WorkDurationMs:  e.durations.Work.Milliseconds(),
		BreakDurationMs: e.durations.Break.Milliseconds(),
	}
	if e.snap.StartTimestamp != nil {
		start := *e.snap.StartTimestamp
		view.StartTimestamp = &start
	}
	if e.snap.Mode == model.ModePomodoro {
		view.RemainingMs = e.remaining(now)
		view.PhaseDurationMs = e.durations.forPhase(e.snap.PomodoroPhase)
	}
	return view
}

func (e *Engine) persistLocked(ctx context.Context) {
	if err := store.Save(ctx, e.store, store.KeyTimerSnapshot, e.snap); err != nil {
		e.logger.Warn("persist timer snapshot", "error", err)
	}
}

func (e *Engine) clearLocked(ctx context.Context) {
	if err := e.store.Remove(ctx, store.KeyTimerSnapshot); err != nil {
		e.logger.Warn("clear timer snapshot", "error", err)
	}
}

func (e *Engine) finish(ctx context.Context, view View, fx effects) View {
	for _, session := range fx.sessions {
		if e.onSession != nil {
			e.onSession(session)
		}
		if e.sessions == nil || session.Phase == model.PhaseBreak {
			continue
		}
		if err := e.sessions.Record(ctx, session); err != nil {
			e.logger.Warn("record session", "session_id", session.ID, "error", err)
		}
	}
	if fx.notification != nil && e.notifier != nil {
		n := fx.notification
		e.notifier.Send(n.Title, n.Body, n.Options)
	}
	if fx.publish && e.publish != nil {
		e.publish(view)
	}
	return view
}

// completeIfDueLocked performs the autonomous pomodoro phase transition
// when the running phase has no time left.
func (e *Engine) completeIfDueLocked(ctx context.Context, now int64, fx *effects) {
	if e.snap.Mode != model.ModePomodoro || e.snap.State != model.TimerRunning || e.snap.StartTimestamp == nil {
		return
	}
	if e.remaining(now) > 0 {
		return
	}

	// The phase ended when its remaining time ran out, not when we noticed.
	endedAt := *e.snap.StartTimestamp + e.snap.PomodoroRemainingMs
	duration := e.snap.PausedElapsed + e.snap.PomodoroRemainingMs
	finished := e.snap.PomodoroPhase
	next := finished.Next()

	fx.sessions = append(fx.sessions, model.SessionData{
		ID:        e.newID(),
		StartTime: e.sessionStart(endedAt, duration),
		EndTime:   endedAt,
		Duration:  duration,
		Mode:      model.ModePomodoro,
		Phase:     finished,
		Completed: true,
	})
	fx.notification = phaseNotification(finished)
	fx.publish = true

	e.snap.State = model.TimerFinished
	e.snap.PomodoroPhase = next
	e.snap.PomodoroRemainingMs = e.durations.forPhase(next)
	e.snap.PausedElapsed = 0
	e.snap.StartTimestamp = nil
	e.snap.SessionStart = 0
	e.persistLocked(ctx)

	e.logger.Info("pomodoro phase complete", "phase", finished, "next", next, "duration_ms", duration)
}

func phaseNotification(finished model.PomodoroPhase) *notify.Notification {
	opts := notify.Options{Tag: notificationTag, RequireInteraction: true}
	if finished == model.PhaseWork {
		return &notify.Notification{Title: "Focus session complete!", Body: "Great work! Time for a break.", Options: opts}
	}
	return &notify.Notification{Title: "Break is over!", Body: "Ready to focus again?", Options: opts}
}

func clampStart(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return ms
}

// Restore loads the persisted snapshot. A corrupt or missing snapshot
// leaves the engine idle.
func (e *Engine) Restore(ctx context.Context) View {
	e.mu.Lock()
	now := e.now()
	var fx effects

	snap, ok := store.Load(ctx, e.store, store.KeyTimerSnapshot, model.TimerSnapshot{}, e.logger)
	if ok {
		e.snap = snap
		if e.snap.State == model.TimerRunning {
			start := *e.snap.StartTimestamp
			if !e.credit || start > now {
				start = now
			}
			e.snap.StartTimestamp = &start
			e.persistLocked(ctx)
		}
		e.logger.Debug("timer snapshot restored", "state", e.snap.State, "mode", e.snap.Mode)
		e.completeIfDueLocked(ctx, now, &fx)
	}
	fx.publish = true
	view := e.viewLocked(now)
	e.mu.Unlock()
	return e.finish(ctx, view, fx)
}

// Start moves idle or finished to running. It is a no-op while running or
// paused.
func (e *Engine) Start(ctx context.Context) View {
	e.mu.Lock()
	now := e.now()
	var fx effects
	e.completeIfDueLocked(ctx, now, &fx)

	switch e.snap.State {
	case model.TimerIdle:
		e.snap.PausedElapsed = 0
		if e.snap.Mode == model.ModePomodoro {
			e.snap.PomodoroRemainingMs = e.durations.forPhase(e.snap.PomodoroPhase)
		}
	case model.TimerFinished:
		phaseTotal := e.durations.forPhase(e.snap.PomodoroPhase)
		sameUnfinished := e.snap.PomodoroRemainingMs > 0 && e.snap.PausedElapsed+e.snap.PomodoroRemainingMs == phaseTotal
		if !sameUnfinished {
			e.snap.PausedElapsed = 0
			e.snap.PomodoroRemainingMs = phaseTotal
		}
	default:
		view := e.viewLocked(now)
		e.mu.Unlock()
		return e.finish(ctx, view, fx)
	}

	start := now
	e.snap.State = model.TimerRunning
	e.snap.StartTimestamp = &start
	if e.snap.PausedElapsed == 0 || e.snap.SessionStart == 0 {
		e.snap.SessionStart = now - e.snap.PausedElapsed
	}
	e.persistLocked(ctx)
	fx.publish = true

	view := e.viewLocked(now)
	e.mu.Unlock()
	return e.finish(ctx, view, fx)
}

// Pause freezes elapsed and remaining time.
func (e *Engine) Pause(ctx context.Context) View {
	e.mu.Lock()
	now := e.now()
	var fx effects
	e.completeIfDueLocked(ctx, now, &fx)

	if e.snap.State == model.TimerRunning {
		delta := e.runningDelta(now)
		e.snap.PausedElapsed += delta
		if e.snap.Mode == model.ModePomodoro {
			e.snap.PomodoroRemainingMs -= delta
			if e.snap.PomodoroRemainingMs < 0 {
				e.snap.PomodoroRemainingMs = 0
			}
		}
		e.snap.State = model.TimerPaused
		e.snap.StartTimestamp = nil
		e.persistLocked(ctx)
		fx.publish = true
	}

	view := e.viewLocked(now)
	e.mu.Unlock()
	return e.finish(ctx, view, fx)
}

func (e *Engine) Resume(ctx context.Context) View {
	e.mu.Lock()
	now := e.now()
	var fx effects

	if e.snap.State == model.TimerPaused {
		start := now
		e.snap.State = model.TimerRunning
		e.snap.StartTimestamp = &start
		e.persistLocked(ctx)
		fx.publish = true
	}

	view := e.viewLocked(now)
	e.mu.Unlock()
	return e.finish(ctx, view, fx)
}

// Stop ends the current session and records the elapsed time as an
// incomplete session.
func (e *Engine) Stop(ctx context.Context) View {
	e.mu.Lock()
	now := e.now()
	var fx effects
	e.completeIfDueLocked(ctx, now, &fx)

	if e.snap.State != model.TimerIdle {
		elapsed := e.elapsed(now)
		if elapsed > 0 {
			session := model.SessionData{
				ID:        e.newID(),
				StartTime: e.sessionStart(now, elapsed),
				EndTime:   now,
				Duration:  elapsed,
				Mode:      e.snap.Mode,
				Completed: false,
			}
			if e.snap.Mode == model.ModePomodoro {
				session.Phase = e.snap.PomodoroPhase
			}
			fx.sessions = append(fx.sessions, session)
		}
		e.snap = e.idleSnapshot(e.snap.Mode)
		e.clearLocked(ctx)
		fx.publish = true
	}

	view := e.viewLocked(now)
	e.mu.Unlock()
	return e.finish(ctx, view, fx)
}

// Reset discards elapsed time without recording a session.
func (e *Engine) Reset(ctx context.Context) View {
	e.mu.Lock()
	now := e.now()

	e.snap = e.idleSnapshot(e.snap.Mode)
	e.clearLocked(ctx)

	view := e.viewLocked(now)
	e.mu.Unlock()
	return e.finish(ctx, view, effects{publish: true})
}

func (e *Engine) SetMode(ctx context.Context, mode model.TimerMode) (View, error) {
	if !mode.Valid() {
		return View{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	e.mu.Lock()
	now := e.now()
	if e.snap.State != model.TimerIdle {
		view := e.viewLocked(now)
		e.mu.Unlock()
		return view, ErrModeLocked
	}

	e.snap = e.idleSnapshot(mode)
	view := e.viewLocked(now)
	e.mu.Unlock()
	return e.finish(ctx, view, effects{publish: true}), nil
}

// SetDurations changes the pomodoro phase lengths. Only allowed while idle.
func (e *Engine) SetDurations(ctx context.Context, d Durations) (View, error) {
	if err := d.Validate(); err != nil {
		return View{}, err
	}

	e.mu.Lock()
	now := e.now()
	if e.snap.State != model.TimerIdle {
		view := e.viewLocked(now)
		e.mu.Unlock()
		return view, ErrModeLocked
	}

	e.durations = d
	e.snap = e.idleSnapshot(e.snap.Mode)
	view := e.viewLocked(now)
	e.mu.Unlock()
	return e.finish(ctx, view, effects{publish: true}), nil
}

// Tick evaluates the autonomous phase transition and returns the current
// view. It is safe to call at any rate.
func (e *Engine) Tick(ctx context.Context) View {
	e.mu.Lock()
	now := e.now()
	var fx effects
	e.completeIfDueLocked(ctx, now, &fx)
	if e.snap.State == model.TimerRunning {
		fx.publish = true
	}
	view := e.viewLocked(now)
	e.mu.Unlock()
	return e.finish(ctx, view, fx)
}

// View returns the current view without publishing ticks. Phase completion
// is still applied.
func (e *Engine) View(ctx context.Context) View {
	e.mu.Lock()
	now := e.now()
	var fx effects
	e.completeIfDueLocked(ctx, now, &fx)
	view := e.viewLocked(now)
	e.mu.Unlock()
	return e.finish(ctx, view, fx)
}

func (e *Engine) Snapshot() model.TimerSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.snap
	if snap.StartTimestamp != nil {
		start := *snap.StartTimestamp
		snap.StartTimestamp = &start
	}
	return snap
}

func (e *Engine) Durations() Durations {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.durations
}

// Run drives Tick at interval until ctx is done. The ticker only triggers
// re-rendering; all state comes from timestamps.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}
