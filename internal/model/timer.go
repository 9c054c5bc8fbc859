package model

import (
	"errors"
	"fmt"
	"time"
)

type TimerState string

const (
	TimerIdle     TimerState = "idle"
	TimerRunning  TimerState = "running"
	TimerPaused   TimerState = "paused"
	TimerFinished TimerState = "finished"
)

type TimerMode string

const (
	ModeStopwatch TimerMode = "stopwatch"
	ModePomodoro  TimerMode = "pomodoro"
)

type PomodoroPhase string

const (
	PhaseWork  PomodoroPhase = "work"
	PhaseBreak PomodoroPhase = "break"
)

const (
	DefaultWorkDuration  = 25 * time.Minute
	DefaultBreakDuration = 5 * time.Minute
)

func (m TimerMode) Valid() bool {
	return m == ModeStopwatch || m == ModePomodoro
}

func (p PomodoroPhase) Valid() bool {
	return p == PhaseWork || p == PhaseBreak
}

func (p PomodoroPhase) Next() PomodoroPhase {
	if p == PhaseWork {
		return PhaseBreak
	}
	return PhaseWork
}

func (s TimerState) Valid() bool {
	switch s {
	case TimerIdle, TimerRunning, TimerPaused, TimerFinished:
		return true
	}
	return false
}

// TimerSnapshot is the persisted timer record. Timestamps are unix
// milliseconds so a snapshot survives a process restart.
type TimerSnapshot struct {
	State               TimerState    `json:"state"`
	Mode                TimerMode     `json:"mode"`
	StartTimestamp      *int64        `json:"startTimestamp"`
	PausedElapsed       int64         `json:"pausedElapsed"`
	PomodoroPhase       PomodoroPhase `json:"pomodoroPhase"`
	PomodoroRemainingMs int64         `json:"pomodoroRemainingMs"`
	// SessionStart is when the current session was first started, before
	// any pauses. Zero for snapshots written before it existed.
	SessionStart int64 `json:"sessionStart,omitempty"`
}

// MaxTimerDurationMs bounds every persisted duration. Anything larger is
// treated as corrupt so elapsed arithmetic cannot overflow.
const MaxTimerDurationMs = int64(10 * 366 * 24 * time.Hour / time.Millisecond)

var ErrInvalidSnapshot = errors.New("invalid timer snapshot")

func (s TimerSnapshot) Validate() error {
	if !s.State.Valid() {
		return fmt.Errorf("%w: state %q", ErrInvalidSnapshot, s.State)
	}
	if !s.Mode.Valid() {
		return fmt.Errorf("%w: mode %q", ErrInvalidSnapshot, s.Mode)
	}
	if !s.PomodoroPhase.Valid() {
		return fmt.Errorf("%w: phase %q", ErrInvalidSnapshot, s.PomodoroPhase)
	}
	if (s.StartTimestamp != nil) != (s.State == TimerRunning) {
		return fmt.Errorf("%w: startTimestamp must be set exactly when running", ErrInvalidSnapshot)
	}
	if s.StartTimestamp != nil && *s.StartTimestamp < 0 {
		return fmt.Errorf("%w: negative startTimestamp", ErrInvalidSnapshot)
	}
	if s.PausedElapsed < 0 || s.PomodoroRemainingMs < 0 || s.SessionStart < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidSnapshot)
	}
	if s.PausedElapsed > MaxTimerDurationMs || s.PomodoroRemainingMs > MaxTimerDurationMs {
		return fmt.Errorf("%w: duration out of range", ErrInvalidSnapshot)
	}
	return nil
}

// SessionData is an immutable record of one timed session.
type SessionData struct {
	ID        string        `json:"id"`
	StartTime int64         `json:"startTime"`
	EndTime   int64         `json:"endTime"`
	Duration  int64         `json:"duration"`
	Mode      TimerMode     `json:"mode"`
	Phase     PomodoroPhase `json:"phase,omitempty"`
	Completed bool          `json:"completed"`
}

var ErrInvalidSession = errors.New("invalid session")

func (s SessionData) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSession)
	}
	if !s.Mode.Valid() {
		return fmt.Errorf("%w: mode %q", ErrInvalidSession, s.Mode)
	}
	if s.Phase != "" && !s.Phase.Valid() {
		return fmt.Errorf("%w: phase %q", ErrInvalidSession, s.Phase)
	}
	if s.Duration < 0 || s.StartTime < 0 || s.EndTime < s.StartTime {
		return fmt.Errorf("%w: inconsistent times", ErrInvalidSession)
	}
	return nil
}

type DailyStats struct {
	Date         string        `json:"date"`
	TotalFocusMs int64         `json:"totalFocusMs"`
	SessionCount int           `json:"sessionCount"`
	Sessions     []SessionData `json:"sessions"`
}

const DateLayout = "2006-01-02"

func (d DailyStats) Validate() error {
	if _, err := time.Parse(DateLayout, d.Date); err != nil {
		return fmt.Errorf("invalid daily stats date %q: %w", d.Date, err)
	}
	if d.TotalFocusMs < 0 || d.SessionCount < 0 {
		return fmt.Errorf("invalid daily stats totals for %s", d.Date)
	}
	for _, session := range d.Sessions {
		if err := session.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// StatsBook is the persisted map of date to stats.
type StatsBook map[string]DailyStats

func (b StatsBook) Validate() error {
	for date, day := range b {
		if day.Date != date {
			return fmt.Errorf("daily stats keyed %s holds date %s", date, day.Date)
		}
		if err := day.Validate(); err != nil {
			return err
		}
	}
	return nil
}
