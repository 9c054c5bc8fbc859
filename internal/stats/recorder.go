// Package stats keeps the per-day focus totals built from finished timer
// sessions.
package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"focusbeat/backend/internal/logging"
	"focusbeat/backend/internal/model"
	"focusbeat/backend/internal/store"
)

const MaxRangeDays = 90

type Recorder struct {
	mu     sync.Mutex
	store  store.Store
	loc    *time.Location
	logger hclog.Logger
}

func NewRecorder(s store.Store, loc *time.Location, logger hclog.Logger) *Recorder {
	if loc == nil {
		loc = time.Local
	}
	return &Recorder{store: s, loc: loc, logger: logging.OrNop(logger)}
}

// DateKey is the local calendar date of a unix-millisecond timestamp.
func DateKey(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format(model.DateLayout)
}

// Record appends session to its day bucket and stores it as the last
// session. A session id already present in the bucket is not counted again.
func (r *Recorder) Record(ctx context.Context, session model.SessionData) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("record session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	book := r.loadBook(ctx)
	date := DateKey(session.StartTime, r.loc)
	day, ok := book[date]
	if !ok {
		day = model.DailyStats{Date: date, Sessions: []model.SessionData{}}
	}
	for _, existing := range day.Sessions {
		if existing.ID == session.ID {
			return nil
		}
	}

	day.TotalFocusMs += session.Duration
	day.SessionCount++
	day.Sessions = append(day.Sessions, session)
	book[date] = day

	if err := store.Save(ctx, r.store, store.KeyDailyStats, book); err != nil {
		return err
	}
	if err := store.Save(ctx, r.store, store.KeyLastSession, session); err != nil {
		return err
	}
	r.logger.Debug("session recorded", "date", date, "duration_ms", session.Duration, "completed", session.Completed)
	return nil
}

func (r *Recorder) Day(ctx context.Context, date string) model.DailyStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	if day, ok := r.loadBook(ctx)[date]; ok {
		return day
	}
	return model.DailyStats{Date: date, Sessions: []model.SessionData{}}
}

func (r *Recorder) Today(ctx context.Context, now time.Time) model.DailyStats {
	return r.Day(ctx, now.In(r.loc).Format(model.DateLayout))
}

// Range returns days consecutive days ending at end, oldest first. Days
// without sessions are included with zero totals.
func (r *Recorder) Range(ctx context.Context, end time.Time, days int) []model.DailyStats {
	if days <= 0 {
		days = 7
	}
	if days > MaxRangeDays {
		days = MaxRangeDays
	}

	r.mu.Lock()
	book := r.loadBook(ctx)
	r.mu.Unlock()

	endDay := end.In(r.loc)
	out := make([]model.DailyStats, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := endDay.AddDate(0, 0, -i).Format(model.DateLayout)
		day, ok := book[date]
		if !ok {
			day = model.DailyStats{Date: date, Sessions: []model.SessionData{}}
		}
		out = append(out, day)
	}
	return out
}

// Streak counts consecutive days, ending today or yesterday, that hold at
// least one completed session.
func (r *Recorder) Streak(ctx context.Context, now time.Time) int {
	r.mu.Lock()
	book := r.loadBook(ctx)
	r.mu.Unlock()

	day := now.In(r.loc)
	if !hasCompleted(book[day.Format(model.DateLayout)]) {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for hasCompleted(book[day.Format(model.DateLayout)]) {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

func (r *Recorder) LastSession(ctx context.Context) (model.SessionData, bool) {
	return store.Load(ctx, r.store, store.KeyLastSession, model.SessionData{}, r.logger)
}

func (r *Recorder) loadBook(ctx context.Context) model.StatsBook {
	book, _ := store.Load(ctx, r.store, store.KeyDailyStats, model.StatsBook{}, r.logger)
	if book == nil {
		book = model.StatsBook{}
	}
	return book
}

func hasCompleted(day model.DailyStats) bool {
	for _, session := range day.Sessions {
		if session.Completed {
			return true
		}
	}
	return false
}
