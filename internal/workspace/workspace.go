// Package workspace assembles one profile's app instance: timer, audio, ads,
// stats and preferences over the profile's own key namespace.
package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"focusbeat/backend/internal/ads"
	"focusbeat/backend/internal/audio"
	"focusbeat/backend/internal/clock"
	"focusbeat/backend/internal/config"
	"focusbeat/backend/internal/events"
	"focusbeat/backend/internal/logging"
	"focusbeat/backend/internal/model"
	"focusbeat/backend/internal/notify"
	"focusbeat/backend/internal/stats"
	"focusbeat/backend/internal/store"
	"focusbeat/backend/internal/timer"
)

// Options are shared by every workspace a Manager creates.
type Options struct {
	Clock     clock.Clock
	Store     store.Store
	Playlists audio.Playlists
	// Prober checks track sources before playback. Nil skips probing.
	Prober    audio.Prober
	Providers []ads.Provider
	Slots     []model.AdSlotConfig
	Location  *time.Location
	Logger    hclog.Logger

	Timer config.TimerConfig
	Audio config.AudioConfig
	Ads   config.AdsConfig
}

// AdSlotEvent is the payload of an ad slot event.
type AdSlotEvent struct {
	SlotID string            `json:"slotId"`
	State  model.AdSlotState `json:"state"`
}

type Workspace struct {
	ProfileID     string
	Events        *events.Hub
	Timer         *timer.Engine
	Audio         *audio.Engine
	Ads           *ads.Orchestrator
	Stats         *stats.Recorder
	Notifications *notify.Gate

	clock  clock.Clock
	store  store.Store
	logger hclog.Logger

	prefsMu sync.Mutex
	prefs   model.Preferences

	cancel    context.CancelFunc
	done      sync.WaitGroup
	closeOnce sync.Once
}

// New builds and restores the workspace for profileID, then starts its
// timer ticker. Close must be called to release it.
func New(ctx context.Context, profileID string, opts Options) (*Workspace, error) {
	if profileID == "" {
		return nil, fmt.Errorf("workspace needs a profile id")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("workspace needs a store")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	logger := logging.OrNop(opts.Logger).With("profile", profileID)
	ns := store.Namespaced(opts.Store, profileID)

	prefs, _ := store.Load(ctx, ns, store.KeyPreferences, model.DefaultPreferences(), logger.Named("store"))

	hub := events.NewHub(0)
	w := &Workspace{
		ProfileID:     profileID,
		Events:        hub,
		Stats:         stats.NewRecorder(ns, opts.Location, logger.Named("stats")),
		Notifications: notify.NewGate(notify.HubSender{Hub: hub, Logger: logger.Named("notify")}, false),
		clock:         opts.Clock,
		store:         ns,
		logger:        logger,
		prefs:         prefs,
	}

	w.Timer = timer.New(timer.Options{
		Clock:             opts.Clock,
		Store:             ns,
		Sessions:          w.Stats,
		Notifier:          w.Notifications,
		Logger:            logger.Named("timer"),
		Durations:         timer.Durations{Work: opts.Timer.WorkDuration, Break: opts.Timer.BreakDuration},
		InitialMode:       prefs.TimerMode,
		CreditOfflineTime: opts.Timer.CreditOfflineTime,
		Publish:           func(v timer.View) { hub.Publish(events.KindTimer, v) },
		OnSession:         func(s model.SessionData) { hub.Publish(events.KindSession, s) },
	})
	restored := w.Timer.Restore(ctx)
	if restored.Mode != prefs.TimerMode {
		w.updatePreferences(ctx, func(p *model.Preferences) { p.TimerMode = restored.Mode })
	}

	w.Audio = audio.New(audio.Options{
		Clock:            opts.Clock,
		Playlists:        opts.Playlists,
		Player:           audio.NewClockPlayer(opts.Clock, opts.Prober),
		PanCycle:         opts.Audio.PanCycle,
		FrameInterval:    opts.Audio.FrameInterval,
		ProgressInterval: opts.Audio.ProgressInterval,
		Logger:           logger.Named("audio"),
		Mood:             prefs.SelectedMood,
		Volume:           prefs.Volume,
		Is8DEnabled:      prefs.Is8DEnabled,
		Publish:          func(s model.AudioEngineState) { hub.Publish(events.KindAudio, s) },
	})

	enabled := make([]model.ProviderID, 0, len(opts.Ads.EnabledProviders))
	for _, id := range opts.Ads.EnabledProviders {
		enabled = append(enabled, model.ProviderID(id))
	}
	// mobile_limit = 0 in config switches mobile ads off.
	mobileLimit := opts.Ads.MobileLimit
	if mobileLimit <= 0 {
		mobileLimit = ads.MobileAdsDisabled
	}
	w.Ads = ads.New(ads.Options{
		Slots:            opts.Slots,
		Providers:        opts.Providers,
		EnabledProviders: enabled,
		Breakpoint:       opts.Ads.Breakpoint,
		MobileLimit:      mobileLimit,
		LoadTimeout:      opts.Ads.LoadTimeout,
		RootMargin:       opts.Ads.RootMargin,
		Page:             opts.Ads.Page,
		Logger:           logger.Named("ads"),
	})
	w.Ads.Subscribe("", func(slotID string, state model.AdSlotState) {
		hub.Publish(events.KindAdSlot, AdSlotEvent{SlotID: slotID, State: state})
	})

	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done.Add(1)
	go func() {
		defer w.done.Done()
		w.Timer.Run(runCtx, opts.Timer.TickInterval)
	}()

	logger.Debug("workspace ready", "mode", restored.Mode, "state", restored.State, "mood", prefs.SelectedMood)
	return w, nil
}

func (w *Workspace) Preferences() model.Preferences {
	w.prefsMu.Lock()
	defer w.prefsMu.Unlock()
	return w.prefs
}

func (w *Workspace) updatePreferences(ctx context.Context, change func(*model.Preferences)) {
	w.prefsMu.Lock()
	defer w.prefsMu.Unlock()

	next := w.prefs
	change(&next)
	if next == w.prefs {
		return
	}
	w.prefs = next
	if err := store.Save(ctx, w.store, store.KeyPreferences, next); err != nil {
		w.logger.Warn("save preferences failed", "error", err)
	}
}

// SetTimerMode switches the timer mode and remembers it.
func (w *Workspace) SetTimerMode(ctx context.Context, mode model.TimerMode) (timer.View, error) {
	view, err := w.Timer.SetMode(ctx, mode)
	if err != nil {
		return view, err
	}
	w.updatePreferences(ctx, func(p *model.Preferences) { p.TimerMode = view.Mode })
	return view, nil
}

func (w *Workspace) SetMood(ctx context.Context, mood model.Mood) (model.AudioEngineState, error) {
	state, err := w.Audio.SetMood(ctx, mood)
	if err != nil {
		return state, err
	}
	w.updatePreferences(ctx, func(p *model.Preferences) { p.SelectedMood = state.CurrentMood })
	return state, nil
}

func (w *Workspace) SetVolume(ctx context.Context, level int) model.AudioEngineState {
	state := w.Audio.SetVolume(level)
	w.updatePreferences(ctx, func(p *model.Preferences) { p.Volume = state.Volume })
	return state
}

func (w *Workspace) Set8DEnabled(ctx context.Context, enabled bool) model.AudioEngineState {
	state := w.Audio.Set8DEnabled(enabled)
	w.updatePreferences(ctx, func(p *model.Preferences) { p.Is8DEnabled = state.Is8DEnabled })
	return state
}

// Now is the workspace clock's current time.
func (w *Workspace) Now() time.Time {
	return w.clock.Now()
}

// Close stops the ticker, audio and ad loads and ends event subscriptions.
// The persisted timer snapshot is left in place for the next session.
func (w *Workspace) Close() {
	w.closeOnce.Do(func() {
		w.cancel()
		w.done.Wait()
		w.Audio.Close()
		w.Ads.Destroy()
		w.Events.Close()
		w.logger.Debug("workspace closed")
	})
}
