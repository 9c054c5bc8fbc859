package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"focusbeat/backend/internal/clock"
	"focusbeat/backend/internal/logging"
	"focusbeat/backend/internal/model"
)

var (
	ErrUnknownMood   = errors.New("unknown mood")
	ErrEmptyPlaylist = errors.New("playlist is empty")
)

const DefaultProgressInterval = 250 * time.Millisecond

type Options struct {
	Clock     clock.Clock
	Playlists Playlists
	Player    Player
	// NewGraph creates the audio context on first play. A failure disables
	// the spatial path; playback continues without it.
	NewGraph         func() (*Graph, error)
	PanCycle         time.Duration
	FrameInterval    time.Duration
	ProgressInterval time.Duration
	Logger           hclog.Logger

	Mood        model.Mood
	Volume      int
	Is8DEnabled bool

	// Publish receives the state after every change and on progress polls
	// while playing.
	Publish func(model.AudioEngineState)
}

type Engine struct {
	mu        sync.Mutex
	clock     clock.Clock
	playlists Playlists
	player    Player
	newGraph  func() (*Graph, error)
	animator  *PanAnimator
	logger    hclog.Logger
	publish   func(model.AudioEngineState)
	interval  time.Duration

	graph          *Graph
	graphFailed    bool
	playback       model.PlaybackState
	mood           model.Mood
	index          int
	volume         int
	is8D           bool
	progressCancel context.CancelFunc
	pollers        sync.WaitGroup
	closed         bool
}

func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Playlists == nil {
		opts.Playlists = DefaultCatalog()
	}
	if opts.Player == nil {
		opts.Player = NewClockPlayer(opts.Clock, nil)
	}
	if opts.NewGraph == nil {
		opts.NewGraph = func() (*Graph, error) { return NewGraph(), nil }
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	mood := opts.Mood
	if !mood.Valid() {
		mood = model.MoodNeutral
	}

	return &Engine{
		clock:     opts.Clock,
		playlists: opts.Playlists,
		player:    opts.Player,
		newGraph:  opts.NewGraph,
		animator:  NewPanAnimator(opts.Clock, opts.PanCycle, opts.FrameInterval),
		logger:    logging.OrNop(opts.Logger),
		publish:   opts.Publish,
		interval:  opts.ProgressInterval,
		playback:  model.PlaybackStopped,
		mood:      mood,
		volume:    clampVolume(opts.Volume),
		is8D:      opts.Is8DEnabled,
	}
}

func (e *Engine) playlistLocked() model.Playlist {
	playlist, _ := e.playlists.Playlist(e.mood)
	return playlist
}

func (e *Engine) currentTrackLocked() (model.Track, bool) {
	tracks := e.playlistLocked().Tracks
	if len(tracks) == 0 {
		return model.Track{}, false
	}
	if e.index >= len(tracks) || e.index < 0 {
		e.index = 0
	}
	return tracks[e.index], true
}

func (e *Engine) stateLocked() model.AudioEngineState {
	state := model.AudioEngineState{
		Playback:       e.playback,
		IsPlaying:      e.playback == model.PlaybackPlaying,
		CurrentMood:    e.mood,
		Volume:         e.volume,
		Is8DEnabled:    e.is8D,
		SpatialCapable: !e.graphFailed,
	}
	if track, ok := e.currentTrackLocked(); ok {
		state.Track = &track
		state.TrackIndex = e.index
		if e.player.Loaded() == track.ID {
			position := e.player.Position()
			state.PositionSeconds = position.Seconds()
			if total := e.player.Duration(); total > 0 {
				state.Progress = min(100, 100*position.Seconds()/total.Seconds())
			}
		}
	}
	return state
}

func (e *Engine) emit(state model.AudioEngineState) model.AudioEngineState {
	if e.publish != nil {
		e.publish(state)
	}
	return state
}

// ensureGraphLocked creates the audio context on first use.
func (e *Engine) ensureGraphLocked() {
	if e.graph != nil || e.graphFailed {
		return
	}
	graph, err := e.newGraph()
	if err != nil || graph == nil {
		e.graphFailed = true
		e.logger.Warn("audio context unavailable, spatial audio disabled", "error", err)
		return
	}
	graph.SetGain(e.volume)
	graph.Reconnect(e.is8D)
	e.graph = graph
}

func (e *Engine) spatialActiveLocked() bool {
	return e.is8D && e.graph != nil && !e.graphFailed
}

// syncPanLocked runs the pan animation only while 8D is on and audio is
// playing.
func (e *Engine) syncPanLocked() {
	if e.spatialActiveLocked() && e.playback == model.PlaybackPlaying {
		e.animator.Start(e.graph)
		return
	}
	e.animator.Stop()
}

// loadLocked loads the current track. A track that fails to load is skipped
// in favor of the next one; after a full lap of failures it gives up.
func (e *Engine) loadLocked(ctx context.Context) error {
	tracks := e.playlistLocked().Tracks
	if len(tracks) == 0 {
		return ErrEmptyPlaylist
	}

	var lastErr error
	for attempt := 0; attempt < len(tracks); attempt++ {
		track, _ := e.currentTrackLocked()
		if e.player.Loaded() == track.ID {
			return nil
		}
		err := e.player.Load(ctx, track)
		if err == nil {
			return nil
		}
		lastErr = err
		e.logger.Warn("track failed to load, skipping", "track", track.ID, "error", err)
		e.index = (e.index + 1) % len(tracks)
	}
	return fmt.Errorf("no playable track in %s playlist: %w", e.mood, lastErr)
}

func (e *Engine) Play(ctx context.Context) model.AudioEngineState {
	e.mu.Lock()
	e.playLocked(ctx)
	state := e.stateLocked()
	e.mu.Unlock()
	return e.emit(state)
}

func (e *Engine) playLocked(ctx context.Context) {
	if e.closed {
		return
	}
	e.ensureGraphLocked()
	if e.graph != nil {
		if err := e.graph.Resume(); err != nil {
			e.logger.Warn("resume audio context", "error", err)
		}
	}

	if err := e.loadLocked(ctx); err != nil {
		e.logger.Error("playback halted", "error", err)
		e.stopLocked()
		return
	}
	if e.graph != nil && !e.graph.SourceConnected() {
		e.graph.ConnectSource()
	}
	if err := e.player.Play(); err != nil {
		e.logger.Warn("start playback", "error", err)
		e.stopLocked()
		return
	}

	e.playback = model.PlaybackPlaying
	e.startProgressLocked()
	e.syncPanLocked()
}

func (e *Engine) Pause(ctx context.Context) model.AudioEngineState {
	e.mu.Lock()
	if e.playback == model.PlaybackPlaying {
		e.player.Pause()
		e.playback = model.PlaybackPaused
		e.stopProgressLocked()
		e.syncPanLocked()
	}
	state := e.stateLocked()
	e.mu.Unlock()
	return e.emit(state)
}

func (e *Engine) Stop(ctx context.Context) model.AudioEngineState {
	e.mu.Lock()
	e.stopLocked()
	state := e.stateLocked()
	e.mu.Unlock()
	return e.emit(state)
}

func (e *Engine) stopLocked() {
	e.player.Stop()
	e.playback = model.PlaybackStopped
	e.stopProgressLocked()
	e.syncPanLocked()
}

func (e *Engine) Next(ctx context.Context) model.AudioEngineState {
	return e.step(ctx, 1)
}

func (e *Engine) Previous(ctx context.Context) model.AudioEngineState {
	return e.step(ctx, -1)
}

func (e *Engine) step(ctx context.Context, delta int) model.AudioEngineState {
	e.mu.Lock()
	e.stepLocked(ctx, delta)
	state := e.stateLocked()
	e.mu.Unlock()
	return e.emit(state)
}

// stepLocked moves the index with wraparound and reloads. Playback resumes
// on the new track if it was active.
func (e *Engine) stepLocked(ctx context.Context, delta int) {
	n := len(e.playlistLocked().Tracks)
	if n == 0 {
		return
	}
	e.index = wrapIndex(e.index+delta, n)

	wasPlaying := e.playback == model.PlaybackPlaying
	e.player.Stop()
	e.playback = model.PlaybackStopped
	if wasPlaying {
		e.playLocked(ctx)
		return
	}
	e.stopProgressLocked()
	e.syncPanLocked()
}

func wrapIndex(i, n int) int {
	return ((i % n) + n) % n
}

// SetVolume clamps level to [0, 100].
func (e *Engine) SetVolume(level int) model.AudioEngineState {
	e.mu.Lock()
	e.volume = clampVolume(level)
	if e.graph != nil {
		e.graph.SetGain(e.volume)
	}
	state := e.stateLocked()
	e.mu.Unlock()
	return e.emit(state)
}

// Set8DEnabled rewires the graph. Volume and position are untouched.
func (e *Engine) Set8DEnabled(enabled bool) model.AudioEngineState {
	e.mu.Lock()
	e.is8D = enabled
	if e.graph != nil {
		e.graph.Reconnect(e.spatialActiveLocked())
	}
	e.syncPanLocked()
	state := e.stateLocked()
	e.mu.Unlock()
	return e.emit(state)
}

// SetMood stops playback and switches to the first track of mood's
// playlist. The same mood is a no-op.
func (e *Engine) SetMood(ctx context.Context, mood model.Mood) (model.AudioEngineState, error) {
	if !mood.Valid() {
		return model.AudioEngineState{}, fmt.Errorf("%w: %q", ErrUnknownMood, mood)
	}

	e.mu.Lock()
	if mood == e.mood {
		state := e.stateLocked()
		e.mu.Unlock()
		return state, nil
	}
	e.stopLocked()
	e.mood = mood
	e.index = 0
	state := e.stateLocked()
	e.mu.Unlock()
	return e.emit(state), nil
}

// Poll samples playback progress and advances when the track has ended.
func (e *Engine) Poll(ctx context.Context) model.AudioEngineState {
	e.mu.Lock()
	if e.playback != model.PlaybackPlaying {
		state := e.stateLocked()
		e.mu.Unlock()
		return state
	}
	if e.player.Ended() {
		e.logger.Debug("track ended", "mood", e.mood, "index", e.index)
		e.stepLocked(ctx, 1)
	}
	state := e.stateLocked()
	e.mu.Unlock()
	return e.emit(state)
}

func (e *Engine) startProgressLocked() {
	if e.progressCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.progressCancel = cancel
	e.pollers.Add(1)
	go func() {
		defer e.pollers.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Poll(ctx)
			}
		}
	}()
}

// stopProgressLocked cancels the poller without waiting; the poller itself
// takes the engine lock.
func (e *Engine) stopProgressLocked() {
	if e.progressCancel != nil {
		e.progressCancel()
		e.progressCancel = nil
	}
}

func (e *Engine) State() model.AudioEngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) Playlist() model.Playlist {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playlistLocked()
}

// Graph returns the routing graph topology, or false before the audio
// context exists.
func (e *Engine) Graph() (Topology, bool) {
	e.mu.Lock()
	graph := e.graph
	e.mu.Unlock()
	if graph == nil {
		return Topology{}, false
	}
	return graph.Topology(), true
}

func (e *Engine) PanAnimating() bool {
	return e.animator.Running()
}

// Close stops playback and releases the audio context.
func (e *Engine) Close() {
	e.mu.Lock()
	e.stopLocked()
	e.closed = true
	if e.graph != nil {
		e.graph.Close()
	}
	e.mu.Unlock()
	e.pollers.Wait()
}
