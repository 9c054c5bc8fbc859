package audio

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"focusbeat/backend/internal/clock"
	"focusbeat/backend/internal/model"
)

type failingProber struct {
	mu    sync.Mutex
	bad   map[string]bool
	calls []string
}

func (p *failingProber) Probe(_ context.Context, src string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, src)
	if p.bad[src] {
		return errors.New("connection refused")
	}
	return nil
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	opts.Clock = fake
	if opts.Player == nil {
		opts.Player = NewClockPlayer(fake, nil)
	}
	if opts.ProgressInterval == 0 {
		opts.ProgressInterval = time.Hour
	}
	if opts.FrameInterval == 0 {
		opts.FrameInterval = time.Hour
	}
	engine := New(opts)
	t.Cleanup(engine.Close)
	return engine, fake
}

func TestSetVolumeClamps(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{level: -50, want: 0},
		{level: 0, want: 0},
		{level: 55, want: 55},
		{level: 100, want: 100},
		{level: 1000, want: 100},
	}

	engine, _ := newTestEngine(t, Options{Volume: 70})
	engine.Play(context.Background())

	for _, tt := range tests {
		state := engine.SetVolume(tt.level)
		if state.Volume != tt.want {
			t.Fatalf("SetVolume(%d) = %d, want %d", tt.level, state.Volume, tt.want)
		}
		if again := engine.SetVolume(state.Volume); again.Volume != tt.want {
			t.Fatalf("SetVolume not idempotent for %d", tt.level)
		}
		topology, _ := engine.Graph()
		if math.Abs(topology.Gain-float64(tt.want)/100) > 1e-9 {
			t.Fatalf("expected gain %v, got %v", float64(tt.want)/100, topology.Gain)
		}
	}
}

func TestNextPreviousWrapAround(t *testing.T) {
	engine, _ := newTestEngine(t, Options{Mood: model.MoodHappy})
	n := len(engine.Playlist().Tracks)
	ctx := context.Background()

	for i := 1; i < n; i++ {
		if got := engine.Next(ctx).TrackIndex; got != i {
			t.Fatalf("next step %d: got index %d", i, got)
		}
	}
	if got := engine.Next(ctx).TrackIndex; got != 0 {
		t.Fatalf("next at last index should wrap to 0, got %d", got)
	}
	if got := engine.Previous(ctx).TrackIndex; got != n-1 {
		t.Fatalf("previous at 0 should wrap to %d, got %d", n-1, got)
	}
	if got := engine.Previous(ctx).TrackIndex; got != n-2 {
		t.Fatalf("previous should decrement, got %d", got)
	}
}

func TestNextWhilePlayingKeepsPlaying(t *testing.T) {
	engine, _ := newTestEngine(t, Options{})
	ctx := context.Background()

	engine.Play(ctx)
	state := engine.Next(ctx)
	if !state.IsPlaying || state.TrackIndex != 1 {
		t.Fatalf("expected playing track 1, got %+v", state)
	}
	if state.Track.ID != engine.Playlist().Tracks[1].ID {
		t.Fatalf("expected track 1 loaded, got %s", state.Track.ID)
	}

	engine.Pause(ctx)
	state = engine.Next(ctx)
	if state.IsPlaying {
		t.Fatal("next while paused must not start playback")
	}
}

func TestSetMoodResetsIndex(t *testing.T) {
	engine, _ := newTestEngine(t, Options{Mood: model.MoodNeutral})
	ctx := context.Background()

	engine.Play(ctx)
	engine.Next(ctx)
	engine.Next(ctx)

	same, err := engine.SetMood(ctx, model.MoodNeutral)
	if err != nil {
		t.Fatalf("set same mood: %v", err)
	}
	if same.TrackIndex != 2 || !same.IsPlaying {
		t.Fatalf("same mood should be a no-op, got %+v", same)
	}

	state, err := engine.SetMood(ctx, model.MoodSad)
	if err != nil {
		t.Fatalf("set mood: %v", err)
	}
	if state.TrackIndex != 0 || state.IsPlaying || state.CurrentMood != model.MoodSad {
		t.Fatalf("expected stopped sad playlist at 0, got %+v", state)
	}
	want, _ := DefaultCatalog().Playlist(model.MoodSad)
	if diff := cmp.Diff(want, engine.Playlist()); diff != "" {
		t.Fatalf("active playlist mismatch (-want +got):\n%s", diff)
	}

	if _, err := engine.SetMood(ctx, "angry"); !errors.Is(err, ErrUnknownMood) {
		t.Fatalf("expected ErrUnknownMood, got %v", err)
	}
}

func TestPlayCreatesGraphLazily(t *testing.T) {
	engine, _ := newTestEngine(t, Options{})
	if _, ok := engine.Graph(); ok {
		t.Fatal("graph must not exist before the first play")
	}

	engine.Play(context.Background())
	topology, ok := engine.Graph()
	if !ok {
		t.Fatal("expected graph after play")
	}
	if topology.Suspended || !topology.SourceConnected || topology.Spatial {
		t.Fatalf("unexpected topology %+v", topology)
	}
	want := []Edge{{From: NodeSource, To: NodeGain}, {From: NodeGain, To: NodeDestination}}
	if diff := cmp.Diff(want, topology.Edges); diff != "" {
		t.Fatalf("direct edges mismatch (-want +got):\n%s", diff)
	}
}

func TestGraphFailureDisablesSpatialOnly(t *testing.T) {
	engine, _ := newTestEngine(t, Options{
		Is8DEnabled: true,
		NewGraph:    func() (*Graph, error) { return nil, errors.New("no audio device") },
	})

	state := engine.Play(context.Background())
	if !state.IsPlaying {
		t.Fatal("playback should continue without an audio context")
	}
	if state.SpatialCapable {
		t.Fatal("expected spatial capability disabled")
	}
	if engine.PanAnimating() {
		t.Fatal("pan animation must not run without a graph")
	}
}

func TestSet8DRewiresAndAnimates(t *testing.T) {
	engine, _ := newTestEngine(t, Options{Volume: 40})
	ctx := context.Background()

	engine.Set8DEnabled(true)
	if engine.PanAnimating() {
		t.Fatal("pan must not animate while not playing")
	}

	engine.Play(ctx)
	topology, _ := engine.Graph()
	if !topology.Spatial || topology.Limiter == nil {
		t.Fatalf("expected spatial path with limiter, got %+v", topology)
	}
	if diff := cmp.Diff(SpatialLimiter, *topology.Limiter); diff != "" {
		t.Fatalf("limiter mismatch (-want +got):\n%s", diff)
	}
	wantEdges := []Edge{
		{From: NodeSource, To: NodeGain},
		{From: NodeGain, To: NodeSpatializer},
		{From: NodeSpatializer, To: NodeLimiter},
		{From: NodeLimiter, To: NodeDestination},
	}
	if diff := cmp.Diff(wantEdges, topology.Edges); diff != "" {
		t.Fatalf("spatial edges mismatch (-want +got):\n%s", diff)
	}
	if !engine.PanAnimating() {
		t.Fatal("expected pan animation while playing with 8D")
	}

	before := engine.State()
	state := engine.Set8DEnabled(false)
	if state.Volume != before.Volume || state.TrackIndex != before.TrackIndex {
		t.Fatal("toggling 8D must not change volume or track")
	}
	topology, _ = engine.Graph()
	if topology.Spatial || topology.Limiter != nil || topology.Pan != 0 {
		t.Fatalf("expected direct path centered, got %+v", topology)
	}
	if engine.PanAnimating() {
		t.Fatal("pan animation should stop when 8D is disabled")
	}

	engine.Set8DEnabled(true)
	engine.Stop(ctx)
	if engine.PanAnimating() {
		t.Fatal("pan animation should stop with playback")
	}
	if topology, _ := engine.Graph(); topology.Pan != 0 {
		t.Fatalf("expected pan reset to center, got %v", topology.Pan)
	}
}

func TestTrackEndAutoAdvances(t *testing.T) {
	engine, fake := newTestEngine(t, Options{})
	ctx := context.Background()

	engine.Play(ctx)
	first := engine.Playlist().Tracks[0]
	fake.Advance(time.Duration(first.Duration)*time.Second - time.Second)
	if state := engine.Poll(ctx); state.TrackIndex != 0 || state.Progress <= 99 {
		t.Fatalf("expected near-end progress on track 0, got %+v", state)
	}

	fake.Advance(2 * time.Second)
	state := engine.Poll(ctx)
	if state.TrackIndex != 1 || !state.IsPlaying || state.Progress != 0 {
		t.Fatalf("expected auto-advance to track 1, got %+v", state)
	}
}

func TestLoadFailureSkipsToNextTrack(t *testing.T) {
	playlist, _ := DefaultCatalog().Playlist(model.MoodNeutral)
	prober := &failingProber{bad: map[string]bool{playlist.Tracks[0].Src: true}}
	fake := clock.NewFake(time.Now())
	engine, _ := newTestEngine(t, Options{Player: NewClockPlayer(fake, prober)})

	state := engine.Play(context.Background())
	if !state.IsPlaying || state.TrackIndex != 1 {
		t.Fatalf("expected playback on track 1 after skip, got %+v", state)
	}
}

func TestAllTracksFailingStopsPlayback(t *testing.T) {
	playlist, _ := DefaultCatalog().Playlist(model.MoodNeutral)
	bad := map[string]bool{}
	for _, track := range playlist.Tracks {
		bad[track.Src] = true
	}
	prober := &failingProber{bad: bad}
	engine, _ := newTestEngine(t, Options{Player: NewClockPlayer(clock.NewFake(time.Now()), prober)})

	state := engine.Play(context.Background())
	if state.IsPlaying || state.Playback != model.PlaybackStopped {
		t.Fatalf("expected stopped after a full lap of failures, got %+v", state)
	}
	if len(prober.calls) != len(playlist.Tracks) {
		t.Fatalf("expected one probe per track, got %d", len(prober.calls))
	}
}

func TestPauseFreezesProgress(t *testing.T) {
	engine, fake := newTestEngine(t, Options{})
	ctx := context.Background()

	engine.Play(ctx)
	fake.Advance(30 * time.Second)
	paused := engine.Pause(ctx)
	fake.Advance(time.Minute)
	if got := engine.State().PositionSeconds; got != paused.PositionSeconds || got != 30 {
		t.Fatalf("expected position frozen at 30s, got %v", got)
	}

	engine.Play(ctx)
	fake.Advance(10 * time.Second)
	if got := engine.State().PositionSeconds; got != 40 {
		t.Fatalf("expected position 40s after resume, got %v", got)
	}
}

func TestPublishOnChange(t *testing.T) {
	var mu sync.Mutex
	var published []model.AudioEngineState
	engine, _ := newTestEngine(t, Options{Publish: func(s model.AudioEngineState) {
		mu.Lock()
		published = append(published, s)
		mu.Unlock()
	}})

	engine.Play(context.Background())
	engine.SetVolume(10)

	mu.Lock()
	defer mu.Unlock()
	if len(published) != 2 || !published[0].IsPlaying || published[1].Volume != 10 {
		t.Fatalf("unexpected published states %+v", published)
	}
}

func TestCloseStopsEverything(t *testing.T) {
	engine, _ := newTestEngine(t, Options{Is8DEnabled: true, ProgressInterval: time.Millisecond, FrameInterval: time.Millisecond})
	engine.Play(context.Background())
	engine.Close()

	if engine.PanAnimating() {
		t.Fatal("pan animation still running after close")
	}
	if state := engine.Play(context.Background()); state.IsPlaying {
		t.Fatal("play after close should be ignored")
	}
	if topology, _ := engine.Graph(); len(topology.Edges) != 0 {
		t.Fatalf("expected graph torn down, got %+v", topology)
	}
	if engine.State().Playback != model.PlaybackStopped {
		t.Fatal("expected stopped after close")
	}
}
