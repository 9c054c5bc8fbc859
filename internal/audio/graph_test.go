package audio

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"focusbeat/backend/internal/clock"
	"focusbeat/backend/internal/model"
)

func TestPanAtFollowsSine(t *testing.T) {
	cycle := 8 * time.Second
	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{elapsed: 0, want: 0},
		{elapsed: 2 * time.Second, want: 1},
		{elapsed: 4 * time.Second, want: 0},
		{elapsed: 6 * time.Second, want: -1},
		{elapsed: 8 * time.Second, want: 0},
		{elapsed: -time.Second, want: 0},
	}

	for _, tt := range tests {
		if got := PanAt(tt.elapsed, cycle); math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("PanAt(%s) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}

func TestPanAnimatorSamplesElapsedTime(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	graph := NewGraph()
	graph.Reconnect(true)
	animator := NewPanAnimator(fake, 12*time.Second, time.Hour)

	animator.Start(graph)
	defer animator.Stop()

	fake.Advance(3 * time.Second)
	animator.Frame()
	if got := graph.Pan(); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected pan 1 at a quarter cycle, got %v", got)
	}

	// Frames skipped in between do not change the sampled value.
	fake.Advance(6 * time.Second)
	animator.Frame()
	if got := graph.Pan(); math.Abs(got+1) > 1e-9 {
		t.Fatalf("expected pan -1 at three quarters, got %v", got)
	}

	animator.Stop()
	if graph.Pan() != 0 {
		t.Fatalf("expected pan centered after stop, got %v", graph.Pan())
	}
	if animator.Running() {
		t.Fatal("animator still running after stop")
	}
}

func TestPanAnimatorRejectsOutOfRangeCycle(t *testing.T) {
	if got := NewPanAnimator(nil, 30*time.Second, 0).Cycle(); got != DefaultPanCycle {
		t.Fatalf("expected default cycle, got %s", got)
	}
	if got := NewPanAnimator(nil, 6*time.Second, 0).Cycle(); got != 6*time.Second {
		t.Fatalf("expected 6s cycle kept, got %s", got)
	}
}

func TestReconnectRewiresFully(t *testing.T) {
	graph := NewGraph()
	graph.ConnectSource()
	graph.SetGain(150)
	if graph.Gain() != 1 {
		t.Fatalf("expected gain clamped to 1, got %v", graph.Gain())
	}

	for _, spatial := range []bool{true, false, true, true} {
		graph.Reconnect(spatial)
		topology := graph.Topology()
		if topology.Spatial != spatial {
			t.Fatalf("expected spatial=%v", spatial)
		}
		want := 2
		if spatial {
			want = 4
		}
		if len(topology.Edges) != want {
			t.Fatalf("spatial=%v: expected %d edges, got %+v", spatial, want, topology.Edges)
		}
		if topology.Edges[0] != (Edge{From: NodeSource, To: NodeGain}) {
			t.Fatalf("source must always feed gain, got %+v", topology.Edges[0])
		}
		if last := topology.Edges[len(topology.Edges)-1]; last.To != NodeDestination {
			t.Fatalf("chain must end at destination, got %+v", last)
		}
	}
	if graph.Reconnects() != 4 {
		t.Fatalf("expected 4 reconnects, got %d", graph.Reconnects())
	}

	graph.Reconnect(false)
	graph.SetPan(0.7)
	if graph.Pan() != 0 {
		t.Fatal("pan must stay centered on the direct path")
	}
}

const validCatalog = `
[[playlists]]
mood = "happy"
tracks = [
  { id = "h1", title = "One", artist = "A", src = "/a/h1.mp3", duration = 120 },
  { id = "h2", title = "Two", artist = "A", src = "/a/h2.mp3", duration = 120 },
  { id = "h3", title = "Three", artist = "A", src = "/a/h3.mp3", duration = 120 },
]

[[playlists]]
mood = "neutral"
tracks = [
  { id = "n1", title = "One", artist = "B", src = "/b/n1.mp3", duration = 90 },
  { id = "n2", title = "Two", artist = "B", src = "/b/n2.mp3", duration = 90 },
  { id = "n3", title = "Three", artist = "B", src = "/b/n3.mp3", duration = 90 },
]

[[playlists]]
mood = "sad"
tracks = [
  { id = "s1", title = "One", artist = "C", src = "/c/s1.mp3", duration = 60 },
  { id = "s2", title = "Two", artist = "C", src = "/c/s2.mp3", duration = 60 },
  { id = "s3", title = "Three", artist = "C", src = "/c/s3.mp3", duration = 60 },
]
`

func TestParseCatalog(t *testing.T) {
	playlists, err := ParseCatalog([]byte(validCatalog))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(playlists) != 3 || playlists[model.MoodSad].Tracks[2].ID != "s3" {
		t.Fatalf("unexpected playlists %+v", playlists)
	}

	short := strings.Replace(validCatalog, `  { id = "s3", title = "Three", artist = "C", src = "/c/s3.mp3", duration = 60 },`+"\n", "", 1)
	if _, err := ParseCatalog([]byte(short)); err == nil {
		t.Fatal("expected a two-track playlist to be rejected")
	}

	missingMood := validCatalog[:strings.Index(validCatalog, "[[playlists]]\nmood = \"sad\"")]
	if _, err := ParseCatalog([]byte(missingMood)); err == nil {
		t.Fatal("expected a catalog without sad playlist to be rejected")
	}

	if _, err := ParseCatalog([]byte("playlists = 3")); err == nil {
		t.Fatal("expected malformed catalog to be rejected")
	}
}

func TestDefaultCatalogIsValid(t *testing.T) {
	catalog := DefaultCatalog()
	for _, mood := range model.Moods {
		playlist, ok := catalog.Playlist(mood)
		if !ok {
			t.Fatalf("missing playlist for %s", mood)
		}
		if err := playlist.Validate(); err != nil {
			t.Fatalf("invalid default playlist: %v", err)
		}
	}
}

func TestCatalogReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	if err := os.WriteFile(path, []byte(validCatalog), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog, err := LoadCatalog(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := os.WriteFile(path, []byte("not = [valid"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := catalog.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if playlist, ok := catalog.Playlist(model.MoodHappy); !ok || playlist.Tracks[0].ID != "h1" {
		t.Fatalf("expected previous catalog kept, got %+v", playlist)
	}
}

func TestCatalogWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	if err := os.WriteFile(path, []byte(validCatalog), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog, err := LoadCatalog(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := make(chan error, 1)
	go func() { errs <- catalog.Watch(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	updated := strings.ReplaceAll(validCatalog, `id = "h1"`, `id = "h1-remaster"`)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if playlist, _ := catalog.Playlist(model.MoodHappy); playlist.Tracks[0].ID == "h1-remaster" {
			cancel()
			if err := <-errs; err != nil {
				t.Fatalf("watch: %v", err)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("catalog was not reloaded after the file changed")
}

func TestHTTPProber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		if r.URL.Path == "/missing.mp3" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := NewHTTPProber(time.Second)
	ctx := context.Background()
	if err := prober.Probe(ctx, server.URL+"/ok.mp3"); err != nil {
		t.Fatalf("expected ok probe, got %v", err)
	}
	if err := prober.Probe(ctx, server.URL+"/missing.mp3"); err == nil {
		t.Fatal("expected 404 to fail the probe")
	}
	if err := prober.Probe(ctx, "/audio/local.mp3"); err != nil {
		t.Fatalf("relative sources should pass, got %v", err)
	}
}
