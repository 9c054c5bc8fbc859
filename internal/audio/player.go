package audio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"focusbeat/backend/internal/clock"
	"focusbeat/backend/internal/model"
)

var ErrTrackUnavailable = errors.New("track unavailable")

// Player is the media element the graph's source node reads from.
type Player interface {
	// Load replaces the current track and rewinds to the start.
	Load(ctx context.Context, track model.Track) error
	Play() error
	Pause()
	// Stop pauses and rewinds.
	Stop()
	Loaded() string
	Position() time.Duration
	Duration() time.Duration
	Ended() bool
}

// Prober checks that a track source can be fetched before playback.
type Prober interface {
	Probe(ctx context.Context, src string) error
}

// ClockPlayer tracks playback position from the clock. Position is derived
// from the last play timestamp, the same way the timer derives elapsed time.
type ClockPlayer struct {
	clock  clock.Clock
	prober Prober

	mu       sync.Mutex
	track    *model.Track
	playing  bool
	since    time.Time
	position time.Duration
}

func NewClockPlayer(clk clock.Clock, prober Prober) *ClockPlayer {
	if clk == nil {
		clk = clock.Real{}
	}
	return &ClockPlayer{clock: clk, prober: prober}
}

func (p *ClockPlayer) Load(ctx context.Context, track model.Track) error {
	if track.Src == "" {
		return fmt.Errorf("%w: %s has no source", ErrTrackUnavailable, track.ID)
	}
	if p.prober != nil {
		if err := p.prober.Probe(ctx, track.Src); err != nil {
			p.mu.Lock()
			p.track = nil
			p.playing = false
			p.position = 0
			p.mu.Unlock()
			return fmt.Errorf("%w: %s: %v", ErrTrackUnavailable, track.ID, err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	loaded := track
	p.track = &loaded
	p.playing = false
	p.position = 0
	return nil
}

func (p *ClockPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return fmt.Errorf("%w: nothing loaded", ErrTrackUnavailable)
	}
	if !p.playing {
		p.playing = true
		p.since = p.clock.Now()
	}
	return nil
}

func (p *ClockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.position = p.positionLocked()
		p.playing = false
	}
}

func (p *ClockPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.position = 0
}

func (p *ClockPlayer) Loaded() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return ""
	}
	return p.track.ID
}

func (p *ClockPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *ClockPlayer) positionLocked() time.Duration {
	position := p.position
	if p.playing {
		if delta := p.clock.Now().Sub(p.since); delta > 0 {
			position += delta
		}
	}
	if total := p.durationLocked(); total > 0 && position > total {
		position = total
	}
	return position
}

func (p *ClockPlayer) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.durationLocked()
}

func (p *ClockPlayer) durationLocked() time.Duration {
	if p.track == nil {
		return 0
	}
	return time.Duration(p.track.Duration) * time.Second
}

func (p *ClockPlayer) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.durationLocked()
	return total > 0 && p.positionLocked() >= total
}

// HTTPProber issues a HEAD request for absolute http(s) sources. Relative
// sources are served by the UI host and always pass.
type HTTPProber struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProber{Client: &http.Client{Timeout: timeout}, Timeout: timeout}
}

func (p *HTTPProber) Probe(ctx context.Context, src string) error {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, src, nil)
	if err != nil {
		return err
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s: status %d", src, resp.StatusCode)
	}
	return nil
}
