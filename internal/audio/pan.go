package audio

import (
	"context"
	"math"
	"sync"
	"time"

	"focusbeat/backend/internal/clock"
)

const (
	DefaultPanCycle      = 8 * time.Second
	MinPanCycle          = 6 * time.Second
	MaxPanCycle          = 12 * time.Second
	DefaultFrameInterval = 16 * time.Millisecond
)

// PanAt is the spatializer position elapsed into a pan animation with the
// given cycle period.
func PanAt(elapsed, cycle time.Duration) float64 {
	if cycle <= 0 {
		cycle = DefaultPanCycle
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Sin(2 * math.Pi * elapsed.Seconds() / cycle.Seconds())
}

// PanAnimator samples PanAt once per frame and writes it to a graph. The
// position is a function of time since Start, never accumulated per frame.
type PanAnimator struct {
	clock    clock.Clock
	cycle    time.Duration
	interval time.Duration

	mu        sync.Mutex
	graph     *Graph
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewPanAnimator(clk clock.Clock, cycle, interval time.Duration) *PanAnimator {
	if clk == nil {
		clk = clock.Real{}
	}
	if cycle < MinPanCycle || cycle > MaxPanCycle {
		cycle = DefaultPanCycle
	}
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &PanAnimator{clock: clk, cycle: cycle, interval: interval}
}

// Start begins animating graph. It is a no-op while already running.
func (a *PanAnimator) Start(graph *Graph) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil || graph == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.graph = graph
	a.startedAt = a.clock.Now()
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.loop(ctx, a.done)
}

func (a *PanAnimator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Frame()
		}
	}
}

// Frame applies the current pan value. The loop calls it every interval.
func (a *PanAnimator) Frame() {
	a.mu.Lock()
	graph := a.graph
	running := a.cancel != nil
	elapsed := a.clock.Now().Sub(a.startedAt)
	a.mu.Unlock()

	if !running || graph == nil {
		return
	}
	graph.SetPan(PanAt(elapsed, a.cycle))
}

// Stop halts the loop and centers the pan.
func (a *PanAnimator) Stop() {
	a.mu.Lock()
	cancel, done, graph := a.cancel, a.done, a.graph
	a.cancel = nil
	a.done = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	graph.SetPan(0)
}

func (a *PanAnimator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

func (a *PanAnimator) Cycle() time.Duration {
	return a.cycle
}
