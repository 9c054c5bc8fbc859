// Package audio implements the mood playlist player and the routing graph
// behind its 8D spatial effect.
package audio

import (
	"errors"
	"sync"
	"time"
)

type Node string

const (
	NodeSource      Node = "source"
	NodeGain        Node = "gain"
	NodeSpatializer Node = "spatializer"
	NodeLimiter     Node = "limiter"
	NodeDestination Node = "destination"
)

type Edge struct {
	From Node `json:"from"`
	To   Node `json:"to"`
}

// LimiterSettings describes the dynamics compressor on the spatial path.
type LimiterSettings struct {
	ThresholdDB float64       `json:"thresholdDb"`
	Ratio       float64       `json:"ratio"`
	KneeDB      float64       `json:"kneeDb"`
	Attack      time.Duration `json:"attack"`
	Release     time.Duration `json:"release"`
}

// SpatialLimiter is fixed; panning hard left/right pushes peaks up and this
// curve keeps them below clipping.
var SpatialLimiter = LimiterSettings{
	ThresholdDB: -6,
	Ratio:       12,
	KneeDB:      30,
	Attack:      3 * time.Millisecond,
	Release:     250 * time.Millisecond,
}

var ErrGraphClosed = errors.New("audio graph closed")

// Topology is a point-in-time copy of the graph.
type Topology struct {
	Spatial         bool             `json:"spatial"`
	SourceConnected bool             `json:"sourceConnected"`
	Suspended       bool             `json:"suspended"`
	Edges           []Edge           `json:"edges"`
	Gain            float64          `json:"gain"`
	Pan             float64          `json:"pan"`
	Limiter         *LimiterSettings `json:"limiter,omitempty"`
}

// Graph is the fixed signal chain
//
//	source -> gain -> destination                          (direct)
//	source -> gain -> spatializer -> limiter -> destination (spatial)
//
// Nodes are created once; Reconnect only rewires them.
type Graph struct {
	mu              sync.Mutex
	edges           []Edge
	spatial         bool
	sourceConnected bool
	suspended       bool
	closed          bool
	gain            float64
	pan             float64
	reconnects      int
}

// NewGraph returns a suspended graph wired on the direct path.
func NewGraph() *Graph {
	g := &Graph{gain: 1, suspended: true}
	g.wireLocked()
	return g
}

func (g *Graph) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGraphClosed
	}
	g.suspended = false
	return nil
}

func (g *Graph) Suspended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.suspended
}

// ConnectSource attaches the media source in front of the gain node.
func (g *Graph) ConnectSource() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sourceConnected {
		return
	}
	g.sourceConnected = true
	g.wireLocked()
}

func (g *Graph) SourceConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sourceConnected
}

// Reconnect tears down every edge and rewires the chain for the requested
// path. Readers never see a partially wired graph.
func (g *Graph) Reconnect(spatial bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spatial = spatial
	if !spatial {
		g.pan = 0
	}
	g.wireLocked()
	g.reconnects++
}

func (g *Graph) wireLocked() {
	edges := make([]Edge, 0, 4)
	if g.sourceConnected {
		edges = append(edges, Edge{From: NodeSource, To: NodeGain})
	}
	if g.spatial {
		edges = append(edges,
			Edge{From: NodeGain, To: NodeSpatializer},
			Edge{From: NodeSpatializer, To: NodeLimiter},
			Edge{From: NodeLimiter, To: NodeDestination},
		)
	} else {
		edges = append(edges, Edge{From: NodeGain, To: NodeDestination})
	}
	g.edges = edges
}

// SetGain sets the linear gain from a 0-100 volume level.
func (g *Graph) SetGain(level int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gain = float64(clampVolume(level)) / 100
}

func (g *Graph) Gain() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gain
}

// SetPan sets the spatializer position in [-1, 1]. It is ignored on the
// direct path.
func (g *Graph) SetPan(pan float64) {
	if pan > 1 {
		pan = 1
	}
	if pan < -1 {
		pan = -1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.spatial {
		g.pan = 0
		return
	}
	g.pan = pan
}

func (g *Graph) Pan() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pan
}

func (g *Graph) Reconnects() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reconnects
}

func (g *Graph) Topology() Topology {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := Topology{
		Spatial:         g.spatial,
		SourceConnected: g.sourceConnected,
		Suspended:       g.suspended,
		Edges:           append([]Edge(nil), g.edges...),
		Gain:            g.gain,
		Pan:             g.pan,
	}
	if g.spatial {
		limiter := SpatialLimiter
		t.Limiter = &limiter
	}
	return t
}

func (g *Graph) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.suspended = true
	g.sourceConnected = false
	g.edges = nil
}

func clampVolume(level int) int {
	return max(0, min(100, level))
}
