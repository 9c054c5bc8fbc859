// Package notify sends user-facing notifications such as pomodoro phase
// changes.
package notify

import (
	"sync"

	"github.com/hashicorp/go-hclog"

	"focusbeat/backend/internal/events"
)

type Options struct {
	Tag                string `json:"tag"`
	RequireInteraction bool   `json:"requireInteraction"`
}

type Notification struct {
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	Options Options `json:"options"`
}

// Sender is fire-and-forget.
type Sender interface {
	Send(title, body string, opts Options)
}

// Gate forwards to next only while permission is granted. Without
// permission Send is a silent no-op.
type Gate struct {
	mu      sync.RWMutex
	granted bool
	next    Sender
}

func NewGate(next Sender, granted bool) *Gate {
	return &Gate{next: next, granted: granted}
}

func (g *Gate) SetPermission(granted bool) {
	g.mu.Lock()
	g.granted = granted
	g.mu.Unlock()
}

func (g *Gate) Granted() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.granted
}

func (g *Gate) Send(title, body string, opts Options) {
	if !g.Granted() || g.next == nil {
		return
	}
	g.next.Send(title, body, opts)
}

// HubSender publishes notifications on the event stream so the browser can
// raise them.
type HubSender struct {
	Hub    *events.Hub
	Logger hclog.Logger
}

func (s HubSender) Send(title, body string, opts Options) {
	if s.Logger != nil {
		s.Logger.Debug("notification", "title", title, "tag", opts.Tag)
	}
	if s.Hub == nil {
		return
	}
	s.Hub.Publish(events.KindNotification, Notification{Title: title, Body: body, Options: opts})
}

// Recorder keeps every notification, for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Send(title, body string, opts Options) {
	r.mu.Lock()
	r.sent = append(r.sent, Notification{Title: title, Body: body, Options: opts})
	r.mu.Unlock()
}

func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}
