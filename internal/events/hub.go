// Package events fans engine state changes out to UI subscribers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindTimer        Kind = "timer"
	KindSession      Kind = "session"
	KindAudio        Kind = "audio"
	KindAdSlot       Kind = "ad_slot"
	KindNotification Kind = "notification"
)

type Event struct {
	Kind    Kind      `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

const defaultBuffer = 32

// Hub is a non-blocking broadcaster. A subscriber that falls behind loses
// events rather than stalling the engine that published them.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]chan Event
	buffer int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[string]chan Event), buffer: buffer}
}

// Subscribe returns a channel of events and a cancel func that must be
// called when the subscriber goes away.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := uuid.NewString()
	h.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

func (h *Hub) Publish(kind Kind, payload any) {
	event := Event{Kind: kind, At: time.Now().UTC(), Payload: payload}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
