// Package display fans accepted COG points out to live viewers. The
// acquisition loop hands points over fire-and-forget; a slow or hung viewer
// loses points, never stalls the loop.
package display

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
)

// Event kinds carried on subscriber channels.
const (
	KindPoint = "point"
	KindClear = "clear"
	KindFocus = "focus"
)

// Event is one display update. X and Y are meaningful for KindPoint only.
type Event struct {
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Point is one plotted COG position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Hub keeps a bounded history of recent points and broadcasts events to
// subscribers. It implements the engine's display sink.
type Hub struct {
	mu          sync.Mutex
	history     []Point // ring, oldest at head
	start       int
	count       int
	subscribers map[string]chan Event
	closed      bool
}

// DefaultHistory is the number of recent points kept when no size is
// configured. At 44 Hz this is a little over ten seconds of sway.
const DefaultHistory = 500

// NewHub creates a hub retaining the last historySize points.
func NewHub(historySize int) *Hub {
	if historySize < 1 {
		historySize = DefaultHistory
	}
	return &Hub{
		history:     make([]Point, historySize),
		subscribers: make(map[string]chan Event),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new event channel and returns its ID for
// unsubscribing. The channel is buffered; once it fills, further events are
// dropped for that subscriber.
func (h *Hub) Subscribe() (string, chan Event) {
	id := randomID()
	ch := make(chan Event, 64)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Plot records an accepted COG point and broadcasts it. Never blocks.
func (h *Hub) Plot(x, y float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	idx := (h.start + h.count) % len(h.history)
	h.history[idx] = Point{X: x, Y: y}
	if h.count < len(h.history) {
		h.count++
	} else {
		h.start = (h.start + 1) % len(h.history)
	}
	h.broadcastLocked(Event{Kind: KindPoint, X: x, Y: y})
}

// Clear empties the history and tells viewers to wipe their plots.
func (h *Hub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.start, h.count = 0, 0
	h.broadcastLocked(Event{Kind: KindClear})
}

// BringToFront asks viewers to raise their window or tab.
func (h *Hub) BringToFront() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(Event{Kind: KindFocus})
}

func (h *Hub) broadcastLocked(ev Event) {
	for _, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			// subscriber is not keeping up; drop rather than block
		}
	}
}

// History returns the retained points, oldest first.
func (h *Hub) History() []Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Point, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.history[(h.start+i)%len(h.history)]
	}
	return out
}

// Close closes all subscriber channels. Later Plot calls are ignored.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	return nil
}
