package server

import (
	"encoding/json"
	"sync"

	"github.com/ayangquest/questapi/internal/player"
)

// PlayUpdate is the payload pushed to a play session's subscribers.
type PlayUpdate struct {
	Snapshot player.Snapshot `json:"snapshot"`
	Events   []player.Event  `json:"events,omitempty"`
	Closed   bool            `json:"closed,omitempty"`
}

// Broker is an in-process pub/sub keyed by play session ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded updates for the given session.
func (b *Broker) Subscribe(sessionID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan []byte]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the session's subscribers.
func (b *Broker) Unsubscribe(sessionID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[sessionID], ch)
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
	b.mu.Unlock()
}

// Publish sends an update to all subscribers of the given session.
func (b *Broker) Publish(sessionID string, u PlayUpdate) {
	data, _ := json.Marshal(u)
	b.mu.RLock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

// Close delivers a final update to every subscriber and forgets them. A full
// subscriber buffer loses its oldest queued update so the final one always
// fits.
func (b *Broker) Close(sessionID string, u PlayUpdate) {
	data, _ := json.Marshal(u)
	b.mu.Lock()
	subs := b.subs[sessionID]
	delete(b.subs, sessionID)
	b.mu.Unlock()

	for ch := range subs {
		select {
		case ch <- data:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- data:
		default:
		}
	}
}

func (b *Broker) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}
