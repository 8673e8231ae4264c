package services

import (
	"sync"
	"time"
)

// Event is a broadcast payload pushed to everyone watching a match.
type Event struct {
	Type    string      `json:"type"`
	MatchID string      `json:"match_id"`
	At      time.Time   `json:"at"`
	Data    interface{} `json:"data,omitempty"`
}

// Broadcaster fans match events out to SSE subscribers. Everything is
// in-memory; a restart drops subscribers, which simply reconnect.
type Broadcaster struct {
	mu     sync.RWMutex
	topics map[string]map[chan Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{topics: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a listener for a match. The returned cancel func must
// be called when the client disconnects.
func (b *Broadcaster) Subscribe(matchID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	subs, ok := b.topics[matchID]
	if !ok {
		subs = make(map[chan Event]struct{})
		b.topics[matchID] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if subs, ok := b.topics[matchID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.topics, matchID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers of the match. Slow consumers
// with a full buffer are skipped rather than blocking the publisher.
func (b *Broadcaster) Publish(matchID, eventType string, data interface{}) {
	ev := Event{Type: eventType, MatchID: matchID, At: time.Now(), Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.topics[matchID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
