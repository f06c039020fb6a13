// Package live pushes newly logged transcript lines to streaming subscribers.
package live

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meetmate/meetmate-backend/internal/metrics"
)

// EventTypeTranscript is the SSE event name for a logged line.
const EventTypeTranscript = "transcript"

// Event is one line delivered to subscribers.
type Event struct {
	ID        string
	Type      string
	Timestamp string
	Data      json.RawMessage
}

// Line is the payload carried in Event.Data.
type Line struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

// Bus provides pub-sub distribution of transcript lines.
// It maintains a ring buffer for replay on reconnect.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan Event
	nextID      uint64
	seq         atomic.Uint64

	ring     []Event
	ringSize int
	ringHead int
	ringMu   sync.RWMutex
}

// NewBus creates a bus with the given replay buffer size.
func NewBus(ringSize int) *Bus {
	if ringSize < 1 {
		ringSize = 1
	}
	return &Bus{
		subscribers: make(map[uint64]chan Event),
		ring:        make([]Event, ringSize),
		ringSize:    ringSize,
	}
}

// Subscribe registers a new subscriber and returns a channel and cancel function.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// ReplaySince returns buffered events published after lastEventID. An unknown
// ID yields nothing.
func (b *Bus) ReplaySince(lastEventID string) []Event {
	b.ringMu.RLock()
	defer b.ringMu.RUnlock()

	var events []Event
	found := lastEventID == ""

	for i := 0; i < b.ringSize; i++ {
		idx := (b.ringHead + i) % b.ringSize
		e := b.ring[idx]
		if e.ID == "" {
			continue
		}
		if !found {
			if e.ID == lastEventID {
				found = true
			}
			continue
		}
		events = append(events, e)
	}
	return events
}

// Publish sends a line to all subscribers and adds it to the ring buffer.
func (b *Bus) Publish(date, text string) {
	data, err := json.Marshal(Line{Date: date, Text: text})
	if err != nil {
		return
	}

	seq := b.seq.Add(1)
	now := time.Now()
	event := Event{
		ID:        fmt.Sprintf("%d-%d", now.UnixMilli(), seq),
		Type:      EventTypeTranscript,
		Timestamp: now.UTC().Format(time.RFC3339),
		Data:      data,
	}

	b.ringMu.Lock()
	b.ring[b.ringHead] = event
	b.ringHead = (b.ringHead + 1) % b.ringSize
	b.ringMu.Unlock()

	b.mu.RLock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop if subscriber is slow
		}
	}
	b.mu.RUnlock()

	metrics.LinesPublishedTotal.Inc()
}
