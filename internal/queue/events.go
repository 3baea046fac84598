package queue

import (
	"sync"

	"github.com/contact-recon/backend/internal/storage/models"
)

type EventType string

const (
	EventCreated  EventType = "created"
	EventApproved EventType = "approved"
	EventRejected EventType = "rejected"
	EventApplied  EventType = "applied"
	EventFailed   EventType = "apply_failed"
)

// Event is pushed to websocket subscribers on every queue transition.
type Event struct {
	Type  EventType         `json:"type"`
	Entry models.QueueEntry `json:"entry"`
}

// Broker fans queue events out to subscribers. Slow subscribers drop
// events rather than stall the review path.
type Broker struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a buffered event channel and the matching
// unsubscribe function, which closes the channel.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
