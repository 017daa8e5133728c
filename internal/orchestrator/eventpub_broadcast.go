package orchestrator

import "sync"

// Broadcaster fans events out to any number of subscribers. A subscriber that
// falls behind loses events rather than blocking the orchestrator.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
	next EventPublisher
}

// NewBroadcaster returns a Broadcaster that also forwards every event to next
// when it is non-nil.
func NewBroadcaster(next EventPublisher) *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{}), next: next}
}

func (b *Broadcaster) Publish(e Event) {
	if b.next != nil {
		b.next.Publish(e)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a subscriber with the given buffer. The returned cancel
// func unregisters it and closes the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Event, buf)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
