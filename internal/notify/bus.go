// Package notify fans status notices out to sibling displays.
package notify

import (
	"sync"

	"github.com/mbodji/lendscan/internal/domain/models"
)

const subscriberBuffer = 8

// Bus is an in-process observer registry. Publishing never blocks; a
// subscriber whose buffer is full misses that notice.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan models.Notice
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan models.Notice)}
}

// Subscribe registers a listener. The returned function removes the
// subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan models.Notice, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan models.Notice, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the notice to every current subscriber.
func (b *Bus) Publish(notice models.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- notice:
		default:
		}
	}
}
