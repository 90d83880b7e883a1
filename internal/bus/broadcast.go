// Package bus holds the channel shapes the controller is wired with:
// lossy fan-out broadcasts, a bounded work queue, drop-oldest log streams
// and watched values.
package bus

import "sync"

// Broadcast fans each value out to every subscriber. A subscriber whose
// buffer is full loses its oldest pending value, so a slow reader never
// stalls the sender.
type Broadcast[T any] struct {
	mu   sync.RWMutex
	subs map[uint64]chan T
	next uint64
	size int
}

func NewBroadcast[T any](size int) *Broadcast[T] {
	if size < 1 {
		size = 1
	}
	return &Broadcast[T]{subs: make(map[uint64]chan T), size: size}
}

// Subscribe returns a receive channel and a cancel func that closes it.
func (b *Broadcast[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan T, b.size)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Send delivers v to all current subscribers and returns how many got it.
func (b *Broadcast[T]) Send(v T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, ch := range b.subs {
		select {
		case ch <- v:
			n++
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
			n++
		default:
		}
	}
	return n
}

func (b *Broadcast[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
