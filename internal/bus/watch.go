package bus

import "sync"

// Watch holds a value observers can read without consuming it. Changed
// returns a channel that is closed by the next Set.
type Watch[T any] struct {
	mu      sync.RWMutex
	v       T
	changed chan struct{}
}

func NewWatch[T any](v T) *Watch[T] {
	return &Watch[T]{v: v, changed: make(chan struct{})}
}

func (w *Watch[T]) Get() T {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.v
}

func (w *Watch[T]) Set(v T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.v = v
	close(w.changed)
	w.changed = make(chan struct{})
}

// Update applies fn to the current value atomically and returns the result.
func (w *Watch[T]) Update(fn func(T) T) T {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.v = fn(w.v)
	close(w.changed)
	w.changed = make(chan struct{})
	return w.v
}

func (w *Watch[T]) Changed() <-chan struct{} {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.changed
}

// Toggle flips a boolean watch and returns the new value.
func Toggle(w *Watch[bool]) bool {
	return w.Update(func(b bool) bool { return !b })
}
