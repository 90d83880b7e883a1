package zone

import (
	"sync"

	"github.com/thatsimonsguy/grow-controller/internal/model"
)

// Status holds a zone's display status and its kind-specific facts.
// Only the zone's runner writes; readers take snapshots.
type Status[F any] struct {
	mu    sync.RWMutex
	disp  model.DisplayStatus
	facts F
}

func newStatus[F any](facts F) *Status[F] {
	return &Status[F]{disp: model.NewDisplayStatus(model.Green, ""), facts: facts}
}

func (s *Status[F]) Display() model.DisplayStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disp
}

func (s *Status[F]) Snapshot() F {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facts
}

func (s *Status[F]) update(fn func(*F)) F {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.facts)
	return s.facts
}

// setDisplay stores d unless it renders the same as the current status.
func (s *Status[F]) setDisplay(d model.DisplayStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disp.SameAs(d) {
		return false
	}
	s.disp = d
	return true
}

type settingsBox[T any] struct {
	mu sync.RWMutex
	v  T
}

func (b *settingsBox[T]) get() T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.v
}

func (b *settingsBox[T]) set(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.v = v
}
