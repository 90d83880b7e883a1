package bus

import (
	"sync"
	"sync/atomic"
)

// LogStream is a bounded stream that discards its oldest entry when full.
type LogStream[T any] struct {
	mu      sync.Mutex
	ch      chan T
	dropped atomic.Uint64
}

func NewLogStream[T any](size int) *LogStream[T] {
	if size < 1 {
		size = 1
	}
	return &LogStream[T]{ch: make(chan T, size)}
}

func (s *LogStream[T]) Send(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case s.ch <- v:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

func (s *LogStream[T]) Recv() <-chan T {
	return s.ch
}

// Dropped is the number of entries discarded to make room.
func (s *LogStream[T]) Dropped() uint64 {
	return s.dropped.Load()
}
