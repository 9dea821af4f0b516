package source

import (
	"sync"

	"github.com/avsynctest/avsynctest/pkg/media/clock"
)

// SyncPoint marks a spot of the signal where audio and video should line
// up: the ramp restarting from zero or a freshly negotiated first frame.
type SyncPoint struct {
	Source Kind
	Offset uint64 // sample offset or frame number
	Timing clock.Timing
}

// SyncPoints fans sync points out to subscribers.
type SyncPoints struct {
	mu   sync.RWMutex
	subs map[int]func(SyncPoint)
	next int
}

func NewSyncPoints() *SyncPoints { return &SyncPoints{subs: make(map[int]func(SyncPoint))} }

// Subscribe adds fn and returns the function that removes it.
func (s *SyncPoints) Subscribe(fn func(SyncPoint)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *SyncPoints) Emit(p SyncPoint) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.subs {
		fn(p)
	}
}

func (s *SyncPoints) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
