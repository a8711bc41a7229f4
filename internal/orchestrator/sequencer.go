package orchestrator

import "sync"

// Sequencer hands out generation ids and guards effects against staleness.
type Sequencer struct {
	mu      sync.Mutex
	current uint64
}

// Next mints a new id and makes it current.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current++
	return s.current
}

// Current returns the latest id, or 0 before the first generation.
func (s *Sequencer) Current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// IsCurrent reports whether id is the latest generation.
func (s *Sequencer) IsCurrent(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id == s.current
}

// Apply runs fn only if id is current, holding the lock so no Next can
// interleave with the effect. fn must not call back into the Sequencer.
func (s *Sequencer) Apply(id uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.current {
		return false
	}
	fn()
	return true
}
