// Package lifecycle tracks the gateway's shutdown phase. The server flips
// the state to draining before stopping the listener; the ws handler then
// turns new sessions away and /readyz reports not-ready while sessions
// already in flight finish their turns.
package lifecycle

import "sync/atomic"

// State is the shared drain flag. The zero value is ready to use and every
// method is safe on a nil receiver, so components may leave it unset in
// tests.
type State struct {
	draining atomic.Bool
}

// SetDraining marks the process as draining (or clears the mark).
func (s *State) SetDraining(draining bool) {
	if s == nil {
		return
	}
	s.draining.Store(draining)
}

// IsDraining reports whether shutdown has begun.
func (s *State) IsDraining() bool {
	if s == nil {
		return false
	}
	return s.draining.Load()
}
