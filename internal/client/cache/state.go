package cache

import (
	"errors"
	"sync"
)

// ErrMutationInFlight is returned when a mutation of the same kind is already
// running on a hook. It stands in for a disabled control.
var ErrMutationInFlight = errors.New("mutation already in progress")

// Guard tracks which mutation kinds are in flight.
type Guard struct {
	mu     sync.Mutex
	active map[string]bool
}

// Begin marks kind as running. The returned func ends it.
func (g *Guard) Begin(kind string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == nil {
		g.active = make(map[string]bool)
	}
	if g.active[kind] {
		return nil, ErrMutationInFlight
	}
	g.active[kind] = true
	return func() {
		g.mu.Lock()
		delete(g.active, kind)
		g.mu.Unlock()
	}, nil
}

func (g *Guard) Active(kind string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active[kind]
}

// Status is the loading and error state a hook exposes.
type Status struct {
	mu      sync.Mutex
	loading int
	err     error
}

func (s *Status) Start() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
}

// Finish ends one operation and records its outcome. A success clears the last error.
func (s *Status) Finish(err error) {
	s.mu.Lock()
	if s.loading > 0 {
		s.loading--
	}
	s.err = err
	s.mu.Unlock()
}

func (s *Status) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

func (s *Status) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
