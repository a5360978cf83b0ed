package breaker

import (
	"cmp"
	"slices"
)

// Set is a fixed collection of named breakers, one per protected dependency.
type Set struct {
	byName map[string]*Breaker
}

// NewSet indexes the given breakers by name. Later breakers replace earlier
// ones with the same name.
func NewSet(breakers ...*Breaker) *Set {
	s := &Set{byName: make(map[string]*Breaker, len(breakers))}
	for _, b := range breakers {
		s.byName[b.Name()] = b
	}
	return s
}

// Get returns the breaker registered under name.
func (s *Set) Get(name string) (*Breaker, bool) {
	b, ok := s.byName[name]
	return b, ok
}

// Stats returns the stats of every breaker ordered by name.
func (s *Set) Stats() []Stats {
	out := make([]Stats, 0, len(s.byName))
	for _, b := range s.byName {
		out = append(out, b.Stats())
	}
	slices.SortFunc(out, func(a, c Stats) int {
		return cmp.Compare(a.Name, c.Name)
	})
	return out
}

// Healthy reports whether every breaker is Closed.
func (s *Set) Healthy() bool {
	for _, b := range s.byName {
		if b.State() != Closed {
			return false
		}
	}
	return true
}
