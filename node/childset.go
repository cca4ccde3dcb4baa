package node

import (
	"slices"
	"sync"
)

// childSet is the set of children contributing to a node's modified
// state.  It keeps insertion order for stable iteration.
type childSet struct {
	mu    sync.RWMutex
	order []*Node
	m     map[*Node]struct{}
}

func (s *childSet) add(c *Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[c]; ok {
		return false
	}
	if s.m == nil {
		s.m = map[*Node]struct{}{}
	}
	s.m[c] = struct{}{}
	s.order = append(s.order, c)
	return true
}

func (s *childSet) remove(c *Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[c]; !ok {
		return false
	}
	delete(s.m, c)
	s.order = slices.DeleteFunc(s.order, func(x *Node) bool { return x == c })
	return true
}

func (s *childSet) has(c *Node) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[c]
	return ok
}

func (s *childSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

func (s *childSet) list() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}
