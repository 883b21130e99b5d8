package selection

import "sort"

// Set tracks which page indices are marked, plus the last-touched index used
// by shift-range gestures. Zero value is ready to use.
type Set struct {
	marked      map[int]struct{}
	lastTouched int
	hasTouched  bool
}

// New returns an empty selection set.
func New() *Set {
	return &Set{marked: map[int]struct{}{}}
}

func (s *Set) ensure() {
	if s.marked == nil {
		s.marked = map[int]struct{}{}
	}
}

// Toggle adds index if absent, removes it if present, and always records it
// as the last-touched index.
func (s *Set) Toggle(index int) {
	s.ensure()
	if _, ok := s.marked[index]; ok {
		delete(s.marked, index)
	} else {
		s.marked[index] = struct{}{}
	}
	s.lastTouched = index
	s.hasTouched = true
}

// ExtendRange handles a click with an optional range modifier. With the
// modifier and a prior last-touched index, every index in the inclusive span
// between the two (either direction) is added. The span only ever adds:
// indices selected outside it stay selected, so successive range gestures can
// build up a non-contiguous set. Without the modifier it falls back to a
// plain toggle.
func (s *Set) ExtendRange(index int, isRangeModifier bool) {
	if !isRangeModifier || !s.hasTouched {
		s.Toggle(index)
		return
	}
	s.ensure()
	lo, hi := s.lastTouched, index
	if lo > hi {
		lo, hi = hi, lo
	}
	for i := lo; i <= hi; i++ {
		s.marked[i] = struct{}{}
	}
	s.lastTouched = index
}

// Contains reports whether index is marked.
func (s *Set) Contains(index int) bool {
	_, ok := s.marked[index]
	return ok
}

// Len returns the number of marked indices.
func (s *Set) Len() int { return len(s.marked) }

// Indices returns the marked indices in ascending order.
func (s *Set) Indices() []int {
	out := make([]int, 0, len(s.marked))
	for i := range s.marked {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Clear empties the set. The last-touched index survives so a range gesture
// right after a clear still has an anchor.
func (s *Set) Clear() {
	s.marked = map[int]struct{}{}
}
