package controller

import "sync"

// Slot holds at most one value. Writes always overwrite: the most recent
// Set or Clear wins, there is no queue and no merge.
type Slot[T comparable] struct {
	v   T
	set bool
}

// Get returns the value and whether the slot is set.
func (s *Slot[T]) Get() (T, bool) {
	return s.v, s.set
}

// Holds reports whether the slot is set to v.
func (s *Slot[T]) Holds(v T) bool {
	return s.set && s.v == v
}

// Set stores v and returns what it replaced.
func (s *Slot[T]) Set(v T) (prev T, ok bool) {
	prev, ok = s.v, s.set
	s.v, s.set = v, true
	return prev, ok
}

// Clear empties the slot and returns what it held.
func (s *Slot[T]) Clear() (prev T, ok bool) {
	var zero T
	prev, ok = s.v, s.set
	s.v, s.set = zero, false
	return prev, ok
}

// listeners is a registration-ordered callback list.
type listeners[T any] struct {
	mu   sync.Mutex
	fns  map[int]func(T)
	next int
}

func (l *listeners[T]) add(fn func(T)) (cancel func()) {
	l.mu.Lock()
	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners[T]) emit(v T) {
	l.mu.Lock()
	fns := make([]func(T), 0, len(l.fns))
	for id := 0; id < l.next; id++ {
		if fn, ok := l.fns[id]; ok {
			fns = append(fns, fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
