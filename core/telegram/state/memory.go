package state

import (
	"sync"
)

// Store holds one session value of type S per conversation id.
// Missing sessions read as the zero value produced by the factory.
type Store[S any] struct {
	mu       sync.RWMutex
	sessions map[int64]S
	locks    map[int64]*convLock
	initial  func() S
	idle     func(S) bool
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore constructs an in-memory session store. initial builds the value
// reported for conversations that have no session yet. idle, when set,
// reports values that need not be kept: Do drops them instead of storing.
func NewStore[S any](initial func() S, idle func(S) bool) *Store[S] {
	if initial == nil {
		initial = func() S {
			var zero S
			return zero
		}
	}
	return &Store[S]{
		sessions: make(map[int64]S),
		locks:    make(map[int64]*convLock),
		initial:  initial,
		idle:     idle,
	}
}

// Get returns the session for id or the initial value.
func (s *Store[S]) Get(id int64) S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.sessions[id]; ok {
		return v
	}
	return s.initial()
}

// Set replaces the session for id.
func (s *Store[S]) Set(id int64, v S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = v
}

// Clear removes the session for id so it reads as the initial value again.
func (s *Store[S]) Clear(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports how many conversations hold a session.
func (s *Store[S]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Do runs fn with the conversation lock for id held. The value returned by fn
// becomes the new session, or the session is cleared when the value is idle.
// Calls for the same id are serialized; calls for different ids run
// concurrently.
func (s *Store[S]) Do(id int64, fn func(current S) (S, error)) error {
	lock := s.acquire(id)
	lock.mu.Lock()
	defer s.release(id, lock)

	next, err := fn(s.Get(id))
	if s.idle != nil && s.idle(next) {
		s.Clear(id)
	} else {
		s.Set(id, next)
	}
	return err
}

// acquire returns the lock for id with a reference taken, so release does not
// drop it while another caller waits on it.
func (s *Store[S]) acquire(id int64) *convLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &convLock{}
		s.locks[id] = l
	}
	l.refs++
	return l
}

func (s *Store[S]) release(id int64, l *convLock) {
	l.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.refs--; l.refs == 0 {
		delete(s.locks, id)
	}
}
