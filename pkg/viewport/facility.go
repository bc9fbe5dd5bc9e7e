package viewport

import (
	"errors"
	"sync"
)

var (
	// ErrUnavailable is returned by a facility that cannot evaluate
	// predicates at all in the current environment.
	ErrUnavailable = errors.New("viewport condition facility unavailable")
	// ErrUnsupportedPredicate is returned for predicates a facility cannot
	// parse.
	ErrUnsupportedPredicate = errors.New("unsupported viewport predicate")
)

// Facility is the host environment's viewport-condition primitive. It must
// deliver at most one notification per actual match-state flip.
type Facility interface {
	// Matches reports whether predicate currently holds.
	Matches(predicate string) (bool, error)
	// Subscribe registers onChange for flips of predicate. The returned
	// function removes the registration.
	Subscribe(predicate string, onChange func(matches bool)) (unsubscribe func(), err error)
}

// subscriptions tracks change listeners per predicate for the in-process
// facilities in this package.
type subscriptions struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func(bool)

	subscribed   int
	unsubscribed int
}

func (s *subscriptions) add(predicate string, fn func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[string]map[int]func(bool))
	}
	if s.subs[predicate] == nil {
		s.subs[predicate] = make(map[int]func(bool))
	}
	id := s.nextID
	s.nextID++
	s.subs[predicate][id] = fn
	s.subscribed++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsubscribed++
		delete(s.subs[predicate], id)
	}
}

// listeners returns a snapshot of the callbacks for predicate so they can be
// invoked without holding the lock.
func (s *subscriptions) listeners(predicate string) []func(bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fns := make([]func(bool), 0, len(s.subs[predicate]))
	for _, fn := range s.subs[predicate] {
		fns = append(fns, fn)
	}
	return fns
}

func (s *subscriptions) predicates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subs))
	for p, m := range s.subs {
		if len(m) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// Counts returns the number of Subscribe calls and unsubscribe calls seen.
func (s *subscriptions) Counts() (subscribed, unsubscribed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed, s.unsubscribed
}

// Active returns the number of currently registered listeners.
func (s *subscriptions) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, m := range s.subs {
		n += len(m)
	}
	return n
}
