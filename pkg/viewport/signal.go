package viewport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/meterboard/meterboard/pkg/log"
)

// Signal is a live boolean tracking one viewport predicate. Create it with
// Observe and release it with Close.
type Signal struct {
	predicate string

	mu        sync.Mutex
	value     bool
	delivered bool
	closed    bool
	nextID    int
	listeners []signalListener

	unsubscribe func()
	stopCtx     func() bool
	closeOnce   sync.Once
}

type signalListener struct {
	id int
	fn func(bool)
}

// Observe registers a single change listener with the facility and then
// evaluates predicate once for the initial value. A flip delivered while the
// initial value is read takes precedence over it. A nil or failing facility
// never produces an error: the signal stays false for its whole lifetime.
//
// The registration is released by Close or when ctx is done, whichever comes
// first.
func Observe(ctx context.Context, f Facility, predicate string) *Signal {
	s := &Signal{predicate: predicate}
	if f == nil {
		log.Ctx(ctx).DebugContext(ctx, "no viewport facility, using default", slog.String("predicate", predicate))
		return s
	}

	unsubscribe, err := f.Subscribe(predicate, s.deliver)
	if err != nil {
		log.Ctx(ctx).DebugContext(ctx, "viewport subscribe failed, using default", slog.String("predicate", predicate), slog.Any("error", err))
		return s
	}

	matches, err := f.Matches(predicate)
	if err != nil {
		log.Ctx(ctx).DebugContext(ctx, "viewport predicate evaluation failed, using default", slog.String("predicate", predicate), slog.Any("error", err))
		unsubscribe()
		return s
	}

	s.mu.Lock()
	if !s.delivered {
		s.value = matches
	}
	s.unsubscribe = unsubscribe
	s.stopCtx = context.AfterFunc(ctx, s.Close)
	s.mu.Unlock()
	return s
}

// deliver is the facility callback. Dependents are notified synchronously, in
// registration order, and only when the value actually changed.
func (s *Signal) deliver(matches bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.delivered = true
	if s.value == matches {
		s.mu.Unlock()
		return
	}
	s.value = matches
	fns := make([]func(bool), len(s.listeners))
	for i, l := range s.listeners {
		fns[i] = l.fn
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(matches)
	}
}

// Predicate returns the observed predicate.
func (s *Signal) Predicate() string {
	return s.predicate
}

// Value returns the current condition.
func (s *Signal) Value() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// OnChange registers fn to be called with the new value on every flip. The
// returned function removes it.
func (s *Signal) OnChange(fn func(bool)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, signalListener{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Close deregisters from the facility. It is safe to call more than once;
// the facility sees exactly one unsubscribe.
func (s *Signal) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.listeners = nil
		unsubscribe, stopCtx := s.unsubscribe, s.stopCtx
		s.mu.Unlock()

		if stopCtx != nil {
			stopCtx()
		}
		if unsubscribe != nil {
			unsubscribe()
		}
	})
}
