package viewport

import "sync"

// MockFacility is an in-memory Facility whose predicate states are set
// directly. It is primarily used for testing.
type MockFacility struct {
	subscriptions

	mu          sync.Mutex
	state       map[string]bool
	unavailable bool
}

var _ Facility = (*MockFacility)(nil)

// NewMockFacility creates a MockFacility where every predicate starts false.
func NewMockFacility() *MockFacility {
	return &MockFacility{state: make(map[string]bool)}
}

// SetUnavailable makes every call fail with ErrUnavailable.
func (m *MockFacility) SetUnavailable(unavailable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = unavailable
}

// Matches implements Facility.
func (m *MockFacility) Matches(predicate string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return false, ErrUnavailable
	}
	return m.state[predicate], nil
}

// Subscribe implements Facility.
func (m *MockFacility) Subscribe(predicate string, onChange func(bool)) (func(), error) {
	m.mu.Lock()
	unavailable := m.unavailable
	m.mu.Unlock()
	if unavailable {
		return nil, ErrUnavailable
	}
	return m.add(predicate, onChange), nil
}

// Set changes the state of predicate and notifies subscribers if it flipped.
func (m *MockFacility) Set(predicate string, matches bool) {
	m.mu.Lock()
	prev := m.state[predicate]
	m.state[predicate] = matches
	m.mu.Unlock()
	if prev == matches {
		return
	}
	for _, fn := range m.listeners(predicate) {
		fn(matches)
	}
}

// Notify delivers matches to subscribers of predicate without touching the
// stored state. It simulates a misbehaving host that repeats notifications.
func (m *MockFacility) Notify(predicate string, matches bool) {
	for _, fn := range m.listeners(predicate) {
		fn(matches)
	}
}
