package viewport

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// WidthFacility evaluates width media predicates such as "(max-width: 640px)"
// and "(min-width: 1024px)" against a viewport width reported by a client.
type WidthFacility struct {
	subscriptions

	mu    sync.Mutex
	width int
}

var _ Facility = (*WidthFacility)(nil)

// NewWidthFacility returns a facility for a viewport of the given CSS pixel
// width.
func NewWidthFacility(width int) *WidthFacility {
	return &WidthFacility{width: width}
}

func parseWidthPredicate(predicate string) (kind string, px int, err error) {
	p := strings.TrimSpace(predicate)
	p = strings.TrimSuffix(strings.TrimPrefix(p, "("), ")")
	name, value, ok := strings.Cut(p, ":")
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrUnsupportedPredicate, predicate)
	}
	kind = strings.TrimSpace(name)
	if kind != "max-width" && kind != "min-width" {
		return "", 0, fmt.Errorf("%w: %q", ErrUnsupportedPredicate, predicate)
	}
	digits, ok := strings.CutSuffix(strings.TrimSpace(value), "px")
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrUnsupportedPredicate, predicate)
	}
	px, err = strconv.Atoi(digits)
	if err != nil || px < 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrUnsupportedPredicate, predicate)
	}
	return kind, px, nil
}

func evaluate(predicate string, width int) (bool, error) {
	kind, px, err := parseWidthPredicate(predicate)
	if err != nil {
		return false, err
	}
	if kind == "max-width" {
		return width <= px, nil
	}
	return width >= px, nil
}

// Matches implements Facility.
func (f *WidthFacility) Matches(predicate string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return evaluate(predicate, f.width)
}

// Subscribe implements Facility.
func (f *WidthFacility) Subscribe(predicate string, onChange func(bool)) (func(), error) {
	if _, _, err := parseWidthPredicate(predicate); err != nil {
		return nil, err
	}
	return f.add(predicate, onChange), nil
}

// SetWidth updates the viewport width and notifies subscribers whose
// predicate flipped as a result.
func (f *WidthFacility) SetWidth(width int) {
	f.mu.Lock()
	prev := f.width
	f.width = width
	f.mu.Unlock()

	for _, p := range f.predicates() {
		before, err := evaluate(p, prev)
		if err != nil {
			continue
		}
		after, _ := evaluate(p, width)
		if before == after {
			continue
		}
		for _, fn := range f.listeners(p) {
			fn(after)
		}
	}
}
