package tiktok

import "fmt"

// StableScrollThreshold is the number of consecutive scrolls without page
// growth after which a profile is considered fully loaded.
const StableScrollThreshold = 4

// ScrollState is the phase of the scroll loop.
type ScrollState int

const (
	// StateScrolling: the last scroll grew the page (or nothing observed yet).
	StateScrolling ScrollState = iota
	// StateStabilizing: one or more scrolls in a row produced no growth.
	StateStabilizing
	// StateDone: the threshold was reached. Terminal.
	StateDone
)

func (s ScrollState) String() string {
	switch s {
	case StateScrolling:
		return "scrolling"
	case StateStabilizing:
		return "stabilizing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("ScrollState(%d)", int(s))
	}
}

// Stabilizer decides when to stop scrolling. The platform exposes no
// reliable end-of-list signal, so the page height is used instead.
type Stabilizer struct {
	threshold  int
	lastHeight int
	unchanged  int
	state      ScrollState
}

// NewStabilizer starts in StateScrolling with the height measured before the
// first scroll.
func NewStabilizer(initialHeight int) *Stabilizer {
	return &Stabilizer{
		threshold:  StableScrollThreshold,
		lastHeight: initialHeight,
		state:      StateScrolling,
	}
}

// Observe records the height measured after a scroll and returns the new state.
func (s *Stabilizer) Observe(height int) ScrollState {
	if s.state == StateDone {
		return s.state
	}

	if height == s.lastHeight {
		s.unchanged++
	} else {
		s.unchanged = 0
		s.lastHeight = height
	}

	switch {
	case s.unchanged >= s.threshold:
		s.state = StateDone
	case s.unchanged > 0:
		s.state = StateStabilizing
	default:
		s.state = StateScrolling
	}
	return s.state
}

// State returns the current state.
func (s *Stabilizer) State() ScrollState {
	return s.state
}

// Unchanged returns the number of consecutive no-growth observations.
func (s *Stabilizer) Unchanged() int {
	return s.unchanged
}

// Height returns the last recorded page height.
func (s *Stabilizer) Height() int {
	return s.lastHeight
}
