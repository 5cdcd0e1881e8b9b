package wyvern

// Stage orders loop execution within a tick: Before → Default → After.
type Stage int

const (
	// Before runs first. Ground and rotation sampling run here so that every
	// later stage reads the same result for the tick.
	Before Stage = iota

	// Default runs the flight controller and the rider seat.
	Default

	// After runs last, for HUD updates and bookkeeping.
	After

	stageCount
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case Before:
		return "Before"
	case Default:
		return "Default"
	case After:
		return "After"
	default:
		return "Unknown"
	}
}
