package wyvern

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// TransitionEdge is the change between two consecutive ground readings.
type TransitionEdge uint8

const (
	EdgeNone TransitionEdge = iota
	EdgeLanded
	EdgeTookOff
)

// String ...
func (e TransitionEdge) String() string {
	switch e {
	case EdgeLanded:
		return "landed"
	case EdgeTookOff:
		return "took-off"
	default:
		return "none"
	}
}

// Transition is the result of one TransitionTracker update.
type Transition struct {
	Prev bool
	Now  bool
	Edge TransitionEdge
}

// GroundState is the per-actor ground reading. A missing state reads as not
// grounded.
type GroundState struct {
	WasGrounded bool
	// Contact is the probe result of the latest sample.
	Contact GroundContact
	// Edge is the edge reported by the latest update.
	Edge TransitionEdge
}

// update records now and reports the edge against the stored reading.
func (s *GroundState) update(now bool) Transition {
	tr := Transition{Prev: s.WasGrounded, Now: now}
	switch {
	case !tr.Prev && now:
		tr.Edge = EdgeLanded
	case tr.Prev && !now:
		tr.Edge = EdgeTookOff
	}
	s.WasGrounded = now
	s.Edge = tr.Edge
	return tr
}

// TransitionTracker turns ground readings into landed and took-off edges.
type TransitionTracker struct {
	m     *Manager
	depth int
}

// NewTransitionTracker returns a tracker storing its state on m's actors.
// depth is the probe depth used by Sample, for landing and takeoff alike.
func NewTransitionTracker(m *Manager, depth int) *TransitionTracker {
	return &TransitionTracker{m: m, depth: depth}
}

// Depth returns the probe depth.
func (t *TransitionTracker) Depth() int {
	return t.depth
}

// Update records groundedNow for the actor and returns the edge against the
// previous reading.
func (t *TransitionTracker) Update(id uuid.UUID, groundedNow bool) Transition {
	return GetOrAdd(t.m.ensure(id), newGroundState).update(groundedNow)
}

// Sample probes beneath pos and feeds the result to Update.
func (t *TransitionTracker) Sample(w World, id uuid.UUID, pos mgl64.Vec3) (GroundContact, Transition) {
	contact := Probe(w, pos, t.depth)
	st := GetOrAdd(t.m.ensure(id), newGroundState)
	st.Contact = contact
	return contact, st.update(contact.Found)
}

func newGroundState() *GroundState {
	return &GroundState{}
}
