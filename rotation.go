package wyvern

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// TurnDirection is the discretised yaw change written to PropertyTurn.
type TurnDirection uint8

const (
	TurnNone TurnDirection = iota
	TurnLeft
	TurnRight
)

// String returns the property value of the direction.
func (d TurnDirection) String() string {
	switch d {
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	default:
		return "none"
	}
}

// RotationState is the facing vector stored from the previous update. The
// zero value faces (0, 0).
type RotationState struct {
	LastFacingX float64
	LastFacingZ float64
	Direction   TurnDirection
}

// Rotation is the result of one YawRotationTracker update.
type Rotation struct {
	Direction TurnDirection
	// YawDelta is in degrees, within (-180, 180].
	YawDelta float64
}

// YawRotationTracker classifies frame to frame yaw changes.
type YawRotationTracker struct {
	m         *Manager
	threshold float64
}

// NewYawRotationTracker returns a tracker storing its state on m's actors.
func NewYawRotationTracker(m *Manager, threshold float64) *YawRotationTracker {
	return &YawRotationTracker{m: m, threshold: threshold}
}

// Update compares facing with the stored facing vector and stores facing.
func (t *YawRotationTracker) Update(id uuid.UUID, facing mgl64.Vec3) Rotation {
	st := GetOrAdd(t.m.ensure(id), newRotationState)

	delta := yaw(facing[0], facing[2]) - yaw(st.LastFacingX, st.LastFacingZ)
	if delta > 180 {
		delta -= 360
	} else if delta <= -180 {
		delta += 360
	}

	r := Rotation{YawDelta: delta}
	switch {
	case delta > t.threshold:
		r.Direction = TurnLeft
	case delta < -t.threshold:
		r.Direction = TurnRight
	}

	st.LastFacingX, st.LastFacingZ = facing[0], facing[2]
	st.Direction = r.Direction
	return r
}

// Observe updates the tracker from b's view direction and writes the result
// to b's PropertyTurn.
func (t *YawRotationTracker) Observe(b Body) Rotation {
	r := t.Update(b.ID(), b.ViewDirection())
	b.SetProperty(PropertyTurn, r.Direction.String())
	return r
}

// yaw returns atan2(x, z) in degrees.
func yaw(x, z float64) float64 {
	return math.Atan2(x, z) * 180 / math.Pi
}

func newRotationState() *RotationState {
	return &RotationState{}
}
