package wyvern

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// FlightState is the per-dragon flight state. It is attached when a tamed
// dragon is mounted and removed when the rider dismounts.
type FlightState struct {
	// FlyingTicks is zero exactly when the dragon is not flying.
	FlyingTicks      int
	HoveringTicks    int
	GroundedTicks    int
	JumpPressedTicks int
	// AirborneTicks counts ticks since the last ambient music roll.
	AirborneTicks int

	Velocity mgl64.Vec3
	// Stamina is +Inf when stamina is not capped.
	Stamina float64
	FOV     float64

	Boosting bool
	Hovering bool
	Diving   bool

	history directionHistory
}

// NewFlightState returns a grounded state with full stamina.
func NewFlightState(t *Tuning, tier MilestoneTuning) *FlightState {
	return &FlightState{
		Stamina: t.MaxStamina(tier),
		FOV:     t.FOV.Base,
		history: newDirectionHistory(t.Flight.HistoryCapacity),
	}
}

// Flying reports whether the dragon is flying or hovering.
func (s *FlightState) Flying() bool {
	return s.FlyingTicks > 0
}

// InfiniteStamina reports whether stamina is uncapped.
func (s *FlightState) InfiniteStamina() bool {
	return math.IsInf(s.Stamina, 1)
}

// Depleted reports whether finite stamina has run out.
func (s *FlightState) Depleted() bool {
	return !s.InfiniteStamina() && s.Stamina <= 0
}

// clampStamina keeps v within [0, maxStamina]. An infinite cap always yields
// infinite stamina.
func clampStamina(v, maxStamina float64) float64 {
	if math.IsInf(maxStamina, 1) {
		return maxStamina
	}
	return math.Max(0, math.Min(maxStamina, v))
}

// directionHistory is a ring buffer of recent forward directions.
type directionHistory struct {
	buf  []mgl64.Vec3
	next int
	n    int
}

func newDirectionHistory(capacity int) directionHistory {
	return directionHistory{buf: make([]mgl64.Vec3, max(capacity, 1))}
}

func (h *directionHistory) push(v mgl64.Vec3) {
	if len(h.buf) == 0 {
		h.buf = make([]mgl64.Vec3, 10)
	}
	h.buf[h.next] = v
	h.next = (h.next + 1) % len(h.buf)
	h.n = min(h.n+1, len(h.buf))
}

func (h *directionHistory) reset() {
	clear(h.buf)
	h.next, h.n = 0, 0
}

// recent returns up to k of the latest entries, newest first.
func (h *directionHistory) recent(k int) []mgl64.Vec3 {
	k = min(k, h.n)
	out := make([]mgl64.Vec3, 0, k)
	for i := 1; i <= k; i++ {
		out = append(out, h.buf[(h.next-i+len(h.buf))%len(h.buf)])
	}
	return out
}

// stability returns the mean pairwise dot product of the latest k entries,
// in [-1, 1]. Fewer than two entries count as perfectly stable.
func (h *directionHistory) stability(k int) float64 {
	dirs := h.recent(k)
	if len(dirs) < 2 {
		return 1
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(dirs); i++ {
		for j := i + 1; j < len(dirs); j++ {
			sum += dirs[i].Dot(dirs[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}
