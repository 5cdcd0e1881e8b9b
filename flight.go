package wyvern

import (
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// FlightOutcome is what a FlightController tick did.
type FlightOutcome uint8

const (
	// FlightIdle means the dragon stayed on the ground.
	FlightIdle FlightOutcome = iota
	FlightStarted
	FlightContinued
	FlightEnded
)

// String ...
func (o FlightOutcome) String() string {
	switch o {
	case FlightStarted:
		return "started"
	case FlightContinued:
		return "continued"
	case FlightEnded:
		return "ended"
	default:
		return "idle"
	}
}

// FlightController drives takeoff, sustained flight and landing of ridden
// dragons. It is stateless; all per-dragon state lives in FlightState.
type FlightController struct {
	t *Tuning
	// chance returns a number in [0, 1).
	chance func() float64
	log    *slog.Logger
}

// NewFlightController returns a controller using t. chance supplies the
// random numbers for ambient music.
func NewFlightController(t *Tuning, chance func() float64, log *slog.Logger) *FlightController {
	return &FlightController{t: t, chance: chance, log: log}
}

// Tick advances the flight of one dragon by a tick. rider may be nil when
// the dragon has no rider; grounded is this tick's ground reading.
func (c *FlightController) Tick(st *FlightState, dragon Body, rider Rider, grounded bool, tier MilestoneTuning) FlightOutcome {
	maxStamina := c.t.MaxStamina(tier)
	st.Stamina = clampStamina(st.Stamina, maxStamina)

	// Rider derived data is only read after this check.
	if dragon == nil || !dragon.Valid() || rider == nil || !rider.Valid() {
		if st.Flying() {
			c.End(st, dragon, rider)
			return FlightEnded
		}
		st.Stamina = clampStamina(st.Stamina+c.t.Stamina.Recovery, maxStamina)
		return FlightIdle
	}

	in := rider.Input()
	if in.Jump {
		st.JumpPressedTicks++
	} else {
		st.JumpPressedTicks = 0
	}
	if grounded {
		st.GroundedTicks++
	} else {
		st.GroundedTicks = 0
	}

	if !st.Flying() {
		if st.JumpPressedTicks >= 1 {
			c.start(st, dragon, rider)
			return FlightStarted
		}
		st.Stamina = clampStamina(st.Stamina+c.t.Stamina.Recovery, maxStamina)
		return FlightIdle
	}

	f := c.t.Flight
	if st.GroundedTicks > f.LandGroundedTicks && st.FlyingTicks > f.LandFlyingTicks {
		c.End(st, dragon, rider)
		return FlightEnded
	}
	c.continueFlying(st, dragon, rider, in, grounded, tier, maxStamina)
	return FlightContinued
}

// start lifts the dragon off and hands the rider's input to flight steering.
func (c *FlightController) start(st *FlightState, dragon Body, rider Rider) {
	f := c.t.Flight

	st.FlyingTicks = 1
	st.GroundedTicks = 0
	st.HoveringTicks = 0
	st.AirborneTicks = 0
	st.Hovering, st.Diving, st.Boosting = false, false, false
	st.history.reset()

	forward := normalize(flatten(rider.ViewDirection()))
	dragon.ApplyImpulse(forward.Mul(f.TakeoffImpulse).Add(mgl64.Vec3{0, f.TakeoffLift, 0}))
	dragon.AddEffect(Effect{Kind: EffectSlowFalling, Duration: f.SlowFallingDuration})

	rider.SetInputPermission(InputLateralMovement, false)
	rider.SetInputPermission(InputMount, false)
	rider.SetInputPermission(InputJump, false)

	st.Velocity = mgl64.Vec3{0, f.TakeoffVelocity, 0}
	dragon.SetProperty(PropertyFlying, true)
	dragon.Trigger(TriggerFlightStarted)
}

// End stops flight and restores the rider. dragon and rider may be nil or
// invalid; effects are only applied to the ones that are still valid.
func (c *FlightController) End(st *FlightState, dragon Body, rider Rider) {
	st.FlyingTicks = 0
	st.HoveringTicks = 0
	st.GroundedTicks = 0
	st.JumpPressedTicks = 0
	st.AirborneTicks = 0
	st.Hovering, st.Diving, st.Boosting = false, false, false
	st.Velocity = mgl64.Vec3{}
	st.FOV = c.t.FOV.Base
	st.history.reset()

	if dragon != nil && dragon.Valid() {
		dragon.SetProperty(PropertyFlying, false)
		dragon.SetProperty(PropertyHovering, false)
		dragon.SetProperty(PropertyDiving, false)
		dragon.SetProperty(PropertyBoosting, false)
		dragon.RemoveEffect(EffectLevitation)
		dragon.RemoveEffect(EffectSlowFalling)
		dragon.Trigger(TriggerFlightEnded)
	}
	if rider != nil && rider.Valid() {
		rider.SetInputPermission(InputLateralMovement, true)
		rider.SetInputPermission(InputMount, true)
		rider.SetInputPermission(InputJump, true)
		rider.SetMovementSpeed(c.t.Flight.RiderSpeed)
		rider.SetProperty(PropertyFOV, st.FOV)
		rider.StopMusic()
	}
}

// continueFlying runs one tick of sustained flight.
func (c *FlightController) continueFlying(st *FlightState, dragon Body, rider Rider, in Input, grounded bool, tier MilestoneTuning, maxStamina float64) {
	f := c.t.Flight
	st.FlyingTicks++

	view := normalize(rider.ViewDirection())
	forward := c.forward(view)
	right := normalize(mgl64.Vec3{-forward[2], 0, forward[0]})
	steering := forward.Mul(in.Move.Y()).Add(right.Mul(in.Move.X()))

	hovering := in.Move.Len() < f.HoverThreshold
	if hovering != st.Hovering {
		if hovering {
			dragon.RemoveEffect(EffectSlowFalling)
		} else {
			dragon.RemoveEffect(EffectLevitation)
			dragon.AddEffect(Effect{Kind: EffectSlowFalling, Duration: f.SlowFallingDuration})
		}
		st.Hovering = hovering
		st.HoveringTicks = 0
	}

	forwardHeld := in.Move.Y() > 0 && in.Move.Y() >= math.Abs(in.Move.X())
	st.Boosting = forwardHeld && !hovering && (st.InfiniteStamina() || st.Stamina > 0)

	if hovering {
		if st.HoveringTicks%f.LevitationInterval == 0 {
			dragon.AddEffect(Effect{Kind: EffectLevitation, Amplifier: f.LevitationAmplifier, Duration: f.LevitationDuration})
		}
		st.HoveringTicks++
		st.Velocity = st.Velocity.Mul(f.Damping)
	} else {
		// Blend toward the steering direction. A floor on the blend speed lets
		// a dragon that has slowed to a stop turn again.
		speed := math.Max(st.Velocity.Len(), f.SteeringFloor)
		st.Velocity = st.Velocity.Mul(f.Momentum).
			Add(steering.Mul(speed * (1 - f.Momentum))).
			Mul(f.Damping)
	}

	if st.Depleted() && st.Velocity[1] > -f.MinDescent {
		st.Velocity[1] = -f.MinDescent
	}

	limit := f.CruiseSpeed
	if st.Boosting {
		limit = f.BoostSpeed
	}
	limit *= tier.Speed
	if st.Depleted() {
		limit *= f.DepletedMultiplier
	}

	if st.FlyingTicks%f.HistoryEvery == 0 {
		st.history.push(forward)
	}

	speed := st.Velocity.Len()
	switch {
	case forwardHeld && !hovering && speed < limit:
		stability := st.history.stability(f.HistorySample)
		penalty := (1 - stability) / 2 * f.ErraticPenalty
		accel := f.Acceleration * tier.Acceleration * (1 - penalty)
		accel = math.Min(accel, limit-speed)
		st.Velocity = st.Velocity.Add(normalize(steering).Mul(accel))
	case speed > limit:
		overage := speed - limit
		if overage/speed > f.OverageSnapFraction {
			st.Velocity = st.Velocity.Mul(limit / speed)
		} else {
			st.Velocity = st.Velocity.Mul((speed - overage*f.DecayRate) / speed)
		}
	}

	if !st.InfiniteStamina() {
		drain := c.t.Stamina.Drain
		switch {
		case st.Boosting:
			drain = c.t.Stamina.BoostDrain
		case hovering:
			drain = c.t.Stamina.HoverDrain
		}
		st.Stamina = clampStamina(st.Stamina-drain, maxStamina)
	}

	pitch := -math.Asin(clamp(view[1], -1, 1)) * 180 / math.Pi
	st.Diving = !hovering && pitch > f.DivePitch && in.Move.Y() >= 0.99
	if st.Diving {
		dive := f.DiveSpeed * pitch / 90
		if st.Boosting {
			dive *= f.DiveBoost
		}
		st.Velocity = view.Mul(dive)
	}

	c.updateFOV(st, in, hovering)
	rider.SetProperty(PropertyFOV, st.FOV)

	if grounded {
		st.AirborneTicks = 0
	} else {
		st.AirborneTicks++
		c.rollMusic(st, rider)
	}

	dragon.SetProperty(PropertyHovering, st.Hovering)
	dragon.SetProperty(PropertyDiving, st.Diving)
	dragon.SetProperty(PropertyBoosting, st.Boosting)
	if !hovering {
		dragon.SetVelocity(st.Velocity)
	}
}

// forward flattens view and pitches it up by the configured offset.
func (c *FlightController) forward(view mgl64.Vec3) mgl64.Vec3 {
	f := c.t.Flight
	v := normalize(mgl64.Vec3{view[0], view[1]*f.VerticalFollow + f.PitchOffset, view[2]})
	if v == (mgl64.Vec3{}) {
		return mgl64.Vec3{0, 0, 1}
	}
	return v
}

// updateFOV moves the FOV one step toward the target for the input.
func (c *FlightController) updateFOV(st *FlightState, in Input, hovering bool) {
	fov := c.t.FOV
	x, y := in.Move.X(), in.Move.Y()

	target := fov.Base
	switch {
	case hovering:
		target = fov.Hover
	case st.Boosting:
		target = fov.Boost
	case y > 0 && y >= math.Abs(x):
		target = fov.Forward
	case y < 0 && -y >= math.Abs(x):
		target = fov.Back
	case x != 0:
		// Diagonal input flips between side and forward; keeping side below
		// forward avoids a jump in FOV when it does.
		target = math.Min(fov.Side, fov.Forward-fov.Step)
	}

	switch d := target - st.FOV; {
	case math.Abs(d) <= fov.Step:
		st.FOV = target
	case d > 0:
		st.FOV += fov.Step
	default:
		st.FOV -= fov.Step
	}
}

// rollMusic rolls for an ambient track once the dragon has been airborne for
// longer than the music interval.
func (c *FlightController) rollMusic(st *FlightState, rider Rider) {
	m := c.t.Music
	if !m.Enabled || len(m.Tracks) == 0 || st.AirborneTicks <= m.Interval {
		return
	}
	st.AirborneTicks = 0
	if c.chance() >= m.Chance {
		return
	}
	track := m.Tracks[int(c.chance()*float64(len(m.Tracks)))%len(m.Tracks)]
	rider.PlayMusic(track)
	c.log.Debug("wyvern: playing ambient track", "rider", rider.ID(), "track", track)
}
