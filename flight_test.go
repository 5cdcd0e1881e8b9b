package wyvern

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

type flightRig struct {
	tuning *Tuning
	c      *FlightController
	st     *FlightState
	dragon *fakeBody
	rider  *fakeRider
	roll   float64
}

func newFlightRig(t *testing.T, mutate func(*Tuning)) *flightRig {
	t.Helper()
	tuning := DefaultTuning()
	if mutate != nil {
		mutate(&tuning)
	}
	r := &flightRig{
		tuning: &tuning,
		dragon: newFakeBody(DragonType, mgl64.Vec3{0, 64, 0}),
		rider:  newFakeRider(mgl64.Vec3{0, 65.6, 0}),
	}
	r.c = NewFlightController(r.tuning, func() float64 { return r.roll }, discardLogger())
	r.st = NewFlightState(r.tuning, NeutralMilestone)
	return r
}

func (r *flightRig) tick(grounded bool) FlightOutcome {
	return r.c.Tick(r.st, r.dragon, r.rider, grounded, NeutralMilestone)
}

// takeOff presses jump for one tick and releases it.
func (r *flightRig) takeOff(t *testing.T) {
	t.Helper()
	r.rider.input = Input{Jump: true}
	if got := r.tick(true); got != FlightStarted {
		t.Fatalf("takeoff outcome = %v, want started", got)
	}
	r.rider.input = Input{}
}

func TestFlightIdleWithoutJump(t *testing.T) {
	r := newFlightRig(t, nil)
	for range 5 {
		if got := r.tick(true); got != FlightIdle {
			t.Fatalf("outcome = %v, want idle", got)
		}
	}
	if r.st.Flying() {
		t.Fatal("flying without a jump")
	}
	if r.st.Stamina != 100 {
		t.Fatalf("stamina = %v, want 100", r.st.Stamina)
	}
}

func TestFlightTakeoff(t *testing.T) {
	r := newFlightRig(t, nil)
	r.takeOff(t)

	if r.st.FlyingTicks != 1 {
		t.Errorf("FlyingTicks = %d, want 1", r.st.FlyingTicks)
	}
	if !approxVec(r.dragon.vel, mgl64.Vec3{0, 0.8, 0.6}) {
		t.Errorf("impulse = %v, want forward 0.6 and lift 0.8", r.dragon.vel)
	}
	if !approxVec(r.st.Velocity, mgl64.Vec3{0, 0.4, 0}) {
		t.Errorf("Velocity = %v", r.st.Velocity)
	}
	if _, ok := r.dragon.effects[EffectSlowFalling]; !ok {
		t.Error("slow falling not applied")
	}
	if r.dragon.props[PropertyFlying] != true {
		t.Error("flying property not set")
	}
	if len(r.dragon.triggers) != 1 || r.dragon.triggers[0] != TriggerFlightStarted {
		t.Errorf("triggers = %v", r.dragon.triggers)
	}
	for c, enabled := range r.rider.perms {
		if enabled {
			t.Errorf("permission %v still granted", c)
		}
	}
}

func TestFlightLandsOnlyAfterMinimumFlight(t *testing.T) {
	r := newFlightRig(t, nil)
	r.takeOff(t)

	// Touching ground right after takeoff does not land.
	for i := range 5 {
		if got := r.tick(true); got != FlightContinued {
			t.Fatalf("tick %d: outcome = %v, want continued", i, got)
		}
	}

	r2 := newFlightRig(t, nil)
	r2.takeOff(t)
	r2.rider.input = Input{Move: mgl64.Vec2{0, 1}}
	for range 10 {
		r2.tick(false)
	}
	if r2.st.FlyingTicks != 11 {
		t.Fatalf("FlyingTicks = %d, want 11", r2.st.FlyingTicks)
	}
	outcomes := []FlightOutcome{r2.tick(true), r2.tick(true), r2.tick(true)}
	want := []FlightOutcome{FlightContinued, FlightContinued, FlightEnded}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Fatalf("grounded tick %d: outcome = %v, want %v", i, outcomes[i], want[i])
		}
	}

	if r2.st.Flying() {
		t.Error("still flying after landing")
	}
	if r2.dragon.props[PropertyFlying] != false {
		t.Error("flying property not cleared")
	}
	if got := r2.dragon.triggers[len(r2.dragon.triggers)-1]; got != TriggerFlightEnded {
		t.Errorf("last trigger = %q", got)
	}
	if len(r2.dragon.effects) != 0 {
		t.Errorf("effects left: %v", r2.dragon.effects)
	}
	for c, enabled := range r2.rider.perms {
		if !enabled {
			t.Errorf("permission %v not restored", c)
		}
	}
	if r2.rider.speed != r2.tuning.Flight.RiderSpeed {
		t.Errorf("rider speed = %v", r2.rider.speed)
	}
	if r2.rider.stopped != 1 {
		t.Errorf("StopMusic calls = %d, want 1", r2.rider.stopped)
	}
	if r2.rider.props[PropertyFOV] != r2.tuning.FOV.Base {
		t.Errorf("rider FOV = %v", r2.rider.props[PropertyFOV])
	}
}

func TestFlightEndsWhenRiderDisappears(t *testing.T) {
	r := newFlightRig(t, nil)
	r.takeOff(t)
	r.rider.gone = true

	if got := r.tick(false); got != FlightEnded {
		t.Fatalf("outcome = %v, want ended", got)
	}
	if r.rider.speed != 0 || r.rider.stopped != 0 {
		t.Error("invalid rider was restored")
	}
	if r.dragon.props[PropertyFlying] != false {
		t.Error("dragon not restored")
	}

	// Without a rider nothing starts.
	if got := r.c.Tick(r.st, r.dragon, nil, true, NeutralMilestone); got != FlightIdle {
		t.Fatalf("outcome without rider = %v, want idle", got)
	}
}

func TestFlightStaminaStaysInBounds(t *testing.T) {
	r := newFlightRig(t, nil)
	rng := rand.New(rand.NewPCG(7, 11))
	maxStamina := r.tuning.MaxStamina(NeutralMilestone)

	for i := range 2000 {
		r.rider.input = Input{
			Move: mgl64.Vec2{float64(rng.IntN(3) - 1), float64(rng.IntN(3) - 1)},
			Jump: rng.IntN(10) == 0,
		}
		pitch := (rng.Float64() - 0.5) * math.Pi
		r.rider.view = mgl64.Vec3{0, -math.Sin(pitch), math.Cos(pitch)}
		r.tick(rng.IntN(4) == 0)

		if r.st.Stamina < 0 || r.st.Stamina > maxStamina {
			t.Fatalf("tick %d: stamina %v outside [0, %v]", i, r.st.Stamina, maxStamina)
		}
	}
}

func TestFlightInfiniteStamina(t *testing.T) {
	r := newFlightRig(t, func(t *Tuning) { t.Stamina.Max = 0 })
	if !r.st.InfiniteStamina() {
		t.Fatal("stamina not infinite")
	}
	r.takeOff(t)
	r.rider.input = Input{Move: mgl64.Vec2{0, 1}}
	for range 50 {
		r.tick(false)
	}
	if !r.st.InfiniteStamina() || !r.st.Boosting {
		t.Fatalf("stamina = %v, boosting = %v", r.st.Stamina, r.st.Boosting)
	}
}

func TestFlightBoostDrainsStamina(t *testing.T) {
	r := newFlightRig(t, nil)
	r.takeOff(t)
	r.rider.input = Input{Move: mgl64.Vec2{0, 1}}

	r.tick(false)
	if !r.st.Boosting {
		t.Fatal("not boosting with forward held")
	}
	if !approx(r.st.Stamina, 100-r.tuning.Stamina.BoostDrain) {
		t.Fatalf("stamina = %v", r.st.Stamina)
	}
	if !approx(r.st.FOV, r.tuning.FOV.Base+r.tuning.FOV.Step) {
		t.Fatalf("FOV = %v, want one step up", r.st.FOV)
	}
	if r.dragon.props[PropertyBoosting] != true {
		t.Error("boosting property not set")
	}
	if r.dragon.vel != r.st.Velocity {
		t.Errorf("dragon velocity %v != state velocity %v", r.dragon.vel, r.st.Velocity)
	}
}

func TestFlightDepletedDescends(t *testing.T) {
	r := newFlightRig(t, nil)
	r.takeOff(t)
	r.st.Stamina = 0
	r.rider.input = Input{Move: mgl64.Vec2{0, 1}}

	for i := range 200 {
		r.tick(false)
		if r.st.Boosting {
			t.Fatalf("tick %d: boosting without stamina", i)
		}
		if r.st.Velocity[1] >= 0 {
			t.Fatalf("tick %d: climbing without stamina: %v", i, r.st.Velocity)
		}
	}
	if speed := r.st.Velocity.Len(); speed > 0.5 {
		t.Fatalf("speed %v, want capped near %v", speed, r.tuning.Flight.CruiseSpeed*r.tuning.Flight.DepletedMultiplier)
	}
}

func TestFlightHover(t *testing.T) {
	r := newFlightRig(t, nil)
	r.takeOff(t)
	launch := r.dragon.vel

	for range 21 {
		r.tick(false)
	}
	if !r.st.Hovering {
		t.Fatal("not hovering without input")
	}
	if _, ok := r.dragon.effects[EffectSlowFalling]; ok {
		t.Error("slow falling kept while hovering")
	}
	if got := r.dragon.adds(EffectLevitation); got != 2 {
		t.Errorf("levitation applied %d times, want 2", got)
	}
	if r.dragon.vel != launch {
		t.Error("velocity written while hovering")
	}
	if !approx(r.st.Stamina, 100-21*r.tuning.Stamina.HoverDrain) {
		t.Errorf("stamina = %v", r.st.Stamina)
	}
	if r.dragon.props[PropertyHovering] != true {
		t.Error("hovering property not set")
	}

	r.rider.input = Input{Move: mgl64.Vec2{0, 1}}
	r.tick(false)
	if r.st.Hovering {
		t.Fatal("still hovering with input")
	}
	if _, ok := r.dragon.effects[EffectLevitation]; ok {
		t.Error("levitation kept after hover")
	}
	if _, ok := r.dragon.effects[EffectSlowFalling]; !ok {
		t.Error("slow falling not restored")
	}
}

func TestFlightDive(t *testing.T) {
	tests := []struct {
		name  string
		pitch float64
		dive  bool
	}{
		{"steep", 60, true},
		{"shallow", 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFlightRig(t, nil)
			r.takeOff(t)
			p := tt.pitch * math.Pi / 180
			r.rider.view = mgl64.Vec3{0, -math.Sin(p), math.Cos(p)}
			r.rider.input = Input{Move: mgl64.Vec2{0, 1}}
			r.tick(false)

			if r.st.Diving != tt.dive {
				t.Fatalf("Diving = %v, want %v", r.st.Diving, tt.dive)
			}
			if !tt.dive {
				return
			}
			speed := r.tuning.Flight.DiveSpeed * tt.pitch / 90 * r.tuning.Flight.DiveBoost
			if !approxVec(r.dragon.vel, r.rider.view.Mul(speed)) {
				t.Fatalf("velocity = %v, want %v along view", r.dragon.vel, speed)
			}
			if r.dragon.props[PropertyDiving] != true {
				t.Error("diving property not set")
			}
		})
	}
}

func TestFlightFOVTargets(t *testing.T) {
	tests := []struct {
		name string
		move mgl64.Vec2
		want func(f FOVTuning) float64
	}{
		{"boost", mgl64.Vec2{0, 1}, func(f FOVTuning) float64 { return f.Boost }},
		{"back", mgl64.Vec2{0, -1}, func(f FOVTuning) float64 { return f.Back }},
		{"side", mgl64.Vec2{1, 0}, func(f FOVTuning) float64 { return math.Min(f.Side, f.Forward-f.Step) }},
		{"hover", mgl64.Vec2{}, func(f FOVTuning) float64 { return f.Hover }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFlightRig(t, func(t *Tuning) { t.Stamina.Max = 0 })
			r.takeOff(t)
			r.rider.input = Input{Move: tt.move}
			prev := r.st.FOV
			for range 40 {
				r.tick(false)
				if math.Abs(r.st.FOV-prev) > r.tuning.FOV.Step+1e-9 {
					t.Fatalf("FOV jumped from %v to %v", prev, r.st.FOV)
				}
				prev = r.st.FOV
			}
			if want := tt.want(r.tuning.FOV); !approx(r.st.FOV, want) {
				t.Fatalf("FOV = %v, want %v", r.st.FOV, want)
			}
			if r.rider.props[PropertyFOV] != r.st.FOV {
				t.Error("rider FOV property not written")
			}
		})
	}
}

func TestFlightMusic(t *testing.T) {
	setup := func(t *Tuning) {
		t.Music.Interval = 5
		t.Music.Chance = 0.5
	}

	r := newFlightRig(t, setup)
	r.takeOff(t)
	r.rider.input = Input{Move: mgl64.Vec2{0, 1}}
	for range 6 {
		r.tick(false)
	}
	if len(r.rider.music) != 1 || r.rider.music[0] != r.tuning.Music.Tracks[0] {
		t.Fatalf("music = %v", r.rider.music)
	}
	if r.st.AirborneTicks != 0 {
		t.Fatalf("AirborneTicks = %d after a roll", r.st.AirborneTicks)
	}

	// A failed roll still restarts the interval.
	miss := newFlightRig(t, setup)
	miss.roll = 0.9
	miss.takeOff(t)
	miss.rider.input = Input{Move: mgl64.Vec2{0, 1}}
	for range 6 {
		miss.tick(false)
	}
	if len(miss.rider.music) != 0 || miss.st.AirborneTicks != 0 {
		t.Fatalf("music = %v, AirborneTicks = %d", miss.rider.music, miss.st.AirborneTicks)
	}

	off := newFlightRig(t, func(t *Tuning) {
		setup(t)
		t.Music.Enabled = false
	})
	off.takeOff(t)
	off.rider.input = Input{Move: mgl64.Vec2{0, 1}}
	for range 20 {
		off.tick(false)
	}
	if len(off.rider.music) != 0 {
		t.Fatalf("music played while disabled: %v", off.rider.music)
	}
}

func TestFlightTierScalesStamina(t *testing.T) {
	tuning := DefaultTuning()
	st := NewFlightState(&tuning, tuning.Milestone("adult"))
	if !approx(st.Stamina, 125) {
		t.Fatalf("stamina = %v, want 125", st.Stamina)
	}
}

func TestDirectionHistory(t *testing.T) {
	h := newDirectionHistory(3)
	if got := h.stability(4); got != 1 {
		t.Fatalf("empty stability = %v, want 1", got)
	}

	north, south := mgl64.Vec3{0, 0, 1}, mgl64.Vec3{0, 0, -1}
	h.push(north)
	h.push(north)
	if got := h.stability(4); !approx(got, 1) {
		t.Fatalf("steady stability = %v, want 1", got)
	}

	h.push(south)
	h.push(south)
	// Capacity 3 keeps north, south, south; newest first.
	got := h.recent(4)
	if len(got) != 3 || got[0] != south || got[2] != north {
		t.Fatalf("recent = %v", got)
	}
	if s := h.stability(3); !approx(s, -1.0/3) {
		t.Fatalf("erratic stability = %v, want -1/3", s)
	}

	h.reset()
	if len(h.recent(3)) != 0 {
		t.Fatal("reset kept entries")
	}
}

// steadyRig is a flying rig whose blend and damping leave velocity alone, so
// one tick isolates the acceleration and overage steps.
func steadyRig(t *testing.T) *flightRig {
	t.Helper()
	r := newFlightRig(t, func(tuning *Tuning) {
		tuning.Flight.Momentum = 1
		tuning.Flight.Damping = 1
	})
	r.takeOff(t)
	return r
}

func TestFlightSpeedCaps(t *testing.T) {
	tiers := map[string]MilestoneTuning{
		"neutral": NeutralMilestone,
		"adult":   {Speed: 1.2, Acceleration: 1.15, Stamina: 1},
	}
	for name, tier := range tiers {
		t.Run(name, func(t *testing.T) {
			r := newFlightRig(t, func(tuning *Tuning) { tuning.Stamina.Max = 0 })
			r.takeOff(t)
			f := r.tuning.Flight
			boostCap := f.BoostSpeed * tier.Speed
			cruiseCap := f.CruiseSpeed * tier.Speed

			r.rider.input = Input{Move: mgl64.Vec2{0, 1}}
			for i := range 200 {
				r.c.Tick(r.st, r.dragon, r.rider, false, tier)
				if s := r.st.Velocity.Len(); s > boostCap+1e-9 {
					t.Fatalf("boost tick %d: speed %v above %v", i, s, boostCap)
				}
			}
			if s := r.st.Velocity.Len(); !approx(s, boostCap) {
				t.Fatalf("boost speed settled at %v, want %v", s, boostCap)
			}

			// Strafing does not boost, so the cruise cap applies at once.
			r.rider.input = Input{Move: mgl64.Vec2{1, 0}}
			for i := range 50 {
				r.c.Tick(r.st, r.dragon, r.rider, false, tier)
				if s := r.st.Velocity.Len(); s > cruiseCap+1e-9 {
					t.Fatalf("strafe tick %d: speed %v above %v", i, s, cruiseCap)
				}
			}
		})
	}
}

func TestFlightAccelerationStopsAtLimit(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		want  float64
	}{
		{"full step", 1.0, 1.2},
		{"capped step", 1.55, 1.6},
		{"at limit", 1.6, 1.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := steadyRig(t)
			fwd := mgl64.Vec3{0, r.tuning.Flight.PitchOffset, 1}.Normalize()
			r.st.Velocity = fwd.Mul(tt.start)
			r.rider.input = Input{Move: mgl64.Vec2{0, 1}}
			r.tick(false)
			if s := r.st.Velocity.Len(); !approx(s, tt.want) {
				t.Fatalf("speed = %v, want %v", s, tt.want)
			}
		})
	}
}

func TestFlightErraticHeadingAcceleratesLess(t *testing.T) {
	gain := func(t *testing.T, headings []mgl64.Vec3) float64 {
		t.Helper()
		r := steadyRig(t)
		for _, h := range headings {
			r.st.history.push(h)
		}
		r.st.Velocity = mgl64.Vec3{}
		r.rider.input = Input{Move: mgl64.Vec2{0, 1}}
		r.tick(false)
		return r.st.Velocity.Len()
	}
	east, west := mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-1, 0, 0}
	steady := gain(t, []mgl64.Vec3{east, east, east, east})
	erratic := gain(t, []mgl64.Vec3{east, west, east, west})

	f := DefaultTuning().Flight
	if !approx(steady, f.Acceleration) {
		t.Fatalf("steady gain = %v, want %v", steady, f.Acceleration)
	}
	// Four alternating headings have a mean pairwise dot of -1/3.
	penalty := (1 + 1.0/3) / 2 * f.ErraticPenalty
	if !approx(erratic, f.Acceleration*(1-penalty)) {
		t.Fatalf("erratic gain = %v, want %v", erratic, f.Acceleration*(1-penalty))
	}
	if erratic >= steady {
		t.Fatal("erratic heading accelerated as fast as a steady one")
	}
}

func TestFlightOveragePolicy(t *testing.T) {
	tests := []struct {
		name  string
		move  mgl64.Vec2
		start float64
		want  float64
	}{
		// Strafing cruises at 0.9.
		{"snap far above cruise", mgl64.Vec2{1, 0}, 1.8, 0.9},
		{"decay just above cruise", mgl64.Vec2{1, 0}, 1.0, 1.0 - 0.1*0.2},
		{"decay below the snap fraction", mgl64.Vec2{1, 0}, 1.15, 1.15 - 0.25*0.2},
		{"below cruise kept", mgl64.Vec2{1, 0}, 0.5, 0.5},
		// Boosting caps at 1.6, as after a dive.
		{"snap after dive", mgl64.Vec2{0, 1}, 2.4, 1.6},
		{"decay after dive", mgl64.Vec2{0, 1}, 1.8, 1.8 - 0.2*0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := steadyRig(t)
			r.st.Velocity = mgl64.Vec3{0, 0, tt.start}
			r.rider.input = Input{Move: tt.move}
			r.tick(false)
			if s := r.st.Velocity.Len(); !approx(s, tt.want) {
				t.Fatalf("speed = %v, want %v", s, tt.want)
			}
		})
	}
}

func TestFlightMomentumSlowsTurns(t *testing.T) {
	prev := math.Inf(1)
	for _, momentum := range []float64{0.5, 0.7, 0.9} {
		r := newFlightRig(t, func(tuning *Tuning) {
			tuning.Flight.Momentum = momentum
			tuning.Flight.Damping = 1
		})
		r.takeOff(t)
		r.st.Velocity = mgl64.Vec3{0, 0, 1}
		r.rider.input = Input{Move: mgl64.Vec2{1, 0}}
		r.tick(false)

		v := r.st.Velocity
		turned := math.Atan2(math.Abs(v[0]), v[2])
		want := math.Atan((1 - momentum) / momentum)
		if !approx(turned, want) {
			t.Fatalf("momentum %v: turned %v rad, want %v", momentum, turned, want)
		}
		if turned >= prev {
			t.Fatalf("momentum %v turned %v, not slower than %v", momentum, turned, prev)
		}
		prev = turned
	}
}
