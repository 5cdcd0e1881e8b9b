package wyvern

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sandertv/gophertunnel/minecraft/text"
)

// DragonBundle returns the bundle that runs dragons: ground sampling and yaw
// tracking before anything else, then flight and the rider seat, then the
// stamina HUD. It also registers the /wyvern command.
func DragonBundle(t *Tuning) *Bundle {
	return NewBundle("dragon").
		Loop(&groundLoop{}, t.Ground.SampleInterval, Before).
		Loop(&rotationLoop{}, t.Rotation.SampleInterval, Before).
		Loop(&flightLoop{}, 1, Default).
		Loop(&seatLoop{}, 1, Default).
		Loop(&hudLoop{}, 10, After).
		Command(NewCommand())
}

// groundLoop samples the ground beneath every dragon once per interval. The
// reading is stored in GroundState and read by the flight loop, so a tick
// never sees two different readings.
type groundLoop struct {
	_ With[Dragon]
}

func (*groundLoop) Run(c *Context) {
	b, ok := c.Body()
	if !ok {
		return
	}
	contact, tr := c.Manager.Transitions().Sample(c.World, c.Actor.ID(), b.Position())
	switch tr.Edge {
	case EdgeLanded:
		c.Actor.Dispatch(LandedEvent{Actor: c.Actor, Contact: contact})
	case EdgeTookOff:
		c.Actor.Dispatch(TookOffEvent{Actor: c.Actor})
	}
}

// rotationLoop tracks the yaw of every dragon and publishes the turn
// direction.
type rotationLoop struct {
	_ With[Dragon]
}

func (*rotationLoop) Run(c *Context) {
	b, ok := c.Body()
	if !ok {
		return
	}
	prev := TurnNone
	if st := Get[RotationState](c.Actor); st != nil {
		prev = st.Direction
	}
	r := c.Manager.Rotations().Observe(b)
	if r.Direction != prev {
		c.Actor.Dispatch(TurnEvent{Actor: c.Actor, Rotation: r})
	}
}

// flightLoop runs the flight controller for every mounted dragon.
type flightLoop struct {
	_ With[Dragon]
	_ With[Mount]
	_ With[FlightState]
}

func (*flightLoop) Run(c *Context) {
	a := c.Actor
	st := Get[FlightState](a)
	mount := Get[Mount](a)
	if st == nil || mount == nil {
		return
	}
	dragon, ok := c.Body()
	if !ok {
		return
	}

	riderActor := mount.Rider.Get()
	var rider Rider
	if riderActor != nil {
		if in := Get[InputState](riderActor); in != nil && in.DismountRequested {
			in.DismountRequested = false
			Dismount(c.World, a)
			return
		}
		if r, ok := c.World.Rider(riderActor.ID()); ok {
			rider = r
		}
	}

	grounded := false
	if gs := Get[GroundState](a); gs != nil {
		grounded = gs.WasGrounded
	}

	switch c.Manager.Flight().Tick(st, dragon, rider, grounded, tierOf(a)) {
	case FlightStarted:
		a.Dispatch(FlightStartedEvent{Dragon: a, Rider: riderActor})
	case FlightEnded:
		if rider == nil {
			riderActor = nil
		}
		a.Dispatch(FlightEndedEvent{Dragon: a, Rider: riderActor})
	}

	// A rider that is gone releases the dragon.
	if rider == nil {
		Dismount(c.World, a)
	}
}

// seatLoop keeps the rider in the saddle and walks the dragon on the ground.
type seatLoop struct {
	_ With[Dragon]
	_ With[Mount]
}

func (*seatLoop) Run(c *Context) {
	mount := Get[Mount](c.Actor)
	if mount == nil {
		return
	}
	riderActor := mount.Rider.Get()
	if riderActor == nil {
		return
	}
	dragon, ok := c.Body()
	if !ok {
		return
	}
	rider, ok := c.World.Rider(riderActor.ID())
	if !ok || !rider.Valid() {
		return
	}
	f := c.Tuning().Flight

	view := rider.ViewDirection()
	dragon.Face(view)
	rider.Teleport(dragon.Position().Add(mgl64.Vec3{0, f.SeatHeight, 0}))

	if st := Get[FlightState](c.Actor); st != nil && st.Flying() {
		return
	}
	if !rider.InputPermission(InputLateralMovement) {
		return
	}
	in := rider.Input()
	if in.Move.Len() < f.HoverThreshold {
		return
	}
	fwd := normalize(flatten(view))
	right := mgl64.Vec3{-fwd[2], 0, fwd[0]}
	walk := fwd.Mul(in.Move.Y()).Add(right.Mul(in.Move.X())).Mul(f.WalkSpeed * tierOf(c.Actor).Speed)
	walk[1] = dragon.Velocity()[1]
	dragon.SetVelocity(walk)
}

// hudLoop shows the rider the stamina left while flying.
type hudLoop struct {
	_ With[Dragon]
	_ With[Mount]
	_ With[FlightState]
}

func (*hudLoop) Run(c *Context) {
	st := Get[FlightState](c.Actor)
	mount := Get[Mount](c.Actor)
	if st == nil || mount == nil || !st.Flying() || st.InfiniteStamina() {
		return
	}
	riderActor := mount.Rider.Get()
	if riderActor == nil {
		return
	}
	rider, ok := c.World.Rider(riderActor.ID())
	if !ok {
		return
	}
	maxStamina := c.Tuning().MaxStamina(tierOf(c.Actor))
	rider.Notify(staminaBar(st.Stamina, maxStamina))
}

// staminaBar renders stamina as a ten segment bar.
func staminaBar(stamina, maxStamina float64) string {
	if maxStamina <= 0 || math.IsInf(maxStamina, 1) {
		return ""
	}
	filled := int(math.Round(10 * stamina / maxStamina))
	filled = min(max(filled, 0), 10)
	colour := "green"
	switch {
	case filled <= 2:
		colour = "red"
	case filled <= 5:
		colour = "yellow"
	}
	bar := ""
	for i := range 10 {
		if i < filled {
			bar += "■"
		} else {
			bar += "□"
		}
	}
	return text.Colourf("<%s>%s</%s>", colour, bar, colour)
}

// interactTask tames and mounts a dragon for the interacting player.
type interactTask struct {
	dragon *Actor
}

func (t interactTask) Run(c *Context) {
	rider, ok := c.World.Rider(c.Actor.ID())
	if !ok || t.dragon.Closed() {
		return
	}
	// Flight revokes mount control until the dragon lands.
	if !rider.InputPermission(InputMount) {
		return
	}
	if !Has[Tamed](t.dragon) {
		if !c.Tuning().AutoTame {
			rider.Notify(text.Colourf("<red>This dragon is wild.</red>"))
			return
		}
		if err := Tame(t.dragon, c.Actor); err != nil {
			return
		}
		rider.Notify(text.Colourf("<green>You tamed %s.</green>", t.dragon.Name()))
	}
	if RiddenDragon(c.Actor) == t.dragon {
		return
	}
	if err := MountDragon(c.World, t.dragon, c.Actor); err != nil {
		rider.Notify(text.Colourf("<red>%s</red>", mountError(err)))
		return
	}
	rider.Notify(text.Colourf("<aqua>Jump to take off, sneak to dismount.</aqua>"))
}

func mountError(err error) string {
	switch {
	case errors.Is(err, ErrNotTamed):
		return "This dragon is wild."
	case errors.Is(err, ErrNotOwner):
		return "This dragon does not trust you."
	case errors.Is(err, ErrAlreadyMounted):
		return "Someone is already riding this dragon."
	default:
		return fmt.Sprintf("Cannot mount: %v", err)
	}
}

// meleeTask makes the rider's dragon attack in front of it.
type meleeTask struct {
	_ With[Riding]
}

func (meleeTask) Run(c *Context) {
	dragonActor := RiddenDragon(c.Actor)
	if dragonActor == nil {
		return
	}
	dragon, ok := c.World.Body(dragonActor.ID())
	if !ok {
		return
	}
	var rider Body
	if r, ok := c.World.Rider(c.Actor.ID()); ok {
		rider = r
	}
	res := c.Manager.Melee().Resolve(c.World, dragon, dragon.ViewDirection(), rider)
	dragonActor.Dispatch(MeleeEvent{Dragon: dragonActor, Rider: c.Actor, Result: res})
}

// rangedTask makes the rider's dragon fire a volley, at most once per
// cooldown.
type rangedTask struct {
	_ With[Riding]
}

func (rangedTask) Run(c *Context) {
	dragonActor := RiddenDragon(c.Actor)
	if dragonActor == nil {
		return
	}
	mount := Get[Mount](dragonActor)
	if mount == nil {
		return
	}
	cooldown := uint64(c.Tuning().Ranged.Cooldown)
	if mount.LastVolley != 0 && c.Tick-mount.LastVolley < cooldown {
		return
	}
	dragon, ok := c.World.Body(dragonActor.ID())
	if !ok {
		return
	}
	rider, ok := c.World.Rider(c.Actor.ID())
	if !ok {
		return
	}
	n := c.Manager.Ranged().Fire(c.World, dragonActor.Scheduler(), dragon, rider)
	if n > 0 {
		mount.LastVolley = c.Tick
		dragonActor.Dispatch(VolleyEvent{Dragon: dragonActor, Rider: c.Actor, Projectiles: n})
	}
}
