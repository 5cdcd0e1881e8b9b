package wyvern

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

var (
	ErrNotDragon      = errors.New("wyvern: actor is not a dragon")
	ErrNotTamed       = errors.New("wyvern: dragon is not tamed")
	ErrNotOwner       = errors.New("wyvern: dragon belongs to someone else")
	ErrAlreadyMounted = errors.New("wyvern: dragon already has a rider")
)

// Dragon marks an actor as a rideable dragon.
type Dragon struct {
	// Type is the entity type reported for the dragon.
	Type string
}

// Tamed records the owner of a dragon.
type Tamed struct {
	Owner     uuid.UUID
	OwnerName string
}

// Stable is attached to an owner and lists the dragons it tamed. Dragons
// that are reaped drop out of it.
type Stable struct {
	Dragons RelationSet[Tamed]
}

func newStable() *Stable {
	return &Stable{}
}

// Milestone selects a dragon's progression tier.
type Milestone struct {
	Tier string
}

// Mount is attached to a dragon while it carries a rider.
type Mount struct {
	Rider Relation[Riding]
	// LastVolley is the tick of the last ranged volley.
	LastVolley uint64
}

// Riding is attached to a rider while it sits on a dragon.
type Riding struct {
	Dragon Relation[Mount]
}

// InputState is the rider input recorded by the player handler between
// ticks, together with the input permissions flight revokes.
type InputState struct {
	Move     mgl64.Vec2
	MoveTick uint64
	JumpTick uint64
	Sneak    bool

	// DismountRequested is consumed by the flight loop.
	DismountRequested bool

	LateralMovement bool
	MountControl    bool
	JumpControl     bool
	Speed           float64
}

// Input returns the input for tick. Movement recorded more than two ticks
// ago has been released, and jump counts as held on the tick it was
// recorded and the one after.
func (s *InputState) Input(tick uint64) Input {
	in := Input{Sneak: s.Sneak}
	if s.MoveTick != 0 && tick-s.MoveTick <= 2 {
		in.Move = s.Move
	}
	if s.JumpTick != 0 && tick-s.JumpTick <= 1 {
		in.Jump = true
	}
	return in
}

// Permission reports whether an input category is granted.
func (s *InputState) Permission(c InputCategory) bool {
	switch c {
	case InputLateralMovement:
		return s.LateralMovement
	case InputMount:
		return s.MountControl
	case InputJump:
		return s.JumpControl
	}
	return false
}

// SetPermission grants or revokes an input category.
func (s *InputState) SetPermission(c InputCategory, enabled bool) {
	switch c {
	case InputLateralMovement:
		s.LateralMovement = enabled
	case InputMount:
		s.MountControl = enabled
	case InputJump:
		s.JumpControl = enabled
	}
}

func newInputState() *InputState {
	return &InputState{LateralMovement: true, MountControl: true, JumpControl: true}
}

// Properties holds the property values written to an actor.
type Properties struct {
	values map[string]any
}

// Set stores a property value.
func (p *Properties) Set(name string, value any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	p.values[name] = value
}

// Get returns a property value.
func (p *Properties) Get(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Bool returns a boolean property, false if unset.
func (p *Properties) Bool(name string) bool {
	v, _ := p.values[name].(bool)
	return v
}

func newProperties() *Properties {
	return &Properties{}
}

// Tame makes owner the owner of dragon.
func Tame(dragon, owner *Actor) error {
	if owner == nil || owner.Closed() || dragon == nil || dragon.Closed() {
		return ErrInvalidActor
	}
	if !Has[Dragon](dragon) {
		return ErrNotDragon
	}
	if prev := Get[Tamed](dragon); prev != nil && prev.Owner != owner.ID() {
		if s := Get[Stable](dragon.manager.Actor(prev.Owner)); s != nil {
			s.Dragons.Remove(dragon)
		}
	}
	Add(dragon, &Tamed{Owner: owner.ID(), OwnerName: owner.Name()})
	GetOrAdd(owner, newStable).Dragons.Add(dragon)
	dragon.Dispatch(TamedEvent{Dragon: dragon, Owner: owner})
	return nil
}

// MountDragon seats rider on dragon and gives the dragon a fresh FlightState.
// The dragon must be tamed by rider and have no rider yet. A rider already
// on another dragon leaves it first.
func MountDragon(w World, dragon, rider *Actor) error {
	if rider == nil || rider.Closed() || dragon == nil || dragon.Closed() {
		return ErrInvalidActor
	}
	if !Has[Dragon](dragon) {
		return ErrNotDragon
	}
	tamed := Get[Tamed](dragon)
	if tamed == nil {
		return ErrNotTamed
	}
	if tamed.Owner != rider.ID() {
		return ErrNotOwner
	}
	if m := Get[Mount](dragon); m != nil && m.Rider.Get() != nil {
		return ErrAlreadyMounted
	}
	if r := Get[Riding](rider); r != nil {
		if prev := r.Dragon.Get(); prev != nil {
			Dismount(w, prev)
		}
	}

	mount := &Mount{}
	mount.Rider.Set(rider)
	Add(dragon, mount)

	riding := &Riding{}
	riding.Dragon.Set(dragon)
	Add(rider, riding)
	GetOrAdd(rider, newInputState)

	t := dragon.manager.Tuning()
	Add(dragon, NewFlightState(t, tierOf(dragon)))

	dragon.Dispatch(MountedEvent{Dragon: dragon, Rider: rider})
	return nil
}

// Dismount removes the rider of dragon, ending its flight first. It returns
// the rider, or nil if the dragon had none. w resolves the bodies the flight
// end restores; bodies it cannot resolve are skipped.
func Dismount(w World, dragon *Actor) *Actor {
	mount := Get[Mount](dragon)
	if mount == nil {
		return nil
	}
	rider := mount.Rider.Get()

	if st := Get[FlightState](dragon); st != nil && st.Flying() {
		var (
			db Body
			rb Rider
		)
		if b, ok := w.Body(dragon.ID()); ok {
			db = b
		}
		if rider != nil {
			if r, ok := w.Rider(rider.ID()); ok {
				rb = r
			}
		}
		dragon.manager.Flight().End(st, db, rb)
		dragon.Dispatch(FlightEndedEvent{Dragon: dragon, Rider: rider})
	}

	Remove[FlightState](dragon)
	Remove[Mount](dragon)
	if rider != nil {
		Remove[Riding](rider)
	}
	dragon.Dispatch(DismountedEvent{Dragon: dragon, Rider: rider})
	return rider
}

// OwnedDragons returns the open dragons owner has tamed.
func OwnedDragons(owner *Actor) []*Actor {
	s := Get[Stable](owner)
	if s == nil {
		return nil
	}
	var out []*Actor
	for _, d := range s.Dragons.All() {
		if t := Get[Tamed](d); t != nil && t.Owner == owner.ID() {
			out = append(out, d)
		}
	}
	return out
}

// RiddenDragon returns the dragon a rider sits on, or nil.
func RiddenDragon(rider *Actor) *Actor {
	if r := Get[Riding](rider); r != nil {
		return r.Dragon.Get()
	}
	return nil
}

// tierOf returns the milestone tier of a dragon.
func tierOf(dragon *Actor) MilestoneTuning {
	t := dragon.manager.Tuning()
	if m := Get[Milestone](dragon); m != nil {
		return t.Milestone(m.Tier)
	}
	return NeutralMilestone
}
