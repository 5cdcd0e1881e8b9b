package wyvern

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// The interfaces in this file are the only surface the flight, ground,
// rotation and combat logic touches. dragonfly.go binds them to a world
// transaction; tests bind them to an in-memory fake.

// World is the per-tick view of a dimension.
type World interface {
	// Block returns the identifier of the block at pos, such as "minecraft:stone".
	// Lookups outside the world range return ErrOutOfBounds.
	Block(pos cube.Pos) (string, error)

	// EntitiesWithin returns every entity within radius of center.
	EntitiesWithin(center mgl64.Vec3, radius float64) []Body

	// RaycastBlock returns the first solid block along dir, up to maxDistance.
	RaycastBlock(origin, dir mgl64.Vec3, maxDistance float64) (BlockHit, bool)

	// RaycastEntity returns the nearest entity along dir whose hit distance lies
	// within [minDistance, maxDistance] and that ignore does not reject.
	RaycastEntity(origin, dir mgl64.Vec3, minDistance, maxDistance float64, ignore func(Body) bool) (EntityHit, bool)

	// SpawnProjectile spawns a projectile owned by owner.
	SpawnProjectile(owner Body, origin, velocity mgl64.Vec3) error

	// Body resolves a tracked actor in this tick.
	Body(id uuid.UUID) (Body, bool)

	// Rider resolves a tracked actor that can ride in this tick.
	Rider(id uuid.UUID) (Rider, bool)
}

// Body is a creature or player as seen by the core.
type Body interface {
	ID() uuid.UUID
	// Type returns the entity type identifier. Dragons report their Dragon.Type.
	Type() string
	// Valid reports whether the body still exists in the world.
	Valid() bool

	Position() mgl64.Vec3
	// ViewDirection returns the unit look vector.
	ViewDirection() mgl64.Vec3

	Velocity() mgl64.Vec3
	SetVelocity(v mgl64.Vec3)
	ApplyImpulse(v mgl64.Vec3)
	// Face turns the body to look along dir.
	Face(dir mgl64.Vec3)

	AddEffect(e Effect)
	RemoveEffect(k EffectKind)

	// Hurt deals instantaneous damage attributed to source.
	Hurt(damage float64, source Body) error

	SetProperty(name string, value any)
	Property(name string) (any, bool)

	// Trigger emits a named event consumed by the host's own behaviour definitions.
	Trigger(event string)
}

// Rider is a Body that can mount a dragon and steer it.
type Rider interface {
	Body

	HeadPosition() mgl64.Vec3
	Input() Input

	SetInputPermission(c InputCategory, enabled bool)
	// InputPermission reports whether an input category is currently granted.
	InputPermission(c InputCategory) bool
	SetMovementSpeed(speed float64)

	PlayMusic(track string)
	StopMusic()

	// Teleport moves the rider, used to keep it in the saddle.
	Teleport(pos mgl64.Vec3)
	// Notify shows a short HUD message.
	Notify(msg string)
}

// TaskScheduler defers work by a number of ticks. The callback receives the
// World of the tick it runs in.
type TaskScheduler interface {
	After(ticks int, fn func(w World))
}

// Input is one tick of rider input.
type Input struct {
	// Move is the held movement vector. X is strafe (positive right), Y is
	// forward (positive forward). Each axis lies in [-1, 1].
	Move mgl64.Vec2
	// Jump is true while the jump-equivalent action is held.
	Jump bool
	// Sneak is true while the rider asks to dismount.
	Sneak bool
}

// InputCategory is a group of rider input that can be granted or revoked.
type InputCategory uint8

const (
	InputLateralMovement InputCategory = iota
	InputMount
	InputJump
)

// String ...
func (c InputCategory) String() string {
	switch c {
	case InputLateralMovement:
		return "lateral_movement"
	case InputMount:
		return "mount"
	case InputJump:
		return "jump"
	default:
		return "unknown"
	}
}

// EffectKind identifies a timed status effect.
type EffectKind uint8

const (
	EffectSlowFalling EffectKind = iota
	EffectLevitation
)

// String ...
func (k EffectKind) String() string {
	switch k {
	case EffectSlowFalling:
		return "slow_falling"
	case EffectLevitation:
		return "levitation"
	default:
		return "unknown"
	}
}

// Effect is a timed status effect request. Duration is in ticks.
type Effect struct {
	Kind      EffectKind
	Amplifier int
	Duration  int
	Particles bool
}

// BlockHit is the result of a block ray cast.
type BlockHit struct {
	Pos      cube.Pos
	Point    mgl64.Vec3
	Distance float64
}

// EntityHit is the result of an entity ray cast. Point is where the ray met
// the entity's box, Height is the box height.
type EntityHit struct {
	Body     Body
	Point    mgl64.Vec3
	Distance float64
	Height   float64
}

// Properties written to dragons and riders.
const (
	PropertyFlying   = "wyvern:is_flying"
	PropertyHovering = "wyvern:is_hovering"
	PropertyDiving   = "wyvern:is_diving"
	PropertyBoosting = "wyvern:is_boosting"
	PropertyTurn     = "wyvern:turn"
	PropertyFOV      = "wyvern:fov"
)

// Triggers emitted to the host.
const (
	TriggerFlightStarted = "wyvern:flight_started"
	TriggerFlightEnded   = "wyvern:flight_ended"
)

// flatten drops the vertical component of v.
func flatten(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v[0], 0, v[2]}
}

// normalize returns v scaled to unit length, or the zero vector if v is too
// short to have a direction.
func normalize(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return mgl64.Vec3{}
	}
	return v.Mul(1 / l)
}
