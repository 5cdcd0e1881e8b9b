package wyvern

// Events are dispatched with Actor.Dispatch to every registered handler
// method whose single argument has the event's type.
//
//	type announcer struct{}
//
//	func (announcer) FlightStarted(e wyvern.FlightStartedEvent) { ... }

// LandedEvent is dispatched to a dragon when a ground sample finds ground
// after a sample that did not.
type LandedEvent struct {
	Actor   *Actor
	Contact GroundContact
}

// TookOffEvent is dispatched to a dragon when a ground sample no longer
// finds ground.
type TookOffEvent struct {
	Actor *Actor
}

// TurnEvent is dispatched to a dragon when its turn direction changes.
type TurnEvent struct {
	Actor    *Actor
	Rotation Rotation
}

// FlightStartedEvent is dispatched to a dragon that took off.
type FlightStartedEvent struct {
	Dragon *Actor
	Rider  *Actor
}

// FlightEndedEvent is dispatched to a dragon whose flight ended. Rider is nil
// if the flight ended because the rider disappeared.
type FlightEndedEvent struct {
	Dragon *Actor
	Rider  *Actor
}

// MeleeEvent is dispatched to a dragon after a melee attack.
type MeleeEvent struct {
	Dragon *Actor
	Rider  *Actor
	Result MeleeResult
}

// VolleyEvent is dispatched to a dragon after a ranged volley was fired.
type VolleyEvent struct {
	Dragon      *Actor
	Rider       *Actor
	Projectiles int
}

// TamedEvent is dispatched to a dragon when it is tamed.
type TamedEvent struct {
	Dragon *Actor
	Owner  *Actor
}

// MountedEvent is dispatched to a dragon when a rider mounts it.
type MountedEvent struct {
	Dragon *Actor
	Rider  *Actor
}

// DismountedEvent is dispatched to a dragon when its rider leaves.
type DismountedEvent struct {
	Dragon *Actor
	Rider  *Actor
}

// TriggerEvent is dispatched to an actor whose body emitted a host trigger.
type TriggerEvent struct {
	Actor *Actor
	Name  string
}
