// Package wyvern provides rideable dragons for Dragonfly servers.
//
// A tamed dragon carries its owner. Jumping takes off, looking steers,
// holding forward boosts at the cost of stamina, letting go of all movement
// hovers and looking steeply down dives. Sneaking dismounts. Attacking and
// using an item make the dragon bite or fire a volley of arrows.
//
// # Quick Start
//
//	t, err := wyvern.LoadTuning("tuning.yaml")
//	if err != nil {
//	    panic(err)
//	}
//	mngr := wyvern.NewBuilder().
//	    Tuning(t).
//	    Bundle(func(m *wyvern.Manager) *wyvern.Bundle {
//	        return wyvern.DragonBundle(m.Tuning())
//	    }).
//	    Init()
//
//	for p := range srv.Accept() {
//	    p.Handle(wyvern.NewHandler(mngr.NewActor(p)))
//	}
//
// Players spawn a tamed dragon with /wyvern spawn, or from code:
//
//	<-w.Exec(func(tx *world.Tx) {
//	    mngr.SpawnDragon(tx, pos, owner, wyvern.DragonConfig{Tier: "adult"})
//	})
//
// # State
//
// Per-entity state lives in components attached to actors, keyed by entity
// UUID:
//
//	st := wyvern.Get[wyvern.FlightState](dragon)
//	gs := wyvern.Get[wyvern.GroundState](dragon)
//
// Loops and tasks filter actors with phantom fields:
//
//	type myLoop struct {
//	    _ wyvern.With[wyvern.Mount]
//	    _ wyvern.Without[wyvern.FlightState]
//	}
//
// # Events
//
// Handlers registered on a bundle receive dispatched events by argument
// type:
//
//	type announcer struct{}
//
//	func (announcer) Started(e wyvern.FlightStartedEvent) {}
//
// # Threading
//
// Every tick runs inside one transaction per world. Player handlers only
// record input or dispatch tasks, so dragon state is only ever written from
// within a tick.
package wyvern

// Version is the wyvern version.
const Version = "0.1.0"
