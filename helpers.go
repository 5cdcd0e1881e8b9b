package wyvern

import (
	"github.com/df-mc/dragonfly/server/cmd"
	"github.com/df-mc/dragonfly/server/player"
)

// ActorFromPlayer returns the actor of a player handled by an ActorHandler,
// or nil.
func ActorFromPlayer(p *player.Player) *Actor {
	h, ok := p.Handler().(*ActorHandler)
	if !ok {
		return nil
	}
	return h.actor
}

// Command extracts the player and actor from a command source.
// Returns (nil, nil) if the source is not a player or is not tracked.
//
// Usage:
//
//	func (c MyCommand) Run(src cmd.Source, out *cmd.Output, tx *world.Tx) {
//	    p, a := wyvern.Command(src)
//	    if p == nil || a == nil {
//	        out.Error("Player-only command")
//	        return
//	    }
//	}
func Command(src cmd.Source) (*player.Player, *Actor) {
	p, ok := src.(*player.Player)
	if !ok {
		return nil, nil
	}
	return p, ActorFromPlayer(p)
}
