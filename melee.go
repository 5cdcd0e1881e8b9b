package wyvern

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
)

// MeleeResult lists the entities a melee attack damaged.
type MeleeResult struct {
	HitCount int
	Hits     []Body
}

// MeleeAttackResolver damages entities in a cone in front of an attacker.
type MeleeAttackResolver struct {
	t      MeleeTuning
	allies map[string]struct{}
	log    *slog.Logger
}

// NewMeleeAttackResolver returns a resolver using t.
func NewMeleeAttackResolver(t MeleeTuning, log *slog.Logger) *MeleeAttackResolver {
	allies := make(map[string]struct{}, len(t.AllyTypes))
	for _, typ := range t.AllyTypes {
		allies[typ] = struct{}{}
	}
	return &MeleeAttackResolver{t: t, allies: allies, log: log}
}

// Resolve damages every entity within range of attacker whose horizontal
// direction lies inside the cone around forward. rider may be nil. The
// attacker, the rider and entities of an ally type are never hit. A target
// that fails to take damage is left out of the result.
func (r *MeleeAttackResolver) Resolve(w World, attacker Body, forward mgl64.Vec3, rider Body) MeleeResult {
	var res MeleeResult
	if attacker == nil || !attacker.Valid() {
		return res
	}
	facing := normalize(flatten(forward))
	if facing == (mgl64.Vec3{}) {
		return res
	}
	origin := attacker.Position()

	for _, e := range w.EntitiesWithin(origin, r.t.Range+r.t.SearchPadding) {
		if e == nil || !e.Valid() || e.ID() == attacker.ID() {
			continue
		}
		if rider != nil && e.ID() == rider.ID() {
			continue
		}
		if _, ally := r.allies[e.Type()]; ally {
			continue
		}

		offset := flatten(e.Position().Sub(origin))
		dist := offset.Len()
		// A target straight above or below has no horizontal direction.
		if dist == 0 || dist > r.t.Range || dist < r.t.MinRange {
			continue
		}
		if facing.Dot(offset.Mul(1/dist)) < r.t.Cone {
			continue
		}

		if err := hurt(e, r.t.Damage, attacker); err != nil {
			r.log.Debug("wyvern: melee target dropped", "target", e.ID(), "error", err)
			continue
		}
		res.Hits = append(res.Hits, e)
	}
	res.HitCount = len(res.Hits)
	return res
}

// hurt converts a panicking host into an error.
func hurt(target Body, damage float64, source Body) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("hurt %v: %v", target.ID(), rec)
		}
	}()
	return target.Hurt(damage, source)
}
