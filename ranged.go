package wyvern

import (
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RangedAttack fires projectile volleys from a dragon's mouth toward what
// its rider is looking at.
type RangedAttack struct {
	t   RangedTuning
	log *slog.Logger
}

// NewRangedAttack returns a ranged attack using t.
func NewRangedAttack(t RangedTuning, log *slog.Logger) *RangedAttack {
	return &RangedAttack{t: t, log: log}
}

// Aim returns the spawn point of a projectile and its unit direction. The
// rider's line of sight is cast against entities and blocks and the nearer
// hit is the target. Without a hit the rider's view, raised slightly, is used.
func (r *RangedAttack) Aim(w World, dragon Body, rider Rider) (origin, dir mgl64.Vec3) {
	head := rider.HeadPosition()
	view := normalize(rider.ViewDirection())

	origin = dragon.Position().
		Add(normalize(flatten(view)).Mul(r.t.MouthOffset)).
		Add(mgl64.Vec3{0, r.t.MouthHeight, 0})

	ignore := func(b Body) bool {
		return b.ID() == dragon.ID() || b.ID() == rider.ID()
	}

	var target mgl64.Vec3
	nearest, found := math.Inf(1), false
	if hit, ok := w.RaycastEntity(head, view, r.t.MinEntityDistance, r.t.RaycastDistance, ignore); ok {
		// The ray meets the box surface; aim at the body's centre instead.
		// mouth→centre is head→centre minus head→mouth.
		target = hit.Body.Position().Add(mgl64.Vec3{0, hit.Height / 2, 0})
		nearest, found = hit.Distance, true
	}
	if hit, ok := w.RaycastBlock(head, view, r.t.RaycastDistance); ok && hit.Distance < nearest {
		target, found = hit.Point, true
	}

	if found {
		dir = normalize(target.Sub(origin))
	}
	if dir == (mgl64.Vec3{}) {
		dir = normalize(view.Add(mgl64.Vec3{0, r.t.UpwardCorrection, 0}))
	}
	return origin, dir
}

// Fire spawns a volley. The first projectile is fired immediately and each
// following one after another shot delay through sched. Delayed shots
// re-resolve dragon and rider and are skipped if either is gone. Fire
// returns the number of projectiles fired or scheduled.
func (r *RangedAttack) Fire(w World, sched TaskScheduler, dragon Body, rider Rider) int {
	if dragon == nil || !dragon.Valid() || rider == nil || !rider.Valid() {
		return 0
	}
	dragonID, riderID := dragon.ID(), rider.ID()

	n := 0
	for i := range r.t.Projectiles {
		delay := i * r.t.ShotDelay
		if delay == 0 || sched == nil {
			r.shoot(w, dragon, rider)
			n++
			continue
		}
		sched.After(delay, func(w World) {
			d, ok := w.Body(dragonID)
			if !ok || !d.Valid() {
				return
			}
			rd, ok := w.Rider(riderID)
			if !ok || !rd.Valid() {
				return
			}
			r.shoot(w, d, rd)
		})
		n++
	}
	return n
}

func (r *RangedAttack) shoot(w World, dragon Body, rider Rider) {
	origin, dir := r.Aim(w, dragon, rider)
	if err := w.SpawnProjectile(dragon, origin, dir.Mul(r.t.Speed)); err != nil {
		r.log.Debug("wyvern: projectile not spawned", "dragon", dragon.ID(), "error", err)
	}
}
