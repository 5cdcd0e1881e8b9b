package wyvern

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/block/cube/trace"
	"github.com/df-mc/dragonfly/server/entity"
	"github.com/df-mc/dragonfly/server/entity/effect"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/df-mc/dragonfly/server/world/sound"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// ErrImmune is returned by Body.Hurt when the target cannot take damage.
var ErrImmune = errors.New("wyvern: target is immune")

// txWorld is the World of a dragonfly transaction.
type txWorld struct {
	tx      *world.Tx
	manager *Manager
}

// NewWorld returns the World view of a transaction. The view must not be
// used after the transaction ends.
func NewWorld(tx *world.Tx, m *Manager) World {
	return &txWorld{tx: tx, manager: m}
}

func (w *txWorld) Block(pos cube.Pos) (string, error) {
	if pos.OutOfBounds(w.tx.Range()) {
		return "", ErrOutOfBounds
	}
	name, _ := w.tx.Block(pos).EncodeBlock()
	return name, nil
}

func (w *txWorld) EntitiesWithin(center mgl64.Vec3, radius float64) []Body {
	box := boxAround(center, center, radius)
	var out []Body
	for e := range w.tx.EntitiesWithin(box) {
		if e.Position().Sub(center).Len() > radius {
			continue
		}
		out = append(out, w.body(e))
	}
	return out
}

func (w *txWorld) RaycastBlock(origin, dir mgl64.Vec3, maxDistance float64) (BlockHit, bool) {
	end := origin.Add(normalize(dir).Mul(maxDistance))
	r := w.tx.Range()

	var (
		hit   BlockHit
		found bool
	)
	trace.TraverseBlocks(origin, end, func(pos cube.Pos) bool {
		if pos.OutOfBounds(r) {
			return true
		}
		name, _ := w.tx.Block(pos).EncodeBlock()
		if IsNonSolid(name) {
			return true
		}
		point := pos.Vec3Centre()
		if res, ok := trace.BBoxIntercept(cube.Box(0, 0, 0, 1, 1, 1).Translate(pos.Vec3()), origin, end); ok {
			point = res.Position()
		}
		hit = BlockHit{Pos: pos, Point: point, Distance: point.Sub(origin).Len()}
		found = true
		return false
	})
	return hit, found
}

func (w *txWorld) RaycastEntity(origin, dir mgl64.Vec3, minDistance, maxDistance float64, ignore func(Body) bool) (EntityHit, bool) {
	end := origin.Add(normalize(dir).Mul(maxDistance))

	var (
		hit   EntityHit
		found bool
	)
	best := math.Inf(1)
	for e := range w.tx.EntitiesWithin(boxAround(origin, end, 1)) {
		b := w.body(e)
		if ignore != nil && ignore(b) {
			continue
		}
		bb := e.H().Type().BBox(e).Translate(e.Position())
		res, ok := trace.BBoxIntercept(bb, origin, end)
		if !ok {
			continue
		}
		d := res.Position().Sub(origin).Len()
		if d < minDistance || d > maxDistance || d >= best {
			continue
		}
		best = d
		hit = EntityHit{Body: b, Point: res.Position(), Distance: d, Height: bb.Height()}
		found = true
	}
	return hit, found
}

func (w *txWorld) SpawnProjectile(owner Body, origin, velocity mgl64.Vec3) error {
	src := sourceEntity(owner)
	if src == nil {
		return fmt.Errorf("spawn projectile: owner %v is not a dragonfly entity", owner.ID())
	}
	opts := world.EntitySpawnOpts{
		Position: origin,
		Velocity: velocity,
		Rotation: rotationOf(velocity),
	}
	w.tx.AddEntity(entity.NewArrow(opts, src))
	return nil
}

func (w *txWorld) Body(id uuid.UUID) (Body, bool) {
	a := w.manager.Actor(id)
	if a == nil || a.handle == nil {
		return nil, false
	}
	e, ok := a.handle.Entity(w.tx)
	if !ok {
		return nil, false
	}
	return &entityBody{w: w, e: e, actor: a}, true
}

func (w *txWorld) Rider(id uuid.UUID) (Rider, bool) {
	a := w.manager.Actor(id)
	if a == nil || a.handle == nil || Has[Dragon](a) {
		return nil, false
	}
	e, ok := a.handle.Entity(w.tx)
	if !ok {
		return nil, false
	}
	p, ok := e.(*player.Player)
	if !ok {
		return nil, false
	}
	return &playerRider{entityBody: entityBody{w: w, e: e, actor: a}, p: p}, true
}

// body wraps any entity, tracked or not.
func (w *txWorld) body(e world.Entity) Body {
	return &entityBody{w: w, e: e, actor: w.manager.ActorByHandle(e.H())}
}

// entityBody is the Body of a dragonfly entity. actor is nil for entities
// that are not tracked; properties and triggers are dropped for those.
type entityBody struct {
	w     *txWorld
	e     world.Entity
	actor *Actor
}

type velocityEntity interface {
	Velocity() mgl64.Vec3
	SetVelocity(v mgl64.Vec3)
}

type effectEntity interface {
	AddEffect(e effect.Effect)
	RemoveEffect(e effect.Type)
}

type hurtableEntity interface {
	Hurt(damage float64, src world.DamageSource) (float64, bool)
}

type movableEntity interface {
	Move(deltaPos mgl64.Vec3, deltaYaw, deltaPitch float64)
}

func (b *entityBody) ID() uuid.UUID {
	return b.e.H().UUID()
}

func (b *entityBody) Type() string {
	if d := Get[Dragon](b.actor); d != nil {
		return d.Type
	}
	return b.e.H().Type().EncodeEntity()
}

func (b *entityBody) Valid() bool {
	if _, ok := b.e.H().Entity(b.w.tx); !ok {
		return false
	}
	if l, ok := b.e.(interface{ Dead() bool }); ok && l.Dead() {
		return false
	}
	return true
}

func (b *entityBody) Position() mgl64.Vec3 {
	return b.e.Position()
}

func (b *entityBody) ViewDirection() mgl64.Vec3 {
	return b.e.Rotation().Vec3()
}

func (b *entityBody) Velocity() mgl64.Vec3 {
	if v, ok := b.e.(velocityEntity); ok {
		return v.Velocity()
	}
	return mgl64.Vec3{}
}

func (b *entityBody) SetVelocity(v mgl64.Vec3) {
	if e, ok := b.e.(velocityEntity); ok {
		e.SetVelocity(v)
	}
}

func (b *entityBody) ApplyImpulse(v mgl64.Vec3) {
	b.SetVelocity(b.Velocity().Add(v))
}

func (b *entityBody) Face(dir mgl64.Vec3) {
	m, ok := b.e.(movableEntity)
	if !ok {
		return
	}
	target, cur := rotationOf(dir), b.e.Rotation()
	m.Move(mgl64.Vec3{}, target.Yaw()-cur.Yaw(), target.Pitch()-cur.Pitch())
}

func (b *entityBody) AddEffect(eff Effect) {
	e, ok := b.e.(effectEntity)
	if !ok {
		return
	}
	t, ok := effectType(eff.Kind)
	if !ok {
		return
	}
	ef := effect.New(t, eff.Amplifier+1, time.Duration(eff.Duration)*time.Second/TicksPerSecond)
	if !eff.Particles {
		ef = ef.WithoutParticles()
	}
	e.AddEffect(ef)
}

func (b *entityBody) RemoveEffect(k EffectKind) {
	e, ok := b.e.(effectEntity)
	if !ok {
		return
	}
	if t, ok := effectType(k); ok {
		e.RemoveEffect(t)
	}
}

func (b *entityBody) Hurt(damage float64, source Body) error {
	h, ok := b.e.(hurtableEntity)
	if !ok {
		return fmt.Errorf("%w: %s cannot be hurt", ErrImmune, b.e.H().Type().EncodeEntity())
	}
	if _, vulnerable := h.Hurt(damage, entity.AttackDamageSource{Attacker: sourceEntity(source)}); !vulnerable {
		return ErrImmune
	}
	return nil
}

func (b *entityBody) SetProperty(name string, value any) {
	if b.actor == nil {
		return
	}
	GetOrAdd(b.actor, newProperties).Set(name, value)
}

func (b *entityBody) Property(name string) (any, bool) {
	if p := Get[Properties](b.actor); p != nil {
		return p.Get(name)
	}
	return nil, false
}

func (b *entityBody) Trigger(event string) {
	if b.actor != nil {
		b.actor.Dispatch(TriggerEvent{Actor: b.actor, Name: event})
	}
}

// playerRider is the Rider of a player. Input comes from the InputState the
// ActorHandler records.
type playerRider struct {
	entityBody
	p *player.Player
}

func (r *playerRider) HeadPosition() mgl64.Vec3 {
	return r.p.Position().Add(mgl64.Vec3{0, r.p.EyeHeight(), 0})
}

func (r *playerRider) Input() Input {
	in := Get[InputState](r.actor)
	if in == nil {
		return Input{}
	}
	return in.Input(r.w.manager.TickNumber())
}

func (r *playerRider) SetInputPermission(c InputCategory, enabled bool) {
	GetOrAdd(r.actor, newInputState).SetPermission(c, enabled)
}

func (r *playerRider) InputPermission(c InputCategory) bool {
	if in := Get[InputState](r.actor); in != nil {
		return in.Permission(c)
	}
	return true
}

func (r *playerRider) SetMovementSpeed(speed float64) {
	GetOrAdd(r.actor, newInputState).Speed = speed
	r.p.SetSpeed(speed)
}

func (r *playerRider) PlayMusic(track string) {
	if disc, ok := discs[track]; ok {
		r.p.PlaySound(sound.MusicDiscPlay{DiscType: disc})
	}
}

func (r *playerRider) StopMusic() {
	r.p.PlaySound(sound.MusicDiscEnd{})
}

func (r *playerRider) Teleport(pos mgl64.Vec3) {
	r.p.Teleport(pos)
}

func (r *playerRider) Notify(msg string) {
	if msg != "" {
		r.p.SendPopup(msg)
	}
}

var discs = map[string]sound.DiscType{
	"cat":       sound.DiscCat(),
	"blocks":    sound.DiscBlocks(),
	"chirp":     sound.DiscChirp(),
	"far":       sound.DiscFar(),
	"mall":      sound.DiscMall(),
	"mellohi":   sound.DiscMellohi(),
	"stal":      sound.DiscStal(),
	"strad":     sound.DiscStrad(),
	"ward":      sound.DiscWard(),
	"wait":      sound.DiscWait(),
	"otherside": sound.DiscOtherside(),
	"pigstep":   sound.DiscPigstep(),
}

func effectType(k EffectKind) (effect.LastingType, bool) {
	switch k {
	case EffectSlowFalling:
		return effect.SlowFalling, true
	case EffectLevitation:
		return effect.Levitation, true
	}
	return nil, false
}

// sourceEntity unwraps a Body backed by a dragonfly entity.
func sourceEntity(b Body) world.Entity {
	switch b := b.(type) {
	case *entityBody:
		return b.e
	case *playerRider:
		return b.p
	}
	return nil
}

// rotationOf returns the rotation looking along dir.
func rotationOf(dir mgl64.Vec3) cube.Rotation {
	d := normalize(dir)
	if d == (mgl64.Vec3{}) {
		return cube.Rotation{}
	}
	yaw := math.Atan2(-d[0], d[2]) * 180 / math.Pi
	pitch := math.Asin(clamp(-d[1], -1, 1)) * 180 / math.Pi
	return cube.Rotation{yaw, pitch}
}

// boxAround returns the box spanning a and b grown by pad.
func boxAround(a, b mgl64.Vec3, pad float64) cube.BBox {
	return cube.Box(
		math.Min(a[0], b[0])-pad, math.Min(a[1], b[1])-pad, math.Min(a[2], b[2])-pad,
		math.Max(a[0], b[0])+pad, math.Max(a[1], b[1])+pad, math.Max(a[2], b[2])+pad,
	)
}
