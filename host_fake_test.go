package wyvern

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// fakeWorld is an in-memory World. Unset blocks read as air and blocks
// outside [minY, maxY) are out of bounds.
type fakeWorld struct {
	blocks  map[cube.Pos]string
	panicAt map[cube.Pos]bool
	minY    int
	maxY    int

	bodies []Body
	riders map[uuid.UUID]*fakeRider

	blockHit  *BlockHit
	entityHit *EntityHit

	projectiles []fakeProjectile
}

type fakeProjectile struct {
	owner    uuid.UUID
	origin   mgl64.Vec3
	velocity mgl64.Vec3
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		blocks:  make(map[cube.Pos]string),
		panicAt: make(map[cube.Pos]bool),
		minY:    -64,
		maxY:    320,
		riders:  make(map[uuid.UUID]*fakeRider),
	}
}

func (w *fakeWorld) set(pos cube.Pos, name string) {
	w.blocks[pos] = name
}

func (w *fakeWorld) add(b *fakeBody) *fakeBody {
	w.bodies = append(w.bodies, b)
	return b
}

func (w *fakeWorld) addRider(r *fakeRider) *fakeRider {
	w.bodies = append(w.bodies, r)
	w.riders[r.id] = r
	return r
}

func (w *fakeWorld) Block(pos cube.Pos) (string, error) {
	if w.panicAt[pos] {
		panic("corrupt chunk")
	}
	if pos[1] < w.minY || pos[1] >= w.maxY {
		return "", ErrOutOfBounds
	}
	if name, ok := w.blocks[pos]; ok {
		return name, nil
	}
	return "minecraft:air", nil
}

func (w *fakeWorld) EntitiesWithin(center mgl64.Vec3, radius float64) []Body {
	var out []Body
	for _, b := range w.bodies {
		if b.Position().Sub(center).Len() <= radius {
			out = append(out, b)
		}
	}
	return out
}

func (w *fakeWorld) RaycastBlock(_, _ mgl64.Vec3, maxDistance float64) (BlockHit, bool) {
	if w.blockHit == nil || w.blockHit.Distance > maxDistance {
		return BlockHit{}, false
	}
	return *w.blockHit, true
}

func (w *fakeWorld) RaycastEntity(_, _ mgl64.Vec3, minDistance, maxDistance float64, ignore func(Body) bool) (EntityHit, bool) {
	h := w.entityHit
	if h == nil || h.Distance < minDistance || h.Distance > maxDistance {
		return EntityHit{}, false
	}
	if ignore != nil && ignore(h.Body) {
		return EntityHit{}, false
	}
	return *h, true
}

func (w *fakeWorld) SpawnProjectile(owner Body, origin, velocity mgl64.Vec3) error {
	w.projectiles = append(w.projectiles, fakeProjectile{owner: owner.ID(), origin: origin, velocity: velocity})
	return nil
}

func (w *fakeWorld) Body(id uuid.UUID) (Body, bool) {
	for _, b := range w.bodies {
		if b.ID() == id {
			return b, true
		}
	}
	return nil, false
}

func (w *fakeWorld) Rider(id uuid.UUID) (Rider, bool) {
	r, ok := w.riders[id]
	if !ok {
		return nil, false
	}
	return r, true
}

// remove drops a body so the world no longer resolves it.
func (w *fakeWorld) remove(id uuid.UUID) {
	for i, b := range w.bodies {
		if b.ID() == id {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			break
		}
	}
	delete(w.riders, id)
}

// fakeBody records everything done to it.
type fakeBody struct {
	id     uuid.UUID
	typ    string
	gone   bool
	pos    mgl64.Vec3
	view   mgl64.Vec3
	vel    mgl64.Vec3
	facing mgl64.Vec3

	effects    map[EffectKind]Effect
	effectAdds []Effect

	props    map[string]any
	triggers []string

	hurts     []float64
	hurtBy    []uuid.UUID
	hurtErr   error
	hurtPanic bool
}

func newFakeBody(typ string, pos mgl64.Vec3) *fakeBody {
	return &fakeBody{
		id:      uuid.New(),
		typ:     typ,
		pos:     pos,
		view:    mgl64.Vec3{0, 0, 1},
		effects: make(map[EffectKind]Effect),
		props:   make(map[string]any),
	}
}

func (b *fakeBody) ID() uuid.UUID               { return b.id }
func (b *fakeBody) Type() string                { return b.typ }
func (b *fakeBody) Valid() bool                 { return !b.gone }
func (b *fakeBody) Position() mgl64.Vec3        { return b.pos }
func (b *fakeBody) ViewDirection() mgl64.Vec3   { return b.view }
func (b *fakeBody) Velocity() mgl64.Vec3        { return b.vel }
func (b *fakeBody) SetVelocity(v mgl64.Vec3)    { b.vel = v }
func (b *fakeBody) ApplyImpulse(v mgl64.Vec3)   { b.vel = b.vel.Add(v) }
func (b *fakeBody) Face(dir mgl64.Vec3)         { b.facing = dir }
func (b *fakeBody) RemoveEffect(k EffectKind)   { delete(b.effects, k) }
func (b *fakeBody) Trigger(event string)        { b.triggers = append(b.triggers, event) }
func (b *fakeBody) SetProperty(n string, v any) { b.props[n] = v }

func (b *fakeBody) AddEffect(e Effect) {
	b.effects[e.Kind] = e
	b.effectAdds = append(b.effectAdds, e)
}

func (b *fakeBody) Property(name string) (any, bool) {
	v, ok := b.props[name]
	return v, ok
}

func (b *fakeBody) Hurt(damage float64, source Body) error {
	if b.hurtPanic {
		panic("entity removed mid-attack")
	}
	if b.hurtErr != nil {
		return b.hurtErr
	}
	b.hurts = append(b.hurts, damage)
	if source != nil {
		b.hurtBy = append(b.hurtBy, source.ID())
	}
	return nil
}

func (b *fakeBody) adds(k EffectKind) int {
	n := 0
	for _, e := range b.effectAdds {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// fakeRider is a fakeBody with rider controls.
type fakeRider struct {
	*fakeBody
	head  mgl64.Vec3
	input Input
	perms map[InputCategory]bool
	speed float64

	music     []string
	stopped   int
	teleports []mgl64.Vec3
	notes     []string
}

func newFakeRider(pos mgl64.Vec3) *fakeRider {
	return &fakeRider{
		fakeBody: newFakeBody("minecraft:player", pos),
		head:     pos.Add(mgl64.Vec3{0, 1.62, 0}),
		perms: map[InputCategory]bool{
			InputLateralMovement: true,
			InputMount:           true,
			InputJump:            true,
		},
	}
}

func (r *fakeRider) HeadPosition() mgl64.Vec3 { return r.head }
func (r *fakeRider) Input() Input             { return r.input }
func (r *fakeRider) SetMovementSpeed(s float64) {
	r.speed = s
}
func (r *fakeRider) SetInputPermission(c InputCategory, enabled bool) {
	r.perms[c] = enabled
}
func (r *fakeRider) InputPermission(c InputCategory) bool {
	return r.perms[c]
}
func (r *fakeRider) PlayMusic(track string)  { r.music = append(r.music, track) }
func (r *fakeRider) StopMusic()              { r.stopped++ }
func (r *fakeRider) Teleport(pos mgl64.Vec3) { r.teleports = append(r.teleports, pos) }
func (r *fakeRider) Notify(msg string)       { r.notes = append(r.notes, msg) }

// fakeScheduler collects deferred callbacks.
type fakeScheduler struct {
	delays []int
	fns    []func(World)
}

func (s *fakeScheduler) After(ticks int, fn func(World)) {
	s.delays = append(s.delays, ticks)
	s.fns = append(s.fns, fn)
}

func (s *fakeScheduler) runAll(w World) {
	fns := s.fns
	s.fns = nil
	for _, fn := range fns {
		fn(w)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager builds a manually ticked manager whose ticks run against w.
func newTestManager(t *testing.T, w World, tuning Tuning, bundles ...func(*Manager) *Bundle) *Manager {
	t.Helper()
	b := NewBuilder().
		Tuning(tuning).
		Logger(discardLogger()).
		ManualTick().
		Seed(1).
		Executor(func(_ *world.World, fn func(World)) { fn(w) })
	for _, bundle := range bundles {
		b.Bundle(bundle)
	}
	m := b.Init()
	t.Cleanup(m.Reset)
	return m
}

// track registers a fake body with the manager.
func track(m *Manager, b Body) *Actor {
	return m.Track(b.ID(), b.Type(), nil, nil)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func approxVec(a, b mgl64.Vec3) bool {
	return a.Sub(b).Len() < 1e-6
}
