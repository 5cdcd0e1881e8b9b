package wyvern

import (
	"log/slog"
	"math/rand/v2"
	"reflect"
	"sync"

	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/google/uuid"
)

// reapAfterMisses is the number of consecutive ticks an actor may go
// unresolved before it is removed.
const reapAfterMisses = 3

// Manager is the runtime context object. It owns the per-actor state tables,
// the scheduler and the flight, combat and tracking logic. A Manager lives
// for the process and is only cleared by Reset. Multiple managers may coexist.
type Manager struct {
	log    *slog.Logger
	tuning *Tuning

	bundles  []*Bundle
	handlers []*handlerMeta

	actors   map[uuid.UUID]*Actor
	byHandle map[*world.EntityHandle]*Actor
	actorsMu sync.RWMutex

	byWorld   map[*world.World]map[*Actor]struct{}
	byWorldMu sync.RWMutex

	taskQueue *taskQueue
	taskMetas sync.Map // map[reflect.Type]*SystemMeta

	scheduler *Scheduler

	transitions *TransitionTracker
	rotations   *YawRotationTracker
	flight      *FlightController
	melee       *MeleeAttackResolver
	ranged      *RangedAttack
}

func newManager(t *Tuning, log *slog.Logger, rng *rand.Rand) *Manager {
	m := &Manager{
		log:       log,
		tuning:    t,
		actors:    make(map[uuid.UUID]*Actor),
		byHandle:  make(map[*world.EntityHandle]*Actor),
		byWorld:   make(map[*world.World]map[*Actor]struct{}),
		taskQueue: newTaskQueue(),
	}
	m.scheduler = newScheduler(m)
	m.transitions = NewTransitionTracker(m, t.Ground.ProbeDepth)
	m.rotations = NewYawRotationTracker(m, t.Rotation.Threshold)
	m.flight = NewFlightController(t, rng.Float64, log)
	m.melee = NewMeleeAttackResolver(t.Melee, log)
	m.ranged = NewRangedAttack(t.Ranged, log)
	return m
}

// Tuning returns the design parameters the manager was built with.
func (m *Manager) Tuning() *Tuning {
	return m.tuning
}

// Logger returns the manager's logger.
func (m *Manager) Logger() *slog.Logger {
	return m.log
}

// Transitions returns the ground transition tracker.
func (m *Manager) Transitions() *TransitionTracker { return m.transitions }

// Rotations returns the yaw rotation tracker.
func (m *Manager) Rotations() *YawRotationTracker { return m.rotations }

// Flight returns the flight controller.
func (m *Manager) Flight() *FlightController { return m.flight }

// Melee returns the melee resolver.
func (m *Manager) Melee() *MeleeAttackResolver { return m.melee }

// Ranged returns the ranged attack.
func (m *Manager) Ranged() *RangedAttack { return m.ranged }

// Track returns the actor for id, creating it on first use. handle and w may
// be nil for actors the host resolves by ID alone. A later call with a
// non-nil handle or world fills in what the first call left out.
func (m *Manager) Track(id uuid.UUID, name string, handle *world.EntityHandle, w *world.World) *Actor {
	m.actorsMu.Lock()
	a, ok := m.actors[id]
	if !ok {
		a = &Actor{id: id, name: name, handle: handle, manager: m}
		m.actors[id] = a
	} else if a.handle == nil && handle != nil {
		a.handle = handle
	}
	if a.handle != nil {
		m.byHandle[a.handle] = a
	}
	m.actorsMu.Unlock()

	if !ok {
		a.setWorld(w)
		m.index(a, nil, w)
	} else if w != nil && a.World() != w {
		m.MoveActor(a, w)
	}
	return a
}

// ensure returns the actor for id, tracking it without a handle if needed.
func (m *Manager) ensure(id uuid.UUID) *Actor {
	if a := m.Actor(id); a != nil {
		return a
	}
	return m.Track(id, "", nil, nil)
}

// NewActor tracks a player and returns its actor. The returned actor should
// be passed to p.Handle wrapped with NewHandler.
func (m *Manager) NewActor(p *player.Player) *Actor {
	return m.Track(p.UUID(), p.Name(), p.H(), p.Tx().World())
}

// Actor returns the actor for id, or nil.
func (m *Manager) Actor(id uuid.UUID) *Actor {
	m.actorsMu.RLock()
	defer m.actorsMu.RUnlock()
	return m.actors[id]
}

// ActorByHandle returns the actor tracked for an entity handle, or nil.
func (m *Manager) ActorByHandle(h *world.EntityHandle) *Actor {
	m.actorsMu.RLock()
	defer m.actorsMu.RUnlock()
	return m.byHandle[h]
}

// ActorOf returns the actor of a player, or nil.
func (m *Manager) ActorOf(p *player.Player) *Actor {
	return m.ActorByHandle(p.H())
}

// AllActors returns every open actor.
func (m *Manager) AllActors() []*Actor {
	m.actorsMu.RLock()
	defer m.actorsMu.RUnlock()

	actors := make([]*Actor, 0, len(m.actors))
	for _, a := range m.actors {
		if !a.closed.Load() {
			actors = append(actors, a)
		}
	}
	return actors
}

// ActorsInWorld returns every open actor last seen in w.
func (m *Manager) ActorsInWorld(w *world.World) []*Actor {
	m.byWorldMu.RLock()
	defer m.byWorldMu.RUnlock()

	set := m.byWorld[w]
	actors := make([]*Actor, 0, len(set))
	for a := range set {
		if !a.closed.Load() {
			actors = append(actors, a)
		}
	}
	return actors
}

// ActorCount returns the number of tracked actors.
func (m *Manager) ActorCount() int {
	m.actorsMu.RLock()
	defer m.actorsMu.RUnlock()
	return len(m.actors)
}

// MoveActor re-indexes a under world to.
func (m *Manager) MoveActor(a *Actor, to *world.World) {
	from := a.World()
	a.setWorld(to)
	m.index(a, from, to)
}

func (m *Manager) index(a *Actor, from, to *world.World) {
	m.byWorldMu.Lock()
	defer m.byWorldMu.Unlock()

	if set := m.byWorld[from]; set != nil {
		delete(set, a)
		if len(set) == 0 {
			delete(m.byWorld, from)
		}
	}
	if m.byWorld[to] == nil {
		m.byWorld[to] = make(map[*Actor]struct{})
	}
	m.byWorld[to][a] = struct{}{}
}

// Remove closes and forgets the actor for id. Relations pointing at it are
// cleared. Removing an unknown ID is a no-op.
func (m *Manager) Remove(id uuid.UUID) {
	m.actorsMu.Lock()
	a, ok := m.actors[id]
	if ok {
		delete(m.actors, id)
		if a.handle != nil {
			delete(m.byHandle, a.handle)
		}
	}
	m.actorsMu.Unlock()
	if !ok {
		return
	}

	m.byWorldMu.Lock()
	for w, set := range m.byWorld {
		if _, ok := set[a]; ok {
			delete(set, a)
			if len(set) == 0 {
				delete(m.byWorld, w)
			}
		}
	}
	m.byWorldMu.Unlock()

	a.close()
	for _, other := range m.AllActors() {
		other.clearRelationsTo(a)
	}
}

// Reset closes every actor and drops every queued task. Loops and handlers
// stay registered.
func (m *Manager) Reset() {
	m.actorsMu.Lock()
	actors := make([]*Actor, 0, len(m.actors))
	for _, a := range m.actors {
		actors = append(actors, a)
	}
	m.actors = make(map[uuid.UUID]*Actor)
	m.byHandle = make(map[*world.EntityHandle]*Actor)
	m.actorsMu.Unlock()

	m.byWorldMu.Lock()
	m.byWorld = make(map[*world.World]map[*Actor]struct{})
	m.byWorldMu.Unlock()

	for _, a := range actors {
		a.close()
	}
	m.taskQueue.Clear()
}

// groupedActors returns a snapshot of the open actors grouped by world.
func (m *Manager) groupedActors() map[*world.World][]*Actor {
	m.byWorldMu.RLock()
	defer m.byWorldMu.RUnlock()

	result := make(map[*world.World][]*Actor, len(m.byWorld))
	for w, set := range m.byWorld {
		list := make([]*Actor, 0, len(set))
		for a := range set {
			if !a.closed.Load() {
				list = append(list, a)
			}
		}
		result[w] = list
	}
	return result
}

// Broadcast dispatches an event to every open actor.
func (m *Manager) Broadcast(event any) {
	for _, a := range m.AllActors() {
		a.Dispatch(event)
	}
}

// taskMeta returns the cached filter metadata for a task's type.
func (m *Manager) taskMeta(task Runnable) (*SystemMeta, error) {
	if r, ok := task.(*repeatingTask); ok {
		return m.taskMeta(r.inner)
	}
	t := reflect.TypeOf(task)
	if meta, ok := m.taskMetas.Load(t); ok {
		return meta.(*SystemMeta), nil
	}
	meta, err := analyzeSystem(task)
	if err != nil {
		return nil, err
	}
	actual, _ := m.taskMetas.LoadOrStore(t, meta)
	return actual.(*SystemMeta), nil
}

// build registers every bundle's systems.
func (m *Manager) build() error {
	for _, b := range m.bundles {
		if err := b.build(m); err != nil {
			return err
		}
	}
	return nil
}

// TickNumber returns the current scheduler tick.
func (m *Manager) TickNumber() uint64 {
	return m.scheduler.tickNumber.Load()
}

// Tick runs one scheduler tick synchronously. It is meant for managers built
// with Builder.ManualTick.
func (m *Manager) Tick() {
	m.scheduler.tick()
}

// Start starts the scheduler.
func (m *Manager) Start() {
	m.scheduler.Start()
}

// Shutdown stops the scheduler and closes every actor.
func (m *Manager) Shutdown() {
	m.scheduler.Stop()
	m.Reset()
}
