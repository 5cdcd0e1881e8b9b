package wyvern

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/google/uuid"
)

// ErrInvalidActor is returned when an actor was closed or cannot be resolved.
var ErrInvalidActor = errors.New("wyvern: invalid actor")

// Actor is the per-entity state table entry. It is keyed by the entity's
// UUID and never by the live entity value, so a stale actor for a removed
// entity can still be read safely until it is reaped.
//
// All per-actor state (ground, rotation, flight, mount, input) lives in
// components attached to the actor.
type Actor struct {
	id     uuid.UUID
	handle *world.EntityHandle
	name   string

	// worldCache is the world the entity was last seen in.
	worldCache unsafe.Pointer

	mask       Bitmask
	components [MaxComponents]unsafe.Pointer
	mu         sync.RWMutex

	manager *Manager
	closed  atomic.Bool

	// misses counts consecutive ticks in which the host could not resolve the
	// actor. Only touched by the scheduler.
	misses int

	pendingTasks []*scheduledTask
	taskMu       sync.Mutex
}

// ID returns the actor's stable identifier.
func (a *Actor) ID() uuid.UUID {
	return a.id
}

// Handle returns the entity handle, or nil for actors tracked without one.
func (a *Actor) Handle() *world.EntityHandle {
	return a.handle
}

// Name returns the display name the actor was tracked with.
func (a *Actor) Name() string {
	return a.name
}

// Manager returns the manager owning the actor.
func (a *Actor) Manager() *Manager {
	return a.manager
}

// World returns the world the actor was last seen in. It may be stale.
func (a *Actor) World() *world.World {
	return (*world.World)(atomic.LoadPointer(&a.worldCache))
}

func (a *Actor) setWorld(w *world.World) {
	atomic.StorePointer(&a.worldCache, unsafe.Pointer(w))
}

// Closed reports whether the actor was removed from its manager.
func (a *Actor) Closed() bool {
	return a.closed.Load()
}

// Mask returns a copy of the component bitmask.
func (a *Actor) Mask() Bitmask {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mask
}

// Player returns the player behind the actor within tx.
func (a *Actor) Player(tx *world.Tx) (*player.Player, bool) {
	if a.handle == nil {
		return nil, false
	}
	e, ok := a.handle.Entity(tx)
	if !ok {
		return nil, false
	}
	p, ok := e.(*player.Player)
	return p, ok
}

// Exec runs fn in the transaction of the world the actor's entity is in.
// It returns false if the actor is closed or its entity is gone.
func (a *Actor) Exec(fn func(tx *world.Tx, e world.Entity)) bool {
	if a.closed.Load() || a.handle == nil {
		return false
	}
	return a.handle.ExecWorld(fn)
}

// Scheduler returns a TaskScheduler whose tasks are bound to this actor and
// are cancelled when it closes.
func (a *Actor) Scheduler() TaskScheduler {
	return actorScheduler{actor: a}
}

// String returns a debug representation listing the attached components.
func (a *Actor) String() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var comps []string
	for id := range ComponentID(MaxComponents) {
		if a.mask.Has(id) {
			comps = append(comps, ComponentName(id))
		}
	}
	return "Actor{Name: " + a.name + ", ID: " + a.id.String() + ", Components: [" + strings.Join(comps, ", ") + "]}"
}

// canRun checks the actor against a system's filter masks.
func (a *Actor) canRun(meta *SystemMeta) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mask.ContainsAll(meta.RequireMask) && !a.mask.ContainsAny(meta.ExcludeMask)
}

// close releases the actor: pending tasks are cancelled, Detach hooks run and
// every component is dropped. It is idempotent.
func (a *Actor) close() {
	if a.closed.Swap(true) {
		return
	}

	a.taskMu.Lock()
	tasks := a.pendingTasks
	a.pendingTasks = nil
	a.taskMu.Unlock()
	for _, t := range tasks {
		t.cancelled.Store(true)
	}

	var detach []Detachable
	a.mu.RLock()
	for id := range ComponentID(MaxComponents) {
		ptr := a.components[id]
		if ptr == nil {
			continue
		}
		if t := registry.typeOf(id); t != nil {
			if d, ok := reflect.NewAt(t, ptr).Interface().(Detachable); ok {
				detach = append(detach, d)
			}
		}
	}
	a.mu.RUnlock()

	// Detach hooks still see a readable actor.
	for _, d := range detach {
		d.Detach(a)
	}

	a.mu.Lock()
	for id := range ComponentID(MaxComponents) {
		a.components[id] = nil
	}
	a.mask = Bitmask{}
	a.mu.Unlock()
}

// clearRelationsTo drops every relation on this actor that points at target.
func (a *Actor) clearRelationsTo(target *Actor) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for id := range ComponentID(MaxComponents) {
		ptr := a.components[id]
		if ptr == nil {
			continue
		}
		if t := registry.typeOf(id); t != nil {
			clearRelationsTo(reflect.NewAt(t, ptr).Interface(), target)
		}
	}
}

func (a *Actor) addTask(t *scheduledTask) {
	a.taskMu.Lock()
	a.pendingTasks = append(a.pendingTasks, t)
	a.taskMu.Unlock()
}

func (a *Actor) removeTask(t *scheduledTask) {
	a.taskMu.Lock()
	for i, pending := range a.pendingTasks {
		if pending == t {
			a.pendingTasks = append(a.pendingTasks[:i], a.pendingTasks[i+1:]...)
			break
		}
	}
	a.taskMu.Unlock()
}

// actorScheduler adapts the manager's task queue to TaskScheduler.
type actorScheduler struct {
	actor *Actor
}

// After implements TaskScheduler.
func (s actorScheduler) After(ticks int, fn func(w World)) {
	Schedule(s.actor, TaskFunc(func(c *Context) { fn(c.World) }), ticks)
}
