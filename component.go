package wyvern

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"
)

// ComponentID identifies a component type. Valid IDs range from 0 to 254.
type ComponentID uint8

// MaxComponents is the maximum number of component types.
const MaxComponents = 255

// componentRegistry assigns IDs to component types. Types are registered once
// and looked up on every tick, so lookups go through a sync.Map.
type componentRegistry struct {
	types sync.Map // map[reflect.Type]ComponentID

	names    [MaxComponents]string
	typesArr [MaxComponents]reflect.Type
	arrMu    sync.RWMutex

	nextID atomic.Uint32
}

// registry is shared by every Manager in the process so that component IDs
// are stable across managers.
var registry = &componentRegistry{}

// register returns the ID for t, assigning one on first use.
func (r *componentRegistry) register(t reflect.Type) ComponentID {
	if id, ok := r.types.Load(t); ok {
		return id.(ComponentID)
	}

	newID := r.nextID.Add(1) - 1
	if newID >= MaxComponents {
		panic(fmt.Sprintf("wyvern: component limit exceeded (max %d types)", MaxComponents))
	}

	actual, loaded := r.types.LoadOrStore(t, ComponentID(newID))
	if loaded {
		return actual.(ComponentID)
	}

	r.arrMu.Lock()
	r.names[newID] = t.Name()
	r.typesArr[newID] = t
	r.arrMu.Unlock()

	return ComponentID(newID)
}

func (r *componentRegistry) name(id ComponentID) string {
	r.arrMu.RLock()
	defer r.arrMu.RUnlock()
	return r.names[id]
}

func (r *componentRegistry) typeOf(id ComponentID) reflect.Type {
	r.arrMu.RLock()
	defer r.arrMu.RUnlock()
	return r.typesArr[id]
}

// componentID returns the ID of T, registering it if needed.
func componentID[T any]() ComponentID {
	return registry.register(reflect.TypeOf((*T)(nil)).Elem())
}

// Attachable is implemented by components that run logic when attached.
type Attachable interface {
	Attach(a *Actor)
}

// Detachable is implemented by components that run logic when removed or when
// their actor is closed.
type Detachable interface {
	Detach(a *Actor)
}

// Add attaches component to the actor, replacing any component of the same
// type. Detach is called on the replaced component and Attach on the new one.
func Add[T any](a *Actor, component *T) {
	if a == nil || component == nil {
		return
	}
	id := componentID[T]()

	a.mu.Lock()
	old := a.components[id]
	a.components[id] = unsafe.Pointer(component)
	a.mask.Set(id)
	a.mu.Unlock()

	if old != nil {
		if d, ok := any((*T)(old)).(Detachable); ok {
			d.Detach(a)
		}
	}
	if at, ok := any(component).(Attachable); ok {
		at.Attach(a)
	}
}

// Remove detaches the component of type T, calling Detach if implemented.
func Remove[T any](a *Actor) {
	if a == nil {
		return
	}
	id := componentID[T]()

	a.mu.Lock()
	ptr := a.components[id]
	if ptr == nil {
		a.mu.Unlock()
		return
	}
	// Cleared before Detach so the hook cannot observe itself.
	a.components[id] = nil
	a.mask.Clear(id)
	a.mu.Unlock()

	if d, ok := any((*T)(ptr)).(Detachable); ok {
		d.Detach(a)
	}
}

// Get returns the component of type T, or nil.
func Get[T any](a *Actor) *T {
	if a == nil {
		return nil
	}
	id := componentID[T]()

	a.mu.RLock()
	ptr := a.components[id]
	a.mu.RUnlock()

	if ptr == nil {
		return nil
	}
	return (*T)(ptr)
}

// GetOrAdd returns the component of type T, attaching the value returned by
// init first if the actor has none.
func GetOrAdd[T any](a *Actor, init func() *T) *T {
	if c := Get[T](a); c != nil {
		return c
	}
	c := init()
	Add(a, c)
	return c
}

// Has reports whether the actor carries a component of type T.
func Has[T any](a *Actor) bool {
	if a == nil {
		return false
	}
	id := componentID[T]()

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mask.Has(id)
}

// ComponentName returns the name of the component type with the given ID.
func ComponentName(id ComponentID) string {
	return registry.name(id)
}
