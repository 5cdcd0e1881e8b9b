package wyvern

import (
	"reflect"
	"sync"
)

// Relation is a reference from one actor to another. T names the component
// the target is expected to carry.
//
//	type Mount struct {
//	    Rider wyvern.Relation[Riding]
//	}
//
// Relations are cleared automatically when the target actor is removed.
type Relation[T any] struct {
	target *Actor
}

// Set points the relation at target.
func (r *Relation[T]) Set(target *Actor) {
	r.target = target
}

// Clear removes the target.
func (r *Relation[T]) Clear() {
	r.target = nil
}

// Get returns the target, or nil if unset or closed.
func (r *Relation[T]) Get() *Actor {
	if r.target == nil {
		return nil
	}
	if r.target.closed.Load() {
		r.target = nil
		return nil
	}
	return r.target
}

// Valid reports whether the target exists and carries T.
func (r *Relation[T]) Valid() bool {
	t := r.Get()
	return t != nil && Has[T](t)
}

func (r *Relation[T]) clearRelationsTo(target *Actor) {
	if r.target == target {
		r.target = nil
	}
}

// Resolve returns the target of r together with its T component.
func Resolve[T any](r *Relation[T]) (*Actor, *T, bool) {
	a := r.Get()
	if a == nil {
		return nil, nil, false
	}
	c := Get[T](a)
	if c == nil {
		return a, nil, false
	}
	return a, c, true
}

// RelationSet is a set of references to other actors.
//
//	type Owner struct {
//	    Dragons wyvern.RelationSet[Dragon]
//	}
type RelationSet[T any] struct {
	mu      sync.RWMutex
	targets map[*Actor]struct{}
}

// Add adds target to the set.
func (rs *RelationSet[T]) Add(target *Actor) {
	if target == nil {
		return
	}
	rs.mu.Lock()
	if rs.targets == nil {
		rs.targets = make(map[*Actor]struct{})
	}
	rs.targets[target] = struct{}{}
	rs.mu.Unlock()
}

// Remove removes target from the set.
func (rs *RelationSet[T]) Remove(target *Actor) {
	rs.mu.Lock()
	delete(rs.targets, target)
	rs.mu.Unlock()
}

// Has reports whether target is in the set.
func (rs *RelationSet[T]) Has(target *Actor) bool {
	rs.mu.RLock()
	_, ok := rs.targets[target]
	rs.mu.RUnlock()
	return ok
}

// Len returns the number of targets, including closed ones not yet pruned.
func (rs *RelationSet[T]) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.targets)
}

// All returns every target that is still open.
func (rs *RelationSet[T]) All() []*Actor {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]*Actor, 0, len(rs.targets))
	for t := range rs.targets {
		if !t.closed.Load() {
			out = append(out, t)
		}
	}
	return out
}

func (rs *RelationSet[T]) clearRelationsTo(target *Actor) {
	rs.Remove(target)
}

// relationCleaner is implemented by Relation and RelationSet.
type relationCleaner interface {
	clearRelationsTo(target *Actor)
}

// clearRelationsTo walks the fields of a component and clears every relation
// pointing at target.
func clearRelationsTo(component any, target *Actor) {
	if c, ok := component.(relationCleaner); ok {
		c.clearRelationsTo(target)
		return
	}
	v := reflect.ValueOf(component)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return
	}
	v = v.Elem()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if !f.CanAddr() {
			continue
		}
		ptr := reflect.NewAt(f.Type(), f.Addr().UnsafePointer()).Interface()
		if c, ok := ptr.(relationCleaner); ok {
			c.clearRelationsTo(target)
		}
	}
}
