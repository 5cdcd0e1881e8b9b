package wyvern

import (
	"fmt"
	"reflect"
)

// SystemMeta is computed once per system type at registration time.
type SystemMeta struct {
	// Type is the system struct type.
	Type reflect.Type
	// Name is used in logs.
	Name string

	// RequireMask holds the components named by With[T] fields.
	RequireMask Bitmask
	// ExcludeMask holds the components named by Without[T] fields.
	ExcludeMask Bitmask

	Stage Stage
}

// analyzeSystem builds the filter masks of a loop or task from its phantom
// fields. Other fields are left alone and act as payload.
func analyzeSystem(sys any) (*SystemMeta, error) {
	t := reflect.TypeOf(sys)
	if t == nil {
		return nil, fmt.Errorf("system must not be nil")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	meta := &SystemMeta{Type: t, Name: t.Name()}
	if t.Kind() != reflect.Struct {
		// Function systems such as TaskFunc carry no filters.
		return meta, nil
	}

	for i := 0; i < t.NumField(); i++ {
		comp, without, ok := phantomInfo(t.Field(i).Type)
		if !ok {
			continue
		}
		id := registry.register(comp)
		if without {
			meta.ExcludeMask.Set(id)
		} else {
			meta.RequireMask.Set(id)
		}
	}
	if !meta.RequireMask.IsZero() && meta.RequireMask.ContainsAny(meta.ExcludeMask) {
		return nil, fmt.Errorf("system %s both requires and excludes a component", meta.Name)
	}
	return meta, nil
}
