package wyvern

import (
	"reflect"
)

// With is a phantom field type: the system only runs for actors carrying T.
//
//	type flightLoop struct {
//	    _ wyvern.With[Mount]
//	}
type With[T any] struct{}

// Without is a phantom field type: the system is skipped for actors carrying T.
type Without[T any] struct{}

// PhantomTypeInfo exposes the component a phantom field filters on.
type PhantomTypeInfo interface {
	ComponentType() reflect.Type
	IsWithout() bool
}

// ComponentType implements PhantomTypeInfo.
func (With[T]) ComponentType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// IsWithout implements PhantomTypeInfo.
func (With[T]) IsWithout() bool {
	return false
}

// ComponentType implements PhantomTypeInfo.
func (Without[T]) ComponentType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// IsWithout implements PhantomTypeInfo.
func (Without[T]) IsWithout() bool {
	return true
}

var phantomTypeInfoType = reflect.TypeOf((*PhantomTypeInfo)(nil)).Elem()

// phantomInfo returns the filtered component of a phantom field type.
func phantomInfo(t reflect.Type) (comp reflect.Type, without bool, ok bool) {
	if !t.Implements(phantomTypeInfoType) {
		return nil, false, false
	}
	v := reflect.New(t).Elem().Interface().(PhantomTypeInfo)
	return v.ComponentType(), v.IsWithout(), true
}
