package fieldres

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// Accessor reads one field from an object source.
type Accessor func(obj any) (any, error)

// AccessorProvider finds the accessor named name (e.g. "getUserId") for obj.
// The lookup result is cached by the resolver, so providers may be slow.
type AccessorProvider interface {
	LookupAccessor(obj any, name string) (Accessor, bool)
}

// AccessorTable is a caller-registered set of accessors keyed by accessor
// name. The object argument of LookupAccessor is ignored.
type AccessorTable map[string]Accessor

func (t AccessorTable) LookupAccessor(_ any, name string) (Accessor, bool) {
	a, ok := t[name]
	return a, ok && a != nil
}

// Getter adapts a typed function into an Accessor.
func Getter[T, R any](fn func(T) R) Accessor {
	return func(obj any) (any, error) {
		v, ok := obj.(T)
		if !ok {
			return nil, fmt.Errorf("accessor expects %s, got %T", reflect.TypeOf((*T)(nil)).Elem(), obj)
		}
		return fn(v), nil
	}
}

// ReflectAccessors discovers accessors as exported methods: "getUserId" is
// looked up as method GetUserId. Methods must take no arguments and return
// either a single value or a value and an error.
type ReflectAccessors struct{}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func (ReflectAccessors) LookupAccessor(obj any, name string) (Accessor, bool) {
	typ := reflect.TypeOf(obj)
	if typ == nil {
		return nil, false
	}
	goName := capitalize(name)
	m, ok := typ.MethodByName(goName)
	if !ok || !validAccessor(m.Type) {
		return nil, false
	}
	index := m.Index
	return func(obj any) (any, error) {
		rv := reflect.ValueOf(obj)
		var fn reflect.Value
		if rv.Type() == typ {
			fn = rv.Method(index)
		} else {
			fn = rv.MethodByName(goName)
			if !fn.IsValid() {
				return nil, fmt.Errorf("%T has no method %s", obj, goName)
			}
		}
		out := fn.Call(nil)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}, true
}

// validAccessor reports whether mt (a method type including its receiver)
// can be used as an accessor.
func validAccessor(mt reflect.Type) bool {
	if mt.NumIn() != 1 {
		return false
	}
	switch mt.NumOut() {
	case 1:
		return true
	case 2:
		return mt.Out(1) == errorType
	}
	return false
}

// accessorCell memoizes one Accessor. load and store are lock-free; callers
// only ever store equivalent accessors, so a lost race is harmless.
type accessorCell struct {
	p atomic.Pointer[Accessor]
}

func (c *accessorCell) load() Accessor {
	if p := c.p.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *accessorCell) store(a Accessor) {
	c.p.Store(&a)
}
