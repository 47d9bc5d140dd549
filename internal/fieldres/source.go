package fieldres

import (
	"reflect"

	"github.com/hanpama/protofetch/internal/deferred"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Source is one of the representations a FieldResolver understands:
// MessageSource, MapSource, ObjectSource or DeferredSource.
type Source interface {
	isSource()
}

// MessageSource is a structured protobuf message.
type MessageSource struct {
	Message protoreflect.Message
}

// MapSource is a string-keyed mapping looked up by lowerCamel field name.
type MapSource map[string]any

// ObjectSource is an arbitrary value exposing zero-argument accessors.
type ObjectSource struct {
	Value any
}

// DeferredSource is a source that becomes available later.
type DeferredSource struct {
	Future *deferred.Future[any]
}

// reflectMapSource is any other map with a string kind key, such as
// map[string]int or a map keyed by a named string type.
type reflectMapSource struct {
	m reflect.Value
}

func (MessageSource) isSource()    {}
func (MapSource) isSource()        {}
func (ObjectSource) isSource()     {}
func (DeferredSource) isSource()   {}
func (reflectMapSource) isSource() {}

func (s reflectMapSource) lookup(key string) any {
	v := s.m.MapIndex(reflect.ValueOf(key).Convert(s.m.Type().Key()))
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

var anyMapType = reflect.TypeOf(map[string]any(nil))

// Classify maps a raw value onto a Source. Any map with a string kind key is a
// mapping source. It returns nil for absent values: nil, nil or invalid
// messages, nil maps and typed nil pointers.
func Classify(v any) Source {
	switch s := v.(type) {
	case nil:
		return nil
	case MessageSource:
		if isNilValue(s.Message) || !s.Message.IsValid() {
			return nil
		}
		return s
	case MapSource:
		if s == nil {
			return nil
		}
		return s
	case ObjectSource:
		if isNilValue(s.Value) {
			return nil
		}
		return s
	case DeferredSource:
		if s.Future == nil {
			return nil
		}
		return s
	case *deferred.Future[any]:
		if s == nil {
			return nil
		}
		return DeferredSource{Future: s}
	case protoreflect.Message:
		return Classify(MessageSource{Message: s})
	case proto.Message:
		if isNilValue(s) {
			return nil
		}
		return Classify(MessageSource{Message: s.ProtoReflect()})
	case map[string]any:
		return Classify(MapSource(s))
	default:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
			if rv.IsNil() {
				return nil
			}
			if rv.Type().ConvertibleTo(anyMapType) {
				return MapSource(rv.Convert(anyMapType).Interface().(map[string]any))
			}
			return reflectMapSource{m: rv}
		}
		return Classify(ObjectSource{Value: v})
	}
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
