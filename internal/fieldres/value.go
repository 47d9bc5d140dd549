package fieldres

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// goValue converts a protobuf field value to a Go value. Lists become []any
// and maps become map[string]any keyed by the map key's string form.
func goValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch {
	case fd.IsList():
		lst := v.List()
		out := make([]any, lst.Len())
		for i := range out {
			out[i] = scalarValue(fd, lst.Get(i))
		}
		return out
	case fd.IsMap():
		m := v.Map()
		vd := fd.MapValue()
		out := make(map[string]any, m.Len())
		m.Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
			out[k.String()] = scalarValue(vd, mv)
			return true
		})
		return out
	}
	return scalarValue(fd, v)
}

func scalarValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return int32(v.Int())
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return v.Int()
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return uint32(v.Uint())
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return v.Uint()
	case protoreflect.FloatKind:
		return float32(v.Float())
	case protoreflect.DoubleKind:
		return v.Float()
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BytesKind:
		return v.Bytes()
	case protoreflect.EnumKind:
		return v.Enum()
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return v.Message()
	}
	return nil
}

// enumLabel returns the declared name of n. Numbers unknown to an open enum
// render as their decimal form.
func enumLabel(ed protoreflect.EnumDescriptor, n protoreflect.EnumNumber) string {
	if ed != nil {
		if ev := ed.Values().ByNumber(n); ev != nil {
			return string(ev.Name())
		}
	}
	return strconv.Itoa(int(n))
}

// label renders a singular field value as the label of an enum output type.
func label(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	if fd.IsList() {
		return labels(fd, v.List())
	}
	switch fd.Kind() {
	case protoreflect.EnumKind:
		return enumLabel(fd.Enum(), v.Enum())
	case protoreflect.StringKind:
		return v.String()
	}
	return fmt.Sprint(scalarValue(fd, v))
}

func labels(fd protoreflect.FieldDescriptor, lst protoreflect.List) []string {
	out := make([]string, lst.Len())
	for i := range out {
		out[i] = enumLabel(fd.Enum(), lst.Get(i).Enum())
	}
	return out
}

// unwrapValue returns the "value" field of a wrapper message. Non-message
// values are returned unchanged; lists are unwrapped element-wise.
func unwrapValue(v any) any {
	var m protoreflect.Message
	switch w := v.(type) {
	case protoreflect.Message:
		m = w
	case proto.Message:
		if isNilValue(w) {
			return nil
		}
		m = w.ProtoReflect()
	case []any:
		out := make([]any, len(w))
		for i, e := range w {
			out[i] = unwrapValue(e)
		}
		return out
	default:
		return v
	}
	if m == nil || !m.IsValid() {
		return nil
	}
	vf := m.Descriptor().Fields().ByName("value")
	if vf == nil {
		return v
	}
	return goValue(vf, m.Get(vf))
}
