package schema

import (
	"strings"

	"github.com/hanpama/protofetch/internal/fieldres"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// FromMessage derives the output types of md and of every message and enum
// reachable from its fields. md becomes the root type.
//
// Types are named after the short protobuf name. When two reachable
// declarations share a short name, the later one is named after its full
// name with dots replaced by underscores.
func FromMessage(md protoreflect.MessageDescriptor) *Schema {
	b := &messageBuilder{
		s:     &Schema{Types: map[string]*Type{}},
		names: map[protoreflect.FullName]string{},
	}
	for _, t := range builtinScalars {
		b.s.Types[t.Name] = t
	}
	b.s.RootType = b.message(md)
	return b.s
}

type messageBuilder struct {
	s     *Schema
	names map[protoreflect.FullName]string
}

func (b *messageBuilder) name(d protoreflect.Descriptor) (string, bool) {
	if n, ok := b.names[d.FullName()]; ok {
		return n, true
	}
	n := string(d.Name())
	if _, taken := b.s.Types[n]; taken {
		n = strings.ReplaceAll(string(d.FullName()), ".", "_")
	}
	b.names[d.FullName()] = n
	return n, false
}

func (b *messageBuilder) message(md protoreflect.MessageDescriptor) string {
	name, seen := b.name(md)
	if seen {
		return name
	}
	t := &Type{Name: name, Kind: TypeKindObject, Description: comments(md), Message: md}
	// registered before walking fields so recursive messages terminate
	b.s.Types[name] = t

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		t.Fields = append(t.Fields, &Field{
			Name:        fd.JSONName(),
			Description: comments(fd),
			Type:        b.fieldType(fd),
			Source:      fd,
		})
	}
	return name
}

func (b *messageBuilder) enum(ed protoreflect.EnumDescriptor) string {
	name, seen := b.name(ed)
	if seen {
		return name
	}
	t := &Type{Name: name, Kind: TypeKindEnum, Description: comments(ed), Enum: ed}
	values := ed.Values()
	for i := 0; i < values.Len(); i++ {
		v := values.Get(i)
		t.EnumValues = append(t.EnumValues, &EnumValue{Name: string(v.Name()), Description: comments(v)})
	}
	b.s.Types[name] = t
	return name
}

func (b *messageBuilder) fieldType(fd protoreflect.FieldDescriptor) *TypeRef {
	if fd.IsMap() {
		return NamedType(mapType.Name)
	}
	elem, nullable := b.elemType(fd)
	if fd.IsList() {
		return ListType(NonNullType(elem))
	}
	if nullable || fd.HasOptionalKeyword() {
		return elem
	}
	return NonNullType(elem)
}

// elemType returns the element type of fd and whether a singular value of it
// may be absent.
func (b *messageBuilder) elemType(fd protoreflect.FieldDescriptor) (*TypeRef, bool) {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		if fieldres.IsWrapperField(fd) {
			inner, _ := b.elemType(fd.Message().Fields().ByName("value"))
			return inner, true
		}
		return NamedType(b.message(fd.Message())), true
	case protoreflect.EnumKind:
		return NamedType(b.enum(fd.Enum())), false
	}
	return NamedType(ScalarName(fd.Kind())), false
}

// ScalarName returns the scalar type name used for a non-message,
// non-enum protobuf kind.
func ScalarName(k protoreflect.Kind) string {
	switch k {
	case protoreflect.BoolKind:
		return booleanType.Name
	case protoreflect.StringKind:
		return stringType.Name
	case protoreflect.BytesKind:
		return bytesType.Name
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return intType.Name
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return int64Type.Name
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return uint64Type.Name
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return floatType.Name
	}
	return stringType.Name
}

// comments returns the leading comments of d when its file retains source
// info.
func comments(d protoreflect.Descriptor) string {
	f := d.ParentFile()
	if f == nil {
		return ""
	}
	return strings.TrimSpace(f.SourceLocations().ByDescriptor(d).LeadingComments)
}
