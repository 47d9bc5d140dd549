package schema

import "google.golang.org/protobuf/reflect/protoreflect"

// Schema is the GraphQL output type model for one root message.
type Schema struct {
	RootType string
	Types    map[string]*Type // All named types keyed by name
}

// GetRootType returns the object type of the root message (may be nil if absent)
func (s *Schema) GetRootType() *Type { return s.Types[s.RootType] }

// Output pairs ref with its named type.
func (s *Schema) Output(ref *TypeRef) OutputType {
	return OutputType{Ref: ref, Named: s.Types[ref.GetNamedType()]}
}

// Type is a named GraphQL type (object, scalar, enum)
type Type struct {
	Name        string
	Kind        TypeKind
	Description string
	Fields      []*Field     // For OBJECT
	EnumValues  []*EnumValue // For ENUM
	// Message is the protobuf message an OBJECT type was derived from.
	Message protoreflect.MessageDescriptor `json:"-"`
	// Enum is the protobuf enum an ENUM type was derived from.
	Enum protoreflect.EnumDescriptor `json:"-"`
}

// Field looks up a field by name.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Field represents a field on an object
type Field struct {
	Name        string
	Description string
	Type        *TypeRef
	// Source is the protobuf field backing this GraphQL field.
	Source protoreflect.FieldDescriptor `json:"-"`
}

// TypeKind represents the kind of GraphQL type
type TypeKind string

const (
	TypeKindScalar TypeKind = "SCALAR"
	TypeKindObject TypeKind = "OBJECT"
	TypeKindEnum   TypeKind = "ENUM"
)

// TypeRef represents a reference to a type (can be wrapped)
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef // For List and NonNull
	Named  string   // For named types
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// Helper functions for TypeRef
func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

func (t *TypeRef) IsList() bool {
	if t.Kind == TypeRefKindList {
		return true
	}
	if t.Kind == TypeRefKindNonNull && t.OfType != nil {
		return t.OfType.Kind == TypeRefKindList
	}
	return false
}

func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

func (t *TypeRef) GetNamedType() string {
	current := t
	for current != nil {
		if current.Named != "" {
			return current.Named
		}
		current = current.OfType
	}
	return ""
}

// String renders the reference in SDL notation, e.g. "[Status!]!".
func (t *TypeRef) String() string {
	switch t.Kind {
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	}
	return t.Named
}

type EnumValue struct {
	Name        string
	Description string
}

func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }

// IsNonNull reports whether the type is wrapped with Non-Null.
func IsNonNull(t *TypeRef) bool { return t != nil && t.IsNonNull() }

// IsList reports whether the type is (or is wrapped by) a list type.
func IsList(t *TypeRef) bool { return t != nil && t.IsList() }

// Unwrap removes one layer of Non-Null or List wrapping and returns the inner type.
func Unwrap(t *TypeRef) *TypeRef { return t.Unwrap() }

// GetNamedType returns the innermost named type for the given reference.
func GetNamedType(t *TypeRef) string { return t.GetNamedType() }

// OutputType is the statically known type of a field position.
type OutputType struct {
	Ref   *TypeRef
	Named *Type
}

// IsEnum reports whether the position holds a single enum value. Lists of
// enums are not enum positions.
func (o OutputType) IsEnum() bool {
	ref := o.Ref
	if ref.IsNonNull() {
		ref = ref.OfType
	}
	return ref != nil && ref.Kind == TypeRefKindNamed && o.Named != nil && o.Named.Kind == TypeKindEnum
}
