package fieldres

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hanpama/protofetch/internal/deferred"
	"github.com/hanpama/protofetch/internal/eventbus"
	"github.com/hanpama/protofetch/internal/events"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// ExpectedType is the statically known output type at the resolved position.
// Only enum-ness matters: a message stores enums as numbers, while an enum
// output needs the label.
type ExpectedType interface {
	IsEnum() bool
}

type enumness bool

func (e enumness) IsEnum() bool { return bool(e) }

// Enum and NotEnum are ExpectedType values for callers without a schema.
var (
	Enum    ExpectedType = enumness(true)
	NotEnum ExpectedType = enumness(false)
)

// FieldResolver resolves one field descriptor against source values.
// It is safe for concurrent use.
type FieldResolver struct {
	fd           protoreflect.FieldDescriptor
	mapKey       string
	accessorName string
	unwrap       bool
	accessors    AccessorProvider

	getter accessorCell
}

// Option configures a FieldResolver.
type Option func(*FieldResolver)

// WithAccessors sets the provider used to find accessors on object sources.
// The default is ReflectAccessors.
func WithAccessors(p AccessorProvider) Option {
	return func(r *FieldResolver) { r.accessors = p }
}

// New returns a resolver for fd.
func New(fd protoreflect.FieldDescriptor, opts ...Option) *FieldResolver {
	if fd == nil {
		panic("fieldres: nil field descriptor")
	}
	r := &FieldResolver{
		fd:           fd,
		mapKey:       CamelName(string(fd.Name())),
		accessorName: AccessorName(fd),
		accessors:    ReflectAccessors{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewWrapper returns a resolver for a field holding single-field wrapper
// messages; it returns the wrapper's "value" instead of the wrapper itself.
func NewWrapper(fd protoreflect.FieldDescriptor, opts ...Option) *FieldResolver {
	r := New(fd, opts...)
	r.unwrap = true
	return r
}

// Descriptor returns the field descriptor the resolver was built for.
func (r *FieldResolver) Descriptor() protoreflect.FieldDescriptor { return r.fd }

// MapKey returns the key used for mapping sources.
func (r *FieldResolver) MapKey() string { return r.mapKey }

// AccessorName returns the accessor name used for object sources.
func (r *FieldResolver) AccessorName() string { return r.accessorName }

// IsWrapper reports whether the resolver unwraps wrapper messages.
func (r *FieldResolver) IsWrapper() bool { return r.unwrap }

// Resolve returns the field's value as seen through source.
//
// It returns (nil, nil) when source is absent, or when the field is optional
// or a singular message and is not set on a message source. When source is
// deferred, Resolve does not block: it returns a *deferred.Future[any] that
// completes with the result of resolving the eventual value.
//
// Message values are converted to Go values: scalars to their Go types, enums
// to their label when expected is nil or an enum (protoreflect.EnumNumber
// otherwise), repeated enums to []string labels, other lists to []any, maps to
// map[string]any and nested messages to protoreflect.Message.
func (r *FieldResolver) Resolve(ctx context.Context, source any, expected ExpectedType) (any, error) {
	src := Classify(source)
	if d, ok := src.(DeferredSource); ok {
		return deferred.Then(d.Future, func(v any) (any, error) {
			inner := Classify(v)
			if _, nested := inner.(DeferredSource); nested {
				return nil, fmt.Errorf("fieldres: nested deferred source for %s", r.fd.FullName())
			}
			return r.resolve(ctx, inner, expected)
		}), nil
	}
	return r.resolve(ctx, src, expected)
}

func (r *FieldResolver) resolve(ctx context.Context, src Source, expected ExpectedType) (any, error) {
	switch s := src.(type) {
	case nil:
		return nil, nil
	case MessageSource:
		return r.resolveMessage(s.Message, expected), nil
	case MapSource:
		return s[r.mapKey], nil
	case reflectMapSource:
		return s.lookup(r.mapKey), nil
	case ObjectSource:
		return r.resolveObject(ctx, s.Value)
	}
	return nil, fmt.Errorf("fieldres: unsupported source %T", src)
}

func (r *FieldResolver) resolveMessage(msg protoreflect.Message, expected ExpectedType) any {
	fd := r.fieldFor(msg)

	if fd.HasOptionalKeyword() && !msg.Has(fd) {
		return nil
	}
	if enumOutput(fd, expected) {
		return label(fd, msg.Get(fd))
	}
	if fd.IsList() && fd.Kind() == protoreflect.EnumKind {
		return labels(fd, msg.Get(fd).List())
	}
	if fd.Cardinality() == protoreflect.Repeated || !isMessageKind(fd) || msg.Has(fd) {
		v := goValue(fd, msg.Get(fd))
		if r.unwrap {
			v = unwrapValue(v)
		}
		return v
	}
	return nil
}

// fieldFor returns the descriptor of r's field as declared by msg's own
// descriptor. Generated and dynamic messages of the same type may carry
// distinct descriptor instances.
func (r *FieldResolver) fieldFor(msg protoreflect.Message) protoreflect.FieldDescriptor {
	md := msg.Descriptor()
	if md == r.fd.ContainingMessage() {
		return r.fd
	}
	if fd := md.Fields().ByNumber(r.fd.Number()); fd != nil {
		return fd
	}
	return r.fd
}

// enumOutput reports whether fd's value should be rendered as a label. Without
// an expected type the field's own kind decides.
func enumOutput(fd protoreflect.FieldDescriptor, expected ExpectedType) bool {
	if expected == nil {
		return fd.Kind() == protoreflect.EnumKind
	}
	return expected.IsEnum()
}

func isMessageKind(fd protoreflect.FieldDescriptor) bool {
	k := fd.Kind()
	return k == protoreflect.MessageKind || k == protoreflect.GroupKind
}

func (r *FieldResolver) resolveObject(ctx context.Context, obj any) (any, error) {
	get := r.getter.load()
	if get == nil {
		var err error
		if get, err = r.discover(ctx, obj); err != nil {
			return nil, err
		}
	}
	v, err := invoke(get, obj)
	if err != nil {
		return nil, &AccessorError{Accessor: r.accessorName, SourceType: typeName(obj), Kind: ErrAccessorFailed, Err: err}
	}
	if r.unwrap {
		v = unwrapValue(v)
	}
	return v, nil
}

func (r *FieldResolver) discover(ctx context.Context, obj any) (Accessor, error) {
	get, ok := r.accessors.LookupAccessor(obj, r.accessorName)
	var err error
	if !ok {
		err = &AccessorError{Accessor: r.accessorName, SourceType: typeName(obj), Kind: ErrAccessorNotFound}
	}
	if eventbus.Enabled[events.AccessorDiscovered]() {
		eventbus.Publish(ctx, events.AccessorDiscovered{
			Field:      string(r.fd.FullName()),
			Accessor:   r.accessorName,
			SourceType: typeName(obj),
			Err:        err,
		})
	}
	if err != nil {
		return nil, err
	}
	r.getter.store(get)
	return get, nil
}

func invoke(get Accessor, obj any) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return get(obj)
}

func typeName(v any) string {
	if t := reflect.TypeOf(v); t != nil {
		return t.String()
	}
	return "<nil>"
}
