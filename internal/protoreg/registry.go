package protoreg

import (
	"fmt"
	"sync"

	"github.com/hanpama/protofetch/internal/fieldres"
	"github.com/hanpama/protofetch/internal/schema"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// Registry serves field resolvers and output schemas for the messages of a
// descriptor set. Resolvers are built once per field and shared, so accessor
// discovery happens at most once per field and source type.
type Registry struct {
	files *protoregistry.Files
	opts  []fieldres.Option

	resolvers sync.Map // protoreflect.FullName -> *fieldres.FieldResolver
	schemas   sync.Map // protoreflect.FullName -> *schema.Schema
}

// New returns a registry over files. opts apply to every resolver it builds.
func New(files *protoregistry.Files, opts ...fieldres.Option) *Registry {
	if files == nil {
		files = new(protoregistry.Files)
	}
	return &Registry{files: files, opts: opts}
}

// FromDescriptors registers fds in a fresh file set and returns its registry.
func FromDescriptors(fds ...protoreflect.FileDescriptor) (*Registry, error) {
	files := new(protoregistry.Files)
	for _, fd := range fds {
		if err := files.RegisterFile(fd); err != nil {
			return nil, fmt.Errorf("protoreg: register %s: %w", fd.Path(), err)
		}
	}
	return New(files), nil
}

// Files returns the underlying file set.
func (r *Registry) Files() *protoregistry.Files { return r.files }

// Message finds a message descriptor by full name.
func (r *Registry) Message(fullName string) (protoreflect.MessageDescriptor, error) {
	d, err := r.files.FindDescriptorByName(protoreflect.FullName(fullName))
	if err != nil {
		return nil, fmt.Errorf("protoreg: message %q: %w", fullName, err)
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("protoreg: %q is not a message", fullName)
	}
	return md, nil
}

// Schema returns the output schema rooted at md.
func (r *Registry) Schema(md protoreflect.MessageDescriptor) *schema.Schema {
	if s, ok := r.schemas.Load(md.FullName()); ok {
		return s.(*schema.Schema)
	}
	s, _ := r.schemas.LoadOrStore(md.FullName(), schema.FromMessage(md))
	return s.(*schema.Schema)
}

// Resolver returns the resolver for the field of md whose JSON name or proto
// name is graphqlField.
func (r *Registry) Resolver(md protoreflect.MessageDescriptor, graphqlField string) (*fieldres.FieldResolver, bool) {
	fd := FieldByName(md, graphqlField)
	if fd == nil {
		return nil, false
	}
	return r.ResolverFor(fd), true
}

// ResolverFor returns the shared resolver for fd. Wrapper-typed fields get
// the unwrapping variant.
func (r *Registry) ResolverFor(fd protoreflect.FieldDescriptor) *fieldres.FieldResolver {
	if v, ok := r.resolvers.Load(fd.FullName()); ok {
		return v.(*fieldres.FieldResolver)
	}
	var res *fieldres.FieldResolver
	if fieldres.IsWrapperField(fd) {
		res = fieldres.NewWrapper(fd, r.opts...)
	} else {
		res = fieldres.New(fd, r.opts...)
	}
	v, _ := r.resolvers.LoadOrStore(fd.FullName(), res)
	return v.(*fieldres.FieldResolver)
}

// FieldByName finds a field of md by JSON name, falling back to the proto
// name.
func FieldByName(md protoreflect.MessageDescriptor, name string) protoreflect.FieldDescriptor {
	fields := md.Fields()
	if fd := fields.ByJSONName(name); fd != nil {
		return fd
	}
	return fields.ByName(protoreflect.Name(name))
}
