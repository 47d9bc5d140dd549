// Package prototest provides protobuf descriptors shared by tests.
package prototest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// UserMessage is the full name of the root fixture message.
	UserMessage = "acme.User"
	// FilePath is the path of the fixture file.
	FilePath = "acme/user.proto"
)

// UserFileProto returns the descriptor proto of:
//
//	package acme;
//	enum Status { STATUS_UNSPECIFIED = 0; ACTIVE = 1; INACTIVE = 2; }
//	message Address { string city = 1; repeated string lines = 2; }
//	// A registered account.
//	message User {
//	  // Stable identifier.
//	  int64 user_id = 1;
//	  Status status = 2;
//	  repeated Status tags = 3;
//	  Address address = 4;
//	  optional string nickname = 5;
//	  google.protobuf.Int64Value amount = 6;
//	  map<string, int32> scores = 7;
//	  bytes avatar = 8;
//	  repeated Address previous_addresses = 9;
//	  User manager = 10;
//	  double rating = 11;
//	  uint64 visits = 12;
//	}
func UserFileProto() *descriptorpb.FileDescriptorProto {
	nickname := field("nickname", 5, descriptorpb.FieldDescriptorProto_TYPE_STRING)
	nickname.Proto3Optional = proto.Bool(true)
	nickname.OneofIndex = proto.Int32(0)

	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(FilePath),
		Package:    proto.String("acme"),
		Dependency: []string{"google/protobuf/wrappers.proto"},
		Syntax:     proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("Status"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("STATUS_UNSPECIFIED"), Number: proto.Int32(0)},
				{Name: proto.String("ACTIVE"), Number: proto.Int32(1)},
				{Name: proto.String("INACTIVE"), Number: proto.Int32(2)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Address"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("city", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					repeated(field("lines", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
				},
			},
			{
				Name: proto.String("User"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("user_id", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64),
					typed(field("status", 2, descriptorpb.FieldDescriptorProto_TYPE_ENUM), ".acme.Status"),
					repeated(typed(field("tags", 3, descriptorpb.FieldDescriptorProto_TYPE_ENUM), ".acme.Status")),
					typed(field("address", 4, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE), ".acme.Address"),
					nickname,
					typed(field("amount", 6, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE), ".google.protobuf.Int64Value"),
					repeated(typed(field("scores", 7, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE), ".acme.User.ScoresEntry")),
					field("avatar", 8, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
					repeated(typed(field("previous_addresses", 9, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE), ".acme.Address")),
					typed(field("manager", 10, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE), ".acme.User"),
					field("rating", 11, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
					field("visits", 12, descriptorpb.FieldDescriptorProto_TYPE_UINT64),
				},
				NestedType: []*descriptorpb.DescriptorProto{{
					Name: proto.String("ScoresEntry"),
					Field: []*descriptorpb.FieldDescriptorProto{
						field("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
						field("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					},
					Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
				}},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("_nickname")}},
			},
		},
		SourceCodeInfo: &descriptorpb.SourceCodeInfo{
			Location: []*descriptorpb.SourceCodeInfo_Location{
				{Path: []int32{4, 1}, Span: []int32{10, 0, 30, 1}, LeadingComments: proto.String(" A registered account.\n")},
				{Path: []int32{4, 1, 2, 0}, Span: []int32{12, 2, 20}, LeadingComments: proto.String(" Stable identifier.\n")},
			},
		},
	}
}

// UserFileSet returns a FileDescriptorSet holding the fixture file and the
// wrappers file it imports.
func UserFileSet() *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{
			protodesc.ToFileDescriptorProto(wrapperspb.File_google_protobuf_wrappers_proto),
			UserFileProto(),
		},
	}
}

// UserFile builds the fixture file against the global registry.
func UserFile(t testing.TB) protoreflect.FileDescriptor {
	t.Helper()
	fd, err := protodesc.NewFile(UserFileProto(), protoregistry.GlobalFiles)
	require.NoError(t, err)
	return fd
}

// User returns the descriptor of acme.User.
func User(t testing.TB) protoreflect.MessageDescriptor {
	t.Helper()
	return UserFile(t).Messages().ByName("User")
}

// NewUser returns an empty dynamic acme.User.
func NewUser(t testing.TB) *dynamicpb.Message {
	t.Helper()
	return dynamicpb.NewMessage(User(t))
}

// Set assigns a singular field of m by proto name.
func Set(m protoreflect.Message, name string, v protoreflect.Value) {
	m.Set(m.Descriptor().Fields().ByName(protoreflect.Name(name)), v)
}

// EnumValue returns the value of the Status enum named label.
func EnumValue(md protoreflect.MessageDescriptor, label string) protoreflect.Value {
	ed := md.ParentFile().Enums().ByName("Status")
	return protoreflect.ValueOfEnum(ed.Values().ByName(protoreflect.Name(label)).Number())
}

func field(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func typed(f *descriptorpb.FieldDescriptorProto, typeName string) *descriptorpb.FieldDescriptorProto {
	f.TypeName = proto.String(typeName)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}
