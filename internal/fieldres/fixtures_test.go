package fieldres

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	_ "google.golang.org/protobuf/types/known/wrapperspb"
)

func field(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName(name)),
		Number:   proto.Int32(num),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

func jsonName(name string) string { return CamelName(name) }

func typed(f *descriptorpb.FieldDescriptorProto, typeName string) *descriptorpb.FieldDescriptorProto {
	f.TypeName = proto.String(typeName)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

// buildUserFile returns a descriptor for:
//
//	enum Status { STATUS_UNSPECIFIED = 0; ACTIVE = 1; INACTIVE = 2; }
//	message Address { string city = 1; }
//	message User {
//	  int64 user_id = 1;
//	  Status status = 2;
//	  repeated Status tags = 3;
//	  Address address = 4;
//	  optional string nickname = 5;
//	  google.protobuf.Int64Value amount = 6;
//	  repeated string aliases = 7;
//	  map<string, int32> scores = 8;
//	  string displayName = 9;
//	  repeated google.protobuf.StringValue labels = 10;
//	  repeated Address previous_addresses = 11;
//	}
func buildUserFile(t *testing.T) protoreflect.FileDescriptor {
	t.Helper()
	nickname := field("nickname", 5, descriptorpb.FieldDescriptorProto_TYPE_STRING)
	nickname.Proto3Optional = proto.Bool(true)
	nickname.OneofIndex = proto.Int32(0)

	scores := repeated(typed(field("scores", 8, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE), ".fr.User.ScoresEntry"))

	file := &descriptorpb.FileDescriptorProto{
		Name:       proto.String("fieldres_test.proto"),
		Package:    proto.String("fr"),
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
				Name:  proto.String("Address"),
				Field: []*descriptorpb.FieldDescriptorProto{field("city", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)},
			},
			{
				Name: proto.String("User"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("user_id", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64),
					typed(field("status", 2, descriptorpb.FieldDescriptorProto_TYPE_ENUM), ".fr.Status"),
					repeated(typed(field("tags", 3, descriptorpb.FieldDescriptorProto_TYPE_ENUM), ".fr.Status")),
					typed(field("address", 4, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE), ".fr.Address"),
					nickname,
					typed(field("amount", 6, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE), ".google.protobuf.Int64Value"),
					repeated(field("aliases", 7, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
					scores,
					field("displayName", 9, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					repeated(typed(field("labels", 10, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE), ".google.protobuf.StringValue")),
					repeated(typed(field("previous_addresses", 11, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE), ".fr.Address")),
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
	}
	fd, err := protodesc.NewFile(file, protoregistry.GlobalFiles)
	require.NoError(t, err)
	return fd
}

type userFixture struct {
	file    protoreflect.FileDescriptor
	user    protoreflect.MessageDescriptor
	address protoreflect.MessageDescriptor
}

func newUserFixture(t *testing.T) userFixture {
	fd := buildUserFile(t)
	return userFixture{
		file:    fd,
		user:    fd.Messages().ByName("User"),
		address: fd.Messages().ByName("Address"),
	}
}

func (f userFixture) field(name string) protoreflect.FieldDescriptor {
	fd := f.user.Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic("no field " + name)
	}
	return fd
}

func (f userFixture) newUser() *dynamicpb.Message { return dynamicpb.NewMessage(f.user) }

func (f userFixture) statusNumber(name string) protoreflect.EnumNumber {
	return f.file.Enums().ByName("Status").Values().ByName(protoreflect.Name(name)).Number()
}
