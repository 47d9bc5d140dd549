package fieldres

import "google.golang.org/protobuf/reflect/protoreflect"

var wrapperMessages = map[protoreflect.FullName]struct{}{
	"google.protobuf.DoubleValue": {},
	"google.protobuf.FloatValue":  {},
	"google.protobuf.Int64Value":  {},
	"google.protobuf.UInt64Value": {},
	"google.protobuf.Int32Value":  {},
	"google.protobuf.UInt32Value": {},
	"google.protobuf.BoolValue":   {},
	"google.protobuf.StringValue": {},
	"google.protobuf.BytesValue":  {},
}

// IsWrapperMessage reports whether md is one of the well-known wrapper types
// (google.protobuf.Int64Value and friends).
func IsWrapperMessage(md protoreflect.MessageDescriptor) bool {
	if md == nil {
		return false
	}
	_, ok := wrapperMessages[md.FullName()]
	return ok
}

// IsWrapperField reports whether fd holds wrapper messages and should be
// resolved with NewWrapper.
func IsWrapperField(fd protoreflect.FieldDescriptor) bool {
	return fd.Message() != nil && !fd.IsMap() && IsWrapperMessage(fd.Message())
}
