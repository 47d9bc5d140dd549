package schema

var stringType = &Type{
	Name:        "String",
	Kind:        TypeKindScalar,
	Description: "The `String` scalar type represents textual data, represented as UTF-8 character sequences.",
}

var intType = &Type{
	Name:        "Int",
	Kind:        TypeKindScalar,
	Description: "The `Int` scalar type represents non-fractional signed whole numeric values.",
}

var floatType = &Type{
	Name:        "Float",
	Kind:        TypeKindScalar,
	Description: "The `Float` scalar type represents signed double-precision fractional values.",
}

var booleanType = &Type{
	Name:        "Boolean",
	Kind:        TypeKindScalar,
	Description: "The `Boolean` scalar type represents `true` or `false`.",
}

var int64Type = &Type{
	Name:        "Int64",
	Kind:        TypeKindScalar,
	Description: "64-bit signed integer (int64, sint64, sfixed64).",
}

var uint64Type = &Type{
	Name:        "UInt64",
	Kind:        TypeKindScalar,
	Description: "64-bit unsigned integer (uint64, fixed64).",
}

var bytesType = &Type{
	Name:        "Bytes",
	Kind:        TypeKindScalar,
	Description: "Binary data, serialized as standard base64.",
}

var mapType = &Type{
	Name:        "Map",
	Kind:        TypeKindScalar,
	Description: "A protobuf map field, serialized as a JSON object keyed by the map key.",
}

var builtinScalars = []*Type{stringType, intType, floatType, booleanType, int64Type, uint64Type, bytesType, mapType}
