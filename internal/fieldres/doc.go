// Package fieldres resolves one schema field against a source value whose
// concrete representation is not known up front.
//
// A FieldResolver is built once per schema field from its
// protoreflect.FieldDescriptor and shared by every resolution of that field.
// Resolve accepts the parent value handed over by the execution layer and
// dispatches on its representation:
//
//   - nil (or a nil message / typed nil pointer): absent, returned as nil.
//   - *deferred.Future[any]: the same dispatch is chained onto the future and
//     runs inline when it completes; Resolve returns the derived future.
//   - protoreflect.Message or proto.Message: presence rules, enum labels and
//     repeated enum labels are applied; other values are converted to plain
//     Go values (see Resolve).
//   - a map with string keys (map[string]any, map[string]int, named map
//     types): looked up by the lower-camel field name.
//   - anything else: a zero-argument accessor named
//     "get" + UpperCamel(name) + ("Map" | "List" | "") is discovered once
//     through the resolver's AccessorProvider and invoked.
//
// Callers that already know the representation may pass a Source value
// (MessageSource, MapSource, ObjectSource, DeferredSource) instead.
//
// The wrapper variant (NewWrapper) additionally unwraps single-field wrapper
// messages such as google.protobuf.Int64Value and returns their "value".
//
// Accessor discovery is memoized without locking. Every object source given to
// one resolver has the same shape, so concurrent first resolutions may each
// discover the accessor, but they all store the same result.
package fieldres
