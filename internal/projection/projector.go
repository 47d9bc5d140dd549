// Package projection runs a GraphQL selection set over one source value of a
// protobuf message type, resolving every selected field with the shared
// field resolvers of a registry.
//
// Sources may be protobuf messages, string-keyed maps, Go values exposing
// getter methods, or deferred values of any of these. Deferred results are
// awaited with the projection context. Field errors are collected with their
// response path and the field completes as null, so a projection always
// returns whatever data could be produced.
package projection

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/hanpama/protofetch/internal/deferred"
	"github.com/hanpama/protofetch/internal/eventbus"
	"github.com/hanpama/protofetch/internal/events"
	"github.com/hanpama/protofetch/internal/fieldres"
	language "github.com/hanpama/protofetch/internal/language"
	"github.com/hanpama/protofetch/internal/protoreg"
	"github.com/hanpama/protofetch/internal/reqid"
	schema "github.com/hanpama/protofetch/internal/schema"
	"google.golang.org/protobuf/reflect/protoreflect"
)

type Path []PathElement

type PathElement any

// Projector projects selection sets over sources of one root message type.
// It is safe for concurrent use.
type Projector struct {
	reg    *protoreg.Registry
	root   protoreflect.MessageDescriptor
	schema *schema.Schema
}

// New returns a projector for sources of message type root.
func New(reg *protoreg.Registry, root protoreflect.MessageDescriptor) *Projector {
	return &Projector{reg: reg, root: root, schema: reg.Schema(root)}
}

// Schema returns the output types the projector completes values against.
func (p *Projector) Schema() *schema.Schema { return p.schema }

type projectionState struct {
	ctx       context.Context
	reg       *protoreg.Registry
	schema    *schema.Schema
	document  *language.QueryDocument
	variables map[string]any
	message   string
	errors    []GraphQLError
}

// Project runs the operation named operationName (or the only operation of
// doc when the name is empty) against source.
func (p *Projector) Project(ctx context.Context, doc *language.QueryDocument, operationName string, variables map[string]any, source any) *Result {
	operation := getOperation(doc, operationName)
	if operation == nil {
		return &Result{Errors: []GraphQLError{{Message: "operation not found"}}}
	}
	if operation.Operation != language.Query {
		return &Result{Errors: []GraphQLError{{Message: fmt.Sprintf("unsupported operation type: %s", operation.Operation)}}}
	}

	ctx, _ = reqid.Ensure(ctx)
	message := string(p.root.FullName())
	start := time.Now()
	eventbus.Publish(ctx, events.ProjectionStart{
		Message:       message,
		OperationName: operation.Name,
		OperationType: string(operation.Operation),
	})

	state := &projectionState{
		ctx:       ctx,
		reg:       p.reg,
		schema:    p.schema,
		document:  doc,
		variables: variables,
		message:   message,
	}

	result := &Result{}
	root, err := awaitRoot(ctx, fieldres.Classify(source))
	if err != nil {
		state.addError(err.Error(), nil)
	} else if root != nil {
		result.Data = state.executeSelectionSet(p.schema.GetRootType(), operation.SelectionSet, root, Path{})
	}
	result.Errors = state.errors

	errs := make([]error, len(state.errors))
	for i, e := range state.errors {
		errs[i] = e
	}
	eventbus.Publish(ctx, events.ProjectionFinish{
		Message:       message,
		OperationName: operation.Name,
		OperationType: string(operation.Operation),
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return result
}

// awaitRoot settles a deferred root source before any field is projected.
func awaitRoot(ctx context.Context, src fieldres.Source) (fieldres.Source, error) {
	d, ok := src.(fieldres.DeferredSource)
	if !ok {
		return src, nil
	}
	v, err := d.Future.Await(ctx)
	if err != nil {
		return nil, err
	}
	return fieldres.Classify(v), nil
}

func (s *projectionState) executeSelectionSet(objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path) map[string]any {
	resultMap := make(map[string]any)

	for _, collected := range s.collectFields(objectType, selectionSet) {
		responseName := collected.ResponseName
		fields := collected.Fields
		fieldPath := appendPath(path, responseName)

		if fields[0].Name == "__typename" {
			resultMap[responseName] = objectType.Name
			continue
		}

		fieldDef := objectType.Field(fields[0].Name)
		if fieldDef == nil {
			s.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", fields[0].Name, objectType.Name), fieldPath)
			continue
		}

		resolved, err := s.resolveField(fieldDef, objectValue, fieldPath)
		if err != nil {
			s.addError(err.Error(), fieldPath)
			resultMap[responseName] = nil
			continue
		}
		completed := s.completeValue(fieldDef.Type, fields, resolved, fieldPath)
		if isNullish(completed) {
			resultMap[responseName] = nil
		} else {
			resultMap[responseName] = completed
		}
	}
	return resultMap
}

// resolveField reads one field of objectValue and waits for deferred results.
func (s *projectionState) resolveField(fieldDef *schema.Field, objectValue any, path Path) (any, error) {
	start := time.Now()
	resolver := s.reg.ResolverFor(fieldDef.Source)
	value, err := resolver.Resolve(s.ctx, objectValue, s.schema.Output(fieldDef.Type))

	isDeferred := false
	for err == nil {
		fut, ok := value.(*deferred.Future[any])
		if !ok {
			break
		}
		isDeferred = true
		value, err = fut.Await(s.ctx)
	}

	if eventbus.Enabled[events.FieldResolved]() {
		eventbus.Publish(s.ctx, events.FieldResolved{
			Path:     pathToString(path),
			Message:  string(fieldDef.Source.ContainingMessage().FullName()),
			Field:    string(fieldDef.Source.Name()),
			Deferred: isDeferred,
			Err:      err,
			Duration: time.Since(start),
		})
	}
	return value, err
}

// completeValue shapes a resolved value after its output type. A null in a
// non-null position is reported and completes as null without nulling the
// parent.
func (s *projectionState) completeValue(fieldType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			s.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", pathToString(path)), path)
			return nil
		}
		return s.completeValue(schema.Unwrap(fieldType), fields, result, path)
	}

	if isNullish(result) {
		return nil
	}

	if schema.IsList(fieldType) {
		return s.completeListValue(fieldType, fields, result, path)
	}
	namedType := schema.GetNamedType(fieldType)
	typeObj := s.schema.Types[namedType]
	if typeObj == nil {
		s.addError(fmt.Sprintf("Unknown type: %s", namedType), path)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		serialized, err := serializeLeafValue(typeObj, result)
		if err != nil {
			s.addError(err.Error(), path)
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		return s.executeSelectionSet(typeObj, mergeSelectionSets(fields), result, path)
	default:
		s.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind), path)
		return nil
	}
}

func (s *projectionState) completeListValue(listType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			s.addError(fmt.Sprintf("Expected list value, got %T", result), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	for i, item := range items {
		completed[i] = s.completeValue(inner, fields, item, appendPath(path, i))
	}
	return completed
}

func (s *projectionState) addError(message string, path Path) {
	s.errors = append(s.errors, GraphQLError{Message: message, Path: path})
}

// getOperation retrieves the operation from the document
func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if document == nil {
		return nil
	}
	if operationName == "" && len(document.Operations) == 1 {
		return document.Operations[0]
	}
	for _, op := range document.Operations {
		if op.Name == operationName {
			return op
		}
	}
	return nil
}

func pathToString(path Path) string {
	result := ""
	for i, elem := range path {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				result += "."
			}
			result += v
		case int:
			result += fmt.Sprintf("[%d]", v)
		}
	}
	return result
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
