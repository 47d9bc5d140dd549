package projection

import (
	language "github.com/hanpama/protofetch/internal/language"
	schema "github.com/hanpama/protofetch/internal/schema"
)

// collectedFieldMap preserves field order as written in the query
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: make(map[string]int)}
}

func (cfm *collectedFieldMap) add(responseName string, field *language.Field) {
	if idx, exists := cfm.index[responseName]; exists {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[responseName] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{
		ResponseName: responseName,
		Fields:       []*language.Field{field},
	})
}

// collectFields groups the selections that apply to objectType by response
// name. Fragments whose type condition names another type are skipped.
func (s *projectionState) collectFields(objectType *schema.Type, selectionSet language.SelectionSet) []collectedField {
	grouped := newCollectedFieldMap()
	s.collectFieldsImpl(objectType, selectionSet, grouped, map[string]bool{})
	return grouped.fields
}

func (s *projectionState) collectFieldsImpl(objectType *schema.Type, selectionSet language.SelectionSet, grouped *collectedFieldMap, visitedFragments map[string]bool) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if !s.shouldIncludeNode(sel.Directives) {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			grouped.add(responseName, sel)

		case *language.InlineFragment:
			if !s.shouldIncludeNode(sel.Directives) {
				continue
			}
			if sel.TypeCondition != "" && sel.TypeCondition != objectType.Name {
				continue
			}
			s.collectFieldsImpl(objectType, sel.SelectionSet, grouped, visitedFragments)

		case *language.FragmentSpread:
			if !s.shouldIncludeNode(sel.Directives) {
				continue
			}
			if visitedFragments[sel.Name] {
				continue
			}
			visitedFragments[sel.Name] = true

			fragmentDef := s.document.Fragments.ForName(sel.Name)
			if fragmentDef == nil {
				continue
			}
			if fragmentDef.TypeCondition != "" && fragmentDef.TypeCondition != objectType.Name {
				continue
			}
			if !s.shouldIncludeNode(fragmentDef.Directives) {
				continue
			}
			s.collectFieldsImpl(objectType, fragmentDef.SelectionSet, grouped, visitedFragments)
		}
	}
}

// shouldIncludeNode evaluates @skip and @include. Arguments that are missing
// or not booleans leave the node included.
func (s *projectionState) shouldIncludeNode(directives language.DirectiveList) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if v, ok := s.directiveArgument(skip, "if").(bool); ok && v {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if v, ok := s.directiveArgument(include, "if").(bool); ok && !v {
			return false
		}
	}
	return true
}

func (s *projectionState) directiveArgument(directive *language.Directive, argName string) any {
	arg := directive.Arguments.ForName(argName)
	if arg == nil || arg.Value == nil {
		return nil
	}
	v, err := arg.Value.Value(s.variables)
	if err != nil {
		return nil
	}
	return v
}

// mergeSelectionSets merges selection sets from multiple fields
func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}
