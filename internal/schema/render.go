package schema

import (
	"sort"
	"strings"
)

// Render produces SDL for the derived types. Builtin scalars are omitted
// except the ones the schema defines beyond the GraphQL standard set. The
// root type comes first, the rest follow sorted by name.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	var b strings.Builder

	typeNames := make([]string, 0, len(s.Types))
	for name, typ := range s.Types {
		if name == s.RootType {
			continue
		}
		switch typ {
		case stringType, intType, floatType, booleanType:
			continue
		}
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)
	if root := s.GetRootType(); root != nil {
		typeNames = append([]string{root.Name}, typeNames...)
	}

	for _, name := range typeNames {
		typ := s.Types[name]
		switch typ.Kind {
		case TypeKindScalar:
			renderScalar(&b, typ)
		case TypeKindEnum:
			renderEnum(&b, typ)
		case TypeKindObject:
			renderObject(&b, typ)
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderDescription(b *strings.Builder, desc, indent string) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return
	}
	b.WriteString(indent)
	b.WriteString("\"\"\"\n")
	for _, line := range strings.Split(desc, "\n") {
		b.WriteString(indent)
		b.WriteString(strings.ReplaceAll(strings.TrimSpace(line), "\"\"\"", "\\\"\"\""))
		b.WriteString("\n")
	}
	b.WriteString(indent)
	b.WriteString("\"\"\"\n")
}

func renderScalar(b *strings.Builder, typ *Type) {
	renderDescription(b, typ.Description, "")
	b.WriteString("scalar ")
	b.WriteString(typ.Name)
	b.WriteString("\n\n")
}

func renderEnum(b *strings.Builder, typ *Type) {
	renderDescription(b, typ.Description, "")
	b.WriteString("enum ")
	b.WriteString(typ.Name)
	b.WriteString(" {\n")
	for _, val := range typ.EnumValues {
		renderDescription(b, val.Description, "  ")
		b.WriteString("  ")
		b.WriteString(val.Name)
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")
}

func renderObject(b *strings.Builder, typ *Type) {
	renderDescription(b, typ.Description, "")
	b.WriteString("type ")
	b.WriteString(typ.Name)
	b.WriteString(" {\n")
	for _, field := range typ.Fields {
		renderDescription(b, field.Description, "  ")
		b.WriteString("  ")
		b.WriteString(field.Name)
		b.WriteString(": ")
		b.WriteString(field.Type.String())
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")
}
