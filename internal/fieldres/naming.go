package fieldres

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// CamelName converts a lower_snake field name to lowerCamel. Names without an
// underscore are returned unchanged so already-camel names are not re-derived.
func CamelName(name string) string {
	if !strings.Contains(name, "_") {
		return name
	}
	parts := strings.Split(name, "_")
	var b strings.Builder
	b.Grow(len(name))
	for i, p := range parts {
		p = strings.ToLower(p)
		if i == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(capitalize(p))
	}
	return b.String()
}

// AccessorName returns the zero-argument accessor expected on object sources
// for fd, e.g. "getUserId", "getTagsList" or "getLabelsMap".
func AccessorName(fd protoreflect.FieldDescriptor) string {
	suffix := ""
	switch {
	case fd.IsMap():
		suffix = "Map"
	case fd.IsList():
		suffix = "List"
	}
	return "get" + capitalize(CamelName(string(fd.Name()))) + suffix
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
