// Package naming defines how simulation objects are named.
package naming

import (
	"strings"
)

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NamedBase is a base implementation of Named.
type NamedBase struct {
	name string
}

// Name returns the name.
func (b *NamedBase) Name() string {
	return b.name
}

// MakeNamedBase creates a new NamedBase.
func MakeNamedBase(name string) NamedBase {
	NameMustBeValid(name)

	return NamedBase{name: name}
}

// NameMustBeValid panics if the name does not follow the naming convention.
// A name is a dot-separated list of elements. Each element starts with a
// capital letter and contains no underscore, quote or dash. An element may end
// with an index in square brackets, e.g. "Cache[2]".
func NameMustBeValid(name string) {
	if name == "" {
		panic("name must not be empty")
	}

	for _, elem := range strings.Split(name, ".") {
		if err := elementError(elem); err != "" {
			panic("Name " + name + " is not valid: " + err)
		}
	}
}

func elementError(elem string) string {
	if elem == "" {
		return "name element must not be empty"
	}

	if i := strings.IndexByte(elem, '['); i >= 0 {
		if !strings.HasSuffix(elem, "]") {
			return "unterminated index"
		}

		elem = elem[:i]
	}

	if strings.ContainsAny(elem, "_\"'-") {
		return "name element must not contain _, \", ' or -"
	}

	if elem == "" || elem[0] < 'A' || elem[0] > 'Z' {
		return "name element must start with a capital letter"
	}

	return ""
}

// BuildName builds a name from a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}
