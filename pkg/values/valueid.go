package values

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
)

type propertyKind uint8

const (
	propertyNone propertyKind = iota
	propertyName
	propertyIndex
)

// Property is a value name or a numeric index. The zero value means
// "absent" and is used for PropertyKey when there is no secondary key.
// Property is comparable and can be used in map keys.
type Property struct {
	kind  propertyKind
	name  string
	index uint32
}

// Name returns a named property.
func Name(name string) Property {
	return Property{kind: propertyName, name: name}
}

// Index returns a numeric property.
func Index(index uint32) Property {
	return Property{kind: propertyIndex, index: index}
}

// IsZero reports whether the property is absent.
func (p Property) IsZero() bool { return p.kind == propertyNone }

// IsIndex reports whether the property is numeric.
func (p Property) IsIndex() bool { return p.kind == propertyIndex }

// Name returns the property name, or "" for numeric properties.
func (p Property) Name() string { return p.name }

// Index returns the numeric property, or 0 for named properties.
func (p Property) Index() uint32 { return p.index }

func (p Property) String() string {
	switch p.kind {
	case propertyName:
		return p.name
	case propertyIndex:
		return fmt.Sprintf("%d", p.index)
	}
	return ""
}

// MarshalText renders names verbatim and indices as "#n".
func (p Property) MarshalText() ([]byte, error) {
	if p.kind == propertyIndex {
		return []byte(fmt.Sprintf("#%d", p.index)), nil
	}
	return []byte(p.name), nil
}

// UnmarshalText parses the form written by MarshalText.
func (p *Property) UnmarshalText(b []byte) error {
	s := string(b)
	switch {
	case s == "":
		*p = Property{}
	case s[0] == '#':
		var n uint32
		if _, err := fmt.Sscanf(s, "#%d", &n); err != nil {
			return fmt.Errorf("values: invalid property index %q: %w", s, err)
		}
		*p = Index(n)
	default:
		*p = Name(s)
	}
	return nil
}

// ValueID identifies one piece of device state on a node. It is unique
// within a (node, endpoint) pair.
type ValueID struct {
	CommandClass cc.CommandClass
	Endpoint     uint8
	Property     Property
	PropertyKey  Property
}

func (id ValueID) String() string {
	s := fmt.Sprintf("%s/%d/%s", id.CommandClass, id.Endpoint, id.Property)
	if !id.PropertyKey.IsZero() {
		s += "/" + id.PropertyKey.String()
	}
	return s
}
