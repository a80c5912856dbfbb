package values

import "maps"

// ValueType is the semantic type of a value.
type ValueType string

const (
	TypeAny         ValueType = "any"
	TypeNumber      ValueType = "number"
	TypeBoolean     ValueType = "boolean"
	TypeString      ValueType = "string"
	TypeNumberArray ValueType = "number[]"
	TypeDuration    ValueType = "duration"
	TypeBuffer      ValueType = "buffer"
)

// Metadata describes a value.
type Metadata struct {
	Type        ValueType
	Label       string
	Description string
	Readable    bool
	Writeable   bool
	Min         *float64
	Max         *float64
	Default     *float64
	Unit        string

	// States maps raw codes to labels.
	States map[int64]string

	// CCSpecific carries class-defined context, e.g. a sensor type.
	CCSpecific map[string]any
}

// MetadataPatch is a partial update to Metadata. Nil fields are left
// untouched. Without Override a patch only adds: bounds are set when
// still unset and states are merged in. With Override the patch replaces
// bounds and states outright.
type MetadataPatch struct {
	Type        *ValueType
	Label       *string
	Description *string
	Readable    *bool
	Writeable   *bool
	Min         *float64
	Max         *float64
	Default     *float64
	Unit        *string
	States      map[int64]string
	CCSpecific  map[string]any

	Override bool
}

// Merge combines two patches; fields set in other win. The result
// overrides when either input does.
func (p MetadataPatch) Merge(other MetadataPatch) MetadataPatch {
	out := p
	if other.Type != nil {
		out.Type = other.Type
	}
	if other.Label != nil {
		out.Label = other.Label
	}
	if other.Description != nil {
		out.Description = other.Description
	}
	if other.Readable != nil {
		out.Readable = other.Readable
	}
	if other.Writeable != nil {
		out.Writeable = other.Writeable
	}
	if other.Min != nil {
		out.Min = other.Min
	}
	if other.Max != nil {
		out.Max = other.Max
	}
	if other.Default != nil {
		out.Default = other.Default
	}
	if other.Unit != nil {
		out.Unit = other.Unit
	}
	if other.States != nil {
		if other.Override || out.States == nil {
			out.States = maps.Clone(other.States)
		} else {
			out.States = maps.Clone(out.States)
			maps.Copy(out.States, other.States)
		}
	}
	if other.CCSpecific != nil {
		out.CCSpecific = maps.Clone(out.CCSpecific)
		if out.CCSpecific == nil {
			out.CCSpecific = make(map[string]any, len(other.CCSpecific))
		}
		maps.Copy(out.CCSpecific, other.CCSpecific)
	}
	out.Override = p.Override || other.Override
	return out
}

// Apply returns m with the patch applied.
func (p MetadataPatch) Apply(m Metadata) Metadata {
	if p.Type != nil {
		m.Type = *p.Type
	}
	if p.Label != nil {
		m.Label = *p.Label
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.Readable != nil {
		m.Readable = *p.Readable
	}
	if p.Writeable != nil {
		m.Writeable = *p.Writeable
	}
	if p.Unit != nil {
		m.Unit = *p.Unit
	}

	m.Min = applyBound(m.Min, p.Min, p.Override)
	m.Max = applyBound(m.Max, p.Max, p.Override)
	m.Default = applyBound(m.Default, p.Default, p.Override)

	if p.States != nil {
		if p.Override || m.States == nil {
			m.States = maps.Clone(p.States)
		} else {
			m.States = maps.Clone(m.States)
			maps.Copy(m.States, p.States)
		}
	}
	if p.CCSpecific != nil {
		merged := make(map[string]any, len(m.CCSpecific)+len(p.CCSpecific))
		maps.Copy(merged, m.CCSpecific)
		maps.Copy(merged, p.CCSpecific)
		m.CCSpecific = merged
	}
	return m
}

func applyBound(cur, next *float64, override bool) *float64 {
	if next == nil {
		return cur
	}
	if cur != nil && !override {
		return cur
	}
	v := *next
	return &v
}

// Ptr returns a pointer to v. Used to build patches inline.
func Ptr[T any](v T) *T { return &v }

// NumberPatch returns a read-only number patch with optional bounds.
func NumberPatch(label string, min, max *float64) *MetadataPatch {
	return &MetadataPatch{
		Type:      Ptr(TypeNumber),
		Label:     Ptr(label),
		Readable:  Ptr(true),
		Writeable: Ptr(false),
		Min:       min,
		Max:       max,
	}
}

// BooleanPatch returns a read-only boolean patch.
func BooleanPatch(label string) *MetadataPatch {
	return &MetadataPatch{
		Type:      Ptr(TypeBoolean),
		Label:     Ptr(label),
		Readable:  Ptr(true),
		Writeable: Ptr(false),
	}
}

// AsWriteable marks p writeable and returns it.
func (p *MetadataPatch) AsWriteable() *MetadataPatch {
	p.Writeable = Ptr(true)
	return p
}

func (p MetadataPatch) isEmpty() bool {
	return p.Type == nil && p.Label == nil && p.Description == nil &&
		p.Readable == nil && p.Writeable == nil &&
		p.Min == nil && p.Max == nil && p.Default == nil && p.Unit == nil &&
		p.States == nil && p.CCSpecific == nil
}
