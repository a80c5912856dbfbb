package values

import (
	"time"

	"github.com/backkem/zwave/pkg/cc"
)

// Update is one exposed value change, metadata change, or both.
type Update struct {
	ID ValueID

	// Value is valid when HasValue is set. A nil Value with HasValue set
	// means the device reported "unknown".
	Value    any
	HasValue bool

	Metadata *MetadataPatch
}

// ValueUpdate returns an update carrying a value and optional metadata.
func ValueUpdate(id ValueID, value any, meta *MetadataPatch) Update {
	return Update{ID: id, Value: value, HasValue: true, Metadata: meta}
}

// MetadataUpdate returns a metadata-only update.
func MetadataUpdate(id ValueID, meta *MetadataPatch) Update {
	return Update{ID: id, Metadata: meta}
}

// PartialParameter describes a bit field inside a configuration parameter.
type PartialParameter struct {
	Parameter uint16
	Mask      uint32
	Signed    bool
	Label     string
	Unit      string
	Min       *float64
	Max       *float64
	States    map[int64]string
}

// ExposeContext is passed to Exposer implementations.
type ExposeContext struct {
	NodeID   cc.NodeID
	Endpoint uint8

	// Version is the device's declared version of the command class, or
	// the version the command was parsed with when none is declared.
	// Fields introduced in later versions must not be exposed.
	Version uint8

	// PartialParameters returns bit field definitions for a
	// configuration parameter. May be nil.
	PartialParameters func(param uint16) []PartialParameter

	// Metadata returns the current metadata of a value on the same node.
	// May be nil.
	Metadata func(id ValueID) (Metadata, bool)
}

// ID returns a ValueID on the context's endpoint.
func (c ExposeContext) ID(class cc.CommandClass, property, key Property) ValueID {
	return ValueID{CommandClass: class, Endpoint: c.Endpoint, Property: property, PropertyKey: key}
}

// Partials returns the partial definitions for param, if any.
func (c ExposeContext) Partials(param uint16) []PartialParameter {
	if c.PartialParameters == nil {
		return nil
	}
	return c.PartialParameters(param)
}

// Exposer is implemented by Fields that map onto externally visible values.
type Exposer interface {
	ExposeValues(ctx ExposeContext) []Update
}

// Batch is everything one decoded command exposed.
type Batch struct {
	NodeID    cc.NodeID
	Command   cc.Identity
	Updates   []Update
	Timestamp time.Time
}
