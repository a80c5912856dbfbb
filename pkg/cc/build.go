package cc

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// buildEncMode and buildDecMode move named fields onto variant structs.
// Unknown names and integer overflow are decode errors.
var (
	buildEncMode cbor.EncMode
	buildDecMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	buildEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}
	buildDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Options describes an outgoing command by name rather than by type.
// Field names match the variant's exported struct fields, case-insensitively.
type Options struct {
	CommandClass CommandClass
	CommandID    uint8
	Version      uint8
	NodeID       NodeID
	Endpoint     uint8
	Fields       map[string]any
}

// Build constructs an outgoing command from named fields. Unknown names,
// values that overflow their field width and Validate failures are
// reported as *ConstructionError.
func (r *Registry) Build(opts Options) (*Command, error) {
	desc, ok := r.Resolve(opts.CommandClass)
	if !ok {
		return nil, &ConstructionError{Reason: opts.CommandClass.String(), Err: ErrUnknownCommandClass}
	}
	variant, ok := r.ResolveVariant(opts.CommandClass, opts.CommandID)
	if !ok || variant.New == nil {
		return nil, &ConstructionError{
			Reason: fmt.Sprintf("%s/0x%02X", opts.CommandClass, opts.CommandID),
			Err:    ErrUnknownCommand,
		}
	}

	fields := variant.New()
	if len(opts.Fields) > 0 {
		data, err := buildEncMode.Marshal(opts.Fields)
		if err != nil {
			return nil, &ConstructionError{Reason: variant.Name, Err: err}
		}
		if err := buildDecMode.Unmarshal(data, fields); err != nil {
			return nil, &ConstructionError{Reason: variant.Name, Err: err}
		}
	}

	cmd, err := NewCommand(opts.NodeID, opts.Endpoint, fields)
	if err != nil {
		return nil, err
	}
	cmd.Version = r.effectiveVersion(desc, opts.Version)
	return cmd, nil
}
