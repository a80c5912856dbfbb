// Package binaryswitch implements the Binary Switch command class (0x25),
// versions 1-2.
package binaryswitch

import (
	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/values"
	"github.com/backkem/zwave/pkg/wire"
)

// Command ids.
const (
	CmdSet    uint8 = 0x01
	CmdGet    uint8 = 0x02
	CmdReport uint8 = 0x03
)

// Version is the highest implemented version.
const Version = 2

// State is a switch state byte.
type State uint8

const (
	Off     State = 0x00
	On      State = 0xFF
	Unknown State = 0xFE
)

// Bool reports the state as a boolean. ok is false for Unknown.
// Any non-zero level other than Unknown counts as on.
func (s State) Bool() (on bool, ok bool) {
	switch s {
	case Off:
		return false, true
	case Unknown:
		return false, false
	}
	return true, true
}

// StateOf converts a boolean to a State.
func StateOf(on bool) State {
	if on {
		return On
	}
	return Off
}

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.BinarySwitch, Name: "Binary Switch", Version: Version}); err != nil {
		return err
	}
	variants := []cc.VariantSpec{
		{CommandID: CmdSet, Name: "Set", Parse: parseSet, New: func() cc.Fields { return &Set{} }},
		{
			CommandID: CmdGet,
			Name:      "Get",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &Get{}, nil },
			New:       func() cc.Fields { return &Get{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.BinarySwitch, CommandID: CmdReport},
		},
		{CommandID: CmdReport, Name: "Report", Parse: parseReport, New: func() cc.Fields { return &Report{} }},
	}
	for _, v := range variants {
		if err := r.RegisterVariant(cc.BinarySwitch, v); err != nil {
			return err
		}
	}
	return nil
}

// Set switches the device. Duration is sent from version 2 when set.
type Set struct {
	TargetValue bool
	Duration    *wire.Duration
}

func (*Set) CommandClass() cc.CommandClass { return cc.BinarySwitch }
func (*Set) CommandID() uint8              { return CmdSet }

func (s *Set) Serialize(version uint8) ([]byte, error) {
	out := []byte{byte(StateOf(s.TargetValue))}
	if version >= 2 && s.Duration != nil {
		d, err := s.Duration.Serialize()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func parseSet(b []byte, version uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("binary switch set: need 1 byte, have %d", len(b))
	}
	s := &Set{TargetValue: b[0] != 0}
	if version >= 2 && len(b) >= 2 {
		d := wire.ParseDuration(b[1])
		s.Duration = &d
	}
	return s, nil
}

// Get requests a Report.
type Get struct{}

func (*Get) CommandClass() cc.CommandClass   { return cc.BinarySwitch }
func (*Get) CommandID() uint8                { return CmdGet }
func (*Get) Serialize(uint8) ([]byte, error) { return nil, nil }

// Report carries the current state and, from version 2, the target
// state and remaining duration.
type Report struct {
	CurrentValue State

	HasTarget   bool
	TargetValue State
	Duration    wire.Duration
}

func (*Report) CommandClass() cc.CommandClass { return cc.BinarySwitch }
func (*Report) CommandID() uint8              { return CmdReport }

func (r *Report) Serialize(version uint8) ([]byte, error) {
	out := []byte{byte(r.CurrentValue)}
	if version < 2 || !r.HasTarget {
		return out, nil
	}
	d, err := r.Duration.Serialize()
	if err != nil {
		return nil, err
	}
	return append(out, byte(r.TargetValue), d), nil
}

func parseReport(b []byte, version uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("binary switch report: need 1 byte, have %d", len(b))
	}
	r := &Report{CurrentValue: State(b[0])}
	if version >= 2 && len(b) >= 3 {
		r.HasTarget = true
		r.TargetValue = State(b[1])
		r.Duration = wire.ParseDuration(b[2])
	}
	return r, nil
}

// ExposeValues implements values.Exposer.
func (r *Report) ExposeValues(ctx values.ExposeContext) []values.Update {
	updates := []values.Update{
		values.ValueUpdate(
			ctx.ID(cc.BinarySwitch, values.Name("currentValue"), values.Property{}),
			boolValue(r.CurrentValue),
			values.BooleanPatch("Current value"),
		),
	}
	if ctx.Version < 2 || !r.HasTarget {
		return updates
	}
	return append(updates,
		values.ValueUpdate(
			ctx.ID(cc.BinarySwitch, values.Name("targetValue"), values.Property{}),
			boolValue(r.TargetValue),
			values.BooleanPatch("Target value").AsWriteable(),
		),
		values.ValueUpdate(
			ctx.ID(cc.BinarySwitch, values.Name("duration"), values.Property{}),
			r.Duration,
			&values.MetadataPatch{Type: values.Ptr(values.TypeDuration), Label: values.Ptr("Remaining duration"), Readable: values.Ptr(true)},
		),
	)
}

func boolValue(s State) any {
	v, ok := s.Bool()
	if !ok {
		return nil
	}
	return v
}
