// Package basic implements the Basic command class (0x20), versions 1-2.
package basic

import (
	"fmt"

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

const (
	// MaxLevel is the highest level a Set carries besides On.
	MaxLevel = 99

	// On restores the most recent non-zero level.
	On = 0xFF

	// Unknown is reported when the current level is not known.
	Unknown = 0xFE
)

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.Basic, Name: "Basic", Version: Version}); err != nil {
		return err
	}
	variants := []cc.VariantSpec{
		{CommandID: CmdSet, Name: "Set", Parse: parseSet, New: func() cc.Fields { return &Set{} }},
		{
			CommandID: CmdGet,
			Name:      "Get",
			Parse:     parseGet,
			New:       func() cc.Fields { return &Get{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Basic, CommandID: CmdReport},
		},
		{CommandID: CmdReport, Name: "Report", Parse: parseReport, New: func() cc.Fields { return &Report{} }},
	}
	for _, v := range variants {
		if err := r.RegisterVariant(cc.Basic, v); err != nil {
			return err
		}
	}
	return nil
}

// Set sets the target level.
type Set struct {
	TargetValue uint8
}

func (*Set) CommandClass() cc.CommandClass { return cc.Basic }
func (*Set) CommandID() uint8              { return CmdSet }

func (s *Set) Serialize(uint8) ([]byte, error) {
	return []byte{s.TargetValue}, nil
}

// Validate checks the level range.
func (s *Set) Validate() error {
	if s.TargetValue > MaxLevel && s.TargetValue != On {
		return fmt.Errorf("%w: target value %d", wire.ErrValueOutOfRange, s.TargetValue)
	}
	return nil
}

func parseSet(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("basic set: need 1 byte, have %d", len(b))
	}
	return &Set{TargetValue: b[0]}, nil
}

// Get requests a Report.
type Get struct{}

func (*Get) CommandClass() cc.CommandClass   { return cc.Basic }
func (*Get) CommandID() uint8                { return CmdGet }
func (*Get) Serialize(uint8) ([]byte, error) { return nil, nil }

func parseGet([]byte, uint8) (cc.Fields, error) { return &Get{}, nil }

// Report carries the current level and, from version 2, the target
// level and remaining transition time.
type Report struct {
	CurrentValue uint8

	// Version 2.
	HasTarget   bool
	TargetValue uint8
	Duration    wire.Duration
}

func (*Report) CommandClass() cc.CommandClass { return cc.Basic }
func (*Report) CommandID() uint8              { return CmdReport }

func (r *Report) Serialize(version uint8) ([]byte, error) {
	out := []byte{r.CurrentValue}
	if version < 2 || !r.HasTarget {
		return out, nil
	}
	d, err := r.Duration.Serialize()
	if err != nil {
		return nil, err
	}
	return append(out, r.TargetValue, d), nil
}

func parseReport(b []byte, version uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("basic report: need 1 byte, have %d", len(b))
	}
	r := &Report{CurrentValue: b[0]}
	if version >= 2 && len(b) >= 3 {
		r.HasTarget = true
		r.TargetValue = b[1]
		r.Duration = wire.ParseDuration(b[2])
	}
	return r, nil
}

// ExposeValues implements values.Exposer.
func (r *Report) ExposeValues(ctx values.ExposeContext) []values.Update {
	updates := []values.Update{
		values.ValueUpdate(
			ctx.ID(cc.Basic, values.Name("currentValue"), values.Property{}),
			levelValue(r.CurrentValue),
			values.NumberPatch("Current value", values.Ptr(0.0), values.Ptr(float64(MaxLevel))),
		),
	}
	if ctx.Version < 2 || !r.HasTarget {
		return updates
	}
	return append(updates,
		values.ValueUpdate(
			ctx.ID(cc.Basic, values.Name("targetValue"), values.Property{}),
			levelValue(r.TargetValue),
			values.NumberPatch("Target value", values.Ptr(0.0), values.Ptr(float64(On))).AsWriteable(),
		),
		values.ValueUpdate(
			ctx.ID(cc.Basic, values.Name("duration"), values.Property{}),
			r.Duration,
			&values.MetadataPatch{Type: values.Ptr(values.TypeDuration), Label: values.Ptr("Remaining duration"), Readable: values.Ptr(true)},
		),
	)
}

func levelValue(v uint8) any {
	if v == Unknown {
		return nil
	}
	return int(v)
}
