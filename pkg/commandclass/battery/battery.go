// Package battery implements the Battery command class (0x80), versions 1-3.
package battery

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/values"
	"github.com/backkem/zwave/pkg/wire"
)

// Command ids.
const (
	CmdGet          uint8 = 0x02
	CmdReport       uint8 = 0x03
	CmdHealthGet    uint8 = 0x04
	CmdHealthReport uint8 = 0x05
)

// Version is the highest implemented version.
const Version = 3

// lowBattery is the level byte devices send instead of a percentage when
// the battery is low.
const lowBattery = 0xFF

// ChargingStatus is reported from version 2.
type ChargingStatus uint8

const (
	Discharging ChargingStatus = iota
	Charging
	Maintaining
)

func (s ChargingStatus) String() string {
	switch s {
	case Discharging:
		return "discharging"
	case Charging:
		return "charging"
	case Maintaining:
		return "maintaining"
	}
	return fmt.Sprintf("ChargingStatus(%d)", uint8(s))
}

// ReplacementStatus is reported from version 2.
type ReplacementStatus uint8

const (
	ReplacementNo ReplacementStatus = iota
	ReplacementSoon
	ReplacementNow
)

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.Battery, Name: "Battery", Version: Version}); err != nil {
		return err
	}
	variants := []cc.VariantSpec{
		{
			CommandID: CmdGet,
			Name:      "Get",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &Get{}, nil },
			New:       func() cc.Fields { return &Get{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Battery, CommandID: CmdReport},
		},
		{CommandID: CmdReport, Name: "Report", Parse: parseReport, New: func() cc.Fields { return &Report{} }},
		{
			CommandID: CmdHealthGet,
			Name:      "HealthGet",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &HealthGet{}, nil },
			New:       func() cc.Fields { return &HealthGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Battery, CommandID: CmdHealthReport},
		},
		{CommandID: CmdHealthReport, Name: "HealthReport", Parse: parseHealthReport, New: func() cc.Fields { return &HealthReport{} }},
	}
	for _, v := range variants {
		if err := r.RegisterVariant(cc.Battery, v); err != nil {
			return err
		}
	}
	return nil
}

// Get requests a Report.
type Get struct{}

func (*Get) CommandClass() cc.CommandClass   { return cc.Battery }
func (*Get) CommandID() uint8                { return CmdGet }
func (*Get) Serialize(uint8) ([]byte, error) { return nil, nil }

// Report carries the battery level. A level byte of 0xFF decodes to
// Level 0 with IsLow set.
type Report struct {
	Level uint8
	IsLow bool

	// Version 2.
	HasStatus         bool
	ChargingStatus    ChargingStatus
	Rechargeable      bool
	Backup            bool
	Overheating       bool
	LowFluid          bool
	ReplacementStatus ReplacementStatus
	Disconnected      bool

	// Version 3.
	LowTemperature bool
}

func (*Report) CommandClass() cc.CommandClass { return cc.Battery }
func (*Report) CommandID() uint8              { return CmdReport }

// Validate checks the level range.
func (r *Report) Validate() error {
	if r.Level > 100 {
		return fmt.Errorf("%w: battery level %d", wire.ErrValueOutOfRange, r.Level)
	}
	return nil
}

func (r *Report) Serialize(version uint8) ([]byte, error) {
	level := r.Level
	if r.IsLow {
		level = lowBattery
	}
	out := []byte{level}
	if version < 2 || !r.HasStatus {
		return out, nil
	}
	flags1 := byte(r.ChargingStatus&0x03)<<6 | byte(r.ReplacementStatus&0x03)
	if r.Rechargeable {
		flags1 |= 1 << 5
	}
	if r.Backup {
		flags1 |= 1 << 4
	}
	if r.Overheating {
		flags1 |= 1 << 3
	}
	if r.LowFluid {
		flags1 |= 1 << 2
	}
	var flags2 byte
	if r.Disconnected {
		flags2 |= 1 << 0
	}
	if version >= 3 && r.LowTemperature {
		flags2 |= 1 << 1
	}
	return append(out, flags1, flags2), nil
}

func parseReport(b []byte, version uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("battery report: need 1 byte, have %d", len(b))
	}
	r := &Report{Level: b[0]}
	if b[0] == lowBattery {
		r.Level = 0
		r.IsLow = true
	}
	if version < 2 || len(b) < 3 {
		return r, nil
	}
	r.HasStatus = true
	r.ChargingStatus = ChargingStatus(b[1] >> 6)
	r.Rechargeable = b[1]&(1<<5) != 0
	r.Backup = b[1]&(1<<4) != 0
	r.Overheating = b[1]&(1<<3) != 0
	r.LowFluid = b[1]&(1<<2) != 0
	r.ReplacementStatus = ReplacementStatus(b[1] & 0x03)
	r.Disconnected = b[2]&(1<<0) != 0
	if version >= 3 {
		r.LowTemperature = b[2]&(1<<1) != 0
	}
	return r, nil
}

// ExposeValues implements values.Exposer.
func (r *Report) ExposeValues(ctx values.ExposeContext) []values.Update {
	id := func(name string) values.ValueID {
		return ctx.ID(cc.Battery, values.Name(name), values.Property{})
	}
	levelMeta := values.NumberPatch("Battery level", values.Ptr(0.0), values.Ptr(100.0))
	levelMeta.Unit = values.Ptr("%")

	updates := []values.Update{
		values.ValueUpdate(id("level"), int(r.Level), levelMeta),
		values.ValueUpdate(id("isLow"), r.IsLow, values.BooleanPatch("Low battery level")),
	}
	if ctx.Version < 2 || !r.HasStatus {
		return updates
	}
	updates = append(updates,
		values.ValueUpdate(id("chargingStatus"), int(r.ChargingStatus), &values.MetadataPatch{
			Type:     values.Ptr(values.TypeNumber),
			Label:    values.Ptr("Charging status"),
			Readable: values.Ptr(true),
			States:   map[int64]string{0: "Discharging", 1: "Charging", 2: "Maintaining"},
		}),
		values.ValueUpdate(id("rechargeable"), r.Rechargeable, values.BooleanPatch("Rechargeable")),
		values.ValueUpdate(id("backup"), r.Backup, values.BooleanPatch("Used as backup")),
		values.ValueUpdate(id("overheating"), r.Overheating, values.BooleanPatch("Overheating")),
		values.ValueUpdate(id("lowFluid"), r.LowFluid, values.BooleanPatch("Fluid is low")),
		values.ValueUpdate(id("rechargeOrReplace"), int(r.ReplacementStatus), &values.MetadataPatch{
			Type:     values.Ptr(values.TypeNumber),
			Label:    values.Ptr("Recharge or replace"),
			Readable: values.Ptr(true),
			States:   map[int64]string{0: "No", 1: "Soon", 2: "Now"},
		}),
		values.ValueUpdate(id("disconnected"), r.Disconnected, values.BooleanPatch("Battery is disconnected")),
	)
	if ctx.Version >= 3 {
		updates = append(updates,
			values.ValueUpdate(id("lowTemperatureStatus"), r.LowTemperature, values.BooleanPatch("Battery temperature is low")))
	}
	return updates
}

// HealthGet requests a HealthReport.
type HealthGet struct{}

func (*HealthGet) CommandClass() cc.CommandClass   { return cc.Battery }
func (*HealthGet) CommandID() uint8                { return CmdHealthGet }
func (*HealthGet) Serialize(uint8) ([]byte, error) { return nil, nil }

// HealthReport carries the maximum capacity and battery temperature.
type HealthReport struct {
	// MaximumCapacity in percent; 0xFF means unknown.
	MaximumCapacity uint8

	HasTemperature   bool
	Temperature      float64
	TemperatureScale uint8
}

func (*HealthReport) CommandClass() cc.CommandClass { return cc.Battery }
func (*HealthReport) CommandID() uint8              { return CmdHealthReport }

func (h *HealthReport) Serialize(uint8) ([]byte, error) {
	out := []byte{h.MaximumCapacity}
	if !h.HasTemperature {
		// Size 0 marks the temperature as absent.
		return append(out, 0x00), nil
	}
	t, err := wire.EncodeFloatWithScale(h.Temperature, h.TemperatureScale)
	if err != nil {
		return nil, err
	}
	return append(out, t...), nil
}

func parseHealthReport(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 2 {
		return nil, cc.Packetf("battery health report: need 2 bytes, have %d", len(b))
	}
	h := &HealthReport{MaximumCapacity: b[0]}
	if b[1]&0x07 == 0 {
		return h, nil
	}
	t, _, err := wire.ParseFloatWithScale(b[1:])
	if err != nil {
		return nil, err
	}
	h.HasTemperature = true
	h.Temperature = t.Value
	h.TemperatureScale = t.Scale
	return h, nil
}

// ExposeValues implements values.Exposer.
func (h *HealthReport) ExposeValues(ctx values.ExposeContext) []values.Update {
	var capacity any
	if h.MaximumCapacity != 0xFF {
		capacity = int(h.MaximumCapacity)
	}
	capMeta := values.NumberPatch("Maximum capacity", values.Ptr(0.0), values.Ptr(100.0))
	capMeta.Unit = values.Ptr("%")
	updates := []values.Update{
		values.ValueUpdate(ctx.ID(cc.Battery, values.Name("maximumCapacity"), values.Property{}), capacity, capMeta),
	}
	if h.HasTemperature {
		tempMeta := values.NumberPatch("Temperature", nil, nil)
		tempMeta.Unit = values.Ptr("°C")
		updates = append(updates,
			values.ValueUpdate(ctx.ID(cc.Battery, values.Name("temperature"), values.Property{}), h.Temperature, tempMeta))
	}
	return updates
}
