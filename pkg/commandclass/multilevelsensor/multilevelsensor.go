// Package multilevelsensor implements the Multilevel Sensor command class
// (0x31), versions 1-11.
package multilevelsensor

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/values"
	"github.com/backkem/zwave/pkg/wire"
)

// Command ids.
const (
	CmdSupportedSensorGet    uint8 = 0x01
	CmdSupportedSensorReport uint8 = 0x02
	CmdSupportedScaleGet     uint8 = 0x03
	CmdGet                   uint8 = 0x04
	CmdReport                uint8 = 0x05
	CmdSupportedScaleReport  uint8 = 0x06
)

// Version is the highest implemented version.
const Version = 11

// Get carries a sensor type and scale from this version on.
const getTypeVersion = 5

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.MultilevelSensor, Name: "Multilevel Sensor", Version: Version}); err != nil {
		return err
	}
	variants := []cc.VariantSpec{
		{
			CommandID: CmdSupportedSensorGet,
			Name:      "SupportedSensorGet",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &SupportedSensorGet{}, nil },
			New:       func() cc.Fields { return &SupportedSensorGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.MultilevelSensor, CommandID: CmdSupportedSensorReport},
		},
		{CommandID: CmdSupportedSensorReport, Name: "SupportedSensorReport", Parse: parseSupportedSensorReport},
		{
			CommandID: CmdSupportedScaleGet,
			Name:      "SupportedScaleGet",
			Parse:     parseSupportedScaleGet,
			New:       func() cc.Fields { return &SupportedScaleGet{} },
			Response: &cc.ResponseSpec{
				CommandClass: cc.MultilevelSensor,
				CommandID:    CmdSupportedScaleReport,
				Match: func(req, resp cc.Fields) error {
					if req.(*SupportedScaleGet).SensorType != resp.(*SupportedScaleReport).SensorType {
						return cc.ErrNoMatch
					}
					return nil
				},
			},
		},
		{CommandID: CmdSupportedScaleReport, Name: "SupportedScaleReport", Parse: parseSupportedScaleReport},
		{
			CommandID: CmdGet,
			Name:      "Get",
			Parse:     parseGet,
			New:       func() cc.Fields { return &Get{} },
			Response: &cc.ResponseSpec{
				CommandClass: cc.MultilevelSensor,
				CommandID:    CmdReport,
				Match:        matchReport,
			},
		},
		{CommandID: CmdReport, Name: "Report", Parse: parseReport, New: func() cc.Fields { return &Report{} }},
	}
	for _, v := range variants {
		if err := r.RegisterVariant(cc.MultilevelSensor, v); err != nil {
			return err
		}
	}
	return nil
}

// SupportedSensorGet requests the supported sensor types (version 5+).
type SupportedSensorGet struct{}

func (*SupportedSensorGet) CommandClass() cc.CommandClass   { return cc.MultilevelSensor }
func (*SupportedSensorGet) CommandID() uint8                { return CmdSupportedSensorGet }
func (*SupportedSensorGet) Serialize(uint8) ([]byte, error) { return nil, nil }

// SupportedSensorReport lists supported sensor types.
type SupportedSensorReport struct {
	SensorTypes []int
}

func (*SupportedSensorReport) CommandClass() cc.CommandClass { return cc.MultilevelSensor }
func (*SupportedSensorReport) CommandID() uint8              { return CmdSupportedSensorReport }

func (s *SupportedSensorReport) Serialize(uint8) ([]byte, error) {
	return wire.EncodeBitmask(s.SensorTypes, 8*wire.BitmaskWidth(s.SensorTypes, 1), 1)
}

func parseSupportedSensorReport(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("supported sensor report: empty bitmask")
	}
	return &SupportedSensorReport{SensorTypes: wire.ParseBitmask(b, 1)}, nil
}

// SupportedScaleGet requests the scales of one sensor type.
type SupportedScaleGet struct {
	SensorType uint8
}

func (*SupportedScaleGet) CommandClass() cc.CommandClass { return cc.MultilevelSensor }
func (*SupportedScaleGet) CommandID() uint8              { return CmdSupportedScaleGet }

func (s *SupportedScaleGet) Serialize(uint8) ([]byte, error) {
	return []byte{s.SensorType}, nil
}

func parseSupportedScaleGet(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("supported scale get: need 1 byte")
	}
	return &SupportedScaleGet{SensorType: b[0]}, nil
}

// SupportedScaleReport lists the scales of one sensor type.
type SupportedScaleReport struct {
	SensorType uint8
	Scales     []int
}

func (*SupportedScaleReport) CommandClass() cc.CommandClass { return cc.MultilevelSensor }
func (*SupportedScaleReport) CommandID() uint8              { return CmdSupportedScaleReport }

func (s *SupportedScaleReport) Serialize(uint8) ([]byte, error) {
	mask, err := wire.EncodeBitmask(s.Scales, 4, 0)
	if err != nil {
		return nil, err
	}
	return []byte{s.SensorType, mask[0]}, nil
}

func parseSupportedScaleReport(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 2 {
		return nil, cc.Packetf("supported scale report: need 2 bytes, have %d", len(b))
	}
	return &SupportedScaleReport{
		SensorType: b[0],
		Scales:     wire.ParseBitmask([]byte{b[1] & 0x0F}, 0),
	}, nil
}

// ExposeValues narrows the unit information on the sensor's value.
func (s *SupportedScaleReport) ExposeValues(ctx values.ExposeContext) []values.Update {
	st, ok := LookupSensorType(s.SensorType)
	if !ok {
		return nil
	}
	scales := make(map[int64]string, len(s.Scales))
	for _, idx := range s.Scales {
		if sc, ok := st.Scale(uint8(idx)); ok {
			scales[int64(idx)] = sc.Label
		}
	}
	return []values.Update{values.MetadataUpdate(
		ctx.ID(cc.MultilevelSensor, values.Name(st.Label), values.Property{}),
		&values.MetadataPatch{CCSpecific: map[string]any{"sensorType": s.SensorType, "supportedScales": scales}},
	)}
}

// Get requests a Report. From version 5 it selects a sensor type and scale.
type Get struct {
	HasSensorType bool
	SensorType    uint8
	Scale         uint8
}

func (*Get) CommandClass() cc.CommandClass { return cc.MultilevelSensor }
func (*Get) CommandID() uint8              { return CmdGet }

func (g *Get) Serialize(version uint8) ([]byte, error) {
	if version < getTypeVersion || !g.HasSensorType {
		return nil, nil
	}
	if g.Scale > wire.MaxScale {
		return nil, fmt.Errorf("%w: %d", wire.ErrInvalidScale, g.Scale)
	}
	return []byte{g.SensorType, g.Scale << 3}, nil
}

func parseGet(b []byte, version uint8) (cc.Fields, error) {
	g := &Get{}
	if version >= getTypeVersion && len(b) >= 2 {
		g.HasSensorType = true
		g.SensorType = b[0]
		g.Scale = (b[1] >> 3) & 0x03
	}
	return g, nil
}

func matchReport(req, resp cc.Fields) error {
	g := req.(*Get)
	if g.HasSensorType && g.SensorType != resp.(*Report).SensorType {
		return cc.ErrNoMatch
	}
	return nil
}

// Report carries one measurement.
type Report struct {
	SensorType uint8
	Scale      uint8
	Value      float64
}

func (*Report) CommandClass() cc.CommandClass { return cc.MultilevelSensor }
func (*Report) CommandID() uint8              { return CmdReport }

func (r *Report) Serialize(uint8) ([]byte, error) {
	v, err := wire.EncodeFloatWithScale(r.Value, r.Scale)
	if err != nil {
		return nil, err
	}
	return append([]byte{r.SensorType}, v...), nil
}

func parseReport(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 2 {
		return nil, cc.Packetf("sensor report: need 2 bytes, have %d", len(b))
	}
	v, _, err := wire.ParseFloatWithScale(b[1:])
	if err != nil {
		return nil, err
	}
	return &Report{SensorType: b[0], Scale: v.Scale, Value: v.Value}, nil
}

// ExposeValues implements values.Exposer.
func (r *Report) ExposeValues(ctx values.ExposeContext) []values.Update {
	label := fmt.Sprintf("UNKNOWN (0x%02x)", r.SensorType)
	unit := ""
	if st, ok := LookupSensorType(r.SensorType); ok {
		label = st.Label
		if sc, ok := st.Scale(r.Scale); ok {
			unit = sc.Unit
		}
	}
	meta := values.NumberPatch(label, nil, nil)
	meta.Unit = values.Ptr(unit)
	meta.CCSpecific = map[string]any{"sensorType": r.SensorType, "scale": r.Scale}
	return []values.Update{values.ValueUpdate(
		ctx.ID(cc.MultilevelSensor, values.Name(label), values.Property{}),
		r.Value,
		meta,
	)}
}
