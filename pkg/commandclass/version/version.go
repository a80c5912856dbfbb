// Package version implements the Version command class (0x86), versions 1-3.
package version

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/values"
	"github.com/backkem/zwave/pkg/wire"
)

// Command ids.
const (
	CmdGet                uint8 = 0x11
	CmdReport             uint8 = 0x12
	CmdCommandClassGet    uint8 = 0x13
	CmdCommandClassReport uint8 = 0x14
	CmdCapabilitiesGet    uint8 = 0x15
	CmdCapabilitiesReport uint8 = 0x16
)

// Version is the highest implemented version.
const Version = 3

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.Version, Name: "Version", Version: Version}); err != nil {
		return err
	}
	variants := []cc.VariantSpec{
		{
			CommandID: CmdGet,
			Name:      "Get",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &Get{}, nil },
			New:       func() cc.Fields { return &Get{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Version, CommandID: CmdReport},
		},
		{CommandID: CmdReport, Name: "Report", Parse: parseReport},
		{
			CommandID: CmdCommandClassGet,
			Name:      "CommandClassGet",
			Parse:     parseCommandClassGet,
			New:       func() cc.Fields { return &CommandClassGet{} },
			Response: &cc.ResponseSpec{
				CommandClass: cc.Version,
				CommandID:    CmdCommandClassReport,
				Match: func(req, resp cc.Fields) error {
					if req.(*CommandClassGet).RequestedClass != resp.(*CommandClassReport).RequestedClass {
						return cc.ErrNoMatch
					}
					return nil
				},
			},
		},
		{CommandID: CmdCommandClassReport, Name: "CommandClassReport", Parse: parseCommandClassReport},
		{
			CommandID: CmdCapabilitiesGet,
			Name:      "CapabilitiesGet",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &CapabilitiesGet{}, nil },
			New:       func() cc.Fields { return &CapabilitiesGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Version, CommandID: CmdCapabilitiesReport},
		},
		{CommandID: CmdCapabilitiesReport, Name: "CapabilitiesReport", Parse: parseCapabilitiesReport},
	}
	for _, v := range variants {
		if err := r.RegisterVariant(cc.Version, v); err != nil {
			return err
		}
	}
	return nil
}

// Get requests a Report.
type Get struct{}

func (*Get) CommandClass() cc.CommandClass   { return cc.Version }
func (*Get) CommandID() uint8                { return CmdGet }
func (*Get) Serialize(uint8) ([]byte, error) { return nil, nil }

// Firmware is a firmware version.
type Firmware struct {
	Major uint8
	Minor uint8
}

func (f Firmware) String() string { return fmt.Sprintf("%d.%d", f.Major, f.Minor) }

// Report carries protocol and firmware versions.
type Report struct {
	LibraryType     uint8
	ProtocolVersion Firmware

	// Firmwares[0] is the main firmware. Further targets are reported
	// from version 2.
	Firmwares []Firmware

	// Version 2.
	HasHardwareVersion bool
	HardwareVersion    uint8
}

func (*Report) CommandClass() cc.CommandClass { return cc.Version }
func (*Report) CommandID() uint8              { return CmdReport }

func (r *Report) Serialize(version uint8) ([]byte, error) {
	if len(r.Firmwares) == 0 {
		return nil, fmt.Errorf("%w: missing firmware 0", wire.ErrValueOutOfRange)
	}
	out := []byte{r.LibraryType, r.ProtocolVersion.Major, r.ProtocolVersion.Minor, r.Firmwares[0].Major, r.Firmwares[0].Minor}
	if version < 2 || !r.HasHardwareVersion {
		return out, nil
	}
	extra := r.Firmwares[1:]
	out = append(out, r.HardwareVersion, byte(len(extra)))
	for _, f := range extra {
		out = append(out, f.Major, f.Minor)
	}
	return out, nil
}

func parseReport(b []byte, version uint8) (cc.Fields, error) {
	rd := wire.NewReader(b)
	r := &Report{
		LibraryType:     rd.Uint8(),
		ProtocolVersion: Firmware{rd.Uint8(), rd.Uint8()},
	}
	r.Firmwares = []Firmware{{rd.Uint8(), rd.Uint8()}}
	if rd.Err() != nil {
		return nil, rd.Err()
	}
	if version < 2 || rd.Len() < 2 {
		return r, nil
	}
	r.HasHardwareVersion = true
	r.HardwareVersion = rd.Uint8()
	n := int(rd.Uint8())
	for i := 0; i < n; i++ {
		r.Firmwares = append(r.Firmwares, Firmware{rd.Uint8(), rd.Uint8()})
	}
	return r, rd.Err()
}

// ExposeValues implements values.Exposer.
func (r *Report) ExposeValues(ctx values.ExposeContext) []values.Update {
	id := func(name string) values.ValueID {
		return ctx.ID(cc.Version, values.Name(name), values.Property{})
	}
	str := func(label string) *values.MetadataPatch {
		return &values.MetadataPatch{Type: values.Ptr(values.TypeString), Label: values.Ptr(label), Readable: values.Ptr(true)}
	}
	firmwares := make([]string, len(r.Firmwares))
	for i, f := range r.Firmwares {
		firmwares[i] = f.String()
	}
	updates := []values.Update{
		values.ValueUpdate(id("libraryType"), int(r.LibraryType), values.NumberPatch("Library type", nil, nil)),
		values.ValueUpdate(id("protocolVersion"), r.ProtocolVersion.String(), str("Z-Wave protocol version")),
		values.ValueUpdate(id("firmwareVersions"), firmwares, str("Z-Wave chip firmware versions")),
	}
	if ctx.Version >= 2 && r.HasHardwareVersion {
		updates = append(updates,
			values.ValueUpdate(id("hardwareVersion"), int(r.HardwareVersion), values.NumberPatch("Z-Wave chip hardware version", nil, nil)))
	}
	return updates
}

// CommandClassGet requests the implemented version of a command class.
type CommandClassGet struct {
	RequestedClass cc.CommandClass
}

func (*CommandClassGet) CommandClass() cc.CommandClass { return cc.Version }
func (*CommandClassGet) CommandID() uint8              { return CmdCommandClassGet }

func (g *CommandClassGet) Serialize(uint8) ([]byte, error) {
	return g.RequestedClass.AppendTo(nil), nil
}

func parseCommandClassGet(b []byte, _ uint8) (cc.Fields, error) {
	id, _, err := cc.ParseCommandClass(b)
	if err != nil {
		return nil, err
	}
	return &CommandClassGet{RequestedClass: id}, nil
}

// CommandClassReport carries the implemented version of a command class.
// Version 0 means the class is not supported.
type CommandClassReport struct {
	RequestedClass cc.CommandClass
	ClassVersion   uint8
}

func (*CommandClassReport) CommandClass() cc.CommandClass { return cc.Version }
func (*CommandClassReport) CommandID() uint8              { return CmdCommandClassReport }

func (r *CommandClassReport) Serialize(uint8) ([]byte, error) {
	return append(r.RequestedClass.AppendTo(nil), r.ClassVersion), nil
}

func parseCommandClassReport(b []byte, _ uint8) (cc.Fields, error) {
	id, n, err := cc.ParseCommandClass(b)
	if err != nil {
		return nil, err
	}
	if len(b) < n+1 {
		return nil, cc.Packetf("command class report: missing version")
	}
	return &CommandClassReport{RequestedClass: id, ClassVersion: b[n]}, nil
}

// CapabilitiesGet requests the Version capabilities (version 3).
type CapabilitiesGet struct{}

func (*CapabilitiesGet) CommandClass() cc.CommandClass   { return cc.Version }
func (*CapabilitiesGet) CommandID() uint8                { return CmdCapabilitiesGet }
func (*CapabilitiesGet) Serialize(uint8) ([]byte, error) { return nil, nil }

// CapabilitiesReport lists which Version commands are supported.
type CapabilitiesReport struct {
	SupportsVersion       bool
	SupportsCommandClass  bool
	SupportsZWaveSoftware bool
}

func (*CapabilitiesReport) CommandClass() cc.CommandClass { return cc.Version }
func (*CapabilitiesReport) CommandID() uint8              { return CmdCapabilitiesReport }

func (r *CapabilitiesReport) Serialize(uint8) ([]byte, error) {
	var flags byte
	if r.SupportsVersion {
		flags |= 0x01
	}
	if r.SupportsCommandClass {
		flags |= 0x02
	}
	if r.SupportsZWaveSoftware {
		flags |= 0x04
	}
	return []byte{flags}, nil
}

func parseCapabilitiesReport(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("capabilities report: need 1 byte")
	}
	return &CapabilitiesReport{
		SupportsVersion:       b[0]&0x01 != 0,
		SupportsCommandClass:  b[0]&0x02 != 0,
		SupportsZWaveSoftware: b[0]&0x04 != 0,
	}, nil
}
