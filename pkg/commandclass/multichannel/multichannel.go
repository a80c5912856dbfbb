// Package multichannel implements the Multi Channel command class (0x60),
// versions 3-4: endpoint discovery and endpoint encapsulation.
package multichannel

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/wire"
)

// Command ids.
const (
	CmdEndPointGet          uint8 = 0x07
	CmdEndPointReport       uint8 = 0x08
	CmdCapabilityGet        uint8 = 0x09
	CmdCapabilityReport     uint8 = 0x0A
	CmdCommandEncapsulation uint8 = 0x0D
)

// Version is the highest implemented version.
const Version = 4

// MaxEndpoint is the highest endpoint index.
const MaxEndpoint = 127

// MaxBitAddressEndpoint is the highest endpoint reachable by bit addressing.
const MaxBitAddressEndpoint = 7

const (
	endpointMask   = 0x7F
	flagBitAddress = 0x80
	flagDynamic    = 0x80
	flagIdentical  = 0x40
)

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.MultiChannel, Name: "Multi Channel", Version: Version}); err != nil {
		return err
	}
	variants := []cc.VariantSpec{
		{
			CommandID: CmdEndPointGet,
			Name:      "EndPointGet",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &EndPointGet{}, nil },
			New:       func() cc.Fields { return &EndPointGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.MultiChannel, CommandID: CmdEndPointReport},
		},
		{CommandID: CmdEndPointReport, Name: "EndPointReport", Parse: parseEndPointReport},
		{
			CommandID: CmdCapabilityGet,
			Name:      "CapabilityGet",
			Parse:     parseCapabilityGet,
			New:       func() cc.Fields { return &CapabilityGet{} },
			Response: &cc.ResponseSpec{
				CommandClass: cc.MultiChannel,
				CommandID:    CmdCapabilityReport,
				Match: func(req, resp cc.Fields) error {
					if req.(*CapabilityGet).Endpoint != resp.(*CapabilityReport).Endpoint {
						return cc.ErrNoMatch
					}
					return nil
				},
			},
		},
		{CommandID: CmdCapabilityReport, Name: "CapabilityReport", Parse: parseCapabilityReport},
		{CommandID: CmdCommandEncapsulation, Name: "CommandEncapsulation", Parse: parseEncapsulation},
	}
	for _, v := range variants {
		if err := r.RegisterVariant(cc.MultiChannel, v); err != nil {
			return err
		}
	}
	return nil
}

// EndPointGet requests the number of endpoints.
type EndPointGet struct{}

func (*EndPointGet) CommandClass() cc.CommandClass   { return cc.MultiChannel }
func (*EndPointGet) CommandID() uint8                { return CmdEndPointGet }
func (*EndPointGet) Serialize(uint8) ([]byte, error) { return nil, nil }

// EndPointReport carries the number of endpoints.
type EndPointReport struct {
	Dynamic         bool
	Identical       bool
	IndividualCount uint8
	HasAggregated   bool
	AggregatedCount uint8
}

func (*EndPointReport) CommandClass() cc.CommandClass { return cc.MultiChannel }
func (*EndPointReport) CommandID() uint8              { return CmdEndPointReport }

func (r *EndPointReport) Serialize(version uint8) ([]byte, error) {
	var flags byte
	if r.Dynamic {
		flags |= flagDynamic
	}
	if r.Identical {
		flags |= flagIdentical
	}
	out := []byte{flags, r.IndividualCount & endpointMask}
	if version >= 4 && r.HasAggregated {
		out = append(out, r.AggregatedCount&endpointMask)
	}
	return out, nil
}

func parseEndPointReport(b []byte, version uint8) (cc.Fields, error) {
	if len(b) < 2 {
		return nil, cc.Packetf("endpoint report: need 2 bytes, have %d", len(b))
	}
	r := &EndPointReport{
		Dynamic:         b[0]&flagDynamic != 0,
		Identical:       b[0]&flagIdentical != 0,
		IndividualCount: b[1] & endpointMask,
	}
	if version >= 4 && len(b) >= 3 {
		r.HasAggregated = true
		r.AggregatedCount = b[2] & endpointMask
	}
	return r, nil
}

// CapabilityGet requests the device class and command classes of an endpoint.
type CapabilityGet struct {
	Endpoint uint8
}

func (*CapabilityGet) CommandClass() cc.CommandClass { return cc.MultiChannel }
func (*CapabilityGet) CommandID() uint8              { return CmdCapabilityGet }

func (g *CapabilityGet) Serialize(uint8) ([]byte, error) {
	return []byte{g.Endpoint & endpointMask}, nil
}

func parseCapabilityGet(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("capability get: need 1 byte")
	}
	return &CapabilityGet{Endpoint: b[0] & endpointMask}, nil
}

// CapabilityReport describes an endpoint.
type CapabilityReport struct {
	Endpoint       uint8
	Dynamic        bool
	GenericClass   uint8
	SpecificClass  uint8
	CommandClasses []cc.CommandClass
}

func (*CapabilityReport) CommandClass() cc.CommandClass { return cc.MultiChannel }
func (*CapabilityReport) CommandID() uint8              { return CmdCapabilityReport }

func (r *CapabilityReport) Serialize(uint8) ([]byte, error) {
	ep := r.Endpoint & endpointMask
	if r.Dynamic {
		ep |= flagDynamic
	}
	out := []byte{ep, r.GenericClass, r.SpecificClass}
	for _, c := range r.CommandClasses {
		out = c.AppendTo(out)
	}
	return out, nil
}

func parseCapabilityReport(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 3 {
		return nil, cc.Packetf("capability report: need 3 bytes, have %d", len(b))
	}
	r := &CapabilityReport{
		Endpoint:      b[0] & endpointMask,
		Dynamic:       b[0]&flagDynamic != 0,
		GenericClass:  b[1],
		SpecificClass: b[2],
	}
	rest := b[3:]
	for len(rest) > 0 {
		id, n, err := cc.ParseCommandClass(rest)
		if err != nil {
			return nil, err
		}
		r.CommandClasses = append(r.CommandClasses, id)
		rest = rest[n:]
	}
	return r, nil
}

// Encapsulation routes an inner command between endpoints.
//
// With BitAddress set, Destinations lists endpoints 1-7 addressed at
// once; otherwise Destination is a single endpoint.
type Encapsulation struct {
	Source       uint8
	Destination  uint8
	BitAddress   bool
	Destinations []int

	// Encapsulated is the serialized inner command.
	Encapsulated []byte
}

func (*Encapsulation) CommandClass() cc.CommandClass { return cc.MultiChannel }
func (*Encapsulation) CommandID() uint8              { return CmdCommandEncapsulation }

// Validate checks the endpoint ranges.
func (e *Encapsulation) Validate() error {
	if e.Source > MaxEndpoint {
		return fmt.Errorf("%w: source endpoint %d", wire.ErrValueOutOfRange, e.Source)
	}
	if !e.BitAddress && e.Destination > MaxEndpoint {
		return fmt.Errorf("%w: destination endpoint %d", wire.ErrValueOutOfRange, e.Destination)
	}
	if e.BitAddress {
		for _, d := range e.Destinations {
			if d < 1 || d > MaxBitAddressEndpoint {
				return fmt.Errorf("%w: bit addressed endpoint %d", wire.ErrValueOutOfRange, d)
			}
		}
	}
	return nil
}

func (e *Encapsulation) Serialize(uint8) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	dest := e.Destination & endpointMask
	if e.BitAddress {
		mask, err := wire.EncodeBitmask(e.Destinations, MaxBitAddressEndpoint, 1)
		if err != nil {
			return nil, err
		}
		dest = flagBitAddress | mask[0]
	}
	out := []byte{e.Source & endpointMask, dest}
	return append(out, e.Encapsulated...), nil
}

func parseEncapsulation(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 3 {
		return nil, cc.Packetf("multi channel encapsulation: need 3 bytes, have %d", len(b))
	}
	e := &Encapsulation{
		Source:       b[0] & endpointMask,
		BitAddress:   b[1]&flagBitAddress != 0,
		Encapsulated: append([]byte(nil), b[2:]...),
	}
	if e.BitAddress {
		e.Destinations = wire.ParseBitmask([]byte{b[1] & endpointMask}, 1)
	} else {
		e.Destination = b[1] & endpointMask
	}
	return e, nil
}

// Swapped returns the addressing for a reply: source and destination
// exchanged, inner command empty.
func (e *Encapsulation) Swapped() *Encapsulation {
	return &Encapsulation{Source: e.Destination, Destination: e.Source}
}
