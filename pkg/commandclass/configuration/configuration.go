// Package configuration implements the Configuration command class
// (0x70), versions 1-4, including bulk access, parameter names and
// descriptions split over several reports, and partial (bit field)
// parameters.
package configuration

import (
	"github.com/backkem/zwave/pkg/cc"
)

// Command ids.
const (
	CmdDefaultReset     uint8 = 0x01
	CmdSet              uint8 = 0x04
	CmdGet              uint8 = 0x05
	CmdReport           uint8 = 0x06
	CmdBulkSet          uint8 = 0x07
	CmdBulkGet          uint8 = 0x08
	CmdBulkReport       uint8 = 0x09
	CmdNameGet          uint8 = 0x0A
	CmdNameReport       uint8 = 0x0B
	CmdInfoGet          uint8 = 0x0C
	CmdInfoReport       uint8 = 0x0D
	CmdPropertiesGet    uint8 = 0x0E
	CmdPropertiesReport uint8 = 0x0F
)

// Version is the highest implemented version.
const Version = 4

// Format is the value format of a parameter.
type Format uint8

const (
	FormatSignedInteger Format = iota
	FormatUnsignedInteger
	FormatEnumerated
	FormatBitField
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatSignedInteger:
		return "signed"
	case FormatUnsignedInteger:
		return "unsigned"
	case FormatEnumerated:
		return "enumerated"
	case FormatBitField:
		return "bitfield"
	}
	return "unknown"
}

// Signed reports whether values of this format are two's complement.
func (f Format) Signed() bool {
	return f == FormatSignedInteger
}

const (
	sizeMask      = 0x07
	flagDefault   = 0x80
	flagHandshake = 0x40
)

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.Configuration, Name: "Configuration", Version: Version}); err != nil {
		return err
	}
	variants := []cc.VariantSpec{
		{
			CommandID: CmdDefaultReset,
			Name:      "DefaultReset",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &DefaultReset{}, nil },
			New:       func() cc.Fields { return &DefaultReset{} },
		},
		{CommandID: CmdSet, Name: "Set", Parse: parseSet, New: func() cc.Fields { return &Set{} }},
		{
			CommandID: CmdGet,
			Name:      "Get",
			Parse:     parseGet,
			New:       func() cc.Fields { return &Get{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Configuration, CommandID: CmdReport, Match: matchGet},
		},
		{CommandID: CmdReport, Name: "Report", Parse: parseReport, New: func() cc.Fields { return &Report{} }},
		{CommandID: CmdBulkSet, Name: "BulkSet", Parse: parseBulkSet, New: func() cc.Fields { return &BulkSet{} }},
		{
			CommandID: CmdBulkGet,
			Name:      "BulkGet",
			Parse:     parseBulkGet,
			New:       func() cc.Fields { return &BulkGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Configuration, CommandID: CmdBulkReport, Match: matchBulkGet},
		},
		{CommandID: CmdBulkReport, Name: "BulkReport", Parse: parseBulkReport},
		{
			CommandID: CmdNameGet,
			Name:      "NameGet",
			Parse:     parseParameterGet(func(p uint16) cc.Fields { return &NameGet{Parameter: p} }),
			New:       func() cc.Fields { return &NameGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Configuration, CommandID: CmdNameReport, Match: matchParameter},
		},
		{CommandID: CmdNameReport, Name: "NameReport", Parse: parseNameReport},
		{
			CommandID: CmdInfoGet,
			Name:      "InfoGet",
			Parse:     parseParameterGet(func(p uint16) cc.Fields { return &InfoGet{Parameter: p} }),
			New:       func() cc.Fields { return &InfoGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Configuration, CommandID: CmdInfoReport, Match: matchParameter},
		},
		{CommandID: CmdInfoReport, Name: "InfoReport", Parse: parseInfoReport},
		{
			CommandID: CmdPropertiesGet,
			Name:      "PropertiesGet",
			Parse:     parseParameterGet(func(p uint16) cc.Fields { return &PropertiesGet{Parameter: p} }),
			New:       func() cc.Fields { return &PropertiesGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Configuration, CommandID: CmdPropertiesReport, Match: matchParameter},
		},
		{CommandID: CmdPropertiesReport, Name: "PropertiesReport", Parse: parsePropertiesReport},
	}
	for _, v := range variants {
		if err := r.RegisterVariant(cc.Configuration, v); err != nil {
			return err
		}
	}
	return nil
}

// DefaultReset resets all parameters to their defaults (version 4).
type DefaultReset struct{}

func (*DefaultReset) CommandClass() cc.CommandClass   { return cc.Configuration }
func (*DefaultReset) CommandID() uint8                { return CmdDefaultReset }
func (*DefaultReset) Serialize(uint8) ([]byte, error) { return nil, nil }
