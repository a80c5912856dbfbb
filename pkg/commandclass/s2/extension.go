package s2

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
)

// ExtensionType identifies a header extension.
type ExtensionType uint8

const (
	ExtensionSPAN ExtensionType = 0x01
	ExtensionMPAN ExtensionType = 0x02
	ExtensionMGRP ExtensionType = 0x03
	ExtensionMOS  ExtensionType = 0x04
)

const (
	extMoreToFollow = 0x80
	extCritical     = 0x40
	extTypeMask     = 0x3F
	extHeaderSize   = 2
)

var extensionSizes = map[ExtensionType]int{
	ExtensionSPAN: EntropySize,
	ExtensionMPAN: 17,
	ExtensionMGRP: 1,
	ExtensionMOS:  0,
}

// Known reports whether the type is interpreted by this package.
func (t ExtensionType) Known() bool {
	_, ok := extensionSizes[t]
	return ok
}

// String returns the extension name.
func (t ExtensionType) String() string {
	switch t {
	case ExtensionSPAN:
		return "SPAN"
	case ExtensionMPAN:
		return "MPAN"
	case ExtensionMGRP:
		return "MGRP"
	case ExtensionMOS:
		return "MOS"
	}
	return fmt.Sprintf("ExtensionType(%d)", uint8(t))
}

// Extension is one header extension.
type Extension struct {
	Type     ExtensionType
	Critical bool
	Data     []byte
}

// SPAN returns a critical SPAN extension carrying sender entropy.
func SPAN(entropy []byte) Extension {
	return Extension{Type: ExtensionSPAN, Critical: true, Data: append([]byte(nil), entropy...)}
}

// Validate checks the data size of known extension types.
func (x Extension) Validate() error {
	if x.Type > extTypeMask {
		return fmt.Errorf("extension type %d exceeds 6 bits", x.Type)
	}
	if size, ok := extensionSizes[x.Type]; ok && len(x.Data) != size {
		return fmt.Errorf("%s extension has %d data bytes, want %d", x.Type, len(x.Data), size)
	}
	if len(x.Data)+extHeaderSize > 0xFF {
		return fmt.Errorf("%s extension too long", x.Type)
	}
	return nil
}

// ParseExtensions reads a chain of extensions from b and returns them
// with the number of bytes consumed.
func ParseExtensions(b []byte) ([]Extension, int, error) {
	var out []Extension
	offset := 0
	for {
		if len(b)-offset < extHeaderSize {
			return nil, 0, cc.Packetf("extension header truncated at offset %d", offset)
		}
		length := int(b[offset])
		flags := b[offset+1]
		if length < extHeaderSize || offset+length > len(b) {
			return nil, 0, cc.Packetf("extension length %d at offset %d exceeds %d bytes", length, offset, len(b))
		}
		out = append(out, Extension{
			Type:     ExtensionType(flags & extTypeMask),
			Critical: flags&extCritical != 0,
			Data:     append([]byte(nil), b[offset+extHeaderSize:offset+length]...),
		})
		offset += length
		if flags&extMoreToFollow == 0 {
			return out, offset, nil
		}
	}
}

// AppendExtensions appends the wire form of exts to dst.
func AppendExtensions(dst []byte, exts []Extension) ([]byte, error) {
	for i, x := range exts {
		if err := x.Validate(); err != nil {
			return nil, err
		}
		flags := byte(x.Type) & extTypeMask
		if x.Critical {
			flags |= extCritical
		}
		if i < len(exts)-1 {
			flags |= extMoreToFollow
		}
		dst = append(dst, byte(len(x.Data)+extHeaderSize), flags)
		dst = append(dst, x.Data...)
	}
	return dst, nil
}
