// Package crc16 implements the CRC-16 Encapsulation command class (0x56).
package crc16

import (
	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/wire"
)

// CmdCommandEncapsulation is the only command of the class.
const CmdCommandEncapsulation uint8 = 0x01

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.CRC16Encap, Name: "CRC-16 Encapsulation", Version: 1}); err != nil {
		return err
	}
	return r.RegisterVariant(cc.CRC16Encap, cc.VariantSpec{
		CommandID: CmdCommandEncapsulation,
		Name:      "CommandEncapsulation",
		Parse:     parseEncapsulation,
	})
}

// Checksum computes the CRC over the class id, command id and inner
// command bytes.
func Checksum(inner []byte) uint16 {
	crc := wire.UpdateCRC16(wire.CRC16Init, []byte{byte(cc.CRC16Encap), CmdCommandEncapsulation})
	return wire.UpdateCRC16(crc, inner)
}

// Encapsulation carries an inner command followed by its checksum.
type Encapsulation struct {
	Encapsulated []byte

	// Checksum is the received CRC. Serialize always computes a fresh one.
	Checksum uint16
}

func (*Encapsulation) CommandClass() cc.CommandClass { return cc.CRC16Encap }
func (*Encapsulation) CommandID() uint8              { return CmdCommandEncapsulation }

func (e *Encapsulation) Serialize(uint8) ([]byte, error) {
	crc := Checksum(e.Encapsulated)
	out := append([]byte(nil), e.Encapsulated...)
	return append(out, byte(crc>>8), byte(crc)), nil
}

// Valid reports whether the received checksum matches the inner bytes.
func (e *Encapsulation) Valid() bool {
	return Checksum(e.Encapsulated) == e.Checksum
}

func parseEncapsulation(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 3 {
		return nil, cc.Packetf("crc16 encapsulation: need 3 bytes, have %d", len(b))
	}
	n := len(b) - 2
	return &Encapsulation{
		Encapsulated: append([]byte(nil), b[:n]...),
		Checksum:     uint16(b[n])<<8 | uint16(b[n+1]),
	}, nil
}
