package crc16

import (
	"bytes"
	"testing"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/wire"
)

func TestEncapsulationRoundtrip(t *testing.T) {
	r := cc.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	inner := []byte{0x20, 0x01, 0x63}
	cmd, err := cc.NewCommand(4, 0, &Encapsulation{Encapsulated: inner})
	if err != nil {
		t.Fatalf("NewCommand() error: %v", err)
	}
	data, err := r.Encode(cmd)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	crc := wire.CRC16(append([]byte{0x56, 0x01}, inner...))
	want := append([]byte{0x56, 0x01}, inner...)
	want = append(want, byte(crc>>8), byte(crc))
	if !bytes.Equal(data, want) {
		t.Fatalf("Encode() = %x, want %x", data, want)
	}

	decoded, err := r.Decode(data, cc.DecodeContext{NodeID: 4})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	e := decoded.Fields.(*Encapsulation)
	if !e.Valid() {
		t.Error("Valid() = false for untouched frame")
	}
	if !bytes.Equal(e.Encapsulated, inner) {
		t.Errorf("Encapsulated = %x, want %x", e.Encapsulated, inner)
	}
}

func TestEncapsulationCorrupt(t *testing.T) {
	f, err := parseEncapsulation([]byte{0x20, 0x01, 0x63, 0x00, 0x00}, 1)
	if err != nil {
		t.Fatalf("parseEncapsulation() error: %v", err)
	}
	if f.(*Encapsulation).Valid() {
		t.Error("Valid() = true for zero checksum")
	}
}
