package wire

import (
	"errors"
	"testing"
)

func TestEncodePartialPreservesOtherBits(t *testing.T) {
	const existing uint32 = 0b1111_0011
	const mask uint32 = 0b0000_1100

	got, err := EncodePartial(existing, 2, mask)
	if err != nil {
		t.Fatalf("EncodePartial() error: %v", err)
	}
	if got&^mask != existing&^mask {
		t.Errorf("unrelated bits changed: %08b -> %08b", existing, got)
	}
	if v := ParsePartial(got, mask, false); v != 2 {
		t.Errorf("ParsePartial() = %d, want 2", v)
	}
}

func TestParsePartialSigned(t *testing.T) {
	// 0b11 in a 2-bit signed field is -1
	if v := ParsePartial(0b1100, 0b1100, true); v != -1 {
		t.Errorf("ParsePartial(signed) = %d, want -1", v)
	}
	if v := ParsePartial(0b1100, 0b1100, false); v != 3 {
		t.Errorf("ParsePartial(unsigned) = %d, want 3", v)
	}

	full, err := EncodePartial(0, -2, 0xF0)
	if err != nil {
		t.Fatalf("EncodePartial() error: %v", err)
	}
	if v := ParsePartial(full, 0xF0, true); v != -2 {
		t.Errorf("signed roundtrip = %d, want -2", v)
	}
}

func TestEncodePartialRange(t *testing.T) {
	if _, err := EncodePartial(0, 4, 0b1100); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("EncodePartial(4) error = %v, want %v", err, ErrValueOutOfRange)
	}
	if _, err := EncodePartial(0, 1, 0); !errors.Is(err, ErrInvalidMask) {
		t.Errorf("EncodePartial(mask 0) error = %v, want %v", err, ErrInvalidMask)
	}
	lo, hi := PartialRange(0x0C, false)
	if lo != 0 || hi != 3 {
		t.Errorf("PartialRange() = %d..%d, want 0..3", lo, hi)
	}
	lo, hi = PartialRange(0xF0, true)
	if lo != -8 || hi != 7 {
		t.Errorf("PartialRange(signed) = %d..%d, want -8..7", lo, hi)
	}
}
