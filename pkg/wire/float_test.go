package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestFloatWithScaleRoundtrip(t *testing.T) {
	values := []float64{12, 57, 0, -5.5, 21.3, -40, 1000.25, 0.001, 32767, -2147483648}
	for _, v := range values {
		for scale := uint8(0); scale <= MaxScale; scale++ {
			encoded, err := EncodeFloatWithScale(v, scale)
			if err != nil {
				t.Fatalf("EncodeFloatWithScale(%v, %d) error: %v", v, scale, err)
			}
			got, n, err := ParseFloatWithScale(encoded)
			if err != nil {
				t.Fatalf("ParseFloatWithScale(%x) error: %v", encoded, err)
			}
			if n != len(encoded) {
				t.Errorf("consumed = %d, want %d", n, len(encoded))
			}
			if got.Value != v {
				t.Errorf("value = %v, want %v", got.Value, v)
			}
			if got.Scale != scale {
				t.Errorf("scale = %d, want %d", got.Scale, scale)
			}
		}
	}
}

func TestEncodeFloatWithScaleLayout(t *testing.T) {
	tests := []struct {
		value float64
		scale uint8
		want  []byte
	}{
		// precision 0, scale 0, size 1
		{12, 0, []byte{0x01, 0x0C}},
		// precision 1, scale 1, size 1: -55
		{-5.5, 1, []byte{0x29, 0xC9}},
		// precision 1, scale 0, size 2: 213
		{21.3, 0, []byte{0x22, 0x00, 0xD5}},
		// precision 0, scale 3, size 4
		{70000, 3, []byte{0x1C, 0x00, 0x01, 0x11, 0x70}},
	}
	for _, tc := range tests {
		got, err := EncodeFloatWithScale(tc.value, tc.scale)
		if err != nil {
			t.Fatalf("EncodeFloatWithScale(%v) error: %v", tc.value, err)
		}
		if !bytes.Equal(got, tc.want) {
			t.Errorf("EncodeFloatWithScale(%v, %d) = %x, want %x", tc.value, tc.scale, got, tc.want)
		}
	}
}

func TestParseFloatWithScaleErrors(t *testing.T) {
	if _, _, err := ParseFloatWithScale(nil); !errors.Is(err, ErrPacketFormat) {
		t.Errorf("empty: error = %v, want %v", err, ErrPacketFormat)
	}
	// size 2 declared, only 1 byte present
	if _, _, err := ParseFloatWithScale([]byte{0x02, 0x01}); !errors.Is(err, ErrPacketFormat) {
		t.Errorf("short: error = %v, want %v", err, ErrPacketFormat)
	}
	// size 3 is not a valid size
	if _, _, err := ParseFloatWithScale([]byte{0x03, 0, 0, 0}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("size 3: error = %v, want %v", err, ErrInvalidSize)
	}
}

func TestEncodeFloatWithScaleErrors(t *testing.T) {
	if _, err := EncodeFloatWithScale(1, 4); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("scale 4: error = %v, want %v", err, ErrInvalidScale)
	}
	if _, err := EncodeFloatWithScale(1e12, 0); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("1e12: error = %v, want %v", err, ErrValueOutOfRange)
	}
}
