package wire

import (
	"fmt"
	"math"
)

// Float-with-scale header layout (first byte).
const (
	floatPrecisionShift = 5
	floatPrecisionMask  = 0xE0
	floatScaleShift     = 3
	floatScaleMask      = 0x18
	floatSizeMask       = 0x07

	// MaxPrecision is the largest number of decimal places the format carries.
	MaxPrecision = 7

	// MaxScale is the largest scale index the format carries.
	MaxScale = 3
)

// FloatWithScale is a decoded fixed-point measurement.
type FloatWithScale struct {
	Value     float64
	Scale     uint8
	Precision uint8
	Size      int
}

// ParseFloatWithScale decodes a "precision, scale, size" header byte
// followed by a size-byte two's-complement integer scaled by 10^-precision.
// Returns the decoded value and the number of bytes consumed.
func ParseFloatWithScale(b []byte) (FloatWithScale, int, error) {
	if len(b) < 1 {
		return FloatWithScale{}, 0, fmt.Errorf("%w: missing float header", ErrPacketFormat)
	}
	header := b[0]
	precision := (header & floatPrecisionMask) >> floatPrecisionShift
	scale := (header & floatScaleMask) >> floatScaleShift
	size := int(header & floatSizeMask)

	if size != 1 && size != 2 && size != 4 {
		return FloatWithScale{}, 0, fmt.Errorf("%w: %w (%d)", ErrPacketFormat, ErrInvalidSize, size)
	}

	raw, err := ReadInt(b, 1, size, BigEndian)
	if err != nil {
		return FloatWithScale{}, 0, err
	}

	return FloatWithScale{
		Value:     float64(raw) / math.Pow10(int(precision)),
		Scale:     scale,
		Precision: precision,
		Size:      size,
	}, 1 + size, nil
}

// EncodeFloatWithScale encodes value with the given scale, choosing the
// smallest precision that represents the value exactly (up to MaxPrecision)
// and the smallest size that holds the scaled integer.
func EncodeFloatWithScale(value float64, scale uint8) ([]byte, error) {
	if scale > MaxScale {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScale, scale)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: %v", ErrValueOutOfRange, value)
	}

	precision := Precision(value)
	scaled := math.Round(value * math.Pow10(precision))
	if scaled < math.MinInt32 || scaled > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %v", ErrValueOutOfRange, value)
	}
	raw := int64(scaled)

	size, err := IntegerSize(raw, true)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 1+size)
	out[0] = byte(precision)<<floatPrecisionShift | scale<<floatScaleShift | byte(size)
	if err := WriteInt(out, 1, size, BigEndian, raw); err != nil {
		return nil, err
	}
	return out, nil
}

// Precision returns the number of decimal places needed to represent value,
// capped at MaxPrecision.
func Precision(value float64) int {
	for p := 0; p < MaxPrecision; p++ {
		f := math.Pow10(p)
		if math.Round(value*f)/f == value {
			return p
		}
	}
	return MaxPrecision
}
