package wire

import (
	"fmt"
	"math/bits"
)

// ParsePartial extracts the bits selected by mask from value, shifted down
// to bit 0. When signed is set the extracted field is interpreted as two's
// complement over its own width.
func ParsePartial(value, mask uint32, signed bool) int64 {
	if mask == 0 {
		return 0
	}
	shift := bits.TrailingZeros32(mask)
	width := bits.Len32(mask >> uint(shift))
	raw := int64((value & mask) >> uint(shift))
	if signed && raw&(int64(1)<<uint(width-1)) != 0 {
		raw -= int64(1) << uint(width)
	}
	return raw
}

// EncodePartial writes part into the bits of full selected by mask and
// returns the result. Bits outside mask are preserved.
func EncodePartial(full uint32, part int64, mask uint32) (uint32, error) {
	if mask == 0 {
		return 0, ErrInvalidMask
	}
	shift := bits.TrailingZeros32(mask)
	width := bits.Len32(mask >> uint(shift))

	lo := -(int64(1) << uint(width-1))
	hi := int64(1)<<uint(width) - 1
	if part < lo || part > hi {
		return 0, fmt.Errorf("%w: %d does not fit mask %#x", ErrValueOutOfRange, part, mask)
	}

	field := (uint32(part) << uint(shift)) & mask
	return full&^mask | field, nil
}

// PartialRange returns the min and max values a field under mask can take.
func PartialRange(mask uint32, signed bool) (int64, int64) {
	if mask == 0 {
		return 0, 0
	}
	width := bits.Len32(mask >> uint(bits.TrailingZeros32(mask)))
	if signed {
		return -(int64(1) << uint(width-1)), int64(1)<<uint(width-1) - 1
	}
	return 0, int64(1)<<uint(width) - 1
}
