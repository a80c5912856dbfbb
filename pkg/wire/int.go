package wire

import (
	"fmt"
	"math"
)

// ByteOrder selects the byte order of multi-byte integers.
// Z-Wave command classes are big endian; a few manufacturer payloads are not.
type ByteOrder uint8

const (
	// BigEndian stores the most significant byte first.
	BigEndian ByteOrder = 0

	// LittleEndian stores the least significant byte first.
	LittleEndian ByteOrder = 1
)

// String returns a human-readable name for the byte order.
func (o ByteOrder) String() string {
	switch o {
	case BigEndian:
		return "BigEndian"
	case LittleEndian:
		return "LittleEndian"
	default:
		return "Unknown"
	}
}

// MaxIntegerWidth is the widest integer the primitives handle, in bytes.
const MaxIntegerWidth = 8

func checkWidth(width int) error {
	if width < 1 || width > MaxIntegerWidth {
		return fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	return nil
}

func checkBounds(b []byte, offset, width int) error {
	if offset < 0 || offset+width > len(b) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrPacketFormat, width, offset, len(b))
	}
	return nil
}

// ReadUint reads an unsigned integer of the given width at offset.
func ReadUint(b []byte, offset, width int, order ByteOrder) (uint64, error) {
	if err := checkWidth(width); err != nil {
		return 0, err
	}
	if err := checkBounds(b, offset, width); err != nil {
		return 0, err
	}

	var v uint64
	if order == LittleEndian {
		for i := width - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[offset+i])
		}
	} else {
		for i := 0; i < width; i++ {
			v = v<<8 | uint64(b[offset+i])
		}
	}
	return v, nil
}

// ReadInt reads a two's-complement signed integer of the given width at offset.
func ReadInt(b []byte, offset, width int, order ByteOrder) (int64, error) {
	u, err := ReadUint(b, offset, width, order)
	if err != nil {
		return 0, err
	}
	shift := uint(64 - 8*width)
	return int64(u<<shift) >> shift, nil
}

// WriteUint writes v as an unsigned integer of the given width at offset.
// Returns ErrValueOutOfRange if v does not fit into width bytes.
func WriteUint(b []byte, offset, width int, order ByteOrder, v uint64) error {
	if err := checkWidth(width); err != nil {
		return err
	}
	if width < MaxIntegerWidth && v>>(8*uint(width)) != 0 {
		return fmt.Errorf("%w: %d does not fit in %d bytes", ErrValueOutOfRange, v, width)
	}
	if err := checkBounds(b, offset, width); err != nil {
		return err
	}

	for i := 0; i < width; i++ {
		shift := 8 * uint(width-1-i)
		if order == LittleEndian {
			shift = 8 * uint(i)
		}
		b[offset+i] = byte(v >> shift)
	}
	return nil
}

// WriteInt writes v as a two's-complement signed integer of the given width.
// Returns ErrValueOutOfRange if v does not fit into width bytes.
func WriteInt(b []byte, offset, width int, order ByteOrder, v int64) error {
	if err := checkWidth(width); err != nil {
		return err
	}
	if width < MaxIntegerWidth {
		limit := int64(1) << (8*uint(width) - 1)
		if v < -limit || v >= limit {
			return fmt.Errorf("%w: %d does not fit in %d signed bytes", ErrValueOutOfRange, v, width)
		}
	}
	mask := uint64(math.MaxUint64)
	if width < MaxIntegerWidth {
		mask = (uint64(1) << (8 * uint(width))) - 1
	}
	return WriteUint(b, offset, width, order, uint64(v)&mask)
}

// AppendUint appends v as a big endian unsigned integer of the given width.
func AppendUint(dst []byte, v uint64, width int) ([]byte, error) {
	if err := checkWidth(width); err != nil {
		return dst, err
	}
	buf := make([]byte, width)
	if err := WriteUint(buf, 0, width, BigEndian, v); err != nil {
		return dst, err
	}
	return append(dst, buf...), nil
}

// AppendInt appends v as a big endian signed integer of the given width.
func AppendInt(dst []byte, v int64, width int) ([]byte, error) {
	if err := checkWidth(width); err != nil {
		return dst, err
	}
	buf := make([]byte, width)
	if err := WriteInt(buf, 0, width, BigEndian, v); err != nil {
		return dst, err
	}
	return append(dst, buf...), nil
}

// IntegerSize returns the smallest of 1, 2 or 4 bytes that can hold v.
// Used when an outgoing command must pick a value size that the protocol
// leaves to the sender.
func IntegerSize(v int64, signed bool) (int, error) {
	if signed {
		switch {
		case v >= math.MinInt8 && v <= math.MaxInt8:
			return 1, nil
		case v >= math.MinInt16 && v <= math.MaxInt16:
			return 2, nil
		case v >= math.MinInt32 && v <= math.MaxInt32:
			return 4, nil
		}
		return 0, fmt.Errorf("%w: %d exceeds 4 signed bytes", ErrValueOutOfRange, v)
	}

	switch {
	case v < 0:
		return 0, fmt.Errorf("%w: %d is negative", ErrValueOutOfRange, v)
	case v <= math.MaxUint8:
		return 1, nil
	case v <= math.MaxUint16:
		return 2, nil
	case v <= math.MaxUint32:
		return 4, nil
	}
	return 0, fmt.Errorf("%w: %d exceeds 4 unsigned bytes", ErrValueOutOfRange, v)
}

// IntegerFits reports whether v fits into width bytes with the given signedness.
func IntegerFits(v int64, width int, signed bool) bool {
	if width < 1 || width > MaxIntegerWidth {
		return false
	}
	if width == MaxIntegerWidth {
		return signed || v >= 0
	}
	bitsN := 8 * uint(width)
	if signed {
		limit := int64(1) << (bitsN - 1)
		return v >= -limit && v < limit
	}
	return v >= 0 && v < int64(1)<<bitsN
}
