package wire

import "errors"

// Wire layer errors.
var (
	// ErrPacketFormat indicates a payload that is too short or structurally
	// inconsistent. Higher layers match it with errors.Is.
	ErrPacketFormat = errors.New("wire: packet format error")

	// ErrInvalidWidth indicates an integer width outside 1..8 bytes.
	ErrInvalidWidth = errors.New("wire: invalid integer width")

	// ErrValueOutOfRange indicates a value that does not fit the target encoding.
	ErrValueOutOfRange = errors.New("wire: value out of range")

	// ErrInvalidScale indicates a scale outside 0..3.
	ErrInvalidScale = errors.New("wire: invalid scale")

	// ErrInvalidSize indicates a size field that is not 1, 2 or 4.
	ErrInvalidSize = errors.New("wire: invalid size field")

	// ErrInvalidMask indicates a zero bit mask for partial values.
	ErrInvalidMask = errors.New("wire: invalid bit mask")
)
