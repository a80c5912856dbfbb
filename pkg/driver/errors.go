package driver

import "errors"

// Driver errors.
var (
	// ErrClosed is returned when the driver has been closed.
	ErrClosed = errors.New("driver: closed")

	// ErrInvalidNetworkKey is returned for a network key that is not 16 bytes.
	ErrInvalidNetworkKey = errors.New("driver: network key must be 16 bytes")

	// ErrInvalidTimeout is returned for a negative timeout.
	ErrInvalidTimeout = errors.New("driver: invalid timeout")

	// ErrInvalidSegmentSize is returned for a segment payload outside 1..MaxSegmentPayload.
	ErrInvalidSegmentSize = errors.New("driver: invalid segment payload size")

	// ErrInvalidNodeID is returned for a local node id outside the classic range.
	ErrInvalidNodeID = errors.New("driver: invalid local node id")
)
