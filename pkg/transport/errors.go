package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed link.
	ErrClosed = errors.New("transport: closed")

	// ErrNoHandler is returned when no frame handler is configured.
	ErrNoHandler = errors.New("transport: no frame handler configured")

	// ErrNoEndpoint is returned when a link is created without an endpoint.
	ErrNoEndpoint = errors.New("transport: no endpoint configured")

	// ErrAlreadyStarted is returned when Start is called on a running link.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrFrameTooLarge is returned when a payload exceeds MaxPayloadSize.
	ErrFrameTooLarge = errors.New("transport: frame too large")

	// ErrEmptyFrame is returned when a frame carries no payload.
	ErrEmptyFrame = errors.New("transport: empty frame")

	// ErrShortFrame is returned when received bytes do not hold a header and payload.
	ErrShortFrame = errors.New("transport: short frame")

	// ErrChecksum is returned when a received frame fails its CRC-16 check.
	ErrChecksum = errors.New("transport: checksum mismatch")
)
