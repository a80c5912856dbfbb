package cc

import (
	"errors"
	"fmt"

	"github.com/backkem/zwave/pkg/wire"
)

// Command layer errors.
var (
	// ErrPacketFormat indicates a payload too short for its mandatory
	// header or otherwise structurally inconsistent. It is the same value
	// as wire.ErrPacketFormat so parsers can return wire errors unchanged.
	ErrPacketFormat = wire.ErrPacketFormat

	// ErrDecapsulation is matched by every *DecapsulationError.
	ErrDecapsulation = errors.New("cc: decapsulation failed")

	// ErrInvalidConstruction is matched by every *ConstructionError.
	ErrInvalidConstruction = errors.New("cc: invalid construction")

	// ErrSessionTimeout indicates a partial session was abandoned.
	ErrSessionTimeout = errors.New("cc: partial session timed out")

	// ErrSessionIncomplete indicates a partial session was dropped because
	// a part went missing or a new report started before it completed.
	ErrSessionIncomplete = errors.New("cc: partial session incomplete")

	// ErrNoMatch indicates a response does not answer the given request.
	ErrNoMatch = errors.New("cc: response does not match request")

	// ErrNotRequest indicates a command that expects no response.
	ErrNotRequest = errors.New("cc: command expects no response")

	// ErrUnknownCommandClass indicates no descriptor is registered.
	ErrUnknownCommandClass = errors.New("cc: unknown command class")

	// ErrUnknownCommand indicates no variant is registered.
	ErrUnknownCommand = errors.New("cc: unknown command")

	// ErrDuplicateRegistration indicates a class or variant registered twice.
	ErrDuplicateRegistration = errors.New("cc: duplicate registration")
)

// DecapsulationReason classifies why an encapsulation layer could not be removed.
type DecapsulationReason uint8

const (
	// ReasonMalformed: the wrapper itself failed to parse.
	ReasonMalformed DecapsulationReason = iota

	// ReasonDecryptFailed: the security provider rejected the ciphertext.
	ReasonDecryptFailed

	// ReasonNoNonce: no nonce or span is known for the sender.
	ReasonNoNonce

	// ReasonChecksum: a CRC-16 check failed.
	ReasonChecksum
)

// String returns the reason name.
func (r DecapsulationReason) String() string {
	switch r {
	case ReasonMalformed:
		return "malformed"
	case ReasonDecryptFailed:
		return "decrypt failed"
	case ReasonNoNonce:
		return "no nonce"
	case ReasonChecksum:
		return "checksum mismatch"
	default:
		return fmt.Sprintf("DecapsulationReason(%d)", uint8(r))
	}
}

// DecapsulationError reports a failure to remove one encapsulation layer.
// Callers recover per reason, for example by requesting a fresh nonce.
type DecapsulationError struct {
	Layer  CommandClass
	Reason DecapsulationReason
	Err    error
}

func (e *DecapsulationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cc: %s decapsulation: %s: %v", e.Layer, e.Reason, e.Err)
	}
	return fmt.Sprintf("cc: %s decapsulation: %s", e.Layer, e.Reason)
}

// Unwrap returns the underlying error.
func (e *DecapsulationError) Unwrap() error { return e.Err }

// Is matches ErrDecapsulation.
func (e *DecapsulationError) Is(target error) bool { return target == ErrDecapsulation }

// ConstructionError reports an outgoing command that cannot be built:
// an illegal encapsulation order, or a field value outside its range.
type ConstructionError struct {
	Reason string
	Err    error
}

func (e *ConstructionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cc: invalid construction: %s: %v", e.Reason, e.Err)
	}
	return "cc: invalid construction: " + e.Reason
}

// Unwrap returns the underlying error.
func (e *ConstructionError) Unwrap() error { return e.Err }

// Is matches ErrInvalidConstruction.
func (e *ConstructionError) Is(target error) bool { return target == ErrInvalidConstruction }

// Constructionf returns a *ConstructionError with a formatted reason.
func Constructionf(format string, args ...any) error {
	return &ConstructionError{Reason: fmt.Sprintf(format, args...)}
}

// Packetf returns an error wrapping ErrPacketFormat.
func Packetf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPacketFormat, fmt.Sprintf(format, args...))
}
