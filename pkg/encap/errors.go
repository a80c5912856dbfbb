package encap

import "errors"

var (
	// ErrNotEncapsulated indicates a command that carries no inner command.
	ErrNotEncapsulated = errors.New("encap: command is not an encapsulation")

	// ErrNoProvider indicates a security layer without a security provider.
	ErrNoProvider = errors.New("encap: no security provider configured")

	// ErrDatagramTooLarge indicates a frame too long for transport service.
	ErrDatagramTooLarge = errors.New("encap: datagram exceeds transport service size")
)
