package crypto

import "errors"

// Errors returned by the primitives.
var (
	ErrInvalidKeySize     = errors.New("crypto: invalid key size, must be 16 bytes")
	ErrInvalidNonceSize   = errors.New("crypto: invalid nonce size")
	ErrInvalidTagSize     = errors.New("crypto: invalid tag size, must be even and 4-16")
	ErrMessageTooLong     = errors.New("crypto: message too long")
	ErrCiphertextTooShort = errors.New("crypto: ciphertext shorter than tag")
	ErrAuthFailed         = errors.New("crypto: message authentication failed")
)
