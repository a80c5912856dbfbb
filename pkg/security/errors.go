package security

import "errors"

// Errors returned by providers. The engine maps ErrNoNonce to
// cc.ReasonNoNonce and every other failure to cc.ReasonDecryptFailed.
var (
	// ErrNoNonce indicates no usable nonce or span for the peer.
	ErrNoNonce = errors.New("security: no nonce for peer")

	// ErrAuthFailed indicates the ciphertext did not authenticate.
	ErrAuthFailed = errors.New("security: authentication failed")

	// ErrReplay indicates a sequence number that was already accepted.
	ErrReplay = errors.New("security: duplicate sequence number")

	// ErrUnsupportedScheme indicates a scheme the provider does not handle.
	ErrUnsupportedScheme = errors.New("security: unsupported scheme")
)
