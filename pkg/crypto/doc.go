// Package crypto provides the symmetric primitives behind the reference
// security provider: AES-128-CCM, HKDF-SHA256 key derivation, and the
// nonce construction for S0 and S2 frames.
package crypto
