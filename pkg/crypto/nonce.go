package crypto

import "errors"

// Sizes of the nonce material exchanged on the wire.
const (
	// S0NonceSize is the size of an S0 sender or receiver nonce.
	S0NonceSize = 8

	// EntropySize is the size of an S2 entropy input.
	EntropySize = 16
)

var (
	infoS0 = []byte("S0")
	infoS2 = []byte("S2")
)

// ErrInvalidNonceMaterial is returned for nonce inputs of the wrong size.
var ErrInvalidNonceMaterial = errors.New("crypto: invalid nonce material")

// S0Nonce derives the CCM nonce of one S0 frame from the sender's nonce
// (carried in the frame) and the receiver nonce it answers.
func S0Nonce(personalization, senderNonce, receiverNonce []byte) ([]byte, error) {
	if len(senderNonce) != S0NonceSize || len(receiverNonce) != S0NonceSize {
		return nil, ErrInvalidNonceMaterial
	}
	salt := make([]byte, 0, 2*S0NonceSize)
	salt = append(salt, senderNonce...)
	salt = append(salt, receiverNonce...)
	return HKDFSHA256(personalization, salt, infoS0, NonceSize)
}

// SpanNonce derives the CCM nonce of one S2 frame. The span is seeded by
// the sender entropy (from a SPAN extension) and the receiver entropy
// (from a nonce report); source and sequence select the frame within it.
func SpanNonce(personalization, senderEntropy, receiverEntropy []byte, source uint16, sequence uint8) ([]byte, error) {
	if len(senderEntropy) != EntropySize || len(receiverEntropy) != EntropySize {
		return nil, ErrInvalidNonceMaterial
	}
	salt := make([]byte, 0, 2*EntropySize)
	salt = append(salt, senderEntropy...)
	salt = append(salt, receiverEntropy...)
	info := append(append([]byte(nil), infoS2...), byte(source>>8), byte(source), sequence)
	return HKDFSHA256(personalization, salt, info, NonceSize)
}
