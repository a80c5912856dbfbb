package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Labels mixed into every derivation so keys for different purposes
// never coincide.
var (
	labelCCM   = []byte("zwave ccm key")
	labelNonce = []byte("zwave nonce personalization")
)

// PersonalizationSize is the size of the nonce personalization string.
const PersonalizationSize = 32

// HKDFSHA256 derives length bytes from inputKey (RFC 5869).
// salt and info may be nil.
func HKDFSHA256(inputKey, salt, info []byte, length int) ([]byte, error) {
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, inputKey, salt, info), out); err != nil {
		return nil, err
	}
	return out, nil
}

// HKDFExtractSHA256 returns the 32-byte pseudorandom key for inputKey.
func HKDFExtractSHA256(inputKey, salt []byte) []byte {
	return hkdf.Extract(sha256.New, inputKey, salt)
}

// HKDFExpandSHA256 expands prk into length bytes.
func HKDFExpandSHA256(prk, info []byte, length int) ([]byte, error) {
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, info), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Keys is the material derived from one network key.
type Keys struct {
	// CCM keys the frame cipher.
	CCM []byte

	// Personalization seeds nonce derivation.
	Personalization []byte
}

// DeriveKeys expands a 16-byte network key into frame keys.
func DeriveKeys(networkKey []byte) (Keys, error) {
	if len(networkKey) != KeySize {
		return Keys{}, ErrInvalidKeySize
	}
	prk := HKDFExtractSHA256(networkKey, nil)
	ccmKey, err := HKDFExpandSHA256(prk, labelCCM, KeySize)
	if err != nil {
		return Keys{}, err
	}
	pers, err := HKDFExpandSHA256(prk, labelNonce, PersonalizationSize)
	if err != nil {
		return Keys{}, err
	}
	return Keys{CCM: ccmKey, Personalization: pers}, nil
}
