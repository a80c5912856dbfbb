package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
)

// Parameters of the CCM mode used by S2 frames (NIST 800-38C, RFC 3610).
const (
	// KeySize is the AES-128 key size.
	KeySize = 16

	// NonceSize is the CCM nonce size; the length field is 15-13 = 2 bytes.
	NonceSize = 13

	// TagSize is the authentication tag appended to every ciphertext.
	TagSize = 8

	// maxAADSize keeps the associated data header at two bytes.
	maxAADSize = 0xFF00
)

// CCM is AES-128 in counter with CBC-MAC mode, with fixed nonce and tag
// sizes chosen at construction.
type CCM struct {
	block     cipher.Block
	nonceSize int
	tagSize   int
}

// NewCCM returns a CCM cipher with a 13-byte nonce and 8-byte tag.
func NewCCM(key []byte) (*CCM, error) {
	return NewCCMWithSizes(key, NonceSize, TagSize)
}

// NewCCMWithSizes returns a CCM cipher with the given nonce size (7-13)
// and tag size (even, 4-16).
func NewCCMWithSizes(key []byte, nonceSize, tagSize int) (*CCM, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if nonceSize < 7 || nonceSize > 13 {
		return nil, ErrInvalidNonceSize
	}
	if tagSize < 4 || tagSize > 16 || tagSize%2 != 0 {
		return nil, ErrInvalidTagSize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &CCM{block: block, nonceSize: nonceSize, tagSize: tagSize}, nil
}

// NonceSize returns the nonce size in bytes.
func (c *CCM) NonceSize() int { return c.nonceSize }

// TagSize returns the tag size in bytes.
func (c *CCM) TagSize() int { return c.tagSize }

// lengthSize is L, the width of the message length field.
func (c *CCM) lengthSize() int { return 15 - c.nonceSize }

func (c *CCM) check(nonce []byte, msgLen, aadLen int) error {
	if len(nonce) != c.nonceSize {
		return ErrInvalidNonceSize
	}
	if aadLen >= maxAADSize {
		return ErrMessageTooLong
	}
	if l := c.lengthSize(); l < 8 && uint64(msgLen) >= 1<<(8*uint(l)) {
		return ErrMessageTooLong
	}
	return nil
}

// Seal encrypts and authenticates plaintext, authenticating aad as well.
// The result is the ciphertext followed by the encrypted tag.
func (c *CCM) Seal(nonce, plaintext, aad []byte) ([]byte, error) {
	if err := c.check(nonce, len(plaintext), len(aad)); err != nil {
		return nil, err
	}
	tag := c.mac(nonce, plaintext, aad)

	out := make([]byte, len(plaintext)+c.tagSize)
	c.ctr(nonce, out[:len(plaintext)], plaintext)
	s0 := c.keyBlock(nonce, 0)
	subtle.XORBytes(out[len(plaintext):], tag, s0[:c.tagSize])
	return out, nil
}

// Open verifies and decrypts the output of Seal.
func (c *CCM) Open(nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < c.tagSize {
		return nil, ErrCiphertextTooShort
	}
	n := len(ciphertext) - c.tagSize
	if err := c.check(nonce, n, len(aad)); err != nil {
		return nil, err
	}

	plaintext := make([]byte, n)
	c.ctr(nonce, plaintext, ciphertext[:n])

	s0 := c.keyBlock(nonce, 0)
	received := make([]byte, c.tagSize)
	subtle.XORBytes(received, ciphertext[n:], s0[:c.tagSize])

	if subtle.ConstantTimeCompare(received, c.mac(nonce, plaintext, aad)) != 1 {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// mac computes the CBC-MAC over B0, the length-prefixed aad and the
// plaintext, each zero padded to the block size.
func (c *CCM) mac(nonce, plaintext, aad []byte) []byte {
	var b0 [aes.BlockSize]byte
	b0[0] = byte((c.tagSize-2)/2)<<3 | byte(c.lengthSize()-1)
	if len(aad) > 0 {
		b0[0] |= 0x40
	}
	copy(b0[1:], nonce)
	putCounter(b0[1+c.nonceSize:], uint64(len(plaintext)))

	y := make([]byte, aes.BlockSize)
	c.block.Encrypt(y, b0[:])
	if len(aad) > 0 {
		prefixed := make([]byte, 2, 2+len(aad))
		binary.BigEndian.PutUint16(prefixed, uint16(len(aad)))
		c.chain(y, append(prefixed, aad...))
	}
	c.chain(y, plaintext)
	return y[:c.tagSize]
}

func (c *CCM) chain(y, data []byte) {
	for len(data) > 0 {
		n := min(len(data), aes.BlockSize)
		subtle.XORBytes(y[:n], y[:n], data[:n])
		c.block.Encrypt(y, y)
		data = data[n:]
	}
}

// keyBlock returns the encrypted counter block A_i.
func (c *CCM) keyBlock(nonce []byte, i uint64) []byte {
	var a [aes.BlockSize]byte
	a[0] = byte(c.lengthSize() - 1)
	copy(a[1:], nonce)
	putCounter(a[1+c.nonceSize:], i)
	out := make([]byte, aes.BlockSize)
	c.block.Encrypt(out, a[:])
	return out
}

// ctr XORs src with the key stream starting at counter 1.
func (c *CCM) ctr(nonce, dst, src []byte) {
	for i, counter := 0, uint64(1); i < len(src); i, counter = i+aes.BlockSize, counter+1 {
		end := min(i+aes.BlockSize, len(src))
		subtle.XORBytes(dst[i:end], src[i:end], c.keyBlock(nonce, counter))
	}
}

func putCounter(dst []byte, v uint64) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}
