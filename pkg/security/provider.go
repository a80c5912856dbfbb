package security

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
)

// Scheme is a security generation.
type Scheme uint8

const (
	SchemeS0 Scheme = iota
	SchemeS2
)

// String returns the scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeS0:
		return "S0"
	case SchemeS2:
		return "S2"
	}
	return fmt.Sprintf("Scheme(%d)", uint8(s))
}

// Context describes one secured frame. Source and Destination are the
// node ids of the frame's sender and receiver. AAD is built by the
// engine and authenticated but not encrypted.
//
// On Encrypt the provider writes the nonce material the frame carries;
// on Decrypt the engine fills it from the received frame.
type Context struct {
	Scheme      Scheme
	Source      cc.NodeID
	Destination cc.NodeID
	AAD         []byte

	// S0: the sender's nonce and the first byte of the receiver nonce
	// it consumed.
	SenderNonce     []byte
	ReceiverNonceID uint8

	// S2: the frame sequence number, and the sender entropy when the
	// frame establishes a new span.
	Sequence      uint8
	SenderEntropy []byte
}

// Provider encrypts and decrypts secured frames.
//
// Encrypt returns the ciphertext followed by the authentication tag.
// Decrypt takes the same layout and returns the plaintext; it returns an
// error wrapping ErrNoNonce when nonce state for the peer is missing.
type Provider interface {
	Encrypt(plaintext []byte, ctx *Context) ([]byte, error)
	Decrypt(ciphertext []byte, ctx *Context) ([]byte, error)
}

// AAD returns the associated data for a frame: the encapsulation class
// and command id followed by the source and destination node ids.
func AAD(class cc.CommandClass, command uint8, source, destination cc.NodeID) []byte {
	out := class.AppendTo(nil)
	return append(out, command,
		byte(source>>8), byte(source),
		byte(destination>>8), byte(destination))
}
