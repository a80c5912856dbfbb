package security

import (
	"bytes"
	"errors"
	"testing"

	"github.com/backkem/zwave/pkg/cc"
)

var testKey = []byte{
	0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
	0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
}

func newPair(t *testing.T) (controller, device *Keyring) {
	t.Helper()
	var err error
	controller, err = NewKeyring(KeyringConfig{LocalNode: 1, NetworkKey: testKey})
	if err != nil {
		t.Fatalf("NewKeyring() error: %v", err)
	}
	device, err = NewKeyring(KeyringConfig{LocalNode: 5, NetworkKey: testKey})
	if err != nil {
		t.Fatalf("NewKeyring() error: %v", err)
	}
	return controller, device
}

func s0Context(src, dst cc.NodeID) *Context {
	return &Context{Scheme: SchemeS0, Source: src, Destination: dst, AAD: AAD(cc.Security, 0x81, src, dst)}
}

func TestS0Exchange(t *testing.T) {
	controller, device := newPair(t)
	plaintext := []byte{0x00, 0x25, 0x01, 0xFF}

	nonce, err := device.IssueNonce(1)
	if err != nil {
		t.Fatalf("IssueNonce() error: %v", err)
	}
	if err := controller.StoreNonce(5, nonce); err != nil {
		t.Fatalf("StoreNonce() error: %v", err)
	}

	enc := s0Context(1, 5)
	ciphertext, err := controller.Encrypt(plaintext, enc)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if enc.ReceiverNonceID != nonce[0] {
		t.Errorf("ReceiverNonceID = %#02x, want %#02x", enc.ReceiverNonceID, nonce[0])
	}
	if len(enc.SenderNonce) != 8 {
		t.Errorf("len(SenderNonce) = %d, want 8", len(enc.SenderNonce))
	}

	dec := s0Context(1, 5)
	dec.SenderNonce, dec.ReceiverNonceID = enc.SenderNonce, enc.ReceiverNonceID
	got, err := device.Decrypt(ciphertext, dec)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Decrypt() = %x, want %x", got, plaintext)
	}

	if _, err := device.Decrypt(ciphertext, dec); !errors.Is(err, ErrNoNonce) {
		t.Errorf("second Decrypt() error = %v, want ErrNoNonce", err)
	}
	if _, err := controller.Encrypt(plaintext, s0Context(1, 5)); !errors.Is(err, ErrNoNonce) {
		t.Errorf("Encrypt() without nonce error = %v, want ErrNoNonce", err)
	}
}

func TestS0Tampered(t *testing.T) {
	controller, device := newPair(t)
	nonce, _ := device.IssueNonce(1)
	_ = controller.StoreNonce(5, nonce)

	enc := s0Context(1, 5)
	ciphertext, err := controller.Encrypt([]byte{0x00, 0x20, 0x02}, enc)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	ciphertext[1] ^= 0xFF

	dec := s0Context(1, 5)
	dec.SenderNonce, dec.ReceiverNonceID = enc.SenderNonce, enc.ReceiverNonceID
	if _, err := device.Decrypt(ciphertext, dec); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Decrypt() error = %v, want ErrAuthFailed", err)
	}
}

func s2Context(src, dst cc.NodeID) *Context {
	return &Context{Scheme: SchemeS2, Source: src, Destination: dst, AAD: AAD(cc.Security2, 0x03, src, dst)}
}

func s2Roundtrip(t *testing.T, from, to *Keyring, src, dst cc.NodeID, plaintext []byte) *Context {
	t.Helper()
	enc := s2Context(src, dst)
	ciphertext, err := from.Encrypt(plaintext, enc)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	dec := s2Context(src, dst)
	dec.Sequence, dec.SenderEntropy = enc.Sequence, enc.SenderEntropy
	got, err := to.Decrypt(ciphertext, dec)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Decrypt() = %x, want %x", got, plaintext)
	}
	return enc
}

func TestS2Span(t *testing.T) {
	controller, device := newPair(t)

	if _, err := controller.Encrypt([]byte{0x20, 0x02}, s2Context(1, 5)); !errors.Is(err, ErrNoNonce) {
		t.Fatalf("Encrypt() before nonce report error = %v, want ErrNoNonce", err)
	}

	entropy, err := device.IssueEntropy(1)
	if err != nil {
		t.Fatalf("IssueEntropy() error: %v", err)
	}
	if err := controller.StoreEntropy(5, entropy); err != nil {
		t.Fatalf("StoreEntropy() error: %v", err)
	}

	first := s2Roundtrip(t, controller, device, 1, 5, []byte{0x20, 0x02})
	if first.SenderEntropy == nil {
		t.Error("first frame carries no sender entropy")
	}
	second := s2Roundtrip(t, controller, device, 1, 5, []byte{0x20, 0x01, 0x63})
	if second.SenderEntropy != nil {
		t.Error("second frame re-established the span")
	}
	if second.Sequence != first.Sequence+1 {
		t.Errorf("Sequence = %d, want %d", second.Sequence, first.Sequence+1)
	}

	// The device answers on the same span.
	s2Roundtrip(t, device, controller, 5, 1, []byte{0x20, 0x03, 0x63})
}

func TestS2Replay(t *testing.T) {
	controller, device := newPair(t)
	entropy, _ := device.IssueEntropy(1)
	_ = controller.StoreEntropy(5, entropy)
	s2Roundtrip(t, controller, device, 1, 5, []byte{0x20, 0x02})

	enc := s2Context(1, 5)
	ciphertext, err := controller.Encrypt([]byte{0x20, 0x02}, enc)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	dec := s2Context(1, 5)
	dec.Sequence = enc.Sequence
	if _, err := device.Decrypt(ciphertext, dec); err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if _, err := device.Decrypt(ciphertext, dec); !errors.Is(err, ErrReplay) {
		t.Errorf("replayed Decrypt() error = %v, want ErrReplay", err)
	}
}

func TestS2UnrequestedSpan(t *testing.T) {
	controller, device := newPair(t)
	entropy, _ := device.IssueEntropy(1)
	_ = controller.StoreEntropy(5, entropy)

	enc := s2Context(1, 5)
	ciphertext, _ := controller.Encrypt([]byte{0x20, 0x02}, enc)

	// A device that lost its state has no local entropy for the span.
	device.RemoveNode(1)
	dec := s2Context(1, 5)
	dec.Sequence, dec.SenderEntropy = enc.Sequence, enc.SenderEntropy
	if _, err := device.Decrypt(ciphertext, dec); !errors.Is(err, ErrNoNonce) {
		t.Errorf("Decrypt() error = %v, want ErrNoNonce", err)
	}
}

func TestWrongKey(t *testing.T) {
	controller, _ := newPair(t)
	other := append([]byte(nil), testKey...)
	other[0] ^= 0x01
	device, err := NewKeyring(KeyringConfig{LocalNode: 5, NetworkKey: other})
	if err != nil {
		t.Fatalf("NewKeyring() error: %v", err)
	}
	entropy, _ := device.IssueEntropy(1)
	_ = controller.StoreEntropy(5, entropy)

	enc := s2Context(1, 5)
	ciphertext, _ := controller.Encrypt([]byte{0x20, 0x02}, enc)
	dec := s2Context(1, 5)
	dec.Sequence, dec.SenderEntropy = enc.Sequence, enc.SenderEntropy
	if _, err := device.Decrypt(ciphertext, dec); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Decrypt() error = %v, want ErrAuthFailed", err)
	}
}

func TestUnsupportedScheme(t *testing.T) {
	controller, _ := newPair(t)
	_, err := controller.Encrypt(nil, &Context{Scheme: Scheme(9)})
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("Encrypt() error = %v, want ErrUnsupportedScheme", err)
	}
}

func TestAAD(t *testing.T) {
	got := AAD(cc.Security2, 0x03, 1, 0x0105)
	want := []byte{0x9F, 0x03, 0x00, 0x01, 0x01, 0x05}
	if !bytes.Equal(got, want) {
		t.Errorf("AAD() = %x, want %x", got, want)
	}
}
