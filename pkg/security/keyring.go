package security

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/crypto"
	"github.com/pion/logging"
)

// KeyringConfig configures a Keyring.
type KeyringConfig struct {
	// LocalNode is the node id of this side of every frame.
	LocalNode cc.NodeID

	// NetworkKey is the 16-byte key shared with all peers.
	NetworkKey []byte

	// Rand supplies nonces and entropy. Defaults to crypto/rand.
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

type nonceKey struct {
	peer cc.NodeID
	id   uint8
}

// span is the S2 state shared with one peer. Until established is set,
// localEntropy or remoteEntropy holds the half exchanged by a nonce report.
type span struct {
	localEntropy  []byte
	remoteEntropy []byte

	senderEntropy   []byte
	receiverEntropy []byte
	established     bool

	txSequence uint8
	rxSequence uint8
	rxValid    bool
}

// Keyring is a Provider for one network key. It keeps the S0 nonce
// tables and the S2 span per peer.
//
// Thread-safe.
type Keyring struct {
	local cc.NodeID
	keys  crypto.Keys
	ccm   *crypto.CCM
	rand  io.Reader
	log   logging.LeveledLogger

	mu       sync.Mutex
	issued   map[nonceKey][]byte
	received map[cc.NodeID][]byte
	spans    map[cc.NodeID]*span
}

var _ Provider = (*Keyring)(nil)

// NewKeyring derives the frame keys from config.NetworkKey.
func NewKeyring(config KeyringConfig) (*Keyring, error) {
	keys, err := crypto.DeriveKeys(config.NetworkKey)
	if err != nil {
		return nil, err
	}
	ccm, err := crypto.NewCCM(keys.CCM)
	if err != nil {
		return nil, err
	}
	k := &Keyring{
		local:    config.LocalNode,
		keys:     keys,
		ccm:      ccm,
		rand:     config.Rand,
		issued:   make(map[nonceKey][]byte),
		received: make(map[cc.NodeID][]byte),
		spans:    make(map[cc.NodeID]*span),
	}
	if k.rand == nil {
		k.rand = rand.Reader
	}
	if config.LoggerFactory != nil {
		k.log = config.LoggerFactory.NewLogger("security")
	}
	return k, nil
}

func (k *Keyring) random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(k.rand, b); err != nil {
		return nil, fmt.Errorf("security: read random: %w", err)
	}
	return b, nil
}

func (k *Keyring) spanFor(peer cc.NodeID) *span {
	s, ok := k.spans[peer]
	if !ok {
		s = &span{}
		k.spans[peer] = s
	}
	return s
}

// IssueNonce returns a fresh S0 receiver nonce for peer, to be sent in a
// nonce report. Its first byte identifies it among the outstanding nonces.
func (k *Keyring) IssueNonce(peer cc.NodeID) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for {
		nonce, err := k.random(crypto.S0NonceSize)
		if err != nil {
			return nil, err
		}
		key := nonceKey{peer: peer, id: nonce[0]}
		if _, taken := k.issued[key]; taken {
			continue
		}
		k.issued[key] = nonce
		return append([]byte(nil), nonce...), nil
	}
}

// StoreNonce records the S0 receiver nonce reported by peer. The next
// frame encrypted for peer consumes it.
func (k *Keyring) StoreNonce(peer cc.NodeID, nonce []byte) error {
	if len(nonce) != crypto.S0NonceSize {
		return fmt.Errorf("%w: %d byte S0 nonce", crypto.ErrInvalidNonceMaterial, len(nonce))
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.received[peer] = append([]byte(nil), nonce...)
	return nil
}

// IssueEntropy returns fresh receiver entropy for an S2 nonce report to
// peer. Any span with peer is discarded.
func (k *Keyring) IssueEntropy(peer cc.NodeID) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entropy, err := k.random(crypto.EntropySize)
	if err != nil {
		return nil, err
	}
	s := k.spanFor(peer)
	*s = span{localEntropy: entropy, txSequence: s.txSequence}
	return append([]byte(nil), entropy...), nil
}

// StoreEntropy records the receiver entropy reported by peer. The next
// frame encrypted for peer establishes a new span and carries the sender
// entropy in a SPAN extension.
func (k *Keyring) StoreEntropy(peer cc.NodeID, entropy []byte) error {
	if len(entropy) != crypto.EntropySize {
		return fmt.Errorf("%w: %d byte entropy", crypto.ErrInvalidNonceMaterial, len(entropy))
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	s := k.spanFor(peer)
	*s = span{remoteEntropy: append([]byte(nil), entropy...), txSequence: s.txSequence}
	return nil
}

// RemoveNode forgets all nonce state for peer.
func (k *Keyring) RemoveNode(peer cc.NodeID) {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.received, peer)
	delete(k.spans, peer)
	for key := range k.issued {
		if key.peer == peer {
			delete(k.issued, key)
		}
	}
}

// Encrypt implements Provider.
func (k *Keyring) Encrypt(plaintext []byte, ctx *Context) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch ctx.Scheme {
	case SchemeS0:
		return k.encryptS0(plaintext, ctx)
	case SchemeS2:
		return k.encryptS2(plaintext, ctx)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, ctx.Scheme)
}

func (k *Keyring) encryptS0(plaintext []byte, ctx *Context) ([]byte, error) {
	receiverNonce, ok := k.received[ctx.Destination]
	if !ok {
		return nil, fmt.Errorf("%w: node %d", ErrNoNonce, ctx.Destination)
	}
	senderNonce, err := k.random(crypto.S0NonceSize)
	if err != nil {
		return nil, err
	}
	nonce, err := crypto.S0Nonce(k.keys.Personalization, senderNonce, receiverNonce)
	if err != nil {
		return nil, err
	}
	out, err := k.ccm.Seal(nonce, plaintext, ctx.AAD)
	if err != nil {
		return nil, err
	}
	delete(k.received, ctx.Destination)
	ctx.SenderNonce = senderNonce
	ctx.ReceiverNonceID = receiverNonce[0]
	return out, nil
}

func (k *Keyring) encryptS2(plaintext []byte, ctx *Context) ([]byte, error) {
	s, ok := k.spans[ctx.Destination]
	if !ok {
		return nil, fmt.Errorf("%w: node %d", ErrNoNonce, ctx.Destination)
	}

	var senderEntropy []byte
	if !s.established {
		if s.remoteEntropy == nil {
			return nil, fmt.Errorf("%w: node %d has no span", ErrNoNonce, ctx.Destination)
		}
		var err error
		if senderEntropy, err = k.random(crypto.EntropySize); err != nil {
			return nil, err
		}
		s.senderEntropy = senderEntropy
		s.receiverEntropy = s.remoteEntropy
		s.remoteEntropy = nil
		s.established = true
		if k.log != nil {
			k.log.Debugf("established span with node %d", ctx.Destination)
		}
	}

	s.txSequence++
	nonce, err := crypto.SpanNonce(k.keys.Personalization, s.senderEntropy, s.receiverEntropy, uint16(ctx.Source), s.txSequence)
	if err != nil {
		return nil, err
	}
	out, err := k.ccm.Seal(nonce, plaintext, ctx.AAD)
	if err != nil {
		return nil, err
	}
	ctx.Sequence = s.txSequence
	ctx.SenderEntropy = senderEntropy
	return out, nil
}

// Decrypt implements Provider.
func (k *Keyring) Decrypt(ciphertext []byte, ctx *Context) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch ctx.Scheme {
	case SchemeS0:
		return k.decryptS0(ciphertext, ctx)
	case SchemeS2:
		return k.decryptS2(ciphertext, ctx)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, ctx.Scheme)
}

func (k *Keyring) decryptS0(ciphertext []byte, ctx *Context) ([]byte, error) {
	key := nonceKey{peer: ctx.Source, id: ctx.ReceiverNonceID}
	receiverNonce, ok := k.issued[key]
	if !ok {
		return nil, fmt.Errorf("%w: node %d nonce id 0x%02X", ErrNoNonce, ctx.Source, ctx.ReceiverNonceID)
	}
	delete(k.issued, key)

	nonce, err := crypto.S0Nonce(k.keys.Personalization, ctx.SenderNonce, receiverNonce)
	if err != nil {
		return nil, err
	}
	plaintext, err := k.ccm.Open(nonce, ciphertext, ctx.AAD)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return plaintext, nil
}

func (k *Keyring) decryptS2(ciphertext []byte, ctx *Context) ([]byte, error) {
	s, ok := k.spans[ctx.Source]
	if !ok {
		return nil, fmt.Errorf("%w: node %d", ErrNoNonce, ctx.Source)
	}

	senderEntropy, receiverEntropy := s.senderEntropy, s.receiverEntropy
	fresh := ctx.SenderEntropy != nil
	switch {
	case fresh && s.localEntropy == nil:
		return nil, fmt.Errorf("%w: node %d sent a span we did not request", ErrNoNonce, ctx.Source)
	case fresh:
		senderEntropy, receiverEntropy = ctx.SenderEntropy, s.localEntropy
	case !s.established:
		return nil, fmt.Errorf("%w: node %d has no span", ErrNoNonce, ctx.Source)
	case s.rxValid && s.rxSequence == ctx.Sequence:
		return nil, fmt.Errorf("%w: node %d sequence %d", ErrReplay, ctx.Source, ctx.Sequence)
	}

	nonce, err := crypto.SpanNonce(k.keys.Personalization, senderEntropy, receiverEntropy, uint16(ctx.Source), ctx.Sequence)
	if err != nil {
		return nil, err
	}
	plaintext, err := k.ccm.Open(nonce, ciphertext, ctx.AAD)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	if fresh {
		s.senderEntropy, s.receiverEntropy = senderEntropy, receiverEntropy
		s.localEntropy = nil
		s.established = true
	}
	s.rxSequence = ctx.Sequence
	s.rxValid = true
	return plaintext, nil
}
