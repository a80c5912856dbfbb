package encap

import (
	"errors"
	"fmt"
	"time"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/commandclass/crc16"
	"github.com/backkem/zwave/pkg/commandclass/multichannel"
	"github.com/backkem/zwave/pkg/commandclass/s0"
	"github.com/backkem/zwave/pkg/commandclass/s2"
	"github.com/backkem/zwave/pkg/commandclass/supervision"
	"github.com/backkem/zwave/pkg/security"
	"github.com/pion/logging"
)

// s0SequenceUnsequenced is the plaintext header of an unsplit S0 frame.
const s0SequenceUnsequenced = 0x00

// Config configures an Engine.
type Config struct {
	// Registry decodes and encodes inner commands. Required.
	Registry *cc.Registry

	// Security encrypts and decrypts S0 and S2 layers. Optional; security
	// layers fail with ErrNoProvider without it.
	Security security.Provider

	// LocalNode is the controller's node id, used in security associated data.
	LocalNode cc.NodeID

	// MaxSegmentPayload bounds the payload of one transport service
	// segment. Defaults to transportservice.DefaultMaxSegmentPayload.
	MaxSegmentPayload int

	// SupervisionTimeout releases a supervision session when no report
	// arrives for this long. Defaults to DefaultSupervisionTimeout.
	SupervisionTimeout time.Duration

	// OnSupervisionExpired is called when a supervision session times out.
	// Optional.
	OnSupervisionExpired func(node cc.NodeID, sessionID uint8, err error)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Engine applies and removes encapsulation layers.
//
// Thread-safe; per-session state lives in Supervisor and Reassembler.
type Engine struct {
	registry   *cc.Registry
	provider   security.Provider
	local      cc.NodeID
	maxSegment int
	supervisor *Supervisor
	log        logging.LeveledLogger
}

// NewEngine creates an engine.
func NewEngine(config Config) (*Engine, error) {
	if config.Registry == nil {
		return nil, errors.New("encap: registry is required")
	}
	e := &Engine{
		registry:   config.Registry,
		provider:   config.Security,
		local:      config.LocalNode,
		maxSegment: config.MaxSegmentPayload,
		supervisor: NewSupervisor(SupervisorConfig{
			Timeout:       config.SupervisionTimeout,
			OnExpired:     config.OnSupervisionExpired,
			LoggerFactory: config.LoggerFactory,
		}),
	}
	if e.maxSegment <= 0 {
		e.maxSegment = defaultMaxSegmentPayload
	}
	if config.LoggerFactory != nil {
		e.log = config.LoggerFactory.NewLogger("encap")
	}
	return e, nil
}

// Supervisor returns the table of outstanding supervision sessions.
func (e *Engine) Supervisor() *Supervisor { return e.supervisor }

// Kinds returns the encapsulation kinds of cmd, outer to inner.
func Kinds(cmd *cc.Command) []Kind {
	var kinds []Kind
	for c := cmd; c != nil; c = c.Encapsulated {
		if k, ok := kindOfFields(c.Fields); ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// kindOfFields returns the kind of an encapsulation variant. Other
// variants of encapsulation classes, like nonce reports, carry nothing.
func kindOfFields(f cc.Fields) (Kind, bool) {
	switch f.(type) {
	case *multichannel.Encapsulation:
		return KindMultiChannel, true
	case *supervision.Get:
		return KindSupervision, true
	case *crc16.Encapsulation:
		return KindCRC16, true
	case *s0.Encapsulation:
		return KindSecurityS0, true
	case *s2.Encapsulation:
		return KindSecurityS2, true
	}
	return 0, false
}

// IsEncapsulation reports whether cmd wraps an inner command.
func IsEncapsulation(cmd *cc.Command) bool {
	if cmd == nil {
		return false
	}
	_, ok := kindOfFields(cmd.Fields)
	return ok
}

// Encapsulate wraps inner in one layer of the given kind. inner may
// already be encapsulated; the resulting stack must satisfy
// ValidateOrder. Transport service frames are produced by Fragment.
func (e *Engine) Encapsulate(kind Kind, inner *cc.Command, p Params) (*cc.Command, error) {
	if inner == nil {
		return nil, cc.Constructionf("nil inner command")
	}
	if kind == KindTransportService {
		return nil, cc.Constructionf("transport service segments are produced by Fragment")
	}
	if err := ValidateOrder(append([]Kind{kind}, Kinds(inner)...)); err != nil {
		return nil, err
	}

	endpoint := inner.Endpoint
	if kind == KindMultiChannel {
		endpoint = 0
	}
	innerBytes, err := e.registry.Encode(inner)
	if err != nil {
		return nil, err
	}

	var fields cc.Fields
	switch kind {
	case KindMultiChannel:
		fields = &multichannel.Encapsulation{
			Source:       p.SourceEndpoint,
			Destination:  p.DestinationEndpoint,
			BitAddress:   p.BitAddress,
			Destinations: p.Destinations,
			Encapsulated: innerBytes,
		}
	case KindSupervision:
		session := p.SessionID
		if session == 0 {
			session = e.supervisor.NextSessionID(inner.NodeID)
		}
		fields = &supervision.Get{StatusUpdates: p.StatusUpdates, SessionID: session, Encapsulated: innerBytes}
	case KindCRC16:
		fields = &crc16.Encapsulation{Encapsulated: innerBytes}
	case KindSecurityS0:
		fields, err = e.sealS0(inner.NodeID, innerBytes, p.RequestNonce)
	case KindSecurityS2:
		fields, err = e.sealS2(inner.NodeID, innerBytes)
	}
	if err != nil {
		return nil, err
	}

	outer, err := cc.NewCommand(inner.NodeID, endpoint, fields)
	if err != nil {
		return nil, err
	}
	if kind == KindMultiChannel {
		inner.Endpoint = p.DestinationEndpoint
	}
	outer.Encapsulated = inner
	if g, ok := fields.(*supervision.Get); ok {
		e.supervisor.Track(inner.NodeID, g.SessionID, inner)
	}
	return outer, nil
}

func (e *Engine) sealS0(node cc.NodeID, inner []byte, requestNonce bool) (cc.Fields, error) {
	if e.provider == nil {
		return nil, ErrNoProvider
	}
	f := &s0.Encapsulation{RequestNonce: requestNonce}
	ctx := &security.Context{
		Scheme:      security.SchemeS0,
		Source:      e.local,
		Destination: node,
		AAD:         security.AAD(cc.Security, f.CommandID(), e.local, node),
	}
	plaintext := append([]byte{s0SequenceUnsequenced}, inner...)
	sealed, err := e.provider.Encrypt(plaintext, ctx)
	if err != nil {
		return nil, fmt.Errorf("encap: S0 encrypt for node %d: %w", node, err)
	}
	if len(sealed) < s0.MACSize+1 {
		return nil, fmt.Errorf("encap: S0 provider returned %d bytes", len(sealed))
	}
	n := len(sealed) - s0.MACSize
	f.SenderNonce = ctx.SenderNonce
	f.Ciphertext = sealed[:n]
	f.ReceiverNonceID = ctx.ReceiverNonceID
	f.MAC = sealed[n:]
	return f, nil
}

func (e *Engine) sealS2(node cc.NodeID, inner []byte) (cc.Fields, error) {
	if e.provider == nil {
		return nil, ErrNoProvider
	}
	ctx := &security.Context{
		Scheme:      security.SchemeS2,
		Source:      e.local,
		Destination: node,
		AAD:         security.AAD(cc.Security2, s2.CmdMessageEncapsulation, e.local, node),
	}
	sealed, err := e.provider.Encrypt(inner, ctx)
	if err != nil {
		return nil, fmt.Errorf("encap: S2 encrypt for node %d: %w", node, err)
	}
	f := &s2.Encapsulation{Sequence: ctx.Sequence, Ciphertext: sealed}
	if ctx.SenderEntropy != nil {
		f.Extensions = []s2.Extension{s2.SPAN(ctx.SenderEntropy)}
	}
	return f, nil
}

// Unwrap removes the outermost layer of a decoded command and decodes
// the inner command with the given versions. The inner command is also
// stored in outer.Encapsulated.
//
// Integrity and security failures are returned as *cc.DecapsulationError;
// a malformed inner command returns an error wrapping cc.ErrPacketFormat.
func (e *Engine) Unwrap(outer *cc.Command, versions cc.VersionFunc) (Kind, *cc.Command, Params, error) {
	if outer == nil {
		return 0, nil, Params{}, ErrNotEncapsulated
	}
	kind, ok := kindOfFields(outer.Fields)
	if !ok {
		return 0, nil, Params{}, fmt.Errorf("%w: %s", ErrNotEncapsulated, outer.Identity)
	}

	var (
		p        Params
		payload  []byte
		endpoint = outer.Endpoint
		err      error
	)
	switch f := outer.Fields.(type) {
	case *multichannel.Encapsulation:
		p = Params{SourceEndpoint: f.Source, DestinationEndpoint: f.Destination, BitAddress: f.BitAddress, Destinations: f.Destinations}
		payload = f.Encapsulated
		endpoint = f.Source
	case *supervision.Get:
		p = Params{SessionID: f.SessionID, StatusUpdates: f.StatusUpdates}
		payload = f.Encapsulated
	case *crc16.Encapsulation:
		if !f.Valid() {
			return 0, nil, Params{}, &cc.DecapsulationError{Layer: cc.CRC16Encap, Reason: cc.ReasonChecksum}
		}
		payload = f.Encapsulated
	case *s0.Encapsulation:
		p.RequestNonce = f.RequestNonce
		payload, err = e.openS0(outer.NodeID, f)
	case *s2.Encapsulation:
		payload, err = e.openS2(outer.NodeID, f)
	}
	if err != nil {
		return 0, nil, Params{}, err
	}
	if len(payload) == 0 {
		return 0, nil, Params{}, &cc.DecapsulationError{
			Layer:  kind.CommandClass(),
			Reason: cc.ReasonMalformed,
			Err:    errors.New("empty inner command"),
		}
	}

	inner, err := e.registry.Decode(payload, cc.DecodeContext{NodeID: outer.NodeID, Endpoint: endpoint, Versions: versions})
	if err != nil {
		return 0, nil, Params{}, fmt.Errorf("encap: inside %s: %w", kind, err)
	}
	outer.Encapsulated = inner
	return kind, inner, p, nil
}

func decryptError(layer cc.CommandClass, err error) error {
	reason := cc.ReasonDecryptFailed
	if errors.Is(err, security.ErrNoNonce) {
		reason = cc.ReasonNoNonce
	}
	return &cc.DecapsulationError{Layer: layer, Reason: reason, Err: err}
}

func (e *Engine) openS0(node cc.NodeID, f *s0.Encapsulation) ([]byte, error) {
	if e.provider == nil {
		return nil, &cc.DecapsulationError{Layer: cc.Security, Reason: cc.ReasonDecryptFailed, Err: ErrNoProvider}
	}
	ctx := &security.Context{
		Scheme:          security.SchemeS0,
		Source:          node,
		Destination:     e.local,
		AAD:             security.AAD(cc.Security, f.CommandID(), node, e.local),
		SenderNonce:     f.SenderNonce,
		ReceiverNonceID: f.ReceiverNonceID,
	}
	sealed := append(append([]byte(nil), f.Ciphertext...), f.MAC...)
	plaintext, err := e.provider.Decrypt(sealed, ctx)
	if err != nil {
		return nil, decryptError(cc.Security, err)
	}
	if len(plaintext) < 1 {
		return nil, &cc.DecapsulationError{Layer: cc.Security, Reason: cc.ReasonMalformed, Err: errors.New("missing sequence header")}
	}
	return plaintext[1:], nil
}

func (e *Engine) openS2(node cc.NodeID, f *s2.Encapsulation) ([]byte, error) {
	if e.provider == nil {
		return nil, &cc.DecapsulationError{Layer: cc.Security2, Reason: cc.ReasonDecryptFailed, Err: ErrNoProvider}
	}
	ctx := &security.Context{
		Scheme:        security.SchemeS2,
		Source:        node,
		Destination:   e.local,
		AAD:           security.AAD(cc.Security2, s2.CmdMessageEncapsulation, node, e.local),
		Sequence:      f.Sequence,
		SenderEntropy: f.SenderEntropy(),
	}
	plaintext, err := e.provider.Decrypt(f.Ciphertext, ctx)
	if err != nil {
		return nil, decryptError(cc.Security2, err)
	}
	if f.EncryptedExtensions {
		_, n, err := s2.ParseExtensions(plaintext)
		if err != nil {
			return nil, &cc.DecapsulationError{Layer: cc.Security2, Reason: cc.ReasonMalformed, Err: err}
		}
		plaintext = plaintext[n:]
	}
	return plaintext, nil
}

// UnwrapAll removes every layer and returns the application command
// together with the removed layers, outer to inner.
func (e *Engine) UnwrapAll(outer *cc.Command, versions cc.VersionFunc) (*cc.Command, []Layer, error) {
	var layers []Layer
	cmd := outer
	for IsEncapsulation(cmd) {
		kind, inner, p, err := e.Unwrap(cmd, versions)
		if err != nil {
			return nil, layers, err
		}
		layers = append(layers, Layer{Kind: kind, Params: p})
		cmd = inner
	}
	if len(layers) > 1 && e.log != nil {
		kinds := make([]Kind, len(layers))
		for i, l := range layers {
			kinds[i] = l.Kind
		}
		if err := ValidateOrder(kinds); err != nil {
			e.log.Debugf("node %d sent layers in unexpected order %v", outer.NodeID, kinds)
		}
	}
	return cmd, layers, nil
}

// Layers returns the layers of an already unwrapped command, outer to inner.
func Layers(cmd *cc.Command) []Layer {
	var layers []Layer
	for c := cmd; c != nil; c = c.Encapsulated {
		if l, ok := layerOf(c.Fields); ok {
			layers = append(layers, l)
		}
	}
	return layers
}

func layerOf(f cc.Fields) (Layer, bool) {
	switch f := f.(type) {
	case *multichannel.Encapsulation:
		return Layer{Kind: KindMultiChannel, Params: Params{
			SourceEndpoint: f.Source, DestinationEndpoint: f.Destination,
			BitAddress: f.BitAddress, Destinations: f.Destinations,
		}}, true
	case *supervision.Get:
		return Layer{Kind: KindSupervision, Params: Params{SessionID: f.SessionID, StatusUpdates: f.StatusUpdates}}, true
	case *crc16.Encapsulation:
		return Layer{Kind: KindCRC16}, true
	case *s0.Encapsulation:
		return Layer{Kind: KindSecurityS0, Params: Params{RequestNonce: f.RequestNonce}}, true
	case *s2.Encapsulation:
		return Layer{Kind: KindSecurityS2}, true
	}
	return Layer{}, false
}

// Mirror wraps response in the layers the request arrived in, in the same
// order, with multi channel endpoints swapped. Supervision is not
// mirrored: a supervised request is answered by a supervision report.
func (e *Engine) Mirror(request, response *cc.Command) (*cc.Command, error) {
	if response == nil {
		return nil, cc.Constructionf("nil response")
	}
	layers := Layers(request)
	out := response
	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		switch l.Kind {
		case KindSupervision, KindTransportService:
			continue
		case KindMultiChannel:
			l.Params = Params{SourceEndpoint: l.Params.DestinationEndpoint, DestinationEndpoint: l.Params.SourceEndpoint}
		case KindSecurityS0:
			l.Params = Params{}
		}
		wrapped, err := e.Encapsulate(l.Kind, out, l.Params)
		if err != nil {
			return nil, err
		}
		out = wrapped
	}
	return out, nil
}
