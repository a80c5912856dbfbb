// Package s2 implements the Security 2 command class (0x9F): nonce
// exchange, the supported command list, and the message encapsulation
// frame with its header extensions.
package s2

import (
	"errors"
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
)

// Command ids.
const (
	CmdNonceGet                uint8 = 0x01
	CmdNonceReport             uint8 = 0x02
	CmdMessageEncapsulation    uint8 = 0x03
	CmdCommandsSupportedGet    uint8 = 0x0D
	CmdCommandsSupportedReport uint8 = 0x0E
)

// Frame sizes.
const (
	EntropySize = 16
	TagSize     = 8
)

const (
	flagSOS = 0x01
	flagMOS = 0x02

	flagExtension          = 0x01
	flagEncryptedExtension = 0x02
)

// ErrUnknownCriticalExtension is wrapped when a frame carries a critical
// extension this package cannot interpret.
var ErrUnknownCriticalExtension = errors.New("s2: unknown critical extension")

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.Security2, Name: "Security 2", Version: 1}); err != nil {
		return err
	}
	variants := []cc.VariantSpec{
		{
			CommandID: CmdNonceGet,
			Name:      "NonceGet",
			Parse:     parseNonceGet,
			New:       func() cc.Fields { return &NonceGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Security2, CommandID: CmdNonceReport},
		},
		{CommandID: CmdNonceReport, Name: "NonceReport", Parse: parseNonceReport},
		{CommandID: CmdMessageEncapsulation, Name: "MessageEncapsulation", Parse: parseEncapsulation},
		{
			CommandID: CmdCommandsSupportedGet,
			Name:      "CommandsSupportedGet",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &CommandsSupportedGet{}, nil },
			New:       func() cc.Fields { return &CommandsSupportedGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Security2, CommandID: CmdCommandsSupportedReport},
		},
		{CommandID: CmdCommandsSupportedReport, Name: "CommandsSupportedReport", Parse: parseCommandsSupportedReport},
	}
	for _, v := range variants {
		if err := r.RegisterVariant(cc.Security2, v); err != nil {
			return err
		}
	}
	return nil
}

// NonceGet requests a nonce report.
type NonceGet struct {
	Sequence uint8
}

func (*NonceGet) CommandClass() cc.CommandClass { return cc.Security2 }
func (*NonceGet) CommandID() uint8              { return CmdNonceGet }

func (g *NonceGet) Serialize(uint8) ([]byte, error) { return []byte{g.Sequence}, nil }

func parseNonceGet(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("nonce get: missing sequence number")
	}
	return &NonceGet{Sequence: b[0]}, nil
}

// NonceReport answers a nonce get or reports lost span state. With SOS
// set it carries fresh receiver entropy; MOS reports lost multicast state.
type NonceReport struct {
	Sequence        uint8
	SOS             bool
	MOS             bool
	ReceiverEntropy []byte
}

func (*NonceReport) CommandClass() cc.CommandClass { return cc.Security2 }
func (*NonceReport) CommandID() uint8              { return CmdNonceReport }

// Validate checks that entropy accompanies SOS.
func (n *NonceReport) Validate() error {
	if n.SOS && len(n.ReceiverEntropy) != EntropySize {
		return fmt.Errorf("receiver entropy is %d bytes, want %d", len(n.ReceiverEntropy), EntropySize)
	}
	if !n.SOS && len(n.ReceiverEntropy) > 0 {
		return fmt.Errorf("receiver entropy without SOS")
	}
	return nil
}

func (n *NonceReport) Serialize(uint8) ([]byte, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	var flags byte
	if n.SOS {
		flags |= flagSOS
	}
	if n.MOS {
		flags |= flagMOS
	}
	out := []byte{n.Sequence, flags}
	return append(out, n.ReceiverEntropy...), nil
}

func parseNonceReport(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 2 {
		return nil, cc.Packetf("nonce report: need 2 bytes, have %d", len(b))
	}
	n := &NonceReport{
		Sequence: b[0],
		SOS:      b[1]&flagSOS != 0,
		MOS:      b[1]&flagMOS != 0,
	}
	if n.SOS {
		if len(b) < 2+EntropySize {
			return nil, cc.Packetf("nonce report: SOS set but %d entropy bytes", len(b)-2)
		}
		n.ReceiverEntropy = append([]byte(nil), b[2:2+EntropySize]...)
	}
	return n, nil
}

// Encapsulation is an S2 message encapsulation frame. Extensions are the
// unencrypted header extensions. Ciphertext holds the encrypted
// extensions (when EncryptedExtensions is set), the inner command and
// the authentication tag.
type Encapsulation struct {
	Sequence            uint8
	Extensions          []Extension
	EncryptedExtensions bool
	Ciphertext          []byte
}

func (*Encapsulation) CommandClass() cc.CommandClass { return cc.Security2 }
func (*Encapsulation) CommandID() uint8              { return CmdMessageEncapsulation }

// Validate checks the extensions and the tag length.
func (e *Encapsulation) Validate() error {
	if len(e.Ciphertext) < TagSize {
		return fmt.Errorf("ciphertext is %d bytes, shorter than the tag", len(e.Ciphertext))
	}
	for _, x := range e.Extensions {
		if err := x.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Header returns the bytes preceding the ciphertext: sequence number,
// flags and unencrypted extensions.
func (e *Encapsulation) Header() ([]byte, error) {
	var flags byte
	if len(e.Extensions) > 0 {
		flags |= flagExtension
	}
	if e.EncryptedExtensions {
		flags |= flagEncryptedExtension
	}
	return AppendExtensions([]byte{e.Sequence, flags}, e.Extensions)
}

func (e *Encapsulation) Serialize(uint8) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	out, err := e.Header()
	if err != nil {
		return nil, err
	}
	return append(out, e.Ciphertext...), nil
}

// SenderEntropy returns the data of a SPAN extension, or nil.
func (e *Encapsulation) SenderEntropy() []byte {
	for _, x := range e.Extensions {
		if x.Type == ExtensionSPAN {
			return x.Data
		}
	}
	return nil
}

func parseEncapsulation(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 2 {
		return nil, cc.Packetf("message encapsulation: need 2 bytes, have %d", len(b))
	}
	e := &Encapsulation{
		Sequence:            b[0],
		EncryptedExtensions: b[1]&flagEncryptedExtension != 0,
	}
	rest := b[2:]
	if b[1]&flagExtension != 0 {
		exts, n, err := ParseExtensions(rest)
		if err != nil {
			return nil, err
		}
		for _, x := range exts {
			if x.Critical && !x.Type.Known() {
				return nil, fmt.Errorf("%w: %w: type %d", cc.ErrPacketFormat, ErrUnknownCriticalExtension, x.Type)
			}
		}
		e.Extensions = exts
		rest = rest[n:]
	}
	if len(rest) < TagSize {
		return nil, cc.Packetf("message encapsulation: %d ciphertext bytes, shorter than the tag", len(rest))
	}
	e.Ciphertext = append([]byte(nil), rest...)
	return e, nil
}

// CommandsSupportedGet requests the command classes supported securely.
type CommandsSupportedGet struct{}

func (*CommandsSupportedGet) CommandClass() cc.CommandClass   { return cc.Security2 }
func (*CommandsSupportedGet) CommandID() uint8                { return CmdCommandsSupportedGet }
func (*CommandsSupportedGet) Serialize(uint8) ([]byte, error) { return nil, nil }

// CommandsSupportedReport lists the command classes supported securely.
type CommandsSupportedReport struct {
	Supported []cc.CommandClass
}

func (*CommandsSupportedReport) CommandClass() cc.CommandClass { return cc.Security2 }
func (*CommandsSupportedReport) CommandID() uint8              { return CmdCommandsSupportedReport }

func (r *CommandsSupportedReport) Serialize(uint8) ([]byte, error) {
	var out []byte
	for _, id := range r.Supported {
		out = id.AppendTo(out)
	}
	return out, nil
}

func parseCommandsSupportedReport(b []byte, _ uint8) (cc.Fields, error) {
	r := &CommandsSupportedReport{}
	for len(b) > 0 {
		id, n, err := cc.ParseCommandClass(b)
		if err != nil {
			return nil, err
		}
		r.Supported = append(r.Supported, id)
		b = b[n:]
	}
	return r, nil
}
