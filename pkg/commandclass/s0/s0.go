// Package s0 implements the Security 0 command class (0x98): nonce
// exchange, the supported command list, and the encrypted encapsulation
// frame. Encryption itself belongs to the security provider.
package s0

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
)

// Command ids.
const (
	CmdCommandsSupportedGet         uint8 = 0x02
	CmdCommandsSupportedReport      uint8 = 0x03
	CmdNonceGet                     uint8 = 0x40
	CmdNonceReport                  uint8 = 0x80
	CmdCommandEncapsulation         uint8 = 0x81
	CmdCommandEncapsulationNonceGet uint8 = 0xC1
)

// Frame sizes.
const (
	NonceSize = 8
	MACSize   = 8
)

// supportControlMark separates supported from controlled command classes.
const supportControlMark = 0xEF

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.Security, Name: "Security", Version: 1}); err != nil {
		return err
	}
	variants := []cc.VariantSpec{
		{
			CommandID: CmdCommandsSupportedGet,
			Name:      "CommandsSupportedGet",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &CommandsSupportedGet{}, nil },
			New:       func() cc.Fields { return &CommandsSupportedGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Security, CommandID: CmdCommandsSupportedReport},
		},
		{CommandID: CmdCommandsSupportedReport, Name: "CommandsSupportedReport", Parse: parseCommandsSupportedReport},
		{
			CommandID: CmdNonceGet,
			Name:      "NonceGet",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &NonceGet{}, nil },
			New:       func() cc.Fields { return &NonceGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Security, CommandID: CmdNonceReport},
		},
		{CommandID: CmdNonceReport, Name: "NonceReport", Parse: parseNonceReport},
		{CommandID: CmdCommandEncapsulation, Name: "CommandEncapsulation", Parse: parseEncapsulation(false)},
		{CommandID: CmdCommandEncapsulationNonceGet, Name: "CommandEncapsulationNonceGet", Parse: parseEncapsulation(true)},
	}
	for _, v := range variants {
		if err := r.RegisterVariant(cc.Security, v); err != nil {
			return err
		}
	}
	return nil
}

// NonceGet requests a receiver nonce.
type NonceGet struct{}

func (*NonceGet) CommandClass() cc.CommandClass   { return cc.Security }
func (*NonceGet) CommandID() uint8                { return CmdNonceGet }
func (*NonceGet) Serialize(uint8) ([]byte, error) { return nil, nil }

// NonceReport carries a receiver nonce.
type NonceReport struct {
	Nonce []byte
}

func (*NonceReport) CommandClass() cc.CommandClass { return cc.Security }
func (*NonceReport) CommandID() uint8              { return CmdNonceReport }

// Validate checks the nonce size.
func (n *NonceReport) Validate() error {
	if len(n.Nonce) != NonceSize {
		return fmt.Errorf("nonce is %d bytes, want %d", len(n.Nonce), NonceSize)
	}
	return nil
}

func (n *NonceReport) Serialize(uint8) ([]byte, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return append([]byte(nil), n.Nonce...), nil
}

func parseNonceReport(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < NonceSize {
		return nil, cc.Packetf("nonce report: need %d bytes, have %d", NonceSize, len(b))
	}
	return &NonceReport{Nonce: append([]byte(nil), b[:NonceSize]...)}, nil
}

// Encapsulation is an S0 encrypted frame.
//
// Ciphertext is the encrypted sequence byte plus inner command; the
// engine decrypts it through the security provider.
type Encapsulation struct {
	// RequestNonce selects CommandEncapsulationNonceGet, asking the
	// receiver to answer with a fresh nonce report.
	RequestNonce bool

	SenderNonce     []byte
	Ciphertext      []byte
	ReceiverNonceID uint8
	MAC             []byte
}

func (*Encapsulation) CommandClass() cc.CommandClass { return cc.Security }

func (e *Encapsulation) CommandID() uint8 {
	if e.RequestNonce {
		return CmdCommandEncapsulationNonceGet
	}
	return CmdCommandEncapsulation
}

// Validate checks the nonce and MAC sizes.
func (e *Encapsulation) Validate() error {
	if len(e.SenderNonce) != NonceSize {
		return fmt.Errorf("sender nonce is %d bytes, want %d", len(e.SenderNonce), NonceSize)
	}
	if len(e.MAC) != MACSize {
		return fmt.Errorf("MAC is %d bytes, want %d", len(e.MAC), MACSize)
	}
	if len(e.Ciphertext) == 0 {
		return fmt.Errorf("empty ciphertext")
	}
	return nil
}

func (e *Encapsulation) Serialize(uint8) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	out := make([]byte, 0, NonceSize+len(e.Ciphertext)+1+MACSize)
	out = append(out, e.SenderNonce...)
	out = append(out, e.Ciphertext...)
	out = append(out, e.ReceiverNonceID)
	return append(out, e.MAC...), nil
}

func parseEncapsulation(requestNonce bool) cc.ParseFunc {
	return func(b []byte, _ uint8) (cc.Fields, error) {
		const overhead = NonceSize + 1 + MACSize
		if len(b) < overhead+1 {
			return nil, cc.Packetf("security encapsulation: need %d bytes, have %d", overhead+1, len(b))
		}
		end := len(b) - MACSize
		return &Encapsulation{
			RequestNonce:    requestNonce,
			SenderNonce:     append([]byte(nil), b[:NonceSize]...),
			Ciphertext:      append([]byte(nil), b[NonceSize:end-1]...),
			ReceiverNonceID: b[end-1],
			MAC:             append([]byte(nil), b[end:]...),
		}, nil
	}
}

// CommandsSupportedGet requests the command classes supported securely.
type CommandsSupportedGet struct{}

func (*CommandsSupportedGet) CommandClass() cc.CommandClass   { return cc.Security }
func (*CommandsSupportedGet) CommandID() uint8                { return CmdCommandsSupportedGet }
func (*CommandsSupportedGet) Serialize(uint8) ([]byte, error) { return nil, nil }

// CommandsSupportedReport lists secure command classes. Long lists are
// split over several reports counted down by ReportsToFollow.
type CommandsSupportedReport struct {
	ReportsToFollow uint8
	Supported       []cc.CommandClass
	Controlled      []cc.CommandClass
}

func (*CommandsSupportedReport) CommandClass() cc.CommandClass { return cc.Security }
func (*CommandsSupportedReport) CommandID() uint8              { return CmdCommandsSupportedReport }

func (r *CommandsSupportedReport) Serialize(uint8) ([]byte, error) {
	out := []byte{r.ReportsToFollow}
	for _, id := range r.Supported {
		out = id.AppendTo(out)
	}
	if len(r.Controlled) > 0 {
		out = append(out, supportControlMark)
		for _, id := range r.Controlled {
			out = id.AppendTo(out)
		}
	}
	return out, nil
}

// PartialSession implements cc.PartialFields.
func (r *CommandsSupportedReport) PartialSession() (uint32, uint8) {
	return 0, r.ReportsToFollow
}

// MergePartials implements cc.PartialFields.
func (r *CommandsSupportedReport) MergePartials(parts []cc.Fields) (cc.Fields, error) {
	merged := &CommandsSupportedReport{}
	for _, p := range parts {
		part, ok := p.(*CommandsSupportedReport)
		if !ok {
			return nil, fmt.Errorf("unexpected part %T", p)
		}
		merged.Supported = append(merged.Supported, part.Supported...)
		merged.Controlled = append(merged.Controlled, part.Controlled...)
	}
	return merged, nil
}

func parseCommandsSupportedReport(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("commands supported report: missing reports to follow")
	}
	r := &CommandsSupportedReport{ReportsToFollow: b[0]}
	list, err := parseClassList(b[1:])
	if err != nil {
		return nil, err
	}
	r.Supported, r.Controlled = list.supported, list.controlled
	return r, nil
}

type classList struct {
	supported  []cc.CommandClass
	controlled []cc.CommandClass
}

func parseClassList(b []byte) (classList, error) {
	var l classList
	dst := &l.supported
	for len(b) > 0 {
		if b[0] == supportControlMark {
			dst = &l.controlled
			b = b[1:]
			continue
		}
		id, n, err := cc.ParseCommandClass(b)
		if err != nil {
			return classList{}, err
		}
		*dst = append(*dst, id)
		b = b[n:]
	}
	return l, nil
}
