// Package supervision implements the Supervision command class (0x6C),
// versions 1-2: delivery confirmation for an encapsulated command.
package supervision

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/wire"
)

// Command ids.
const (
	CmdGet    uint8 = 0x01
	CmdReport uint8 = 0x02
)

// Version is the highest implemented version.
const Version = 2

// MaxSessionID is the highest session id; ids are 6 bits wide.
const MaxSessionID = 0x3F

const (
	flagStatusUpdates = 0x80
	flagMoreUpdates   = 0x80
	flagWakeUpRequest = 0x40
	sessionMask       = 0x3F
)

// Status is the outcome reported for a supervised command.
type Status uint8

const (
	NoSupport Status = 0x00
	Working   Status = 0x01
	Fail      Status = 0x02
	Success   Status = 0xFF
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case NoSupport:
		return "no support"
	case Working:
		return "working"
	case Fail:
		return "fail"
	case Success:
		return "success"
	}
	return fmt.Sprintf("Status(0x%02X)", uint8(s))
}

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.Supervision, Name: "Supervision", Version: Version}); err != nil {
		return err
	}
	variants := []cc.VariantSpec{
		{
			CommandID: CmdGet,
			Name:      "Get",
			Parse:     parseGet,
			Response: &cc.ResponseSpec{
				CommandClass: cc.Supervision,
				CommandID:    CmdReport,
				Match: func(req, resp cc.Fields) error {
					if req.(*Get).SessionID != resp.(*Report).SessionID {
						return cc.ErrNoMatch
					}
					return nil
				},
			},
		},
		{CommandID: CmdReport, Name: "Report", Parse: parseReport, New: func() cc.Fields { return &Report{} }},
	}
	for _, v := range variants {
		if err := r.RegisterVariant(cc.Supervision, v); err != nil {
			return err
		}
	}
	return nil
}

// Get wraps a command whose execution the sender wants confirmed.
type Get struct {
	StatusUpdates bool
	SessionID     uint8

	// Encapsulated is the serialized inner command.
	Encapsulated []byte
}

func (*Get) CommandClass() cc.CommandClass { return cc.Supervision }
func (*Get) CommandID() uint8              { return CmdGet }

// Validate checks the session id and inner length.
func (g *Get) Validate() error {
	if g.SessionID > MaxSessionID {
		return fmt.Errorf("%w: session id %d", wire.ErrValueOutOfRange, g.SessionID)
	}
	if len(g.Encapsulated) > 0xFF {
		return fmt.Errorf("%w: encapsulated length %d", wire.ErrValueOutOfRange, len(g.Encapsulated))
	}
	return nil
}

func (g *Get) Serialize(uint8) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	flags := g.SessionID & sessionMask
	if g.StatusUpdates {
		flags |= flagStatusUpdates
	}
	out := []byte{flags, byte(len(g.Encapsulated))}
	return append(out, g.Encapsulated...), nil
}

func parseGet(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 2 {
		return nil, cc.Packetf("supervision get: need 2 bytes, have %d", len(b))
	}
	n := int(b[1])
	if len(b) < 2+n {
		return nil, cc.Packetf("supervision get: encapsulated length %d exceeds %d remaining bytes", n, len(b)-2)
	}
	return &Get{
		StatusUpdates: b[0]&flagStatusUpdates != 0,
		SessionID:     b[0] & sessionMask,
		Encapsulated:  append([]byte(nil), b[2:2+n]...),
	}, nil
}

// Report confirms a supervised command.
type Report struct {
	MoreUpdates bool
	SessionID   uint8
	Status      Status
	Duration    wire.Duration

	// Version 2.
	WakeUpRequest bool
}

func (*Report) CommandClass() cc.CommandClass { return cc.Supervision }
func (*Report) CommandID() uint8              { return CmdReport }

// Validate checks the session id.
func (r *Report) Validate() error {
	if r.SessionID > MaxSessionID {
		return fmt.Errorf("%w: session id %d", wire.ErrValueOutOfRange, r.SessionID)
	}
	return nil
}

func (r *Report) Serialize(version uint8) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	flags := r.SessionID & sessionMask
	if r.MoreUpdates {
		flags |= flagMoreUpdates
	}
	if version >= 2 && r.WakeUpRequest {
		flags |= flagWakeUpRequest
	}
	d, err := r.Duration.Serialize()
	if err != nil {
		return nil, err
	}
	return []byte{flags, byte(r.Status), d}, nil
}

func parseReport(b []byte, version uint8) (cc.Fields, error) {
	if len(b) < 3 {
		return nil, cc.Packetf("supervision report: need 3 bytes, have %d", len(b))
	}
	r := &Report{
		MoreUpdates: b[0]&flagMoreUpdates != 0,
		SessionID:   b[0] & sessionMask,
		Status:      Status(b[1]),
		Duration:    wire.ParseDuration(b[2]),
	}
	if version >= 2 {
		r.WakeUpRequest = b[0]&flagWakeUpRequest != 0
	}
	return r, nil
}
