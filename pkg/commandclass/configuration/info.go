package configuration

import (
	"fmt"
	"strings"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/wire"
)

func parseParameterGet(build func(uint16) cc.Fields) cc.ParseFunc {
	return func(b []byte, _ uint8) (cc.Fields, error) {
		r := wire.NewReader(b)
		p := r.Uint16()
		if r.Err() != nil {
			return nil, r.Err()
		}
		return build(p), nil
	}
}

func parameterOf(f cc.Fields) (uint16, bool) {
	switch v := f.(type) {
	case *NameGet:
		return v.Parameter, true
	case *NameReport:
		return v.Parameter, true
	case *InfoGet:
		return v.Parameter, true
	case *InfoReport:
		return v.Parameter, true
	case *PropertiesGet:
		return v.Parameter, true
	case *PropertiesReport:
		return v.Parameter, true
	}
	return 0, false
}

func matchParameter(req, resp cc.Fields) error {
	want, ok1 := parameterOf(req)
	got, ok2 := parameterOf(resp)
	if !ok1 || !ok2 || want != got {
		return cc.ErrNoMatch
	}
	return nil
}

// NameGet requests a parameter's name (version 3).
type NameGet struct {
	Parameter uint16
}

func (*NameGet) CommandClass() cc.CommandClass { return cc.Configuration }
func (*NameGet) CommandID() uint8              { return CmdNameGet }

func (g *NameGet) Serialize(uint8) ([]byte, error) {
	return []byte{byte(g.Parameter >> 8), byte(g.Parameter)}, nil
}

// textReport is the shared layout of NameReport and InfoReport.
type textReport struct {
	Parameter       uint16
	ReportsToFollow uint8
	Text            string
}

func (t *textReport) serialize() []byte {
	out := []byte{byte(t.Parameter >> 8), byte(t.Parameter), t.ReportsToFollow}
	return append(out, t.Text...)
}

func parseTextReport(b []byte) (textReport, error) {
	r := wire.NewReader(b)
	t := textReport{Parameter: r.Uint16(), ReportsToFollow: r.Uint8()}
	if r.Err() != nil {
		return textReport{}, r.Err()
	}
	t.Text = string(r.Rest())
	return t, nil
}

func mergeText[T cc.Fields](parts []cc.Fields, text func(T) string) (string, error) {
	var sb strings.Builder
	for _, p := range parts {
		t, ok := p.(T)
		if !ok {
			return "", fmt.Errorf("configuration: cannot merge %T", p)
		}
		sb.WriteString(text(t))
	}
	return sb.String(), nil
}

// NameReport carries a parameter name, possibly as one of several parts.
type NameReport struct {
	Parameter       uint16
	ReportsToFollow uint8
	Name            string
}

func (*NameReport) CommandClass() cc.CommandClass { return cc.Configuration }
func (*NameReport) CommandID() uint8              { return CmdNameReport }

func (n *NameReport) Serialize(uint8) ([]byte, error) {
	t := textReport{n.Parameter, n.ReportsToFollow, n.Name}
	return t.serialize(), nil
}

func parseNameReport(b []byte, _ uint8) (cc.Fields, error) {
	t, err := parseTextReport(b)
	if err != nil {
		return nil, err
	}
	return &NameReport{Parameter: t.Parameter, ReportsToFollow: t.ReportsToFollow, Name: t.Text}, nil
}

// PartialSession implements cc.PartialFields.
func (n *NameReport) PartialSession() (uint32, uint8) {
	return uint32(n.Parameter), n.ReportsToFollow
}

// MergePartials implements cc.PartialFields.
func (n *NameReport) MergePartials(parts []cc.Fields) (cc.Fields, error) {
	name, err := mergeText(parts, func(r *NameReport) string { return r.Name })
	if err != nil {
		return nil, err
	}
	return &NameReport{Parameter: n.Parameter, Name: name}, nil
}

// InfoGet requests a parameter's description (version 3).
type InfoGet struct {
	Parameter uint16
}

func (*InfoGet) CommandClass() cc.CommandClass { return cc.Configuration }
func (*InfoGet) CommandID() uint8              { return CmdInfoGet }

func (g *InfoGet) Serialize(uint8) ([]byte, error) {
	return []byte{byte(g.Parameter >> 8), byte(g.Parameter)}, nil
}

// InfoReport carries a parameter description, possibly as one of
// several parts.
type InfoReport struct {
	Parameter       uint16
	ReportsToFollow uint8
	Info            string
}

func (*InfoReport) CommandClass() cc.CommandClass { return cc.Configuration }
func (*InfoReport) CommandID() uint8              { return CmdInfoReport }

func (n *InfoReport) Serialize(uint8) ([]byte, error) {
	t := textReport{n.Parameter, n.ReportsToFollow, n.Info}
	return t.serialize(), nil
}

func parseInfoReport(b []byte, _ uint8) (cc.Fields, error) {
	t, err := parseTextReport(b)
	if err != nil {
		return nil, err
	}
	return &InfoReport{Parameter: t.Parameter, ReportsToFollow: t.ReportsToFollow, Info: t.Text}, nil
}

// PartialSession implements cc.PartialFields.
func (n *InfoReport) PartialSession() (uint32, uint8) {
	return uint32(n.Parameter), n.ReportsToFollow
}

// MergePartials implements cc.PartialFields.
func (n *InfoReport) MergePartials(parts []cc.Fields) (cc.Fields, error) {
	info, err := mergeText(parts, func(r *InfoReport) string { return r.Info })
	if err != nil {
		return nil, err
	}
	return &InfoReport{Parameter: n.Parameter, Info: info}, nil
}

// PropertiesGet requests a parameter's format and bounds (version 3).
type PropertiesGet struct {
	Parameter uint16
}

func (*PropertiesGet) CommandClass() cc.CommandClass { return cc.Configuration }
func (*PropertiesGet) CommandID() uint8              { return CmdPropertiesGet }

func (g *PropertiesGet) Serialize(uint8) ([]byte, error) {
	return []byte{byte(g.Parameter >> 8), byte(g.Parameter)}, nil
}

// PropertiesReport describes a parameter. A Size of 0 means the
// parameter does not exist; NextParameter then points to the next one.
type PropertiesReport struct {
	Parameter     uint16
	Format        Format
	Size          uint8
	Min           int64
	Max           int64
	Default       int64
	NextParameter uint16

	// Version 4.
	ReadOnly             bool
	AlteringCapabilities bool
	Advanced             bool
	NoBulkSupport        bool
}

func (*PropertiesReport) CommandClass() cc.CommandClass { return cc.Configuration }
func (*PropertiesReport) CommandID() uint8              { return CmdPropertiesReport }

func (p *PropertiesReport) Serialize(version uint8) ([]byte, error) {
	flags := byte(p.Format&0x07)<<3 | p.Size&sizeMask
	if version >= 4 {
		if p.AlteringCapabilities {
			flags |= 0x80
		}
		if p.ReadOnly {
			flags |= 0x40
		}
	}
	out := []byte{byte(p.Parameter >> 8), byte(p.Parameter), flags}
	if p.Size != 0 {
		var err error
		for _, v := range []int64{p.Min, p.Max, p.Default} {
			if out, err = appendValue(out, v, p.Size, p.Format); err != nil {
				return nil, err
			}
		}
	}
	out = append(out, byte(p.NextParameter>>8), byte(p.NextParameter))
	if version >= 4 {
		var flags2 byte
		if p.NoBulkSupport {
			flags2 |= 0x02
		}
		if p.Advanced {
			flags2 |= 0x01
		}
		out = append(out, flags2)
	}
	return out, nil
}

func parsePropertiesReport(b []byte, version uint8) (cc.Fields, error) {
	r := wire.NewReader(b)
	p := &PropertiesReport{Parameter: r.Uint16()}
	flags := r.Uint8()
	if r.Err() != nil {
		return nil, r.Err()
	}
	p.Format = Format((flags >> 3) & 0x07)
	p.Size = flags & sizeMask
	if p.Size != 0 {
		if err := checkSize(p.Size); err != nil {
			return nil, fmt.Errorf("%w: %w", cc.ErrPacketFormat, err)
		}
		vals := make([]int64, 3)
		for i := range vals {
			signed, raw := readValue(r, p.Size)
			vals[i] = signed
			if !p.Format.Signed() {
				vals[i] = int64(raw)
			}
		}
		p.Min, p.Max, p.Default = vals[0], vals[1], vals[2]
	}
	p.NextParameter = r.Uint16()
	if r.Err() != nil {
		return nil, r.Err()
	}
	if version >= 4 {
		p.AlteringCapabilities = flags&0x80 != 0
		p.ReadOnly = flags&0x40 != 0
		if r.Len() >= 1 {
			flags2 := r.Uint8()
			p.NoBulkSupport = flags2&0x02 != 0
			p.Advanced = flags2&0x01 != 0
		}
	}
	return p, nil
}
