package configuration

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/wire"
)

func checkSize(size uint8) error {
	switch size {
	case 1, 2, 4:
		return nil
	}
	return fmt.Errorf("%w: %d", ErrInvalidValueSize, size)
}

// readValue reads a size-byte value. The raw form is returned alongside
// the signed interpretation.
func readValue(r *wire.Reader, size uint8) (int64, uint32) {
	raw := r.Uint(int(size))
	shift := 64 - 8*uint(size)
	return int64(raw<<shift) >> shift, uint32(raw)
}

func appendValue(out []byte, value int64, size uint8, format Format) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	if format.Signed() {
		return wire.AppendInt(out, value, int(size))
	}
	if value < 0 {
		return nil, fmt.Errorf("%w: %d is negative", wire.ErrValueOutOfRange, value)
	}
	return wire.AppendUint(out, uint64(value), int(size))
}

// Set writes one parameter.
type Set struct {
	Parameter uint8

	// ResetToDefault restores the factory value; Value is ignored.
	ResetToDefault bool

	// Size is the value width in bytes: 1, 2 or 4.
	Size   uint8
	Value  int64
	Format Format
}

func (*Set) CommandClass() cc.CommandClass { return cc.Configuration }
func (*Set) CommandID() uint8              { return CmdSet }

// Validate checks the size and that Value fits it.
func (s *Set) Validate() error {
	if err := checkSize(s.Size); err != nil {
		return err
	}
	if s.ResetToDefault {
		return nil
	}
	if !wire.IntegerFits(s.Value, int(s.Size), s.Format.Signed()) {
		return fmt.Errorf("%w: %d does not fit %d bytes", wire.ErrValueOutOfRange, s.Value, s.Size)
	}
	return nil
}

func (s *Set) Serialize(uint8) ([]byte, error) {
	if err := checkSize(s.Size); err != nil {
		return nil, err
	}
	flags := s.Size & sizeMask
	value := s.Value
	if s.ResetToDefault {
		flags |= flagDefault
		value = 0
	}
	return appendValue([]byte{s.Parameter, flags}, value, s.Size, s.Format)
}

func parseSet(b []byte, _ uint8) (cc.Fields, error) {
	r := wire.NewReader(b)
	s := &Set{Parameter: r.Uint8()}
	flags := r.Uint8()
	if r.Err() != nil {
		return nil, r.Err()
	}
	s.ResetToDefault = flags&flagDefault != 0
	s.Size = flags & sizeMask
	if err := checkSize(s.Size); err != nil {
		return nil, fmt.Errorf("%w: %w", cc.ErrPacketFormat, err)
	}
	s.Value, _ = readValue(r, s.Size)
	return s, r.Err()
}

// Get requests the value of one parameter.
type Get struct {
	Parameter uint8
}

func (*Get) CommandClass() cc.CommandClass { return cc.Configuration }
func (*Get) CommandID() uint8              { return CmdGet }

func (g *Get) Serialize(uint8) ([]byte, error) {
	return []byte{g.Parameter}, nil
}

func parseGet(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("configuration get: need 1 byte")
	}
	return &Get{Parameter: b[0]}, nil
}

func matchGet(req, resp cc.Fields) error {
	want := req.(*Get).Parameter
	got := resp.(*Report).Parameter
	if want != got {
		return &FirstParameterError{Requested: uint16(want), First: uint16(got)}
	}
	return nil
}

// Report carries the value of one parameter. Value is the two's
// complement interpretation; Raw holds the unsigned bit pattern.
type Report struct {
	Parameter uint8
	Size      uint8
	Value     int64
	Raw       uint32
}

func (*Report) CommandClass() cc.CommandClass { return cc.Configuration }
func (*Report) CommandID() uint8              { return CmdReport }

func (r *Report) Serialize(uint8) ([]byte, error) {
	if err := checkSize(r.Size); err != nil {
		return nil, err
	}
	return wire.AppendUint([]byte{r.Parameter, r.Size}, uint64(r.Raw), int(r.Size))
}

// ValueAs interprets the reported bits according to format.
func (r *Report) ValueAs(format Format) int64 {
	if format.Signed() {
		return r.Value
	}
	return int64(r.Raw)
}

func parseReport(b []byte, _ uint8) (cc.Fields, error) {
	rd := wire.NewReader(b)
	rep := &Report{Parameter: rd.Uint8(), Size: rd.Uint8() & sizeMask}
	if rd.Err() != nil {
		return nil, rd.Err()
	}
	if err := checkSize(rep.Size); err != nil {
		return nil, fmt.Errorf("%w: %w", cc.ErrPacketFormat, err)
	}
	rep.Value, rep.Raw = readValue(rd, rep.Size)
	return rep, rd.Err()
}

// NewReport returns a report for value encoded in size bytes. Values
// that only fit unsigned are encoded unsigned.
func NewReport(param uint8, size uint8, value int64) (*Report, error) {
	format := FormatSignedInteger
	if !wire.IntegerFits(value, int(size), true) {
		format = FormatUnsignedInteger
	}
	buf, err := appendValue(nil, value, size, format)
	if err != nil {
		return nil, err
	}
	rep := &Report{Parameter: param, Size: size}
	rep.Value, rep.Raw = readValue(wire.NewReader(buf), size)
	return rep, nil
}
