package configuration

import (
	"fmt"
	"sort"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/wire"
)

// BulkSet writes consecutive parameters starting at Offset (version 2).
type BulkSet struct {
	Offset         uint16
	ResetToDefault bool
	Handshake      bool
	Size           uint8
	Values         []int64
	Format         Format
}

func (*BulkSet) CommandClass() cc.CommandClass { return cc.Configuration }
func (*BulkSet) CommandID() uint8              { return CmdBulkSet }

// Validate checks the size, count and value ranges.
func (s *BulkSet) Validate() error {
	if err := checkSize(s.Size); err != nil {
		return err
	}
	if len(s.Values) == 0 || len(s.Values) > 0xFF {
		return fmt.Errorf("%w: %d values", wire.ErrValueOutOfRange, len(s.Values))
	}
	if int(s.Offset)+len(s.Values)-1 > 0xFFFF {
		return fmt.Errorf("%w: %d+%d", ErrInvalidParameter, s.Offset, len(s.Values))
	}
	for _, v := range s.Values {
		if !wire.IntegerFits(v, int(s.Size), s.Format.Signed()) {
			return fmt.Errorf("%w: %d does not fit %d bytes", wire.ErrValueOutOfRange, v, s.Size)
		}
	}
	return nil
}

func (s *BulkSet) Serialize(uint8) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	flags := s.Size & sizeMask
	if s.ResetToDefault {
		flags |= flagDefault
	}
	if s.Handshake {
		flags |= flagHandshake
	}
	out := []byte{byte(s.Offset >> 8), byte(s.Offset), byte(len(s.Values)), flags}
	var err error
	for _, v := range s.Values {
		if s.ResetToDefault {
			v = 0
		}
		if out, err = appendValue(out, v, s.Size, s.Format); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseBulkSet(b []byte, _ uint8) (cc.Fields, error) {
	r := wire.NewReader(b)
	s := &BulkSet{Offset: r.Uint16()}
	count := int(r.Uint8())
	flags := r.Uint8()
	if r.Err() != nil {
		return nil, r.Err()
	}
	s.ResetToDefault = flags&flagDefault != 0
	s.Handshake = flags&flagHandshake != 0
	s.Size = flags & sizeMask
	if err := checkSize(s.Size); err != nil {
		return nil, fmt.Errorf("%w: %w", cc.ErrPacketFormat, err)
	}
	for i := 0; i < count; i++ {
		v, _ := readValue(r, s.Size)
		s.Values = append(s.Values, v)
	}
	return s, r.Err()
}

// BulkGet requests consecutive parameters (version 2).
type BulkGet struct {
	Offset uint16
	Count  uint8
}

func (*BulkGet) CommandClass() cc.CommandClass { return cc.Configuration }
func (*BulkGet) CommandID() uint8              { return CmdBulkGet }

func (g *BulkGet) Serialize(uint8) ([]byte, error) {
	return []byte{byte(g.Offset >> 8), byte(g.Offset), g.Count}, nil
}

func parseBulkGet(b []byte, _ uint8) (cc.Fields, error) {
	r := wire.NewReader(b)
	g := &BulkGet{Offset: r.Uint16(), Count: r.Uint8()}
	return g, r.Err()
}

func matchBulkGet(req, resp cc.Fields) error {
	g := req.(*BulkGet)
	rep := resp.(*BulkReport)
	end := uint32(g.Offset) + uint32(g.Count)
	if uint32(rep.Offset) < uint32(g.Offset) || uint32(rep.Offset) >= end {
		return cc.ErrNoMatch
	}
	return nil
}

// BulkReport carries consecutive parameter values. Large reads arrive as
// several reports, each continuing at a higher Offset.
type BulkReport struct {
	Offset          uint16
	ReportsToFollow uint8
	ResetToDefault  bool
	Handshake       bool
	Size            uint8

	// Values holds the signed interpretation; Raw the bit patterns.
	Values []int64
	Raw    []uint32
}

func (*BulkReport) CommandClass() cc.CommandClass { return cc.Configuration }
func (*BulkReport) CommandID() uint8              { return CmdBulkReport }

func (r *BulkReport) Serialize(uint8) ([]byte, error) {
	if err := checkSize(r.Size); err != nil {
		return nil, err
	}
	flags := r.Size & sizeMask
	if r.ResetToDefault {
		flags |= flagDefault
	}
	if r.Handshake {
		flags |= flagHandshake
	}
	out := []byte{byte(r.Offset >> 8), byte(r.Offset), byte(len(r.Raw)), r.ReportsToFollow, flags}
	var err error
	for _, raw := range r.Raw {
		if out, err = wire.AppendUint(out, uint64(raw), int(r.Size)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseBulkReport(b []byte, _ uint8) (cc.Fields, error) {
	rd := wire.NewReader(b)
	rep := &BulkReport{Offset: rd.Uint16()}
	count := int(rd.Uint8())
	rep.ReportsToFollow = rd.Uint8()
	flags := rd.Uint8()
	if rd.Err() != nil {
		return nil, rd.Err()
	}
	rep.ResetToDefault = flags&flagDefault != 0
	rep.Handshake = flags&flagHandshake != 0
	rep.Size = flags & sizeMask
	if err := checkSize(rep.Size); err != nil {
		return nil, fmt.Errorf("%w: %w", cc.ErrPacketFormat, err)
	}
	for i := 0; i < count; i++ {
		v, raw := readValue(rd, rep.Size)
		rep.Values = append(rep.Values, v)
		rep.Raw = append(rep.Raw, raw)
	}
	return rep, rd.Err()
}

// PartialSession implements cc.PartialFields. A node has at most one bulk
// read outstanding, so the discriminator is constant.
func (r *BulkReport) PartialSession() (uint32, uint8) {
	return 0, r.ReportsToFollow
}

// PartialOrder implements cc.OrderedPartial.
func (r *BulkReport) PartialOrder() int {
	return int(r.Offset)
}

// MergePartials implements cc.PartialFields.
func (r *BulkReport) MergePartials(parts []cc.Fields) (cc.Fields, error) {
	reports := make([]*BulkReport, 0, len(parts))
	for _, p := range parts {
		br, ok := p.(*BulkReport)
		if !ok {
			return nil, fmt.Errorf("configuration: cannot merge %T into bulk report", p)
		}
		reports = append(reports, br)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Offset < reports[j].Offset })

	merged := &BulkReport{
		Offset:         reports[0].Offset,
		ResetToDefault: reports[0].ResetToDefault,
		Handshake:      reports[0].Handshake,
		Size:           reports[0].Size,
	}
	for _, br := range reports {
		if br.Size != merged.Size {
			return nil, fmt.Errorf("%w: mixed value sizes %d and %d", ErrInvalidValueSize, merged.Size, br.Size)
		}
		merged.Values = append(merged.Values, br.Values...)
		merged.Raw = append(merged.Raw, br.Raw...)
	}
	return merged, nil
}
