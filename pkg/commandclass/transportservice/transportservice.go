// Package transportservice implements the Transport Service command class
// (0x55), version 2: the segment frames a datagram is split into.
//
// The first and subsequent segment command bytes carry the top three bits
// of the datagram size, so each of them is registered once per size
// prefix. Every segment ends in a CRC-16 over the whole command.
package transportservice

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/wire"
)

// Command ids. Segment commands carry size bits in their low three bits.
const (
	CmdFirstSegment      uint8 = 0xC0
	CmdSegmentRequest    uint8 = 0xC8
	CmdSubsequentSegment uint8 = 0xE0
	CmdSegmentComplete   uint8 = 0xE8
	CmdSegmentWait       uint8 = 0xF0
)

// Version is the implemented version.
const Version = 2

const (
	// MaxDatagramSize is the largest size the 11-bit size field can hold.
	MaxDatagramSize = 0x7FF

	// MaxSessionID is the highest 4-bit session id.
	MaxSessionID = 0x0F

	// DefaultMaxSegmentPayload is the payload carried by one segment on
	// a standard frame.
	DefaultMaxSegmentPayload = 39

	sizeBitsMask  = 0x07
	flagExtension = 0x08
	checksumSize  = 2
)

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.TransportService, Name: "Transport Service", Version: Version}); err != nil {
		return err
	}
	for hi := uint8(0); hi <= sizeBitsMask; hi++ {
		first := CmdFirstSegment | hi
		if err := r.RegisterVariant(cc.TransportService, cc.VariantSpec{
			CommandID: first,
			Name:      "FirstSegment",
			Parse:     parseFirstSegment(first),
		}); err != nil {
			return err
		}
		subsequent := CmdSubsequentSegment | hi
		if err := r.RegisterVariant(cc.TransportService, cc.VariantSpec{
			CommandID: subsequent,
			Name:      "SubsequentSegment",
			Parse:     parseSubsequentSegment(subsequent),
		}); err != nil {
			return err
		}
	}
	variants := []cc.VariantSpec{
		{CommandID: CmdSegmentRequest, Name: "SegmentRequest", Parse: parseSegmentRequest, New: func() cc.Fields { return &SegmentRequest{} }},
		{CommandID: CmdSegmentComplete, Name: "SegmentComplete", Parse: parseSegmentComplete, New: func() cc.Fields { return &SegmentComplete{} }},
		{CommandID: CmdSegmentWait, Name: "SegmentWait", Parse: parseSegmentWait, New: func() cc.Fields { return &SegmentWait{} }},
	}
	for _, v := range variants {
		if err := r.RegisterVariant(cc.TransportService, v); err != nil {
			return err
		}
	}
	return nil
}

// Segment is implemented by FirstSegment and SubsequentSegment.
type Segment interface {
	cc.Fields
	Session() uint8
	Size() int
	Offset() int
	Data() []byte

	// Valid reports whether the received checksum matches.
	Valid() bool
}

// checksum computes the CRC over the class id, command byte and body.
func checksum(cmd uint8, body []byte) uint16 {
	crc := wire.UpdateCRC16(wire.CRC16Init, []byte{byte(cc.TransportService), cmd})
	return wire.UpdateCRC16(crc, body)
}

func appendChecksum(cmd uint8, body []byte) []byte {
	crc := checksum(cmd, body)
	return append(body, byte(crc>>8), byte(crc))
}

func splitChecksum(b []byte) ([]byte, uint16) {
	n := len(b) - checksumSize
	return b[:n], uint16(b[n])<<8 | uint16(b[n+1])
}

func validateSession(session uint8, size int) error {
	if session > MaxSessionID {
		return fmt.Errorf("%w: session id %d", wire.ErrValueOutOfRange, session)
	}
	if size < 0 || size > MaxDatagramSize {
		return fmt.Errorf("%w: datagram size %d", wire.ErrValueOutOfRange, size)
	}
	return nil
}

// FirstSegment opens a datagram.
type FirstSegment struct {
	SessionID       uint8
	DatagramSize    int
	HeaderExtension []byte
	Payload         []byte

	// Checksum is the received CRC.
	Checksum uint16
}

func (*FirstSegment) CommandClass() cc.CommandClass { return cc.TransportService }

func (s *FirstSegment) CommandID() uint8 {
	return CmdFirstSegment | uint8(s.DatagramSize>>8)&sizeBitsMask
}

func (s *FirstSegment) Session() uint8 { return s.SessionID }
func (s *FirstSegment) Size() int      { return s.DatagramSize }
func (s *FirstSegment) Offset() int    { return 0 }
func (s *FirstSegment) Data() []byte   { return s.Payload }

// Validate checks the session id, size and payload.
func (s *FirstSegment) Validate() error {
	if err := validateSession(s.SessionID, s.DatagramSize); err != nil {
		return err
	}
	if len(s.Payload) == 0 || len(s.Payload) > s.DatagramSize {
		return fmt.Errorf("%w: %d payload bytes for a %d byte datagram", wire.ErrValueOutOfRange, len(s.Payload), s.DatagramSize)
	}
	return nil
}

func (s *FirstSegment) Serialize(uint8) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	session := s.SessionID << 4
	if len(s.HeaderExtension) > 0 {
		session |= flagExtension
	}
	body := []byte{byte(s.DatagramSize), session}
	if len(s.HeaderExtension) > 0 {
		body = append(body, byte(len(s.HeaderExtension)+1))
		body = append(body, s.HeaderExtension...)
	}
	body = append(body, s.Payload...)
	return appendChecksum(s.CommandID(), body), nil
}

// Valid implements Segment.
func (s *FirstSegment) Valid() bool {
	body, _ := s.Serialize(Version)
	if body == nil {
		return false
	}
	_, crc := splitChecksum(body)
	return crc == s.Checksum
}

func parseExtension(b []byte) (ext, rest []byte, err error) {
	if len(b) < 1 || int(b[0]) < 1 || int(b[0]) > len(b) {
		return nil, nil, cc.Packetf("segment header extension truncated")
	}
	return append([]byte(nil), b[1:b[0]]...), b[b[0]:], nil
}

func parseFirstSegment(cmd uint8) cc.ParseFunc {
	return func(b []byte, _ uint8) (cc.Fields, error) {
		if len(b) < 2+1+checksumSize {
			return nil, cc.Packetf("first segment: need %d bytes, have %d", 2+1+checksumSize, len(b))
		}
		body, crc := splitChecksum(b)
		s := &FirstSegment{
			SessionID:    body[1] >> 4,
			DatagramSize: int(cmd&sizeBitsMask)<<8 | int(body[0]),
			Checksum:     crc,
		}
		rest := body[2:]
		if body[1]&flagExtension != 0 {
			var err error
			if s.HeaderExtension, rest, err = parseExtension(rest); err != nil {
				return nil, err
			}
		}
		if len(rest) == 0 {
			return nil, cc.Packetf("first segment: empty payload")
		}
		s.Payload = append([]byte(nil), rest...)
		return s, nil
	}
}

// SubsequentSegment continues a datagram at DatagramOffset.
type SubsequentSegment struct {
	SessionID       uint8
	DatagramSize    int
	DatagramOffset  int
	HeaderExtension []byte
	Payload         []byte

	// Checksum is the received CRC.
	Checksum uint16
}

func (*SubsequentSegment) CommandClass() cc.CommandClass { return cc.TransportService }

func (s *SubsequentSegment) CommandID() uint8 {
	return CmdSubsequentSegment | uint8(s.DatagramSize>>8)&sizeBitsMask
}

func (s *SubsequentSegment) Session() uint8 { return s.SessionID }
func (s *SubsequentSegment) Size() int      { return s.DatagramSize }
func (s *SubsequentSegment) Offset() int    { return s.DatagramOffset }
func (s *SubsequentSegment) Data() []byte   { return s.Payload }

// Validate checks the session id, size, offset and payload.
func (s *SubsequentSegment) Validate() error {
	if err := validateSession(s.SessionID, s.DatagramSize); err != nil {
		return err
	}
	if s.DatagramOffset < 1 || len(s.Payload) == 0 || s.DatagramOffset+len(s.Payload) > s.DatagramSize {
		return fmt.Errorf("%w: %d payload bytes at offset %d for a %d byte datagram",
			wire.ErrValueOutOfRange, len(s.Payload), s.DatagramOffset, s.DatagramSize)
	}
	return nil
}

func (s *SubsequentSegment) Serialize(uint8) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	session := s.SessionID<<4 | uint8(s.DatagramOffset>>8)&sizeBitsMask
	if len(s.HeaderExtension) > 0 {
		session |= flagExtension
	}
	body := []byte{byte(s.DatagramSize), session, byte(s.DatagramOffset)}
	if len(s.HeaderExtension) > 0 {
		body = append(body, byte(len(s.HeaderExtension)+1))
		body = append(body, s.HeaderExtension...)
	}
	body = append(body, s.Payload...)
	return appendChecksum(s.CommandID(), body), nil
}

// Valid implements Segment.
func (s *SubsequentSegment) Valid() bool {
	body, _ := s.Serialize(Version)
	if body == nil {
		return false
	}
	_, crc := splitChecksum(body)
	return crc == s.Checksum
}

func parseSubsequentSegment(cmd uint8) cc.ParseFunc {
	return func(b []byte, _ uint8) (cc.Fields, error) {
		if len(b) < 3+1+checksumSize {
			return nil, cc.Packetf("subsequent segment: need %d bytes, have %d", 3+1+checksumSize, len(b))
		}
		body, crc := splitChecksum(b)
		s := &SubsequentSegment{
			SessionID:      body[1] >> 4,
			DatagramSize:   int(cmd&sizeBitsMask)<<8 | int(body[0]),
			DatagramOffset: int(body[1]&sizeBitsMask)<<8 | int(body[2]),
			Checksum:       crc,
		}
		rest := body[3:]
		if body[1]&flagExtension != 0 {
			var err error
			if s.HeaderExtension, rest, err = parseExtension(rest); err != nil {
				return nil, err
			}
		}
		if len(rest) == 0 {
			return nil, cc.Packetf("subsequent segment: empty payload")
		}
		s.Payload = append([]byte(nil), rest...)
		return s, nil
	}
}

// SegmentRequest asks the sender to retransmit the segment at Offset.
type SegmentRequest struct {
	SessionID      uint8
	DatagramOffset int
}

func (*SegmentRequest) CommandClass() cc.CommandClass { return cc.TransportService }
func (*SegmentRequest) CommandID() uint8              { return CmdSegmentRequest }

func (s *SegmentRequest) Serialize(uint8) ([]byte, error) {
	if err := validateSession(s.SessionID, s.DatagramOffset); err != nil {
		return nil, err
	}
	return []byte{s.SessionID<<4 | uint8(s.DatagramOffset>>8)&sizeBitsMask, byte(s.DatagramOffset)}, nil
}

func parseSegmentRequest(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 2 {
		return nil, cc.Packetf("segment request: need 2 bytes, have %d", len(b))
	}
	return &SegmentRequest{
		SessionID:      b[0] >> 4,
		DatagramOffset: int(b[0]&sizeBitsMask)<<8 | int(b[1]),
	}, nil
}

// SegmentComplete confirms reception of a whole datagram.
type SegmentComplete struct {
	SessionID uint8
}

func (*SegmentComplete) CommandClass() cc.CommandClass { return cc.TransportService }
func (*SegmentComplete) CommandID() uint8              { return CmdSegmentComplete }

func (s *SegmentComplete) Serialize(uint8) ([]byte, error) {
	if err := validateSession(s.SessionID, 0); err != nil {
		return nil, err
	}
	return []byte{s.SessionID << 4}, nil
}

func parseSegmentComplete(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("segment complete: missing session id")
	}
	return &SegmentComplete{SessionID: b[0] >> 4}, nil
}

// SegmentWait tells the sender to hold off while PendingSegments of
// another datagram are outstanding.
type SegmentWait struct {
	PendingSegments uint8
}

func (*SegmentWait) CommandClass() cc.CommandClass { return cc.TransportService }
func (*SegmentWait) CommandID() uint8              { return CmdSegmentWait }

func (s *SegmentWait) Serialize(uint8) ([]byte, error) { return []byte{s.PendingSegments}, nil }

func parseSegmentWait(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("segment wait: missing pending segments")
	}
	return &SegmentWait{PendingSegments: b[0]}, nil
}
