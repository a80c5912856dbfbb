package transport

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/wire"
)

const (
	// MaxPayloadSize is the largest command a single radio frame carries.
	// Larger commands must be split with transport service first.
	MaxPayloadSize = 46

	// BroadcastNodeID addresses every node on the link.
	BroadcastNodeID cc.NodeID = 0xFF

	headerSize  = 4
	trailerSize = 2
)

// Frame is one command addressed from a source to a destination node.
type Frame struct {
	Source      cc.NodeID
	Destination cc.NodeID
	// Payload is a serialized command starting at the command class id.
	Payload []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("%d->%d %X", f.Source, f.Destination, f.Payload)
}

// MarshalBinary encodes the frame as big-endian source and destination
// ids, the payload and a CRC-16 over everything before it.
func (f Frame) MarshalBinary() ([]byte, error) {
	if len(f.Payload) == 0 {
		return nil, ErrEmptyFrame
	}
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(f.Payload))
	}
	b := make([]byte, 0, headerSize+len(f.Payload)+trailerSize)
	b, _ = wire.AppendUint(b, uint64(f.Source), 2)
	b, _ = wire.AppendUint(b, uint64(f.Destination), 2)
	b = append(b, f.Payload...)
	b, _ = wire.AppendUint(b, uint64(wire.CRC16(b)), 2)
	return b, nil
}

// UnmarshalBinary decodes and checks a frame. The payload is copied.
func (f *Frame) UnmarshalBinary(b []byte) error {
	if len(b) <= headerSize+trailerSize {
		return fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	body := b[:len(b)-trailerSize]
	want, _ := wire.ReadUint(b, len(body), 2, wire.BigEndian)
	if got := wire.CRC16(body); uint64(got) != want {
		return fmt.Errorf("%w: got %04X, frame carries %04X", ErrChecksum, got, want)
	}
	src, _ := wire.ReadUint(body, 0, 2, wire.BigEndian)
	dst, _ := wire.ReadUint(body, 2, 2, wire.BigEndian)
	f.Source = cc.NodeID(src)
	f.Destination = cc.NodeID(dst)
	f.Payload = append([]byte(nil), body[headerSize:]...)
	return nil
}

// FrameHandler is called for each received frame.
// Implementations should return quickly; the link's read loop waits for them.
type FrameHandler func(f Frame)
