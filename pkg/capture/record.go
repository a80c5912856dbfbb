package capture

import (
	"sync"
	"time"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/google/uuid"
)

// Record is one captured frame.
type Record struct {
	Timestamp time.Time `cbor:"1,keyasint"`

	// Trace groups records that belong to one operation (UUID).
	Trace string `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`
	Node      cc.NodeID `cbor:"4,keyasint"`
	Data      []byte    `cbor:"5,keyasint"`

	// Command is a summary of the decoded command, when decoding succeeded.
	Command string `cbor:"6,keyasint,omitempty"`

	// Layers lists the encapsulation classes found around the command,
	// outermost first.
	Layers []cc.CommandClass `cbor:"7,keyasint,omitempty"`

	// Error describes why the frame could not be decoded.
	Error string `cbor:"8,keyasint,omitempty"`
}

// Direction indicates frame flow relative to the driver.
type Direction uint8

const (
	// DirectionIn is a frame received from a node.
	DirectionIn Direction = 0
	// DirectionOut is a frame sent to a node.
	DirectionOut Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// NewTrace returns a fresh trace id.
func NewTrace() string {
	return uuid.New().String()
}

// Recorder receives captured frames. Implementations must be thread-safe
// and should not block.
type Recorder interface {
	Record(r Record)
}

// NoopRecorder discards all records.
type NoopRecorder struct{}

// Record discards r.
func (NoopRecorder) Record(Record) {}

// Buffer keeps records in memory.
type Buffer struct {
	mu      sync.Mutex
	records []Record
}

// Record appends r.
func (b *Buffer) Record(r Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, r)
}

// Records returns a copy of the records captured so far.
func (b *Buffer) Records() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Record(nil), b.records...)
}

// Reset drops all records.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = nil
}

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*Buffer)(nil)
	_ Recorder = (*StreamRecorder)(nil)
)
