package encap

import (
	"fmt"
	"sync"
	"time"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/commandclass/transportservice"
	"github.com/pion/logging"
)

const (
	defaultMaxSegmentPayload = transportservice.DefaultMaxSegmentPayload

	// DefaultReassemblyTimeout bounds the gap between segments of one datagram.
	DefaultReassemblyTimeout = 800 * time.Millisecond
)

// Fragment splits a serialized command into transport service frames when
// it exceeds the segment payload size. Smaller frames are returned as the
// only element, unchanged.
func (e *Engine) Fragment(frame []byte, sessionID uint8) ([][]byte, error) {
	if len(frame) <= e.maxSegment {
		return [][]byte{frame}, nil
	}
	if len(frame) > transportservice.MaxDatagramSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDatagramTooLarge, len(frame))
	}

	var frames [][]byte
	for offset := 0; offset < len(frame); offset += e.maxSegment {
		end := min(offset+e.maxSegment, len(frame))
		var seg cc.Fields
		if offset == 0 {
			seg = &transportservice.FirstSegment{SessionID: sessionID, DatagramSize: len(frame), Payload: frame[:end]}
		} else {
			seg = &transportservice.SubsequentSegment{SessionID: sessionID, DatagramSize: len(frame), DatagramOffset: offset, Payload: frame[offset:end]}
		}
		cmd, err := cc.NewCommand(0, 0, seg)
		if err != nil {
			return nil, err
		}
		data, err := e.registry.Encode(cmd)
		if err != nil {
			return nil, err
		}
		frames = append(frames, data)
	}
	return frames, nil
}

// ReassemblerConfig configures a Reassembler.
type ReassemblerConfig struct {
	// Timeout abandons a datagram when no segment arrives for this long.
	// Defaults to DefaultReassemblyTimeout.
	Timeout time.Duration

	// OnAbandoned is called from the timer goroutine with cc.ErrSessionTimeout
	// when a datagram is abandoned. Optional.
	OnAbandoned func(node cc.NodeID, sessionID uint8, err error)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

type datagramKey struct {
	node    cc.NodeID
	session uint8
}

// datagram is one reassembly in progress.
type datagram struct {
	size     int
	buf      []byte
	received []bool
	missing  int
	timer    *time.Timer
	armed    uint64
}

func (d *datagram) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// firstMissing returns the offset of the first byte not yet received.
func (d *datagram) firstMissing() int {
	for i, ok := range d.received {
		if !ok {
			return i
		}
	}
	return -1
}

// Reassembler collects transport service segments into datagrams, keyed
// by node and session id. Each datagram has its own eviction timer.
//
// Thread-safe.
type Reassembler struct {
	timeout     time.Duration
	onAbandoned func(cc.NodeID, uint8, error)
	log         logging.LeveledLogger

	datagrams map[datagramKey]*datagram
	closed    bool

	mu sync.Mutex
}

// NewReassembler creates a reassembler.
func NewReassembler(config ReassemblerConfig) *Reassembler {
	r := &Reassembler{
		timeout:     config.Timeout,
		onAbandoned: config.OnAbandoned,
		datagrams:   make(map[datagramKey]*datagram),
	}
	if r.timeout <= 0 {
		r.timeout = DefaultReassemblyTimeout
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("segments")
	}
	return r
}

// Add stores one segment. It returns the datagram and true once every
// byte has arrived. A segment failing its checksum is rejected with a
// *cc.DecapsulationError and leaves the datagram untouched.
func (r *Reassembler) Add(node cc.NodeID, seg transportservice.Segment) ([]byte, bool, error) {
	if !seg.Valid() {
		return nil, false, &cc.DecapsulationError{Layer: cc.TransportService, Reason: cc.ReasonChecksum}
	}
	size, offset, data := seg.Size(), seg.Offset(), seg.Data()
	if offset+len(data) > size {
		return nil, false, &cc.DecapsulationError{
			Layer:  cc.TransportService,
			Reason: cc.ReasonMalformed,
			Err:    fmt.Errorf("%d bytes at offset %d exceed datagram size %d", len(data), offset, size),
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, nil
	}

	key := datagramKey{node, seg.Session()}
	d, ok := r.datagrams[key]
	_, first := seg.(*transportservice.FirstSegment)
	if ok && (d.size != size || first && d.received[0]) {
		// A new datagram reuses the session id.
		d.stop()
		ok = false
	}
	if !ok {
		d = &datagram{size: size, buf: make([]byte, size), received: make([]bool, size), missing: size}
		r.datagrams[key] = d
	}

	copy(d.buf[offset:], data)
	for i := offset; i < offset+len(data); i++ {
		if !d.received[i] {
			d.received[i] = true
			d.missing--
		}
	}

	if d.missing == 0 {
		d.stop()
		delete(r.datagrams, key)
		return d.buf, true, nil
	}

	d.stop()
	d.armed++
	armed := d.armed
	d.timer = time.AfterFunc(r.timeout, func() { r.expire(key, d, armed) })
	return nil, false, nil
}

func (r *Reassembler) expire(key datagramKey, d *datagram, armed uint64) {
	r.mu.Lock()
	if r.datagrams[key] != d || d.armed != armed {
		r.mu.Unlock()
		return
	}
	delete(r.datagrams, key)
	r.mu.Unlock()

	if r.log != nil {
		r.log.Warnf("abandoned datagram from node %d session %d: %d of %d bytes missing", key.node, key.session, d.missing, d.size)
	}
	if r.onAbandoned != nil {
		r.onAbandoned(key.node, key.session, cc.ErrSessionTimeout)
	}
}

// Missing returns the offset of the first missing byte of a datagram in
// progress, for a segment request.
func (r *Reassembler) Missing(node cc.NodeID, sessionID uint8) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.datagrams[datagramKey{node, sessionID}]
	if !ok {
		return 0, false
	}
	return d.firstMissing(), true
}

// RemoveNode drops every datagram from node.
func (r *Reassembler) RemoveNode(node cc.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, d := range r.datagrams {
		if k.node == node {
			d.stop()
			delete(r.datagrams, k)
		}
	}
}

// Close stops all timers. Later segments are ignored.
func (r *Reassembler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, d := range r.datagrams {
		d.stop()
		delete(r.datagrams, k)
	}
	r.closed = true
}
