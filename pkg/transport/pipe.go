package transport

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures link behavior simulation.
// Use this to test retransmission and reassembly under a lossy radio.
type NetworkCondition struct {
	// DropRate is the probability of dropping a frame (0.0 - 1.0).
	DropRate float64

	// DelayMin is the minimum delay added to each frame.
	DelayMin time.Duration

	// DelayMax is the maximum delay added to each frame.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration

	// DuplicateRate is the probability of delivering a frame twice (0.0 - 1.0).
	DuplicateRate float64

	// CorruptRate is the probability of flipping one payload byte (0.0 - 1.0).
	// Corrupted frames fail their checksum at the receiver.
	CorruptRate float64
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic frame delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers frames.
	// Default: 1ms
	ProcessInterval time.Duration
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe is an in-memory link between a controller and a node.
// It wraps pion's test.Bridge, which keeps frame boundaries, and adds
// condition simulation on send.
//
// By default, Pipe delivers frames in a background goroutine.
// Use SetAutoProcess(false) or NewPipeWithConfig for manual control.
type Pipe struct {
	bridge     *test.Bridge
	controller *Endpoint
	node       *Endpoint

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if config.ProcessInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}
	p.controller = &Endpoint{conn: p.bridge.GetConn0(), pipe: p}
	p.node = &Endpoint{conn: p.bridge.GetConn1(), pipe: p}

	if p.autoProcess {
		p.startAutoProcess()
	}
	return p
}

func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}()
}

// SetAutoProcess enables or disables automatic frame delivery.
// When disabled, you must call Tick() or Process() manually.
func (p *Pipe) SetAutoProcess(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.autoProcess == enabled {
		return
	}
	p.autoProcess = enabled

	if enabled {
		p.stopCh = make(chan struct{})
		p.startAutoProcess()
	} else {
		close(p.stopCh)
		p.wg.Wait()
	}
}

// AutoProcess returns whether auto-processing is enabled.
func (p *Pipe) AutoProcess() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoProcess
}

// SetCondition configures condition simulation for both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Condition returns the current condition configuration.
func (p *Pipe) Condition() NetworkCondition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.condition
}

// Controller returns the controller side of the pipe.
func (p *Pipe) Controller() *Endpoint { return p.controller }

// Node returns the node side of the pipe.
func (p *Pipe) Node() *Endpoint { return p.node }

// Tick delivers one frame in each direction (if available).
// Returns the number of frames delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued frames and returns how many were delivered.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both endpoints and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.controller.conn.Close()
	err1 := p.node.conn.Close()
	if err0 != nil {
		return err0
	}
	return err1
}

// sample draws the condition effects for one frame.
func (p *Pipe) sample() (drop bool, delay time.Duration, duplicate bool, corrupt int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cond := p.condition
	if cond.DropRate > 0 && p.rng.Float64() < cond.DropRate {
		return true, 0, false, -1
	}
	if cond.DelayMax > 0 {
		delay = cond.DelayMin
		if cond.DelayMax > cond.DelayMin {
			delay += time.Duration(p.rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
		}
	}
	duplicate = cond.DuplicateRate > 0 && p.rng.Float64() < cond.DuplicateRate
	corrupt = -1
	if cond.CorruptRate > 0 && p.rng.Float64() < cond.CorruptRate {
		corrupt = p.rng.Intn(1 << 16)
	}
	return false, delay, duplicate, corrupt
}

// Endpoint is one side of a Pipe.
type Endpoint struct {
	conn net.Conn
	pipe *Pipe
}

// Send encodes f and writes it to the peer, subject to the pipe's
// network condition. A dropped frame is not an error.
func (e *Endpoint) Send(f Frame) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return err
	}

	drop, delay, duplicate, corrupt := e.pipe.sample()
	if drop {
		return nil
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if corrupt >= 0 {
		data[headerSize+corrupt%len(f.Payload)] ^= 0xFF
	}
	if duplicate {
		if _, err := e.conn.Write(data); err != nil {
			return err
		}
	}
	_, err = e.conn.Write(data)
	return err
}

// Receive blocks until a frame arrives. A frame that fails to decode is
// returned as an error; the endpoint stays usable.
func (e *Endpoint) Receive() (Frame, error) {
	buf := make([]byte, headerSize+MaxPayloadSize+trailerSize)
	n, err := e.conn.Read(buf)
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := f.UnmarshalBinary(buf[:n]); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// SetReadDeadline sets the deadline for Receive.
func (e *Endpoint) SetReadDeadline(t time.Time) error {
	return e.conn.SetReadDeadline(t)
}

// Close closes this side of the pipe.
func (e *Endpoint) Close() error {
	return e.conn.Close()
}
