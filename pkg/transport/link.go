package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/pion/logging"
)

// Link attaches a node id to an Endpoint. It runs a read loop that
// delivers frames addressed to the local node, or broadcast, to the
// configured FrameHandler.
type Link struct {
	endpoint *Endpoint
	local    cc.NodeID
	handler  FrameHandler
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	mu      sync.RWMutex
	started bool
	closed  bool
}

// LinkConfig configures a Link.
type LinkConfig struct {
	// Endpoint is the side of a Pipe the link reads from and writes to.
	// Required.
	Endpoint *Endpoint

	// LocalNodeID is the node id frames are sent from and received for.
	LocalNodeID cc.NodeID

	// FrameHandler is called for each received frame.
	// Required.
	FrameHandler FrameHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewLink creates a link with the given configuration.
func NewLink(config LinkConfig) (*Link, error) {
	if config.Endpoint == nil {
		return nil, ErrNoEndpoint
	}
	if config.FrameHandler == nil {
		return nil, ErrNoHandler
	}

	l := &Link{
		endpoint: config.Endpoint,
		local:    config.LocalNodeID,
		handler:  config.FrameHandler,
		closeCh:  make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("transport")
	}
	return l, nil
}

// LocalNodeID returns the node id of this side of the link.
func (l *Link) LocalNodeID() cc.NodeID { return l.local }

// Start begins the read loop.
func (l *Link) Start() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.started {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	l.started = true
	l.mu.Unlock()

	if l.log != nil {
		l.log.Infof("starting link for node %d", l.local)
	}

	l.wg.Add(1)
	go l.readLoop()
	return nil
}

// Stop closes the endpoint and waits for the read loop to exit.
func (l *Link) Stop() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	l.mu.Unlock()

	if l.log != nil {
		l.log.Infof("stopping link for node %d", l.local)
	}

	close(l.closeCh)
	l.endpoint.SetReadDeadline(time.Now())
	l.endpoint.Close()
	l.wg.Wait()
	return nil
}

// Send transmits payload from the local node to dst.
func (l *Link) Send(dst cc.NodeID, payload []byte) error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrClosed
	}
	l.mu.RUnlock()

	f := Frame{Source: l.local, Destination: dst, Payload: payload}
	if l.log != nil {
		l.log.Debugf("sending %s", f)
	}
	if err := l.endpoint.Send(f); err != nil {
		if l.log != nil {
			l.log.Warnf("send to node %d failed: %v", dst, err)
		}
		return err
	}
	return nil
}

// SendAll transmits each payload in order, stopping at the first error.
func (l *Link) SendAll(dst cc.NodeID, payloads [][]byte) error {
	for _, p := range payloads {
		if err := l.Send(dst, p); err != nil {
			return err
		}
	}
	return nil
}

func (l *Link) readLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.closeCh:
			return
		default:
		}

		f, err := l.endpoint.Receive()
		if err != nil {
			select {
			case <-l.closeCh:
				return
			default:
			}
			if errors.Is(err, ErrChecksum) || errors.Is(err, ErrShortFrame) {
				if l.log != nil {
					l.log.Warnf("discarding frame: %v", err)
				}
				continue
			}
			if l.log != nil {
				l.log.Warnf("read error: %v", err)
			}
			return
		}

		if f.Destination != l.local && f.Destination != BroadcastNodeID {
			if l.log != nil {
				l.log.Debugf("ignoring frame for node %d", f.Destination)
			}
			continue
		}
		if l.log != nil {
			l.log.Debugf("received %s", f)
		}
		l.handler(f)
	}
}
