package encap

import (
	"sync"
	"time"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/commandclass/supervision"
	"github.com/backkem/zwave/pkg/wire"
	"github.com/pion/logging"
)

// Outcome is the result of a supervised command as reported by the node.
type Outcome struct {
	NodeID      cc.NodeID
	SessionID   uint8
	Status      supervision.Status
	MoreUpdates bool
	Duration    wire.Duration

	// Original is the supervised command, without the supervision layer.
	Original *cc.Command
}

// Final reports whether no further updates follow for the session.
func (o Outcome) Final() bool {
	return !o.MoreUpdates && o.Status != supervision.Working
}

// DefaultSupervisionTimeout bounds the wait for a supervision report. A
// working report extends it by the reported duration.
const DefaultSupervisionTimeout = 10 * time.Second

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// Timeout releases a session when no report arrives for this long.
	// Defaults to DefaultSupervisionTimeout.
	Timeout time.Duration

	// OnExpired is called from the timer goroutine with cc.ErrSessionTimeout
	// when a session is released without a final report. Optional.
	OnExpired func(node cc.NodeID, sessionID uint8, err error)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

type sessionKey struct {
	node    cc.NodeID
	session uint8
}

// supervised is one outstanding session.
type supervised struct {
	original *cc.Command
	timer    *time.Timer
	armed    uint64
}

func (p *supervised) stop() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Supervisor tracks outstanding supervision sessions per node. Each
// session has its own eviction timer.
//
// Thread-safe.
type Supervisor struct {
	timeout   time.Duration
	onExpired func(cc.NodeID, uint8, error)
	log       logging.LeveledLogger

	next    map[cc.NodeID]uint8
	pending map[sessionKey]*supervised
	closed  bool

	mu sync.Mutex
}

// NewSupervisor creates an empty session table.
func NewSupervisor(config SupervisorConfig) *Supervisor {
	s := &Supervisor{
		timeout:   config.Timeout,
		onExpired: config.OnExpired,
		next:      make(map[cc.NodeID]uint8),
		pending:   make(map[sessionKey]*supervised),
	}
	if s.timeout <= 0 {
		s.timeout = DefaultSupervisionTimeout
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("supervision")
	}
	return s
}

// NextSessionID returns the next session id for node, cycling through
// 1-63 and skipping ids still outstanding when possible.
func (s *Supervisor) NextSessionID(node cc.NodeID) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next[node]
	for i := 0; i < supervision.MaxSessionID; i++ {
		id = id%supervision.MaxSessionID + 1
		if _, busy := s.pending[sessionKey{node, id}]; !busy {
			break
		}
	}
	s.next[node] = id
	return id
}

// Track records original as the command supervised by session. A session
// id still outstanding is replaced.
func (s *Supervisor) Track(node cc.NodeID, session uint8, original *cc.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	key := sessionKey{node, session}
	if old, ok := s.pending[key]; ok {
		old.stop()
	}
	p := &supervised{original: original}
	s.pending[key] = p
	s.arm(key, p, s.timeout)
}

// arm restarts the eviction timer of p. Must be called with s.mu held.
func (s *Supervisor) arm(key sessionKey, p *supervised, after time.Duration) {
	p.stop()
	p.armed++
	armed := p.armed
	p.timer = time.AfterFunc(after, func() { s.expire(key, p, armed) })
}

func (s *Supervisor) expire(key sessionKey, p *supervised, armed uint64) {
	s.mu.Lock()
	if s.pending[key] != p || p.armed != armed {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()

	if s.log != nil {
		s.log.Warnf("supervision session %d of node %d expired without a final report", key.session, key.node)
	}
	if s.onExpired != nil {
		s.onExpired(key.node, key.session, cc.ErrSessionTimeout)
	}
}

// Pending returns the number of outstanding sessions for node.
func (s *Supervisor) Pending(node cc.NodeID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.pending {
		if k.node == node {
			n++
		}
	}
	return n
}

// Resolve matches a supervision report to its session. The session is
// released once the outcome is final; a working report restarts its timer
// with the reported duration added. ok is false for reports that are
// not supervision reports or belong to no known session.
func (s *Supervisor) Resolve(cmd *cc.Command) (Outcome, bool) {
	if cmd == nil {
		return Outcome{}, false
	}
	report, ok := cmd.Fields.(*supervision.Report)
	if !ok {
		return Outcome{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{cmd.NodeID, report.SessionID}
	p, ok := s.pending[key]
	if !ok {
		return Outcome{}, false
	}
	o := Outcome{
		NodeID:      cmd.NodeID,
		SessionID:   report.SessionID,
		Status:      report.Status,
		MoreUpdates: report.MoreUpdates,
		Duration:    report.Duration,
		Original:    p.original,
	}
	if o.Final() {
		p.stop()
		delete(s.pending, key)
		return o, true
	}
	extra, _ := report.Duration.ToDuration()
	s.arm(key, p, s.timeout+extra)
	return o, true
}

// RemoveNode drops all sessions of node.
func (s *Supervisor) RemoveNode(node cc.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.next, node)
	for k, p := range s.pending {
		if k.node == node {
			p.stop()
			delete(s.pending, k)
		}
	}
}

// Close stops all timers. Later sessions are not tracked.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, p := range s.pending {
		p.stop()
		delete(s.pending, k)
	}
	s.closed = true
}
