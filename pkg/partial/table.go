// Package partial reassembles reports that a node splits over several
// frames into one command.
//
// Parts implement cc.PartialFields. Sessions are keyed by node, command
// class and the class-defined discriminator. Parts without an ordering
// key are concatenated in arrival order: a part must count down by one
// from the previous part, and a repeated countdown value is a
// retransmission that replaces the part at that position. Parts
// implementing cc.OrderedPartial are sorted by their key instead.
//
// A session that does not complete within the timeout is abandoned: it
// is logged, reported to OnAbandoned and never merged. A countdown that
// skips a value drops the session the same way; the remaining parts of
// that report are discarded until its last part arrives.
package partial

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/pion/logging"
)

// DefaultTimeout is used when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Key identifies one session.
type Key struct {
	NodeID        cc.NodeID
	CommandClass  cc.CommandClass
	Discriminator uint32
}

func (k Key) String() string {
	return fmt.Sprintf("node %d %s #%d", k.NodeID, k.CommandClass, k.Discriminator)
}

// Config configures a Table.
type Config struct {
	// Timeout abandons a session this long after its first part.
	Timeout time.Duration

	// OnAbandoned is called with cc.ErrSessionTimeout from the timer
	// goroutine when a session expires, and with cc.ErrSessionIncomplete
	// from Add when a session is dropped for a missing part or a new
	// report. It is never called with the table locked. Optional.
	OnAbandoned func(key Key, err error)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Session describes a session in progress.
type Session struct {
	Key     Key
	Parts   int
	Started time.Time
}

type part struct {
	toFollow uint8
	order    int
	cmd      *cc.Command
}

// session collects the parts of one report.
type session struct {
	key     Key
	ordered bool
	parts   []part
	started time.Time
	timer   *time.Timer

	// discarding sessions swallow the tail of a report that lost a part.
	// They keep only the latest part and are never merged.
	discarding bool
}

func (s *session) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// last returns the countdown of the most recent part.
func (s *session) last() uint8 {
	return s.parts[len(s.parts)-1].toFollow
}

// addResult tells Add what became of a part.
type addResult uint8

const (
	// folded: the part joined the session.
	folded addResult = iota

	// restart: the part begins a new report.
	restart

	// gap: a part between the session and this one is missing.
	gap
)

// add folds p into the session.
func (s *session) add(p part) addResult {
	if s.ordered {
		for i, q := range s.parts {
			if q.order == p.order {
				s.parts[i] = p
				return folded
			}
			if q.toFollow == p.toFollow {
				return restart
			}
		}
		s.parts = append(s.parts, p)
		return folded
	}

	last := s.last()
	if s.discarding {
		if p.toFollow > last {
			return restart
		}
		s.parts[0] = p
		return folded
	}
	for i, q := range s.parts {
		if q.toFollow == p.toFollow {
			s.parts[i] = p
			return folded
		}
	}
	switch {
	case p.toFollow > last:
		return restart
	case p.toFollow == last-1:
		s.parts = append(s.parts, p)
		return folded
	default:
		return gap
	}
}

// complete reports whether every part has arrived.
func (s *session) complete() bool {
	if s.discarding {
		return false
	}
	if !s.ordered {
		return s.last() == 0
	}
	var highest uint8
	seenLast := false
	for _, p := range s.parts {
		highest = max(highest, p.toFollow)
		if p.toFollow == 0 {
			seenLast = true
		}
	}
	return seenLast && len(s.parts) == int(highest)+1
}

// merge combines the parts, ordered by key when the class declares one.
func (s *session) merge() (*cc.Command, error) {
	if s.ordered {
		sort.SliceStable(s.parts, func(i, j int) bool { return s.parts[i].order < s.parts[j].order })
	}
	fields := make([]cc.Fields, len(s.parts))
	for i, p := range s.parts {
		fields[i] = p.cmd.Fields
	}
	final := s.parts[len(s.parts)-1].cmd
	merged, err := final.Fields.(cc.PartialFields).MergePartials(fields)
	if err != nil {
		return nil, fmt.Errorf("partial: merge %s: %w", s.key, err)
	}
	return &cc.Command{
		Identity: final.Identity,
		NodeID:   final.NodeID,
		Endpoint: final.Endpoint,
		Fields:   merged,
	}, nil
}

// Table holds the sessions of all nodes. Each session has its own
// eviction timer, armed by its first part and stopped on completion.
//
// Thread-safe.
type Table struct {
	timeout     time.Duration
	onAbandoned func(Key, error)
	log         logging.LeveledLogger

	sessions map[Key]*session
	closed   bool

	mu sync.Mutex
}

// NewTable creates an empty table.
func NewTable(config Config) *Table {
	t := &Table{
		timeout:     config.Timeout,
		onAbandoned: config.OnAbandoned,
		sessions:    make(map[Key]*session),
	}
	if t.timeout <= 0 {
		t.timeout = DefaultTimeout
	}
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("partial")
	}
	return t
}

// Add passes cmd through the table. Commands that are not partial
// reports, and a last part arriving with no session open, are returned
// unchanged with done set. Otherwise cmd is parked and done stays false
// until the last part arrives, when the merged command is returned.
func (t *Table) Add(cmd *cc.Command) (merged *cc.Command, done bool, err error) {
	if cmd == nil {
		return nil, false, cc.Constructionf("nil command")
	}
	pf, ok := cmd.Fields.(cc.PartialFields)
	if !ok {
		return cmd, true, nil
	}
	disc, toFollow := pf.PartialSession()
	key := Key{NodeID: cmd.NodeID, CommandClass: cmd.CommandClass, Discriminator: disc}
	p := part{toFollow: toFollow, cmd: cmd}
	op, ordered := cmd.Fields.(cc.OrderedPartial)
	if ordered {
		p.order = op.PartialOrder()
	}

	merged, done, dropped, err := t.add(key, p, ordered)
	if dropped && t.onAbandoned != nil {
		t.onAbandoned(key, cc.ErrSessionIncomplete)
	}
	return merged, done, err
}

// add runs Add under the lock. dropped is set when an open session was
// abandoned because of p.
func (t *Table) add(key Key, p part, ordered bool) (merged *cc.Command, done, dropped bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, false, false, nil
	}

	s, ok := t.sessions[key]
	if ok {
		switch s.add(p) {
		case folded:
			if s.discarding {
				if p.toFollow == 0 {
					t.remove(s)
				}
				return nil, false, false, nil
			}
		case restart:
			dropped = t.drop(s, "countdown %d starts a new report", p.toFollow)
			ok = false
		case gap:
			dropped = t.drop(s, "countdown %d skips a part", p.toFollow)
			if p.toFollow > 0 {
				t.open(key, p, ordered).discarding = true
			}
			return nil, false, dropped, nil
		}
	}
	if !ok {
		if p.toFollow == 0 && !ordered {
			return p.cmd, true, dropped, nil
		}
		s = t.open(key, p, ordered)
	}

	if !s.complete() {
		return nil, false, dropped, nil
	}
	t.remove(s)
	merged, err = s.merge()
	if err != nil {
		return nil, false, dropped, err
	}
	if t.log != nil {
		t.log.Tracef("%s: merged %d parts", key, len(s.parts))
	}
	return merged, true, dropped, nil
}

func (t *Table) open(key Key, p part, ordered bool) *session {
	s := &session{key: key, ordered: ordered, parts: []part{p}, started: time.Now()}
	t.sessions[key] = s
	s.timer = time.AfterFunc(t.timeout, func() { t.expire(s) })
	return s
}

func (t *Table) remove(s *session) {
	s.stop()
	delete(t.sessions, s.key)
}

// drop removes s without merging it. It reports whether s was collecting
// a report, as opposed to discarding the tail of one already dropped.
func (t *Table) drop(s *session, format string, args ...any) bool {
	t.remove(s)
	if s.discarding {
		return false
	}
	if t.log != nil {
		t.log.Warnf("%s: dropped after %d parts: "+format, append([]any{s.key, len(s.parts)}, args...)...)
	}
	return true
}

func (t *Table) expire(s *session) {
	t.mu.Lock()
	if t.sessions[s.key] != s {
		t.mu.Unlock()
		return
	}
	delete(t.sessions, s.key)
	t.mu.Unlock()

	if s.discarding {
		return
	}
	if t.log != nil {
		t.log.Warnf("%s: abandoned after %d parts in %v", s.key, len(s.parts), time.Since(s.started).Round(time.Millisecond))
	}
	if t.onAbandoned != nil {
		t.onAbandoned(s.key, cc.ErrSessionTimeout)
	}
}

// Sessions returns the sessions in progress for node.
func (t *Table) Sessions(node cc.NodeID) []Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Session
	for k, s := range t.sessions {
		if k.NodeID == node && !s.discarding {
			out = append(out, Session{Key: k, Parts: len(s.parts), Started: s.started})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.CommandClass != out[j].Key.CommandClass {
			return out[i].Key.CommandClass < out[j].Key.CommandClass
		}
		return out[i].Key.Discriminator < out[j].Key.Discriminator
	})
	return out
}

// Count returns the number of sessions in progress.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, s := range t.sessions {
		if !s.discarding {
			n++
		}
	}
	return n
}

// RemoveNode drops all sessions of node without reporting them.
func (t *Table) RemoveNode(node cc.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, s := range t.sessions {
		if k.NodeID == node {
			s.stop()
			delete(t.sessions, k)
		}
	}
}

// Close stops all timers. Later parts are ignored.
func (t *Table) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, s := range t.sessions {
		s.stop()
		delete(t.sessions, k)
	}
	t.closed = true
}
