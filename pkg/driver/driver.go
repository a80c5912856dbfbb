package driver

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/backkem/zwave/pkg/capture"
	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/commandclass"
	"github.com/backkem/zwave/pkg/commandclass/s0"
	"github.com/backkem/zwave/pkg/commandclass/s2"
	"github.com/backkem/zwave/pkg/commandclass/transportservice"
	"github.com/backkem/zwave/pkg/commandclass/version"
	"github.com/backkem/zwave/pkg/encap"
	"github.com/backkem/zwave/pkg/partial"
	"github.com/backkem/zwave/pkg/profile"
	"github.com/backkem/zwave/pkg/security"
	"github.com/backkem/zwave/pkg/transport"
	"github.com/backkem/zwave/pkg/values"
	"github.com/pion/logging"
)

// nodeRemover is implemented by collaborators holding per-node state.
type nodeRemover interface {
	RemoveNode(node cc.NodeID)
}

// versionRecorder is implemented by profiles that learn reported versions.
type versionRecorder interface {
	SetVersion(node cc.NodeID, class cc.CommandClass, version uint8)
}

// Driver is the codec pipeline between a transport and the application.
//
// Decode is synchronous and may be called from several goroutines.
type Driver struct {
	config    Config
	registry  *cc.Registry
	engine    *encap.Engine
	segments  *encap.Reassembler
	partials  *partial.Table
	directory *values.Directory
	keyring   *security.Keyring
	recorder  capture.Recorder
	metrics   *metrics
	closers   []io.Closer
	log       logging.LeveledLogger

	mu         sync.Mutex
	tsSessions map[cc.NodeID]uint8
	closed     bool
}

// New creates a driver.
func New(config Config) (*Driver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	d := &Driver{
		config:     config,
		recorder:   config.Capture,
		tsSessions: make(map[cc.NodeID]uint8),
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("driver")
	}

	var err error
	if d.metrics, err = newMetrics(config.Registerer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	if d.registry, err = commandclass.NewRegistry(); err != nil {
		return nil, err
	}

	provider := config.Security
	if provider == nil && len(config.NetworkKey) > 0 {
		d.keyring, err = security.NewKeyring(security.KeyringConfig{
			LocalNode:     config.LocalNodeID,
			NetworkKey:    config.NetworkKey,
			LoggerFactory: config.LoggerFactory,
		})
		if err != nil {
			return nil, err
		}
		provider = d.keyring
	}

	if config.Profile == nil && config.ProfileDir != "" {
		db := profile.NewDatabase()
		n, err := db.LoadDirectory(config.ProfileDir)
		if err != nil {
			return nil, err
		}
		if d.log != nil {
			d.log.Infof("loaded %d device profiles from %s", n, config.ProfileDir)
		}
		d.config.Profile = db
	}

	if d.recorder == nil && config.CapturePath != "" {
		s, err := capture.OpenFile(config.CapturePath)
		if err != nil {
			return nil, fmt.Errorf("open capture: %w", err)
		}
		d.recorder = s
		d.closers = append(d.closers, s)
	}
	if d.recorder == nil {
		d.recorder = capture.NoopRecorder{}
	}

	d.engine, err = encap.NewEngine(encap.Config{
		Registry:           d.registry,
		Security:           provider,
		LocalNode:          config.LocalNodeID,
		MaxSegmentPayload:  config.MaxSegmentPayload,
		SupervisionTimeout: config.ResponseTimeout,
		OnSupervisionExpired: func(node cc.NodeID, _ uint8, err error) {
			d.abandoned("supervision", node, err)
		},
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	d.segments = encap.NewReassembler(encap.ReassemblerConfig{
		Timeout: config.ReassemblyTimeout,
		OnAbandoned: func(node cc.NodeID, _ uint8, err error) {
			d.abandoned("datagram", node, err)
		},
		LoggerFactory: config.LoggerFactory,
	})
	d.partials = partial.NewTable(partial.Config{
		Timeout: config.ResponseTimeout,
		OnAbandoned: func(key partial.Key, err error) {
			d.abandoned("partial", key.NodeID, err)
		},
		LoggerFactory: config.LoggerFactory,
	})
	d.directory = values.NewDirectory(values.DirectoryConfig{
		Profile:       d.config.Profile,
		Sink:          values.SinkFunc(d.publish),
		LoggerFactory: config.LoggerFactory,
	})
	return d, nil
}

func (d *Driver) abandoned(kind string, node cc.NodeID, err error) {
	d.metrics.sessions.WithLabelValues(kind, "abandoned").Inc()
	if d.config.OnAbandoned != nil {
		d.config.OnAbandoned(node, err)
	}
}

func (d *Driver) publish(b values.Batch) {
	d.metrics.updates.Add(float64(len(b.Updates)))
	if d.config.Sink != nil {
		d.config.Sink.Publish(b)
	}
}

// Registry returns the command registry.
func (d *Driver) Registry() *cc.Registry { return d.registry }

// Engine returns the encapsulation engine.
func (d *Driver) Engine() *encap.Engine { return d.engine }

// Directory returns the value metadata directory.
func (d *Driver) Directory() *values.Directory { return d.directory }

// Keyring returns the keyring created from Config.NetworkKey, or nil.
func (d *Driver) Keyring() *security.Keyring { return d.keyring }

// LocalNodeID returns the controller's node id.
func (d *Driver) LocalNodeID() cc.NodeID { return d.config.LocalNodeID }

func (d *Driver) versions(node cc.NodeID) cc.VersionFunc {
	p := d.config.Profile
	if p == nil {
		return nil
	}
	return func(id cc.CommandClass) uint8 {
		v, _ := p.DeclaredVersion(node, id)
		return v
	}
}

func (d *Driver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Decode turns one frame received from node into a command. The returned
// command keeps its encapsulation chain; Innermost is the application
// command, with partial reports already merged.
//
// Decode returns nil and no error while the frame only advances a
// transport service datagram or a partial report session.
func (d *Driver) Decode(data []byte, node cc.NodeID) (*cc.Command, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	d.metrics.frames.WithLabelValues("in").Inc()
	rec := capture.Record{
		Timestamp: time.Now(),
		Trace:     capture.NewTrace(),
		Direction: capture.DirectionIn,
		Node:      node,
		Data:      append([]byte(nil), data...),
	}
	cmd, err := d.decode(data, node, &rec)
	if err != nil {
		rec.Error = err.Error()
		d.metrics.decodeErrors.WithLabelValues(errorReason(err)).Inc()
		if d.log != nil {
			d.log.Warnf("node %d: dropping frame %X: %v", node, data, err)
		}
	} else if cmd != nil {
		rec.Command = cmd.Innermost().Identity.String()
	}
	d.recorder.Record(rec)
	return cmd, err
}

func (d *Driver) decode(data []byte, node cc.NodeID, rec *capture.Record) (*cc.Command, error) {
	versions := d.versions(node)
	cmd, err := d.registry.Decode(data, cc.DecodeContext{NodeID: node, Versions: versions})
	if err != nil {
		return nil, err
	}

	if seg, ok := cmd.Fields.(transportservice.Segment); ok {
		rec.Layers = append(rec.Layers, cc.TransportService)
		datagram, done, err := d.segments.Add(node, seg)
		if err != nil || !done {
			return nil, err
		}
		d.metrics.sessions.WithLabelValues("datagram", "complete").Inc()
		return d.decode(datagram, node, rec)
	}

	app, layers, err := d.engine.UnwrapAll(cmd, versions)
	if err != nil {
		return nil, err
	}
	for _, l := range layers {
		rec.Layers = append(rec.Layers, l.Kind.CommandClass())
	}

	d.observe(app)

	merged, done, err := d.partials.Add(app)
	if err != nil || !done {
		return nil, err
	}
	if merged != app {
		d.metrics.sessions.WithLabelValues("partial", "complete").Inc()
		cmd = replaceInnermost(cmd, merged)
	}

	if _, err := d.directory.OnCommandDecoded(cmd); err != nil && d.log != nil {
		d.log.Warnf("node %d: %s: %v", node, merged.Identity, err)
	}
	return cmd, nil
}

// observe updates driver state from commands that carry protocol state
// rather than application values.
func (d *Driver) observe(app *cc.Command) {
	node := app.NodeID
	switch f := app.Fields.(type) {
	case *s0.NonceReport:
		if d.keyring != nil {
			if err := d.keyring.StoreNonce(node, f.Nonce); err != nil && d.log != nil {
				d.log.Warnf("node %d: %v", node, err)
			}
		}
	case *s2.NonceReport:
		if d.keyring != nil && f.SOS {
			if err := d.keyring.StoreEntropy(node, f.ReceiverEntropy); err != nil && d.log != nil {
				d.log.Warnf("node %d: %v", node, err)
			}
		}
	case *version.CommandClassReport:
		if vr, ok := d.config.Profile.(versionRecorder); ok && f.ClassVersion > 0 {
			vr.SetVersion(node, f.RequestedClass, f.ClassVersion)
		}
	}

	if o, ok := d.engine.Supervisor().Resolve(app); ok {
		d.metrics.supervision.WithLabelValues(o.Status.String()).Inc()
		if d.log != nil {
			d.log.Debugf("node %d: supervision session %d: %s", node, o.SessionID, o.Status)
		}
		if d.config.OnSupervision != nil {
			d.config.OnSupervision(o)
		}
	}
}

func replaceInnermost(outer, app *cc.Command) *cc.Command {
	if outer.Encapsulated == nil {
		return app
	}
	c := outer
	for c.Encapsulated.Encapsulated != nil {
		c = c.Encapsulated
	}
	c.Encapsulated = app
	return outer
}

func errorReason(err error) string {
	var de *cc.DecapsulationError
	switch {
	case errors.As(err, &de):
		return de.Reason.String()
	case errors.Is(err, cc.ErrPacketFormat):
		return "packet format"
	default:
		return "other"
	}
}

// HandleFrame decodes a frame from node and passes the result to
// Config.OnCommand. Errors are logged and counted.
func (d *Driver) HandleFrame(node cc.NodeID, data []byte) {
	cmd, err := d.Decode(data, node)
	if err != nil || cmd == nil {
		return
	}
	if d.config.OnCommand != nil {
		d.config.OnCommand(cmd)
	}
}

// FrameHandler adapts HandleFrame to a transport link.
func (d *Driver) FrameHandler() transport.FrameHandler {
	return func(f transport.Frame) { d.HandleFrame(f.Source, f.Payload) }
}

// NewCommand builds an outgoing command from typed fields.
func (d *Driver) NewCommand(node cc.NodeID, endpoint uint8, fields cc.Fields) (*cc.Command, error) {
	return cc.NewCommand(node, endpoint, fields)
}

// Build builds an outgoing command from named fields.
func (d *Driver) Build(opts cc.Options) (*cc.Command, error) {
	return d.registry.Build(opts)
}

// Wrap applies layers to cmd. Layers are listed outermost first.
func (d *Driver) Wrap(cmd *cc.Command, layers ...encap.Layer) (*cc.Command, error) {
	out := cmd
	for i := len(layers) - 1; i >= 0; i-- {
		wrapped, err := d.engine.Encapsulate(layers[i].Kind, out, layers[i].Params)
		if err != nil {
			return nil, err
		}
		out = wrapped
	}
	return out, nil
}

// Reply wraps response in the layers request arrived in.
func (d *Driver) Reply(request, response *cc.Command) (*cc.Command, error) {
	return d.engine.Mirror(request, response)
}

// Expects returns the response a command solicits.
func (d *Driver) Expects(cmd *cc.Command) (cc.ResponseSpec, bool) {
	return d.registry.Expects(cmd)
}

// MatchResponse reports whether resp answers req.
func (d *Driver) MatchResponse(req, resp *cc.Command) error {
	return d.registry.MatchResponse(req, resp)
}

// NonceReport issues fresh nonce material for node and returns the report
// to send it in. It requires the driver's own keyring.
func (d *Driver) NonceReport(node cc.NodeID, scheme security.Scheme) (*cc.Command, error) {
	if d.keyring == nil {
		return nil, encap.ErrNoProvider
	}
	switch scheme {
	case security.SchemeS0:
		nonce, err := d.keyring.IssueNonce(node)
		if err != nil {
			return nil, err
		}
		return cc.NewCommand(node, 0, &s0.NonceReport{Nonce: nonce})
	case security.SchemeS2:
		entropy, err := d.keyring.IssueEntropy(node)
		if err != nil {
			return nil, err
		}
		return cc.NewCommand(node, 0, &s2.NonceReport{SOS: true, ReceiverEntropy: entropy})
	}
	return nil, cc.Constructionf("unknown security scheme %s", scheme)
}

// Encode serializes cmd, including its encapsulation layers.
func (d *Driver) Encode(cmd *cc.Command) ([]byte, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	data, err := d.registry.Encode(cmd)
	if err != nil {
		return nil, err
	}
	d.record(cmd, capture.NewTrace(), data)
	return data, nil
}

// EncodeFrames serializes cmd and splits it into transport service
// segments when it does not fit one segment.
func (d *Driver) EncodeFrames(cmd *cc.Command) ([][]byte, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	data, err := d.registry.Encode(cmd)
	if err != nil {
		return nil, err
	}
	frames, err := d.engine.Fragment(data, d.nextSegmentSession(cmd.NodeID))
	if err != nil {
		return nil, err
	}
	trace := capture.NewTrace()
	for _, f := range frames {
		d.record(cmd, trace, f)
	}
	return frames, nil
}

func (d *Driver) nextSegmentSession(node cc.NodeID) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := (d.tsSessions[node] + 1) & transportservice.MaxSessionID
	d.tsSessions[node] = id
	return id
}

func (d *Driver) record(cmd *cc.Command, trace string, data []byte) {
	d.metrics.frames.WithLabelValues("out").Inc()
	rec := capture.Record{
		Timestamp: time.Now(),
		Trace:     trace,
		Direction: capture.DirectionOut,
		Node:      cmd.NodeID,
		Data:      append([]byte(nil), data...),
		Command:   cmd.Innermost().Identity.String(),
	}
	for _, l := range encap.Layers(cmd) {
		rec.Layers = append(rec.Layers, l.Kind.CommandClass())
	}
	d.recorder.Record(rec)
}

// RemoveNode drops all per-node state: open sessions, nonces, metadata
// and the node's profile assignment.
func (d *Driver) RemoveNode(node cc.NodeID) {
	d.partials.RemoveNode(node)
	d.segments.RemoveNode(node)
	d.engine.Supervisor().RemoveNode(node)
	d.directory.RemoveNode(node)
	if d.keyring != nil {
		d.keyring.RemoveNode(node)
	} else if r, ok := d.config.Security.(nodeRemover); ok {
		r.RemoveNode(node)
	}
	if r, ok := d.config.Profile.(nodeRemover); ok {
		r.RemoveNode(node)
	}

	d.mu.Lock()
	delete(d.tsSessions, node)
	d.mu.Unlock()
}

// Close stops all session timers and closes the capture file it opened.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.partials.Close()
	d.segments.Close()
	d.engine.Supervisor().Close()

	var errs []error
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
