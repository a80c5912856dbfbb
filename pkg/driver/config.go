package driver

import (
	"time"

	"github.com/backkem/zwave/pkg/capture"
	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/commandclass/transportservice"
	"github.com/backkem/zwave/pkg/encap"
	"github.com/backkem/zwave/pkg/security"
	"github.com/backkem/zwave/pkg/values"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultLocalNodeID is the node id of a primary controller.
	DefaultLocalNodeID cc.NodeID = 1

	// DefaultResponseTimeout is how long a node may take to answer, and
	// how long a partial report session waits for its next part.
	DefaultResponseTimeout = 10 * time.Second

	// MaxSegmentPayload is the largest transport service segment payload.
	MaxSegmentPayload = transportservice.DefaultMaxSegmentPayload

	maxClassicNodeID cc.NodeID = 232
)

// Config holds all configuration for a Driver.
type Config struct {
	// LocalNodeID is the controller's node id (default: 1).
	LocalNodeID cc.NodeID

	// Security - Optional. Without a provider, a Keyring is created from
	// NetworkKey when one is given; otherwise security layers fail.
	Security   security.Provider
	NetworkKey []byte

	// Device profiles - Optional. ProfileDir is loaded into a
	// profile.Database when Profile is nil.
	Profile    values.Profile
	ProfileDir string

	// Value store - Optional.
	Sink values.Sink

	// Frame capture - Optional. CapturePath is opened for appending when
	// Capture is nil.
	Capture     capture.Recorder
	CapturePath string

	// Timing - Optional (uses defaults if zero)
	ResponseTimeout   time.Duration // partial and supervision sessions (default: 10s)
	ReassemblyTimeout time.Duration // transport service datagrams (default: 800ms)
	MaxSegmentPayload int           // default: 39

	// Callbacks - Optional
	OnCommand     func(cmd *cc.Command)
	OnSupervision func(o encap.Outcome)
	OnAbandoned   func(node cc.NodeID, err error)

	// Metrics are registered here when set.
	Registerer prometheus.Registerer

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.LocalNodeID > maxClassicNodeID {
		return ErrInvalidNodeID
	}
	if c.Security == nil && len(c.NetworkKey) != 0 && len(c.NetworkKey) != 16 {
		return ErrInvalidNetworkKey
	}
	if c.ResponseTimeout < 0 || c.ReassemblyTimeout < 0 {
		return ErrInvalidTimeout
	}
	if c.MaxSegmentPayload < 0 || c.MaxSegmentPayload > MaxSegmentPayload {
		return ErrInvalidSegmentSize
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.LocalNodeID == 0 {
		c.LocalNodeID = DefaultLocalNodeID
	}
	if c.ResponseTimeout == 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.ReassemblyTimeout == 0 {
		c.ReassemblyTimeout = encap.DefaultReassemblyTimeout
	}
	if c.MaxSegmentPayload == 0 {
		c.MaxSegmentPayload = MaxSegmentPayload
	}
}
