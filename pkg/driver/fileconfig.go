package driver

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/backkem/zwave/pkg/cc"
)

// FileConfig is the TOML form of Config. Durations are strings such as
// "800ms"; the network key is hex.
//
//	local_node_id = 1
//	network_key = "0102030405060708090a0b0c0d0e0f10"
//	response_timeout = "10s"
//	profile_dir = "devices"
//	capture = "frames.cbor"
type FileConfig struct {
	LocalNodeID       uint16 `toml:"local_node_id"`
	NetworkKey        string `toml:"network_key"`
	ResponseTimeout   string `toml:"response_timeout"`
	ReassemblyTimeout string `toml:"reassembly_timeout"`
	MaxSegmentPayload int    `toml:"max_segment_payload"`
	ProfileDir        string `toml:"profile_dir"`
	Capture           string `toml:"capture"`
}

// LoadFileConfig reads a TOML file into a Config. Keys absent from the
// file keep their zero value, so New applies the defaults.
func LoadFileConfig(path string) (Config, error) {
	var raw FileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load driver config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load driver config: unknown key %q", undecoded[0].String())
	}
	return raw.Config(meta.IsDefined)
}

// Config converts the file form. defined reports whether a key was set;
// nil treats every non-zero field as set.
func (f FileConfig) Config(defined func(key ...string) bool) (Config, error) {
	if defined == nil {
		defined = func(...string) bool { return true }
	}
	var cfg Config

	if defined("local_node_id") {
		cfg.LocalNodeID = cc.NodeID(f.LocalNodeID)
	}
	if defined("network_key") {
		key, err := hex.DecodeString(strings.TrimSpace(f.NetworkKey))
		if err != nil {
			return Config{}, fmt.Errorf("parse network_key: %w", err)
		}
		cfg.NetworkKey = key
	}
	if defined("response_timeout") && f.ResponseTimeout != "" {
		d, err := time.ParseDuration(strings.TrimSpace(f.ResponseTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse response_timeout: %w", err)
		}
		cfg.ResponseTimeout = d
	}
	if defined("reassembly_timeout") && f.ReassemblyTimeout != "" {
		d, err := time.ParseDuration(strings.TrimSpace(f.ReassemblyTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse reassembly_timeout: %w", err)
		}
		cfg.ReassemblyTimeout = d
	}
	if defined("max_segment_payload") {
		cfg.MaxSegmentPayload = f.MaxSegmentPayload
	}
	if defined("profile_dir") {
		cfg.ProfileDir = strings.TrimSpace(f.ProfileDir)
	}
	if defined("capture") {
		cfg.CapturePath = strings.TrimSpace(f.Capture)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
