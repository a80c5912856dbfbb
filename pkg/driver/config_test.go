package driver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   error
	}{
		{"zero", Config{}, nil},
		{"node id", Config{LocalNodeID: 233}, ErrInvalidNodeID},
		{"short key", Config{NetworkKey: []byte{1, 2, 3}}, ErrInvalidNetworkKey},
		{"full key", Config{NetworkKey: testNetworkKey}, nil},
		{"negative timeout", Config{ResponseTimeout: -time.Second}, ErrInvalidTimeout},
		{"negative reassembly", Config{ReassemblyTimeout: -time.Millisecond}, ErrInvalidTimeout},
		{"segment too large", Config{MaxSegmentPayload: MaxSegmentPayload + 1}, ErrInvalidSegmentSize},
		{"segment smaller", Config{MaxSegmentPayload: 20}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var c Config
	c.applyDefaults()
	if c.LocalNodeID != DefaultLocalNodeID {
		t.Errorf("LocalNodeID = %d, want %d", c.LocalNodeID, DefaultLocalNodeID)
	}
	if c.ResponseTimeout != DefaultResponseTimeout {
		t.Errorf("ResponseTimeout = %v, want %v", c.ResponseTimeout, DefaultResponseTimeout)
	}
	if c.ReassemblyTimeout != 800*time.Millisecond {
		t.Errorf("ReassemblyTimeout = %v, want 800ms", c.ReassemblyTimeout)
	}
	if c.MaxSegmentPayload != MaxSegmentPayload {
		t.Errorf("MaxSegmentPayload = %d, want %d", c.MaxSegmentPayload, MaxSegmentPayload)
	}

	c = Config{LocalNodeID: 7, ResponseTimeout: time.Second}
	c.applyDefaults()
	if c.LocalNodeID != 7 || c.ResponseTimeout != time.Second {
		t.Errorf("applyDefaults() overwrote set fields: %+v", c)
	}
}

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "driver.toml")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfig(t, `
local_node_id = 2
network_key = "00112233445566778899aabbccddeeff"
response_timeout = "5s"
reassembly_timeout = "1s"
max_segment_payload = 30
profile_dir = "devices"
capture = "frames.cbor"
`)
	c, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error: %v", err)
	}
	if c.LocalNodeID != 2 {
		t.Errorf("LocalNodeID = %d, want 2", c.LocalNodeID)
	}
	if string(c.NetworkKey) != string(testNetworkKey) {
		t.Errorf("NetworkKey = %X, want %X", c.NetworkKey, testNetworkKey)
	}
	if c.ResponseTimeout != 5*time.Second || c.ReassemblyTimeout != time.Second {
		t.Errorf("timeouts = %v, %v; want 5s, 1s", c.ResponseTimeout, c.ReassemblyTimeout)
	}
	if c.MaxSegmentPayload != 30 || c.ProfileDir != "devices" || c.CapturePath != "frames.cbor" {
		t.Errorf("LoadFileConfig() = %+v", c)
	}
}

func TestLoadFileConfig_Partial(t *testing.T) {
	c, err := LoadFileConfig(writeConfig(t, `local_node_id = 3`))
	if err != nil {
		t.Fatalf("LoadFileConfig() error: %v", err)
	}
	if c.LocalNodeID != 3 || c.NetworkKey != nil || c.ResponseTimeout != 0 {
		t.Errorf("LoadFileConfig() = %+v, want only LocalNodeID set", c)
	}
}

func TestLoadFileConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"unknown key", `retries = 3`, nil},
		{"bad duration", `response_timeout = "soon"`, nil},
		{"bad key", `network_key = "zz"`, nil},
		{"short key", `network_key = "0011"`, ErrInvalidNetworkKey},
		{"node id", `local_node_id = 300`, ErrInvalidNodeID},
		{"not toml", `local_node_id = [`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFileConfig(writeConfig(t, tt.text))
			if err == nil {
				t.Fatal("LoadFileConfig() = nil error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("LoadFileConfig() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := LoadFileConfig(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFileConfig(missing) error = %v, want ErrNotExist", err)
	}
}

func TestNew_FromFiles(t *testing.T) {
	dir := t.TempDir()
	capturePath := filepath.Join(dir, "frames.cbor")
	d, err := New(Config{
		ProfileDir:  filepath.Join("..", "profile", "testdata", "aeotec"),
		CapturePath: capturePath,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := d.Decode([]byte{0x20, 0x03, 0x10}, 5); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	info, err := os.Stat(capturePath)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if info.Size() == 0 {
		t.Error("capture file is empty")
	}

	if _, err := New(Config{ProfileDir: filepath.Join("..", "profile", "testdata")}); err == nil {
		t.Error("New() with an invalid profile directory = nil error")
	}
}
