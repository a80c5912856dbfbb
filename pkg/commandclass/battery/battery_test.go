package battery

import (
	"bytes"
	"testing"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/values"
)

func newRegistry(t *testing.T) *cc.Registry {
	t.Helper()
	r := cc.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return r
}

func TestLowBatterySentinel(t *testing.T) {
	r := newRegistry(t)
	cmd, err := r.Decode([]byte{0x80, 0x03, 0xFF}, cc.DecodeContext{})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	report := cmd.Fields.(*Report)
	if report.Level != 0 {
		t.Errorf("Level = %d, want 0", report.Level)
	}
	if !report.IsLow {
		t.Error("IsLow = false, want true")
	}

	out, err := r.Encode(cmd)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if want := []byte{0x80, 0x03, 0xFF}; !bytes.Equal(out, want) {
		t.Errorf("Encode() = %x, want %x", out, want)
	}
}

func TestReportV3Flags(t *testing.T) {
	r := newRegistry(t)
	data := []byte{0x80, 0x03, 80, 0b0110_1001, 0b0000_0011}
	cmd, err := r.Decode(data, cc.DecodeContext{})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	report := cmd.Fields.(*Report)
	if report.Level != 80 || report.IsLow {
		t.Errorf("Level, IsLow = %d, %v", report.Level, report.IsLow)
	}
	if report.ChargingStatus != Charging {
		t.Errorf("ChargingStatus = %v, want charging", report.ChargingStatus)
	}
	if !report.Rechargeable || report.Backup || !report.Overheating || report.LowFluid {
		t.Errorf("flags = %+v", report)
	}
	if report.ReplacementStatus != ReplacementSoon {
		t.Errorf("ReplacementStatus = %d, want soon", report.ReplacementStatus)
	}
	if !report.Disconnected || !report.LowTemperature {
		t.Errorf("Disconnected, LowTemperature = %v, %v", report.Disconnected, report.LowTemperature)
	}

	out, err := r.Encode(cmd)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("Encode() = %x, want %x", out, data)
	}

	// A device declaring version 1 exposes only level and isLow.
	if n := len(report.ExposeValues(values.ExposeContext{Version: 1})); n != 2 {
		t.Errorf("v1 updates = %d, want 2", n)
	}
	if n := len(report.ExposeValues(values.ExposeContext{Version: 3})); n != 10 {
		t.Errorf("v3 updates = %d, want 10", n)
	}
}

func TestHealthReport(t *testing.T) {
	r := newRegistry(t)
	cmd, _ := cc.NewCommand(1, 0, &HealthReport{MaximumCapacity: 90, HasTemperature: true, Temperature: 21.5})
	out, err := r.Encode(cmd)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	decoded, err := r.Decode(out, cc.DecodeContext{})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	h := decoded.Fields.(*HealthReport)
	if h.MaximumCapacity != 90 || !h.HasTemperature || h.Temperature != 21.5 {
		t.Errorf("HealthReport = %+v", h)
	}

	decoded, err = r.Decode([]byte{0x80, 0x05, 0xFF, 0x00}, cc.DecodeContext{})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if decoded.Fields.(*HealthReport).HasTemperature {
		t.Error("HasTemperature = true for size 0")
	}
}
