package nooperation

import (
	"bytes"
	"testing"

	"github.com/backkem/zwave/pkg/cc"
)

func TestEncodeDecode(t *testing.T) {
	r := cc.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	cmd, err := cc.NewCommand(4, 0, &NoOperation{})
	if err != nil {
		t.Fatalf("NewCommand() error: %v", err)
	}
	if cmd.HasCommandID {
		t.Error("HasCommandID = true")
	}
	out, err := r.Encode(cmd)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if !bytes.Equal(out, []byte{0x00}) {
		t.Errorf("Encode() = %x, want 00", out)
	}

	decoded, err := r.Decode(out, cc.DecodeContext{})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if _, ok := decoded.Fields.(*NoOperation); !ok {
		t.Errorf("Fields type = %T, want *NoOperation", decoded.Fields)
	}
}
