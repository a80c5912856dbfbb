package association

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/backkem/zwave/pkg/cc"
)

func newRegistry(t *testing.T) *cc.Registry {
	t.Helper()
	r := cc.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return r
}

func TestRoundtrip(t *testing.T) {
	r := newRegistry(t)
	tests := []cc.Fields{
		&Set{Group: 1, Nodes: []cc.NodeID{1, 5}},
		&Remove{Group: 0},
		&Get{Group: 2},
		&Report{Group: 2, MaxNodes: 5, Nodes: []cc.NodeID{1}},
		&SupportedGroupingsGet{},
		&SupportedGroupingsReport{Groups: 3},
		&SpecificGroupGet{},
		&SpecificGroupReport{Group: 1},
	}
	for _, f := range tests {
		cmd, err := cc.NewCommand(1, 0, f)
		if err != nil {
			t.Fatalf("NewCommand(%T) error: %v", f, err)
		}
		data, err := r.Encode(cmd)
		if err != nil {
			t.Fatalf("Encode(%T) error: %v", f, err)
		}
		decoded, err := r.Decode(data, cc.DecodeContext{})
		if err != nil {
			t.Fatalf("Decode(%T) error: %v", f, err)
		}
		if !reflect.DeepEqual(decoded.Fields, f) {
			t.Errorf("roundtrip %T = %+v, want %+v", f, decoded.Fields, f)
		}
	}
}

func TestSetValidate(t *testing.T) {
	if _, err := cc.NewCommand(1, 0, &Set{Group: 1, Nodes: []cc.NodeID{233}}); !errors.Is(err, cc.ErrInvalidConstruction) {
		t.Errorf("NewCommand(node 233) error = %v, want %v", err, cc.ErrInvalidConstruction)
	}
	if _, err := cc.NewCommand(1, 0, &Set{Group: 0, Nodes: []cc.NodeID{1}}); !errors.Is(err, cc.ErrInvalidConstruction) {
		t.Errorf("NewCommand(group 0) error = %v, want %v", err, cc.ErrInvalidConstruction)
	}
}

func TestReportMerge(t *testing.T) {
	parts := []cc.Fields{
		&Report{Group: 1, MaxNodes: 10, ReportsToFollow: 1, Nodes: []cc.NodeID{4, 2}},
		&Report{Group: 1, MaxNodes: 10, Nodes: []cc.NodeID{3, 2}},
	}
	merged, err := parts[1].(*Report).MergePartials(parts)
	if err != nil {
		t.Fatalf("MergePartials() error: %v", err)
	}
	if got := merged.(*Report).Nodes; !reflect.DeepEqual(got, []cc.NodeID{2, 3, 4}) {
		t.Errorf("Nodes = %v, want [2 3 4]", got)
	}
}

func TestGetMatchesGroup(t *testing.T) {
	r := newRegistry(t)
	get, _ := cc.NewCommand(1, 0, &Get{Group: 1})
	rep1, _ := cc.NewCommand(1, 0, &Report{Group: 1})
	rep2, _ := cc.NewCommand(1, 0, &Report{Group: 2})
	if err := r.MatchResponse(get, rep1); err != nil {
		t.Errorf("MatchResponse(group 1) error: %v", err)
	}
	if err := r.MatchResponse(get, rep2); !errors.Is(err, cc.ErrNoMatch) {
		t.Errorf("MatchResponse(group 2) error = %v, want %v", err, cc.ErrNoMatch)
	}

	out, _ := r.Encode(get)
	if !bytes.Equal(out, []byte{0x85, 0x02, 0x01}) {
		t.Errorf("Encode(Get) = %x", out)
	}
}
