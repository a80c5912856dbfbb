package driver

import (
	"testing"
	"time"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/commandclass/basic"
	"github.com/backkem/zwave/pkg/commandclass/s2"
	"github.com/backkem/zwave/pkg/commandclass/supervision"
	"github.com/backkem/zwave/pkg/encap"
	"github.com/backkem/zwave/pkg/security"
	"github.com/backkem/zwave/pkg/transport"
	"github.com/pion/logging"
)

func startLink(t *testing.T, ep *transport.Endpoint, node cc.NodeID, d *Driver) *transport.Link {
	t.Helper()
	l, err := transport.NewLink(transport.LinkConfig{
		Endpoint:      ep,
		LocalNodeID:   node,
		FrameHandler:  d.FrameHandler(),
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("NewLink() error: %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { l.Stop() })
	return l
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the peer")
		var zero T
		return zero
	}
}

// TestEndToEnd_SupervisedS2 sends a supervised, S2 encrypted Basic Set
// from a controller to a node over a simulated link and waits for the
// node's supervision report.
func TestEndToEnd_SupervisedS2(t *testing.T) {
	pipe := transport.NewPipe()
	t.Cleanup(func() { pipe.Close() })

	fromNode := make(chan *cc.Command, 4)
	outcomes := make(chan encap.Outcome, 4)
	controller := newDriver(t, Config{
		NetworkKey:    testNetworkKey,
		OnCommand:     func(cmd *cc.Command) { fromNode <- cmd },
		OnSupervision: func(o encap.Outcome) { outcomes <- o },
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})

	var nodeLink *transport.Link
	received := make(chan *cc.Command, 4)
	var node *Driver
	node = newDriver(t, Config{
		LocalNodeID: 5,
		NetworkKey:  testNetworkKey,
		OnCommand: func(cmd *cc.Command) {
			received <- cmd.Innermost()
			var session uint8
			for _, l := range encap.Layers(cmd) {
				if l.Kind == encap.KindSupervision {
					session = l.Params.SessionID
				}
			}
			report, err := node.NewCommand(1, 0, &supervision.Report{SessionID: session, Status: supervision.Success})
			if err != nil {
				t.Errorf("NewCommand() error: %v", err)
				return
			}
			reply, err := node.Reply(cmd, report)
			if err != nil {
				t.Errorf("Reply() error: %v", err)
				return
			}
			frames, err := node.EncodeFrames(reply)
			if err != nil {
				t.Errorf("EncodeFrames() error: %v", err)
				return
			}
			if err := nodeLink.SendAll(1, frames); err != nil {
				t.Errorf("SendAll() error: %v", err)
			}
		},
	})

	controllerLink := startLink(t, pipe.Controller(), 1, controller)
	nodeLink = startLink(t, pipe.Node(), 5, node)

	// The node hands out its entropy first.
	nonce, err := node.NonceReport(1, security.SchemeS2)
	if err != nil {
		t.Fatalf("NonceReport() error: %v", err)
	}
	data, err := node.Encode(nonce)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if err := nodeLink.Send(1, data); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if _, ok := receive(t, fromNode).Fields.(*s2.NonceReport); !ok {
		t.Fatal("controller did not receive the nonce report")
	}

	set, err := controller.NewCommand(5, 0, &basic.Set{TargetValue: 0x63})
	if err != nil {
		t.Fatalf("NewCommand() error: %v", err)
	}
	wrapped, err := controller.Wrap(set,
		encap.Layer{Kind: encap.KindSecurityS2},
		encap.Layer{Kind: encap.KindSupervision},
	)
	if err != nil {
		t.Fatalf("Wrap() error: %v", err)
	}
	frames, err := controller.EncodeFrames(wrapped)
	if err != nil {
		t.Fatalf("EncodeFrames() error: %v", err)
	}
	if err := controllerLink.SendAll(5, frames); err != nil {
		t.Fatalf("SendAll() error: %v", err)
	}

	got := receive(t, received)
	if s, ok := got.Fields.(*basic.Set); !ok || s.TargetValue != 0x63 {
		t.Fatalf("node received %v, want Basic Set 0x63", got)
	}

	o := receive(t, outcomes)
	if o.Status != supervision.Success || !o.Final() {
		t.Errorf("outcome = %+v, want final success", o)
	}
	if o.Original != set {
		t.Errorf("Original = %v, want the Basic Set", o.Original)
	}

	// The report itself also reaches the application.
	report := receive(t, fromNode)
	if report.CommandClass != cc.Security2 {
		t.Errorf("report arrived as %s, want inside Security 2", report.Identity)
	}
	if _, ok := report.Innermost().Fields.(*supervision.Report); !ok {
		t.Errorf("report = %v, want Supervision Report", report.Innermost())
	}
}

// TestEndToEnd_LossyLink checks that a corrupted frame is dropped by the
// link and never reaches the driver.
func TestEndToEnd_LossyLink(t *testing.T) {
	pipe := transport.NewPipe()
	t.Cleanup(func() { pipe.Close() })

	got := make(chan *cc.Command, 4)
	controller := newDriver(t, Config{OnCommand: func(cmd *cc.Command) { got <- cmd }})
	startLink(t, pipe.Controller(), 1, controller)
	node := newDriver(t, Config{LocalNodeID: 5})
	nodeLink := startLink(t, pipe.Node(), 5, node)

	pipe.SetCondition(transport.NetworkCondition{CorruptRate: 1})
	if err := nodeLink.Send(1, []byte{0x20, 0x03, 0x01}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	pipe.SetCondition(transport.NetworkCondition{})
	if err := nodeLink.Send(1, []byte{0x20, 0x03, 0x02}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	cmd := receive(t, got)
	if r := cmd.Fields.(*basic.Report); r.CurrentValue != 0x02 {
		t.Errorf("CurrentValue = %d, want 2", r.CurrentValue)
	}
	select {
	case extra := <-got:
		t.Errorf("unexpected command %v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}
