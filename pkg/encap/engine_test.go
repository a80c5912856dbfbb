package encap

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/commandclass"
	"github.com/backkem/zwave/pkg/commandclass/basic"
	"github.com/backkem/zwave/pkg/commandclass/crc16"
	"github.com/backkem/zwave/pkg/commandclass/multichannel"
	"github.com/backkem/zwave/pkg/security"
)

var testNetworkKey = []byte{
	0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
	0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
}

const (
	controllerNode cc.NodeID = 1
	deviceNode     cc.NodeID = 5
)

// testPeer is one side of a link: an engine with its own keyring.
type testPeer struct {
	registry *cc.Registry
	keyring  *security.Keyring
	engine   *Engine
}

func newPeer(t *testing.T, local cc.NodeID) *testPeer {
	t.Helper()
	registry, err := commandclass.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	keyring, err := security.NewKeyring(security.KeyringConfig{LocalNode: local, NetworkKey: testNetworkKey})
	if err != nil {
		t.Fatalf("NewKeyring() error: %v", err)
	}
	engine, err := NewEngine(Config{Registry: registry, Security: keyring, LocalNode: local})
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return &testPeer{registry: registry, keyring: keyring, engine: engine}
}

// newLink returns a controller and a device that have exchanged an S0
// nonce and S2 entropy in the controller to device direction.
func newLink(t *testing.T) (controller, device *testPeer) {
	t.Helper()
	controller, device = newPeer(t, controllerNode), newPeer(t, deviceNode)

	nonce, err := device.keyring.IssueNonce(controllerNode)
	if err != nil {
		t.Fatalf("IssueNonce() error: %v", err)
	}
	if err := controller.keyring.StoreNonce(deviceNode, nonce); err != nil {
		t.Fatalf("StoreNonce() error: %v", err)
	}
	entropy, err := device.keyring.IssueEntropy(controllerNode)
	if err != nil {
		t.Fatalf("IssueEntropy() error: %v", err)
	}
	if err := controller.keyring.StoreEntropy(deviceNode, entropy); err != nil {
		t.Fatalf("StoreEntropy() error: %v", err)
	}
	return controller, device
}

func basicSet(t *testing.T, value uint8) *cc.Command {
	t.Helper()
	cmd, err := cc.NewCommand(deviceNode, 0, &basic.Set{TargetValue: value})
	if err != nil {
		t.Fatalf("NewCommand() error: %v", err)
	}
	return cmd
}

// wrap applies kinds, given outer to inner, around cmd.
func wrap(t *testing.T, e *Engine, cmd *cc.Command, kinds []Kind, p Params) *cc.Command {
	t.Helper()
	for i := len(kinds) - 1; i >= 0; i-- {
		var err error
		cmd, err = e.Encapsulate(kinds[i], cmd, p)
		if err != nil {
			t.Fatalf("Encapsulate(%s) error: %v", kinds[i], err)
		}
	}
	return cmd
}

func TestValidateOrder(t *testing.T) {
	tests := []struct {
		name    string
		kinds   []Kind
		wantErr bool
	}{
		{"empty", nil, false},
		{"single", []Kind{KindMultiChannel}, false},
		{"full S2 stack", []Kind{KindTransportService, KindSecurityS2, KindMultiChannel, KindSupervision}, false},
		{"CRC outside multi channel", []Kind{KindCRC16, KindMultiChannel, KindSupervision}, false},
		{"S0 inside multi channel", []Kind{KindMultiChannel, KindSecurityS0}, true},
		{"supervision outside multi channel", []Kind{KindSupervision, KindMultiChannel}, true},
		{"S0 and S2", []Kind{KindSecurityS0, KindSecurityS2}, true},
		{"S2 and CRC", []Kind{KindSecurityS2, KindCRC16}, true},
		{"duplicate", []Kind{KindMultiChannel, KindMultiChannel}, true},
		{"transport service inside security", []Kind{KindSecurityS2, KindTransportService}, true},
		{"unknown", []Kind{Kind(42)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrder(tt.kinds)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateOrder(%v) error = %v, wantErr %v", tt.kinds, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, cc.ErrInvalidConstruction) {
				t.Errorf("ValidateOrder(%v) error = %v, want ErrInvalidConstruction", tt.kinds, err)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	for _, k := range []Kind{KindTransportService, KindSecurityS0, KindSecurityS2, KindCRC16, KindMultiChannel, KindSupervision} {
		got, ok := KindOf(k.CommandClass())
		if !ok || got != k {
			t.Errorf("KindOf(%s) = %s, %v, want %s", k.CommandClass(), got, ok, k)
		}
	}
	if _, ok := KindOf(cc.Basic); ok {
		t.Error("KindOf(Basic) ok = true, want false")
	}
}

func TestEncapsulationSymmetry(t *testing.T) {
	tests := []struct {
		name  string
		kinds []Kind
	}{
		{"multi channel", []Kind{KindMultiChannel}},
		{"supervision", []Kind{KindSupervision}},
		{"CRC-16", []Kind{KindCRC16}},
		{"CRC-16 multi channel supervision", []Kind{KindCRC16, KindMultiChannel, KindSupervision}},
		{"S0 multi channel", []Kind{KindSecurityS0, KindMultiChannel}},
		{"S2 multi channel supervision", []Kind{KindSecurityS2, KindMultiChannel, KindSupervision}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller, device := newLink(t)
			params := Params{SourceEndpoint: 0, DestinationEndpoint: 2}
			outer := wrap(t, controller.engine, basicSet(t, 0x63), tt.kinds, params)

			if got := Kinds(outer); !reflect.DeepEqual(got, tt.kinds) {
				t.Errorf("Kinds() = %v, want %v", got, tt.kinds)
			}
			frame, err := controller.registry.Encode(outer)
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}

			received, err := device.registry.Decode(frame, cc.DecodeContext{NodeID: controllerNode})
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			inner, layers, err := device.engine.UnwrapAll(received, nil)
			if err != nil {
				t.Fatalf("UnwrapAll() error: %v", err)
			}

			set, ok := inner.Fields.(*basic.Set)
			if !ok {
				t.Fatalf("inner fields = %T, want *basic.Set", inner.Fields)
			}
			if set.TargetValue != 0x63 {
				t.Errorf("TargetValue = %#x, want 0x63", set.TargetValue)
			}
			if inner.NodeID != controllerNode {
				t.Errorf("inner NodeID = %d, want %d", inner.NodeID, controllerNode)
			}

			kinds := make([]Kind, len(layers))
			for i, l := range layers {
				kinds[i] = l.Kind
				if l.Kind == KindMultiChannel && l.Params.DestinationEndpoint != 2 {
					t.Errorf("DestinationEndpoint = %d, want 2", l.Params.DestinationEndpoint)
				}
			}
			if !reflect.DeepEqual(kinds, tt.kinds) {
				t.Errorf("layers = %v, want %v", kinds, tt.kinds)
			}
			if received.Innermost() != inner {
				t.Error("Innermost() is not the unwrapped command")
			}
		})
	}
}

func TestEncapsulateConstructionErrors(t *testing.T) {
	controller, _ := newLink(t)
	e := controller.engine

	mc, err := e.Encapsulate(KindMultiChannel, basicSet(t, 1), Params{DestinationEndpoint: 1})
	if err != nil {
		t.Fatalf("Encapsulate() error: %v", err)
	}
	tests := []struct {
		name  string
		kind  Kind
		inner *cc.Command
	}{
		{"supervision around multi channel", KindSupervision, mc},
		{"multi channel twice", KindMultiChannel, mc},
		{"transport service", KindTransportService, basicSet(t, 1)},
		{"nil inner", KindCRC16, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Encapsulate(tt.kind, tt.inner, Params{}); !errors.Is(err, cc.ErrInvalidConstruction) {
				t.Errorf("Encapsulate() error = %v, want ErrInvalidConstruction", err)
			}
		})
	}

	crc, err := e.Encapsulate(KindCRC16, basicSet(t, 1), Params{})
	if err != nil {
		t.Fatalf("Encapsulate(CRC16) error: %v", err)
	}
	if _, err := e.Encapsulate(KindSecurityS2, crc, Params{}); !errors.Is(err, cc.ErrInvalidConstruction) {
		t.Errorf("Encapsulate(S2 around CRC16) error = %v, want ErrInvalidConstruction", err)
	}
}

func TestEncapsulateWithoutProvider(t *testing.T) {
	registry, err := commandclass.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	e, err := NewEngine(Config{Registry: registry, LocalNode: controllerNode})
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	if _, err := e.Encapsulate(KindSecurityS2, basicSet(t, 1), Params{}); !errors.Is(err, ErrNoProvider) {
		t.Errorf("Encapsulate(S2) error = %v, want ErrNoProvider", err)
	}
	if _, err := NewEngine(Config{}); err == nil {
		t.Error("NewEngine() without registry: expected error")
	}
}

func TestUnwrapChecksumMismatch(t *testing.T) {
	controller, device := newLink(t)
	outer := wrap(t, controller.engine, basicSet(t, 0x10), []Kind{KindCRC16}, Params{})
	frame, err := controller.registry.Encode(outer)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	frame[len(frame)-1] ^= 0xFF

	received, err := device.registry.Decode(frame, cc.DecodeContext{NodeID: controllerNode})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if _, ok := received.Fields.(*crc16.Encapsulation); !ok {
		t.Fatalf("fields = %T, want *crc16.Encapsulation", received.Fields)
	}
	_, _, _, err = device.engine.Unwrap(received, nil)
	var de *cc.DecapsulationError
	if !errors.As(err, &de) {
		t.Fatalf("Unwrap() error = %v, want *cc.DecapsulationError", err)
	}
	if de.Reason != cc.ReasonChecksum || de.Layer != cc.CRC16Encap {
		t.Errorf("error = %s/%s, want CRC16/%s", de.Layer, de.Reason, cc.ReasonChecksum)
	}
}

func TestUnwrapWithoutSpan(t *testing.T) {
	controller, device := newLink(t)
	outer := wrap(t, controller.engine, basicSet(t, 0x10), []Kind{KindSecurityS2}, Params{})
	frame, err := controller.registry.Encode(outer)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	// The device forgets the entropy it issued.
	device.keyring.RemoveNode(controllerNode)

	received, err := device.registry.Decode(frame, cc.DecodeContext{NodeID: controllerNode})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	_, _, err = device.engine.UnwrapAll(received, nil)
	var de *cc.DecapsulationError
	if !errors.As(err, &de) {
		t.Fatalf("UnwrapAll() error = %v, want *cc.DecapsulationError", err)
	}
	if de.Reason != cc.ReasonNoNonce {
		t.Errorf("Reason = %s, want %s", de.Reason, cc.ReasonNoNonce)
	}
	if !errors.Is(err, cc.ErrDecapsulation) {
		t.Errorf("errors.Is(err, ErrDecapsulation) = false")
	}
}

func TestUnwrapNotEncapsulated(t *testing.T) {
	controller, _ := newLink(t)
	if _, _, _, err := controller.engine.Unwrap(basicSet(t, 1), nil); !errors.Is(err, ErrNotEncapsulated) {
		t.Errorf("Unwrap(basic) error = %v, want ErrNotEncapsulated", err)
	}
	cmd, layers, err := controller.engine.UnwrapAll(basicSet(t, 1), nil)
	if err != nil {
		t.Fatalf("UnwrapAll(basic) error: %v", err)
	}
	if len(layers) != 0 || cmd.Fields.(*basic.Set).TargetValue != 1 {
		t.Errorf("UnwrapAll(basic) = %v, %v, want the command unchanged", cmd, layers)
	}
}

func TestMirror(t *testing.T) {
	controller, device := newLink(t)
	req := wrap(t, controller.engine, basicSet(t, 0x20), []Kind{KindCRC16, KindMultiChannel, KindSupervision},
		Params{SourceEndpoint: 0, DestinationEndpoint: 3})
	frame, err := controller.registry.Encode(req)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	received, err := device.registry.Decode(frame, cc.DecodeContext{NodeID: controllerNode})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if _, _, err := device.engine.UnwrapAll(received, nil); err != nil {
		t.Fatalf("UnwrapAll() error: %v", err)
	}

	resp, err := cc.NewCommand(controllerNode, 0, &basic.Report{CurrentValue: 0x20})
	if err != nil {
		t.Fatalf("NewCommand() error: %v", err)
	}
	mirrored, err := device.engine.Mirror(received, resp)
	if err != nil {
		t.Fatalf("Mirror() error: %v", err)
	}

	want := []Kind{KindCRC16, KindMultiChannel}
	if got := Kinds(mirrored); !reflect.DeepEqual(got, want) {
		t.Fatalf("Kinds(mirrored) = %v, want %v", got, want)
	}
	mc, ok := mirrored.Encapsulated.Fields.(*multichannel.Encapsulation)
	if !ok {
		t.Fatalf("second layer = %T, want *multichannel.Encapsulation", mirrored.Encapsulated.Fields)
	}
	if mc.Source != 3 || mc.Destination != 0 {
		t.Errorf("endpoints = %d->%d, want 3->0", mc.Source, mc.Destination)
	}

	out, err := device.registry.Encode(mirrored)
	if err != nil {
		t.Fatalf("Encode(mirrored) error: %v", err)
	}
	back, err := controller.registry.Decode(out, cc.DecodeContext{NodeID: deviceNode})
	if err != nil {
		t.Fatalf("Decode(mirrored) error: %v", err)
	}
	inner, _, err := controller.engine.UnwrapAll(back, nil)
	if err != nil {
		t.Fatalf("UnwrapAll(mirrored) error: %v", err)
	}
	if inner.Endpoint != 3 {
		t.Errorf("response endpoint = %d, want 3", inner.Endpoint)
	}
	if r, ok := inner.Fields.(*basic.Report); !ok || r.CurrentValue != 0x20 {
		t.Errorf("response = %v, want Basic Report 0x20", inner.Fields)
	}
}

func TestMultiChannelEndpointAddressing(t *testing.T) {
	controller, _ := newLink(t)
	outer := wrap(t, controller.engine, basicSet(t, 0xFF), []Kind{KindMultiChannel}, Params{DestinationEndpoint: 4})
	if outer.Endpoint != 0 {
		t.Errorf("outer Endpoint = %d, want 0", outer.Endpoint)
	}
	if outer.Encapsulated.Endpoint != 4 {
		t.Errorf("inner Endpoint = %d, want 4", outer.Encapsulated.Endpoint)
	}
	frame, err := controller.registry.Encode(outer)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	want := []byte{0x60, 0x0D, 0x00, 0x04, 0x20, 0x01, 0xFF}
	if !bytes.Equal(frame, want) {
		t.Errorf("Encode() = % X, want % X", frame, want)
	}
}

func TestMultiChannelFailureKeepsInnerEndpoint(t *testing.T) {
	controller, _ := newLink(t)
	e := controller.engine

	tests := []struct {
		name   string
		params Params
	}{
		{"destination out of range", Params{DestinationEndpoint: multichannel.MaxEndpoint + 1}},
		{"bit address out of range", Params{BitAddress: true, Destinations: []int{2, multichannel.MaxBitAddressEndpoint + 1}}},
		{"source out of range", Params{SourceEndpoint: multichannel.MaxEndpoint + 1, DestinationEndpoint: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := basicSet(t, 1)
			inner.Endpoint = 2
			if _, err := e.Encapsulate(KindMultiChannel, inner, tt.params); !errors.Is(err, cc.ErrInvalidConstruction) {
				t.Fatalf("Encapsulate() error = %v, want ErrInvalidConstruction", err)
			}
			if inner.Endpoint != 2 {
				t.Errorf("inner Endpoint after failure = %d, want 2", inner.Endpoint)
			}
		})
	}
}
