// zwave-switch-sim runs a controller and a simulated binary switch over
// an in-memory link and toggles the switch until interrupted.
//
// Usage:
//
//	zwave-switch-sim [options]
//
// Options:
//
//	-config      Driver TOML file (default: none)
//	-node        Switch node id (default: 5)
//	-key         Hex network key; enables S2 (default: from -config)
//	-drop        Frame drop rate (default: 0)
//	-corrupt     Frame corruption rate (default: 0)
//	-supervised  Supervise set commands (default: true)
//	-debug       Debug logging (default: false)
//
// Example:
//
//	zwave-switch-sim -key 00112233445566778899aabbccddeeff -drop 0.1
package main

import (
	"context"
	"log"
	"time"

	"github.com/backkem/zwave/examples/common"
	"github.com/backkem/zwave/examples/controller"
	"github.com/backkem/zwave/examples/switchnode"
	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/commandclass/binaryswitch"
	"github.com/backkem/zwave/pkg/driver"
	"github.com/backkem/zwave/pkg/encap"
)

const togglePeriod = 2 * time.Second

func main() {
	opts := common.ParseFlags()
	node := cc.NodeID(opts.NodeID)

	pipe := common.NewPipe(opts)
	defer pipe.Close()

	ctrlConfig, err := common.DriverConfig(opts, driver.DefaultLocalNodeID)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctrl, err := controller.New(controller.Options{Config: ctrlConfig, Endpoint: pipe.Controller()})
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}

	devConfig, err := common.DriverConfig(opts, node)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	devConfig.CapturePath = ""
	device, err := switchnode.NewDevice(devConfig, pipe.Node(), func(on bool) {
		log.Printf("Switch node %d is now %v", node, on)
	})
	if err != nil {
		log.Fatalf("Failed to create switch: %v", err)
	}

	if err := ctrl.Start(); err != nil {
		log.Fatalf("Failed to start controller: %v", err)
	}
	defer ctrl.Stop()
	if err := device.Start(); err != nil {
		log.Fatalf("Failed to start switch: %v", err)
	}
	defer device.Stop()

	ctx, stop := common.SignalContext()
	defer stop()

	var layers []encap.Layer
	if len(ctrlConfig.NetworkKey) > 0 {
		if err := exchangeNonce(ctx, ctrl, device, node); err != nil {
			log.Fatalf("Nonce exchange failed: %v", err)
		}
		layers = append(layers, encap.Layer{Kind: encap.KindSecurityS2})
	}

	ticker := time.NewTicker(togglePeriod)
	defer ticker.Stop()
	on := false
	for {
		select {
		case <-ctx.Done():
			log.Println("Shutting down...")
			return
		case <-ticker.C:
		}
		on = !on
		if err := toggle(ctx, ctrl, opts.Supervised, node, on, layers); err != nil {
			log.Printf("Set switch %v: %v", on, err)
		}
	}
}

func exchangeNonce(ctx context.Context, ctrl *controller.Controller, device *switchnode.Device, node cc.NodeID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ctrl.WaitForNonce(ctx, node) }()
	for {
		if err := device.OfferNonce(); err != nil {
			return err
		}
		select {
		case err := <-done:
			return err
		case <-time.After(250 * time.Millisecond):
			// Lost on a lossy link; offer again.
		}
	}
}

func toggle(ctx context.Context, ctrl *controller.Controller, supervised bool, node cc.NodeID, on bool, layers []encap.Layer) error {
	ctx, cancel := context.WithTimeout(ctx, driver.DefaultResponseTimeout)
	defer cancel()

	if supervised {
		o, err := ctrl.SetSwitch(ctx, node, on, layers...)
		if err != nil {
			return err
		}
		log.Printf("Set switch %v: %s", on, o.Status)
		return nil
	}

	set, err := ctrl.Driver().NewCommand(node, 0, &binaryswitch.Set{TargetValue: on})
	if err != nil {
		return err
	}
	if err := ctrl.Send(set, layers...); err != nil {
		return err
	}
	state, err := ctrl.SwitchState(ctx, node, layers...)
	if err != nil {
		return err
	}
	log.Printf("Switch reports %v", state)
	return nil
}
