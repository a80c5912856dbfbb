// zwave-capture prints the frames of a driver capture file.
//
// Usage:
//
//	zwave-capture [options] frames.cbor
//
// Options:
//
//	-trace   Only records of this trace id
//	-node    Only records to or from this node
//	-dir     Only "in" or "out" records
//	-decode  Decode received frames again and print their fields
//	-config  Driver TOML file used for -decode (profiles, network key)
//
// Example:
//
//	zwave-capture -node 5 -dir in -decode frames.cbor
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/backkem/zwave/pkg/capture"
	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/driver"
)

func main() {
	var (
		filter     capture.Filter
		configPath string
		decode     bool
	)
	flag.StringVar(&filter.Trace, "trace", "", "Only records of this trace id")
	flag.Func("node", "Only records to or from this node", func(s string) error {
		v, err := strconv.ParseUint(s, 0, 16)
		if err != nil {
			return err
		}
		filter.Node = cc.NodeID(v)
		return nil
	})
	flag.Func("dir", `Only "in" or "out" records`, func(s string) error {
		var d capture.Direction
		switch strings.ToLower(s) {
		case "in":
			d = capture.DirectionIn
		case "out":
			d = capture.DirectionOut
		default:
			return fmt.Errorf("direction must be in or out, got %q", s)
		}
		filter.Direction = &d
		return nil
	})
	flag.BoolVar(&decode, "decode", false, "Decode received frames again")
	flag.StringVar(&configPath, "config", "", "Driver TOML file for -decode")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] frames.cbor\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	r, err := capture.ReadFile(flag.Arg(0), filter)
	if err != nil {
		log.Fatalf("Failed to open capture: %v", err)
	}
	defer r.Close()

	var d *driver.Driver
	if decode {
		if d, err = newDecoder(configPath); err != nil {
			log.Fatalf("Failed to create driver: %v", err)
		}
		defer d.Close()
	}

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Fatalf("Failed to read capture: %v", err)
		}
		printRecord(os.Stdout, rec)
		if d != nil && rec.Direction == capture.DirectionIn {
			printDecoded(os.Stdout, d, rec)
		}
	}
}

// newDecoder creates a driver that decodes without recording.
func newDecoder(configPath string) (*driver.Driver, error) {
	var config driver.Config
	if configPath != "" {
		c, err := driver.LoadFileConfig(configPath)
		if err != nil {
			return nil, err
		}
		config = c
	}
	config.CapturePath = ""
	config.Capture = capture.NoopRecorder{}
	return driver.New(config)
}

func printRecord(w io.Writer, rec capture.Record) {
	layers := make([]string, 0, len(rec.Layers))
	for _, l := range rec.Layers {
		layers = append(layers, l.String())
	}
	fmt.Fprintf(w, "%s %-3s node %-3d %X", rec.Timestamp.Format(time.RFC3339Nano), rec.Direction, rec.Node, rec.Data)
	if len(layers) > 0 {
		fmt.Fprintf(w, " [%s]", strings.Join(layers, " > "))
	}
	if rec.Command != "" {
		fmt.Fprintf(w, " %s", rec.Command)
	}
	if rec.Error != "" {
		fmt.Fprintf(w, " error: %s", rec.Error)
	}
	fmt.Fprintln(w)
}

func printDecoded(w io.Writer, d *driver.Driver, rec capture.Record) {
	cmd, err := d.Decode(rec.Data, rec.Node)
	switch {
	case err != nil:
		fmt.Fprintf(w, "    decode: %v\n", err)
	case cmd == nil:
		fmt.Fprintln(w, "    (partial)")
	default:
		fmt.Fprintf(w, "    %s %+v\n", cmd.Innermost().Identity, cmd.Innermost().Fields)
	}
}
