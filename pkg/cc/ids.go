package cc

import "fmt"

// CommandClass is a command class identifier. Ids whose first byte is
// 0xF1 or higher are extended and take two bytes on the wire.
type CommandClass uint16

// Command classes implemented by this module.
const (
	NoOperation      CommandClass = 0x00
	Basic            CommandClass = 0x20
	BinarySwitch     CommandClass = 0x25
	MultilevelSensor CommandClass = 0x31
	TransportService CommandClass = 0x55
	CRC16Encap       CommandClass = 0x56
	MultiChannel     CommandClass = 0x60
	Supervision      CommandClass = 0x6C
	Configuration    CommandClass = 0x70
	Battery          CommandClass = 0x80
	Association      CommandClass = 0x85
	Version          CommandClass = 0x86
	Security         CommandClass = 0x98
	Security2        CommandClass = 0x9F
)

// extendedPrefix is the lowest first byte of a two-byte command class id.
const extendedPrefix = 0xF1

var classNames = map[CommandClass]string{
	NoOperation:      "No Operation",
	Basic:            "Basic",
	BinarySwitch:     "Binary Switch",
	MultilevelSensor: "Multilevel Sensor",
	TransportService: "Transport Service",
	CRC16Encap:       "CRC-16 Encapsulation",
	MultiChannel:     "Multi Channel",
	Supervision:      "Supervision",
	Configuration:    "Configuration",
	Battery:          "Battery",
	Association:      "Association",
	Version:          "Version",
	Security:         "Security",
	Security2:        "Security 2",
}

// String returns the class name, or its hex id when unknown.
func (c CommandClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	if c.IsExtended() {
		return fmt.Sprintf("0x%04X", uint16(c))
	}
	return fmt.Sprintf("0x%02X", uint16(c))
}

// IsExtended reports whether the id is encoded in two bytes.
func (c CommandClass) IsExtended() bool {
	return c>>8 >= extendedPrefix
}

// Size returns the number of bytes the id occupies on the wire.
func (c CommandClass) Size() int {
	if c.IsExtended() {
		return 2
	}
	return 1
}

// AppendTo appends the wire encoding of the id to dst.
func (c CommandClass) AppendTo(dst []byte) []byte {
	if c.IsExtended() {
		return append(dst, byte(c>>8), byte(c))
	}
	return append(dst, byte(c))
}

// ParseCommandClass reads a command class id from the start of b and
// returns it with the number of bytes consumed.
func ParseCommandClass(b []byte) (CommandClass, int, error) {
	if len(b) < 1 {
		return 0, 0, Packetf("missing command class")
	}
	if b[0] < extendedPrefix {
		return CommandClass(b[0]), 1, nil
	}
	if len(b) < 2 {
		return 0, 0, Packetf("truncated extended command class 0x%02X", b[0])
	}
	return CommandClass(b[0])<<8 | CommandClass(b[1]), 2, nil
}

// NodeID identifies a node in the network.
type NodeID uint16
