// Package wire implements the byte-level primitives shared by every Z-Wave
// command class codec.
//
// The package provides:
//   - Fixed and variable width integers (1-8 bytes, signed or unsigned,
//     big or little endian)
//   - Bitmask to set and set to bitmask conversion
//   - The "precision, scale, size" fixed-point format used for measurements
//   - Bit-masked partial values used by configuration parameters
//   - The duration byte used by actuator command classes
//   - The CRC-16 checksum used by the CRC-16 and transport service layers
//
// All functions are pure and safe for concurrent use. Any read past the end
// of a byte slice returns an error wrapping ErrPacketFormat; writers never
// truncate a value silently.
package wire
