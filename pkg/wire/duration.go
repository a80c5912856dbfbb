package wire

import (
	"fmt"
	"time"
)

// DurationUnit identifies how a duration byte is interpreted.
type DurationUnit uint8

const (
	// DurationSeconds covers raw values 0x00-0x7F.
	DurationSeconds DurationUnit = iota

	// DurationMinutes covers raw values 0x80-0xFD (1-126 minutes).
	DurationMinutes

	// DurationUnknown is 0xFE in reports.
	DurationUnknown

	// DurationDefault is 0xFF, the device's factory default.
	DurationDefault
)

// String returns the unit name.
func (u DurationUnit) String() string {
	switch u {
	case DurationSeconds:
		return "seconds"
	case DurationMinutes:
		return "minutes"
	case DurationUnknown:
		return "unknown"
	case DurationDefault:
		return "default"
	default:
		return "invalid"
	}
}

const (
	durationRawUnknown    = 0xFE
	durationRawDefault    = 0xFF
	durationMaxSeconds    = 0x7F
	durationMinutesOffset = 0x7F
	durationMaxMinutes    = 0xFD - durationMinutesOffset
)

// Duration is a transition or remaining time carried in one byte.
type Duration struct {
	Value uint8
	Unit  DurationUnit
}

// ParseDuration decodes a duration byte.
func ParseDuration(b byte) Duration {
	switch {
	case b <= durationMaxSeconds:
		return Duration{Value: b, Unit: DurationSeconds}
	case b == durationRawUnknown:
		return Duration{Unit: DurationUnknown}
	case b == durationRawDefault:
		return Duration{Unit: DurationDefault}
	default:
		return Duration{Value: b - durationMinutesOffset, Unit: DurationMinutes}
	}
}

// NewDuration converts d to the closest representable duration.
// Values above 126 minutes are rejected.
func NewDuration(d time.Duration) (Duration, error) {
	secs := int64(d.Round(time.Second) / time.Second)
	switch {
	case secs < 0:
		return Duration{}, fmt.Errorf("%w: negative duration", ErrValueOutOfRange)
	case secs <= durationMaxSeconds:
		return Duration{Value: uint8(secs), Unit: DurationSeconds}, nil
	}
	mins := (secs + 30) / 60
	if mins > durationMaxMinutes {
		return Duration{}, fmt.Errorf("%w: %v exceeds %d minutes", ErrValueOutOfRange, d, durationMaxMinutes)
	}
	return Duration{Value: uint8(mins), Unit: DurationMinutes}, nil
}

// Serialize encodes the duration byte.
func (d Duration) Serialize() (byte, error) {
	switch d.Unit {
	case DurationSeconds:
		if d.Value > durationMaxSeconds {
			return 0, fmt.Errorf("%w: %d seconds", ErrValueOutOfRange, d.Value)
		}
		return d.Value, nil
	case DurationMinutes:
		if d.Value < 1 || d.Value > durationMaxMinutes {
			return 0, fmt.Errorf("%w: %d minutes", ErrValueOutOfRange, d.Value)
		}
		return d.Value + durationMinutesOffset, nil
	case DurationUnknown:
		return durationRawUnknown, nil
	case DurationDefault:
		return durationRawDefault, nil
	}
	return 0, fmt.Errorf("%w: unit %d", ErrValueOutOfRange, d.Unit)
}

// ToDuration converts to a time.Duration. Unknown and default map to 0, false.
func (d Duration) ToDuration() (time.Duration, bool) {
	switch d.Unit {
	case DurationSeconds:
		return time.Duration(d.Value) * time.Second, true
	case DurationMinutes:
		return time.Duration(d.Value) * time.Minute, true
	}
	return 0, false
}

// String returns e.g. "5 seconds".
func (d Duration) String() string {
	switch d.Unit {
	case DurationUnknown, DurationDefault:
		return d.Unit.String()
	}
	return fmt.Sprintf("%d %s", d.Value, d.Unit)
}
