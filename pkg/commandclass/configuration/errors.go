package configuration

import (
	"errors"
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
)

var (
	// ErrInvalidValueSize indicates a value size other than 1, 2 or 4.
	ErrInvalidValueSize = errors.New("configuration: invalid value size")

	// ErrInvalidParameter indicates a parameter number outside the
	// range of the command.
	ErrInvalidParameter = errors.New("configuration: invalid parameter")
)

// FirstParameterError is returned when matching a Get against a Report
// for a different parameter. Devices answer a Get for an unsupported
// parameter with their first supported one, so First is a usable hint.
// It matches cc.ErrNoMatch.
type FirstParameterError struct {
	Requested uint16
	First     uint16
}

func (e *FirstParameterError) Error() string {
	return fmt.Sprintf("configuration: parameter %d not supported, first parameter is %d", e.Requested, e.First)
}

// Unwrap returns cc.ErrNoMatch.
func (e *FirstParameterError) Unwrap() error { return cc.ErrNoMatch }
