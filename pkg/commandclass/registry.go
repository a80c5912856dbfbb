// Package commandclass assembles the registry of every implemented
// command class.
package commandclass

import (
	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/commandclass/association"
	"github.com/backkem/zwave/pkg/commandclass/basic"
	"github.com/backkem/zwave/pkg/commandclass/battery"
	"github.com/backkem/zwave/pkg/commandclass/binaryswitch"
	"github.com/backkem/zwave/pkg/commandclass/configuration"
	"github.com/backkem/zwave/pkg/commandclass/crc16"
	"github.com/backkem/zwave/pkg/commandclass/multichannel"
	"github.com/backkem/zwave/pkg/commandclass/multilevelsensor"
	"github.com/backkem/zwave/pkg/commandclass/nooperation"
	"github.com/backkem/zwave/pkg/commandclass/s0"
	"github.com/backkem/zwave/pkg/commandclass/s2"
	"github.com/backkem/zwave/pkg/commandclass/supervision"
	"github.com/backkem/zwave/pkg/commandclass/transportservice"
	"github.com/backkem/zwave/pkg/commandclass/version"
)

// registrars lists every class package in ascending class id order.
var registrars = []func(*cc.Registry) error{
	nooperation.Register,
	basic.Register,
	binaryswitch.Register,
	multilevelsensor.Register,
	transportservice.Register,
	crc16.Register,
	multichannel.Register,
	supervision.Register,
	configuration.Register,
	battery.Register,
	association.Register,
	version.Register,
	s0.Register,
	s2.Register,
}

// NewRegistry returns a registry populated with all implemented command
// classes. It is read-only once returned.
func NewRegistry() (*cc.Registry, error) {
	r := cc.NewRegistry()
	for _, register := range registrars {
		if err := register(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}
