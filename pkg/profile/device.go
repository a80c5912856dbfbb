// Package profile implements values.Profile from YAML device files.
//
// A device file describes one product: the command class versions the
// device really implements where its reports are wrong, the layout of its
// configuration parameters including bit fields, and metadata overrides
// for individual values.
//
//	manufacturerId: 0x0086
//	productType: 0x0002
//	productId: 0x0064
//	label: ZW100
//	commandClasses:
//	  - id: 0x70
//	    version: 1
//	paramInformation:
//	  - parameter: 101
//	    label: Group 1 reports
//	    partials:
//	      - mask: 0x01
//	        label: Battery
package profile

import (
	"fmt"
	"strconv"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/values"
	"gopkg.in/yaml.v3"
)

// Number is an unsigned integer written in decimal or with a 0x prefix.
type Number uint32

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	v, err := strconv.ParseUint(node.Value, 0, 32)
	if err != nil {
		return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
	}
	*n = Number(v)
	return nil
}

// ProductKey identifies a product.
type ProductKey struct {
	Manufacturer uint16
	ProductType  uint16
	ProductID    uint16
}

func (k ProductKey) String() string {
	return fmt.Sprintf("%04x:%04x:%04x", k.Manufacturer, k.ProductType, k.ProductID)
}

// Device is one parsed device file.
type Device struct {
	Manufacturer   Number              `yaml:"manufacturerId"`
	ProductType    Number              `yaml:"productType"`
	ProductID      Number              `yaml:"productId"`
	Label          string              `yaml:"label"`
	Description    string              `yaml:"description"`
	CommandClasses []CommandClassEntry `yaml:"commandClasses"`
	Parameters     []Parameter         `yaml:"paramInformation"`
	Metadata       []MetadataEntry     `yaml:"metadata"`
}

// CommandClassEntry pins the version of a command class.
type CommandClassEntry struct {
	ID      Number `yaml:"id"`
	Version uint8  `yaml:"version"`
}

// Option is one named value of a parameter or bit field.
type Option struct {
	Label string `yaml:"label"`
	Value int64  `yaml:"value"`
}

// Parameter describes a configuration parameter.
type Parameter struct {
	Parameter   Number    `yaml:"parameter"`
	Label       string    `yaml:"label"`
	Description string    `yaml:"description"`
	Unit        string    `yaml:"unit"`
	Min         *float64  `yaml:"minValue"`
	Max         *float64  `yaml:"maxValue"`
	Default     *float64  `yaml:"defaultValue"`
	ReadOnly    bool      `yaml:"readOnly"`
	Options     []Option  `yaml:"options"`
	Partials    []Partial `yaml:"partials"`
}

// Partial describes a bit field of a parameter.
type Partial struct {
	Mask    Number   `yaml:"mask"`
	Label   string   `yaml:"label"`
	Unit    string   `yaml:"unit"`
	Signed  bool     `yaml:"signed"`
	Min     *float64 `yaml:"minValue"`
	Max     *float64 `yaml:"maxValue"`
	Options []Option `yaml:"options"`
}

// MetadataEntry overrides the metadata of one value.
type MetadataEntry struct {
	CommandClass Number   `yaml:"commandClass"`
	Endpoint     uint8    `yaml:"endpoint"`
	Property     string   `yaml:"property"`
	PropertyKey  string   `yaml:"propertyKey"`
	Label        string   `yaml:"label"`
	Unit         string   `yaml:"unit"`
	Min          *float64 `yaml:"minValue"`
	Max          *float64 `yaml:"maxValue"`
	Writeable    *bool    `yaml:"writeable"`
	Options      []Option `yaml:"options"`
}

// Key returns the product the file describes.
func (d *Device) Key() ProductKey {
	return ProductKey{uint16(d.Manufacturer), uint16(d.ProductType), uint16(d.ProductID)}
}

// Parse decodes and validates a device file.
func Parse(data []byte) (*Device, error) {
	var d Device
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks identifiers, versions and masks.
func (d *Device) Validate() error {
	for _, n := range []Number{d.Manufacturer, d.ProductType, d.ProductID} {
		if n > 0xFFFF {
			return &LoadError{Message: fmt.Sprintf("product identifier 0x%X exceeds 16 bits", uint32(n))}
		}
	}
	for _, c := range d.CommandClasses {
		if c.ID > 0xFFFF || c.Version == 0 {
			return &LoadError{Message: fmt.Sprintf("invalid command class entry 0x%X version %d", uint32(c.ID), c.Version)}
		}
	}
	seen := make(map[Number]bool, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Parameter > 0xFFFF {
			return &LoadError{Message: fmt.Sprintf("parameter %d exceeds 16 bits", p.Parameter)}
		}
		if seen[p.Parameter] {
			return &LoadError{Message: fmt.Sprintf("parameter %d defined twice", p.Parameter)}
		}
		seen[p.Parameter] = true

		var used uint32
		for _, part := range p.Partials {
			if part.Mask == 0 {
				return &LoadError{Message: fmt.Sprintf("parameter %d: empty bit mask", p.Parameter)}
			}
			if used&uint32(part.Mask) != 0 {
				return &LoadError{Message: fmt.Sprintf("parameter %d: bit mask 0x%X overlaps another", p.Parameter, uint32(part.Mask))}
			}
			used |= uint32(part.Mask)
		}
	}
	return nil
}

func states(options []Option) map[int64]string {
	if len(options) == 0 {
		return nil
	}
	m := make(map[int64]string, len(options))
	for _, o := range options {
		m[o.Value] = o.Label
	}
	return m
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// partialParameters returns the bit fields of param.
func (d *Device) partialParameters(param uint16) []values.PartialParameter {
	for _, p := range d.Parameters {
		if uint16(p.Parameter) != param {
			continue
		}
		out := make([]values.PartialParameter, 0, len(p.Partials))
		for _, part := range p.Partials {
			out = append(out, values.PartialParameter{
				Parameter: param,
				Mask:      uint32(part.Mask),
				Signed:    part.Signed,
				Label:     part.Label,
				Unit:      part.Unit,
				Min:       part.Min,
				Max:       part.Max,
				States:    states(part.Options),
			})
		}
		return out
	}
	return nil
}

// version returns the pinned version of class.
func (d *Device) version(class cc.CommandClass) (uint8, bool) {
	for _, c := range d.CommandClasses {
		if cc.CommandClass(c.ID) == class {
			return c.Version, true
		}
	}
	return 0, false
}
