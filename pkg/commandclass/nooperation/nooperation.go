// Package nooperation implements the No Operation command class (0x00).
// Its frames carry no command id and are used to ping nodes.
package nooperation

import "github.com/backkem/zwave/pkg/cc"

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.NoOperation, Name: "No Operation", Version: 1, NoCommandID: true}); err != nil {
		return err
	}
	return r.RegisterVariant(cc.NoOperation, cc.VariantSpec{
		Name:  "NoOperation",
		Parse: func([]byte, uint8) (cc.Fields, error) { return &NoOperation{}, nil },
		New:   func() cc.Fields { return &NoOperation{} },
	})
}

// NoOperation is an empty frame.
type NoOperation struct{}

func (*NoOperation) CommandClass() cc.CommandClass   { return cc.NoOperation }
func (*NoOperation) CommandID() uint8                { return 0 }
func (*NoOperation) Commandless() bool               { return true }
func (*NoOperation) Serialize(uint8) ([]byte, error) { return nil, nil }
