package cc

import "fmt"

// Identity selects the decode and encode routine for a command.
type Identity struct {
	CommandClass CommandClass

	// CommandID is meaningless when HasCommandID is false.
	CommandID    uint8
	HasCommandID bool

	// Version is the command class version the fields were parsed with
	// or will be serialized for. Zero means the newest registered version.
	Version uint8
}

// String returns e.g. "Basic/0x03 v2".
func (id Identity) String() string {
	if !id.HasCommandID {
		return fmt.Sprintf("%s v%d", id.CommandClass, id.Version)
	}
	return fmt.Sprintf("%s/0x%02X v%d", id.CommandClass, id.CommandID, id.Version)
}

// Fields is the typed content of one command variant.
type Fields interface {
	CommandClass() CommandClass
	CommandID() uint8

	// Serialize returns the bytes following the command id, emitting only
	// fields that exist in the given version.
	Serialize(version uint8) ([]byte, error)
}

// Validator is implemented by Fields that check their own ranges before
// an outgoing command is built.
type Validator interface {
	Validate() error
}

// Commandless is implemented by Fields of classes whose frames carry no
// command id byte after the class id.
type Commandless interface {
	Commandless() bool
}

// HasCommandID reports whether f is framed with a command id byte.
func HasCommandID(f Fields) bool {
	if c, ok := f.(Commandless); ok {
		return !c.Commandless()
	}
	return true
}

// Command is one decoded or constructed command.
type Command struct {
	Identity

	NodeID   NodeID
	Endpoint uint8

	// Payload holds the bytes following the command class id, i.e. from
	// the command id onward. Set on decode and on encode.
	Payload []byte

	Fields Fields

	// Encapsulated is the inner command when this is an encapsulation
	// command. The outer command owns it exclusively.
	Encapsulated *Command
}

// NewCommand constructs an outgoing command from typed fields. Fields
// implementing Validator are checked and failures are returned as
// *ConstructionError.
func NewCommand(node NodeID, endpoint uint8, fields Fields) (*Command, error) {
	if fields == nil {
		return nil, Constructionf("nil fields")
	}
	if v, ok := fields.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, &ConstructionError{Reason: fields.CommandClass().String(), Err: err}
		}
	}
	return &Command{
		Identity: Identity{
			CommandClass: fields.CommandClass(),
			CommandID:    fields.CommandID(),
			HasCommandID: HasCommandID(fields),
		},
		NodeID:   node,
		Endpoint: endpoint,
		Fields:   fields,
	}, nil
}

// Innermost follows Encapsulated to the application command.
func (c *Command) Innermost() *Command {
	for c.Encapsulated != nil {
		c = c.Encapsulated
	}
	return c
}

// IsUnrecognized reports whether the fields are an *Unrecognized.
func (c *Command) IsUnrecognized() bool {
	_, ok := c.Fields.(*Unrecognized)
	return ok
}

func (c *Command) String() string {
	if c.Encapsulated != nil {
		return fmt.Sprintf("%s node=%d ep=%d [%s]", c.Identity, c.NodeID, c.Endpoint, c.Encapsulated)
	}
	return fmt.Sprintf("%s node=%d ep=%d", c.Identity, c.NodeID, c.Endpoint)
}

// Unrecognized holds a command whose class or command id has no
// registered variant. Body is everything after the command id and is
// re-emitted unchanged by Serialize.
type Unrecognized struct {
	Class      CommandClass
	Command    uint8
	HasCommand bool
	Body       []byte
}

// CommandClass implements Fields.
func (u *Unrecognized) CommandClass() CommandClass { return u.Class }

// CommandID implements Fields.
func (u *Unrecognized) CommandID() uint8 { return u.Command }

// Commandless implements Commandless.
func (u *Unrecognized) Commandless() bool { return !u.HasCommand }

// Serialize implements Fields.
func (u *Unrecognized) Serialize(uint8) ([]byte, error) {
	return append([]byte(nil), u.Body...), nil
}

// Raw returns the bytes from the command id onward.
func (u *Unrecognized) Raw() []byte {
	if !u.HasCommand {
		return append([]byte(nil), u.Body...)
	}
	return append([]byte{u.Command}, u.Body...)
}
