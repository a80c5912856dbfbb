package cc

import (
	"fmt"
	"sort"
	"sync"
)

// ParseFunc parses the bytes following the command id for one variant.
// Parsers check len(body) before reading version-gated optional fields.
type ParseFunc func(body []byte, version uint8) (Fields, error)

// MatchFunc reports whether resp answers req. It returns nil on a match,
// ErrNoMatch when unrelated, or a distinguishable error when the response
// is a hint rather than an answer.
type MatchFunc func(req, resp Fields) error

// ResponseSpec describes the response a request variant expects.
type ResponseSpec struct {
	CommandClass CommandClass
	CommandID    uint8

	// Match is optional; nil accepts every response of the expected shape.
	Match MatchFunc
}

// VariantSpec registers one command of a command class.
type VariantSpec struct {
	CommandID uint8
	Name      string
	Parse     ParseFunc

	// New returns a zero value for named-field construction. Optional;
	// variants without it cannot be built with Registry.Build.
	New func() Fields

	// Response is set on request variants.
	Response *ResponseSpec
}

// Descriptor describes a command class.
type Descriptor struct {
	ID   CommandClass
	Name string

	// Version is the highest implemented version.
	Version uint8

	// NoCommandID marks classes whose frames carry no command id byte.
	// Such classes register a single variant with CommandID 0.
	NoCommandID bool
}

type classEntry struct {
	desc     Descriptor
	variants map[uint8]*VariantSpec
}

// Registry maps command class ids to descriptors and variants.
//
// Thread-safe. Registration happens once at startup; lookups afterwards
// only take the read lock.
type Registry struct {
	classes map[CommandClass]*classEntry

	mu sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[CommandClass]*classEntry),
	}
}

// RegisterCommandClass adds a command class descriptor.
func (r *Registry) RegisterCommandClass(desc Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[desc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, desc.ID)
	}
	if desc.Version == 0 {
		desc.Version = 1
	}
	r.classes[desc.ID] = &classEntry{
		desc:     desc,
		variants: make(map[uint8]*VariantSpec),
	}
	return nil
}

// RegisterVariant adds a variant to a registered command class.
func (r *Registry) RegisterVariant(id CommandClass, spec VariantSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.classes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommandClass, id)
	}
	if spec.Parse == nil {
		return fmt.Errorf("cc: variant %s/0x%02X has no parser", id, spec.CommandID)
	}
	if _, exists := entry.variants[spec.CommandID]; exists {
		return fmt.Errorf("%w: %s/0x%02X", ErrDuplicateRegistration, id, spec.CommandID)
	}
	s := spec
	entry.variants[spec.CommandID] = &s
	return nil
}

// Resolve returns the descriptor of a command class.
func (r *Registry) Resolve(id CommandClass) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.classes[id]
	if !ok {
		return Descriptor{}, false
	}
	return entry.desc, true
}

// ResolveVariant returns the variant registered for (id, cmd).
func (r *Registry) ResolveVariant(id CommandClass, cmd uint8) (*VariantSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.classes[id]
	if !ok {
		return nil, false
	}
	v, ok := entry.variants[cmd]
	return v, ok
}

// CommandClasses returns all registered ids in ascending order.
func (r *Registry) CommandClasses() []CommandClass {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]CommandClass, 0, len(r.classes))
	for id := range r.classes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// VersionFunc returns the version to parse a command class with. Zero
// selects the newest registered version.
type VersionFunc func(id CommandClass) uint8

// DecodeContext carries the addressing and version information for one decode.
type DecodeContext struct {
	NodeID   NodeID
	Endpoint uint8
	Versions VersionFunc
}

func (r *Registry) effectiveVersion(desc Descriptor, requested uint8) uint8 {
	if requested == 0 || requested > desc.Version {
		return desc.Version
	}
	return requested
}

// Decode parses one command from data, which starts with the command
// class id. Unknown classes and commands decode to *Unrecognized; only a
// missing mandatory header or a variant parse failure returns an error,
// which wraps ErrPacketFormat.
func (r *Registry) Decode(data []byte, ctx DecodeContext) (*Command, error) {
	id, n, err := ParseCommandClass(data)
	if err != nil {
		return nil, err
	}
	payload := append([]byte(nil), data[n:]...)

	cmd := &Command{
		Identity: Identity{CommandClass: id},
		NodeID:   ctx.NodeID,
		Endpoint: ctx.Endpoint,
		Payload:  payload,
	}

	desc, ok := r.Resolve(id)
	if !ok {
		u := &Unrecognized{Class: id}
		if len(payload) > 0 {
			u.Command = payload[0]
			u.HasCommand = true
			u.Body = payload[1:]
		}
		cmd.CommandID = u.Command
		cmd.HasCommandID = u.HasCommand
		cmd.Fields = u
		return cmd, nil
	}

	var requested uint8
	if ctx.Versions != nil {
		requested = ctx.Versions(id)
	}
	cmd.Version = r.effectiveVersion(desc, requested)

	var cmdID uint8
	body := payload
	if !desc.NoCommandID {
		if len(payload) < 1 {
			return nil, Packetf("%s: missing command id", id)
		}
		cmdID = payload[0]
		body = payload[1:]
		cmd.CommandID = cmdID
		cmd.HasCommandID = true
	}

	variant, ok := r.ResolveVariant(id, cmdID)
	if !ok {
		cmd.Fields = &Unrecognized{
			Class:      id,
			Command:    cmdID,
			HasCommand: !desc.NoCommandID,
			Body:       append([]byte(nil), body...),
		}
		return cmd, nil
	}

	fields, err := variant.Parse(body, cmd.Version)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", id, variant.Name, err)
	}
	cmd.Fields = fields
	return cmd, nil
}

// Encode serializes cmd and stores the bytes following the class id in
// cmd.Payload. Commands without Fields are emitted from Payload.
func (r *Registry) Encode(cmd *Command) ([]byte, error) {
	if cmd == nil {
		return nil, Constructionf("nil command")
	}
	out := cmd.CommandClass.AppendTo(nil)
	if cmd.Fields == nil {
		return append(out, cmd.Payload...), nil
	}

	version := cmd.Version
	if desc, ok := r.Resolve(cmd.CommandClass); ok {
		version = r.effectiveVersion(desc, version)
	}

	body, err := cmd.Fields.Serialize(version)
	if err != nil {
		return nil, &ConstructionError{Reason: cmd.Identity.String(), Err: err}
	}

	start := len(out)
	if HasCommandID(cmd.Fields) {
		out = append(out, cmd.Fields.CommandID())
	}
	out = append(out, body...)
	cmd.Payload = append([]byte(nil), out[start:]...)
	return out, nil
}

// Expects returns the response a command expects, if any.
func (r *Registry) Expects(cmd *Command) (ResponseSpec, bool) {
	if cmd == nil || cmd.Fields == nil {
		return ResponseSpec{}, false
	}
	v, ok := r.ResolveVariant(cmd.Fields.CommandClass(), cmd.Fields.CommandID())
	if !ok || v.Response == nil {
		return ResponseSpec{}, false
	}
	return *v.Response, true
}

// MatchResponse reports whether resp answers req. Both are application
// commands with encapsulation already removed. It returns nil on a match,
// ErrNotRequest when req expects nothing, ErrNoMatch when resp has the wrong
// shape, or the variant's match error.
func (r *Registry) MatchResponse(req, resp *Command) error {
	spec, ok := r.Expects(req)
	if !ok {
		return ErrNotRequest
	}
	if resp == nil || resp.Fields == nil {
		return ErrNoMatch
	}
	if resp.Fields.CommandClass() != spec.CommandClass || resp.Fields.CommandID() != spec.CommandID {
		return ErrNoMatch
	}
	if _, ok := resp.Fields.(*Unrecognized); ok {
		return ErrNoMatch
	}
	if spec.Match == nil {
		return nil
	}
	return spec.Match(req.Fields, resp.Fields)
}
