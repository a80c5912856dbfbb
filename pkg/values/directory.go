package values

import (
	"errors"
	"sync"
	"time"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/pion/logging"
)

// Profile answers device-specific questions about a node. Implementations
// must be safe for concurrent use.
type Profile interface {
	// DeclaredVersion returns the version of class the node implements,
	// if known.
	DeclaredVersion(node cc.NodeID, class cc.CommandClass) (uint8, bool)

	// MetadataOverride returns a patch that replaces the default
	// metadata of a value.
	MetadataOverride(node cc.NodeID, id ValueID) (MetadataPatch, bool)

	// PartialParameters returns bit field definitions for a
	// configuration parameter.
	PartialParameters(node cc.NodeID, param uint16) []PartialParameter
}

// DirectoryConfig configures a Directory.
type DirectoryConfig struct {
	// Profile is consulted for versions and metadata overrides. Optional.
	Profile Profile

	// Sink receives the updates of each command. Optional.
	Sink Sink

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

type nodeValue struct {
	node cc.NodeID
	id   ValueID
}

// Directory translates decoded commands into value updates and keeps the
// merged metadata of every value it has exposed.
//
// Thread-safe.
type Directory struct {
	profile Profile
	sink    Sink
	log     logging.LeveledLogger

	metadata map[nodeValue]Metadata

	mu sync.RWMutex
}

// NewDirectory creates an empty directory.
func NewDirectory(config DirectoryConfig) *Directory {
	d := &Directory{
		profile:  config.Profile,
		sink:     config.Sink,
		metadata: make(map[nodeValue]Metadata),
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("values")
	}
	return d
}

// OnCommandDecoded exposes the values of the application command inside
// cmd and publishes them as one Batch. Commands whose fields expose
// nothing return no updates.
func (d *Directory) OnCommandDecoded(cmd *cc.Command) ([]Update, error) {
	if cmd == nil {
		return nil, errors.New("values: nil command")
	}
	app := cmd.Innermost()
	exposer, ok := app.Fields.(Exposer)
	if !ok {
		return nil, nil
	}

	node := app.NodeID
	ctx := ExposeContext{
		NodeID:   node,
		Endpoint: app.Endpoint,
		Version:  d.version(node, app),
		Metadata: func(id ValueID) (Metadata, bool) { return d.Metadata(node, id) },
	}
	if d.profile != nil {
		ctx.PartialParameters = func(param uint16) []PartialParameter {
			return d.profile.PartialParameters(node, param)
		}
	}

	updates := exposer.ExposeValues(ctx)
	if len(updates) == 0 {
		return nil, nil
	}
	d.applyMetadata(node, updates)

	if d.log != nil {
		d.log.Tracef("node %d %s exposed %d values", node, app.Identity, len(updates))
	}
	if d.sink != nil {
		d.sink.Publish(Batch{NodeID: node, Command: app.Identity, Updates: updates, Timestamp: time.Now()})
	}
	return updates, nil
}

// version returns the declared version, capped by the parse version.
func (d *Directory) version(node cc.NodeID, app *cc.Command) uint8 {
	v := app.Version
	if d.profile == nil {
		return v
	}
	declared, ok := d.profile.DeclaredVersion(node, app.CommandClass)
	if !ok || declared == 0 {
		return v
	}
	if v == 0 || declared < v {
		return declared
	}
	return v
}

// applyMetadata merges every update's patch, and any profile override,
// into the stored metadata. Each update's Metadata is replaced by the
// effective patch.
func (d *Directory) applyMetadata(node cc.NodeID, updates []Update) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range updates {
		u := &updates[i]
		key := nodeValue{node, u.ID}
		current, known := d.metadata[key]

		var patch MetadataPatch
		if u.Metadata != nil {
			patch = *u.Metadata
		}
		if d.profile != nil {
			if override, ok := d.profile.MetadataOverride(node, u.ID); ok {
				override.Override = true
				patch = patch.Merge(override)
			}
		}
		if u.Metadata == nil && patch.isEmpty() {
			if !known {
				d.metadata[key] = Metadata{Type: TypeAny, Readable: true}
			}
			continue
		}
		d.metadata[key] = patch.Apply(current)
		u.Metadata = &patch
	}
}

// Metadata returns the merged metadata of a value.
func (d *Directory) Metadata(node cc.NodeID, id ValueID) (Metadata, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.metadata[nodeValue{node, id}]
	return m, ok
}

// ValueIDs returns the ids of all values known for node.
func (d *Directory) ValueIDs(node cc.NodeID) []ValueID {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var ids []ValueID
	for k := range d.metadata {
		if k.node == node {
			ids = append(ids, k.id)
		}
	}
	return ids
}

// RemoveNode forgets all metadata of node.
func (d *Directory) RemoveNode(node cc.NodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k := range d.metadata {
		if k.node == node {
			delete(d.metadata, k)
		}
	}
}
