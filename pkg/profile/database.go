package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/commandclass/configuration"
	"github.com/backkem/zwave/pkg/values"
)

// LoadError reports a device file that could not be loaded.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Database holds device files and the product each node was identified
// as. It also records the versions nodes report for their command
// classes; a version pinned by the device file takes precedence.
//
// Thread-safe.
type Database struct {
	devices  map[ProductKey]*Device
	nodes    map[cc.NodeID]*Device
	versions map[cc.NodeID]map[cc.CommandClass]uint8

	mu sync.RWMutex
}

var _ values.Profile = (*Database)(nil)

// NewDatabase creates an empty database.
func NewDatabase() *Database {
	return &Database{
		devices:  make(map[ProductKey]*Device),
		nodes:    make(map[cc.NodeID]*Device),
		versions: make(map[cc.NodeID]map[cc.CommandClass]uint8),
	}
}

// Add registers a device, replacing any file for the same product.
func (db *Database) Add(d *Device) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.devices[d.Key()] = d
}

// LoadFile parses path and adds the device.
func (db *Database) LoadFile(path string) (*Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	d, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	db.Add(d)
	return d, nil
}

// LoadDirectory adds every .yaml and .yml file below dir.
func (db *Database) LoadDirectory(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if _, err := db.LoadFile(path); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

// Lookup returns the device file for a product.
func (db *Database) Lookup(key ProductKey) (*Device, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	d, ok := db.devices[key]
	return d, ok
}

// Assign records that node is the given product. Nodes of unknown
// products are still tracked for their reported versions.
func (db *Database) Assign(node cc.NodeID, key ProductKey) (*Device, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	d, ok := db.devices[key]
	if ok {
		db.nodes[node] = d
	} else {
		delete(db.nodes, node)
	}
	return d, ok
}

// SetVersion records the version node reported for class.
func (db *Database) SetVersion(node cc.NodeID, class cc.CommandClass, version uint8) {
	db.mu.Lock()
	defer db.mu.Unlock()

	m, ok := db.versions[node]
	if !ok {
		m = make(map[cc.CommandClass]uint8)
		db.versions[node] = m
	}
	m[class] = version
}

// RemoveNode forgets the product and versions of node.
func (db *Database) RemoveNode(node cc.NodeID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.nodes, node)
	delete(db.versions, node)
}

func (db *Database) device(node cc.NodeID) *Device {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.nodes[node]
}

// DeclaredVersion implements values.Profile.
func (db *Database) DeclaredVersion(node cc.NodeID, class cc.CommandClass) (uint8, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if d, ok := db.nodes[node]; ok {
		if v, ok := d.version(class); ok {
			return v, true
		}
	}
	v, ok := db.versions[node][class]
	return v, ok
}

// PartialParameters implements values.Profile.
func (db *Database) PartialParameters(node cc.NodeID, param uint16) []values.PartialParameter {
	d := db.device(node)
	if d == nil {
		return nil
	}
	return d.partialParameters(param)
}

// MetadataOverride implements values.Profile. Configuration parameters
// and their bit fields take label, bounds and options from the parameter
// information; other values from the metadata entries.
func (db *Database) MetadataOverride(node cc.NodeID, id values.ValueID) (values.MetadataPatch, bool) {
	d := db.device(node)
	if d == nil {
		return values.MetadataPatch{}, false
	}
	if id.CommandClass == cc.Configuration && id.Property.IsIndex() {
		if p, ok := parameterPatch(d, id); ok {
			return p, true
		}
	}
	for _, m := range d.Metadata {
		if m.matches(id) {
			return m.patch(), true
		}
	}
	return values.MetadataPatch{}, false
}

func parameterPatch(d *Device, id values.ValueID) (values.MetadataPatch, bool) {
	for _, p := range d.Parameters {
		if uint32(p.Parameter) != id.Property.Index() {
			continue
		}
		if id.PropertyKey.IsZero() {
			return values.MetadataPatch{
				Label:       optional(p.Label),
				Description: optional(p.Description),
				Unit:        optional(p.Unit),
				Min:         p.Min,
				Max:         p.Max,
				Default:     p.Default,
				Writeable:   values.Ptr(!p.ReadOnly),
				States:      states(p.Options),
			}, true
		}
		for _, part := range p.Partials {
			if configuration.PartialID(id.Endpoint, uint16(p.Parameter), uint32(part.Mask)) != id {
				continue
			}
			return values.MetadataPatch{
				Label:     optional(part.Label),
				Unit:      optional(part.Unit),
				Min:       part.Min,
				Max:       part.Max,
				Writeable: values.Ptr(!p.ReadOnly),
				States:    states(part.Options),
			}, true
		}
	}
	return values.MetadataPatch{}, false
}

func (m MetadataEntry) matches(id values.ValueID) bool {
	if cc.CommandClass(m.CommandClass) != id.CommandClass || m.Endpoint != id.Endpoint {
		return false
	}
	return propertyText(id.Property) == m.Property && propertyText(id.PropertyKey) == m.PropertyKey
}

func propertyText(p values.Property) string {
	b, _ := p.MarshalText()
	return string(b)
}

func (m MetadataEntry) patch() values.MetadataPatch {
	return values.MetadataPatch{
		Label:     optional(m.Label),
		Unit:      optional(m.Unit),
		Min:       m.Min,
		Max:       m.Max,
		Writeable: m.Writeable,
		States:    states(m.Options),
	}
}

// Describe returns a one-line summary of the product assigned to node.
func (db *Database) Describe(node cc.NodeID) string {
	d := db.device(node)
	if d == nil {
		return fmt.Sprintf("node %d: unknown product", node)
	}
	return fmt.Sprintf("node %d: %s %s (%s)", node, d.Label, d.Description, d.Key())
}
