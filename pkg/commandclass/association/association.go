// Package association implements the Association command class (0x85),
// versions 1-2.
package association

import (
	"fmt"
	"sort"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/values"
	"github.com/backkem/zwave/pkg/wire"
)

// Command ids.
const (
	CmdSet                      uint8 = 0x01
	CmdGet                      uint8 = 0x02
	CmdReport                   uint8 = 0x03
	CmdRemove                   uint8 = 0x04
	CmdSupportedGroupingsGet    uint8 = 0x05
	CmdSupportedGroupingsReport uint8 = 0x06
	CmdSpecificGroupGet         uint8 = 0x0B
	CmdSpecificGroupReport      uint8 = 0x0C
)

// Version is the highest implemented version.
const Version = 2

// MaxNodeID is the highest node id an association can carry.
const MaxNodeID = 232

// Register adds the class to r.
func Register(r *cc.Registry) error {
	if err := r.RegisterCommandClass(cc.Descriptor{ID: cc.Association, Name: "Association", Version: Version}); err != nil {
		return err
	}
	variants := []cc.VariantSpec{
		{CommandID: CmdSet, Name: "Set", Parse: parseNodeList(func(g uint8, n []cc.NodeID) cc.Fields { return &Set{Group: g, Nodes: n} }), New: func() cc.Fields { return &Set{} }},
		{
			CommandID: CmdGet,
			Name:      "Get",
			Parse:     parseGet,
			New:       func() cc.Fields { return &Get{} },
			Response: &cc.ResponseSpec{
				CommandClass: cc.Association,
				CommandID:    CmdReport,
				Match: func(req, resp cc.Fields) error {
					if req.(*Get).Group != resp.(*Report).Group {
						return cc.ErrNoMatch
					}
					return nil
				},
			},
		},
		{CommandID: CmdReport, Name: "Report", Parse: parseReport},
		{CommandID: CmdRemove, Name: "Remove", Parse: parseNodeList(func(g uint8, n []cc.NodeID) cc.Fields { return &Remove{Group: g, Nodes: n} }), New: func() cc.Fields { return &Remove{} }},
		{
			CommandID: CmdSupportedGroupingsGet,
			Name:      "SupportedGroupingsGet",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &SupportedGroupingsGet{}, nil },
			New:       func() cc.Fields { return &SupportedGroupingsGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Association, CommandID: CmdSupportedGroupingsReport},
		},
		{CommandID: CmdSupportedGroupingsReport, Name: "SupportedGroupingsReport", Parse: parseSupportedGroupingsReport},
		{
			CommandID: CmdSpecificGroupGet,
			Name:      "SpecificGroupGet",
			Parse:     func([]byte, uint8) (cc.Fields, error) { return &SpecificGroupGet{}, nil },
			New:       func() cc.Fields { return &SpecificGroupGet{} },
			Response:  &cc.ResponseSpec{CommandClass: cc.Association, CommandID: CmdSpecificGroupReport},
		},
		{CommandID: CmdSpecificGroupReport, Name: "SpecificGroupReport", Parse: parseSpecificGroupReport},
	}
	for _, v := range variants {
		if err := r.RegisterVariant(cc.Association, v); err != nil {
			return err
		}
	}
	return nil
}

func checkNodes(nodes []cc.NodeID) error {
	for _, n := range nodes {
		if n < 1 || n > MaxNodeID {
			return fmt.Errorf("%w: node %d", wire.ErrValueOutOfRange, n)
		}
	}
	return nil
}

func appendNodes(out []byte, nodes []cc.NodeID) []byte {
	for _, n := range nodes {
		out = append(out, byte(n))
	}
	return out
}

func readNodes(b []byte) []cc.NodeID {
	if len(b) == 0 {
		return nil
	}
	nodes := make([]cc.NodeID, 0, len(b))
	for _, n := range b {
		nodes = append(nodes, cc.NodeID(n))
	}
	return nodes
}

func parseNodeList(build func(uint8, []cc.NodeID) cc.Fields) cc.ParseFunc {
	return func(b []byte, _ uint8) (cc.Fields, error) {
		if len(b) < 1 {
			return nil, cc.Packetf("association: missing group id")
		}
		return build(b[0], readNodes(b[1:])), nil
	}
}

// Set adds nodes to a group.
type Set struct {
	Group uint8
	Nodes []cc.NodeID
}

func (*Set) CommandClass() cc.CommandClass { return cc.Association }
func (*Set) CommandID() uint8              { return CmdSet }

// Validate checks the group and node ids.
func (s *Set) Validate() error {
	if s.Group == 0 {
		return fmt.Errorf("%w: group 0", wire.ErrValueOutOfRange)
	}
	return checkNodes(s.Nodes)
}

func (s *Set) Serialize(uint8) ([]byte, error) {
	return appendNodes([]byte{s.Group}, s.Nodes), nil
}

// Remove removes nodes from a group. Group 0 with no nodes clears all
// groups (version 2).
type Remove struct {
	Group uint8
	Nodes []cc.NodeID
}

func (*Remove) CommandClass() cc.CommandClass { return cc.Association }
func (*Remove) CommandID() uint8              { return CmdRemove }

// Validate checks the node ids.
func (s *Remove) Validate() error { return checkNodes(s.Nodes) }

func (s *Remove) Serialize(uint8) ([]byte, error) {
	return appendNodes([]byte{s.Group}, s.Nodes), nil
}

// Get requests the members of a group.
type Get struct {
	Group uint8
}

func (*Get) CommandClass() cc.CommandClass { return cc.Association }
func (*Get) CommandID() uint8              { return CmdGet }

func (g *Get) Serialize(uint8) ([]byte, error) { return []byte{g.Group}, nil }

func parseGet(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("association get: missing group id")
	}
	return &Get{Group: b[0]}, nil
}

// Report lists the members of a group. Groups with many members arrive
// as several reports.
type Report struct {
	Group           uint8
	MaxNodes        uint8
	ReportsToFollow uint8
	Nodes           []cc.NodeID
}

func (*Report) CommandClass() cc.CommandClass { return cc.Association }
func (*Report) CommandID() uint8              { return CmdReport }

func (r *Report) Serialize(uint8) ([]byte, error) {
	return appendNodes([]byte{r.Group, r.MaxNodes, r.ReportsToFollow}, r.Nodes), nil
}

func parseReport(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 3 {
		return nil, cc.Packetf("association report: need 3 bytes, have %d", len(b))
	}
	return &Report{Group: b[0], MaxNodes: b[1], ReportsToFollow: b[2], Nodes: readNodes(b[3:])}, nil
}

// PartialSession implements cc.PartialFields.
func (r *Report) PartialSession() (uint32, uint8) {
	return uint32(r.Group), r.ReportsToFollow
}

// MergePartials implements cc.PartialFields.
func (r *Report) MergePartials(parts []cc.Fields) (cc.Fields, error) {
	merged := &Report{Group: r.Group, MaxNodes: r.MaxNodes}
	seen := make(map[cc.NodeID]bool)
	for _, p := range parts {
		rep, ok := p.(*Report)
		if !ok {
			return nil, fmt.Errorf("association: cannot merge %T", p)
		}
		for _, n := range rep.Nodes {
			if !seen[n] {
				seen[n] = true
				merged.Nodes = append(merged.Nodes, n)
			}
		}
	}
	sort.Slice(merged.Nodes, func(i, j int) bool { return merged.Nodes[i] < merged.Nodes[j] })
	return merged, nil
}

// ExposeValues implements values.Exposer.
func (r *Report) ExposeValues(ctx values.ExposeContext) []values.Update {
	group := values.Index(uint32(r.Group))
	nodes := make([]int, len(r.Nodes))
	for i, n := range r.Nodes {
		nodes[i] = int(n)
	}
	return []values.Update{
		values.ValueUpdate(ctx.ID(cc.Association, values.Name("nodeIds"), group), nodes, &values.MetadataPatch{
			Type:     values.Ptr(values.TypeNumberArray),
			Label:    values.Ptr(fmt.Sprintf("Association group %d", r.Group)),
			Readable: values.Ptr(true),
		}),
		values.ValueUpdate(ctx.ID(cc.Association, values.Name("maxNodes"), group), int(r.MaxNodes),
			values.NumberPatch(fmt.Sprintf("Association group %d capacity", r.Group), values.Ptr(0.0), values.Ptr(255.0))),
	}
}

// SupportedGroupingsGet requests the number of groups.
type SupportedGroupingsGet struct{}

func (*SupportedGroupingsGet) CommandClass() cc.CommandClass   { return cc.Association }
func (*SupportedGroupingsGet) CommandID() uint8                { return CmdSupportedGroupingsGet }
func (*SupportedGroupingsGet) Serialize(uint8) ([]byte, error) { return nil, nil }

// SupportedGroupingsReport carries the number of groups.
type SupportedGroupingsReport struct {
	Groups uint8
}

func (*SupportedGroupingsReport) CommandClass() cc.CommandClass { return cc.Association }
func (*SupportedGroupingsReport) CommandID() uint8              { return CmdSupportedGroupingsReport }

func (s *SupportedGroupingsReport) Serialize(uint8) ([]byte, error) {
	return []byte{s.Groups}, nil
}

func parseSupportedGroupingsReport(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("supported groupings report: need 1 byte")
	}
	return &SupportedGroupingsReport{Groups: b[0]}, nil
}

// ExposeValues implements values.Exposer.
func (s *SupportedGroupingsReport) ExposeValues(ctx values.ExposeContext) []values.Update {
	return []values.Update{values.ValueUpdate(
		ctx.ID(cc.Association, values.Name("groupCount"), values.Property{}),
		int(s.Groups),
		values.NumberPatch("Number of association groups", values.Ptr(0.0), values.Ptr(255.0)),
	)}
}

// SpecificGroupGet asks which group was triggered last (version 2).
type SpecificGroupGet struct{}

func (*SpecificGroupGet) CommandClass() cc.CommandClass   { return cc.Association }
func (*SpecificGroupGet) CommandID() uint8                { return CmdSpecificGroupGet }
func (*SpecificGroupGet) Serialize(uint8) ([]byte, error) { return nil, nil }

// SpecificGroupReport carries the last triggered group.
type SpecificGroupReport struct {
	Group uint8
}

func (*SpecificGroupReport) CommandClass() cc.CommandClass { return cc.Association }
func (*SpecificGroupReport) CommandID() uint8              { return CmdSpecificGroupReport }

func (s *SpecificGroupReport) Serialize(uint8) ([]byte, error) {
	return []byte{s.Group}, nil
}

func parseSpecificGroupReport(b []byte, _ uint8) (cc.Fields, error) {
	if len(b) < 1 {
		return nil, cc.Packetf("specific group report: need 1 byte")
	}
	return &SpecificGroupReport{Group: b[0]}, nil
}
