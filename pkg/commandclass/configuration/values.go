package configuration

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
	"github.com/backkem/zwave/pkg/values"
	"github.com/backkem/zwave/pkg/wire"
)

// ParameterID returns the ValueID of a whole parameter.
func ParameterID(endpoint uint8, param uint16) values.ValueID {
	return values.ValueID{CommandClass: cc.Configuration, Endpoint: endpoint, Property: values.Index(uint32(param))}
}

// PartialID returns the ValueID of a bit field within a parameter.
func PartialID(endpoint uint8, param uint16, mask uint32) values.ValueID {
	id := ParameterID(endpoint, param)
	id.PropertyKey = values.Index(mask)
	return id
}

// formatOf looks up the format recorded by an earlier PropertiesReport.
func formatOf(ctx values.ExposeContext, id values.ValueID) Format {
	if ctx.Metadata == nil {
		return FormatSignedInteger
	}
	m, ok := ctx.Metadata(id)
	if !ok {
		return FormatSignedInteger
	}
	if f, ok := m.CCSpecific["format"].(Format); ok {
		return f
	}
	return FormatSignedInteger
}

func exposeParameter(ctx values.ExposeContext, param uint16, signed int64, raw uint32) []values.Update {
	if partials := ctx.Partials(param); len(partials) > 0 {
		updates := make([]values.Update, 0, len(partials))
		for _, p := range partials {
			meta := &values.MetadataPatch{
				Type:      values.Ptr(values.TypeNumber),
				Readable:  values.Ptr(true),
				Writeable: values.Ptr(true),
				Min:       p.Min,
				Max:       p.Max,
				States:    p.States,
			}
			if p.Label != "" {
				meta.Label = values.Ptr(p.Label)
			}
			if p.Unit != "" {
				meta.Unit = values.Ptr(p.Unit)
			}
			updates = append(updates, values.ValueUpdate(
				PartialID(ctx.Endpoint, param, p.Mask),
				wire.ParsePartial(raw, p.Mask, p.Signed),
				meta,
			))
		}
		return updates
	}

	id := ParameterID(ctx.Endpoint, param)
	value := signed
	if !formatOf(ctx, id).Signed() {
		value = int64(raw)
	}
	return []values.Update{values.ValueUpdate(id, value, &values.MetadataPatch{
		Type:      values.Ptr(values.TypeNumber),
		Readable:  values.Ptr(true),
		Writeable: values.Ptr(true),
	})}
}

// ExposeValues implements values.Exposer.
func (r *Report) ExposeValues(ctx values.ExposeContext) []values.Update {
	return exposeParameter(ctx, uint16(r.Parameter), r.Value, r.Raw)
}

// ExposeValues implements values.Exposer.
func (r *BulkReport) ExposeValues(ctx values.ExposeContext) []values.Update {
	var updates []values.Update
	for i := range r.Values {
		updates = append(updates, exposeParameter(ctx, r.Offset+uint16(i), r.Values[i], r.Raw[i])...)
	}
	return updates
}

// ExposeValues implements values.Exposer.
func (n *NameReport) ExposeValues(ctx values.ExposeContext) []values.Update {
	return []values.Update{values.MetadataUpdate(
		ParameterID(ctx.Endpoint, n.Parameter),
		&values.MetadataPatch{Label: values.Ptr(n.Name)},
	)}
}

// ExposeValues implements values.Exposer.
func (n *InfoReport) ExposeValues(ctx values.ExposeContext) []values.Update {
	return []values.Update{values.MetadataUpdate(
		ParameterID(ctx.Endpoint, n.Parameter),
		&values.MetadataPatch{Description: values.Ptr(n.Info)},
	)}
}

// ExposeValues publishes the parameter's bounds. The report is the
// device's own statement about the parameter, so it overrides bounds
// published earlier.
func (p *PropertiesReport) ExposeValues(ctx values.ExposeContext) []values.Update {
	if p.Size == 0 {
		return nil
	}
	meta := &values.MetadataPatch{
		Type:      values.Ptr(values.TypeNumber),
		Readable:  values.Ptr(true),
		Writeable: values.Ptr(!p.ReadOnly),
		Min:       values.Ptr(float64(p.Min)),
		Max:       values.Ptr(float64(p.Max)),
		Default:   values.Ptr(float64(p.Default)),
		CCSpecific: map[string]any{
			"format":    p.Format,
			"valueSize": p.Size,
		},
		Override: true,
	}
	if ctx.Version >= 4 {
		meta.CCSpecific["isAdvanced"] = p.Advanced
		meta.CCSpecific["noBulkSupport"] = p.NoBulkSupport
		meta.CCSpecific["isAlteringCapabilities"] = p.AlteringCapabilities
	}
	if p.Format == FormatEnumerated {
		states := make(map[int64]string)
		for v := p.Min; v <= p.Max && len(states) < 256; v++ {
			states[v] = fmt.Sprintf("%d", v)
		}
		meta.States = states
	}
	return []values.Update{values.MetadataUpdate(ParameterID(ctx.Endpoint, p.Parameter), meta)}
}

// SetPartial builds a Set that writes value into the bits of a partial
// parameter, keeping all other bits of the current parameter value.
func SetPartial(current *Report, partial values.PartialParameter, value int64) (*Set, error) {
	if current == nil {
		return nil, cc.Constructionf("partial write of parameter %d needs the current value", partial.Parameter)
	}
	if uint16(current.Parameter) != partial.Parameter {
		return nil, cc.Constructionf("partial parameter %d applied to report for %d", partial.Parameter, current.Parameter)
	}
	lo, hi := wire.PartialRange(partial.Mask, partial.Signed)
	if value < lo || value > hi {
		return nil, &cc.ConstructionError{
			Reason: fmt.Sprintf("parameter %d mask %#x", partial.Parameter, partial.Mask),
			Err:    fmt.Errorf("%w: %d not in [%d, %d]", wire.ErrValueOutOfRange, value, lo, hi),
		}
	}
	full, err := wire.EncodePartial(current.Raw, value, partial.Mask)
	if err != nil {
		return nil, &cc.ConstructionError{Reason: "partial parameter", Err: err}
	}
	return &Set{
		Parameter: current.Parameter,
		Size:      current.Size,
		Value:     int64(full),
		Format:    FormatUnsignedInteger,
	}, nil
}
