package cc

// PartialFields is implemented by report variants that may be split over
// several frames.
type PartialFields interface {
	Fields

	// PartialSession returns the session discriminator (for example a
	// parameter number, or 0 when a class has one session kind per node)
	// and the number of reports still to follow this one.
	PartialSession() (discriminator uint32, toFollow uint8)

	// MergePartials combines all parts of a completed session, in order,
	// into one value. parts includes the receiver as its last element.
	MergePartials(parts []Fields) (Fields, error)
}

// OrderedPartial is implemented by partial variants that carry an explicit
// ordering key. Parts are then sorted and deduplicated by that key
// instead of by arrival order.
type OrderedPartial interface {
	PartialOrder() int
}

// IsPartial reports whether f is one part of a multi-frame report that
// still expects further reports. A part with zero reports to follow that
// arrives without earlier parts is a complete report on its own.
func IsPartial(f Fields) bool {
	p, ok := f.(PartialFields)
	if !ok {
		return false
	}
	_, toFollow := p.PartialSession()
	return toFollow > 0
}
