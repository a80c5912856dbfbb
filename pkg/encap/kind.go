package encap

import (
	"fmt"

	"github.com/backkem/zwave/pkg/cc"
)

// Kind is an encapsulation layer type.
type Kind uint8

const (
	KindTransportService Kind = iota
	KindSecurityS0
	KindSecurityS2
	KindCRC16
	KindMultiChannel
	KindSupervision
)

var kindClasses = map[Kind]cc.CommandClass{
	KindTransportService: cc.TransportService,
	KindSecurityS0:       cc.Security,
	KindSecurityS2:       cc.Security2,
	KindCRC16:            cc.CRC16Encap,
	KindMultiChannel:     cc.MultiChannel,
	KindSupervision:      cc.Supervision,
}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTransportService:
		return "TransportService"
	case KindSecurityS0:
		return "SecurityS0"
	case KindSecurityS2:
		return "SecurityS2"
	case KindCRC16:
		return "CRC16"
	case KindMultiChannel:
		return "MultiChannel"
	case KindSupervision:
		return "Supervision"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// CommandClass returns the command class implementing the kind.
func (k Kind) CommandClass() cc.CommandClass { return kindClasses[k] }

// IsSecurity reports whether k is a security generation.
func (k Kind) IsSecurity() bool { return k == KindSecurityS0 || k == KindSecurityS2 }

// KindOf returns the kind implemented by a command class.
func KindOf(id cc.CommandClass) (Kind, bool) {
	for k, c := range kindClasses {
		if c == id {
			return k, true
		}
	}
	return 0, false
}

// EncryptsRouting records, per security generation, whether the multi
// channel header travels inside the ciphertext. A generation mapped to
// false is placed inside multi channel instead of around it.
var EncryptsRouting = map[Kind]bool{
	KindSecurityS0: true,
	KindSecurityS2: true,
}

// rank orders kinds outer (low) to inner (high).
func rank(k Kind) int {
	switch k {
	case KindTransportService:
		return 0
	case KindSecurityS0, KindSecurityS2:
		if EncryptsRouting[k] {
			return 1
		}
		return 3
	case KindCRC16:
		return 1
	case KindMultiChannel:
		return 2
	}
	return 4
}

// ValidateOrder checks a layer stack given outer to inner: each kind at
// most once, at most one of S0, S2 and CRC-16, and the fixed nesting
// order. Violations are returned as *cc.ConstructionError.
func ValidateOrder(kinds []Kind) error {
	seen := make(map[Kind]bool, len(kinds))
	integrity := 0
	for i, k := range kinds {
		if _, ok := kindClasses[k]; !ok {
			return cc.Constructionf("unknown encapsulation %s", k)
		}
		if seen[k] {
			return cc.Constructionf("%s encapsulation used twice", k)
		}
		seen[k] = true
		if k.IsSecurity() || k == KindCRC16 {
			integrity++
			if integrity > 1 {
				return cc.Constructionf("%s cannot be combined with another security or CRC-16 layer", k)
			}
		}
		if i > 0 && rank(kinds[i-1]) >= rank(k) {
			return cc.Constructionf("%s cannot be placed inside %s", k, kinds[i-1])
		}
	}
	return nil
}

// Params carries the per-layer settings of one encapsulation.
type Params struct {
	// Multi channel addressing.
	SourceEndpoint      uint8
	DestinationEndpoint uint8
	BitAddress          bool
	Destinations        []int

	// Supervision. Zero SessionID allocates the next free id.
	SessionID     uint8
	StatusUpdates bool

	// S0: ask the receiver for a fresh nonce in the same frame.
	RequestNonce bool
}

// Layer is one removed or applied encapsulation.
type Layer struct {
	Kind   Kind
	Params Params
}
