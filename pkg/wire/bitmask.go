package wire

import "fmt"

// ParseBitmask returns the positions of all set bits in b, in ascending
// order, offset by first. Bit 0 of byte 0 maps to first.
func ParseBitmask(b []byte, first int) []int {
	var out []int
	for i, octet := range b {
		if octet == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if octet&(1<<uint(bit)) != 0 {
				out = append(out, first+i*8+bit)
			}
		}
	}
	return out
}

// EncodeBitmask encodes values into a bitmask of totalBits bits, where the
// value first maps to bit 0 of byte 0. The result is ceil(totalBits/8) bytes.
func EncodeBitmask(values []int, totalBits int, first int) ([]byte, error) {
	if totalBits < 0 {
		return nil, fmt.Errorf("%w: negative bitmask width", ErrValueOutOfRange)
	}
	out := make([]byte, (totalBits+7)/8)
	for _, v := range values {
		idx := v - first
		if idx < 0 || idx >= totalBits {
			return nil, fmt.Errorf("%w: %d outside bitmask [%d, %d)", ErrValueOutOfRange, v, first, first+totalBits)
		}
		out[idx/8] |= 1 << uint(idx%8)
	}
	return out, nil
}

// BitmaskWidth returns the number of bytes needed for a bitmask that holds
// every value in values, given the value mapped to bit 0.
func BitmaskWidth(values []int, first int) int {
	maxIdx := -1
	for _, v := range values {
		if v-first > maxIdx {
			maxIdx = v - first
		}
	}
	return (maxIdx + 8) / 8
}

// ParseNodeBitmask parses a node list bitmask where bit 0 is node 1.
func ParseNodeBitmask(b []byte) []int {
	return ParseBitmask(b, 1)
}
