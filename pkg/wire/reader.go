package wire

import "fmt"

// Reader is a cursor over a command payload.
//
// The first failed read records an error wrapping ErrPacketFormat; later
// reads return zero values and the error is reported once by Err. Parsers
// use Len to check for optional, version-gated fields before reading them.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader creates a reader over b. The slice is not copied.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	if r.err != nil {
		return 0
	}
	return len(r.buf) - r.off
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrPacketFormat, n, r.off, len(r.buf))
		return false
	}
	return true
}

// Uint8 reads one byte.
func (r *Reader) Uint8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

// Uint16 reads a big endian uint16.
func (r *Reader) Uint16() uint16 {
	return uint16(r.Uint(2))
}

// Uint reads a big endian unsigned integer of the given width.
func (r *Reader) Uint(width int) uint64 {
	if r.err != nil {
		return 0
	}
	v, err := ReadUint(r.buf, r.off, width, BigEndian)
	if err != nil {
		r.err = err
		return 0
	}
	r.off += width
	return v
}

// Int reads a big endian two's-complement integer of the given width.
func (r *Reader) Int(width int) int64 {
	if r.err != nil {
		return 0
	}
	v, err := ReadInt(r.buf, r.off, width, BigEndian)
	if err != nil {
		r.err = err
		return 0
	}
	r.off += width
	return v
}

// Bytes reads n bytes. The returned slice is a copy.
func (r *Reader) Bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out
}

// Rest returns a copy of all unread bytes and advances to the end.
func (r *Reader) Rest() []byte {
	if r.err != nil {
		return nil
	}
	return r.Bytes(len(r.buf) - r.off)
}

// Skip advances past n bytes.
func (r *Reader) Skip(n int) {
	if r.need(n) {
		r.off += n
	}
}
