package capture

import (
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// StreamRecorder appends CBOR records to a writer.
type StreamRecorder struct {
	w       io.Writer
	encoder *cbor.Encoder

	mu     sync.Mutex
	closed bool
	err    error
}

// NewStreamRecorder creates a recorder writing to w. Close closes w when
// it is an io.Closer.
func NewStreamRecorder(w io.Writer) *StreamRecorder {
	return &StreamRecorder{w: w, encoder: NewEncoder(w)}
}

// OpenFile creates a recorder appending to the file at path, creating it
// with permissions 0644 if needed.
func OpenFile(path string) (*StreamRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return NewStreamRecorder(f), nil
}

// Record writes r. Write errors do not reach the caller; the first one
// is kept and reported by Err.
func (s *StreamRecorder) Record(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.err != nil {
		return
	}
	s.err = s.encoder.Encode(r)
}

// Err returns the first write error.
func (s *StreamRecorder) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops recording. It is safe to call Close multiple times.
func (s *StreamRecorder) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
