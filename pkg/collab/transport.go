package collab

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// MaxFrameBytes is the largest permitted frame payload (spec.md §4.3).
const MaxFrameBytes = 10 * 1024 * 1024

// FrameWriter serializes Envelopes onto w behind a mutex, so concurrent
// writers never interleave partial frames (spec.md §4.3).
type FrameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFrameWriter wraps w for framed writes.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteEnvelope encodes env as UTF-8 JSON and writes it as one
// length-prefixed frame.
func (fw *FrameWriter) WriteEnvelope(env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("collab: encode envelope: %w", err)
	}
	if len(body) == 0 || len(body) > MaxFrameBytes {
		return NewProtocolError(ErrInvalidMessage, "encoded frame exceeds size bounds")
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := fw.w.Write(header[:]); err != nil {
		return fmt.Errorf("collab: write frame header: %w", err)
	}
	if _, err := fw.w.Write(body); err != nil {
		return fmt.Errorf("collab: write frame body: %w", err)
	}
	return nil
}

// FrameReader reads length-prefixed JSON frames from r.
type FrameReader struct {
	r io.Reader
}

// NewFrameReader wraps r for framed reads.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadEnvelope blocks for one full frame and decodes it. A length prefix
// of 0 or greater than MaxFrameBytes is a *ProtocolError and the caller
// must close the connection (spec.md §4.3, scenario 8).
func (fr *FrameReader) ReadEnvelope() (Envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		return Envelope{}, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || length > MaxFrameBytes {
		return Envelope{}, NewProtocolError(ErrInvalidMessage, fmt.Sprintf("invalid frame length %d", length))
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return Envelope{}, fmt.Errorf("collab: read frame body: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, NewProtocolError(ErrInvalidMessage, err.Error())
	}
	if env.Version != ProtocolVersion {
		return Envelope{}, NewProtocolError(ErrVersionMismatch, fmt.Sprintf("unsupported version %d", env.Version))
	}
	return env, nil
}
