package collab

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// V7: round-trip encode -> decode yields equal structure for frames within
// the size bound.
func TestFrameRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("encode then decode preserves envelope fields", prop.ForAll(
		func(peer, text string, seq int64) bool {
			var buf bytes.Buffer
			w := NewFrameWriter(&buf)
			env := NewEnvelope(MsgChat, PeerID(peer), SessionID("s1"), VectorClock{PeerID(peer): seq}, seq)
			env.Payload = map[string]any{"text": text}
			if err := w.WriteEnvelope(env); err != nil {
				t.Fatalf("write: %v", err)
			}

			r := NewFrameReader(&buf)
			got, err := r.ReadEnvelope()
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			return got.Type == env.Type && got.PeerID == env.PeerID && got.SessionID == env.SessionID &&
				got.Timestamp == env.Timestamp && got.Payload["text"] == text
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}

func TestFrameReaderRejectsZeroLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})
	r := NewFrameReader(buf)
	_, err := r.ReadEnvelope()
	pe, ok := err.(*ProtocolError)
	if !ok {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if pe.Code != ErrInvalidMessage {
		t.Errorf("got code %v, want ErrInvalidMessage", pe.Code)
	}
}

func TestFrameReaderRejectsOversizedLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	r := NewFrameReader(buf)
	_, err := r.ReadEnvelope()
	if _, ok := err.(*ProtocolError); !ok {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestFrameReaderRejectsVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	env := NewEnvelope(MsgPing, "p1", "s1", NewVectorClock(), 0)
	env.Version = 99
	_ = w.WriteEnvelope(env)

	r := NewFrameReader(&buf)
	_, err := r.ReadEnvelope()
	pe, ok := err.(*ProtocolError)
	if !ok {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if pe.Code != ErrVersionMismatch || !pe.IsFatal() {
		t.Errorf("version mismatch should be a fatal ProtocolError, got %+v", pe)
	}
}
