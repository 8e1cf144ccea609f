package midi

import (
	"testing"
	"testing/quick"
)

func TestByteStreamParserBasicNoteOnOff(t *testing.T) {
	p := NewByteStreamParser()
	msgs := p.Parse([]byte{0x90, 60, 100, 0x80, 60, 0})
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Status != 0x90 || msgs[0].Data1 != 60 || msgs[0].Data2 != 100 {
		t.Errorf("unexpected note-on: %+v", msgs[0])
	}
	if msgs[1].Status != 0x80 || msgs[1].Data1 != 60 {
		t.Errorf("unexpected note-off: %+v", msgs[1])
	}
}

func TestByteStreamParserRunningStatus(t *testing.T) {
	p := NewByteStreamParser()
	// One explicit Note On, then two running-status note-on pairs.
	msgs := p.Parse([]byte{0x90, 60, 100, 61, 101, 62, 102})
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3 (running status)", len(msgs))
	}
	for i, want := range []byte{60, 61, 62} {
		if msgs[i].Data1 != want || msgs[i].Status != 0x90 {
			t.Errorf("msg %d: got status=%#x data1=%d", i, msgs[i].Status, msgs[i].Data1)
		}
	}
}

func TestByteStreamParserSysExResetsRunningStatus(t *testing.T) {
	p := NewByteStreamParser()
	data := []byte{0x90, 60, 100, 0xF0, 0x7E, 0x7F, 0xF7, 61, 100}
	msgs := p.Parse(data)
	// Trailing "61, 100" has no status byte after the SysEx reset, so it
	// cannot be interpreted and must not surface as a channel-voice message.
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (note-on + sysex)", len(msgs))
	}
	if msgs[1].Kind != KindSysEx {
		t.Errorf("expected second message to be SysEx, got %+v", msgs[1])
	}
}

func TestByteStreamParserEmptyBufferYieldsNothing(t *testing.T) {
	p := NewByteStreamParser()
	if msgs := p.Parse(nil); msgs != nil {
		t.Errorf("expected nil for empty input, got %+v", msgs)
	}
}

// Property (spec.md V1): for any sequence of well-formed note-on/off pairs,
// the parser consumes exactly the declared bytes per message and produces
// one decoded message per encoded pair.
func TestByteStreamParserConsumesExactBytes(t *testing.T) {
	property := func(notes []byte, velocities []byte) bool {
		n := len(notes)
		if len(velocities) < n {
			n = len(velocities)
		}
		if n == 0 {
			return true
		}
		notes, velocities = notes[:n], velocities[:n]

		var data []byte
		for i := 0; i < n; i++ {
			vel := velocities[i]&0x7F | 1 // avoid velocity 0 (note-off alias)
			data = append(data, 0x90, notes[i]&0x7F, vel)
		}

		p := NewByteStreamParser()
		msgs := p.Parse(data)
		return len(msgs) == n
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 200}); err != nil {
		t.Error(err)
	}
}
