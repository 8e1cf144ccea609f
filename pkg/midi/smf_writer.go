package midi

import (
	"bytes"
	"encoding/binary"
)

// WriteFile serializes patterns into a Standard MIDI File format-1 buffer.
//
// Per spec.md §9's documented policy choice, the writer unconditionally
// emits SetTempo, TimeSignature, and TrackName at the head of each track
// (derived from the Pattern's own fields, not from whatever meta events the
// Pattern's Events slice happens to carry) and suppresses any further
// occurrence of those three meta types in the body. This may round-trip
// differently from a file produced by another writer that interleaves tempo
// changes mid-track; that divergence is accepted, not a bug.
func WriteFile(ppq int, patterns []*Pattern) []byte {
	var buf bytes.Buffer
	buf.WriteString("MThd")
	writeUint32(&buf, 6)
	writeUint16(&buf, 1) // format 1
	writeUint16(&buf, uint16(len(patterns)))
	writeUint16(&buf, uint16(ppq))

	for _, p := range patterns {
		track := writeTrackBody(p)
		buf.WriteString("MTrk")
		writeUint32(&buf, uint32(len(track)))
		buf.Write(track)
	}
	return buf.Bytes()
}

func writeTrackBody(p *Pattern) []byte {
	var body bytes.Buffer

	if p.Name != "" {
		writeMetaEvent(&body, 0, 0x03, []byte(p.Name))
	}
	mpq := p.MicrosPerQuarter
	if mpq <= 0 {
		mpq = 500000
	}
	writeMetaEvent(&body, 0, 0x51, []byte{
		byte(mpq >> 16), byte(mpq >> 8), byte(mpq),
	})
	if p.TimeSigNumerator > 0 && p.TimeSigDenominator > 0 {
		writeMetaEvent(&body, 0, 0x58, []byte{
			byte(p.TimeSigNumerator), log2(p.TimeSigDenominator), 24, 8,
		})
	}

	lastTick := 0
	for _, ev := range p.Events {
		switch ev.Kind {
		case EventMeta:
			if ev.MetaType == 0x51 || ev.MetaType == 0x58 || ev.MetaType == 0x03 || ev.MetaType == 0x2F {
				continue // suppressed: emitted at head, or emitted below
			}
			writeMetaEvent(&body, ev.AbsoluteTick-lastTick, ev.MetaType, ev.Payload)
			lastTick = ev.AbsoluteTick
		case EventSysEx:
			writeVarLen(&body, ev.AbsoluteTick-lastTick)
			body.WriteByte(0xF0)
			writeVarLen(&body, len(ev.Payload))
			body.Write(ev.Payload)
			lastTick = ev.AbsoluteTick
		case EventChannelVoice:
			writeVarLen(&body, ev.AbsoluteTick-lastTick)
			body.Write(ev.Payload)
			lastTick = ev.AbsoluteTick
		}
	}

	writeMetaEvent(&body, p.TickLength-lastTick, 0x2F, nil)
	return body.Bytes()
}

func writeMetaEvent(buf *bytes.Buffer, deltaTick int, metaType byte, payload []byte) {
	writeVarLen(buf, deltaTick)
	buf.WriteByte(0xFF)
	buf.WriteByte(metaType)
	writeVarLen(buf, len(payload))
	buf.Write(payload)
}

func writeVarLen(buf *bytes.Buffer, value int) {
	if value < 0 {
		value = 0
	}
	var stack [4]byte
	n := 0
	stack[n] = byte(value & 0x7F)
	n++
	value >>= 7
	for value > 0 {
		stack[n] = byte(value&0x7F) | 0x80
		n++
		value >>= 7
	}
	for i := n - 1; i >= 0; i-- {
		buf.WriteByte(stack[i])
	}
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func log2(v int) byte {
	var n byte
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}
