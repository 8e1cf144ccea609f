package midi

// MessageKind classifies a decoded MIDI 1.0 byte-stream message.
type MessageKind int

const (
	KindChannelVoice MessageKind = iota
	KindSystemRealtime
	KindSystemCommon
	KindSysEx
)

// RawMessage is one fully-decoded MIDI 1.0 byte-stream message, running
// status already resolved.
type RawMessage struct {
	Kind     MessageKind
	Status   byte // full status byte, including channel nibble for channel-voice
	Channel  int  // valid for KindChannelVoice
	Data1    byte
	Data2    byte
	HasData2 bool
	SysEx    []byte // payload between 0xF0 and the terminating 0xF7, exclusive
}

// ByteStreamParser decodes a MIDI 1.0 byte stream with running-status
// support. One parser instance owns one running-status slot; feed it bytes
// from a single logical stream (one port, one connection) across calls.
type ByteStreamParser struct {
	runningStatus byte
}

// NewByteStreamParser returns a parser with no running status set.
func NewByteStreamParser() *ByteStreamParser {
	return &ByteStreamParser{}
}

// Parse decodes as many complete messages as are present in data and
// returns them in stream order. A trailing partial message (not enough
// bytes to complete it yet) is left unconsumed — conceptually dropped, since
// spec.md treats MIR as an event classifier, not a stream reassembler; a
// caller needing reassembly buffers its own partial tail and resubmits.
// Empty or fully-invalid input yields a nil slice ("not processed"),
// without raising an error, per spec.md §4.1 failure semantics.
func (p *ByteStreamParser) Parse(data []byte) []RawMessage {
	var out []RawMessage
	i := 0
	for i < len(data) {
		b := data[i]

		switch {
		case b == 0xF0 || b == 0xF7:
			// SysEx: resets running status, consumes until a following 0xF7
			// (for 0xF0) or immediately (0xF7 alone is an escape / EOX with
			// no start already open in this fragment).
			p.runningStatus = 0
			j := i + 1
			for j < len(data) && data[j] != 0xF7 {
				j++
			}
			if j >= len(data) {
				// Incomplete SysEx: nothing more to consume this call.
				return out
			}
			out = append(out, RawMessage{Kind: KindSysEx, Status: b, SysEx: append([]byte(nil), data[i+1:j]...)})
			i = j + 1

		case b == 0xFF:
			// Live byte stream: 0xFF is System Reset, not Meta (Meta only
			// exists in the Standard MIDI File domain, see smf.go).
			p.runningStatus = 0
			out = append(out, RawMessage{Kind: KindSystemRealtime, Status: b})
			i++

		case b >= 0xF8:
			// System real-time: single byte, does not touch running status.
			out = append(out, RawMessage{Kind: KindSystemRealtime, Status: b})
			i++

		case b >= 0xF1 && b <= 0xF6:
			n := systemCommonDataBytes(b)
			if i+1+n > len(data) {
				return out
			}
			msg := RawMessage{Kind: KindSystemCommon, Status: b}
			if n >= 1 {
				msg.Data1 = data[i+1]
			}
			if n >= 2 {
				msg.Data2 = data[i+1+1]
				msg.HasData2 = true
			}
			out = append(out, msg)
			i += 1 + n

		case b >= 0x80 && b <= 0xEF:
			p.runningStatus = b
			n, consumed := p.decodeChannelVoice(data[i:])
			if consumed == 0 {
				return out
			}
			out = append(out, n)
			i += consumed

		case b < 0x80:
			// Data byte with no status byte expected: running status.
			if p.runningStatus == 0 {
				// No context to interpret this byte; skip it silently.
				i++
				continue
			}
			n, consumed := p.decodeChannelVoice(append([]byte{p.runningStatus}, data[i:]...))
			if consumed == 0 {
				return out
			}
			out = append(out, n)
			i += consumed - 1 // the synthetic status byte wasn't in the input

		default:
			i++
		}
	}
	return out
}

// decodeChannelVoice decodes one channel-voice message starting with its
// status byte at data[0]. Returns the message and the number of input bytes
// consumed (0 if data is too short).
func (p *ByteStreamParser) decodeChannelVoice(data []byte) (RawMessage, int) {
	status := data[0]
	dataBytes := channelVoiceDataBytes(status)
	if len(data) < 1+dataBytes {
		return RawMessage{}, 0
	}
	msg := RawMessage{
		Kind:    KindChannelVoice,
		Status:  status,
		Channel: int(status & 0x0F),
	}
	if dataBytes >= 1 {
		msg.Data1 = data[1]
	}
	if dataBytes >= 2 {
		msg.Data2 = data[2]
		msg.HasData2 = true
	}
	return msg, 1 + dataBytes
}

// StatusGroup is the high nibble of a channel-voice status byte (0x8-0xE).
func StatusGroup(status byte) byte { return status & 0xF0 }

func channelVoiceDataBytes(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

func systemCommonDataBytes(status byte) int {
	switch status {
	case 0xF1, 0xF3:
		return 1
	case 0xF2:
		return 2
	default:
		return 0
	}
}
