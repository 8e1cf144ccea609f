package midi

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidHeader is returned when a byte buffer does not begin with a
// well-formed MThd chunk. Per spec.md §4.1, a malformed header causes the
// reader to yield nothing and surface this as a structured error; it never
// panics or partially populates a file.
var ErrInvalidHeader = errors.New("midi: invalid or missing MThd header")

// ErrTruncatedTrack is returned when an MTrk chunk's declared length runs
// past the end of the buffer.
var ErrTruncatedTrack = errors.New("midi: truncated MTrk chunk")

// EventKind classifies one Standard MIDI File event.
type EventKind int

const (
	EventChannelVoice EventKind = iota
	EventMeta
	EventSysEx
)

// PatternEvent is one time-stamped event within a Pattern's track.
type PatternEvent struct {
	AbsoluteTick int
	DeltaTick    int
	Kind         EventKind
	Channel      int // valid for EventChannelVoice
	MetaType     byte
	Payload      []byte
}

// Pattern is the parsed form of one MTrk chunk: its length, derived tempo,
// time signature, and time-sorted event list, per spec.md §3.5.
type Pattern struct {
	Name                  string
	PPQ                   int
	TickLength            int
	MicrosPerQuarter      int // from the track's last SetTempo, 500000 default
	TimeSigNumerator      int
	TimeSigDenominator    int
	Events                []PatternEvent
}

// File is a parsed Standard MIDI File: header fields plus one Pattern per
// MTrk chunk.
type File struct {
	Format     int // 0, 1, or 2
	TrackCount int
	PPQ        int
	SMPTE      bool // true if the header's division used SMPTE framing
	Patterns   []*Pattern
}

// ReadFile parses a complete Standard MIDI File buffer. Malformed headers
// return ErrInvalidHeader; a track whose declared length overruns the
// buffer returns ErrTruncatedTrack. Both are structured errors — the
// reader never returns a partially-populated File on error.
func ReadFile(data []byte) (*File, error) {
	if len(data) < 14 || string(data[0:4]) != "MThd" {
		return nil, ErrInvalidHeader
	}
	headerLen := int(binary.BigEndian.Uint32(data[4:8]))
	if headerLen != 6 {
		return nil, fmt.Errorf("%w: header length %d, want 6", ErrInvalidHeader, headerLen)
	}
	format := int(binary.BigEndian.Uint16(data[8:10]))
	if format < 0 || format > 2 {
		return nil, fmt.Errorf("%w: unsupported format %d", ErrInvalidHeader, format)
	}
	trackCount := int(binary.BigEndian.Uint16(data[10:12]))
	division := binary.BigEndian.Uint16(data[12:14])

	f := &File{Format: format, TrackCount: trackCount}
	if division&0x8000 != 0 {
		f.SMPTE = true
		f.PPQ = 480 // SMPTE framing carries its own ticks-per-frame; PPQ is not meaningful, default kept for downstream tick math.
	} else {
		f.PPQ = int(division)
	}

	offset := 14
	for offset+8 <= len(data) && len(f.Patterns) < trackCount {
		if string(data[offset:offset+4]) != "MTrk" {
			break
		}
		trackLen := int(binary.BigEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + trackLen
		if end > len(data) {
			return nil, ErrTruncatedTrack
		}

		pattern, err := parseTrack(data[body:end], f.PPQ)
		if err != nil {
			return nil, err
		}
		f.Patterns = append(f.Patterns, pattern)
		offset = end
	}

	return f, nil
}

func parseTrack(body []byte, ppq int) (*Pattern, error) {
	p := &Pattern{PPQ: ppq, MicrosPerQuarter: 500000}

	pos := 0
	absTick := 0
	var lastStatus byte

	for pos < len(body) {
		delta, n := readVarLen(body[pos:])
		pos += n
		absTick += delta

		if pos >= len(body) {
			break
		}

		eventByte := body[pos]
		if eventByte < 0x80 {
			eventByte = lastStatus // running status
		} else {
			pos++
			if eventByte >= 0x80 && eventByte < 0xF0 {
				lastStatus = eventByte
			}
		}

		switch {
		case eventByte == 0xFF:
			if pos >= len(body) {
				return p, nil
			}
			metaType := body[pos]
			pos++
			length, n := readVarLen(body[pos:])
			pos += n
			if pos+length > len(body) {
				return p, nil
			}
			payload := append([]byte(nil), body[pos:pos+length]...)
			pos += length

			p.Events = append(p.Events, PatternEvent{
				AbsoluteTick: absTick, DeltaTick: delta, Kind: EventMeta,
				MetaType: metaType, Payload: payload,
			})

			switch metaType {
			case 0x51: // SetTempo
				if length == 3 {
					p.MicrosPerQuarter = int(payload[0])<<16 | int(payload[1])<<8 | int(payload[2])
				}
			case 0x58: // TimeSignature
				if length >= 2 {
					p.TimeSigNumerator = int(payload[0])
					p.TimeSigDenominator = 1 << payload[1]
				}
			case 0x03: // TrackName
				p.Name = string(payload)
			case 0x2F: // EndOfTrack
				p.TickLength = absTick
				return p, nil
			}

		case eventByte == 0xF0 || eventByte == 0xF7:
			length, n := readVarLen(body[pos:])
			pos += n
			if pos+length > len(body) {
				return p, nil
			}
			payload := append([]byte(nil), body[pos:pos+length]...)
			pos += length
			p.Events = append(p.Events, PatternEvent{
				AbsoluteTick: absTick, DeltaTick: delta, Kind: EventSysEx, Payload: payload,
			})

		case eventByte >= 0x80:
			dataBytes := channelVoiceDataBytes(eventByte)
			if pos+dataBytes > len(body) {
				return p, nil
			}
			payload := append([]byte(nil), body[pos:pos+dataBytes]...)
			pos += dataBytes
			p.Events = append(p.Events, PatternEvent{
				AbsoluteTick: absTick, DeltaTick: delta, Kind: EventChannelVoice,
				Channel: int(eventByte & 0x0F), Payload: payload,
			})

		default:
			// No usable status and no running status context: bail out
			// rather than looping on an unparseable byte.
			return p, nil
		}
	}

	if p.TickLength == 0 {
		p.TickLength = absTick
	}
	return p, nil
}

// readVarLen reads one MIDI variable-length quantity (7-bit groups with a
// continuation bit) from the front of data, returning the decoded value and
// the number of bytes consumed.
func readVarLen(data []byte) (int, int) {
	value := 0
	n := 0
	for i := 0; i < len(data) && i < 4; i++ {
		n++
		value = (value << 7) | int(data[i]&0x7F)
		if data[i]&0x80 == 0 {
			break
		}
	}
	return value, n
}
