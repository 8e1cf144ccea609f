package midi

// UMPGroup is the top nibble of a Universal MIDI Packet's first word,
// selecting message group and hence word count.
type UMPGroup byte

const (
	UMPUtility           UMPGroup = 0x0
	UMPSystemRealtime    UMPGroup = 0x1
	UMPMIDI1ChannelVoice UMPGroup = 0x2
	UMPData64            UMPGroup = 0x3
	UMPMIDI2ChannelVoice UMPGroup = 0x4
	UMPData128           UMPGroup = 0x5
	UMPFlexData          UMPGroup = 0xD
	UMPStream            UMPGroup = 0xF
)

// UMPWordCount returns the number of 32-bit words a packet in the given
// message-type group occupies, per spec.md §4.1.
func UMPWordCount(mt UMPGroup) int {
	switch mt {
	case UMPUtility, UMPSystemRealtime, UMPMIDI1ChannelVoice:
		return 1
	case UMPData64, UMPMIDI2ChannelVoice:
		return 2
	case UMPData128:
		return 4
	case UMPFlexData, UMPStream:
		return 4
	default:
		return 1
	}
}

// UMPPacket is a decoded Universal MIDI Packet: 1, 2, or 4 32-bit words.
// The caller supplies whole packets; MIR does not reassemble partial UMP
// streams.
type UMPPacket struct {
	Words []uint32
}

// MessageType returns the packet's message-type nibble (top 4 bits of the
// first word).
func (p UMPPacket) MessageType() UMPGroup {
	if len(p.Words) == 0 {
		return UMPGroup(0xFF)
	}
	return UMPGroup(p.Words[0] >> 28)
}

// Group returns the UMP function-block group (0-15), the second nibble of
// the first word.
func (p UMPPacket) Group() int {
	if len(p.Words) == 0 {
		return 0
	}
	return int(p.Words[0]>>24) & 0x0F
}

// DecodedUMP is a normalized UMP message: classification plus the fields
// needed downstream, independent of whether it arrived as MIDI-1 or
// MIDI-2 channel voice.
type DecodedUMP struct {
	Group      UMPGroup
	FuncBlock  int
	Status     byte // channel-voice status nibble<<4 | channel, MIDI-1 scale
	Channel    int
	Data1      byte // note number / controller number, MIDI-1 scale (7-bit)
	Velocity16 uint16
	Controller32 uint32
	PitchBend32  uint32
	IsMIDI2    bool
	Unknown    bool
}

// DecodeUMP normalizes a single Universal MIDI Packet. Unknown message
// types are flagged Unknown and otherwise discarded silently by the caller,
// per spec.md §4.1 ("unknown UMP message types are discarded silently").
func DecodeUMP(p UMPPacket) DecodedUMP {
	if len(p.Words) == 0 {
		return DecodedUMP{Unknown: true}
	}
	mt := p.MessageType()
	group := p.Group()

	switch mt {
	case UMPMIDI1ChannelVoice:
		w := p.Words[0]
		status := byte(w >> 16)
		return DecodedUMP{
			Group:     mt,
			FuncBlock: group,
			Status:    status,
			Channel:   int(status & 0x0F),
			Data1:     byte(w >> 8),
		}
	case UMPMIDI2ChannelVoice:
		if len(p.Words) < 2 {
			return DecodedUMP{Unknown: true}
		}
		w0, w1 := p.Words[0], p.Words[1]
		status := byte(w0 >> 16)
		d := DecodedUMP{
			Group:     mt,
			FuncBlock: group,
			Status:    status,
			Channel:   int(status & 0x0F),
			Data1:     byte(w0 >> 8),
			IsMIDI2:   true,
		}
		switch status & 0xF0 {
		case 0x90, 0x80: // note on/off: velocity in top 16 bits of word1
			d.Velocity16 = uint16(w1 >> 16)
		case 0xB0: // control change: 32-bit value
			d.Controller32 = w1
		case 0xE0: // pitch bend: 32-bit value
			d.PitchBend32 = w1
		case 0xD0: // channel pressure: 32-bit value
			d.Controller32 = w1
		case 0xA0: // poly pressure: 32-bit value
			d.Controller32 = w1
		case 0xF0: // per-note management: detach/reset flags in word0's low byte
			d.Controller32 = w0 & 0xFF
		}
		return d
	default:
		return DecodedUMP{Group: mt, FuncBlock: group, Unknown: true}
	}
}

// VelocityMidi1 scales a MIDI-2 16-bit velocity down to the MIDI-1 7-bit
// range, per spec.md §4.1: v >> 9. The conversion is exact only in the
// widening direction (MIDI1->MIDI2); this is strictly lossy.
func VelocityMidi1(v16 uint16) byte {
	return byte(v16 >> 9)
}

// VelocityMidi2 widens a MIDI-1 7-bit velocity to the MIDI-2 16-bit range
// exactly: v << 9.
func VelocityMidi2(v7 byte) uint16 {
	return uint16(v7) << 9
}

// ControllerMidi1 scales a MIDI-2 32-bit controller value down to MIDI-1's
// 7-bit range: v >> 25.
func ControllerMidi1(v32 uint32) byte {
	return byte(v32 >> 25)
}

// ControllerMidi2 widens a MIDI-1 7-bit controller value to MIDI-2's 32-bit
// range exactly: v << 25.
func ControllerMidi2(v7 byte) uint32 {
	return uint32(v7) << 25
}

// PitchBendMidi2 widens a MIDI-1 14-bit pitch bend ((msb<<7)|lsb) to MIDI-2's
// 32-bit range exactly: v << 18.
func PitchBendMidi2(msb, lsb byte) uint32 {
	v14 := (uint32(msb) << 7) | uint32(lsb)
	return v14 << 18
}

// PitchBendMidi1 scales a MIDI-2 32-bit pitch bend value down to MIDI-1's
// 14-bit range, returning (msb, lsb).
func PitchBendMidi1(v32 uint32) (msb, lsb byte) {
	v14 := v32 >> 18
	return byte(v14 >> 7), byte(v14 & 0x7F)
}
