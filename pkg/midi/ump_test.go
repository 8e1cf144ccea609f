package midi

import (
	"testing"
	"testing/quick"
)

func TestVelocityScalingRoundTripWidening(t *testing.T) {
	// spec.md §8 scenario 2: vel=100 -> velocity16=51200 -> back to 100.
	v16 := VelocityMidi2(100)
	if v16 != 51200 {
		t.Fatalf("VelocityMidi2(100) = %d, want 51200", v16)
	}
	if got := VelocityMidi1(v16); got != 100 {
		t.Fatalf("VelocityMidi1(51200) = %d, want 100", got)
	}
}

func TestControllerScalingExactWidening(t *testing.T) {
	property := func(v7 byte) bool {
		v7 &= 0x7F
		return ControllerMidi1(ControllerMidi2(v7)) == v7
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 200}); err != nil {
		t.Error(err)
	}
}

func TestPitchBendScalingExactWidening(t *testing.T) {
	property := func(msb, lsb byte) bool {
		msb &= 0x7F
		lsb &= 0x7F
		wide := PitchBendMidi2(msb, lsb)
		gotMSB, gotLSB := PitchBendMidi1(wide)
		return gotMSB == msb && gotLSB == lsb
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 200}); err != nil {
		t.Error(err)
	}
}

func TestDecodeUMPMIDI1ChannelVoice(t *testing.T) {
	// MT=0x2, group=0, status=0x90 (note on ch0), data1=60, data2 unused at word level
	word := uint32(0x2)<<28 | uint32(0)<<24 | uint32(0x90)<<16 | uint32(60)<<8
	d := DecodeUMP(UMPPacket{Words: []uint32{word}})
	if d.Unknown {
		t.Fatal("expected known message")
	}
	if d.Status != 0x90 || d.Channel != 0 || d.Data1 != 60 {
		t.Errorf("unexpected decode: %+v", d)
	}
}

func TestDecodeUMPUnknownGroupFlagged(t *testing.T) {
	word := uint32(0x6) << 28 // undefined group in this spec's dispatch table
	d := DecodeUMP(UMPPacket{Words: []uint32{word}})
	if !d.Unknown {
		t.Error("expected Unknown for unrecognized group")
	}
}

func TestUMPWordCounts(t *testing.T) {
	cases := map[UMPGroup]int{
		UMPUtility:           1,
		UMPSystemRealtime:    1,
		UMPMIDI1ChannelVoice: 1,
		UMPData64:            2,
		UMPMIDI2ChannelVoice: 2,
		UMPData128:           4,
		UMPFlexData:          4,
		UMPStream:            4,
	}
	for group, want := range cases {
		if got := UMPWordCount(group); got != want {
			t.Errorf("UMPWordCount(%v) = %d, want %d", group, got, want)
		}
	}
}
