// Package synth adapts VAEB's Sink interface onto a concrete audio
// backend. MeltySink renders with go-meltysynth, the same SoundFont
// synthesizer the engine's MIDI playback path already uses; EbitenPlayer
// (ebiten.go) layers Ebitengine's audio context on top for real-time output.
package synth

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// SampleRate is the rendering rate shared by every sink in this package.
const SampleRate = 44100

const (
	statusNoteOn      = 0x90
	statusNoteOff     = 0x80
	statusPitchBend   = 0xE0
	statusCC          = 0xB0
	ccSlide           = 74
	ccPressure        = 11 // channel expression, reused for pressure (see pkg/midi router's controller-collision note)
	pitchBendRangeSemitones = 2.0 // meltysynth's default RPN 0 bend range
)

// MeltySink renders VAEB voice events through a go-meltysynth
// Synthesizer. Each voice is pinned to one of the synthesizer's 16 MIDI
// channels (voiceIndex % 16); pools larger than 16 voices share
// channels, which is an explicit scope limit of this adapter, not of
// VAEB itself.
type MeltySink struct {
	mu          sync.Mutex
	synthesizer *meltysynth.Synthesizer
}

// NewMeltySink constructs a sink around a freshly loaded SoundFont.
func NewMeltySink(sf *meltysynth.SoundFont) (*MeltySink, error) {
	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	s, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("synth: create synthesizer: %w", err)
	}
	return &MeltySink{synthesizer: s}, nil
}

func channelFor(voiceIndex int) int32 { return int32(voiceIndex % 16) }

// noteAndBendForFrequency finds the nearest equal-tempered MIDI note to
// frequency and the 14-bit pitch bend value that corrects the remaining
// fractional offset, within +/- pitchBendRangeSemitones.
func noteAndBendForFrequency(frequency float64) (note int32, bend uint16) {
	if frequency <= 0 {
		return 0, 8192
	}
	semisFromA4 := 12 * math.Log2(frequency/440.0)
	nearest := math.Round(semisFromA4) + 69
	if nearest < 0 {
		nearest = 0
	}
	if nearest > 127 {
		nearest = 127
	}
	offset := semisFromA4 + 69 - float64(nearest)
	clamped := clampF(offset/pitchBendRangeSemitones, -1, 1)
	bend = uint16(8192 + clamped*8191)
	return int32(nearest), bend
}

// NoteOn starts sound at voiceIndex's pinned channel, bending to the
// exact requested frequency.
func (m *MeltySink) NoteOn(voiceIndex int, frequency, velocity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := channelFor(voiceIndex)
	note, bend := noteAndBendForFrequency(frequency)
	v := int32(clampF(velocity, 0, 1) * 127)
	if v < 1 {
		v = 1
	}

	lsb, msb := bend&0x7F, (bend>>7)&0x7F
	m.synthesizer.ProcessMidiMessage(ch, statusPitchBend, int32(lsb), int32(msb))
	m.synthesizer.ProcessMidiMessage(ch, statusNoteOn, note, v)
}

// NoteOff releases voiceIndex's pinned channel. meltysynth does not track
// per-voice note numbers for us, so this issues an all-notes-off style
// NoteOff for every note on that channel via CC 123. With a pool of at
// most 16 voices each channel hosts one VAEB voice; in larger pools this
// also silences the other voices sharing the channel.
func (m *MeltySink) NoteOff(voiceIndex int, velocity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := channelFor(voiceIndex)
	m.synthesizer.ProcessMidiMessage(ch, statusCC, 123, 0)
}

// UpdateExpression forwards slide (as CC74) and pressure (as channel
// expression, CC11) for the voice's pinned channel. Pitch glide is
// already baked into NoteOn's initial bend; continuous glide after
// trigger would require re-bending per sample, out of scope for this
// discrete-message backend.
func (m *MeltySink) UpdateExpression(voiceIndex int, slide, pressure, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := channelFor(voiceIndex)
	m.synthesizer.ProcessMidiMessage(ch, statusCC, ccSlide, int32(clampF(slide, 0, 1)*127))
	m.synthesizer.ProcessMidiMessage(ch, statusCC, ccPressure, int32(clampF(pressure, 0, 1)*127))
}

// AllNotesOff silences every channel immediately.
func (m *MeltySink) AllNotesOff() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := int32(0); ch < 16; ch++ {
		m.synthesizer.ProcessMidiMessage(ch, statusCC, 123, 0)
	}
}

// Render fills left and right with the next len(left) rendered samples.
func (m *MeltySink) Render(left, right []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synthesizer.Render(left, right)
}

// Stream adapts Render to io.Reader for an Ebitengine audio.Player, in
// the same 16-bit little-endian stereo layout the engine's MIDIStream
// uses.
type Stream struct {
	sink *MeltySink
}

// NewStream wraps sink for streaming playback.
func NewStream(sink *MeltySink) *Stream { return &Stream{sink: sink} }

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	samples := len(p) / 4
	if samples == 0 {
		return 0, nil
	}
	left := make([]float32, samples)
	right := make([]float32, samples)
	s.sink.Render(left, right)

	for i := 0; i < samples; i++ {
		l := int16(clampF(float64(left[i]), -1, 1) * 32767)
		r := int16(clampF(float64(right[i]), -1, 1) * 32767)
		binary.LittleEndian.PutUint16(p[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(r))
	}
	return len(p), nil
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

