// Package expression implements per-note expression state: the pitch,
// slide, pressure, and strike/lift data that MIDI Polyphonic Expression and
// MIDI 2.0 Channel Voice messages carry independently for every sounding
// note.
package expression

import (
	"math"
	"time"
)

// DefaultBendRangeSemitones is the bend range a zone uses until an MPE
// Configuration Message or explicit RPN 0:0 overrides it.
const DefaultBendRangeSemitones = 48

// NoteID identifies one sounding note within a single MPE zone or processor
// instance. It is derived, not allocated: channel*128+noteNumber, unique per
// (channel, noteNumber) pair.
type NoteID int

// NewNoteID derives a NoteID from a MIDI channel (0-15) and note number
// (0-127).
func NewNoteID(channel, note int) NoteID {
	return NoteID(channel*128 + note)
}

// Channel returns the channel this NoteID was derived from.
func (id NoteID) Channel() int { return int(id) / 128 }

// Note returns the note number this NoteID was derived from.
func (id NoteID) Note() int { return int(id) % 128 }

// Record is a per-note expression record: the full continuous-controller
// state of one sounding note. The MIDI router allocates a fresh record
// (NewRecord) for every NoteOn; records are not pooled or reused.
type Record struct {
	ID NoteID

	Channel    int
	Note       int
	BendRange  float64 // semitones, default DefaultBendRangeSemitones

	StrikeVelocity float64 // 0-1
	LiftVelocity   float64 // 0-1
	Slide          float64 // 0-1, neutral 0.5
	Pressure       float64 // 0-1
	PitchBend      float64 // signed semitones, bounded by BendRange

	Active     bool
	Releasing  bool
	LastUpdated time.Time
}

// NewRecord constructs an active expression record for a freshly triggered
// note. StrikeVelocity and LastUpdated are the only fields a NoteOn
// supplies; everything else starts at its neutral value.
func NewRecord(channel, note int, strikeVelocity float64, bendRange float64, now time.Time) *Record {
	if bendRange <= 0 {
		bendRange = DefaultBendRangeSemitones
	}
	return &Record{
		ID:             NewNoteID(channel, note),
		Channel:        channel,
		Note:           note,
		BendRange:      bendRange,
		StrikeVelocity: strikeVelocity,
		Slide:          0.5,
		Active:         true,
		LastUpdated:    now,
	}
}

// Reset clears a record back to its zero, inactive form. Neither the
// router nor the voice pool calls it.
func (r *Record) Reset() {
	*r = Record{}
}

// BaseFrequency is the equal-tempered frequency of this record's note
// number, independent of any pitch bend: 440 * 2^((note-69)/12).
func (r *Record) BaseFrequency() float64 {
	return BaseFrequencyForNote(r.Note)
}

// BaseFrequencyForNote computes the equal-tempered frequency of a MIDI note
// number on its own, for callers that don't have a Record yet (split-zone
// preview, chord-memory voicing math).
func BaseFrequencyForNote(note int) float64 {
	return 440.0 * math.Pow(2, (float64(note)-69)/12)
}

// Frequency is the record's sounding frequency after pitch bend is applied:
// BaseFrequency * 2^(PitchBend/12). This is invariant V2 in spec terms.
func (r *Record) Frequency() float64 {
	return r.BaseFrequency() * math.Pow(2, r.PitchBend/12)
}

// NoteOn (re)activates the record for a new strike. The record must already
// be keyed correctly (channel/note/ID) by the caller; NoteOn only flips the
// lifecycle flags and timestamps the strike.
func (r *Record) NoteOn(strikeVelocity float64, now time.Time) {
	r.StrikeVelocity = strikeVelocity
	r.Active = true
	r.Releasing = false
	r.LastUpdated = now
}

// NoteOff marks the record releasing. It does not clear Active, and
// nothing clears Active or Releasing when the owning voice's envelope
// completes.
func (r *Record) NoteOff(liftVelocity float64, now time.Time) {
	r.LiftVelocity = liftVelocity
	r.Releasing = true
	r.LastUpdated = now
}

// SetSlide updates the per-note slide (CC 74 in the common MPE mapping) and
// stamps the update time.
func (r *Record) SetSlide(v float64, now time.Time) {
	r.Slide = clamp01(v)
	r.LastUpdated = now
}

// SetPressure updates per-note (or, when broadcast by the caller, global)
// channel pressure.
func (r *Record) SetPressure(v float64, now time.Time) {
	r.Pressure = clamp01(v)
	r.LastUpdated = now
}

// SetPitchBend updates the pitch bend in semitones, clamped to the record's
// bend range.
func (r *Record) SetPitchBend(semitones float64, now time.Time) {
	if semitones > r.BendRange {
		semitones = r.BendRange
	}
	if semitones < -r.BendRange {
		semitones = -r.BendRange
	}
	r.PitchBend = semitones
	r.LastUpdated = now
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
