package voice

import (
	"github.com/noiseloop/midicollab/pkg/expression"
)

// defaultControllerTau is the one-pole time constant used for slide and
// pressure smoothing; unlike frequency glide, this is not configurable
// per spec.md (only frequency glide is named as user-configurable).
const defaultControllerTau = 0.015

// Output is what one voice contributes to a single audio sample: the
// smoothed, envelope-applied parameters a DSP sink needs. VAEB computes
// this; the sink interprets it (spec.md §1 deliberately keeps oscillator/
// filter DSP out of scope).
type Output struct {
	Frequency     float64
	Amplitude     float64 // amp envelope level, 0-1
	FilterCutoff  float64 // filter envelope level, 0-1 (caller maps to Hz)
	Slide         float64
	Pressure      float64
	Active        bool
}

// Voice is one slot in the fixed-size pool: a bound expression record, an
// amplitude envelope, a filter envelope, and the smoothers that turn
// control-rate expression updates into audio-rate parameter motion.
type Voice struct {
	index int

	record *expression.Record

	amp    Envelope
	filter Envelope

	freq     Smoother
	slide    Smoother
	pressure Smoother

	glideSeconds float64
	firstTrigger bool

	active      bool
	releasing   bool
	triggeredAt uint64 // monotonic trigger-order stamp, not wall clock
}

// NewVoice constructs an inactive voice at the given pool index.
func NewVoice(index int) *Voice {
	return &Voice{index: index, firstTrigger: true}
}

// Index returns this voice's fixed position in the pool.
func (v *Voice) Index() int { return v.index }

// Record returns the expression record currently bound to this voice, or
// nil if the voice is inactive.
func (v *Voice) Record() *expression.Record { return v.record }

// IsActive reports whether the voice is sounding (attack/decay/sustain or
// release, not yet idle).
func (v *Voice) IsActive() bool { return v.active }

// IsReleasing reports whether the voice has received NoteOff and is in its
// release phase.
func (v *Voice) IsReleasing() bool { return v.releasing }

// TriggerOrder returns the monotonic stamp assigned at the last Trigger,
// used by the pool's stealing policy to find "oldest".
func (v *Voice) TriggerOrder() uint64 { return v.triggeredAt }

// Trigger (re)assigns this voice to rec. Envelope parameters and glide time
// are copied in now; later changes to the owning synth's settings do not
// retroactively alter an already-triggered voice (spec.md §4.2).
func (v *Voice) Trigger(rec *expression.Record, amp, filter ADSRParams, glideSeconds float64, order uint64) {
	v.record = rec
	v.amp.Trigger(amp)
	v.filter.Trigger(filter)
	v.glideSeconds = glideSeconds
	v.active = true
	v.releasing = false
	v.triggeredAt = order

	freq := rec.Frequency()
	if v.firstTrigger || glideSeconds == 0 {
		v.freq = NewSmoother(freq, 0)
	} else {
		v.freq.SetTarget(freq)
	}
	v.slide = NewSmoother(rec.Slide, defaultControllerTau)
	v.pressure = NewSmoother(rec.Pressure, defaultControllerTau)
	v.firstTrigger = false
}

// Release begins the voice's envelope release phase. The caller (pool) is
// responsible for unbinding the NoteID immediately; Release only affects
// DSP-facing state.
func (v *Voice) Release() {
	if !v.active {
		return
	}
	v.releasing = true
	v.amp.Release()
	v.filter.Release()
}

// Reset clears all state synchronously, for a global reset (Pool.Reset).
func (v *Voice) Reset() {
	v.amp.Reset()
	v.filter.Reset()
	v.record = nil
	v.active = false
	v.releasing = false
}

// Process advances one sample: it re-reads the bound record's latest
// expression state, retargets the smoothers, steps envelopes and
// smoothers by dt, and returns the resulting Output. It never allocates
// and never blocks (spec.md §5 audio-rate path contract).
func (v *Voice) Process(dt float64) Output {
	if !v.active || v.record == nil {
		return Output{}
	}

	v.freq.SetTarget(v.record.Frequency())
	v.slide.SetTarget(v.record.Slide)
	v.pressure.SetTarget(v.record.Pressure)

	var freqTau float64
	if v.glideSeconds > 0 {
		freqTau = v.glideSeconds
	}
	savedTau := v.freq.tau
	v.freq.tau = freqTau
	freq := v.freq.Advance(dt)
	v.freq.tau = savedTau

	ampLevel := v.amp.Advance(dt)
	filterLevel := v.filter.Advance(dt)
	slide := v.slide.Advance(dt)
	pressure := v.pressure.Advance(dt)

	if v.releasing && v.amp.IsIdle() {
		v.active = false
		v.releasing = false
	}

	return Output{
		Frequency:    freq,
		Amplitude:    ampLevel,
		FilterCutoff: filterLevel,
		Slide:        slide,
		Pressure:     pressure,
		Active:       v.active,
	}
}

// EnvelopeIdle reports whether the amplitude envelope has reached Idle,
// the condition under which the allocator may recycle this voice.
func (v *Voice) EnvelopeIdle() bool { return v.amp.IsIdle() }
