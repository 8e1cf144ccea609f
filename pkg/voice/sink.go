package voice

// Sink is the DSP boundary VAEB renders into. It receives the raw
// control-rate intents (note on/off, all notes off) directly, rather than the
// smoothed per-sample Output, so a sink backed by a real synthesis engine
// (which owns its own envelopes) can drive note lifecycle without
// duplicating VAEB's smoothing.
type Sink interface {
	// NoteOn starts sound for voiceIndex at the given frequency and
	// strike velocity (0-1).
	NoteOn(voiceIndex int, frequency, velocity float64)
	// NoteOff begins the release of voiceIndex with the given lift
	// velocity (0-1).
	NoteOff(voiceIndex int, velocity float64)
	// UpdateExpression pushes the latest smoothed slide/pressure/pitch
	// state for an already-sounding voice.
	UpdateExpression(voiceIndex int, slide, pressure, pitchBendSemitones float64)
	// AllNotesOff silences every voice immediately.
	AllNotesOff()
}

// Drive steps the pool by dt and forwards the resulting per-voice state to
// sink. It is a convenience wrapper for sinks that want VAEB to own
// smoothing and envelopes (as opposed to a sink like go-meltysynth that
// owns its own and only needs discrete NoteOn/NoteOff/AllNotesOff calls).
func (p *Pool) Drive(dt float64, sink Sink) {
	for _, v := range p.voices {
		wasActive := v.IsActive()
		out := v.Process(dt)
		if !wasActive {
			continue
		}
		if !out.Active {
			sink.NoteOff(v.Index(), 0)
			continue
		}
		sink.UpdateExpression(v.Index(), out.Slide, out.Pressure, 0)
	}
}
