package voice

import (
	"github.com/noiseloop/midicollab/pkg/expression"
)

// Pool is a fixed-size collection of voices implementing spec.md §4.2's
// allocation policy. It owns the NoteID-to-Voice binding so callers can
// look up which voice (if any) a given note currently occupies.
type Pool struct {
	voices  []*Voice
	binding map[expression.NoteID]*Voice

	amp    ADSRParams
	filter ADSRParams
	glide  float64

	order uint64 // monotonic trigger counter, ties broken by insertion order
}

// NewPool constructs a pool of size voices, each initially inactive.
// size must be at least 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	voices := make([]*Voice, size)
	for i := range voices {
		voices[i] = NewVoice(i)
	}
	return &Pool{
		voices:  voices,
		binding: make(map[expression.NoteID]*Voice, size),
		amp:     DefaultADSRParams(),
		filter:  DefaultADSRParams(),
	}
}

// Size returns the number of voice slots in the pool.
func (p *Pool) Size() int { return len(p.voices) }

// SetEnvelopes configures the ADSR shapes applied to subsequently triggered
// voices. Voices already sounding keep whatever shape they were triggered
// with.
func (p *Pool) SetEnvelopes(amp, filter ADSRParams) {
	p.amp = amp
	p.filter = filter
}

// SetGlideSeconds configures the frequency-glide time constant applied to
// subsequently triggered voices. Zero disables glide (immediate pitch
// jumps).
func (p *Pool) SetGlideSeconds(seconds float64) { p.glide = seconds }

// VoiceFor returns the voice currently bound to id, if any.
func (p *Pool) VoiceFor(id expression.NoteID) (*Voice, bool) {
	v, ok := p.binding[id]
	return v, ok
}

// NoteOn binds rec to a voice chosen by the stealing policy: (1) an
// inactive voice, (2) failing that the oldest voice already releasing, (3)
// failing that the oldest active voice. It returns the voice used and
// whether an existing note was stolen (forcibly unbound) to make room.
func (p *Pool) NoteOn(rec *expression.Record) (*Voice, bool) {
	if existing, ok := p.binding[rec.ID]; ok {
		// Retrigger of an already-sounding note reuses its own voice.
		p.order++
		existing.Trigger(rec, p.amp, p.filter, p.glide, p.order)
		return existing, false
	}

	v, stole := p.choose()
	if stole {
		p.unbindVoice(v)
	}
	p.order++
	v.Trigger(rec, p.amp, p.filter, p.glide, p.order)
	p.binding[rec.ID] = v
	return v, stole
}

// choose implements the three-tier selection policy over the pool's fixed
// voices, without mutating any state.
func (p *Pool) choose() (*Voice, bool) {
	for _, v := range p.voices {
		if !v.IsActive() {
			return v, false
		}
	}

	var oldestReleasing *Voice
	for _, v := range p.voices {
		if v.IsReleasing() {
			if oldestReleasing == nil || v.TriggerOrder() < oldestReleasing.TriggerOrder() {
				oldestReleasing = v
			}
		}
	}
	if oldestReleasing != nil {
		return oldestReleasing, true
	}

	oldestActive := p.voices[0]
	for _, v := range p.voices[1:] {
		if v.TriggerOrder() < oldestActive.TriggerOrder() {
			oldestActive = v
		}
	}
	return oldestActive, true
}

// NoteOff releases the voice bound to id, if any, and removes the
// binding. The voice continues sounding through its release envelope
// until Process reports it idle.
func (p *Pool) NoteOff(id expression.NoteID) (*Voice, bool) {
	v, ok := p.binding[id]
	if !ok {
		return nil, false
	}
	v.Release()
	delete(p.binding, id)
	return v, true
}

// unbindVoice removes whatever NoteID currently maps to v, used when
// stealing forces a voice away from its previous note.
func (p *Pool) unbindVoice(v *Voice) {
	for id, bound := range p.binding {
		if bound == v {
			delete(p.binding, id)
			return
		}
	}
}

// AllNotesOff releases every active voice immediately, per spec.md's
// panic/all-notes-off requirement, and clears all bindings.
func (p *Pool) AllNotesOff() {
	for _, v := range p.voices {
		v.Release()
	}
	for id := range p.binding {
		delete(p.binding, id)
	}
}

// Reset forcibly silences and clears every voice, discarding release
// tails, and clears all bindings.
func (p *Pool) Reset() {
	for _, v := range p.voices {
		v.Reset()
	}
	for id := range p.binding {
		delete(p.binding, id)
	}
	p.order = 0
}

// ActiveCount returns how many voices are currently sounding (attack
// through release, not idle).
func (p *Pool) ActiveCount() int {
	n := 0
	for _, v := range p.voices {
		if v.IsActive() {
			n++
		}
	}
	return n
}

// Process advances every voice by dt and returns one Output per slot, in
// pool order, reclaiming any voice whose envelope has gone idle this
// sample.
func (p *Pool) Process(dt float64) []Output {
	out := make([]Output, len(p.voices))
	for i, v := range p.voices {
		out[i] = v.Process(dt)
	}
	return out
}

// Voices exposes the pool's voices directly, for callers that need more
// than Process's per-sample Output (e.g. a custom DSP sink).
func (p *Pool) Voices() []*Voice { return p.voices }
