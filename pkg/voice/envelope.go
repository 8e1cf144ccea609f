// Package voice implements the Voice Allocator & Expression Binder: a
// fixed-size voice pool that binds expression records to voices, applies a
// stealing policy under pressure, and smooths per-sample parameters for
// downstream DSP consumption.
package voice

// Stage is one phase of an ADSR envelope's lifecycle.
type Stage int

const (
	StageIdle Stage = iota
	StageAttack
	StageDecay
	StageSustain
	StageRelease
)

// ADSRParams are the envelope shape copied onto a voice at Trigger time.
// Times are in seconds; SustainLevel is 0-1.
type ADSRParams struct {
	AttackSeconds  float64
	DecaySeconds   float64
	SustainLevel   float64
	ReleaseSeconds float64
}

// DefaultADSRParams is a short, musically neutral default envelope.
func DefaultADSRParams() ADSRParams {
	return ADSRParams{AttackSeconds: 0.005, DecaySeconds: 0.08, SustainLevel: 0.8, ReleaseSeconds: 0.2}
}

// Envelope is a per-sample ADSR amplitude (or filter) envelope. It is
// reused across voice lifetimes (Reset, not reallocated) to satisfy the
// no-allocation-in-the-hot-path rule (spec.md §5).
type Envelope struct {
	params ADSRParams
	stage  Stage
	level  float64
}

// Trigger (re)starts the envelope in its Attack stage with the given shape.
func (e *Envelope) Trigger(params ADSRParams) {
	e.params = params
	e.stage = StageAttack
	// Level is not reset to 0: retriggering mid-release starts the new
	// attack from wherever the envelope currently sits, avoiding a click.
}

// Release moves the envelope into its Release stage from wherever it is.
func (e *Envelope) Release() {
	if e.stage != StageIdle {
		e.stage = StageRelease
	}
}

// Reset clears the envelope back to Idle at zero level.
func (e *Envelope) Reset() {
	e.stage = StageIdle
	e.level = 0
}

// IsIdle reports whether the envelope has finished its release and the
// voice may be reclaimed.
func (e *Envelope) IsIdle() bool { return e.stage == StageIdle }

// Level returns the current envelope level without advancing it.
func (e *Envelope) Level() float64 { return e.level }

// CurrentStage returns the envelope's current lifecycle stage.
func (e *Envelope) CurrentStage() Stage { return e.stage }

// Advance steps the envelope forward by dt seconds and returns the new
// level. It is total and allocation-free, safe for the audio-rate loop.
func (e *Envelope) Advance(dt float64) float64 {
	switch e.stage {
	case StageIdle:
		e.level = 0
	case StageAttack:
		if e.params.AttackSeconds <= 0 {
			e.level = 1
			e.stage = StageDecay
			break
		}
		e.level += dt / e.params.AttackSeconds
		// The tolerance absorbs float accumulation error, so an attack of
		// n*dt seconds completes on step n.
		if e.level >= 1-1e-9 {
			e.level = 1
			e.stage = StageDecay
		}
	case StageDecay:
		if e.params.DecaySeconds <= 0 {
			e.level = e.params.SustainLevel
			e.stage = StageSustain
			break
		}
		target := e.params.SustainLevel
		step := (1 - target) * dt / e.params.DecaySeconds
		e.level -= step
		if e.level <= target {
			e.level = target
			e.stage = StageSustain
		}
	case StageSustain:
		e.level = e.params.SustainLevel
	case StageRelease:
		if e.params.ReleaseSeconds <= 0 {
			e.level = 0
			e.stage = StageIdle
			break
		}
		step := e.level * dt / e.params.ReleaseSeconds
		e.level -= step
		if e.level <= 0.0005 {
			e.level = 0
			e.stage = StageIdle
		}
	}
	return e.level
}
