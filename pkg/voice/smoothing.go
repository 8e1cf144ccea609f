package voice

import "math"

// Smoother is a one-pole parameter smoother: per spec.md §4.2, each sample
// computes alpha = 1 - exp(-dt/tau) and advances the current value toward
// its target by that fraction. It is allocation-free and safe for the
// audio-rate loop.
type Smoother struct {
	current float64
	target  float64
	tau     float64 // seconds; <= 0 means "step immediately"
}

// NewSmoother returns a smoother initialized to value with the given time
// constant.
func NewSmoother(value, tau float64) Smoother {
	return Smoother{current: value, target: value, tau: tau}
}

// SetTarget updates the value the smoother advances toward on subsequent
// Advance calls, without changing the current value.
func (s *Smoother) SetTarget(target float64) { s.target = target }

// SetImmediate steps both current and target to value with no glide,
// for first-trigger and glideTime==0 cases (spec.md §4.2).
func (s *Smoother) SetImmediate(value float64) {
	s.current = value
	s.target = value
}

// Value returns the current (smoothed) value without advancing it.
func (s *Smoother) Value() float64 { return s.current }

// Advance steps the smoother forward by dt seconds and returns the new
// current value.
func (s *Smoother) Advance(dt float64) float64 {
	if s.tau <= 0 {
		s.current = s.target
		return s.current
	}
	alpha := 1 - math.Exp(-dt/s.tau)
	s.current += (s.target - s.current) * alpha
	return s.current
}
