package midi

import "math"

// VelocityCurve reshapes an incoming 0-1 velocity before a split zone emits
// it, per spec.md §3.4.
type VelocityCurve int

const (
	CurveLinear VelocityCurve = iota
	CurveSoft                 // sqrt(v)
	CurveHard                 // v^2
	CurveSCurve
	CurveExponential  // (e^v - 1) / (e - 1)
	CurveLogarithmic  // ln(1 + v*(e-1))
	CurveFixed
)

// ApplyCurve reshapes v (0-1) according to the curve. fixedVelocity is used
// verbatim, unclamped, for CurveFixed (the caller clamps on output, per
// spec.md §4.1: "Fixed returns the zone's fixed velocity verbatim").
func ApplyCurve(curve VelocityCurve, v float64, fixedVelocity float64) float64 {
	switch curve {
	case CurveSoft:
		return math.Sqrt(v)
	case CurveHard:
		return v * v
	case CurveSCurve:
		return v * v * (3 - 2*v)
	case CurveExponential:
		return (math.Exp(v) - 1) / (math.E - 1)
	case CurveLogarithmic:
		return math.Log(1+v*(math.E-1)) / 1.0
	case CurveFixed:
		return fixedVelocity
	default: // CurveLinear
		return v
	}
}

// SplitZone matches an input (note, velocity) against a half-open note
// range and, when matched, transposes, reassigns the output channel, and
// reshapes velocity per spec.md §3.4. FineTuneCents is stored on the zone
// but ProcessSplit does not apply it to its outputs.
type SplitZone struct {
	Name           string
	LowNote        int
	HighNote       int // half-open: [LowNote, HighNote)
	LowVel         int
	HighVel        int // half-open: [LowVel, HighVel)
	Transpose      int
	FineTuneCents  float64
	OutputChannel  int // -1 keeps the input channel
	Curve          VelocityCurve
	FixedVelocity  int // used only when Curve == CurveFixed
	Priority       int // higher processed first
	PassThrough    bool
}

// Matches reports whether (note, velocity) falls in this zone's ranges.
func (z SplitZone) Matches(note, velocity int) bool {
	return note >= z.LowNote && note < z.HighNote && velocity >= z.LowVel && velocity < z.HighVel
}

// SplitOutput is one emitted note from split-zone processing.
type SplitOutput struct {
	Zone     *SplitZone
	Note     int
	Velocity int // clamped to [1, 127]
	Channel  int
}

// ProcessSplit matches (note, velocity) against zones in descending
// priority order (spec.md §3.4/§4.1, invariant V3), emitting one output per
// match and halting at the first match whose PassThrough is false.
func ProcessSplit(zones []*SplitZone, note, velocity, sourceChannel int) []SplitOutput {
	ordered := sortedByPriorityDesc(zones)
	var out []SplitOutput
	for _, z := range ordered {
		if !z.Matches(note, velocity) {
			continue
		}
		ch := sourceChannel
		if z.OutputChannel >= 0 {
			ch = z.OutputChannel
		}
		curved := ApplyCurve(z.Curve, float64(velocity)/127.0, float64(z.FixedVelocity))
		var outVel int
		if z.Curve == CurveFixed {
			outVel = clampVelocity(int(math.Round(curved)))
		} else {
			outVel = clampVelocity(int(math.Round(curved * 127.0)))
		}
		out = append(out, SplitOutput{
			Zone:     z,
			Note:     note + z.Transpose,
			Velocity: outVel,
			Channel:  ch,
		})
		if !z.PassThrough {
			break
		}
	}
	return out
}

func clampVelocity(v int) int {
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return v
}

// sortedByPriorityDesc returns zones ordered by descending Priority with a
// stable tie-break on input order, without mutating the caller's slice.
func sortedByPriorityDesc(zones []*SplitZone) []*SplitZone {
	out := make([]*SplitZone, len(zones))
	copy(out, zones)
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Priority < out[j].Priority {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}
