package voice

import (
	"testing"
	"time"

	"github.com/noiseloop/midicollab/pkg/expression"
)

func TestVoiceTriggerSetsFrequencyImmediatelyOnFirstTrigger(t *testing.T) {
	v := NewVoice(0)
	rec := expression.NewRecord(0, 69, 100, 0, time.Now()) // A4, 440Hz
	v.Trigger(rec, DefaultADSRParams(), DefaultADSRParams(), 0.2, 1)

	out := v.Process(0.001)
	if out.Frequency != 440 {
		t.Errorf("first trigger should snap frequency immediately, got %v", out.Frequency)
	}
}

func TestVoiceGlideDelaysFrequencyOnRetrigger(t *testing.T) {
	v := NewVoice(0)
	recA := expression.NewRecord(0, 69, 100, 0, time.Now())
	v.Trigger(recA, DefaultADSRParams(), DefaultADSRParams(), 0.2, 1)
	v.Process(0.001)

	recB := expression.NewRecord(0, 81, 100, 0, time.Now()) // A5, 880Hz
	v.Trigger(recB, DefaultADSRParams(), DefaultADSRParams(), 0.2, 2)
	out := v.Process(0.001)
	if out.Frequency == 880 {
		t.Error("glide should not jump to target instantly with nonzero glide time")
	}
	if out.Frequency <= 440 || out.Frequency >= 880 {
		t.Errorf("mid-glide frequency should be between start and target, got %v", out.Frequency)
	}
}

func TestVoiceReleaseEventuallyGoesIdle(t *testing.T) {
	v := NewVoice(0)
	rec := expression.NewRecord(0, 60, 100, 0, time.Now())
	params := ADSRParams{AttackSeconds: 0, DecaySeconds: 0, SustainLevel: 1, ReleaseSeconds: 0.05}
	v.Trigger(rec, params, params, 0, 1)
	v.Process(0.001)
	v.Release()

	for i := 0; i < 1000 && v.IsActive(); i++ {
		v.Process(0.001)
	}
	if v.IsActive() {
		t.Fatal("voice never went inactive after release")
	}
}

func TestVoiceProcessInactiveReturnsZeroOutput(t *testing.T) {
	v := NewVoice(0)
	out := v.Process(0.01)
	if out.Active {
		t.Error("inactive voice should report Active=false in its Output")
	}
}
