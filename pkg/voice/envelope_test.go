package voice

import "testing"

func TestEnvelopeAdvancesThroughStages(t *testing.T) {
	var e Envelope
	params := ADSRParams{AttackSeconds: 0.1, DecaySeconds: 0.1, SustainLevel: 0.5, ReleaseSeconds: 0.1}
	e.Trigger(params)

	// Attack: 0.1s at dt=0.01 should reach 1.0 after 10 steps.
	for i := 0; i < 10; i++ {
		e.Advance(0.01)
	}
	if e.CurrentStage() != StageDecay {
		t.Fatalf("expected Decay after attack completes, got %v", e.CurrentStage())
	}

	for i := 0; i < 10; i++ {
		e.Advance(0.01)
	}
	if e.CurrentStage() != StageSustain {
		t.Fatalf("expected Sustain after decay completes, got %v", e.CurrentStage())
	}
	if e.Level() != 0.5 {
		t.Errorf("sustain level = %v, want 0.5", e.Level())
	}

	e.Release()
	for i := 0; i < 1000 && e.CurrentStage() != StageIdle; i++ {
		e.Advance(0.01)
	}
	if e.CurrentStage() != StageIdle {
		t.Fatal("envelope never reached Idle during release")
	}
	if !e.IsIdle() {
		t.Error("IsIdle should report true once Idle")
	}
}

func TestEnvelopeRetriggerMidReleaseDoesNotClick(t *testing.T) {
	var e Envelope
	e.Trigger(ADSRParams{AttackSeconds: 0, DecaySeconds: 0, SustainLevel: 1, ReleaseSeconds: 1})
	e.Advance(0.01) // zero attack: jumps to level 1
	e.Release()
	e.Advance(0.1) // partial release, level drops but > 0
	levelBeforeRetrigger := e.Level()
	if levelBeforeRetrigger <= 0 {
		t.Fatal("expected nonzero level mid-release")
	}
	e.Trigger(ADSRParams{AttackSeconds: 0, DecaySeconds: 0, SustainLevel: 1, ReleaseSeconds: 1})
	if e.Level() != levelBeforeRetrigger {
		t.Errorf("retrigger should preserve level to avoid a click, got %v want %v", e.Level(), levelBeforeRetrigger)
	}
	if e.CurrentStage() != StageAttack {
		t.Errorf("retrigger should move to Attack, got %v", e.CurrentStage())
	}
}

func TestEnvelopeResetClearsState(t *testing.T) {
	var e Envelope
	e.Trigger(DefaultADSRParams())
	e.Advance(1)
	e.Reset()
	if !e.IsIdle() || e.Level() != 0 {
		t.Errorf("Reset should zero level and return to Idle, got level=%v stage=%v", e.Level(), e.CurrentStage())
	}
}
