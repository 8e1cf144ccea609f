package midi

import "testing"

// Property (spec.md V4): strum direction Up with N notes produces delays
// 0, tau/(N-1), 2*tau/(N-1), ..., tau in note order.
func TestChordStrumUpDelays(t *testing.T) {
	m := NewChordMemory()
	m.SetVoicing(0, &Voicing{
		Name:      "major7",
		Intervals: []int{0, 4, 7, 11},
		Strum:     StrumUp,
		StrumTimeMs: 90,
	})

	notes, ok := m.Voice(60, 100)
	if !ok {
		t.Fatal("expected a voicing match")
	}
	n := len(notes)
	for i, note := range notes {
		want := 90.0 * float64(i) / float64(n-1)
		if note.DelayMs != want {
			t.Errorf("note %d delay = %v, want %v", i, note.DelayMs, want)
		}
	}
}

func TestChordStrumDownReversesOrder(t *testing.T) {
	m := NewChordMemory()
	m.SetVoicing(0, &Voicing{
		Intervals: []int{0, 4, 7}, Strum: StrumDown, StrumTimeMs: 60,
	})
	notes, _ := m.Voice(60, 100)
	// Last note strums first (delay 0); first note strums last.
	if notes[len(notes)-1].DelayMs != 0 {
		t.Errorf("last note should strum first, got delay %v", notes[len(notes)-1].DelayMs)
	}
	if notes[0].DelayMs != 60 {
		t.Errorf("first note should strum last, got delay %v", notes[0].DelayMs)
	}
}

func TestChordMappingByPitchClass(t *testing.T) {
	m := NewChordMemory()
	m.SetVoicing(0, &Voicing{Intervals: []int{0, 4, 7}})

	// Any octave of pitch class 0 (C) should match, not just note 0 itself.
	for _, note := range []int{0, 12, 60, 72} {
		if _, ok := m.Voice(note, 100); !ok {
			t.Errorf("expected pitch-class match for note %d", note)
		}
	}
	if _, ok := m.Voice(61, 100); ok {
		t.Error("expected no match for an unmapped pitch class")
	}
}

func TestChordInversionWrapsLowestIntervalUpOctave(t *testing.T) {
	m := NewChordMemory()
	m.SetVoicing(0, &Voicing{Intervals: []int{0, 4, 7}, DefaultInversion: 1})
	notes, _ := m.Voice(60, 100)
	// First inversion: root (interval 0) wraps to 12.
	got := make([]int, len(notes))
	for i, n := range notes {
		got[i] = n.Note - 60
	}
	want := []int{12, 4, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got intervals %v, want %v", got, want)
		}
	}
}
