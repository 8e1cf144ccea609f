package voice

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/noiseloop/midicollab/pkg/expression"
)

func mkRecord(channel, note int) *expression.Record {
	return expression.NewRecord(channel, note, 100, 0, time.Now())
}

// spec.md §8 scenario 4: pool size 2, trigger A, B, then C. A (oldest
// active) is stolen and becomes C; NoteOff on A is then a no-op.
func TestPoolStealsOldestActiveWhenExhausted(t *testing.T) {
	p := NewPool(2)
	a := mkRecord(0, 60)
	b := mkRecord(0, 62)
	c := mkRecord(0, 64)

	va, stoleA := p.NoteOn(a)
	vb, stoleB := p.NoteOn(b)
	if stoleA || stoleB {
		t.Fatal("first two NoteOns should not steal")
	}
	if va == vb {
		t.Fatal("A and B should occupy different voices")
	}

	vc, stoleC := p.NoteOn(c)
	if !stoleC {
		t.Fatal("third NoteOn into a full pool of 2 should steal")
	}
	if vc != va {
		t.Errorf("expected C to steal A's voice (oldest active), got a different voice")
	}

	if _, ok := p.NoteOff(a.ID); ok {
		t.Error("NoteOff on A should be a no-op: A is no longer bound")
	}
	if _, ok := p.NoteOff(c.ID); !ok {
		t.Error("NoteOff on C should succeed: C now owns that voice")
	}
}

func TestPoolPrefersInactiveThenReleasingThenOldestActive(t *testing.T) {
	p := NewPool(3)
	a := mkRecord(0, 60)
	b := mkRecord(0, 62)
	c := mkRecord(0, 64)

	p.NoteOn(a)
	p.NoteOn(b)
	p.NoteOn(c)

	// Release B; the next NoteOn should prefer B's now-releasing voice
	// over stealing an active one, even though nothing is inactive.
	vb, _ := p.VoiceFor(b.ID)
	p.NoteOff(b.ID)
	if !vb.IsReleasing() {
		t.Fatal("expected B's voice to be releasing")
	}

	d := mkRecord(0, 67)
	vd, stole := p.NoteOn(d)
	if !stole {
		t.Fatal("pool is full, fourth NoteOn must steal")
	}
	if vd != vb {
		t.Error("expected the releasing voice to be chosen over an active one")
	}
}

// V8: for a pool of size N, after N+K NoteOns followed by equal NoteOffs,
// at most N voices were active at any instant, and each NoteOff released
// exactly one voice (or was a no-op if already stolen away).
func TestPoolNeverExceedsSizeActiveVoices(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("active count never exceeds pool size", prop.ForAll(
		func(size uint8, extra uint8) bool {
			n := int(size)%6 + 1
			k := int(extra) % 10
			p := NewPool(n)

			var ids []expression.NoteID
			for i := 0; i < n+k; i++ {
				rec := mkRecord(0, 20+i)
				p.NoteOn(rec)
				ids = append(ids, rec.ID)
				if p.ActiveCount() > n {
					return false
				}
			}
			for _, id := range ids {
				p.NoteOff(id)
			}
			return true
		},
		gen.UInt8Range(0, 200),
		gen.UInt8Range(0, 200),
	))

	properties.TestingRun(t)
}

func TestPoolAllNotesOffReleasesEveryVoice(t *testing.T) {
	p := NewPool(4)
	for i := 0; i < 4; i++ {
		p.NoteOn(mkRecord(0, 40+i))
	}
	p.AllNotesOff()
	for _, v := range p.Voices() {
		if !v.IsReleasing() && v.IsActive() {
			t.Error("expected every voice to be releasing after AllNotesOff")
		}
	}
	if len(p.binding) != 0 {
		t.Error("AllNotesOff should clear all bindings")
	}
}

func TestPoolResetSilencesImmediately(t *testing.T) {
	p := NewPool(2)
	p.NoteOn(mkRecord(0, 60))
	p.Reset()
	if p.ActiveCount() != 0 {
		t.Error("Reset should leave no active voices")
	}
}
