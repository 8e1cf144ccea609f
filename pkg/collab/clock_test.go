package collab

import "testing"

func TestVectorClockLessThan(t *testing.T) {
	a := VectorClock{"p1": 1, "p2": 2}
	b := VectorClock{"p1": 1, "p2": 3}
	if !a.LessThan(b) {
		t.Error("a should precede b")
	}
	if b.LessThan(a) {
		t.Error("b should not precede a")
	}
}

func TestVectorClockConcurrent(t *testing.T) {
	a := VectorClock{"p1": 2, "p2": 1}
	b := VectorClock{"p1": 1, "p2": 2}
	if !a.Concurrent(b) {
		t.Error("a and b should be concurrent")
	}
	if !b.Concurrent(a) {
		t.Error("concurrency should be symmetric")
	}
}

func TestVectorClockMergeTakesElementwiseMax(t *testing.T) {
	a := VectorClock{"p1": 2, "p2": 1}
	b := VectorClock{"p1": 1, "p2": 5, "p3": 1}
	merged := a.Merge(b)
	want := VectorClock{"p1": 2, "p2": 5, "p3": 1}
	if !merged.Equal(want) {
		t.Errorf("merge = %v, want %v", merged, want)
	}
}

func TestVectorClockIncrementIsMonotone(t *testing.T) {
	vc := NewVectorClock()
	vc.Increment("p1")
	vc.Increment("p1")
	if vc.Get("p1") != 2 {
		t.Errorf("got %d, want 2", vc.Get("p1"))
	}
	if vc.Get("unseen") != 0 {
		t.Error("unseen peer should read as 0")
	}
}

func TestVectorClockNeitherPrecedesItself(t *testing.T) {
	a := VectorClock{"p1": 3}
	if a.LessThan(a) {
		t.Error("a clock should never strictly precede itself")
	}
	if !a.Equal(a.Clone()) {
		t.Error("a clone should be structurally equal to the original")
	}
}
