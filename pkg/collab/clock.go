package collab

// VectorClock maps a PeerID to its monotone counter. A missing key reads
// as zero.
type VectorClock map[PeerID]int64

// NewVectorClock returns an empty clock.
func NewVectorClock() VectorClock { return make(VectorClock) }

// Get returns the counter for peer, or 0 if unseen.
func (vc VectorClock) Get(peer PeerID) int64 { return vc[peer] }

// Increment bumps peer's entry by one and returns the clock for chaining.
func (vc VectorClock) Increment(peer PeerID) VectorClock {
	vc[peer] = vc[peer] + 1
	return vc
}

// Clone returns an independent copy.
func (vc VectorClock) Clone() VectorClock {
	out := make(VectorClock, len(vc))
	for k, v := range vc {
		out[k] = v
	}
	return out
}

// Merge returns the element-wise maximum of vc and other, the operation
// applied when a message is received (spec.md §3.7).
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	out := vc.Clone()
	for k, v := range other {
		if v > out[k] {
			out[k] = v
		}
	}
	return out
}

// LessThan reports whether vc strictly precedes other: every entry of vc
// is <= the corresponding entry of other, and at least one is strictly
// less.
func (vc VectorClock) LessThan(other VectorClock) bool {
	strictlyLess := false
	keys := make(map[PeerID]struct{}, len(vc)+len(other))
	for k := range vc {
		keys[k] = struct{}{}
	}
	for k := range other {
		keys[k] = struct{}{}
	}
	for k := range keys {
		a, b := vc[k], other[k]
		if a > b {
			return false
		}
		if a < b {
			strictlyLess = true
		}
	}
	return strictlyLess
}

// Concurrent reports whether neither clock precedes the other.
func (vc VectorClock) Concurrent(other VectorClock) bool {
	return !vc.LessThan(other) && !other.LessThan(vc)
}

// Equal reports structural equality.
func (vc VectorClock) Equal(other VectorClock) bool {
	if len(vc) != len(other) {
		return false
	}
	for k, v := range vc {
		if other[k] != v {
			return false
		}
	}
	return true
}
