package collab

import (
	"container/ring"
	"sync"
	"time"
)

// Role is a peer's permission level within a session.
type Role string

const (
	RoleHost   Role = "Host"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

// CanEdit reports whether this role may submit edit operations; Viewer
// submissions are rejected at the session boundary (spec.md §4.4).
func (r Role) CanEdit() bool { return r == RoleHost || r == RoleEditor }

// ConnectionState is a peer's transport-level connection status.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "Disconnected"
	StateConnecting   ConnectionState = "Connecting"
	StateConnected    ConnectionState = "Connected"
	StateReconnecting ConnectionState = "Reconnecting"
	StateFailed       ConnectionState = "Failed"
)

// SessionLifecycle is the session-level state machine driven by
// create/join handshakes (distinct from a single connection's state).
type SessionLifecycle string

const (
	LifecycleInactive   SessionLifecycle = "Inactive"
	LifecycleCreating   SessionLifecycle = "Creating"
	LifecycleConnecting SessionLifecycle = "Connecting"
	LifecycleActive     SessionLifecycle = "Active"
	LifecycleClosed     SessionLifecycle = "Closed"
)

const latencyRingSize = 20

// Peer is one participant in a session. The connection it currently holds
// (if any) is referenced by ID only, not by pointer, so peer, connection,
// and session never form a strong reference cycle (spec.md §9).
type Peer struct {
	mu sync.Mutex

	ID          PeerID
	Name        string
	Role        Role
	Color       string
	Endpoint    string // transient: remote address, empty when disconnected
	State       ConnectionState
	Clock       VectorClock
	LastSeen    time.Time
	latencies   *ring.Ring
	latencyFill int
}

// NewPeer constructs a peer in the Disconnected state with an empty clock.
func NewPeer(id PeerID, name string, role Role, color string) *Peer {
	return &Peer{
		ID:        id,
		Name:      name,
		Role:      role,
		Color:     color,
		State:     StateDisconnected,
		Clock:     NewVectorClock(),
		latencies: ring.New(latencyRingSize),
	}
}

// Touch records activity now, used by the server's idle-eviction check
// (V9).
func (p *Peer) Touch(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastSeen = now
}

// IdleSince reports how long it has been since this peer was last heard
// from, as of now.
func (p *Peer) IdleSince(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.LastSeen)
}

// RecordLatency pushes a one-way latency sample (milliseconds) into the
// peer's ring buffer.
func (p *Peer) RecordLatency(ms float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latencies.Value = ms
	p.latencies = p.latencies.Next()
	if p.latencyFill < latencyRingSize {
		p.latencyFill++
	}
}

// AverageLatency returns the mean of recorded latency samples, or 0 if
// none have been recorded yet.
func (p *Peer) AverageLatency() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latencyFill == 0 {
		return 0
	}
	var sum float64
	r := p.latencies
	for i := 0; i < p.latencyFill; i++ {
		r = r.Prev()
		sum += r.Value.(float64)
	}
	return sum / float64(p.latencyFill)
}

// SetState transitions the peer's connection state.
func (p *Peer) SetState(s ConnectionState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.State = s
}

// CurrentState returns the peer's connection state.
func (p *Peer) CurrentState() ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.State
}

// OperationType is the kind of edit an Operation performs.
type OperationType string

const (
	OpInsert OperationType = "Insert"
	OpDelete OperationType = "Delete"
	OpUpdate OperationType = "Update"
	OpMove   OperationType = "Move"
	OpNoOp   OperationType = "NoOp"
)

// OperationDomain names the entity kind an Operation targets.
type OperationDomain string

const (
	DomainNote      OperationDomain = "Note"
	DomainTrack     OperationDomain = "Track"
	DomainClip      OperationDomain = "Clip"
	DomainParameter OperationDomain = "Parameter"
)

// Operation is one edit, as defined by spec.md §3.6. Properties is a
// generic string-keyed bag; concrete property names are domain-specific
// (velocity, duration, position, parameterName/value, ...).
type Operation struct {
	ID         OperationID
	Author     PeerID
	Type       OperationType
	Domain     OperationDomain
	Target     EntityID
	Item       EntityID // optional secondary entity (e.g. note within a pattern)
	Position   int
	Position2  int
	Properties map[string]any
	Clock      VectorClock
	Timestamp  int64 // 100-ns ticks, per wire protocol
	Applied    bool
	Acked      bool
}

// Clone returns a deep-enough copy for safe independent transformation:
// Properties and Clock are copied so the original Operation is untouched.
func (o Operation) Clone() Operation {
	out := o
	out.Clock = o.Clock.Clone()
	if o.Properties != nil {
		out.Properties = make(map[string]any, len(o.Properties))
		for k, v := range o.Properties {
			out.Properties[k] = v
		}
	}
	return out
}

// Session holds one collaboration session's participant and history
// state. Peers are stored in a session-owned table; callers hold PeerIDs,
// never Peer pointers across the session boundary, keeping the
// session-peer-connection graph acyclic.
type Session struct {
	mu sync.RWMutex

	ID         SessionID
	Name       string
	Password   string
	MaxPeers   int
	LocalPeer  PeerID
	HostPeer   PeerID
	peers      map[PeerID]*Peer
	Lifecycle  SessionLifecycle
	SharedClock VectorClock

	history *History
}

// NewSession constructs an empty, Inactive session.
func NewSession(id SessionID, name, password string, maxPeers int) *Session {
	return &Session{
		ID:          id,
		Name:        name,
		Password:    password,
		MaxPeers:    maxPeers,
		peers:       make(map[PeerID]*Peer),
		Lifecycle:   LifecycleInactive,
		SharedClock: NewVectorClock(),
		history:     NewHistory(defaultHistoryCapacity),
	}
}

// AddPeer registers peer in the session's table.
func (s *Session) AddPeer(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p.ID] = p
}

// RemovePeer removes peer id from the table and reports whether it was
// present.
func (s *Session) RemovePeer(id PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[id]; !ok {
		return false
	}
	delete(s.peers, id)
	return true
}

// Peer looks up a peer by ID.
func (s *Session) Peer(id PeerID) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[id]
	return p, ok
}

// Peers returns a snapshot slice of all peers currently in the session.
func (s *Session) Peers() []*Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// SetHostIfUnset assigns id as HostPeer the first time it's called, and
// reports whether it made the assignment.
func (s *Session) SetHostIfUnset(id PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HostPeer != "" {
		return false
	}
	s.HostPeer = id
	s.Lifecycle = LifecycleActive
	return true
}

// Host returns the current host's PeerID, or "" if none has joined yet.
func (s *Session) Host() PeerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.HostPeer
}

// PeerCount returns the number of peers currently in the session.
func (s *Session) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// IsFull reports whether the session has reached MaxPeers.
func (s *Session) IsFull() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MaxPeers > 0 && len(s.peers) >= s.MaxPeers
}

// MergeClock folds other into the session's shared clock (element-wise
// max), per spec.md §4.5's "server vector clock is the max of all seen
// operation clocks".
func (s *Session) MergeClock(other VectorClock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SharedClock = s.SharedClock.Merge(other)
}

// History exposes the session's bounded operation history.
func (s *Session) History() *History { return s.history }

const defaultHistoryCapacity = 10000

// History is a bounded ring buffer of applied operations, used to replay
// to peers whose vector clock lags (spec.md §4.5).
type History struct {
	mu   sync.Mutex
	buf  []Operation
	head int
	size int
	cap  int
}

// NewHistory constructs a history with room for capacity operations.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]Operation, capacity), cap: capacity}
}

// Append records op, evicting the oldest entry once capacity is reached.
func (h *History) Append(op Operation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx := (h.head + h.size) % h.cap
	h.buf[idx] = op
	if h.size < h.cap {
		h.size++
	} else {
		h.head = (h.head + 1) % h.cap
	}
}

// Since returns every recorded operation whose clock is not already
// dominated by after (i.e. operations the caller's clock has not yet
// seen), oldest first.
func (h *History) Since(after VectorClock) []Operation {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Operation, 0, h.size)
	for i := 0; i < h.size; i++ {
		op := h.buf[(h.head+i)%h.cap]
		if after.LessThan(op.Clock) || after.Concurrent(op.Clock) {
			out = append(out, op)
		}
	}
	return out
}

// Len returns the number of operations currently retained.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}
