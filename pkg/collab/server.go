package collab

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ServerConfig configures a Server's listener and liveness policy.
type ServerConfig struct {
	ListenAddr    string
	SessionName   string
	Password      string
	MaxPeers      int
	PingInterval  time.Duration
	PeerTimeout   time.Duration
	InboundRate   rate.Limit // frames/sec permitted per connection
	InboundBurst  int
	Now           func() time.Time
}

// DefaultServerConfig returns the protocol constants named in spec.md
// §6.4.
func DefaultServerConfig(listenAddr, sessionName string) ServerConfig {
	return ServerConfig{
		ListenAddr:   listenAddr,
		SessionName:  sessionName,
		MaxPeers:     16,
		PingInterval: 5 * time.Second,
		PeerTimeout:  15 * time.Second,
		InboundRate:  50,
		InboundBurst: 100,
		Now:          time.Now,
	}
}

// conn is one accepted connection's bookkeeping.
type conn struct {
	id      PeerID
	nc      net.Conn
	writer  *FrameWriter
	limiter *rate.Limiter
	peer    *Peer
}

// Server accepts TCP connections, maintains one Session, and broadcasts
// applied operations to every other connected peer.
type Server struct {
	cfg     ServerConfig
	log     *slog.Logger
	session *Session

	mu    sync.Mutex
	conns map[PeerID]*conn

	conflicts chan Conflict
	leaves    chan PeerID

	listener net.Listener
	ready    chan struct{}
	readyOnce sync.Once
}

// NewServer constructs a server around a fresh session; it does not start
// listening until Run is called.
func NewServer(cfg ServerConfig, log *slog.Logger) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		log:       log,
		session:   NewSession(NewSessionID(), cfg.SessionName, cfg.Password, cfg.MaxPeers),
		conns:     make(map[PeerID]*conn),
		conflicts: make(chan Conflict, 64),
		leaves:    make(chan PeerID, 64),
		ready:     make(chan struct{}),
	}
}

// Addr blocks until the listener is bound and returns its address. Tests
// and callers that need the actual port (when ListenAddr uses :0) should
// call this from a separate goroutine than Run.
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.listener.Addr()
}

// Session exposes the server's underlying session.
func (s *Server) Session() *Session { return s.session }

// Conflicts returns the channel OT conflicts are pushed to for UI
// consumption; the channel is bounded and drops on overflow by design
// (spec.md §9's "bounded channels, consumer decides to drop").
func (s *Server) Conflicts() <-chan Conflict { return s.conflicts }

// PeerLeft returns the channel a PeerLeft notification is pushed to
// whenever a peer is evicted or disconnects.
func (s *Server) PeerLeft() <-chan PeerID { return s.leaves }

// Run binds the listener and serves until ctx is cancelled, accepting
// connections and running the idle-maintenance loop concurrently.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = ln
	defer ln.Close()
	s.readyOnce.Do(func() { close(s.ready) })

	s.log.Info("collab server listening", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.acceptLoop(gctx, ln) })
	g.Go(func() error { return s.maintenanceLoop(gctx) })

	<-gctx.Done()
	ln.Close()
	_ = g.Wait()
	return ctx.Err()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(ctx, nc)
	}
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	defer nc.Close()

	reader := NewFrameReader(nc)
	writer := NewFrameWriter(nc)

	env, err := reader.ReadEnvelope()
	if err != nil {
		s.log.Warn("collab: dropping connection before join", "error", err)
		return
	}
	if env.Type != MsgJoin {
		s.log.Warn("collab: first frame was not Join", "type", env.Type)
		return
	}

	var join JoinPayload
	decodePayload(env.Payload, &join)

	peerID := env.PeerID
	if peerID == "" {
		peerID = NewPeerID()
	}

	if s.cfg.Password != "" && join.Password != s.cfg.Password {
		s.sendError(writer, ErrInvalidPassword, "invalid password", env.MessageID)
		return
	}
	if s.session.IsFull() {
		s.sendError(writer, ErrSessionFull, "session is full", env.MessageID)
		return
	}

	peer := NewPeer(peerID, join.PeerName, join.Role, join.Color)
	peer.SetState(StateConnected)
	peer.Touch(s.cfg.Now())
	s.session.AddPeer(peer)

	if join.Role == RoleHost {
		s.session.SetHostIfUnset(peerID)
	}

	c := &conn{
		id:      peerID,
		nc:      nc,
		writer:  writer,
		limiter: rate.NewLimiter(s.cfg.InboundRate, s.cfg.InboundBurst),
		peer:    peer,
	}
	s.mu.Lock()
	s.conns[peerID] = c
	s.mu.Unlock()

	s.log.Info("collab: peer joined", "peerId", peerID, "name", join.PeerName)

	s.sendSync(c)
	s.broadcastExcept(peerID, s.joinAnnouncement(peer))

	s.readLoop(ctx, c, reader)

	s.mu.Lock()
	delete(s.conns, peerID)
	s.mu.Unlock()
	s.session.RemovePeer(peerID)
	select {
	case s.leaves <- peerID:
	default:
		s.log.Warn("collab: peer-left channel full, dropping PeerLeft event", "peerId", peerID)
	}
	s.broadcastExcept(peerID, s.leaveAnnouncement(peerID))

	if peerID == s.session.Host() {
		s.log.Info("collab: host departed, closing session", "peerId", peerID)
		s.closeAll()
	}
}

func (s *Server) readLoop(ctx context.Context, c *conn, reader *FrameReader) {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
		env, err := reader.ReadEnvelope()
		if err != nil {
			if pe, ok := err.(*ProtocolError); ok {
				s.log.Warn("collab: framing error, closing connection", "peerId", c.id, "error", pe)
			}
			return
		}
		c.peer.Touch(s.cfg.Now())

		switch env.Type {
		case MsgPing:
			var ping PingPayload
			decodePayload(env.Payload, &ping)
			s.sendPong(c, ping.Sequence)
		case MsgLeave:
			return
		default:
			if isEditMessage(env.Type) && !c.peer.Role.CanEdit() {
				s.sendError(c.writer, ErrNotAuthorized, "viewer role cannot submit edit operations", env.MessageID)
				continue
			}
			s.applyAndBroadcast(c, env)
		}
	}
}

// isEditMessage reports whether t carries a domain edit subject to the
// Viewer-write rejection of spec.md §4.4.
func isEditMessage(t MessageType) bool {
	switch t {
	case MsgNoteOp, MsgTrackOp, MsgClipOp, MsgParameterOp:
		return true
	default:
		return false
	}
}

// applyAndBroadcast transforms an incoming edit operation against every
// history entry it has not already seen (spec.md §4.5), pushes any
// resulting Conflict onto s.conflicts (§7's ConflictDetected), records the
// resolved operation, and broadcasts it to every other peer.
func (s *Server) applyAndBroadcast(origin *conn, env Envelope) {
	if op, ok := operationFromEnvelope(env); ok {
		for _, prior := range s.session.History().Since(op.Clock) {
			var conflict *Conflict
			op, _, conflict = Transform(op, prior)
			if conflict != nil {
				select {
				case s.conflicts <- *conflict:
				default:
					s.log.Warn("collab: conflict channel full, dropping ConflictDetected event")
				}
			}
		}
		s.session.History().Append(op)
		writeOperationBack(&env, op)
	}

	s.session.MergeClock(env.VectorClock)
	s.broadcastExcept(origin.id, env)
}

func (s *Server) sendSync(c *conn) {
	peers := make([]PeerSnapshot, 0)
	for _, p := range s.session.Peers() {
		peers = append(peers, PeerSnapshot{ID: p.ID, Name: p.Name, Role: p.Role, Color: p.Color})
	}
	env := NewEnvelope(MsgSyncResponse, "", s.session.ID, s.session.SharedClock.Clone(), s.cfg.Now().UnixNano()/100)
	env.Payload = map[string]any{"peers": peers}
	_ = c.writer.WriteEnvelope(env)
}

func (s *Server) sendPong(c *conn, sequence uint64) {
	env := NewEnvelope(MsgPong, "", s.session.ID, s.session.SharedClock.Clone(), s.cfg.Now().UnixNano()/100)
	env.Payload = map[string]any{"sequence": sequence, "serverTimestamp": s.cfg.Now().UnixNano() / 100}
	_ = c.writer.WriteEnvelope(env)
}

func (s *Server) sendError(w *FrameWriter, code ErrorCode, message string, related MessageID) {
	env := NewEnvelope(MsgError, "", s.session.ID, NewVectorClock(), s.cfg.Now().UnixNano()/100)
	env.Payload = map[string]any{"errorCode": code, "errorDescription": message, "relatedMessageId": related}
	_ = w.WriteEnvelope(env)
}

func (s *Server) joinAnnouncement(p *Peer) Envelope {
	env := NewEnvelope(MsgJoin, p.ID, s.session.ID, s.session.SharedClock.Clone(), s.cfg.Now().UnixNano()/100)
	env.Payload = map[string]any{"peerName": p.Name, "role": p.Role, "color": p.Color}
	return env
}

func (s *Server) leaveAnnouncement(id PeerID) Envelope {
	env := NewEnvelope(MsgLeave, id, s.session.ID, s.session.SharedClock.Clone(), s.cfg.Now().UnixNano()/100)
	return env
}

func (s *Server) broadcastExcept(exclude PeerID, env Envelope) {
	s.mu.Lock()
	targets := make([]*conn, 0, len(s.conns))
	for id, c := range s.conns {
		if id != exclude {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()
	for _, c := range targets {
		_ = c.writer.WriteEnvelope(env)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.nc.Close()
	}
}

// maintenanceLoop evicts peers that have exceeded PeerTimeout since their
// last activity (V9): exactly one PeerLeft notification per eviction.
func (s *Server) maintenanceLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.evictIdlePeers()
		}
	}
}

func (s *Server) evictIdlePeers() {
	now := s.cfg.Now()
	s.mu.Lock()
	var stale []*conn
	for _, c := range s.conns {
		if c.peer.IdleSince(now) > s.cfg.PeerTimeout {
			stale = append(stale, c)
		}
	}
	s.mu.Unlock()

	for _, c := range stale {
		s.log.Info("collab: evicting idle peer", "peerId", c.id)
		c.nc.Close()
	}
}

// decodePayload copies a generic map[string]any payload into a typed
// struct via a best-effort field walk, avoiding a second JSON encode/
// decode round trip for the common case of simple scalar fields.
func decodePayload(payload map[string]any, out any) {
	switch v := out.(type) {
	case *JoinPayload:
		if s, ok := payload["peerName"].(string); ok {
			v.PeerName = s
		}
		if s, ok := payload["role"].(string); ok {
			v.Role = Role(s)
		}
		if s, ok := payload["color"].(string); ok {
			v.Color = s
		}
		if s, ok := payload["password"].(string); ok {
			v.Password = s
		}
	case *PingPayload:
		if n, ok := payload["sequence"].(float64); ok {
			v.Sequence = uint64(n)
		}
	}
}

// operationFromEnvelope decodes the OT-domain Operation an edit-message
// envelope carries, so the server can run it through Transform against
// concurrent history before broadcasting (spec.md §4.5, §7). It reports
// false for message types that carry no Operation (Chat, Cursor, ...).
func operationFromEnvelope(env Envelope) (Operation, bool) {
	op := Operation{
		ID:        NewOperationID(),
		Author:    env.PeerID,
		Clock:     env.VectorClock,
		Timestamp: env.Timestamp,
	}

	switch env.Type {
	case MsgNoteOp:
		op.Domain = DomainNote
		op.Type = payloadOpType(env.Payload)
		op.Target = payloadEntityID(env.Payload, "patternId")
		op.Item = payloadEntityID(env.Payload, "noteId")
		op.Properties = payloadProperties(env.Payload, "noteNumber", "startBeat", "duration", "velocity", "channel")
	case MsgTrackOp:
		op.Domain = DomainTrack
		op.Type = payloadOpType(env.Payload)
		op.Target = payloadEntityID(env.Payload, "trackId")
		op.Position = payloadInt(env.Payload, "position")
		op.Properties = payloadProperties(env.Payload, "name")
	case MsgClipOp:
		op.Domain = DomainClip
		op.Type = payloadOpType(env.Payload)
		op.Target = payloadEntityID(env.Payload, "clipId")
		op.Item = payloadEntityID(env.Payload, "trackId")
		op.Properties = payloadProperties(env.Payload, "startBeat", "lengthBeats")
	case MsgParameterOp:
		op.Domain = DomainParameter
		op.Type = OpUpdate
		op.Target = payloadEntityID(env.Payload, "targetId")
		op.Properties = payloadProperties(env.Payload, "parameterName", "value")
	default:
		return Operation{}, false
	}
	return op, true
}

// writeOperationBack copies a transformed Operation's outcome back into
// env's payload, so the broadcast wire message reflects what Transform
// resolved (a shifted Position, a property dropped to the loser, a type
// downgraded to NoOp) rather than what the submitting peer originally sent.
// ParameterChange payloads carry no "type" field, so their type is not
// written back; only their properties are.
func writeOperationBack(env *Envelope, op Operation) {
	if env.Type == MsgTrackOp {
		env.Payload["position"] = op.Position
	}
	if env.Type != MsgParameterOp {
		env.Payload["type"] = op.Type
	}
	for k, v := range op.Properties {
		env.Payload[k] = v
	}
}

func payloadOpType(payload map[string]any) OperationType {
	s, _ := payload["type"].(string)
	return OperationType(s)
}

func payloadEntityID(payload map[string]any, key string) EntityID {
	s, _ := payload[key].(string)
	return EntityID(s)
}

func payloadInt(payload map[string]any, key string) int {
	f, _ := payload[key].(float64)
	return int(f)
}

func payloadProperties(payload map[string]any, keys ...string) map[string]any {
	props := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			props[k] = v
		}
	}
	return props
}
