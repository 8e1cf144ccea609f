package collab

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ClientConfig configures a Client's dial target and reconnect policy.
type ClientConfig struct {
	ServerAddr        string
	PeerName          string
	Role              Role
	Color             string
	Password          string
	DialTimeout       time.Duration
	PingInterval      time.Duration
	ReconnectDelay    time.Duration
	MaxReconnects     int
	AutoReconnect     bool
	Now               func() time.Time
}

// DefaultClientConfig returns the protocol constants named in spec.md
// §6.4: ping interval 5s, reconnect delay 2s, max reconnect attempts 5.
func DefaultClientConfig(serverAddr, peerName string) ClientConfig {
	return ClientConfig{
		ServerAddr:     serverAddr,
		PeerName:       peerName,
		Role:           RoleEditor,
		DialTimeout:    5 * time.Second,
		PingInterval:   5 * time.Second,
		ReconnectDelay: 2 * time.Second,
		MaxReconnects:  5,
		AutoReconnect:  true,
		Now:            time.Now,
	}
}

// Client is one peer's connection to a collaboration server. It owns the
// connect → send/receive/ping loops → reconnect state machine described
// in spec.md §4.3.
type Client struct {
	cfg  ClientConfig
	log  *slog.Logger
	self *Peer

	mu         sync.Mutex
	state      ConnectionState
	sessionID  SessionID
	clock      VectorClock
	sequence   uint64
	fatal      bool

	outgoing chan Envelope
	incoming chan Envelope
	acks     map[MessageID]chan AcknowledgePayload

	attempts int
}

// NewClient constructs a disconnected client for peerID.
func NewClient(cfg ClientConfig, peerID PeerID, log *slog.Logger) *Client {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:      cfg,
		log:      log,
		self:     NewPeer(peerID, cfg.PeerName, cfg.Role, cfg.Color),
		state:    StateDisconnected,
		clock:    NewVectorClock(),
		outgoing: make(chan Envelope, 256),
		incoming: make(chan Envelope, 256),
		acks:     make(map[MessageID]chan AcknowledgePayload),
	}
}

// State returns the client's current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.self.SetState(s)
}

// Incoming returns the channel of application messages received from the
// server (Join/Leave/operations/chat/etc. forwarded verbatim).
func (c *Client) Incoming() <-chan Envelope { return c.incoming }

// Send enqueues env for the send loop; it does not block on the network.
func (c *Client) Send(env Envelope) {
	select {
	case c.outgoing <- env:
	default:
		c.log.Warn("collab: outgoing queue full, dropping message", "type", env.Type)
	}
}

// Run drives the connect/reconnect state machine until ctx is cancelled
// or a fatal error disables further attempts. It implements scenario 7:
// against an unreachable server with MaxReconnects=5, exactly 6 dial
// attempts occur (the initial attempt plus 5 retries) before the client
// settles into StateFailed.
func (c *Client) Run(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(c.cfg.ReconnectDelay), 1)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.mu.Lock()
		c.attempts++
		attempts := c.attempts
		c.mu.Unlock()

		err := c.connectOnce(ctx)
		if err == nil {
			return nil // clean shutdown requested mid-session
		}

		c.mu.Lock()
		fatal := c.fatal
		c.mu.Unlock()

		if fatal || !c.cfg.AutoReconnect {
			c.setState(StateFailed)
			return err
		}
		if attempts > c.cfg.MaxReconnects {
			c.setState(StateFailed)
			return fmt.Errorf("collab: exceeded %d reconnect attempts: %w", c.cfg.MaxReconnects, err)
		}

		c.setState(StateReconnecting)
		if err := limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
	}
}

// connectOnce performs one dial-and-serve cycle. It returns nil only on a
// clean, caller-requested shutdown; any connection failure is returned as
// an error for Run's retry policy to evaluate.
func (c *Client) connectOnce(ctx context.Context) error {
	c.setState(StateConnecting)

	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", c.cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("collab: dial %s: %w", c.cfg.ServerAddr, err)
	}
	defer nc.Close()
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	reader := NewFrameReader(nc)
	writer := NewFrameWriter(nc)

	if err := c.join(writer); err != nil {
		return err
	}

	env, err := reader.ReadEnvelope()
	if err != nil {
		return err
	}
	if env.Type == MsgError {
		var payload ErrorPayload
		if code, ok := env.Payload["errorCode"].(string); ok {
			payload.ErrorCode = ErrorCode(code)
		}
		c.mu.Lock()
		c.fatal = true
		c.mu.Unlock()
		return NewAuthError(payload.ErrorCode, "server rejected join")
	}

	c.mu.Lock()
	c.sessionID = env.SessionID
	c.attempts = 0
	c.mu.Unlock()
	c.setState(StateConnected)
	c.self.Touch(c.cfg.Now())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.sendLoop(gctx, writer) })
	g.Go(func() error { return c.receiveLoop(gctx, reader) })
	g.Go(func() error { return c.pingLoop(gctx, writer) })
	return g.Wait()
}

func (c *Client) join(writer *FrameWriter) error {
	c.mu.Lock()
	clock := c.clock.Increment(c.self.ID).Clone()
	c.mu.Unlock()

	env := NewEnvelope(MsgJoin, c.self.ID, c.sessionID, clock, c.cfg.Now().UnixNano()/100)
	env.Payload = map[string]any{
		"peerName": c.cfg.PeerName,
		"role":     c.cfg.Role,
		"color":    c.cfg.Color,
		"password": c.cfg.Password,
	}
	return writer.WriteEnvelope(env)
}

func (c *Client) sendLoop(ctx context.Context, writer *FrameWriter) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-c.outgoing:
			if err := writer.WriteEnvelope(env); err != nil {
				return err
			}
		}
	}
}

func (c *Client) receiveLoop(ctx context.Context, reader *FrameReader) error {
	for {
		env, err := reader.ReadEnvelope()
		if err != nil {
			return err
		}
		c.self.Touch(c.cfg.Now())

		c.mu.Lock()
		c.clock = c.clock.Merge(env.VectorClock)
		c.mu.Unlock()

		if env.Type == MsgPong {
			c.handlePong(env)
			continue
		}

		select {
		case c.incoming <- env:
		default:
			c.log.Warn("collab: incoming queue full, dropping message", "type", env.Type)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, writer *FrameWriter) error {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.mu.Lock()
			c.sequence++
			seq := c.sequence
			clock := c.clock.Clone()
			c.mu.Unlock()

			env := NewEnvelope(MsgPing, c.self.ID, c.sessionID, clock, c.cfg.Now().UnixNano()/100)
			env.Payload = map[string]any{"sequence": seq}
			if err := writer.WriteEnvelope(env); err != nil {
				return err
			}
		}
	}
}

func (c *Client) handlePong(env Envelope) {
	sentAt, ok := env.Payload["serverTimestamp"].(float64)
	if !ok {
		return
	}
	nowTicks := float64(c.cfg.Now().UnixNano() / 100)
	roundTripMs := (nowTicks - sentAt) / 1e4
	if roundTripMs < 0 {
		return
	}
	c.self.RecordLatency(roundTripMs / 2)
}

// Self exposes the client's own peer record, including its live
// AverageLatency().
func (c *Client) Self() *Peer { return c.self }

// Attempts returns the number of connection attempts made so far,
// including the initial attempt.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}
