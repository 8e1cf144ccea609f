package collab

import (
	"context"
	"net"
	"testing"
	"time"
)

func startTestServer(t *testing.T, cfg ServerConfig) (*Server, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(cfg, nil)
	go func() {
		_ = srv.Run(ctx)
	}()
	srv.Addr() // blocks until bound
	t.Cleanup(cancel)
	return srv, cancel
}

// scenario 8: a zero length prefix is a framing error; the server closes
// that connection and leaves other peers unaffected.
func TestServerClosesConnectionOnFramingError(t *testing.T) {
	cfg := DefaultServerConfig("127.0.0.1:0", "jam")
	srv, _ := startTestServer(t, cfg)

	goodClient := DefaultClientConfig(srv.Addr().String(), "good")
	goodClient.MaxReconnects = 0
	c := NewClient(goodClient, NewPeerID(), nil)
	cctx, ccancel := context.WithCancel(context.Background())
	defer ccancel()
	go func() { _ = c.Run(cctx) }()

	waitForState(t, c, StateConnected, 2*time.Second)

	// A raw connection that sends a bad frame and expects to be dropped.
	raw, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := raw.Write([]byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("write bad frame: %v", err)
	}
	raw.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = raw.Read(buf)
	if err == nil {
		t.Error("expected the server to close the connection after a zero-length frame")
	}
	raw.Close()

	// The well-behaved client should remain connected.
	time.Sleep(50 * time.Millisecond)
	if c.State() != StateConnected {
		t.Errorf("unrelated client should be unaffected, got state %v", c.State())
	}
}

func TestServerRejectsWrongPassword(t *testing.T) {
	cfg := DefaultServerConfig("127.0.0.1:0", "jam")
	cfg.Password = "secret"
	srv, _ := startTestServer(t, cfg)

	clientCfg := DefaultClientConfig(srv.Addr().String(), "intruder")
	clientCfg.Password = "wrong"
	clientCfg.MaxReconnects = 0
	clientCfg.AutoReconnect = false
	c := NewClient(clientCfg, NewPeerID(), nil)

	err := c.Run(context.Background())
	if err == nil {
		t.Fatal("expected join with wrong password to fail")
	}
	if c.State() != StateFailed {
		t.Errorf("expected StateFailed after auth rejection, got %v", c.State())
	}
}

func TestServerAcceptsJoinAndSendsSync(t *testing.T) {
	cfg := DefaultServerConfig("127.0.0.1:0", "jam")
	srv, _ := startTestServer(t, cfg)

	clientCfg := DefaultClientConfig(srv.Addr().String(), "alice")
	clientCfg.MaxReconnects = 0
	c := NewClient(clientCfg, NewPeerID(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	waitForState(t, c, StateConnected, 2*time.Second)
	if srv.Session().PeerCount() != 1 {
		t.Errorf("expected 1 peer in session, got %d", srv.Session().PeerCount())
	}
}

// spec.md §4.4: a Viewer's edit operation is rejected at the session
// boundary and never reaches other peers.
func TestServerRejectsEditFromViewer(t *testing.T) {
	cfg := DefaultServerConfig("127.0.0.1:0", "jam")
	srv, _ := startTestServer(t, cfg)

	hostCfg := DefaultClientConfig(srv.Addr().String(), "host")
	hostCfg.Role = RoleHost
	hostCfg.MaxReconnects = 0
	host := NewClient(hostCfg, NewPeerID(), nil)
	hctx, hcancel := context.WithCancel(context.Background())
	defer hcancel()
	go func() { _ = host.Run(hctx) }()
	waitForState(t, host, StateConnected, 2*time.Second)

	viewerCfg := DefaultClientConfig(srv.Addr().String(), "viewer")
	viewerCfg.Role = RoleViewer
	viewerCfg.MaxReconnects = 0
	viewer := NewClient(viewerCfg, NewPeerID(), nil)
	vctx, vcancel := context.WithCancel(context.Background())
	defer vcancel()
	go func() { _ = viewer.Run(vctx) }()
	waitForState(t, viewer, StateConnected, 2*time.Second)

	viewer.Send(Envelope{
		Type:    MsgTrackOp,
		Version: ProtocolVersion,
		Payload: map[string]any{"type": string(OpUpdate), "trackId": "track-1", "name": "renamed"},
	})

	errDeadline := time.After(2 * time.Second)
waitForError:
	for {
		select {
		case env := <-viewer.Incoming():
			if env.Type != MsgError {
				continue
			}
			if code, _ := env.Payload["errorCode"].(string); code != string(ErrNotAuthorized) {
				t.Errorf("expected NOT_AUTHORIZED, got %v", env.Payload["errorCode"])
			}
			break waitForError
		case <-errDeadline:
			t.Fatal("expected the server to reply with an error")
		}
	}

	hostDeadline := time.After(200 * time.Millisecond)
	for {
		select {
		case env := <-host.Incoming():
			if env.Type == MsgTrackOp {
				t.Fatal("host should never see the viewer's rejected operation")
			}
		case <-hostDeadline:
			return
		}
	}
}

// spec.md §7 / scenario 6: a detected OT conflict is surfaced on
// Server.Conflicts().
func TestServerSurfacesConflictOnConcurrentParameterChange(t *testing.T) {
	cfg := DefaultServerConfig("127.0.0.1:0", "jam")
	srv, _ := startTestServer(t, cfg)

	aliceCfg := DefaultClientConfig(srv.Addr().String(), "alice")
	aliceCfg.MaxReconnects = 0
	alice := NewClient(aliceCfg, NewPeerID(), nil)
	actx, acancel := context.WithCancel(context.Background())
	defer acancel()
	go func() { _ = alice.Run(actx) }()
	waitForState(t, alice, StateConnected, 2*time.Second)

	bobCfg := DefaultClientConfig(srv.Addr().String(), "bob")
	bobCfg.MaxReconnects = 0
	bob := NewClient(bobCfg, NewPeerID(), nil)
	bctx, bcancel := context.WithCancel(context.Background())
	defer bcancel()
	go func() { _ = bob.Run(bctx) }()
	waitForState(t, bob, StateConnected, 2*time.Second)

	alice.Send(Envelope{
		Type:        MsgParameterOp,
		Version:     ProtocolVersion,
		VectorClock: VectorClock{alice.Self().ID: 1},
		Timestamp:   100,
		Payload:     map[string]any{"targetId": "synth-1", "parameterName": "cutoff", "value": 0.5},
	})
	time.Sleep(50 * time.Millisecond) // let the server record alice's op before bob's arrives
	bob.Send(Envelope{
		Type:        MsgParameterOp,
		Version:     ProtocolVersion,
		VectorClock: VectorClock{bob.Self().ID: 1},
		Timestamp:   200,
		Payload:     map[string]any{"targetId": "synth-1", "parameterName": "cutoff", "value": 0.9},
	})

	select {
	case conflict := <-srv.Conflicts():
		if conflict.Winner.Timestamp != 200 {
			t.Errorf("expected the later timestamp to win, got %d", conflict.Winner.Timestamp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a ConflictDetected event on the concurrent parameter change")
	}
}

func waitForState(t *testing.T, c *Client, want ConnectionState, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client never reached state %v, last seen %v", want, c.State())
}
