// Package core wires MIDI Ingest & Routing (pkg/midi), the Voice
// Allocator & Expression Binder (pkg/voice), and the Collaboration Core
// (pkg/collab) into one running process, the way pkg/app.Application wires
// the interpreter's script, title, and window layers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noiseloop/midicollab/pkg/collab"
	"github.com/noiseloop/midicollab/pkg/midi"
	"github.com/noiseloop/midicollab/pkg/voice"
)

// Config assembles everything a single midicollab process needs: how many
// voices to allocate, the ADSR/glide shape they play with, and, if this
// process participates in a collaboration session, which role it takes.
type Config struct {
	VoiceCount     int
	AmpEnvelope    voice.ADSRParams
	FilterEnvelope voice.ADSRParams
	GlideSeconds   float64

	// Server, if non-nil, makes this process host a session. Client, if
	// non-nil, makes it join one. At most one should be set; a process
	// with neither runs MIR/VAEB standalone with no collaboration.
	Server *collab.ServerConfig
	Client *collab.ClientConfig
	PeerID collab.PeerID

	Now func() time.Time
}

// Core is the running composition: a MIDI router feeding a voice pool
// through a DSP sink, optionally alongside a collaboration server or
// client.
type Core struct {
	cfg Config
	log *slog.Logger

	pool   *voice.Pool
	router *midi.Router
	sink   *midi.EventSink

	dsp voice.Sink

	server *collab.Server
	client *collab.Client
}

// New constructs a Core. dsp is the audio backend voice events are
// forwarded to (e.g. an *internal/synth.MeltySink); it may be nil for a
// headless collaboration host that never renders sound locally.
func New(cfg Config, dsp voice.Sink, log *slog.Logger) *Core {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.VoiceCount <= 0 {
		cfg.VoiceCount = 16
	}

	pool := voice.NewPool(cfg.VoiceCount)
	pool.SetEnvelopes(cfg.AmpEnvelope, cfg.FilterEnvelope)
	pool.SetGlideSeconds(cfg.GlideSeconds)

	eventSink := midi.NewEventSink(256)
	router := midi.NewRouter(eventSink)

	c := &Core{
		cfg:    cfg,
		log:    log,
		pool:   pool,
		router: router,
		sink:   eventSink,
		dsp:    dsp,
	}

	if cfg.Server != nil {
		c.server = collab.NewServer(*cfg.Server, log)
	}
	if cfg.Client != nil {
		c.client = collab.NewClient(*cfg.Client, cfg.PeerID, log)
	}
	return c
}

// Router exposes the MIDI front door callers feed raw channel-voice bytes,
// UMP words, or per-note management messages into.
func (c *Core) Router() *midi.Router { return c.router }

// Pool exposes the voice allocator directly, for callers (tests, a GUI
// meter) that want to inspect allocation state.
func (c *Core) Pool() *voice.Pool { return c.pool }

// Server exposes the collaboration server, if this Core hosts one.
func (c *Core) Server() *collab.Server { return c.server }

// Client exposes the collaboration client, if this Core joined a session.
func (c *Core) Client() *collab.Client { return c.client }

// Run drives the event loop until ctx is cancelled: MIR events dispatch
// into the voice pool and DSP sink, and any configured collaboration
// server or client runs alongside in the same errgroup, so a fatal error
// in one stops the whole process.
func (c *Core) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.runEventLoop(gctx)
	})

	if c.server != nil {
		g.Go(func() error {
			if err := c.server.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("core: collaboration server: %w", err)
			}
			return nil
		})
	}
	if c.client != nil {
		g.Go(func() error {
			if err := c.client.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("core: collaboration client: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			return c.drainIncoming(gctx)
		})
	}

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	return nil
}

// runEventLoop consumes classified MIR events and drives voice allocation
// and the DSP sink. It never blocks on the sink: a full EventSink already
// dropped the event upstream, and a slow sink only delays this one
// dispatch, not MIDI ingestion.
func (c *Core) runEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.sink.C():
			if !ok {
				return nil
			}
			c.dispatch(ev)
		}
	}
}

func (c *Core) dispatch(ev midi.Event) {
	switch ev.Type {
	case midi.EventNoteTriggered:
		v, stole := c.pool.NoteOn(ev.Record)
		if stole {
			c.log.Debug("core: voice stolen", "voice", v.Index(), "note", ev.Record.Note)
		}
		if c.dsp != nil {
			c.dsp.NoteOn(v.Index(), ev.Record.Frequency(), ev.Record.StrikeVelocity)
		}
	case midi.EventNoteReleased:
		v, ok := c.pool.NoteOff(ev.Record.ID)
		if ok && c.dsp != nil {
			c.dsp.NoteOff(v.Index(), ev.Record.LiftVelocity)
		}
	case midi.EventExpressionChanged:
		if c.dsp == nil {
			return
		}
		if v, ok := c.pool.VoiceFor(ev.Record.ID); ok {
			c.dsp.UpdateExpression(v.Index(), ev.Record.Slide, ev.Record.Pressure, ev.Record.PitchBend)
		}
	}
}

// drainIncoming forwards every application message a joined session
// delivers to the logger. A full editor UI would route these to its
// pattern/track/transport model instead; this composition root only
// guarantees the wire-level plumbing works end to end.
func (c *Core) drainIncoming(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-c.client.Incoming():
			if !ok {
				return nil
			}
			c.log.Debug("core: collaboration message", "type", env.Type, "peer", env.PeerID)
		}
	}
}

// AllNotesOff silences every voice locally and on the DSP sink, for panic
// handling and clean shutdown.
func (c *Core) AllNotesOff() {
	c.pool.AllNotesOff()
	if c.dsp != nil {
		c.dsp.AllNotesOff()
	}
}
