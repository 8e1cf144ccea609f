// Command midicollab hosts or joins a real-time MIDI expression and
// collaborative editing session.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/noiseloop/midicollab/internal/core"
	"github.com/noiseloop/midicollab/internal/synth"
	"github.com/noiseloop/midicollab/pkg/collab"
	"github.com/noiseloop/midicollab/pkg/config"
	"github.com/noiseloop/midicollab/pkg/fileutil"
	"github.com/noiseloop/midicollab/pkg/logger"
	"github.com/noiseloop/midicollab/pkg/voice"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.ParseArgs(args)
	if err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}
	if cfg.ShowHelp {
		config.PrintHelp()
		return nil
	}

	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.Info("midicollab starting", "voices", cfg.Voices, "listen", cfg.ListenAddr, "connect", cfg.ConnectAddr)

	dsp, err := loadDSP(cfg.SoundFont, log)
	if err != nil {
		return fmt.Errorf("failed to load DSP sink: %w", err)
	}

	coreCfg := core.Config{
		VoiceCount:     cfg.Voices,
		AmpEnvelope:    voice.DefaultADSRParams(),
		FilterEnvelope: voice.DefaultADSRParams(),
		GlideSeconds:   0,
		PeerID:         collab.PeerID(uuid.NewString()),
	}

	switch {
	case cfg.ListenAddr != "":
		serverCfg := collab.DefaultServerConfig(cfg.ListenAddr, cfg.SessionName)
		serverCfg.Password = cfg.Password
		serverCfg.MaxPeers = cfg.MaxPeers
		serverCfg.PingInterval = cfg.PingInterval
		serverCfg.PeerTimeout = cfg.PeerTimeout
		coreCfg.Server = &serverCfg
	case cfg.ConnectAddr != "":
		clientCfg := collab.DefaultClientConfig(cfg.ConnectAddr, cfg.PeerName)
		clientCfg.Password = cfg.Password
		clientCfg.PingInterval = cfg.PingInterval
		coreCfg.Client = &clientCfg
	default:
		log.Info("midicollab running standalone, no collaboration session configured")
	}

	c := core.New(coreCfg, dsp, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := c.Run(ctx); err != nil {
		return fmt.Errorf("midicollab: %w", err)
	}
	log.Info("midicollab terminated normally")
	return nil
}

// loadDSP builds the go-meltysynth-backed voice sink from soundFontPath, or
// returns nil if no SoundFont was configured (a headless collaboration
// host needs no local audio).
func loadDSP(soundFontPath string, log *slog.Logger) (voice.Sink, error) {
	if soundFontPath == "" {
		log.Info("no --soundfont given, running without local audio monitoring")
		return nil, nil
	}

	resolved, err := fileutil.ResolveExistingPath(soundFontPath)
	if err != nil {
		return nil, fmt.Errorf("locate soundfont: %w", err)
	}
	soundFontPath = resolved

	f, err := os.Open(soundFontPath)
	if err != nil {
		return nil, fmt.Errorf("open soundfont: %w", err)
	}
	defer f.Close()

	sf, err := meltysynth.NewSoundFont(f)
	if err != nil {
		return nil, fmt.Errorf("parse soundfont: %w", err)
	}

	sink, err := synth.NewMeltySink(sf)
	if err != nil {
		return nil, fmt.Errorf("create synthesizer: %w", err)
	}

	player, err := synth.NewEbitenPlayer(sink)
	if err != nil {
		log.Warn("audio playback unavailable, rendering silently", "error", err)
		return sink, nil
	}
	_ = player // playback runs in the background for the process lifetime

	return sink, nil
}
