// Package config parses midicollab's command-line flags and environment
// variables into a Config, the way pkg/cli does for son-et.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting cmd/midicollab needs to start a session host
// or client.
type Config struct {
	ListenAddr   string // address to host a session on; empty means do not host
	ConnectAddr  string // address of a session to join; empty means do not join (both empty: standalone)
	SessionName  string
	Password     string
	MaxPeers     int
	PeerName     string
	Voices       int
	SoundFont    string
	LogLevel     string
	PingInterval time.Duration
	PeerTimeout  time.Duration
	ShowHelp     bool
}

// ParseArgs parses args (normally os.Args[1:]) into a Config, applying
// environment variable fallbacks and validating the result.
func ParseArgs(args []string) (*Config, error) {
	fs := flag.NewFlagSet("midicollab", flag.ContinueOnError)

	cfg := &Config{}
	fs.StringVar(&cfg.ListenAddr, "listen", "", "host a session at this address (e.g. :7770)")
	fs.StringVar(&cfg.ConnectAddr, "connect", "", "join the session at this address instead of hosting")
	fs.StringVar(&cfg.SessionName, "session-name", "session", "session display name")
	fs.StringVar(&cfg.Password, "password", "", "session password (empty means open)")
	fs.IntVar(&cfg.MaxPeers, "max-peers", 8, "maximum peers a hosted session accepts")
	fs.StringVar(&cfg.PeerName, "peer-name", "", "this peer's display name")
	fs.IntVar(&cfg.Voices, "voices", 16, "voice pool size")
	fs.StringVar(&cfg.SoundFont, "soundfont", "", "path to a .sf2 SoundFont for local monitoring")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	var pingMs, timeoutMs int
	fs.IntVar(&pingMs, "ping-interval", 5000, "ping interval in milliseconds")
	fs.IntVar(&timeoutMs, "peer-timeout", 30000, "idle peer eviction timeout in milliseconds")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "show this help")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ListenAddr == "" {
		if v := os.Getenv("MIDICOLLAB_LISTEN"); v != "" {
			cfg.ListenAddr = v
		}
	}
	if cfg.ConnectAddr == "" {
		if v := os.Getenv("MIDICOLLAB_CONNECT"); v != "" {
			cfg.ConnectAddr = v
		}
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("MIDICOLLAB_PASSWORD")
	}
	if cfg.LogLevel == "info" {
		if v := os.Getenv("LOG_LEVEL"); v != "" {
			cfg.LogLevel = strings.ToLower(v)
		}
	}
	if v := os.Getenv("MIDICOLLAB_PING_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pingMs = n
		}
	}

	cfg.PingInterval = time.Duration(pingMs) * time.Millisecond
	cfg.PeerTimeout = time.Duration(timeoutMs) * time.Millisecond

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ListenAddr != "" && c.ConnectAddr != "" {
		return fmt.Errorf("config: --listen and --connect are mutually exclusive")
	}
	if c.Voices <= 0 {
		return fmt.Errorf("config: --voices must be positive, got %d", c.Voices)
	}
	if c.MaxPeers <= 0 {
		return fmt.Errorf("config: --max-peers must be positive, got %d", c.MaxPeers)
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("config: invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("config: --ping-interval must be positive")
	}
	if c.PeerTimeout <= 0 {
		return fmt.Errorf("config: --peer-timeout must be positive")
	}
	return nil
}

// PrintHelp writes usage information to stdout.
func PrintHelp() {
	fmt.Fprint(os.Stdout, `midicollab - real-time MIDI expression and collaborative editing

Usage:
  midicollab --listen :7770 --session-name jam [options]
  midicollab --connect host:7770 --peer-name alice [options]

Options:
  --listen <addr>          host a session at this address
  --connect <addr>         join the session at this address
  --session-name <name>    session display name (hosting only)
  --password <pw>          session password
  --max-peers <n>          maximum peers a hosted session accepts (default 8)
  --peer-name <name>       this peer's display name
  --voices <n>             voice pool size (default 16)
  --soundfont <path>       .sf2 SoundFont for local monitoring
  --log-level <level>      debug, info, warn, error (default info)
  --ping-interval <ms>     ping interval in milliseconds (default 5000)
  --peer-timeout <ms>      idle peer eviction timeout in milliseconds (default 30000)
  -h, --help               show this help

Environment Variables:
  MIDICOLLAB_LISTEN, MIDICOLLAB_CONNECT, MIDICOLLAB_PASSWORD,
  MIDICOLLAB_PING_INTERVAL_MS, LOG_LEVEL
`)
}
