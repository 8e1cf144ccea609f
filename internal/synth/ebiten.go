package synth

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

var (
	sharedContext      *audio.Context
	sharedContextMutex sync.Mutex
)

// audioContext returns the process-wide Ebitengine audio context,
// creating it on first use. Ebitengine permits only one audio.Context per
// process.
func audioContext() *audio.Context {
	sharedContextMutex.Lock()
	defer sharedContextMutex.Unlock()
	if sharedContext == nil {
		sharedContext = audio.NewContext(SampleRate)
	}
	return sharedContext
}

// EbitenPlayer streams a MeltySink's rendered audio through Ebitengine's
// audio backend. It is entirely optional: headless deployments (the
// default for a collaboration server) never construct one.
type EbitenPlayer struct {
	player *audio.Player
}

// NewEbitenPlayer wraps sink in an Ebitengine player and starts playback
// immediately.
func NewEbitenPlayer(sink *MeltySink) (*EbitenPlayer, error) {
	stream := NewStream(sink)
	player, err := audioContext().NewPlayer(stream)
	if err != nil {
		return nil, fmt.Errorf("synth: create ebiten player: %w", err)
	}
	player.Play()
	return &EbitenPlayer{player: player}, nil
}

// Close stops playback.
func (p *EbitenPlayer) Close() error {
	p.player.Pause()
	return p.player.Close()
}
