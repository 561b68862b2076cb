// Package shutter plays the camera's shutter sound.
package shutter

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Player owns the audio context. Sounds are decoded once and cached.
type Player struct {
	dir string
	ctx *oto.Context
	log *slog.Logger

	mu      sync.Mutex
	cache   map[string][]byte
	playing bool
}

// New opens the audio device. dir holds the sound files.
func New(dir string) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	return &Player{
		dir:   dir,
		ctx:   ctx,
		log:   slog.Default().With("component", "shutter"),
		cache: make(map[string][]byte),
	}, nil
}

// Load decodes name from the sound directory unless it is cached.
func (p *Player) Load(name string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pcm, ok := p.cache[name]; ok {
		return pcm, nil
	}
	data, err := os.ReadFile(filepath.Join(p.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read sound file: %w", err)
	}
	pcm, err := Decode(name, data)
	if err != nil {
		return nil, err
	}
	p.cache[name] = pcm
	return pcm, nil
}

// Play starts name in the background. A sound still playing is not
// interrupted; the new one is dropped.
func (p *Player) Play(name string) error {
	pcm, err := p.Load(name)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		p.log.Debug("Sound still playing, skipping", "filename", name)
		return nil
	}
	p.playing = true
	p.mu.Unlock()

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()
	go func() {
		for player.IsPlaying() {
			time.Sleep(10 * time.Millisecond)
		}
		if err := player.Close(); err != nil {
			p.log.Warn("Failed to close player", "error", err)
		}
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()
	return nil
}

// Func returns a callback that plays name and logs failures.
func (p *Player) Func(name string) func() {
	return func() {
		if err := p.Play(name); err != nil {
			p.log.Warn("Failed to play shutter sound", "filename", name, "error", err)
		}
	}
}
