package notify

import (
	"errors"
	"fmt"
	"time"

	"restaurante/internal/models"
)

// Sound is one link of the audio fallback chain.
type Sound interface {
	Name() string
	Play() error
}

type chime struct {
	gen ToneGenerator
}

// Chime is a two-tone sine chime played on a tone generator.
func Chime(gen ToneGenerator) Sound {
	return chime{gen: gen}
}

func (chime) Name() string { return "chime" }

func (c chime) Play() error {
	if c.gen == nil {
		return models.ErrAudioUnavailable
	}
	if err := c.gen.Tone(WaveSine, 880, 150*time.Millisecond, 0.3); err != nil {
		return err
	}
	return c.gen.Tone(WaveSine, 1320, 200*time.Millisecond, 0.3)
}

type clip struct {
	player ClipPlayer
	wav    []byte
}

// Clip plays a pre-encoded WAV clip.
func Clip(player ClipPlayer, wav []byte) Sound {
	return clip{player: player, wav: wav}
}

func (clip) Name() string { return "clip" }

func (c clip) Play() error {
	if c.player == nil || len(c.wav) == 0 {
		return models.ErrAudioUnavailable
	}
	return c.player.PlayClip(c.wav)
}

type beep struct {
	gen ToneGenerator
}

// Beep is a single square-wave tone, the last resort of the chain.
func Beep(gen ToneGenerator) Sound {
	return beep{gen: gen}
}

func (beep) Name() string { return "beep" }

func (b beep) Play() error {
	if b.gen == nil {
		return models.ErrAudioUnavailable
	}
	return b.gen.Tone(WaveSquare, 660, 250*time.Millisecond, 0.2)
}

// AlertChain is the default chain: chime, then the encoded clip, then a beep.
func AlertChain(gen ToneGenerator, player ClipPlayer) []Sound {
	return []Sound{
		Chime(gen),
		Clip(player, ChimeWAV()),
		Beep(gen),
	}
}

// PlayChain plays the first sound of chain that succeeds and returns its
// name. A sound that panics counts as a failure.
func PlayChain(chain []Sound) (string, error) {
	if len(chain) == 0 {
		return "", models.ErrAudioUnavailable
	}
	var errs []error
	for _, s := range chain {
		err := safePlay(s)
		if err == nil {
			return s.Name(), nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return "", fmt.Errorf("%w: %w", models.ErrAudioUnavailable, errors.Join(errs...))
}

func safePlay(s Sound) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Play()
}
