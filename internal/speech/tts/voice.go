package tts

import (
	"context"
	"fmt"
)

// Synthesizer turns text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player plays encoded audio and blocks until playback ends.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Voice renders text by synthesizing it and playing the result.
type Voice struct {
	synthesizer Synthesizer
	player      Player
}

// NewVoice creates a renderer from a synthesizer and a player.
func NewVoice(synthesizer Synthesizer, player Player) *Voice {
	return &Voice{
		synthesizer: synthesizer,
		player:      player,
	}
}

// Render synthesizes text and plays it.
func (v *Voice) Render(ctx context.Context, text string) error {
	audio, err := v.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	if err = v.player.Play(ctx, audio); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}

	return nil
}
