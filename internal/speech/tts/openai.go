package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/oshokin/smart-cane/internal/logger"
)

// ErrEmptyAudio is returned when the endpoint answers with no audio.
var ErrEmptyAudio = errors.New("speech endpoint returned no audio")

// OpenAIOptions configures OpenAI speech synthesis.
type OpenAIOptions struct {
	APIKey string
	Model  string
	Voice  string
	// Speed is the playback speed requested from the endpoint, 0.25 to 4.0.
	// Zero keeps the endpoint default.
	Speed float64
}

// OpenAI synthesizes MP3 speech through the OpenAI speech endpoint.
type OpenAI struct {
	client  openai.Client
	options OpenAIOptions
}

// NewOpenAI creates a synthesizer. Extra request options are mostly for tests.
func NewOpenAI(options OpenAIOptions, requestOptions ...option.RequestOption) *OpenAI {
	return &OpenAI{
		client:  openai.NewClient(append([]option.RequestOption{option.WithAPIKey(options.APIKey)}, requestOptions...)...),
		options: options,
	}
}

// Synthesize returns MP3 audio for text.
func (o *OpenAI) Synthesize(ctx context.Context, text string) ([]byte, error) {
	//nolint:exhaustruct // Instructions and stream format keep the endpoint defaults.
	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          o.options.Model,
		Voice:          openai.AudioSpeechNewParamsVoice(o.options.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}

	if o.options.Speed > 0 {
		params.Speed = openai.Float(o.options.Speed)
	}

	started := time.Now()

	resp, err := o.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}

	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	logger.DebugKV(ctx, "Speech synthesized",
		"chars", len(text),
		"bytes", len(audio),
		"latency", time.Since(started),
	)

	return audio, nil
}
