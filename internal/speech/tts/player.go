package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

const resampleQuality = 4

// Speaker plays MP3 audio on the default output device.
// The device is opened on first use at the sample rate of the first clip;
// later clips with another rate are resampled.
type Speaker struct {
	once       sync.Once
	initErr    error
	sampleRate beep.SampleRate
	// opened is set once the device was initialized successfully.
	opened atomic.Bool
}

// NewSpeaker creates a speaker. The audio device is not touched until Play.
func NewSpeaker() *Speaker {
	return &Speaker{}
}

// Play decodes audio and blocks until it finished playing or ctx is done.
func (s *Speaker) Play(ctx context.Context, audio []byte) error {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(audio)))
	if err != nil {
		return fmt.Errorf("failed to decode mp3: %w", err)
	}
	defer streamer.Close()

	s.once.Do(func() {
		s.sampleRate = format.SampleRate
		s.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
		s.opened.Store(s.initErr == nil)
	})

	if s.initErr != nil {
		return fmt.Errorf("failed to open audio device: %w", s.initErr)
	}

	var source beep.Streamer = streamer
	if format.SampleRate != s.sampleRate {
		source = beep.Resample(resampleQuality, format.SampleRate, s.sampleRate, streamer)
	}

	done := make(chan struct{})

	speaker.Play(beep.Seq(source, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Close stops playback and releases the audio device if it was opened.
func (s *Speaker) Close() error {
	if s.opened.CompareAndSwap(true, false) {
		speaker.Clear()
		speaker.Close()
	}

	return nil
}
