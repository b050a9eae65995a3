package navigation

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/smart-cane/internal/domain/guidance"
	"github.com/oshokin/smart-cane/internal/logger"
	"github.com/oshokin/smart-cane/internal/service/common"
)

// Camera captures still frames.
type Camera interface {
	CaptureFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// CameraSource opens the camera once per loop lifetime.
type CameraSource interface {
	Open(ctx context.Context) (Camera, error)
}

// CameraSourceFunc adapts a function to CameraSource.
type CameraSourceFunc func(ctx context.Context) (Camera, error)

// Open calls f.
func (f CameraSourceFunc) Open(ctx context.Context) (Camera, error) {
	return f(ctx)
}

// Advisor turns a frame into short guidance text.
type Advisor interface {
	Describe(ctx context.Context, image []byte) (string, error)
}

// Speaker voices guidance and waits for it.
type Speaker interface {
	Speak(ctx context.Context, text string, priority guidance.Priority) guidance.Outcome
}

// Options controls the loop cadence.
type Options struct {
	// CaptureInterval is the pause between the end of one cycle and the next capture.
	CaptureInterval time.Duration
	// AdviceTimeout bounds a single advisor call.
	AdviceTimeout time.Duration
}

// Loop is the navigation loop.
type Loop struct {
	cameras CameraSource
	advisor Advisor
	speaker Speaker
	options Options
}

// New creates the loop.
func New(cameras CameraSource, advisor Advisor, speaker Speaker, options Options) *Loop {
	return &Loop{
		cameras: cameras,
		advisor: advisor,
		speaker: speaker,
		options: options,
	}
}

// Run opens the camera and guides until ctx is canceled. It returns an error
// wrapping guidance.ErrFatalInitialization when the camera cannot be opened,
// and nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "navigation")

	camera, err := common.Await(ctx, l.cameras.Open)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		err = fmt.Errorf("%w: open camera: %w", guidance.ErrFatalInitialization, err)

		logger.ErrorKV(ctx, "Navigation system failed to start", "error", err)
		l.speaker.Speak(ctx, guidance.PhraseNavigationFailed, guidance.PriorityRoutine)

		return err
	}

	// The camera is released on every exit path.
	defer func() {
		if closeErr := camera.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close camera", "error", closeErr)
		}
	}()

	logger.InfoKV(ctx, "Navigation system started",
		"interval", l.options.CaptureInterval.String(),
		"advice_timeout", l.options.AdviceTimeout.String(),
	)

	l.speaker.Speak(ctx, guidance.PhraseNavigationReady, guidance.PriorityRoutine)

	for cycle := 1; ; cycle++ {
		l.runCycle(logger.WithKV(ctx, "cycle", cycle), camera)

		if !common.Sleep(ctx, l.options.CaptureInterval) {
			logger.Info(ctx, "Navigation system stopped")
			return nil
		}
	}
}

// runCycle performs one capture, advise and speak pass. Every failure is
// logged and answered with a fallback phrase; cancellation is silent.
func (l *Loop) runCycle(ctx context.Context, camera Camera) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Navigation cycle panicked", "panic", r)
		}
	}()

	frame, err := common.Await(ctx, camera.CaptureFrame)
	if err != nil {
		if ctx.Err() != nil {
			return
		}

		logger.ErrorKV(ctx, "Frame capture failed", "error", fmt.Errorf("%w: %w", guidance.ErrCaptureFailed, err))
		l.speaker.Speak(ctx, guidance.PhraseCaptureFailed, guidance.PriorityRoutine)

		return
	}

	logger.DebugKV(ctx, "Frame captured", "bytes", len(frame))

	text, err := l.advise(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return
		}

		logger.ErrorKV(ctx, "Scene advice failed", "error", fmt.Errorf("%w: %w", guidance.ErrAdvisoryUnavailable, err))
		l.speaker.Speak(ctx, guidance.PhraseAdvisoryUnavailable, guidance.PriorityRoutine)

		return
	}

	logger.InfoKV(ctx, "Guidance received", "text", text)

	// The next cycle starts only after this guidance finished playing.
	if outcome := l.speaker.Speak(ctx, text, guidance.PriorityRoutine); outcome != guidance.Spoken {
		logger.DebugKV(ctx, "Guidance not spoken", "outcome", outcome.String())
	}
}

// advise asks the advisor with the per-call timeout.
func (l *Loop) advise(ctx context.Context, frame []byte) (string, error) {
	if l.options.AdviceTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, l.options.AdviceTimeout)
		defer cancel()
	}

	return common.Await(ctx, func(ctx context.Context) (string, error) {
		return l.advisor.Describe(ctx, frame)
	})
}
