package supervisor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/smart-cane/internal/domain/guidance"
	"github.com/oshokin/smart-cane/internal/logger"
	"github.com/oshokin/smart-cane/internal/service/common"
)

// Runner is a long-running loop.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Loop is a named Runner.
type Loop struct {
	Name   string
	Runner Runner
}

// SpeechWorker is the shared speech output.
type SpeechWorker interface {
	Run(ctx context.Context) error
	Speak(ctx context.Context, text string, priority guidance.Priority) guidance.Outcome
}

// Status receives loop status changes.
type Status interface {
	SetServing(service string, serving bool)
}

// Supervisor runs the loops around a speech worker.
type Supervisor struct {
	speech          SpeechWorker
	status          Status
	hardware        *Hardware
	loops           []Loop
	shutdownTimeout time.Duration
}

// New creates a supervisor. status and hardware may be nil.
func New(speech SpeechWorker, status Status, hardware *Hardware, shutdownTimeout time.Duration, loops ...Loop) *Supervisor {
	if hardware == nil {
		hardware = NewHardware()
	}

	return &Supervisor{
		speech:          speech,
		status:          status,
		hardware:        hardware,
		loops:           loops,
		shutdownTimeout: shutdownTimeout,
	}
}

// Supervise blocks until every loop ended or ctx is done. It returns nil on
// interrupt and on normal completion, and the combined errors when every
// loop failed.
func (s *Supervisor) Supervise(ctx context.Context) error {
	// The speech worker outlives the loops so the shutdown phrase can play.
	speechCtx, stopSpeech := context.WithCancel(context.WithoutCancel(ctx))
	defer stopSpeech()

	speechDone := make(chan struct{})

	go func() {
		defer close(speechDone)

		if err := s.speech.Run(speechCtx); err != nil {
			logger.ErrorKV(ctx, "Speech worker failed", "error", err)
		}
	}()

	var group errgroup.Group

	errs := make([]error, len(s.loops))
	loopsDone := make(chan struct{})

	for i, loop := range s.loops {
		group.Go(func() error {
			errs[i] = s.runLoop(ctx, loop)
			return errs[i]
		})
	}

	go func() {
		_ = group.Wait()

		close(loopsDone)
	}()

	interrupted := false

	select {
	case <-loopsDone:
		logger.Info(ctx, "All loops ended")
	case <-ctx.Done():
		interrupted = true

		logger.Info(ctx, "Interrupt received, shutting down")
	}

	s.shutdown(ctx, interrupted, loopsDone, stopSpeech, speechDone)

	// Devices are released even when ctx is already canceled.
	if err := s.hardware.Release(context.WithoutCancel(ctx), s.timeout()); err != nil {
		logger.WarnKV(ctx, "Failed to release hardware", "error", err)
	}

	if interrupted {
		return nil
	}

	return bothFailed(errs)
}

// runLoop runs one loop, keeping its status current. Panics end the loop with an error.
func (s *Supervisor) runLoop(ctx context.Context, loop Loop) (err error) {
	ctx = logger.WithKV(ctx, "loop", loop.Name)

	s.setServing(loop.Name, true)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s loop: %v", common.ErrPanicked, loop.Name, r)
		}

		s.setServing(loop.Name, false)

		if err != nil {
			logger.ErrorKV(ctx, "Loop ended with a fatal failure, the device keeps running degraded", "error", err)
		}
	}()

	return loop.Runner.Run(ctx)
}

// shutdown waits for the loops within the shutdown timeout, announces the
// shutdown when interrupted and stops the speech worker.
func (s *Supervisor) shutdown(
	ctx context.Context,
	interrupted bool,
	loopsDone <-chan struct{},
	stopSpeech context.CancelFunc,
	speechDone <-chan struct{},
) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
	defer cancel()

	select {
	case <-loopsDone:
	case <-shutdownCtx.Done():
		logger.WarnKV(ctx, "Loops did not stop in time", "timeout", s.timeout().String())
	}

	if interrupted {
		s.speech.Speak(shutdownCtx, guidance.PhraseShuttingDown, guidance.PriorityAlert)
	}

	stopSpeech()

	select {
	case <-speechDone:
	case <-time.After(s.timeout()):
		logger.Warn(ctx, "Speech worker did not stop in time")
	}
}

func (s *Supervisor) setServing(name string, serving bool) {
	if s.status != nil {
		s.status.SetServing(name, serving)
	}
}

func (s *Supervisor) timeout() time.Duration {
	if s.shutdownTimeout <= 0 {
		return time.Second
	}

	return s.shutdownTimeout
}

// bothFailed returns the combined loop errors when no loop ended cleanly.
func bothFailed(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	for _, err := range errs {
		if err == nil {
			return nil
		}
	}

	return multierr.Combine(errs...)
}
