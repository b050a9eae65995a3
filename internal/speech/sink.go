package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/oshokin/smart-cane/internal/domain/guidance"
	"github.com/oshokin/smart-cane/internal/logger"
)

// Renderer turns text into audible output. Render blocks while audio plays.
type Renderer interface {
	Render(ctx context.Context, text string) error
}

// pending is a queued request and the channel its outcome is sent on.
type pending struct {
	// result receives exactly one outcome; it is buffered.
	result  chan guidance.Outcome
	request guidance.Request
}

// finish delivers the outcome without blocking.
func (p *pending) finish(outcome guidance.Outcome) {
	p.result <- outcome
}

// ErrWorkerRunning is returned when Run is called on a sink that already has a worker.
var ErrWorkerRunning = errors.New("speech worker already running")

// Sink serializes speech requests onto a Renderer.
type Sink struct {
	renderer Renderer
	// wake is signalled when the queues gain an item.
	wake chan struct{}
	// alerts and routine are the two queue tiers.
	alerts  []*pending
	routine []*pending
	// logCtx carries the worker's named logger for lines written by callers.
	logCtx context.Context //nolint:containedctx // Only its logger is used.
	// mu protects the queues, logCtx and stopped.
	mu sync.Mutex
	// stopped is set once the worker has exited.
	stopped bool
	// running guarantees a single worker, hence a single rendering at a time.
	running atomic.Bool
}

// New creates a sink rendering through r. Call Run to start the worker.
func New(r Renderer) *Sink {
	return &Sink{
		renderer: r,
		wake:     make(chan struct{}, 1),
		logCtx:   logger.WithName(context.Background(), "speech"),
	}
}

// Enqueue queues text and returns a channel that receives its outcome.
// It never blocks. Enqueueing an Alert drops queued Routine requests.
func (s *Sink) Enqueue(text string, priority guidance.Priority) <-chan guidance.Outcome {
	item := &pending{
		result:  make(chan guidance.Outcome, 1),
		request: guidance.Request{Text: strings.TrimSpace(text), Priority: priority},
	}

	if item.request.Text == "" {
		item.finish(guidance.Dropped)
		return item.result
	}

	var dropped []*pending

	s.mu.Lock()

	logCtx := s.logCtx

	switch {
	case s.stopped:
		s.mu.Unlock()
		item.finish(guidance.Canceled)

		return item.result
	case priority == guidance.PriorityAlert:
		dropped = s.routine
		s.routine = nil
		s.alerts = append(s.alerts, item)
	default:
		s.routine = append(s.routine, item)
	}

	s.mu.Unlock()

	for _, p := range dropped {
		p.finish(guidance.Dropped)
	}

	if len(dropped) > 0 {
		logger.DebugKV(logCtx, "Queued routine speech dropped for alert", "dropped", len(dropped))
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return item.result
}

// Speak queues text and waits until it is spoken, dropped or failed.
// When ctx is done first, a request that has not started is withdrawn and
// Canceled is returned. Failures are logged by the worker, never returned.
func (s *Sink) Speak(ctx context.Context, text string, priority guidance.Priority) guidance.Outcome {
	result := s.Enqueue(text, priority)

	select {
	case outcome := <-result:
		return outcome
	case <-ctx.Done():
		s.withdraw(result)
		return guidance.Canceled
	}
}

// Pending reports how many requests wait in each tier.
func (s *Sink) Pending() (alerts, routine int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.alerts), len(s.routine)
}

// Run renders queued requests one at a time until ctx is done. Requests
// still queued at that point complete with Canceled and later Enqueue calls
// are canceled immediately.
func (s *Sink) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrWorkerRunning
	}

	ctx = logger.WithName(ctx, "speech")

	s.mu.Lock()
	s.logCtx = ctx
	s.mu.Unlock()

	logger.Info(ctx, "Speech worker started")
	defer logger.Info(ctx, "Speech worker stopped")

	defer s.stop()

	for {
		item := s.next()
		if item == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-s.wake:
				continue
			}
		}

		if ctx.Err() != nil {
			item.finish(guidance.Canceled)
			return nil
		}

		item.finish(s.render(ctx, item.request))
	}
}

// next pops the oldest Alert, or the oldest Routine when no Alert waits.
func (s *Sink) next() *pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.alerts) > 0 {
		item := s.alerts[0]
		s.alerts = s.alerts[1:]

		return item
	}

	if len(s.routine) > 0 {
		item := s.routine[0]
		s.routine = s.routine[1:]

		return item
	}

	return nil
}

// render plays one request. Renderer errors and panics become Failed.
func (s *Sink) render(ctx context.Context, request guidance.Request) (outcome guidance.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Speech renderer panicked", "panic", r, "priority", request.Priority.String())

			outcome = guidance.Failed
		}
	}()

	logger.DebugKV(ctx, "Speaking", "priority", request.Priority.String(), "text", request.Text)

	if err := s.renderer.Render(ctx, request.Text); err != nil {
		if ctx.Err() != nil {
			return guidance.Canceled
		}

		logger.ErrorKV(
			ctx,
			"Speech rendering failed",
			"priority", request.Priority.String(),
			"error", fmt.Errorf("%w: %w", guidance.ErrSpeechUnavailable, err),
		)

		return guidance.Failed
	}

	return guidance.Spoken
}

// withdraw removes a not yet started request identified by its result channel.
func (s *Sink) withdraw(result <-chan guidance.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = without(s.alerts, result)
	s.routine = without(s.routine, result)
}

// stop marks the sink stopped and cancels everything still queued.
func (s *Sink) stop() {
	s.mu.Lock()
	s.stopped = true
	queued := append(s.alerts, s.routine...)
	s.alerts, s.routine = nil, nil
	s.mu.Unlock()

	for _, p := range queued {
		p.finish(guidance.Canceled)
	}
}

// without returns items minus the one owning result.
func without(items []*pending, result <-chan guidance.Outcome) []*pending {
	for i, p := range items {
		if p.result == result {
			return append(items[:i], items[i+1:]...)
		}
	}

	return items
}
