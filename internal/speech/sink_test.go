package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/smart-cane/internal/domain/guidance"
	"github.com/oshokin/smart-cane/internal/logger"
)

var errNoAudio = errors.New("no audio device")

// recordingRenderer records rendered text and tracks overlapping renders.
type recordingRenderer struct {
	// gate, when set, blocks every render until it receives a value or is closed.
	gate chan struct{}
	// started receives the text of every render as it begins.
	started chan string
	// fail makes Render return errNoAudio for these texts.
	fail map[string]bool
	// panicOn makes Render panic for this text.
	panicOn string

	mu       sync.Mutex
	rendered []string

	active  atomic.Int32
	overlap atomic.Bool
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{
		started: make(chan string, 64),
		fail:    make(map[string]bool),
	}
}

// Render records text, optionally waiting on the gate.
func (r *recordingRenderer) Render(ctx context.Context, text string) error {
	if r.active.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.active.Add(-1)

	r.started <- text

	if text == r.panicOn {
		panic("driver crashed")
	}

	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if r.fail[text] {
		return errNoAudio
	}

	r.mu.Lock()
	r.rendered = append(r.rendered, text)
	r.mu.Unlock()

	return nil
}

func (r *recordingRenderer) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.rendered...)
}

// startSink runs the worker until the test ends.
func startSink(t *testing.T, r Renderer) *Sink {
	t.Helper()

	sink := New(r)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = sink.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return sink
}

// TestSink_AlertPreemptsQueuedRoutine verifies the alert is spoken right after the in-flight
// routine request and that queued routine requests are dropped.
func TestSink_AlertPreemptsQueuedRoutine(t *testing.T) {
	t.Parallel()

	renderer := newRecordingRenderer()
	renderer.gate = make(chan struct{})
	sink := startSink(t, renderer)

	first := sink.Enqueue("routine 0", guidance.PriorityRoutine)
	require.Equal(t, "routine 0", <-renderer.started)

	var queued []<-chan guidance.Outcome
	for i := 1; i <= 3; i++ {
		queued = append(queued, sink.Enqueue(fmt.Sprintf("routine %d", i), guidance.PriorityRoutine))
	}

	alert := sink.Enqueue("alert", guidance.PriorityAlert)

	// Queued routine requests are dropped as soon as the alert arrives.
	for _, result := range queued {
		require.Equal(t, guidance.Dropped, <-result)
	}

	alerts, routine := sink.Pending()
	require.Equal(t, 1, alerts)
	require.Zero(t, routine)

	// The in-flight routine rendering is not interrupted.
	renderer.gate <- struct{}{}
	require.Equal(t, guidance.Spoken, <-first)

	require.Equal(t, "alert", <-renderer.started)
	renderer.gate <- struct{}{}
	require.Equal(t, guidance.Spoken, <-alert)

	require.Equal(t, []string{"routine 0", "alert"}, renderer.texts())
}

// TestSink_ConcurrentRequestsNeverOverlap verifies mutual exclusion under concurrent callers.
func TestSink_ConcurrentRequestsNeverOverlap(t *testing.T) {
	t.Parallel()

	renderer := newRecordingRenderer()
	sink := startSink(t, renderer)

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			priority := guidance.PriorityRoutine
			if i%5 == 0 {
				priority = guidance.PriorityAlert
			}

			outcome := sink.Speak(context.Background(), fmt.Sprintf("phrase %d", i), priority)
			assert.Contains(t, []guidance.Outcome{guidance.Spoken, guidance.Dropped}, outcome)
		}()
	}

	wg.Wait()

	require.False(t, renderer.overlap.Load())
	require.NotEmpty(t, renderer.texts())
}

// TestSink_RendererFailureIsContained verifies errors and panics are reported as Failed.
func TestSink_RendererFailureIsContained(t *testing.T) {
	t.Parallel()

	renderer := newRecordingRenderer()
	renderer.fail["broken"] = true
	renderer.panicOn = "explosive"
	sink := startSink(t, renderer)

	ctx := context.Background()

	require.Equal(t, guidance.Failed, sink.Speak(ctx, "broken", guidance.PriorityRoutine))
	require.Equal(t, guidance.Failed, sink.Speak(ctx, "explosive", guidance.PriorityAlert))

	// The worker keeps serving after failures.
	require.Equal(t, guidance.Spoken, sink.Speak(ctx, "still here", guidance.PriorityRoutine))
}

// TestSink_SpeakWithdrawsOnCancel verifies a canceled caller does not leave its request queued.
func TestSink_SpeakWithdrawsOnCancel(t *testing.T) {
	t.Parallel()

	renderer := newRecordingRenderer()
	renderer.gate = make(chan struct{})
	sink := startSink(t, renderer)

	busy := sink.Enqueue("long description", guidance.PriorityRoutine)
	<-renderer.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.Equal(t, guidance.Canceled, sink.Speak(ctx, "stale cue", guidance.PriorityRoutine))

	_, routine := sink.Pending()
	require.Zero(t, routine)

	close(renderer.gate)
	require.Equal(t, guidance.Spoken, <-busy)
	require.Equal(t, []string{"long description"}, renderer.texts())
}

// TestSink_StopCancelsQueued verifies shutdown semantics and single worker guard.
func TestSink_StopCancelsQueued(t *testing.T) {
	t.Parallel()

	renderer := newRecordingRenderer()
	renderer.gate = make(chan struct{})

	sink := New(renderer)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- sink.Run(ctx) }()

	inFlight := sink.Enqueue("in flight", guidance.PriorityRoutine)
	<-renderer.started

	queued := sink.Enqueue("queued", guidance.PriorityRoutine)

	require.ErrorIs(t, sink.Run(context.Background()), ErrWorkerRunning)

	cancel()
	require.NoError(t, <-done)

	require.Equal(t, guidance.Canceled, <-inFlight)
	require.Equal(t, guidance.Canceled, <-queued)

	// After the worker stopped, requests complete immediately.
	require.Equal(t, guidance.Canceled, <-sink.Enqueue("late", guidance.PriorityAlert))

	// Blank text is ignored.
	require.Equal(t, guidance.Dropped, <-sink.Enqueue("   ", guidance.PriorityRoutine))
}

// lockedBuffer is a log sink shared by the test and the worker.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// TestSink_PreemptionLoggedByWorkerLogger verifies the drop notice written on
// the caller's goroutine carries the worker's speech logger.
func TestSink_PreemptionLoggedByWorkerLogger(t *testing.T) {
	t.Parallel()

	var logs lockedBuffer

	renderer := newRecordingRenderer()
	renderer.gate = make(chan struct{})
	sink := New(renderer)

	ctx, cancel := context.WithCancel(logger.ToContext(context.Background(), logger.New(&logs, zapcore.DebugLevel)))
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = sink.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	sink.Enqueue("in flight", guidance.PriorityRoutine)
	require.Equal(t, "in flight", <-renderer.started)

	queued := sink.Enqueue("queued", guidance.PriorityRoutine)
	sink.Enqueue("alert", guidance.PriorityAlert)
	require.Equal(t, guidance.Dropped, <-queued)

	var notice string

	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "Queued routine speech dropped for alert") {
			notice = line
		}
	}

	require.Contains(t, notice, "| speech |")
	require.Contains(t, notice, `"dropped": 1`)

	close(renderer.gate)
}
