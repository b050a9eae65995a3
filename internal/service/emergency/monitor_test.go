package emergency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/smart-cane/internal/domain/guidance"
)

const pollInterval = 100 * time.Millisecond

var (
	errNoPin     = errors.New("gpio pin busy")
	errRelay     = errors.New("smtp relay refused")
	errReadNoise = errors.New("read failed")
	errNoFix     = errors.New("no fix")
	here         = guidance.NewCoordinate(48.1173, 11.516666)
)

var defaultOptions = Options{
	PollInterval:    pollInterval,
	AlertCooldown:   10 * time.Second,
	LocationTimeout: 10 * time.Second,
	DispatchTimeout: 30 * time.Second,
	DebounceSamples: 2,
	ActiveLevel:     guidance.Low,
	Recipients:      []string{"guardian@example.com"},
}

// utterance is one recorded speech request.
type utterance struct {
	text     string
	priority guidance.Priority
	waited   bool
}

// fakeSpeaker records announcements.
type fakeSpeaker struct {
	mu    sync.Mutex
	heard []utterance
}

func (s *fakeSpeaker) Enqueue(text string, priority guidance.Priority) <-chan guidance.Outcome {
	s.record(utterance{text: text, priority: priority})

	result := make(chan guidance.Outcome, 1)
	result <- guidance.Spoken

	return result
}

func (s *fakeSpeaker) Speak(_ context.Context, text string, priority guidance.Priority) guidance.Outcome {
	s.record(utterance{text: text, priority: priority, waited: true})
	return guidance.Spoken
}

func (s *fakeSpeaker) record(u utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.heard = append(s.heard, u)
}

func (s *fakeSpeaker) utterances() []utterance {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]utterance(nil), s.heard...)
}

func (s *fakeSpeaker) count(text string) int {
	n := 0

	for _, u := range s.utterances() {
		if u.text == text {
			n++
		}
	}

	return n
}

// scriptedButton reports levels as a function of the time since it was opened.
type scriptedButton struct {
	opened  time.Time
	levelAt func(elapsed time.Duration) (guidance.Level, error)
	closed  bool
}

func (b *scriptedButton) ReadLevel() (guidance.Level, error) {
	return b.levelAt(time.Since(b.opened))
}

func (b *scriptedButton) Close() error {
	b.closed = true
	return nil
}

// pressedDuring returns a script pressing the button inside the given windows.
func pressedDuring(windows ...[2]time.Duration) func(time.Duration) (guidance.Level, error) {
	return func(elapsed time.Duration) (guidance.Level, error) {
		for _, w := range windows {
			if elapsed >= w[0] && elapsed < w[1] {
				return guidance.Low, nil
			}
		}

		return guidance.High, nil
	}
}

func buttonSource(button *scriptedButton) ButtonSource {
	return ButtonSourceFunc(func(context.Context) (Button, error) {
		button.opened = time.Now()
		return button, nil
	})
}

// locatorFunc adapts a function to Locator.
type locatorFunc func(ctx context.Context) (guidance.Coordinate, error)

func (f locatorFunc) Resolve(ctx context.Context) (guidance.Coordinate, error) { return f(ctx) }

func fixedLocator(c guidance.Coordinate) Locator {
	return locatorFunc(func(context.Context) (guidance.Coordinate, error) { return c, nil })
}

// fakeDispatcher records delivered alerts and the time they arrived.
type fakeDispatcher struct {
	mu     sync.Mutex
	err    error
	alerts []guidance.Alert
	times  []time.Time
}

func (d *fakeDispatcher) Dispatch(_ context.Context, alert guidance.Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.alerts = append(d.alerts, alert)
	d.times = append(d.times, time.Now())

	return d.err
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.alerts)
}

// memoryJournal keeps records in memory.
type memoryJournal struct {
	mu      sync.Mutex
	records []*guidance.AlertRecord
}

func (j *memoryJournal) Save(_ context.Context, record *guidance.AlertRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records = append(j.records, record)

	return nil
}

// run starts the monitor, sleeps for d of bubble time, then stops it and
// waits until every goroutine it left behind has exited.
func run(t *testing.T, monitor *Monitor, d time.Duration) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- monitor.Run(ctx) }()

	time.Sleep(d)
	synctest.Wait()
	cancel()

	require.NoError(t, <-done)

	// The cooldown gate cleans up in its own goroutine, which exits once the
	// last trigger is older than the cooldown. Wait it out inside the bubble.
	time.Sleep(3*monitor.options.AlertCooldown + 2*time.Second)
	synctest.Wait()
}

// TestMonitor_AlertSequence verifies the announcements, the dispatched alert and the journal record.
func TestMonitor_AlertSequence(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		button := &scriptedButton{levelAt: pressedDuring([2]time.Duration{time.Second, 2 * time.Second})}
		dispatcher := &fakeDispatcher{}
		journal := &memoryJournal{}
		speaker := &fakeSpeaker{}

		run(t, New(buttonSource(button), fixedLocator(here), dispatcher, journal, speaker, defaultOptions), 5*time.Second)

		require.Equal(t, []utterance{
			{text: guidance.PhraseButtonReady, priority: guidance.PriorityRoutine},
			{text: guidance.PhraseAlertPressed, priority: guidance.PriorityAlert},
			{text: guidance.PhraseAlertSent, priority: guidance.PriorityAlert, waited: true},
		}, speaker.utterances())

		require.Equal(t, 1, dispatcher.count())

		alert := dispatcher.alerts[0]
		require.Equal(t, here, alert.Coordinate)
		require.Equal(t, []string{"guardian@example.com"}, alert.Recipients)
		require.NotEmpty(t, alert.ID)

		require.Len(t, journal.records, 1)
		require.True(t, journal.records[0].Delivered)
		require.Equal(t, alert.ID, journal.records[0].Alert.ID)
		require.True(t, button.closed)
	})
}

// TestMonitor_BouncingWithinCooldown verifies a bouncing press yields a single dispatch.
func TestMonitor_BouncingWithinCooldown(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		bouncing := func(elapsed time.Duration) (guidance.Level, error) {
			poll := int(elapsed / pollInterval)
			if elapsed >= time.Second && elapsed < 6*time.Second && poll%3 != 0 {
				return guidance.Low, nil
			}

			return guidance.High, nil
		}

		dispatcher := &fakeDispatcher{}
		monitor := New(buttonSource(&scriptedButton{levelAt: bouncing}), fixedLocator(here), dispatcher, nil,
			&fakeSpeaker{}, defaultOptions)

		run(t, monitor, 9*time.Second)

		require.Equal(t, 1, dispatcher.count())
	})
}

// TestMonitor_HeldAcrossCooldowns verifies a held button dispatches at most once per cooldown.
func TestMonitor_HeldAcrossCooldowns(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		button := &scriptedButton{levelAt: pressedDuring([2]time.Duration{0, 30 * time.Second})}
		dispatcher := &fakeDispatcher{}
		monitor := New(buttonSource(button), fixedLocator(here), dispatcher, nil, &fakeSpeaker{}, defaultOptions)

		run(t, monitor, 35*time.Second)

		require.LessOrEqual(t, dispatcher.count(), 3)
		require.GreaterOrEqual(t, dispatcher.count(), 2)

		for i := 1; i < len(dispatcher.times); i++ {
			require.GreaterOrEqual(t, dispatcher.times[i].Sub(dispatcher.times[i-1]), defaultOptions.AlertCooldown)
		}
	})
}

// TestMonitor_SingleGlitch verifies one active read is not a press.
func TestMonitor_SingleGlitch(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		glitch := pressedDuring([2]time.Duration{500 * time.Millisecond, 550 * time.Millisecond})
		dispatcher := &fakeDispatcher{}
		monitor := New(buttonSource(&scriptedButton{levelAt: glitch}), fixedLocator(here), dispatcher, nil,
			&fakeSpeaker{}, defaultOptions)

		run(t, monitor, 3*time.Second)

		require.Zero(t, dispatcher.count())
	})
}

// TestMonitor_LocationTimeout verifies a stuck receiver yields Unknown within the location budget.
func TestMonitor_LocationTimeout(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		// The receiver ignores cancellation entirely.
		stuck := locatorFunc(func(context.Context) (guidance.Coordinate, error) {
			<-release
			return here, nil
		})

		button := &scriptedButton{levelAt: pressedDuring([2]time.Duration{0, time.Second})}
		dispatcher := &fakeDispatcher{}
		monitor := New(buttonSource(button), stuck, dispatcher, nil, &fakeSpeaker{}, defaultOptions)

		run(t, monitor, 15*time.Second)

		require.Equal(t, 1, dispatcher.count())
		require.False(t, dispatcher.alerts[0].Coordinate.Known)

		waited := dispatcher.times[0].Sub(dispatcher.alerts[0].TriggeredAt)
		require.GreaterOrEqual(t, waited, defaultOptions.LocationTimeout)
		require.LessOrEqual(t, waited, defaultOptions.LocationTimeout+pollInterval)
	})
}

// TestMonitor_LocationFailure verifies a failing receiver yields Unknown immediately.
func TestMonitor_LocationFailure(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		failing := locatorFunc(func(context.Context) (guidance.Coordinate, error) { return guidance.Unknown(), errNoFix })
		button := &scriptedButton{levelAt: pressedDuring([2]time.Duration{0, time.Second})}
		dispatcher := &fakeDispatcher{}
		monitor := New(buttonSource(button), failing, dispatcher, nil, &fakeSpeaker{}, defaultOptions)

		run(t, monitor, 2*time.Second)

		require.Equal(t, 1, dispatcher.count())
		require.False(t, dispatcher.alerts[0].Coordinate.Known)
		require.True(t, dispatcher.alerts[0].TriggeredAt.Equal(dispatcher.times[0]))
	})
}

// TestMonitor_DispatchFailureStaysArmed verifies a failed alert is spoken and the next press still works.
func TestMonitor_DispatchFailureStaysArmed(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		button := &scriptedButton{levelAt: pressedDuring(
			[2]time.Duration{0, time.Second},
			[2]time.Duration{15 * time.Second, 16 * time.Second},
		)}
		dispatcher := &fakeDispatcher{err: errRelay}
		journal := &memoryJournal{}
		speaker := &fakeSpeaker{}
		monitor := New(buttonSource(button), fixedLocator(here), dispatcher, journal, speaker, defaultOptions)

		run(t, monitor, 20*time.Second)

		require.Equal(t, 2, dispatcher.count())
		require.Equal(t, 2, speaker.count(guidance.PhraseAlertFailed))
		require.Zero(t, speaker.count(guidance.PhraseAlertSent))

		require.Len(t, journal.records, 2)
		require.False(t, journal.records[0].Delivered)
		require.Contains(t, journal.records[0].Error, errRelay.Error())
	})
}

// TestMonitor_ReadErrorsIgnored verifies read failures skip the poll without disarming.
func TestMonitor_ReadErrorsIgnored(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		flaky := func(elapsed time.Duration) (guidance.Level, error) {
			if elapsed < time.Second {
				return guidance.High, errReadNoise
			}

			return pressedDuring([2]time.Duration{2 * time.Second, 3 * time.Second})(elapsed)
		}

		dispatcher := &fakeDispatcher{}
		monitor := New(buttonSource(&scriptedButton{levelAt: flaky}), fixedLocator(here), dispatcher, nil,
			&fakeSpeaker{}, defaultOptions)

		run(t, monitor, 4*time.Second)

		require.Equal(t, 1, dispatcher.count())
	})
}

// TestMonitor_OpenFailureIsFatal verifies the failure is announced at alert priority and returned.
func TestMonitor_OpenFailureIsFatal(t *testing.T) {
	t.Parallel()

	speaker := &fakeSpeaker{}
	source := ButtonSourceFunc(func(context.Context) (Button, error) { return nil, errNoPin })

	err := New(source, nil, nil, nil, speaker, defaultOptions).Run(context.Background())
	require.ErrorIs(t, err, guidance.ErrFatalInitialization)
	require.ErrorIs(t, err, errNoPin)
	require.Equal(t, []utterance{{text: guidance.PhraseButtonFailed, priority: guidance.PriorityAlert, waited: true}},
		speaker.utterances())
}

// TestMonitor_InvalidPollInterval verifies a non-positive interval is refused
// and announced like any other start failure, without touching the button.
func TestMonitor_InvalidPollInterval(t *testing.T) {
	t.Parallel()

	options := defaultOptions
	options.PollInterval = 0

	speaker := &fakeSpeaker{}
	source := ButtonSourceFunc(func(context.Context) (Button, error) {
		t.Error("button must not be opened")
		return nil, errNoPin
	})

	err := New(source, nil, nil, nil, speaker, options).Run(context.Background())
	require.ErrorIs(t, err, guidance.ErrFatalInitialization)
	require.Equal(t, []utterance{{text: guidance.PhraseButtonFailed, priority: guidance.PriorityAlert, waited: true}},
		speaker.utterances())
}
