package emergency

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/oshokin/smart-cane/internal/domain/guidance"
	"github.com/oshokin/smart-cane/internal/logger"
	"github.com/oshokin/smart-cane/internal/service/common"
)

// journalTimeout bounds writing one alert record.
const journalTimeout = 5 * time.Second

// gateCategory keys the cooldown limiter; there is one button.
const gateCategory = "button"

// Button is the emergency push button input.
type Button interface {
	ReadLevel() (guidance.Level, error)
	Close() error
}

// ButtonSource opens the button once per monitor lifetime.
type ButtonSource interface {
	Open(ctx context.Context) (Button, error)
}

// ButtonSourceFunc adapts a function to ButtonSource.
type ButtonSourceFunc func(ctx context.Context) (Button, error)

// Open calls f.
func (f ButtonSourceFunc) Open(ctx context.Context) (Button, error) {
	return f(ctx)
}

// Locator resolves the current position.
type Locator interface {
	Resolve(ctx context.Context) (guidance.Coordinate, error)
}

// Dispatcher delivers an alert to the guardians.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert guidance.Alert) error
}

// Journal records alert attempts.
type Journal interface {
	Save(ctx context.Context, record *guidance.AlertRecord) error
}

// Speaker voices status announcements.
type Speaker interface {
	Enqueue(text string, priority guidance.Priority) <-chan guidance.Outcome
	Speak(ctx context.Context, text string, priority guidance.Priority) guidance.Outcome
}

// Options controls polling, debouncing and the alert sequence.
type Options struct {
	// PollInterval is the pause between two button reads. Must be positive.
	PollInterval time.Duration
	// AlertCooldown is the minimum time between two alerts, measured from the trigger.
	AlertCooldown time.Duration
	// LocationTimeout bounds position resolution; Unknown is used after it.
	LocationTimeout time.Duration
	// DispatchTimeout bounds alert delivery.
	DispatchTimeout time.Duration
	// DebounceSamples is how many consecutive active reads make a press.
	DebounceSamples int
	// ActiveLevel is the level read while the button is pressed.
	ActiveLevel guidance.Level
	// Recipients are the guardian addresses.
	Recipients []string
}

// Monitor is the emergency monitor. It is not safe for concurrent Run calls.
type Monitor struct {
	buttons    ButtonSource
	locator    Locator
	dispatcher Dispatcher
	speaker    Speaker
	// journal is optional.
	journal Journal
	options Options
	// gate admits one trigger per cooldown window.
	gate  *catrate.Limiter
	state guidance.ButtonState
}

// New creates a monitor. journal may be nil.
func New(
	buttons ButtonSource,
	locator Locator,
	dispatcher Dispatcher,
	journal Journal,
	speaker Speaker,
	options Options,
) *Monitor {
	options.Recipients = slices.Clone(options.Recipients)

	m := &Monitor{
		buttons:    buttons,
		locator:    locator,
		dispatcher: dispatcher,
		speaker:    speaker,
		journal:    journal,
		options:    options,
	}

	// A nil limiter admits everything, which is what a zero cooldown means.
	if options.AlertCooldown > 0 {
		m.gate = catrate.NewLimiter(map[time.Duration]int{options.AlertCooldown: 1})
	}

	return m
}

// Run opens the button and watches it until ctx is canceled. It returns an
// error wrapping guidance.ErrFatalInitialization when the button cannot be
// opened, and nil on cancellation.
func (m *Monitor) Run(ctx context.Context) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "emergency")

	if m.options.PollInterval <= 0 {
		return m.failStart(ctx, fmt.Errorf("%w: poll interval must be positive, got %s",
			guidance.ErrFatalInitialization, m.options.PollInterval))
	}

	button, err := common.Await(ctx, m.buttons.Open)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return m.failStart(ctx, fmt.Errorf("%w: open button: %w", guidance.ErrFatalInitialization, err))
	}

	// The button is released on every exit path.
	defer func() {
		if closeErr := button.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to release button", "error", closeErr)
		}
	}()

	logger.InfoKV(ctx, "Emergency monitor armed",
		"poll_interval", m.options.PollInterval.String(),
		"cooldown", m.options.AlertCooldown.String(),
		"debounce_samples", m.options.DebounceSamples,
	)

	// Polling starts without waiting for the announcement.
	m.speaker.Enqueue(guidance.PhraseButtonReady, guidance.PriorityRoutine)

	ticker := time.NewTicker(m.options.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Emergency monitor stopped")
			return nil
		case <-ticker.C:
			if !m.poll(ctx, button) {
				continue
			}

			m.trigger(ctx)
			// Ticks that piled up during the alert sequence are stale.
			ticker.Reset(m.options.PollInterval)
		}
	}
}

// failStart reports a fatal start failure once in the log and once aloud.
func (m *Monitor) failStart(ctx context.Context, err error) error {
	logger.ErrorKV(ctx, "Emergency button failed to start", "error", err)
	m.speaker.Speak(ctx, guidance.PhraseButtonFailed, guidance.PriorityAlert)

	return err
}

// poll reads the button once and reports whether a debounced press was seen.
func (m *Monitor) poll(ctx context.Context, button Button) bool {
	level, err := button.ReadLevel()
	if err != nil {
		logger.WarnKV(ctx, "Button read failed", "error", err)
		return false
	}

	return m.state.Observe(level, m.options.ActiveLevel, m.options.DebounceSamples)
}

// trigger runs the alert sequence when the gate admits it, then waits out the cooldown.
func (m *Monitor) trigger(ctx context.Context) {
	now := time.Now()

	next, ok := m.gate.Allow(gateCategory)
	if !ok {
		logger.DebugKV(ctx, "Button press ignored during cooldown", "until", next.Format(time.RFC3339Nano))
	} else {
		m.state.LastTriggerTime = now
		m.raise(ctx, now)
	}

	// The gate reopens AlertCooldown after the trigger, however long the sequence took.
	if !next.IsZero() {
		common.Sleep(ctx, time.Until(next))
	}

	m.state.Rearm()
}

// raise announces, locates, dispatches, reports and records one alert.
// Nothing in here ends the monitor.
func (m *Monitor) raise(ctx context.Context, triggeredAt time.Time) {
	alert := guidance.NewAlert(triggeredAt, guidance.Unknown(), m.options.Recipients)
	ctx = logger.WithKV(ctx, "alert_id", alert.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Alert sequence panicked", "panic", r)
		}
	}()

	logger.Warn(ctx, "Emergency button pressed, sending alert")

	// Location resolution overlaps the announcement.
	m.speaker.Enqueue(guidance.PhraseAlertPressed, guidance.PriorityAlert)

	alert.Coordinate = m.locate(ctx)

	err := m.dispatch(ctx, alert)

	m.record(ctx, alert.Complete(time.Now(), err))

	if ctx.Err() != nil {
		return
	}

	if err != nil {
		logger.ErrorKV(ctx, "Emergency alert failed", "error", err)
		m.speaker.Speak(ctx, guidance.PhraseAlertFailed, guidance.PriorityAlert)

		return
	}

	logger.InfoKV(ctx, "Emergency alert sent", "location", alert.Coordinate.String(), "recipients", len(alert.Recipients))
	m.speaker.Speak(ctx, guidance.PhraseAlertSent, guidance.PriorityAlert)
}

// locate resolves the position within LocationTimeout, falling back to Unknown.
func (m *Monitor) locate(ctx context.Context) guidance.Coordinate {
	locateCtx, cancel := withOptionalTimeout(ctx, m.options.LocationTimeout)
	defer cancel()

	coordinate, err := common.Await(locateCtx, m.locator.Resolve)
	if err != nil {
		logger.WarnKV(ctx, "Location unresolved, sending alert without it",
			"error", fmt.Errorf("%w: %w", guidance.ErrLocationUnresolved, err))

		return guidance.Unknown()
	}

	logger.InfoKV(ctx, "Location resolved", "location", coordinate.String())

	return coordinate
}

// dispatch delivers the alert within DispatchTimeout.
func (m *Monitor) dispatch(ctx context.Context, alert *guidance.Alert) error {
	dispatchCtx, cancel := withOptionalTimeout(ctx, m.options.DispatchTimeout)
	defer cancel()

	delivered := *alert.Clone()

	_, err := common.Await(dispatchCtx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.dispatcher.Dispatch(ctx, delivered)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", guidance.ErrAlertDeliveryFailed, err)
	}

	return nil
}

// record writes the journal entry. It survives cancellation so an alert
// interrupted by shutdown is still recorded.
func (m *Monitor) record(ctx context.Context, record *guidance.AlertRecord) {
	if m.journal == nil {
		return
	}

	journalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	if err := m.journal.Save(journalCtx, record); err != nil {
		logger.WarnKV(ctx, "Failed to record alert", "error", err)
	}
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}
