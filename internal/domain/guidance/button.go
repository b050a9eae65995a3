package guidance

import "time"

// Level is the electrical level read from the button input.
type Level int

const (
	// Low is the low level (pressed, for a pulled-up button).
	Low Level = iota
	// High is the high level.
	High
)

// String returns "low" or "high".
func (l Level) String() string {
	if l == High {
		return "high"
	}

	return "low"
}

// ButtonState is owned by the emergency monitor and mutated only by its polling cycle.
type ButtonState struct {
	// LastTriggerTime is when the last alert was triggered.
	LastTriggerTime time.Time
	// Raw is the level read on the latest poll.
	Raw Level
	// ActiveReads counts consecutive polls that read the active level.
	ActiveReads int
	// Debounced is true once the active level was stable long enough.
	Debounced bool
}

// Observe records one poll and reports whether the press is now debounced.
func (s *ButtonState) Observe(level, active Level, samples int) bool {
	s.Raw = level

	if level != active {
		s.ActiveReads = 0
		s.Debounced = false

		return false
	}

	s.ActiveReads++
	s.Debounced = s.ActiveReads >= max(samples, 1)

	return s.Debounced
}

// Rearm clears the debounce progress after an alert sequence.
func (s *ButtonState) Rearm() {
	s.ActiveReads = 0
	s.Debounced = false
}
