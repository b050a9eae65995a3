package guidance

// Priority orders speech requests inside the speech sink.
type Priority int

const (
	// PriorityRoutine is used for navigation cues and status messages.
	PriorityRoutine Priority = iota
	// PriorityAlert is used for emergency announcements; it flushes queued routine requests.
	PriorityAlert
)

// String returns the lowercase priority name for logs.
func (p Priority) String() string {
	switch p {
	case PriorityRoutine:
		return "routine"
	case PriorityAlert:
		return "alert"
	default:
		return "unknown"
	}
}

// Request is a single piece of text to be spoken.
// It is consumed exactly once by the speech sink and never persisted.
type Request struct {
	// Text is the phrase to render.
	Text string
	// Priority selects the queue tier.
	Priority Priority
}

// Outcome reports what happened to a Request inside the speech sink.
type Outcome int

const (
	// Spoken means the request was rendered to audio.
	Spoken Outcome = iota
	// Dropped means the request was discarded before rendering started.
	Dropped
	// Failed means the renderer returned an error.
	Failed
	// Canceled means the requester or the sink stopped waiting.
	Canceled
)

// String returns the lowercase outcome name for logs.
func (o Outcome) String() string {
	switch o {
	case Spoken:
		return "spoken"
	case Dropped:
		return "dropped"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}
