package guidance

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Alert is one emergency notification sent to the guardians.
type Alert struct {
	// TriggeredAt is when the button press was accepted.
	TriggeredAt time.Time
	// ID correlates log lines and journal entries of one alert.
	ID string
	// Recipients are the guardian addresses.
	Recipients []string
	// Coordinate is the resolved (or Unknown) position.
	Coordinate Coordinate
}

// NewAlert creates an alert with a fresh identifier.
func NewAlert(triggeredAt time.Time, coordinate Coordinate, recipients []string) *Alert {
	return &Alert{
		TriggeredAt: triggeredAt,
		ID:          uuid.NewString(),
		Recipients:  slices.Clone(recipients),
		Coordinate:  coordinate,
	}
}

// AlertRecord is the outcome of one alert attempt, kept in the alert journal.
type AlertRecord struct {
	// CompletedAt is when the dispatch attempt returned.
	CompletedAt time.Time
	// Error holds the delivery error text, empty on success.
	Error string
	// Alert is the alert that was dispatched.
	Alert Alert
	// Delivered reports whether the dispatcher accepted the alert.
	Delivered bool
}

// Complete builds the journal record for this alert.
func (a *Alert) Complete(completedAt time.Time, err error) *AlertRecord {
	record := &AlertRecord{
		CompletedAt: completedAt,
		Alert:       *a.Clone(),
		Delivered:   err == nil,
	}

	if err != nil {
		record.Error = err.Error()
	}

	return record
}

// Clone returns a deep copy of the alert.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}

	cloned := *a
	cloned.Recipients = slices.Clone(a.Recipients)

	return &cloned
}
