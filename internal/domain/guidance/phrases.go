package guidance

// Fixed phrases spoken to the user.
const (
	PhraseNavigationReady     = "Navigation system ready"
	PhraseNavigationFailed    = "Navigation system encountered an error"
	PhraseCaptureFailed       = "Unable to see the surroundings right now"
	PhraseAdvisoryUnavailable = "Navigation system is currently unavailable"
	PhraseButtonReady         = "Emergency button is ready"
	PhraseButtonFailed        = "Emergency button is unavailable"
	PhraseAlertPressed        = "Emergency button pressed, sending alert"
	PhraseAlertSent           = "Emergency alert sent successfully"
	PhraseAlertFailed         = "Failed to send emergency alert"
	PhraseShuttingDown        = "Shutting down"
)
