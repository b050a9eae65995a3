package guidance

import "errors"

// Failure taxonomy. Only ErrFatalInitialization ends a loop; every other
// kind is handled inside the cycle that produced it.
var (
	// ErrCaptureFailed marks a transient camera capture failure.
	ErrCaptureFailed = errors.New("frame capture failed")
	// ErrAdvisoryUnavailable marks a failed or timed out scene advisory call.
	ErrAdvisoryUnavailable = errors.New("scene advisory unavailable")
	// ErrSpeechUnavailable marks a failed audio rendering.
	ErrSpeechUnavailable = errors.New("speech unavailable")
	// ErrLocationUnresolved marks a location fix that was not obtained in time.
	ErrLocationUnresolved = errors.New("location unresolved")
	// ErrAlertDeliveryFailed marks an alert the dispatcher could not deliver.
	ErrAlertDeliveryFailed = errors.New("alert delivery failed")
	// ErrFatalInitialization marks a hardware handle that could not be acquired.
	ErrFatalInitialization = errors.New("fatal initialization failure")
)
