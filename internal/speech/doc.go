// Package speech owns the single audio output of the device.
//
// A Sink accepts requests from both loops and renders them one at a time on
// its own worker goroutine. Requests are kept in two tiers: an Alert
// request flushes every Routine request that has not started yet, because a
// stale navigation cue is worse than silence during an emergency. An
// utterance already playing is never cut off by another request.
package speech
