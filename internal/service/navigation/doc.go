// Package navigation runs the perception loop: capture a frame, ask the scene
// advisor for guidance and speak it, on a fixed cadence, until canceled.
//
// No failure inside a cycle ends the loop. Only a camera that cannot be opened
// at start is fatal.
package navigation
