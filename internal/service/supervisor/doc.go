// Package supervisor runs the device: the speech worker, the navigation loop
// and the emergency monitor.
//
// The loops run independently. One loop failing to start is reported and the
// other keeps running; the process fails only when both loops failed. On
// interrupt the loops are stopped, the speech worker is drained and the
// hardware is released in reverse order of acquisition.
package supervisor
