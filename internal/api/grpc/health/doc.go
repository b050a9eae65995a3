// Package health implements the gRPC status endpoint of the device.
//
// It exposes the standard gRPC health service. Every loop is a named service
// that reports SERVING while it runs; the empty service name reports the
// device as a whole.
package health
