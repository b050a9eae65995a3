// Package location resolves the current position from an NMEA GPS receiver
// on a serial port.
package location
