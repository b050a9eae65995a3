// Package button reads the emergency push button from a GPIO pin.
package button
