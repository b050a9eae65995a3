package button

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/oshokin/smart-cane/internal/domain/guidance"
)

// ErrUnknownPin is returned when the pin name is not registered on this host.
var ErrUnknownPin = errors.New("unknown gpio pin")

var (
	hostOnce sync.Once
	errHost  error
)

// Options selects the pin and its wiring.
type Options struct {
	// Pin is a periph pin name such as "GPIO17".
	Pin string
	// ActiveLow means the button pulls the line to ground when pressed,
	// so the input uses the internal pull-up resistor.
	ActiveLow bool
}

// GPIO is a button wired to one input pin.
type GPIO struct {
	pin gpio.PinIO
}

// Open initializes the host drivers once and configures the pin as an input.
func Open(options Options) (*GPIO, error) {
	hostOnce.Do(func() {
		_, errHost = host.Init()
	})

	if errHost != nil {
		return nil, fmt.Errorf("failed to initialize gpio host: %w", errHost)
	}

	pin := gpioreg.ByName(options.Pin)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPin, options.Pin)
	}

	pull := gpio.PullDown
	if options.ActiveLow {
		pull = gpio.PullUp
	}

	if err := pin.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to configure %s as input: %w", options.Pin, err)
	}

	return &GPIO{pin: pin}, nil
}

// ReadLevel samples the pin.
func (b *GPIO) ReadLevel() (guidance.Level, error) {
	if b.pin.Read() == gpio.High {
		return guidance.High, nil
	}

	return guidance.Low, nil
}

// Close returns the pin to a high impedance state.
func (b *GPIO) Close() error {
	if err := b.pin.Halt(); err != nil {
		return fmt.Errorf("failed to release %s: %w", b.pin.Name(), err)
	}

	return nil
}

// ActiveLevel is the level read while the button is pressed.
func ActiveLevel(activeLow bool) guidance.Level {
	if activeLow {
		return guidance.Low
	}

	return guidance.High
}
