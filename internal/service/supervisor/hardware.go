package supervisor

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/oshokin/smart-cane/internal/logger"
	"github.com/oshokin/smart-cane/internal/service/common"
)

// Hardware registers exclusively held devices so they can be released at shutdown.
type Hardware struct {
	mu      sync.Mutex
	devices []device
}

type device struct {
	name  string
	close func() error
}

// NewHardware creates an empty registry.
func NewHardware() *Hardware {
	return &Hardware{}
}

// Track registers c and returns a close function that releases it at most once.
// The owner may call it early; Release then skips the device.
func (h *Hardware) Track(name string, c io.Closer) func() error {
	closeOnce := sync.OnceValue(c.Close)

	h.mu.Lock()
	h.devices = append(h.devices, device{name: name, close: closeOnce})
	h.mu.Unlock()

	return closeOnce
}

// Release closes every tracked device in reverse order of registration.
// Each close gets at most timeout; a device that hangs, such as a camera
// stuck in a driver read, is reported and left to finish in the background
// so the remaining devices are still released.
func (h *Hardware) Release(ctx context.Context, timeout time.Duration) error {
	h.mu.Lock()
	devices := slices.Clone(h.devices)
	h.devices = nil
	h.mu.Unlock()

	var errs error

	for i := len(devices) - 1; i >= 0; i-- {
		d := devices[i]

		if err := release(ctx, d, timeout); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release %s: %w", d.name, err))
			continue
		}

		logger.DebugKV(ctx, "Hardware released", "device", d.name)
	}

	return errs
}

func release(ctx context.Context, d device, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, err := common.Await(ctx, func(context.Context) (struct{}, error) {
		return struct{}{}, d.close()
	})

	return err
}
