package location

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/adrianmo/go-nmea"
	"go.bug.st/serial"

	"github.com/oshokin/smart-cane/internal/domain/guidance"
	"github.com/oshokin/smart-cane/internal/logger"
)

const (
	// readTimeout bounds a single port read so cancellation is noticed.
	readTimeout = time.Second
	// maxLineLength discards garbage that never ends in a newline.
	maxLineLength = 1024
	readChunkSize = 256
)

// ErrNoFix is returned when the stream ended before a valid fix arrived.
var ErrNoFix = errors.New("no gps fix")

// Options configures the receiver port.
type Options struct {
	Port     string
	BaudRate int
}

// GPS reads a fix from the receiver. The port is opened per request and
// closed right after, so it is never held between alerts.
type GPS struct {
	options Options
	open    func(port string, mode *serial.Mode) (serial.Port, error)
}

// NewGPS creates a provider for the configured port.
func NewGPS(options Options) *GPS {
	return &GPS{
		options: options,
		open:    serial.Open,
	}
}

// Resolve blocks until a valid fix is read or ctx is done.
func (g *GPS) Resolve(ctx context.Context) (guidance.Coordinate, error) {
	port, err := g.open(g.options.Port, &serial.Mode{BaudRate: g.options.BaudRate})
	if err != nil {
		return guidance.Unknown(), fmt.Errorf("failed to open %s: %w", g.options.Port, err)
	}
	defer port.Close()

	if err = port.SetReadTimeout(readTimeout); err != nil {
		return guidance.Unknown(), fmt.Errorf("failed to set read timeout: %w", err)
	}

	return readFix(ctx, port)
}

// readFix scans NMEA sentences from r until a GGA or RMC sentence carries a valid fix.
// A zero-byte read is treated as a read timeout, not as the end of the stream.
func readFix(ctx context.Context, r io.Reader) (guidance.Coordinate, error) {
	var (
		line  []byte
		chunk = make([]byte, readChunkSize)
	)

	for {
		if err := ctx.Err(); err != nil {
			return guidance.Unknown(), err
		}

		n, err := r.Read(chunk)

		for _, b := range chunk[:n] {
			if b != '\n' {
				if len(line) < maxLineLength {
					line = append(line, b)
				}

				continue
			}

			if coordinate, ok := parseFix(ctx, string(bytes.TrimSpace(line))); ok {
				return coordinate, nil
			}

			line = line[:0]
		}

		if errors.Is(err, io.EOF) {
			return guidance.Unknown(), ErrNoFix
		}

		if err != nil {
			return guidance.Unknown(), fmt.Errorf("failed to read gps: %w", err)
		}
	}
}

// parseFix reports the coordinate of a sentence with a valid fix.
func parseFix(ctx context.Context, raw string) (guidance.Coordinate, bool) {
	if raw == "" || raw[0] != '$' {
		return guidance.Coordinate{}, false
	}

	sentence, err := nmea.Parse(raw)
	if err != nil {
		logger.DebugKV(ctx, "Skipping malformed NMEA sentence", "sentence", raw, "error", err)
		return guidance.Coordinate{}, false
	}

	switch s := sentence.(type) {
	case nmea.GGA:
		if s.FixQuality != nmea.Invalid {
			return guidance.NewCoordinate(s.Latitude, s.Longitude), true
		}
	case nmea.RMC:
		if s.Validity == nmea.ValidRMC {
			return guidance.NewCoordinate(s.Latitude, s.Longitude), true
		}
	}

	return guidance.Coordinate{}, false
}
