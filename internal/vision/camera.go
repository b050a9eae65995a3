package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrEmptyFrame is returned when the device delivered no image.
	ErrEmptyFrame = errors.New("camera returned an empty frame")
	// ErrCameraClosed is returned by CaptureFrame after Close.
	ErrCameraClosed = errors.New("camera is closed")
)

// CameraOptions selects and configures the capture device.
type CameraOptions struct {
	// Device is the video device index, 0 for the first camera.
	Device int
	Width  int
	Height int
}

// Camera captures still JPEG frames from a video device.
type Camera struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// OpenCamera opens the device and applies the still resolution.
func OpenCamera(_ context.Context, options CameraOptions) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(options.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", options.Device, err)
	}

	if !capture.IsOpened() {
		_ = capture.Close()

		return nil, fmt.Errorf("camera %d is not available", options.Device)
	}

	if options.Width > 0 && options.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(options.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(options.Height))
	}

	return &Camera{
		capture: capture,
		frame:   gocv.NewMat(),
	}, nil
}

// CaptureFrame grabs one frame and encodes it as JPEG.
func (c *Camera) CaptureFrame(_ context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraClosed
	}

	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, ErrEmptyFrame
	}

	buffer, err := gocv.IMEncode(gocv.JPEGFileExt, c.frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buffer.Close()

	// GetBytes points into native memory that Close releases.
	return append([]byte(nil), buffer.GetBytes()...), nil
}

// Close releases the device. It is safe to call more than once.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}

	err := c.capture.Close()
	_ = c.frame.Close()
	c.capture = nil

	return err
}
