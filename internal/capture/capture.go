// Package capture implements the FrameSource contract: given a monitor id,
// return the full-monitor image plus one sub-image per top-level window.
// The platform capture primitive itself is explicitly out of scope of the
// core pipeline (see spec §1) — this package is a best-effort, build-tagged
// implementation behind that interface, not a guarantee of platform parity.
package capture

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/screenpipe/agent/internal/core"
)

// ErrNotSupported is returned when screen capture is not implemented for the
// running platform/build (e.g. non-Windows builds without a native backend).
var ErrNotSupported = errors.New("screen capture not supported on this platform")

// ErrDisplayNotFound is returned when the requested monitor id does not
// correspond to a connected display.
var ErrDisplayNotFound = errors.New("display not found")

// MonitorInfo describes one connected display output.
type MonitorInfo struct {
	ID        uint32
	Name      string
	Width     int
	Height    int
	IsPrimary bool
}

// FrameSource is the external collaborator the core pipeline consumes (spec
// §6). Capture returns the full monitor image, its per-window sub-images,
// an opaque content hash, and how long the capture took.
type FrameSource interface {
	Capture(monitorID uint32) (full image.Image, windows []core.WindowImage, imageHash uint64, captureDuration time.Duration, err error)
}

// Capturer is the concrete FrameSource used by the pipeline by default: it
// dispatches to the platform-specific implementation selected at build time.
type Capturer struct{}

// NewCapturer returns the platform FrameSource. Construction never fails;
// platform unavailability surfaces from Capture instead, mirroring how the
// teacher's ScreenCapturer constructors behave.
func NewCapturer() *Capturer {
	return &Capturer{}
}

// Capture implements FrameSource.
func (c *Capturer) Capture(monitorID uint32) (image.Image, []core.WindowImage, uint64, time.Duration, error) {
	start := time.Now()
	full, windows, hash, err := platformCapture(monitorID)
	if err != nil {
		return nil, nil, 0, time.Since(start), err
	}
	return full, windows, hash, time.Since(start), nil
}

// ListMonitors enumerates connected displays. Platforms without a native
// enumerator report a single synthetic primary display, matching the
// teacher's fallback for non-Windows multi-monitor support.
func ListMonitors() ([]MonitorInfo, error) {
	return platformListMonitors()
}

func imageHash(img *image.RGBA) uint64 {
	// FNV-1a over the raw pixel buffer. The core never recomputes or
	// interprets this value (spec §3) — it only needs to be cheap and
	// stable for identical pixel content, which FNV provides without the
	// allocation pressure of crypto hashes on multi-megapixel frames.
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, b := range img.Pix {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}

func errUnsupportedMonitor(id uint32) error {
	return fmt.Errorf("%w: monitor %d", ErrDisplayNotFound, id)
}
