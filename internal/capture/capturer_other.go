//go:build !windows

package capture

import (
	"image"

	"github.com/screenpipe/agent/internal/core"
)

// Non-Windows builds have no cgo-free capture primitive available, mirroring
// the teacher's capture_linux_nocgo.go / capture_darwin_nocgo.go, which both
// report ErrNotSupported rather than silently degrading.
func platformCapture(monitorID uint32) (image.Image, []core.WindowImage, uint64, error) {
	return nil, nil, 0, ErrNotSupported
}

func platformListMonitors() ([]MonitorInfo, error) {
	return []MonitorInfo{{
		ID:        0,
		Name:      "default",
		Width:     0,
		Height:    0,
		IsPrimary: true,
	}}, nil
}
