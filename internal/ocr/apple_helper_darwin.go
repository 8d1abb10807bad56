//go:build darwin

package ocr

import (
	"context"
	"image"
	"image/png"
	"os"
	"os/exec"
)

// runVisionHelper writes img to a temp PNG and invokes the native helper,
// returning its raw stdout (the Apple-shaped OCR JSON payload).
func runVisionHelper(ctx context.Context, helperPath string, img *image.RGBA) ([]byte, error) {
	tmpFile, err := os.CreateTemp("", "screenpipe-ocr-*.png")
	if err != nil {
		return nil, err
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmpFile, img); err != nil {
		tmpFile.Close()
		return nil, err
	}
	if err := tmpFile.Close(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, helperPath, tmpPath)
	return cmd.Output()
}
