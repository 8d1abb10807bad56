//go:build darwin

package ocr

import (
	"context"
	"fmt"
	"image"
)

// appleNativeBackend shells out to a small Swift/Vision-framework helper
// binary that performs OCR and prints the raw Apple-shaped JSON payload on
// stdout; this package only owns the transcoding step (apple_transcode.go),
// which is platform-independent and unit-tested directly.
type appleNativeBackend struct {
	helperPath string
}

func newAppleNativeBackend(cfg Config) (*appleNativeBackend, error) {
	return &appleNativeBackend{helperPath: "screenpipe-vision-helper"}, nil
}

func (b *appleNativeBackend) Recognize(ctx context.Context, img *image.RGBA) (string, string, error) {
	raw, err := runVisionHelper(ctx, b.helperPath, img)
	if err != nil {
		return "", "", fmt.Errorf("apple_native: %w", err)
	}
	text, tokenJSON := transcodeAppleJSON(raw)
	return text, tokenJSON, nil
}
