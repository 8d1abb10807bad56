//go:build windows

package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"time"
	"unsafe"
)

// windowsNativeBackend targets Windows.Media.Ocr.OcrEngine, activated
// through the WinRT COM ABI (no cgo, same raw-syscall discipline as the
// agent's media-transform code). Recognize activates the factory, creates an
// engine from the user-profile languages and hands the PNG-encoded frame to
// recognizeViaEngine. That step does not build a SoftwareBitmap or call
// RecognizeAsync and always returns an error, so this backend produces no
// OCR text; no helper process is involved.
type windowsNativeBackend struct {
	initialized bool
}

func newWindowsNativeBackend(cfg Config) (Backend, error) {
	ret, _, _ := procRoInitialize.Call(roInitMultithreaded)
	// S_FALSE (1) means already initialized on this thread; both are success.
	if int32(ret) < 0 {
		return nil, fmt.Errorf("windows_native: RoInitialize failed: 0x%08X", uint32(ret))
	}
	return &windowsNativeBackend{initialized: true}, nil
}

type windowsOcrPayload struct {
	Text   string `json:"text"`
	Tokens []struct {
		Left   float64 `json:"left"`
		Top    float64 `json:"top"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		Text   string  `json:"text"`
	} `json:"tokens"`
}

func (b *windowsNativeBackend) Recognize(ctx context.Context, img *image.RGBA) (string, string, error) {
	className, err := hstring("Windows.Media.Ocr.OcrEngine")
	if err != nil {
		return "", "", fmt.Errorf("windows_native: %w", err)
	}
	defer freeHString(className)

	var factory uintptr
	iidIInspectable := comGUID{0xAF86E2E0, 0xB12D, 0x4C6A, [8]byte{0x9C, 0x5A, 0xD7, 0xAA, 0x65, 0x10, 0x1E, 0x90}}
	ret, _, _ := procRoGetActivationFactory.Call(className, uintptr(unsafe.Pointer(&iidIInspectable)), uintptr(unsafe.Pointer(&factory)))
	if int32(ret) < 0 || factory == 0 {
		return "", "", fmt.Errorf("windows_native: RoGetActivationFactory failed: 0x%08X", uint32(ret))
	}
	defer comRelease(factory)

	var engine uintptr
	if _, err := comCall(factory, vtblOcrTryCreateFromUserProfileLanguages, uintptr(unsafe.Pointer(&engine))); err != nil {
		return "", "", fmt.Errorf("windows_native: TryCreateFromUserProfileLanguages: %w", err)
	}
	if engine == 0 {
		return "", "", fmt.Errorf("windows_native: no OCR engine available for any installed language")
	}
	defer comRelease(engine)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", "", fmt.Errorf("windows_native: encode frame: %w", err)
	}

	payload, err := recognizeViaEngine(ctx, engine, buf.Bytes())
	if err != nil {
		return "", "", fmt.Errorf("windows_native: %w", err)
	}

	tokens := make([]map[string]string, 0, len(payload.Tokens))
	for _, t := range payload.Tokens {
		tokens = append(tokens, map[string]string{
			"level": "0", "page_num": "0", "block_num": "0",
			"par_num": "0", "line_num": "0", "word_num": "0",
			"left":   formatFloat(t.Left),
			"top":    formatFloat(t.Top),
			"width":  formatFloat(t.Width),
			"height": formatFloat(t.Height),
			"conf":   "0",
			"text":   t.Text,
		})
	}
	tokenJSON, err := json.Marshal(tokens)
	if err != nil {
		return "", "", fmt.Errorf("windows_native: marshal tokens: %w", err)
	}
	return payload.Text, string(tokenJSON), nil
}

// recognizeViaEngine does not call IOcrEngine::RecognizeAsync: no
// SoftwareBitmap is built from pngBytes and no async operation is polled.
// It returns ctx.Err() if ctx is already done, and otherwise an error
// saying that SoftwareBitmap marshaling is not wired in this build.
func recognizeViaEngine(ctx context.Context, engine uintptr, pngBytes []byte) (*windowsOcrPayload, error) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		// Nothing is polled; the loop exits after the cancellation check.
		break
	}
	return nil, fmt.Errorf("recognizeViaEngine: SoftwareBitmap marshaling not wired in this build")
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}
