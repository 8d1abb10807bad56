// Package ocr provides the pluggable OcrBackend variants (spec §6): each
// maps one image to (text, token_json). Variant selection is a closed set;
// requesting an unknown or platform-unavailable variant is an error, never
// a panic.
package ocr

import (
	"context"
	"errors"
	"image"

	"github.com/screenpipe/agent/internal/logging"
)

var log = logging.L("ocr")

// Engine names the OCR backend a CaptureResult dispatch should use.
type Engine string

const (
	Unstructured  Engine = "unstructured"
	Tesseract     Engine = "tesseract"
	WindowsNative Engine = "windows_native"
	AppleNative   Engine = "apple_native"
)

// ErrUnsupportedEngine is returned for any engine value outside the closed
// set, or for a platform-only variant requested on the wrong platform.
var ErrUnsupportedEngine = errors.New("unsupported OCR engine")

// Backend maps one image to (text, token_json) per spec §6.
type Backend interface {
	Recognize(ctx context.Context, img *image.RGBA) (text string, tokenJSON string, err error)
}

// Resolve returns the Backend for the requested engine, or
// ErrUnsupportedEngine if the engine is unknown or unavailable on this
// build. cfg supplies the settings each concrete backend needs (API
// endpoint/key for Unstructured); backends that need nothing from it
// ignore unused fields.
func Resolve(engine Engine, cfg Config) (Backend, error) {
	switch engine {
	case Unstructured:
		return newUnstructuredBackend(cfg), nil
	case Tesseract:
		return newTesseractBackend(cfg), nil
	case WindowsNative:
		return newWindowsNativeBackend(cfg)
	case AppleNative:
		return newAppleNativeBackend(cfg)
	default:
		return nil, ErrUnsupportedEngine
	}
}

// Config carries the settings any concrete backend may need.
type Config struct {
	UnstructuredAPIURL string
	UnstructuredAPIKey string
	TesseractPath      string
	Language           string
}
