package ocr

import (
	"errors"
	"testing"
)

func TestResolveUnsupportedEngine(t *testing.T) {
	_, err := Resolve(Engine("not_a_real_engine"), Config{})
	if !errors.Is(err, ErrUnsupportedEngine) {
		t.Fatalf("err = %v, want ErrUnsupportedEngine", err)
	}
}

func TestResolveTesseractAndUnstructuredAlwaysAvailable(t *testing.T) {
	if _, err := Resolve(Tesseract, Config{}); err != nil {
		t.Fatalf("Resolve(Tesseract) = %v, want nil error", err)
	}
	if _, err := Resolve(Unstructured, Config{}); err != nil {
		t.Fatalf("Resolve(Unstructured) = %v, want nil error", err)
	}
}
