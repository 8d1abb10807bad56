// Package core holds the data model shared by the capture, vision, selector,
// ocr, dispatch, and pipeline packages. Keeping these types in one leaf
// package avoids import cycles between the components that produce them
// (capture), score them (vision), buffer them (selector), and consume them
// (dispatch).
package core

import (
	"image"
	"time"
)

// WindowImage is one top-level OS window captured alongside the full frame.
type WindowImage struct {
	Image      *image.RGBA
	AppName    string
	WindowName string
	Focused    bool
}

// FrameSample is the transient result of one capture tick.
type FrameSample struct {
	FullImage image.Image
	Windows   []WindowImage
	ImageHash uint64
}

// CandidateBest is the frame buffered by the selector: the best-scoring
// sample seen since the last dispatch.
type CandidateBest struct {
	FullImage    image.Image
	Windows      []WindowImage
	ImageHash    uint64
	FrameNumber  uint64
	Timestamp    time.Time
	Score        float64
}

// WindowOcrResult is the OCR outcome for a single window within a dispatch.
type WindowOcrResult struct {
	WindowName string
	AppName    string
	Image      *image.RGBA
	Text       string
	TextJSON   []map[string]string
	Focused    bool
}

// CaptureResult is published to the downstream consumer once OCR for a
// dispatched frame completes successfully.
type CaptureResult struct {
	Image            image.Image
	FrameNumber      uint64
	Timestamp        time.Time
	WindowOcrResults []WindowOcrResult
}
