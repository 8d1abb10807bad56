// Package vision implements the DifferenceScorer contract: a cheap,
// non-semantic measure of how much a candidate frame's pixel content has
// changed relative to a reference frame.
package vision

import (
	"image"
	"image/color"
)

// gridSize bounds the comparison cost to a fixed number of samples
// regardless of the source resolution, the same trade the corpus's
// frameDiffer family makes by hashing the raw buffer instead of walking
// every pixel with a tolerance window.
const gridSize = 32

// Scorer computes a novelty score in [0, 1] between two frames: 0 means
// pixel-identical (after downsampling), 1 means maximally different.
// Scorer holds no state and is safe for concurrent use.
type Scorer struct{}

// NewScorer returns a DifferenceScorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score returns the mean per-pixel absolute luminance difference between
// prev and next, normalized to [0, 1]. A nil prev (no reference frame yet)
// scores as maximal novelty, matching the "first frame always dispatches"
// policy downstream. Images of differing bounds also score as maximal
// novelty: a resolution change is itself significant new content, not
// something this scorer should try to register or crop around.
func (s *Scorer) Score(prev, next image.Image) float64 {
	if prev == nil || next == nil {
		return 1.0
	}
	if prev.Bounds().Dx() != next.Bounds().Dx() || prev.Bounds().Dy() != next.Bounds().Dy() {
		return 1.0
	}

	bounds := next.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0.0
	}

	cols := gridSize
	rows := gridSize
	if w < cols {
		cols = w
	}
	if h < rows {
		rows = h
	}

	var total float64
	var samples int
	for gy := 0; gy < rows; gy++ {
		y := bounds.Min.Y + (gy*h)/rows
		for gx := 0; gx < cols; gx++ {
			x := bounds.Min.X + (gx*w)/cols
			l1 := luminance(prev.At(x, y))
			l2 := luminance(next.At(x, y))
			diff := l1 - l2
			if diff < 0 {
				diff = -diff
			}
			total += diff
			samples++
		}
	}
	if samples == 0 {
		return 0.0
	}
	return total / float64(samples) / 255.0
}

// luminance converts a color to 8-bit grayscale via the standard Rec. 601
// perceptual weights, using the 16-bit RGBA() components Go's color.Color
// interface guarantees.
func luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	r8 := float64(r >> 8)
	g8 := float64(g >> 8)
	b8 := float64(b >> 8)
	return 0.299*r8 + 0.587*g8 + 0.114*b8
}
