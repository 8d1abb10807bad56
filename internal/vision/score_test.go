package vision

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestScoreNilPrevIsMaximalNovelty(t *testing.T) {
	s := NewScorer()
	next := solidImage(64, 64, color.White)
	if got := s.Score(nil, next); got != 1.0 {
		t.Fatalf("Score(nil, next) = %v, want 1.0", got)
	}
}

func TestScoreIdenticalImagesIsZero(t *testing.T) {
	s := NewScorer()
	img := solidImage(64, 64, color.RGBA{R: 120, G: 80, B: 40, A: 255})
	if got := s.Score(img, img); got != 0.0 {
		t.Fatalf("Score(img, img) = %v, want 0.0", got)
	}
}

func TestScoreDimensionMismatchIsMaximalNovelty(t *testing.T) {
	s := NewScorer()
	prev := solidImage(64, 64, color.White)
	next := solidImage(32, 32, color.White)
	if got := s.Score(prev, next); got != 1.0 {
		t.Fatalf("Score with mismatched bounds = %v, want 1.0", got)
	}
}

func TestScoreBlackToWhiteIsMaximal(t *testing.T) {
	s := NewScorer()
	prev := solidImage(64, 64, color.Black)
	next := solidImage(64, 64, color.White)
	got := s.Score(prev, next)
	if got < 0.99 {
		t.Fatalf("Score(black, white) = %v, want ~1.0", got)
	}
}

func TestScoreIsWithinUnitRange(t *testing.T) {
	s := NewScorer()
	prev := solidImage(48, 48, color.RGBA{R: 10, G: 200, B: 30, A: 255})
	next := solidImage(48, 48, color.RGBA{R: 240, G: 5, B: 220, A: 255})
	got := s.Score(prev, next)
	if got < 0 || got > 1 {
		t.Fatalf("Score = %v, want in [0,1]", got)
	}
}
