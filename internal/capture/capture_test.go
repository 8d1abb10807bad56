package capture

import (
	"image"
	"testing"
)

func TestImageHashStableForIdenticalPixels(t *testing.T) {
	img1 := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img2 := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img1.Pix {
		img1.Pix[i] = byte(i)
		img2.Pix[i] = byte(i)
	}

	if imageHash(img1) != imageHash(img2) {
		t.Fatalf("expected identical pixel buffers to hash equal")
	}
}

func TestImageHashDiffersOnContentChange(t *testing.T) {
	img1 := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img2 := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img1.Pix {
		img1.Pix[i] = byte(i)
		img2.Pix[i] = byte(i)
	}
	img2.Pix[0] ^= 0xFF

	if imageHash(img1) == imageHash(img2) {
		t.Fatalf("expected differing pixel buffers to hash differently")
	}
}

func TestListMonitorsReturnsAtLeastOne(t *testing.T) {
	monitors, err := ListMonitors()
	if err != nil {
		t.Fatalf("ListMonitors: %v", err)
	}
	if len(monitors) == 0 {
		t.Fatalf("expected at least one monitor")
	}
	if !monitors[0].IsPrimary {
		t.Fatalf("expected first monitor to be primary")
	}
}
