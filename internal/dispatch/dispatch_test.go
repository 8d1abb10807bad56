package dispatch

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/screenpipe/agent/internal/core"
)

type stubBackend struct {
	concurrent  atomic.Int32
	maxObserved atomic.Int32
	delay       time.Duration
}

func (b *stubBackend) Recognize(ctx context.Context, img *image.RGBA) (string, string, error) {
	cur := b.concurrent.Add(1)
	defer b.concurrent.Add(-1)
	for {
		max := b.maxObserved.Load()
		if cur <= max || b.maxObserved.CompareAndSwap(max, cur) {
			break
		}
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	return "text", `[]`, nil
}

type failingBackend struct{}

func (failingBackend) Recognize(ctx context.Context, img *image.RGBA) (string, string, error) {
	return "", "", errors.New("backend exploded")
}

func newCandidate(frameNumber uint64, numWindows int) core.CandidateBest {
	windows := make([]core.WindowImage, numWindows)
	for i := range windows {
		windows[i] = core.WindowImage{
			WindowName: "win",
			AppName:    "app",
			Image:      image.NewRGBA(image.Rect(0, 0, 2, 2)),
		}
	}
	return core.CandidateBest{
		FullImage:   image.NewRGBA(image.Rect(0, 0, 4, 4)),
		Windows:     windows,
		FrameNumber: frameNumber,
		Timestamp:   time.Now(),
	}
}

// P1: single-flight. A second TryDispatch while one is in flight is rejected.
func TestTryDispatchRejectsWhileRunning(t *testing.T) {
	backend := &stubBackend{delay: 100 * time.Millisecond}
	sink := make(chan core.CaptureResult, 1)
	d := New(nil, backend, false, nil, sink)

	ctx := context.Background()
	if !d.TryDispatch(ctx, newCandidate(0, 1)) {
		t.Fatalf("expected first TryDispatch to succeed")
	}
	if d.TryDispatch(ctx, newCandidate(1, 1)) {
		t.Fatalf("expected second TryDispatch to be rejected while busy")
	}

	select {
	case <-sink:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for first dispatch to complete")
	}

	// Gate should clear after completion.
	if !d.IsIdle() {
		t.Fatalf("expected dispatcher idle after completion")
	}
}

// S6: backend failure. No result published; gate clears; a later dispatch succeeds.
func TestBackendFailureClearsGateWithoutPublishing(t *testing.T) {
	sink := make(chan core.CaptureResult, 1)
	d := New(nil, failingBackend{}, false, nil, sink)

	ctx := context.Background()
	if !d.TryDispatch(ctx, newCandidate(0, 1)) {
		t.Fatalf("expected TryDispatch to succeed")
	}

	deadline := time.After(2 * time.Second)
	for !d.IsIdle() {
		select {
		case <-deadline:
			t.Fatalf("gate never cleared after backend failure")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	select {
	case <-sink:
		t.Fatalf("expected no result published after backend failure")
	default:
	}

	// A subsequent dispatch on the same dispatcher should be able to proceed.
	if !d.TryDispatch(ctx, newCandidate(1, 1)) {
		t.Fatalf("expected dispatch to succeed after prior failure cleared the gate")
	}
}
