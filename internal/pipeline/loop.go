// Package pipeline implements the CaptureLoop (spec §4.4): the long-lived
// orchestration task that drives capture, scoring, selection, and dispatch
// at a fixed tick interval.
package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/screenpipe/agent/internal/core"
	"github.com/screenpipe/agent/internal/health"
	"github.com/screenpipe/agent/internal/logging"
	"github.com/screenpipe/agent/internal/selector"
)

var log = logging.L("pipeline")

// FrameSource is the capture collaborator; capture.Capturer satisfies it.
type FrameSource interface {
	Capture(monitorID uint32) (full image.Image, windows []core.WindowImage, imageHash uint64, captureDuration time.Duration, err error)
}

// Scorer is the DifferenceScorer collaborator; vision.Scorer satisfies it.
type Scorer interface {
	Score(prev, next image.Image) float64
}

// Dispatcher is the OcrDispatcher collaborator; dispatch.Dispatcher
// satisfies it.
type Dispatcher interface {
	IsIdle() bool
	TryDispatch(ctx context.Context, best core.CandidateBest) bool
}

// Config are the fixed-at-construction parameters spec §4.4 lists.
type Config struct {
	MonitorID uint32
	Interval  time.Duration
}

// Loop is the CaptureLoop (C6). The frame_number stamped onto each
// candidate is owned by the selector, not the loop (spec §3 invariant I1:
// it counts frames since the last dispatch, not since process start); the
// loop only owns the "frames skipped by the redundancy gate" diagnostic
// counter.
type Loop struct {
	cfg    Config
	source FrameSource
	scorer Scorer
	sel    *selector.Selector
	disp   Dispatcher
	health *health.Monitor

	skippedFrames uint64
	previous      image.Image
}

// New constructs a Loop. health may be nil if the caller does not want
// health reporting wired in.
func New(cfg Config, source FrameSource, scorer Scorer, sel *selector.Selector, disp Dispatcher, hm *health.Monitor) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Loop{
		cfg:    cfg,
		source: source,
		scorer: scorer,
		sel:    sel,
		disp:   disp,
		health: hm,
	}
}

// SkippedFrames reports how many ticks the redundancy gate discarded,
// exposed for diagnostics and tests.
func (l *Loop) SkippedFrames() uint64 {
	return l.skippedFrames
}

// Run drives the loop until ctx is cancelled. Cancellation is cooperative
// (spec §5): an in-flight OCR dispatch launched via TryDispatch is not
// killed, only the loop's own tick scheduling stops.
func (l *Loop) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			log.Info("capture loop stopping", "reason", ctx.Err())
			return
		}
		l.tick(ctx)
		if !l.sleep(ctx) {
			return
		}
	}
}

// tick runs one iteration of the algorithm in spec §4.4.
func (l *Loop) tick(ctx context.Context) {
	full, windows, imageHash, captureDuration, err := l.source.Capture(l.cfg.MonitorID)
	if err != nil {
		log.Warn("capture failed", "monitorId", l.cfg.MonitorID, "error", err)
		l.reportHealth("capture", health.Degraded, err.Error())
		l.sel.SkipFrame()
		return
	}
	l.reportHealth("capture", health.Healthy, "")
	log.Debug("capture ok", "monitorId", l.cfg.MonitorID, "durationMs", captureDuration.Milliseconds())

	score := l.scoreFrame(full)

	sample := core.FrameSample{
		FullImage: full,
		Windows:   windows,
		ImageHash: imageHash,
	}

	verdict := l.sel.Offer(sample, score, l.disp.IsIdle())
	l.previous = full

	switch verdict {
	case selector.Skip:
		l.skippedFrames++
		return
	case selector.Eligible:
		l.launchDispatch(ctx)
	case selector.Buffer:
		// best buffered, dispatcher busy; nothing to do this tick.
	}
}

// scoreFrame computes the novelty score. With no previous frame the score is
// forced to 1.0 without consulting the scorer. The Scorer interface has no
// error return, so there is no error fallback to 0.0 here.
func (l *Loop) scoreFrame(full image.Image) float64 {
	if l.previous == nil {
		return 1.0
	}
	return l.scorer.Score(l.previous, full)
}

func (l *Loop) launchDispatch(ctx context.Context) {
	best, ok := l.sel.TakeBest()
	if !ok {
		return
	}
	// The dispatch gets a context detached from the loop's cancellation so
	// that stopping the loop does not abort an in-flight OCR task.
	if l.disp.TryDispatch(context.WithoutCancel(ctx), best) {
		l.reportHealth("ocr", health.Healthy, "")
		return
	}
	// Lost the race to another tick between IsIdle() and TryDispatch(); the
	// candidate is simply dropped, matching the at-most-one-in-flight
	// semantics (it will be re-buffered on the next novel frame).
	log.Debug("dispatch attempt lost the gate race", "frameNumber", best.FrameNumber)
}

// sleep waits out the tick interval or returns false if ctx is cancelled
// first.
func (l *Loop) sleep(ctx context.Context) bool {
	timer := time.NewTimer(l.cfg.Interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *Loop) reportHealth(name string, status health.Status, message string) {
	if l.health == nil {
		return
	}
	l.health.Update(name, status, message)
}
