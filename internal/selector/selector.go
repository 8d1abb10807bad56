// Package selector implements the FrameSelector state machine (spec §4.2):
// it buffers the best-scoring frame seen since the last dispatch and gates
// redundant work behind a fixed novelty threshold.
package selector

import (
	"sync"
	"time"

	"github.com/screenpipe/agent/internal/core"
)

// redundancyThreshold is the fixed novelty gate below which a frame is
// discarded outright once a previous frame exists. This is a design
// constant, not configuration: changing it changes the pipeline's
// work-amplification behavior, not its correctness.
const redundancyThreshold = 0.006

// Verdict is the outcome of offering a sample to the selector.
type Verdict int

const (
	// Skip means the sample was redundant and discarded.
	Skip Verdict = iota
	// Buffer means the sample was scored (and possibly became the new
	// best) but the dispatcher is not idle, so nothing is dispatch-eligible.
	Buffer
	// Eligible means a best candidate is buffered and the dispatcher is
	// idle: the caller should take it and attempt dispatch.
	Eligible
)

// Selector holds the per-dispatch-cycle state described in spec §4.2,
// including the frame_number counter itself: it counts frames since the
// last dispatch (spec §3 invariant I1), not since process start, so it
// lives here where it resets alongside the rest of the per-cycle state
// rather than in the caller's longer-lived tick loop.
type Selector struct {
	mu sync.Mutex

	hasPrevious         bool
	best                *core.CandidateBest
	bestScore           float64
	framesSinceDispatch uint64
}

// New returns a Selector with no previous image and no buffered candidate.
func New() *Selector {
	return &Selector{}
}

// Offer evaluates one FrameSample against the current best (spec §4.2).
// The frame's own frame_number is the selector's own frames-since-last-
// dispatch counter, stamped onto the CandidateBest if this sample becomes
// the new best (spec §3 invariant I1: it counts frames since the last
// dispatch, not since process start). dispatcherIdle reflects whether the
// OcrDispatcher can currently accept a new dispatch; it only affects the
// returned Verdict, never the scoring or buffering logic itself.
func (s *Selector) Offer(sample core.FrameSample, score float64, dispatcherIdle bool) Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()

	frameNumber := s.framesSinceDispatch
	s.framesSinceDispatch++

	if score < redundancyThreshold && s.hasPrevious {
		return Skip
	}

	if s.best == nil || score > s.bestScore {
		s.best = &core.CandidateBest{
			FullImage:   sample.FullImage,
			Windows:     sample.Windows,
			ImageHash:   sample.ImageHash,
			FrameNumber: frameNumber,
			Timestamp:   time.Now(),
			Score:       score,
		}
		s.bestScore = score
	}

	s.hasPrevious = true

	if dispatcherIdle {
		return Eligible
	}
	return Buffer
}

// TakeBest consumes and returns the buffered candidate, resetting best
// score and the frame_number counter to 0 (spec §3 invariant I1, spec §4.2;
// called by the loop at the moment a dispatch launches). Returns ok=false
// if nothing is buffered.
func (s *Selector) TakeBest() (core.CandidateBest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.best == nil {
		return core.CandidateBest{}, false
	}
	best := *s.best
	s.best = nil
	s.bestScore = 0.0
	s.framesSinceDispatch = 0
	return best, true
}

// SkipFrame advances the frame_number counter without offering a sample,
// for the capture-failure path (spec §9: the counter still advances on a
// failed capture; only a dispatch resets it).
func (s *Selector) SkipFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesSinceDispatch++
}

// FramesSinceDispatch reports the current frame_number counter — the same
// value the next Offer call would stamp onto a new best — exposed for
// tests verifying P5 (reset after dispatch).
func (s *Selector) FramesSinceDispatch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framesSinceDispatch
}

// BestScore reports the current best score, exposed for tests.
func (s *Selector) BestScore() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestScore
}
