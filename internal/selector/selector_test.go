package selector

import (
	"testing"

	"github.com/screenpipe/agent/internal/core"
)

func sampleWithHash(hash uint64) core.FrameSample {
	return core.FrameSample{ImageHash: hash}
}

// P2: first-frame dispatch. Score forced to 1.0 by the caller when no
// previous image exists yet; the selector must still treat it as eligible.
func TestFirstFrameIsEligible(t *testing.T) {
	s := New()
	verdict := s.Offer(sampleWithHash(1), 1.0, true)
	if verdict != Eligible {
		t.Fatalf("verdict = %v, want Eligible", verdict)
	}
	best, ok := s.TakeBest()
	if !ok {
		t.Fatalf("expected a buffered candidate")
	}
	if best.FrameNumber != 0 {
		t.Fatalf("FrameNumber = %d, want 0", best.FrameNumber)
	}
}

// P3: redundancy gate. Once a previous frame exists, scores below the
// threshold are skipped and never become best, even if dispatch is idle.
func TestRedundancyGateSkipsLowScores(t *testing.T) {
	s := New()
	s.Offer(sampleWithHash(1), 1.0, true)
	s.TakeBest()

	for i := uint64(1); i <= 100; i++ {
		verdict := s.Offer(sampleWithHash(1), 0.001, true)
		if verdict != Skip {
			t.Fatalf("iteration %d: verdict = %v, want Skip", i, verdict)
		}
	}
	if _, ok := s.TakeBest(); ok {
		t.Fatalf("expected no buffered candidate after an all-skip sequence")
	}
}

// P4: best election. Across a sequence of non-skipped samples the
// dispatched candidate's score is the maximum seen.
func TestBestElectionPicksMaximumScore(t *testing.T) {
	s := New()
	scores := []float64{0.01, 0.05, 0.03, 0.02}
	var verdict Verdict
	for i, sc := range scores {
		verdict = s.Offer(sampleWithHash(uint64(i)), sc, false)
	}
	if verdict != Buffer {
		t.Fatalf("verdict = %v, want Buffer (dispatcher busy)", verdict)
	}
	best, ok := s.TakeBest()
	if !ok {
		t.Fatalf("expected a buffered candidate")
	}
	if best.Score != 0.05 {
		t.Fatalf("Score = %v, want 0.05", best.Score)
	}
}

// Strict > tie-break: an equal score does not replace the existing best.
func TestTieBreakFavorsEarlierCandidate(t *testing.T) {
	s := New()
	s.Offer(sampleWithHash(1), 0.5, false)
	s.Offer(sampleWithHash(2), 0.5, false)
	best, ok := s.TakeBest()
	if !ok {
		t.Fatalf("expected a buffered candidate")
	}
	if best.ImageHash != 1 {
		t.Fatalf("ImageHash = %d, want 1 (earlier candidate should win tie)", best.ImageHash)
	}
}

// P5: reset after dispatch. Taking the best resets best score and the
// per-dispatch frame counter.
func TestTakeBestResetsState(t *testing.T) {
	s := New()
	s.Offer(sampleWithHash(1), 0.9, false)
	s.Offer(sampleWithHash(2), 0.1, false)
	if _, ok := s.TakeBest(); !ok {
		t.Fatalf("expected a buffered candidate")
	}
	if got := s.BestScore(); got != 0.0 {
		t.Fatalf("BestScore after TakeBest = %v, want 0.0", got)
	}
	if got := s.FramesSinceDispatch(); got != 0 {
		t.Fatalf("FramesSinceDispatch after TakeBest = %d, want 0", got)
	}
}

func TestEligibleOnlyWhenDispatcherIdle(t *testing.T) {
	s := New()
	verdict := s.Offer(sampleWithHash(1), 0.9, false)
	if verdict != Buffer {
		t.Fatalf("verdict = %v, want Buffer when dispatcher busy", verdict)
	}
}

// I1: frame_number counts frames since the last dispatch, not since
// process start, so the same stamped value legitimately recurs across
// dispatch cycles.
func TestFrameNumberCountsSinceLastDispatch(t *testing.T) {
	s := New()

	s.Offer(sampleWithHash(1), 1.0, true)
	first, ok := s.TakeBest()
	if !ok {
		t.Fatalf("expected a buffered candidate")
	}
	if first.FrameNumber != 0 {
		t.Fatalf("first dispatch FrameNumber = %d, want 0", first.FrameNumber)
	}

	s.Offer(sampleWithHash(2), 0.5, true) // frame_number 0 again, post-reset
	s.Offer(sampleWithHash(3), 0.8, true) // frame_number 1, becomes best
	second, ok := s.TakeBest()
	if !ok {
		t.Fatalf("expected a second buffered candidate")
	}
	if second.FrameNumber != 1 {
		t.Fatalf("second dispatch FrameNumber = %d, want 1 (reset after first dispatch)", second.FrameNumber)
	}
}
