// Package dispatch implements the OcrDispatcher (spec §4.3): an
// at-most-one-in-flight gate around OCR execution, fanning per-window work
// out across a bounded worker pool and publishing an assembled
// CaptureResult to a result sink.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/screenpipe/agent/internal/core"
	"github.com/screenpipe/agent/internal/logging"
	"github.com/screenpipe/agent/internal/ocr"
	"github.com/screenpipe/agent/internal/workerpool"
)

var log = logging.L("dispatch")

// TextSink is the optional save-text-files hook (spec §6). It keeps the
// two text slots (window and frame); the dispatcher passes the window's
// tokens in both. The interface has no audio argument.
type TextSink interface {
	Save(id uint64, windowTextJSON, frameTextJSON []map[string]string) error
}

// Dispatcher enforces the single-flight OCR gate described in spec §4.3.
type Dispatcher struct {
	running      atomic.Bool
	pool         *workerpool.Pool
	backend      ocr.Backend
	saveText     bool
	textSink     TextSink
	resultSink   chan<- core.CaptureResult
	dispatchSeq  atomic.Uint64 // counts dispatches for log lines; not part of save-hook ids
}

// New constructs a Dispatcher. pool fans per-window OCR calls out
// concurrently within a single dispatch; backend is the selected OcrBackend
// variant; resultSink is the bounded channel CaptureResults are published
// on; textSink may be nil if save_text_files is disabled.
func New(pool *workerpool.Pool, backend ocr.Backend, saveText bool, textSink TextSink, resultSink chan<- core.CaptureResult) *Dispatcher {
	return &Dispatcher{
		pool:       pool,
		backend:    backend,
		saveText:   saveText,
		textSink:   textSink,
		resultSink: resultSink,
	}
}

// IsIdle reports whether the dispatch gate is currently clear.
func (d *Dispatcher) IsIdle() bool {
	return !d.running.Load()
}

// TryDispatch attempts to launch an OCR task for best (spec §4.3). Returns
// false immediately if a dispatch is already in flight; the caller must
// treat a true return as "the dispatcher now owns best". ctx bounds the
// window-level OCR fan-out and the result-sink send, not the outer capture
// loop's lifetime.
func (d *Dispatcher) TryDispatch(ctx context.Context, best core.CandidateBest) bool {
	if !d.running.CompareAndSwap(false, true) {
		return false
	}

	go d.run(ctx, best)
	return true
}

func (d *Dispatcher) run(ctx context.Context, best core.CandidateBest) {
	defer d.running.Store(false)

	seq := d.dispatchSeq.Add(1)

	results := make([]core.WindowOcrResult, len(best.Windows))
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex

	for i, win := range best.Windows {
		i, win := i, win
		wg.Add(1)
		task := func() {
			defer wg.Done()
			text, tokenJSON, err := d.backend.Recognize(ctx, win.Image)
			if err != nil {
				log.Error("ocr backend failed", "window", win.WindowName, "error", err)
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}

			tokens := ocr.ParseTokenJSON(tokenJSON)
			results[i] = core.WindowOcrResult{
				WindowName: win.WindowName,
				AppName:    win.AppName,
				Image:      win.Image,
				Text:       text,
				TextJSON:   tokens,
				Focused:    win.Focused,
			}

			if d.saveText && d.textSink != nil {
				id := best.FrameNumber*1000 + uint64(i)
				// The second argument slot is reserved for frame-level OCR,
				// which this core never performs; it duplicates the window
				// slot, matching the documented source behavior.
				if err := d.textSink.Save(id, tokens, tokens); err != nil {
					log.Warn("text sink save failed", "id", id, "error", err)
				}
			}
		}

		if d.pool != nil {
			if !d.pool.Submit(task) {
				log.Warn("dispatch worker pool rejected task, running inline", "window", win.WindowName)
				task()
			}
		} else {
			task()
		}
	}

	wg.Wait()

	if firstErr != nil {
		log.Error("dispatch aborted due to ocr failure", "dispatchSeq", seq, "error", firstErr)
		return
	}

	result := core.CaptureResult{
		Image:            best.FullImage,
		FrameNumber:      best.FrameNumber,
		Timestamp:        best.Timestamp,
		WindowOcrResults: results,
	}

	select {
	case d.resultSink <- result:
	case <-ctx.Done():
		log.Error("sink send failed", "error", fmt.Errorf("context done: %w", ctx.Err()))
	}
}
