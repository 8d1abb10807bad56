// Package textsink implements the one text-persistence hook the core
// allows (spec §6): writing a window's recognized token JSON to disk,
// keyed by the synthetic save-hook id the dispatcher computes.
package textsink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/screenpipe/agent/internal/logging"
)

var log = logging.L("textsink")

// document is the on-disk shape for one save-hook call. frameTextJSON
// currently duplicates windowTextJSON (spec §9): the core has no full-frame
// OCR step, but the hook's two-argument shape is preserved.
type document struct {
	WindowTextJSON []map[string]string `json:"window_text_json"`
	FrameTextJSON  []map[string]string `json:"frame_text_json"`
}

// Sink writes one JSON document per Save call to dir/<id>.json, using a
// write-to-temp-then-rename sequence so a crash mid-write never leaves a
// partial file for a downstream reader.
type Sink struct {
	dir string
}

// New returns a Sink rooted at dir. dir is created if it does not exist.
func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("textsink: create dir: %w", err)
	}
	return &Sink{dir: dir}, nil
}

// Save implements dispatch.TextSink. Errors are the caller's to log and
// swallow per spec §6; Save itself always returns a real error value so
// the caller can decide.
func (s *Sink) Save(id uint64, windowTextJSON, frameTextJSON []map[string]string) error {
	doc := document{WindowTextJSON: windowTextJSON, FrameTextJSON: frameTextJSON}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("textsink: marshal: %w", err)
	}

	finalPath := filepath.Join(s.dir, fmt.Sprintf("%d.json", id))
	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf(".%d-*.json.tmp", id))
	if err != nil {
		return fmt.Errorf("textsink: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("textsink: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("textsink: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("textsink: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("textsink: rename into place: %w", err)
	}

	log.Debug("saved text document", "id", id, "path", finalPath)
	return nil
}
