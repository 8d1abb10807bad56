package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode"
)

var knownOCRBackends = map[string]bool{
	"unstructured":   true,
	"tesseract":      true,
	"windows_native": true,
	"apple_native":   true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates errors that must abort startup from ones that
// were auto-corrected and merely deserve a log line, mirroring how the
// corpus's two-tier config validators behave.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

// HasFatals reports whether any fatal error was recorded.
func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// AllErrors returns fatals followed by warnings, for callers that just want
// everything logged.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// ValidateTiered checks the config and returns fatal vs. warning errors.
// Dangerous zero/out-of-range values that would otherwise panic downstream
// (a zero capture interval, a zero-sized worker pool) are clamped to safe
// defaults and reported as warnings rather than failing startup.
func (c *Config) ValidateTiered() ValidationResult {
	var result ValidationResult

	if c.OCRBackend != "" && !knownOCRBackends[strings.ToLower(c.OCRBackend)] {
		result.Fatals = append(result.Fatals, fmt.Errorf("ocr_backend %q is not a recognized engine", c.OCRBackend))
	}

	if c.UnstructuredAPIURL != "" {
		u, err := url.Parse(c.UnstructuredAPIURL)
		if err != nil {
			result.Fatals = append(result.Fatals, fmt.Errorf("unstructured_api_url %q is not a valid URL: %w", c.UnstructuredAPIURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			result.Fatals = append(result.Fatals, fmt.Errorf("unstructured_api_url scheme must be http or https, got %q", u.Scheme))
		}
	}

	if c.UnstructuredAPIKey != "" {
		for _, r := range c.UnstructuredAPIKey {
			if unicode.IsControl(r) {
				result.Fatals = append(result.Fatals, fmt.Errorf("unstructured_api_key contains control characters"))
				break
			}
		}
	}

	if c.StreamListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.StreamListenAddr); err != nil {
			result.Fatals = append(result.Fatals, fmt.Errorf("stream_listen_addr %q is not host:port: %w", c.StreamListenAddr, err))
		}
	}

	// Clamp intervals to a safe range so a misconfigured zero doesn't spin
	// the capture loop or a negative duration panic time.Sleep/NewTimer.
	if c.CaptureIntervalMS < 10 {
		result.Warnings = append(result.Warnings, fmt.Errorf("capture_interval_ms %d is below minimum 10, clamping", c.CaptureIntervalMS))
		c.CaptureIntervalMS = 10
	} else if c.CaptureIntervalMS > 60_000 {
		result.Warnings = append(result.Warnings, fmt.Errorf("capture_interval_ms %d exceeds maximum 60000, clamping", c.CaptureIntervalMS))
		c.CaptureIntervalMS = 60_000
	}

	if c.DispatchWorkers < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("dispatch_workers %d is below minimum 1, clamping", c.DispatchWorkers))
		c.DispatchWorkers = 1
	} else if c.DispatchWorkers > 100 {
		result.Warnings = append(result.Warnings, fmt.Errorf("dispatch_workers %d exceeds maximum 100, clamping", c.DispatchWorkers))
		c.DispatchWorkers = 100
	}

	if c.DispatchQueueSize < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("dispatch_queue_size %d is below minimum 1, clamping", c.DispatchQueueSize))
		c.DispatchQueueSize = 1
	} else if c.DispatchQueueSize > 10_000 {
		result.Warnings = append(result.Warnings, fmt.Errorf("dispatch_queue_size %d exceeds maximum 10000, clamping", c.DispatchQueueSize))
		c.DispatchQueueSize = 10_000
	}

	if c.SaveTextFiles && c.TextSinkDir == "" {
		result.Warnings = append(result.Warnings, fmt.Errorf("save_text_files is set but text_sink_dir is empty, defaulting"))
		c.TextSinkDir = Default().TextSinkDir
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	return result
}
