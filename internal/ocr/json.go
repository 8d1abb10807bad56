package ocr

import "encoding/json"

// ParseTokenJSON parses a backend's uniform token-JSON string into the
// sequence of string-valued mappings the core wants (spec §6/§7). A parse
// failure yields an empty sequence and is logged; it never aborts the
// caller's OCR task.
func ParseTokenJSON(raw string) []map[string]string {
	if raw == "" {
		return nil
	}
	var tokens []map[string]string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		log.Warn("token json parse failed", "error", err)
		return nil
	}
	return tokens
}
