package ocr

import (
	"encoding/json"
	"strconv"
)

// appleRawResult mirrors the platform-shaped JSON the Apple Vision helper
// emits before normalization (spec §6).
type appleRawResult struct {
	OcrResult    string            `json:"ocrResult"`
	TextElements []appleRawElement `json:"textElements"`
}

type appleRawElement struct {
	BoundingBox appleBoundingBox `json:"boundingBox"`
	Confidence  json.Number      `json:"confidence"`
	Text        string           `json:"text"`
}

type appleBoundingBox struct {
	X      json.Number `json:"x"`
	Y      json.Number `json:"y"`
	Width  json.Number `json:"width"`
	Height json.Number `json:"height"`
}

// transcodeAppleJSON converts one raw Apple-native OCR payload into the
// uniform token-JSON schema (spec §6): a JSON array of objects with
// string-valued fields level, page_num, block_num, par_num, line_num,
// word_num (always "0"), left/top/width/height/conf (stringified decimals),
// and text. Missing numeric fields default to "0" and a missing text to "".
// Fields are not defaulted one by one when they have the wrong JSON type:
// a payload that is not valid JSON, or that has any field of the wrong type
// (for example a non-numeric confidence), yields empty text and an empty
// array. This never returns an error to the caller.
func transcodeAppleJSON(raw []byte) (text string, tokenJSON string) {
	var parsed appleRawResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Warn("apple ocr payload parse failed", "error", err)
		return "", "[]"
	}

	tokens := make([]map[string]string, 0, len(parsed.TextElements))
	for _, el := range parsed.TextElements {
		tokens = append(tokens, map[string]string{
			"level":     "0",
			"page_num":  "0",
			"block_num": "0",
			"par_num":   "0",
			"line_num":  "0",
			"word_num":  "0",
			"left":      numberOrZero(el.BoundingBox.X),
			"top":       numberOrZero(el.BoundingBox.Y),
			"width":     numberOrZero(el.BoundingBox.Width),
			"height":    numberOrZero(el.BoundingBox.Height),
			"conf":      numberOrZero(el.Confidence),
			"text":      el.Text,
		})
	}

	out, err := json.Marshal(tokens)
	if err != nil {
		log.Warn("apple ocr token json marshal failed", "error", err)
		return parsed.OcrResult, "[]"
	}
	return parsed.OcrResult, string(out)
}

// numberOrZero stringifies a json.Number field, defaulting to "0" when the
// source field was absent or does not fit a float64 (a non-numeric value
// already fails the json.Unmarshal in transcodeAppleJSON) — mirroring
// `as_f64().unwrap_or(0.0)` in the source this schema was distilled from.
func numberOrZero(n json.Number) string {
	if n == "" {
		return "0"
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
