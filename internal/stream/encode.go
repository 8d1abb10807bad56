package stream

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
)

func encodePNGBase64(img image.Image) string {
	if img == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Warn("encode image failed", "error", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func encodeRGBABase64(img *image.RGBA) string {
	if img == nil {
		return ""
	}
	return encodePNGBase64(img)
}
