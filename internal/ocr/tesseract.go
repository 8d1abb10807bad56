package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strings"
)

// tesseractBackend shells out to the tesseract CLI, the same approach the
// corpus's standalone OCR examples use rather than binding the C library
// directly (see DESIGN.md).
type tesseractBackend struct {
	cmd      string
	language string
}

func newTesseractBackend(cfg Config) *tesseractBackend {
	cmd := cfg.TesseractPath
	if cmd == "" {
		if env := strings.TrimSpace(os.Getenv("TESSERACT_CMD")); env != "" {
			cmd = env
		} else {
			cmd = "tesseract"
		}
	}
	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	return &tesseractBackend{cmd: cmd, language: lang}
}

func (b *tesseractBackend) Recognize(ctx context.Context, img *image.RGBA) (string, string, error) {
	tmpFile, err := os.CreateTemp("", "screenpipe-ocr-*.png")
	if err != nil {
		return "", "", fmt.Errorf("tesseract: create temp image: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmpFile, img); err != nil {
		tmpFile.Close()
		return "", "", fmt.Errorf("tesseract: encode temp image: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", "", fmt.Errorf("tesseract: close temp image: %w", err)
	}

	text, err := b.runText(ctx, tmpPath)
	if err != nil {
		return "", "", err
	}

	tokenJSON, err := b.runTSV(ctx, tmpPath)
	if err != nil {
		// TSV extraction is best-effort: a plain-text result without
		// positional tokens is still a usable WindowOcrResult.
		log.Warn("tesseract tsv extraction failed", "error", err)
		tokenJSON = "[]"
	}

	return text, tokenJSON, nil
}

func (b *tesseractBackend) runText(ctx context.Context, imagePath string) (string, error) {
	out, err := b.run(ctx, imagePath, "stdout", "-l", b.language,
		"--psm", "3", "--oem", "1")
	if err == nil {
		return strings.TrimSpace(string(out)), nil
	}

	out, err = b.run(ctx, imagePath, "stdout", "-l", b.language, "--psm", "6", "--oem", "1")
	if err == nil {
		return strings.TrimSpace(string(out)), nil
	}

	out, err = b.run(ctx, imagePath, "stdout", "-l", b.language)
	if err != nil {
		msg := string(out)
		if strings.Contains(msg, "language") {
			return "", fmt.Errorf("tesseract: unsupported language %q: %w", b.language, err)
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, msg)
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *tesseractBackend) runTSV(ctx context.Context, imagePath string) (string, error) {
	out, err := b.run(ctx, imagePath, "stdout", "-l", b.language, "tsv")
	if err != nil {
		return "", fmt.Errorf("tesseract tsv: %w", err)
	}
	return tsvToTokenJSON(out), nil
}

func (b *tesseractBackend) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, b.cmd, args...)
	return cmd.CombinedOutput()
}

// tsvToTokenJSON converts tesseract's `tsv` output config into the uniform
// token-JSON schema (spec §6): level, page_num, block_num, par_num,
// line_num, word_num, left, top, width, height, conf, text, all as strings.
func tsvToTokenJSON(tsv []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(tsv))
	var b strings.Builder
	b.WriteByte('[')
	first := true
	headerSkipped := false
	for scanner.Scan() {
		line := scanner.Text()
		if !headerSkipped {
			headerSkipped = true
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&b, `{"level":%q,"page_num":%q,"block_num":%q,"par_num":%q,"line_num":%q,"word_num":%q,"left":%q,"top":%q,"width":%q,"height":%q,"conf":%q,"text":%q}`,
			cols[0], cols[1], cols[2], cols[3], cols[4], cols[5], cols[6], cols[7], cols[8], cols[9], cols[10], text)
	}
	b.WriteByte(']')
	return b.String()
}
