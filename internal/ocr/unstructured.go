package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/screenpipe/agent/internal/httputil"
)

// unstructuredBackend calls a remote cloud OCR endpoint, retried with the
// same exponential-backoff helper the agent uses for its other outbound
// HTTP calls.
type unstructuredBackend struct {
	apiURL string
	apiKey string
	client *http.Client
}

func newUnstructuredBackend(cfg Config) *unstructuredBackend {
	return &unstructuredBackend{
		apiURL: cfg.UnstructuredAPIURL,
		apiKey: cfg.UnstructuredAPIKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type unstructuredResponse struct {
	Text      string              `json:"text"`
	TokenJSON []map[string]string `json:"token_json"`
}

func (b *unstructuredBackend) Recognize(ctx context.Context, img *image.RGBA) (string, string, error) {
	if b.apiURL == "" {
		return "", "", fmt.Errorf("unstructured: no API URL configured")
	}

	body, contentType, err := encodeMultipartPNG(img)
	if err != nil {
		return "", "", fmt.Errorf("unstructured: encode request: %w", err)
	}

	headers := http.Header{"Content-Type": []string{contentType}}
	if b.apiKey != "" {
		headers.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := httputil.Do(ctx, b.client, http.MethodPost, b.apiURL, body, headers, httputil.DefaultRetryConfig())
	if err != nil {
		return "", "", fmt.Errorf("unstructured: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unstructured: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("unstructured: read response: %w", err)
	}

	var parsed unstructuredResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", "", fmt.Errorf("unstructured: parse response: %w", err)
	}

	tokenJSON, err := json.Marshal(parsed.TokenJSON)
	if err != nil {
		return "", "", fmt.Errorf("unstructured: re-marshal token json: %w", err)
	}

	return parsed.Text, string(tokenJSON), nil
}

func encodeMultipartPNG(img *image.RGBA) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "frame.png")
	if err != nil {
		return nil, "", err
	}
	if err := png.Encode(part, img); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
