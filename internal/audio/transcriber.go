// internal/audio/transcriber.go
package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// Limits imposed by the transcription provider.
const (
	MaxFileSize = 25 * 1024 * 1024 // 25 MB
)

var supportedFormats = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".webm": true,
	".ogg":  true,
	".flac": true,
}

// Transcription is the result of transcribing one audio file.
type Transcription struct {
	Text            string
	DurationSeconds float64
	Language        string
	Filename        string
}

// Transcriber calls a Whisper-compatible HTTP transcription endpoint.
type Transcriber struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

// NewTranscriber creates a transcription client.
func NewTranscriber(apiURL, apiKey, model string) *Transcriber {
	return &Transcriber{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{
			Timeout: 120 * time.Second, // long files take a while
		},
	}
}

// Transcribe converts audio bytes to text. Rejects unsupported formats
// and oversized files before calling the provider.
func (t *Transcriber) Transcribe(ctx context.Context, data []byte, filename string) (*Transcription, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("audio data cannot be empty")
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("audio file too large: %d bytes (max %d)", len(data), MaxFileSize)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !supportedFormats[ext] {
		return nil, fmt.Errorf("unsupported audio format: %s", ext)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.apiURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("transcription API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Text     string  `json:"text"`
		Duration float64 `json:"duration"`
		Language string  `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if strings.TrimSpace(result.Text) == "" {
		return nil, fmt.Errorf("transcription returned empty text")
	}

	return &Transcription{
		Text:            result.Text,
		DurationSeconds: result.Duration,
		Language:        result.Language,
		Filename:        filename,
	}, nil
}
