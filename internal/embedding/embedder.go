// internal/embedding/embedder.go
package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"carevault/internal/breaker"
)

// Embedding space dimensions. Text, document, and audio memories share
// the 384-dim sentence space; images use the 512-dim CLIP space.
const (
	TextDimension  = 384
	ImageDimension = 512
)

// TextEmbedder calls an OpenAI-compatible embeddings endpoint that
// serves all-MiniLM-L6-v2 vectors.
type TextEmbedder struct {
	apiURL  string
	model   string
	client  *http.Client
	breaker *breaker.Breaker
}

// NewTextEmbedder creates a text embedding client.
func NewTextEmbedder(apiURL, model string) *TextEmbedder {
	return &TextEmbedder{
		apiURL: apiURL,
		model:  model,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		breaker: breaker.New("text-embedding", 5, 30*time.Second),
	}
}

// EmbedText converts text to a 384-dim vector. The embedding-side
// cleanup (lowercasing etc.) happens here so callers keep original text.
func (e *TextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	cleaned := ForEmbedding(text)
	if cleaned == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	var vector []float32
	err := e.breaker.Do(func() error {
		var postErr error
		vector, postErr = e.post(ctx, map[string]interface{}{
			"input": cleaned,
			"model": e.model,
		})
		return postErr
	})
	if err != nil {
		return nil, err
	}
	if len(vector) != TextDimension {
		return nil, fmt.Errorf("unexpected embedding dimension: got %d, want %d", len(vector), TextDimension)
	}
	return vector, nil
}

func (e *TextEmbedder) post(ctx context.Context, reqBody map[string]interface{}) ([]float32, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return result.Data[0].Embedding, nil
}

// ImageEmbedder calls a CLIP service that embeds images and text queries
// into the shared 512-dim space. Image-to-text matching works only
// because both go through the same model.
type ImageEmbedder struct {
	apiURL  string
	client  *http.Client
	breaker *breaker.Breaker
}

// NewImageEmbedder creates a CLIP embedding client.
func NewImageEmbedder(apiURL string) *ImageEmbedder {
	return &ImageEmbedder{
		apiURL: apiURL,
		client: &http.Client{
			Timeout: 30 * time.Second, // image encoding is slower than text
		},
		breaker: breaker.New("clip-embedding", 5, 30*time.Second),
	}
}

// EmbedImage converts raw image bytes to a 512-dim CLIP vector.
func (e *ImageEmbedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot embed empty image")
	}
	return e.guardedPost(ctx, map[string]interface{}{
		"image": base64.StdEncoding.EncodeToString(data),
	})
}

// EmbedQuery converts query text to a 512-dim CLIP vector for searching
// the image collection.
func (e *ImageEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	cleaned := ForEmbedding(text)
	if cleaned == "" {
		return nil, fmt.Errorf("cannot embed empty query")
	}
	return e.guardedPost(ctx, map[string]interface{}{
		"text": cleaned,
	})
}

func (e *ImageEmbedder) guardedPost(ctx context.Context, reqBody map[string]interface{}) ([]float32, error) {
	var vector []float32
	err := e.breaker.Do(func() error {
		var postErr error
		vector, postErr = e.post(ctx, reqBody)
		return postErr
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (e *ImageEmbedder) post(ctx context.Context, reqBody map[string]interface{}) ([]float32, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("CLIP API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Embedding) != ImageDimension {
		return nil, fmt.Errorf("unexpected embedding dimension: got %d, want %d", len(result.Embedding), ImageDimension)
	}
	return result.Embedding, nil
}
