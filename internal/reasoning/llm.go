// internal/reasoning/llm.go
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"carevault/internal/breaker"
)

const defaultMaxTokens = 1024

// LLMClient talks to an OpenAI-compatible chat completions endpoint
// (OpenAI, Groq, vLLM, llama.cpp server). One instance per process.
type LLMClient struct {
	apiURL  string
	apiKey  string
	model   string
	client  *http.Client
	breaker *breaker.Breaker
}

// NewLLMClient creates a chat completions client. apiURL is the base
// URL, e.g. "https://api.groq.com/openai/v1".
func NewLLMClient(apiURL, apiKey, model string) *LLMClient {
	return &LLMClient{
		apiURL:  strings.TrimRight(apiURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
		breaker: breaker.New("llm", 3, time.Minute),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate produces a completion for one system/user prompt pair.
func (c *LLMClient) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   defaultMaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	var content string
	err = c.breaker.Do(func() error {
		var callErr error
		content, callErr = c.complete(ctx, body)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *LLMClient) complete(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("LLM error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// GenerateStringList asks for a JSON array of strings and parses it,
// tolerating markdown code fences around the array.
func (c *LLMClient) GenerateStringList(ctx context.Context, systemPrompt, userPrompt string) ([]string, error) {
	text, err := c.Generate(ctx, systemPrompt+"\nRespond ONLY with valid JSON.", userPrompt, 0.1)
	if err != nil {
		return nil, err
	}

	text = stripCodeFence(text)
	var items []string
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("failed to parse JSON list: %w", err)
	}
	return items, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		text = strings.TrimPrefix(text, "json")
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
