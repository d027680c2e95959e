// Package ai provides the host-side implementation of
// storyboard.LLMCapability against an Ollama/CQAI-compatible HTTP endpoint
// (the worker wraps it with storyboard.NewLineDurationEstimator to obtain a
// LineDurationEstimator), grounded on the teacher's
// internal/services/ai Client (same baseURL/model/http.Client shape,
// same Ollama request/response wire types).
package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls an Ollama-compatible /api/generate endpoint. It implements
// storyboard.LLMCapability's Complete method so pkg/storyboard's C5 bridge
// can be constructed with it, keeping the core package free of any direct
// HTTP dependency.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new AI client pointed at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete implements storyboard.LLMCapability. jsonMode requests Ollama's
// "format": "json" constrained decoding, which the Strict Contract v1.0
// prompt in pkg/storyboard/llmsync.go relies on.
func (c *Client) Complete(system, user, model string, temperature float32, jsonMode bool) (string, error) {
	reqBody := ollamaRequest{
		Model:   model,
		Prompt:  user,
		System:  system,
		Stream:  false,
		Options: ollamaOptions{Temperature: temperature},
	}
	if jsonMode {
		reqBody.Format = "json"
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp ollamaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if apiResp.Response == "" {
		return "", fmt.Errorf("empty response from API")
	}

	return apiResp.Response, nil
}
