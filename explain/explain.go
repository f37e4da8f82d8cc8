// Package explain proxies question text to an upstream reasoning API and
// returns its explanation. The upstream speaks the chat-completions shape;
// the rest of the service never sees that, only the answer string.
package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const systemPrompt = "You are a medical reasoning assistant that clearly explains exam questions."

// Client talks to one configured reasoning endpoint. A nil *Client means
// explanations are disabled (no API key configured).
type Client struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewClient(url, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Explain asks the upstream to explain one question. Failures are the
// caller's to surface; nothing here is fatal to a session.
func (c *Client) Explain(ctx context.Context, question string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: question},
		},
		MaxTokens: 300,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal explanation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build explanation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("explanation request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("explanation request failed: upstream returned %s", resp.Status)
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode explanation response: %w", err)
	}
	if len(body.Choices) == 0 || body.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("upstream returned no explanation")
	}
	return body.Choices[0].Message.Content, nil
}
