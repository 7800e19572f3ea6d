package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appconfig "cexintel/config"
	"cexintel/logger"

	"golang.org/x/time/rate"
)

// Client talks to the xAI Responses API. Every query is a single POST
// carrying the prompt and the search tools the model may use.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Entry
}

type responseRequest struct {
	Model string           `json:"model"`
	Input []requestMessage `json:"input"`
	Tools []requestTool    `json:"tools"`
}

type requestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestTool struct {
	Type string `json:"type"`
}

type apiResponse struct {
	Output []outputItem `json:"output"`
	Error  *apiError    `json:"error"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// NewClient builds a rate-limited API client from the collector config.
func NewClient(cfg appconfig.CollectorConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger().WithComponent("collector.client"),
	}
}

// Query sends one prompt and returns the assistant's text output. Tool
// types are passed through verbatim ("web_search", "x_search").
func (c *Client) Query(ctx context.Context, prompt string, tools []string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	reqBody := responseRequest{
		Model: c.model,
		Input: []requestMessage{{Role: "user", Content: prompt}},
	}
	for _, t := range tools {
		reqBody.Tools = append(reqBody.Tools, requestTool{Type: t})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model API returned %s", resp.Status)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("model API error: %s", parsed.Error.Message)
	}

	text := extractText(parsed)
	c.log.WithFields(logger.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
		"text_bytes":  len(text),
	}).Debug("model query finished")
	return text, nil
}

// extractText pulls the first assistant text block out of the output
// items. Both "text" and "output_text" content parts are accepted.
func extractText(resp apiResponse) string {
	for _, item := range resp.Output {
		if item.Role != "assistant" && item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "text" || part.Type == "output_text" {
				return part.Text
			}
		}
	}
	return ""
}
