// Package insights asks an LLM to review the actuals-vs-predicted table and
// return a short list of actionable observations for kitchen managers.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kitchencopilot/backend/internal/metrics"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultModel   = "claude-3-5-haiku-latest"
	apiVersion     = "2023-06-01"
)

const reviewPrompt = "You help kitchen teams review how well their meal predictions performed. " +
	"This data compares past predictions against actual results. " +
	"The data contains dates, predicted meals, actual meals, difference, and percentage error. " +
	"Look for meaningful patterns: Are certain weekdays consistently off? " +
	"Is there a bias in the predictions? " +
	"Only report patterns that are significant and actionable. " +
	"Return your response as a JSON array only. No other text, no markdown, no explanation. " +
	"Each insight is an object with three fields: " +
	"type (one of: success, info, warning, error), " +
	"title (short label), " +
	"message (one sentence explanation and one sentence recommendation). " +
	"Return at most 3 insights. Fewer is fine. " +
	"Use simple language for kitchen managers. No jargon. " +
	"Return raw JSON only. DO NOT wrap in code fences or markdown. " +
	"Here is the data: "

// Insight is one reviewed observation.
type Insight struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Client calls the Anthropic messages API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		model:   defaultModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c != nil && c.apiKey != "" }

// Review sends the daily comparison table and returns the model's insights.
func (c *Client) Review(ctx context.Context, daily []metrics.ComparisonRow) ([]Insight, error) {
	data, err := json.Marshal(daily)
	if err != nil {
		return nil, fmt.Errorf("insights: marshal data: %w", err)
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"model":      c.model,
		"max_tokens": 800,
		"messages": []map[string]string{
			{"role": "user", "content": reviewPrompt + string(data)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("insights: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("insights: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("insights: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("insights: api returned status %d", resp.StatusCode)
	}

	var payload struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("insights: decode response: %w", err)
	}

	var text string
	for _, block := range payload.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	return parseInsights(text)
}

// parseInsights decodes the model's JSON array, tolerating code fences the
// model was told not to emit but sometimes does anyway.
func parseInsights(text string) ([]Insight, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) >= 2 {
			text = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	var insights []Insight
	if err := json.Unmarshal([]byte(text), &insights); err != nil {
		return nil, fmt.Errorf("insights: response is not a JSON array: %w", err)
	}
	return insights, nil
}
