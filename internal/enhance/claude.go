package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/veleth/ansuz/internal/models"
)

const messagesEndpoint = "https://api.anthropic.com/v1/messages"

// ClaudeEnhancer calls the Anthropic Messages API to polish card wording.
type ClaudeEnhancer struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClaudeEnhancer(apiKey, model string) *ClaudeEnhancer {
	return &ClaudeEnhancer{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const systemPrompt = `You refine flashcards extracted from personal notes.
You receive a JSON array of cards and the note text they came from.
Improve clarity of prompts and answers without changing their meaning.
Keep cloze deletion markers ({{c1::...}}) intact. You may upgrade a
short-answer card to kind "multiple_choice" by adding plausible options
(the answer must be one of them) and an optional explanation.
Return ONLY the JSON array, same length and order as the input.`

// Enhance sends the whole batch in one call and parses the returned cards.
func (c *ClaudeEnhancer) Enhance(ctx context.Context, items []models.Card, textContext string) ([]models.Card, error) {
	cardsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("enhance: marshal cards: %w", err)
	}

	var prompt strings.Builder
	prompt.WriteString("Cards:\n")
	prompt.Write(cardsJSON)
	prompt.WriteString("\n\nNote text:\n")
	prompt.WriteString(textContext)

	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: 4096,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt.String()},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("enhance: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, messagesEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("enhance: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("enhance: api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("enhance: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enhance: api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("enhance: decode response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("enhance: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return nil, fmt.Errorf("enhance: empty response")
	}

	text := stripCodeBlock(apiResp.Content[0].Text)
	var out []models.Card
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("enhance: parse cards json: %w (raw: %s)", err, truncate(text, 200))
	}
	return out, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Verify *ClaudeEnhancer satisfies Enhancer at compile time.
var _ Enhancer = (*ClaudeEnhancer)(nil)
