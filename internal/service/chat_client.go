package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ledger/internal/apperr"
)

// DefaultBaseURL is used when a credential carries no endpoint of its own
const DefaultBaseURL = "https://api.openai.com/v1"

// Credentials identify one resolved provider endpoint for a single call
type Credentials struct {
	APIKey    string
	BaseURL   string
	ModelName string
}

// ChatMessage represents a single message in the conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient is the model chat capability: one zero-temperature,
// single-shot completion call against an OpenAI-compatible endpoint.
type ChatClient interface {
	Chat(ctx context.Context, creds Credentials, messages []ChatMessage, maxTokens int) (string, error)
}

// chatCompletionRequest represents a chat completion request
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatCompletionResponse represents the API response
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAIClient calls any OpenAI-compatible chat completions endpoint
type OpenAIClient struct {
	httpClient *http.Client
}

// NewOpenAIClient creates a chat client with the given request timeout
func NewOpenAIClient(timeout time.Duration) *OpenAIClient {
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ensure OpenAIClient implements ChatClient
var _ ChatClient = (*OpenAIClient)(nil)

// Chat performs one chat completion request and returns the reply text
func (c *OpenAIClient) Chat(ctx context.Context, creds Credentials, messages []ChatMessage, maxTokens int) (string, error) {
	if creds.APIKey == "" {
		return "", apperr.New(apperr.Validation, "api_key not configured")
	}

	base := creds.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimSuffix(base, "/")

	req := chatCompletionRequest{
		Model:       creds.ModelName,
		Messages:    messages,
		Temperature: 0,
		MaxTokens:   maxTokens,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", base)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", creds.APIKey))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, err, "chat request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Wrap(apperr.Upstream, err, "failed to read chat response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperr.New(apperr.Upstream, "chat request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", apperr.Wrap(apperr.Upstream, err, "failed to unmarshal chat response")
	}

	if len(result.Choices) == 0 {
		return "", apperr.New(apperr.Upstream, "no choices in chat response")
	}

	return result.Choices[0].Message.Content, nil
}
