package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	stewarderrors "github.com/stewardhq/steward/internal/errors"
)

// anthropicVersion is the API version to use.
const anthropicVersion = "2023-06-01"

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// defaultMaxTokens is used when the request does not specify a limit.
const defaultMaxTokens = 4096

// AnthropicClient implements Client against the Anthropic messages API.
type AnthropicClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// AnthropicOption configures an AnthropicClient.
type AnthropicOption func(*AnthropicClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) AnthropicOption {
	return func(a *AnthropicClient) {
		a.httpClient = c
	}
}

// WithBaseURL overrides the API base URL (used by tests and proxies).
func WithBaseURL(url string) AnthropicOption {
	return func(a *AnthropicClient) {
		a.baseURL = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) AnthropicOption {
	return func(a *AnthropicClient) {
		a.httpClient.Timeout = d
	}
}

// NewAnthropicClient creates a client for the given model.
func NewAnthropicClient(apiKey, model string, logger zerolog.Logger, opts ...AnthropicOption) *AnthropicClient {
	a := &AnthropicClient{
		baseURL: "https://api.anthropic.com",
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // Allow time for long completions
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// anthropicRequest is the Anthropic API request format.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// anthropicResponse is the Anthropic API response format. Content blocks are
// either text or tool_use.
type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		ID    string          `json:"id,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a chat completion request.
func (a *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: at least one message is required", stewarderrors.ErrValidation)
	}

	body, err := a.buildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("build request body: %w", err)
	}

	url := strings.TrimSuffix(a.baseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic returned status %d: %s", httpResp.StatusCode, truncate(string(respBody), 500))
	}

	resp, err := a.parseResponse(respBody)
	if err != nil {
		return nil, err
	}

	a.logger.Debug().
		Str("model", resp.Model).
		Str("stop_reason", resp.StopReason).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Int("tool_calls", len(resp.ToolCalls)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("chat completion")

	return resp, nil
}

// buildRequestBody creates the Anthropic API request body. The system message
// is lifted out of the message list per the messages API contract.
func (a *AnthropicClient) buildRequestBody(req Request) ([]byte, error) {
	var systemPrompt string
	apiMessages := make([]anthropicMessage, 0, len(req.Messages))

	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
			continue
		}
		apiMessages = append(apiMessages, anthropicMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	apiReq := anthropicRequest{
		Model:       a.model,
		MaxTokens:   maxTokens,
		Messages:    apiMessages,
		System:      systemPrompt,
		Temperature: req.Temperature, // nil = use default, 0 = deterministic
	}

	for _, tool := range req.Tools {
		schema := tool.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		apiReq.Tools = append(apiReq.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}

	return json.Marshal(apiReq)
}

// parseResponse extracts text and tool_use blocks from an Anthropic response.
func (a *AnthropicClient) parseResponse(body []byte) (*Response, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse anthropic response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("anthropic error %s: %s", resp.Error.Type, resp.Error.Message)
	}

	out := &Response{
		Model:      resp.Model,
		StopReason: resp.StopReason,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:            block.ID,
				Name:          block.Name,
				ArgumentsJSON: string(block.Input),
			})
		}
	}
	out.Content = text.String()

	if out.Content == "" && len(out.ToolCalls) == 0 {
		return nil, stewarderrors.ErrModelEmptyResponse
	}

	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
