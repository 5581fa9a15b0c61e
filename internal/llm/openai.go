package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sevasetu/sevasetu/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

const systemPrompt = `You are SevaSetu, a helpful assistant for citizens seeking information about public services: utilities, agriculture, education, and grievance filing.

RULES:
1. Be polite and concise. Answer in the language the citizen writes in (Hindi or English).
2. When the citizen wants to perform an action covered by one of your tools (for example filing a complaint), call that tool instead of describing the process.
3. Call at most one tool per reply.
4. Never invent reference numbers or official data; only repeat what a tool returned.
5. For general questions, answer directly in plain text.`

// OpenAIClient implements Provider using OpenAI's chat completions API.
type OpenAIClient struct {
	cfg        config.LLMProvider
	routing    config.LLMRoutingConfig
	httpClient *http.Client
}

// NewOpenAIClient creates a new OpenAI-backed gateway.
func NewOpenAIClient(cfg config.LLMProvider, routing config.LLMRoutingConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIClient{
		cfg:        cfg,
		routing:    routing,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Wire types for the chat completions API.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string     `json:"type"`
	Function ToolSchema `json:"function"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Tools       []wireTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Converse implements Provider using the tool-capable chat model.
func (c *OpenAIClient) Converse(ctx context.Context, history []ChatMessage, message string, tools []ToolSchema) (ModelResponse, error) {
	msgs := c.buildMessages(history, message)

	wireTools := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		wireTools = append(wireTools, wireTool{Type: "function", Function: t})
	}
	req := chatRequest{
		Model:       c.model(c.routing.Chat),
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Tools:       wireTools,
	}
	if len(wireTools) > 0 {
		req.ToolChoice = "auto"
	}

	out, err := c.send(ctx, req)
	if err != nil {
		return ModelResponse{}, err
	}
	if len(out.Choices) == 0 {
		return ModelResponse{}, fmt.Errorf("%w: no choices in response", ErrModelUnavailable)
	}
	choice := out.Choices[0].Message

	// Honour at most one tool call; anything beyond the first is discarded.
	if len(choice.ToolCalls) > 0 {
		tc := choice.ToolCalls[0]
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return ModelResponse{}, fmt.Errorf("%w: malformed tool arguments: %v", ErrModelUnavailable, err)
		}
		return ModelResponse{ToolCall: &ToolCallRequest{ID: tc.ID, Name: tc.Function.Name, Arguments: args}}, nil
	}
	if choice.Content == "" {
		return ModelResponse{}, fmt.Errorf("%w: empty completion", ErrModelUnavailable)
	}
	return ModelResponse{Text: choice.Content}, nil
}

// Continue resumes a turn after tool execution with the serialized tool result.
func (c *OpenAIClient) Continue(ctx context.Context, history []ChatMessage, message string, call ToolCallRequest, resultJSON string) (string, error) {
	msgs := c.buildMessages(history, message)

	args, err := json.Marshal(call.Arguments)
	if err != nil {
		return "", fmt.Errorf("marshal tool arguments: %w", err)
	}
	msgs = append(msgs, wireMessage{
		Role: "assistant",
		ToolCalls: []wireToolCall{{
			ID:       call.ID,
			Type:     "function",
			Function: wireFunction{Name: call.Name, Arguments: string(args)},
		}},
	})
	msgs = append(msgs, wireMessage{Role: "tool", ToolCallID: call.ID, Content: resultJSON})

	out, err := c.send(ctx, chatRequest{
		Model:       c.model(c.routing.Chat),
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty continuation", ErrModelUnavailable)
	}
	return out.Choices[0].Message.Content, nil
}

// Complete implements the plain completion fallback path.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := c.send(ctx, chatRequest{
		Model:       c.model(c.routing.Fallback),
		Messages:    []wireMessage{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrModelUnavailable)
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) buildMessages(history []ChatMessage, message string) []wireMessage {
	msgs := make([]wireMessage, 0, len(history)+2)
	msgs = append(msgs, wireMessage{Role: "system", Content: systemPrompt})
	for _, h := range history {
		msgs = append(msgs, wireMessage{Role: h.Role, Content: h.Content})
	}
	msgs = append(msgs, wireMessage{Role: "user", Content: message})
	return msgs
}

func (c *OpenAIClient) model(routed string) string {
	if routed != "" {
		return routed
	}
	return c.cfg.Model
}

func (c *OpenAIClient) send(ctx context.Context, reqBody chatRequest) (chatResponse, error) {
	if c.cfg.APIKey == "" {
		return chatResponse{}, fmt.Errorf("%w: OpenAI API key not configured", ErrModelUnavailable)
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return chatResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	baseURL := c.cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return chatResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chatResponse{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return chatResponse{}, fmt.Errorf("%w: API returned status %d", ErrModelUnavailable, resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return chatResponse{}, fmt.Errorf("%w: failed to parse response: %v", ErrModelUnavailable, err)
	}
	return out, nil
}
