package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sevasetu/sevasetu/config"
)

// ErrModelUnavailable indicates the model backend was unreachable or returned
// output the gateway could not use. Callers surface an apology message; the
// gateway never substitutes an empty reply for this condition.
var ErrModelUnavailable = errors.New("model unavailable")

// ChatMessage is one turn of model context.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolSchema declares a tool to the model: its name, what it does, and a JSON
// schema for its arguments.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCallRequest is the model's request to invoke a registered tool.
type ToolCallRequest struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ModelResponse is either plain text or a single tool call, never both.
type ModelResponse struct {
	Text     string
	ToolCall *ToolCallRequest
}

// Provider is the interface all LLM backends must satisfy.
type Provider interface {
	// Converse runs the tool-capable chat model over bounded history plus the
	// new user message. At most one tool call is honoured per turn.
	Converse(ctx context.Context, history []ChatMessage, message string, tools []ToolSchema) (ModelResponse, error)

	// Continue resumes the conversation after a tool has produced a result,
	// yielding the final natural-language answer for the turn.
	Continue(ctx context.Context, history []ChatMessage, message string, call ToolCallRequest, resultJSON string) (string, error)

	// Complete runs the plain completion fallback model: raw prompt in, text
	// out, no tool schema.
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewProvider creates an LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, errors.New("no LLM providers configured")
	}
	for _, provider := range cfg.Providers {
		switch provider.Type {
		case "openai":
			return NewOpenAIClient(provider, cfg.Routing), nil
		case "anthropic":
			return nil, errors.New("anthropic client not implemented yet")
		case "gemini":
			return nil, errors.New("gemini client not implemented yet")
		default:
			return nil, fmt.Errorf("unsupported LLM provider type: %s", provider.Type)
		}
	}
	return nil, errors.New("no valid LLM providers found")
}
