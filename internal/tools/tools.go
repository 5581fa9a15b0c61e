// Package tools defines the model-invocable tool contract and the registry
// the orchestrator dispatches through. Each tool declares a schema the model
// uses to decide when and how to call it, plus an executable handler.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/sevasetu/sevasetu/internal/llm"
)

// ParamSpec describes one named tool parameter.
type ParamSpec struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Result is the structured outcome of a tool execution. Message is the
// citizen-facing text, typically bilingual; ReferenceID is set when the tool
// created a durable record.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// Tool is the contract every invocable tool satisfies.
type Tool interface {
	Name() string
	Description() string
	Parameters() []ParamSpec
	Execute(ctx context.Context, args map[string]interface{}) (Result, error)
}

// ErrUnknownTool indicates the model requested a tool name that is not
// registered: a contract mismatch between model and registry, fatal for the
// turn.
var ErrUnknownTool = fmt.Errorf("unknown tool")

// Registry maps tool names to implementations, preserving registration order
// for deterministic schema listings.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry builds a registry from the given tools.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(t Tool) {
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the named tool or ErrUnknownTool.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Schemas renders the declarative tool list handed to the model gateway.
func (r *Registry) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		properties := map[string]interface{}{}
		var required []string
		for _, p := range t.Parameters() {
			properties[p.Name] = map[string]interface{}{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		params := map[string]interface{}{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			params["required"] = required
		}
		out = append(out, llm.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		})
	}
	return out
}

// stringArg extracts a trimmed string argument; ok is false when the argument
// is absent, not a string, or blank.
func stringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
