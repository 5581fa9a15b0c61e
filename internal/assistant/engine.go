// Package assistant implements the conversational orchestration engine: the
// per-turn state machine that routes an incoming message to a canned
// response, the LLM, or a tool round-trip, and persists every turn.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/sevasetu/sevasetu/config"
	"github.com/sevasetu/sevasetu/internal/llm"
	"github.com/sevasetu/sevasetu/internal/match"
	"github.com/sevasetu/sevasetu/internal/store"
	"github.com/sevasetu/sevasetu/internal/tools"
)

// Turn outcomes reported alongside replies, used for metrics.
const (
	OutcomeCanned           = "canned"
	OutcomeModel            = "model"
	OutcomeTool             = "tool"
	OutcomeToolFailed       = "tool_failed"
	OutcomeModelUnavailable = "model_unavailable"
)

// ErrCodeModelUnavailable is the machine-readable code surfaced to callers
// when the model backend is down. The citizen-facing text stays an apology.
const ErrCodeModelUnavailable = "model_unavailable"

const apologyMessage = "क्षमा करें, सहायक अभी अनुपलब्ध है। कृपया थोड़ी देर बाद पुनः प्रयास करें। / Sorry, the assistant is temporarily unavailable. Please try again shortly."

// Store is the persistence surface the engine needs; implemented by
// *store.Store, substitutable with an in-memory fake for tests.
type Store interface {
	CreateConversation(ctx context.Context, userID string) (store.Conversation, error)
	GetConversation(ctx context.Context, id string) (store.Conversation, error)
	AppendMessage(ctx context.Context, conversationID, role, content string) (store.Message, error)
	LoadHistory(ctx context.Context, conversationID string, limit int) ([]store.Message, error)
}

// Catalog provides the read-only catalog snapshot matched on every turn.
type Catalog interface {
	Snapshot(ctx context.Context) ([]store.Service, error)
}

// ChatRequest is one incoming citizen message.
type ChatRequest struct {
	UserID         string
	ConversationID string
	Message        string
}

// ChatReply is the final answer for a turn.
type ChatReply struct {
	ConversationID string
	Reply          string
	Outcome        string
	ErrCode        string
}

// Engine sequences one turn: resolve conversation, persist the user message,
// try a canned match, otherwise delegate to the model with the tool registry,
// executing at most one tool call before the final answer.
type Engine struct {
	store    Store
	catalog  Catalog
	registry *tools.Registry
	provider llm.Provider
	cfg      config.AssistantConfig
	guestID  string
	logger   *log.Logger
	locks    conversationLocks
}

// New constructs the engine.
func New(st Store, cat Catalog, reg *tools.Registry, provider llm.Provider, cfg config.AssistantConfig, guestID string, logger *log.Logger) *Engine {
	if guestID == "" {
		guestID = "guest"
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ASSIST] ", log.LstdFlags)
	}
	return &Engine{
		store:    st,
		catalog:  cat,
		registry: reg,
		provider: provider,
		cfg:      cfg,
		guestID:  guestID,
		logger:   logger,
		locks:    conversationLocks{m: make(map[string]*sync.Mutex)},
	}
}

// HandleMessage processes one user turn end to end.
func (e *Engine) HandleMessage(ctx context.Context, req ChatRequest) (ChatReply, error) {
	if e.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TurnTimeout)
		defer cancel()
	}

	userID := req.UserID
	if userID == "" {
		userID = e.guestID
	}

	// Resolve or create the conversation. An explicit unknown id is NotFound;
	// only an absent id creates a fresh conversation.
	var conv store.Conversation
	var err error
	if req.ConversationID == "" {
		conv, err = e.store.CreateConversation(ctx, userID)
		if err != nil {
			return ChatReply{}, fmt.Errorf("create conversation: %w", err)
		}
	} else {
		conv, err = e.store.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return ChatReply{}, err
		}
	}

	// Serialize overlapping turns on the same conversation so interleaved
	// appends cannot corrupt the chronological history invariant.
	unlock := e.locks.lock(conv.ID)
	defer unlock()

	// Persist the user message before anything else; a write failure aborts
	// the turn before any model call.
	if _, err := e.store.AppendMessage(ctx, conv.ID, store.RoleUser, req.Message); err != nil {
		return ChatReply{}, fmt.Errorf("persist user message: %w", err)
	}

	// Canned path: lexical match against the current catalog snapshot.
	services, err := e.catalog.Snapshot(ctx)
	if err != nil {
		return ChatReply{}, fmt.Errorf("catalog snapshot: %w", err)
	}
	if best, ok := match.Match(services, req.Message); ok && best.Score > e.cfg.MatchThreshold {
		if _, err := e.store.AppendMessage(ctx, conv.ID, store.RoleAssistant, best.Service.Response); err != nil {
			return ChatReply{}, fmt.Errorf("persist canned reply: %w", err)
		}
		e.logger.Printf("conversation %s: canned match %q score=%.2f", conv.ID, best.Service.Name, best.Score)
		return ChatReply{ConversationID: conv.ID, Reply: best.Service.Response, Outcome: OutcomeCanned}, nil
	}

	// Model path with bounded history.
	history, err := e.modelHistory(ctx, conv.ID, req.Message)
	if err != nil {
		return ChatReply{}, err
	}

	resp, err := e.provider.Converse(ctx, history, req.Message, e.registry.Schemas())
	if err != nil {
		if !errors.Is(err, llm.ErrModelUnavailable) {
			return ChatReply{}, fmt.Errorf("model converse: %w", err)
		}
		// Chat model is down; try the plain completion route before giving up.
		// The fallback has no tool access, so a degraded answer is text only.
		e.logger.Printf("conversation %s: chat model unavailable, trying fallback: %v", conv.ID, err)
		text, fbErr := e.provider.Complete(ctx, req.Message)
		if fbErr != nil {
			e.logger.Printf("conversation %s: fallback unavailable: %v", conv.ID, fbErr)
			return ChatReply{ConversationID: conv.ID, Reply: apologyMessage, Outcome: OutcomeModelUnavailable, ErrCode: ErrCodeModelUnavailable}, nil
		}
		if _, err := e.store.AppendMessage(ctx, conv.ID, store.RoleAssistant, text); err != nil {
			return ChatReply{}, fmt.Errorf("persist assistant reply: %w", err)
		}
		return ChatReply{ConversationID: conv.ID, Reply: text, Outcome: OutcomeModel}, nil
	}

	if resp.ToolCall == nil {
		if _, err := e.store.AppendMessage(ctx, conv.ID, store.RoleAssistant, resp.Text); err != nil {
			return ChatReply{}, fmt.Errorf("persist assistant reply: %w", err)
		}
		return ChatReply{ConversationID: conv.ID, Reply: resp.Text, Outcome: OutcomeModel}, nil
	}

	return e.runToolTurn(ctx, conv.ID, history, req.Message, *resp.ToolCall)
}

// runToolTurn executes the single tool round permitted per user turn and
// produces the final assistant answer.
func (e *Engine) runToolTurn(ctx context.Context, convID string, history []llm.ChatMessage, message string, call llm.ToolCallRequest) (ChatReply, error) {
	tool, err := e.registry.Get(call.Name)
	if err != nil {
		// Contract mismatch between model and registry; fatal for the turn,
		// nothing further is persisted.
		return ChatReply{}, err
	}

	result, execErr := tool.Execute(ctx, call.Arguments)
	if execErr != nil {
		e.logger.Printf("conversation %s: tool %s failed: %v", convID, call.Name, execErr)
		if result.Message == "" {
			result = tools.Result{Success: false, Message: apologyMessage}
		}
		result.Success = false
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return ChatReply{}, fmt.Errorf("marshal tool result: %w", err)
	}
	if _, err := e.store.AppendMessage(ctx, convID, store.RoleTool, string(resultJSON)); err != nil {
		return ChatReply{}, fmt.Errorf("persist tool result: %w", err)
	}

	// Fold the tool result back into the model for the final phrasing. When
	// the backend drops out here the tool's own human-readable message is the
	// reply; the side effect already happened and its reference must not be
	// lost behind an apology.
	reply, err := e.provider.Continue(ctx, history, message, call, string(resultJSON))
	if err != nil {
		if !errors.Is(err, llm.ErrModelUnavailable) {
			return ChatReply{}, fmt.Errorf("model continue: %w", err)
		}
		e.logger.Printf("conversation %s: continue unavailable, using tool message: %v", convID, err)
		reply = result.Message
	}

	if _, err := e.store.AppendMessage(ctx, convID, store.RoleAssistant, reply); err != nil {
		return ChatReply{}, fmt.Errorf("persist assistant reply: %w", err)
	}

	outcome := OutcomeTool
	if !result.Success {
		outcome = OutcomeToolFailed
	}
	return ChatReply{ConversationID: convID, Reply: reply, Outcome: outcome}, nil
}

// modelHistory loads the bounded window and strips entries the model should
// not see again: the just-persisted current message and raw tool payloads.
func (e *Engine) modelHistory(ctx context.Context, convID, current string) ([]llm.ChatMessage, error) {
	msgs, err := e.store.LoadHistory(ctx, convID, e.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if n := len(msgs); n > 0 && msgs[n-1].Role == store.RoleUser && msgs[n-1].Content == current {
		msgs = msgs[:n-1]
	}
	out := make([]llm.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == store.RoleTool {
			continue
		}
		out = append(out, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

// conversationLocks serializes turns per conversation id.
type conversationLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *conversationLocks) lock(id string) func() {
	l.mu.Lock()
	mu, ok := l.m[id]
	if !ok {
		mu = &sync.Mutex{}
		l.m[id] = mu
	}
	l.mu.Unlock()
	mu.Lock()
	return mu.Unlock
}
