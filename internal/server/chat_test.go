package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sevasetu/sevasetu/config"
	"github.com/sevasetu/sevasetu/internal/assistant"
	"github.com/sevasetu/sevasetu/internal/llm"
	"github.com/sevasetu/sevasetu/internal/store"
	"github.com/sevasetu/sevasetu/internal/tools"
)

type stubStore struct {
	conv store.Conversation
	seq  int64
}

func (s *stubStore) CreateConversation(ctx context.Context, userID string) (store.Conversation, error) {
	s.conv = store.Conversation{ID: "conv-1", UserID: userID, CreatedAt: time.Now()}
	return s.conv, nil
}

func (s *stubStore) GetConversation(ctx context.Context, id string) (store.Conversation, error) {
	if id != s.conv.ID {
		return store.Conversation{}, fmt.Errorf("%w: conversation %s", store.ErrNotFound, id)
	}
	return s.conv, nil
}

func (s *stubStore) AppendMessage(ctx context.Context, conversationID, role, content string) (store.Message, error) {
	s.seq++
	return store.Message{ID: s.seq, ConversationID: conversationID, Role: role, Content: content, CreatedAt: time.Now()}, nil
}

func (s *stubStore) LoadHistory(ctx context.Context, conversationID string, limit int) ([]store.Message, error) {
	return nil, nil
}

type stubCatalog struct{ services []store.Service }

func (s *stubCatalog) Snapshot(ctx context.Context) ([]store.Service, error) {
	return s.services, nil
}

type stubProvider struct{ text string }

func (p *stubProvider) Converse(ctx context.Context, history []llm.ChatMessage, message string, ts []llm.ToolSchema) (llm.ModelResponse, error) {
	return llm.ModelResponse{Text: p.text}, nil
}

func (p *stubProvider) Continue(ctx context.Context, history []llm.ChatMessage, message string, call llm.ToolCallRequest, resultJSON string) (string, error) {
	return p.text, nil
}

func (p *stubProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return p.text, nil
}

func newTestHandler(st *stubStore) *ChatHandler {
	eng := assistant.New(
		st,
		&stubCatalog{},
		tools.NewRegistry(),
		&stubProvider{text: "namaste"},
		config.AssistantConfig{MatchThreshold: 0.4, HistoryLimit: 20},
		"guest",
		nil,
	)
	return &ChatHandler{Engine: eng}
}

func doChat(t *testing.T, h *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.Register(e.Group("/api"))
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestChatEmptyMessageRejected(t *testing.T) {
	rec := doChat(t, newTestHandler(&stubStore{}), `{"message":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatUnknownConversationNotFound(t *testing.T) {
	rec := doChat(t, newTestHandler(&stubStore{}), `{"conversation_id":"ghost","message":"hello"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatHappyPath(t *testing.T) {
	rec := doChat(t, newTestHandler(&stubStore{}), `{"message":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ConversationID != "conv-1" {
		t.Fatalf("expected conversation id in response, got %+v", resp)
	}
	if resp.AIResponse != "namaste" {
		t.Fatalf("unexpected reply: %q", resp.AIResponse)
	}
	if resp.ErrorCode != "" {
		t.Fatalf("no error code expected on a healthy turn, got %q", resp.ErrorCode)
	}
}
