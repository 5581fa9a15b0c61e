package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sevasetu/sevasetu/config"
	"github.com/sevasetu/sevasetu/internal/llm"
	"github.com/sevasetu/sevasetu/internal/store"
	"github.com/sevasetu/sevasetu/internal/tools"
)

// In-memory fakes for the engine's collaborators.

type fakeStore struct {
	mu         sync.Mutex
	convSeq    int
	msgSeq     int64
	convs      map[string]store.Conversation
	msgs       map[string][]store.Message
	failAppend bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		convs: make(map[string]store.Conversation),
		msgs:  make(map[string][]store.Message),
	}
}

func (f *fakeStore) CreateConversation(ctx context.Context, userID string) (store.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convSeq++
	conv := store.Conversation{ID: fmt.Sprintf("conv-%d", f.convSeq), UserID: userID, CreatedAt: time.Now()}
	f.convs[conv.ID] = conv
	return conv, nil
}

func (f *fakeStore) GetConversation(ctx context.Context, id string) (store.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[id]
	if !ok {
		return store.Conversation{}, fmt.Errorf("%w: conversation %s", store.ErrNotFound, id)
	}
	return conv, nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, conversationID, role, content string) (store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppend {
		return store.Message{}, errors.New("write failed")
	}
	if !store.ValidRole(role) {
		return store.Message{}, fmt.Errorf("%w: unknown role %q", store.ErrValidation, role)
	}
	if strings.TrimSpace(content) == "" {
		return store.Message{}, fmt.Errorf("%w: message content empty", store.ErrValidation)
	}
	f.msgSeq++
	msg := store.Message{
		ID:             f.msgSeq,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().Add(time.Duration(f.msgSeq) * time.Millisecond),
	}
	f.msgs[conversationID] = append(f.msgs[conversationID], msg)
	return msg, nil
}

func (f *fakeStore) LoadHistory(ctx context.Context, conversationID string, limit int) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.msgs[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]store.Message, len(all))
	copy(out, all)
	return out, nil
}

func (f *fakeStore) messagesByRole(convID, role string) []store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Message
	for _, m := range f.msgs[convID] {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

type fakeCatalog struct {
	services []store.Service
}

func (f *fakeCatalog) Snapshot(ctx context.Context) ([]store.Service, error) {
	return f.services, nil
}

type fakeProvider struct {
	converseResp  llm.ModelResponse
	converseErr   error
	continueText  string
	continueErr   error
	completeText  string
	completeErr   error
	converseCalls int
	continueCalls int
	completeCalls int
	lastHistory   []llm.ChatMessage
	lastTools     []llm.ToolSchema
}

func (f *fakeProvider) Converse(ctx context.Context, history []llm.ChatMessage, message string, ts []llm.ToolSchema) (llm.ModelResponse, error) {
	f.converseCalls++
	f.lastHistory = history
	f.lastTools = ts
	return f.converseResp, f.converseErr
}

func (f *fakeProvider) Continue(ctx context.Context, history []llm.ChatMessage, message string, call llm.ToolCallRequest, resultJSON string) (string, error) {
	f.continueCalls++
	return f.continueText, f.continueErr
}

func (f *fakeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	f.completeCalls++
	return f.completeText, f.completeErr
}

type fakeFiler struct {
	ref   string
	calls int
}

func (f *fakeFiler) CreateComplaint(ctx context.Context, serviceName, problem string) (string, error) {
	f.calls++
	return f.ref, nil
}

func waterCatalog() []store.Service {
	return []store.Service{{
		Name:        "Water Problem",
		Description: "Drinking water supply issues",
		Keywords:    []string{"पानी", "जल"},
		Response:    "जल विभाग हेल्पलाइन 1916 पर संपर्क करें। / Contact the water helpline 1916.",
	}}
}

func testConfig() config.AssistantConfig {
	return config.AssistantConfig{MatchThreshold: 0.4, HistoryLimit: 20}
}

func newTestEngine(st Store, cat Catalog, reg *tools.Registry, provider llm.Provider) *Engine {
	if reg == nil {
		reg = tools.NewRegistry()
	}
	return New(st, cat, reg, provider, testConfig(), "guest", nil)
}

func TestCannedPathSkipsModel(t *testing.T) {
	st := newFakeStore()
	provider := &fakeProvider{}
	eng := newTestEngine(st, &fakeCatalog{services: waterCatalog()}, nil, provider)

	reply, err := eng.HandleMessage(context.Background(), ChatRequest{Message: "पानी की समस्या है"})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Outcome != OutcomeCanned {
		t.Fatalf("expected canned outcome, got %q", reply.Outcome)
	}
	if reply.Reply != waterCatalog()[0].Response {
		t.Fatalf("reply must equal the canned response exactly, got %q", reply.Reply)
	}
	if provider.converseCalls != 0 {
		t.Fatalf("no model call may occur on the canned path")
	}
	if n := len(st.messagesByRole(reply.ConversationID, store.RoleAssistant)); n != 1 {
		t.Fatalf("expected exactly one assistant message, got %d", n)
	}
}

func TestBelowThresholdTakesModelPath(t *testing.T) {
	st := newFakeStore()
	provider := &fakeProvider{converseResp: llm.ModelResponse{Text: "The capital of France is Paris."}}
	eng := newTestEngine(st, &fakeCatalog{services: waterCatalog()}, nil, provider)

	reply, err := eng.HandleMessage(context.Background(), ChatRequest{Message: "What is the capital of France?"})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Outcome != OutcomeModel {
		t.Fatalf("expected model outcome, got %q", reply.Outcome)
	}
	if provider.converseCalls != 1 {
		t.Fatalf("expected one model call, got %d", provider.converseCalls)
	}
	if reply.Reply == "" || reply.Reply == waterCatalog()[0].Response {
		t.Fatalf("model reply must be non-empty and differ from canned responses: %q", reply.Reply)
	}
	if n := len(st.messagesByRole(reply.ConversationID, store.RoleAssistant)); n != 1 {
		t.Fatalf("expected exactly one assistant message, got %d", n)
	}
}

func TestToolRoundTrip(t *testing.T) {
	st := newFakeStore()
	filer := &fakeFiler{ref: "SEVA-2024-001"}
	reg := tools.NewRegistry(&tools.ComplaintTool{Filer: filer})
	provider := &fakeProvider{
		converseResp: llm.ModelResponse{ToolCall: &llm.ToolCallRequest{
			ID:   "call-1",
			Name: "file_complaint",
			Arguments: map[string]interface{}{
				"service_name":        "Electricity Issue",
				"problem_description": "बिजली नहीं आ रही",
			},
		}},
		continueText: "आपकी शिकायत दर्ज हो गई है। संदर्भ संख्या SEVA-2024-001 है।",
	}
	eng := newTestEngine(st, &fakeCatalog{services: waterCatalog()}, reg, provider)

	reply, err := eng.HandleMessage(context.Background(), ChatRequest{Message: "मेरी बिजली की शिकायत दर्ज करो, बिजली नहीं आ रही"})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Outcome != OutcomeTool {
		t.Fatalf("expected tool outcome, got %q", reply.Outcome)
	}
	if filer.calls != 1 {
		t.Fatalf("expected exactly one complaint record, got %d", filer.calls)
	}
	if !strings.Contains(reply.Reply, "SEVA-2024-001") {
		t.Fatalf("final reply must contain the reference id: %q", reply.Reply)
	}

	toolMsgs := st.messagesByRole(reply.ConversationID, store.RoleTool)
	if len(toolMsgs) != 1 {
		t.Fatalf("expected exactly one tool-role message, got %d", len(toolMsgs))
	}
	var result tools.Result
	if err := json.Unmarshal([]byte(toolMsgs[0].Content), &result); err != nil {
		t.Fatalf("tool message must hold the serialized result: %v", err)
	}
	if !result.Success || result.ReferenceID != "SEVA-2024-001" {
		t.Fatalf("unexpected tool result payload: %+v", result)
	}
	if n := len(st.messagesByRole(reply.ConversationID, store.RoleAssistant)); n != 1 {
		t.Fatalf("expected exactly one assistant message, got %d", n)
	}
}

func TestFailedToolStillYieldsOneAssistantMessage(t *testing.T) {
	st := newFakeStore()
	reg := tools.NewRegistry(&tools.ComplaintTool{Filer: &fakeFiler{ref: "unused"}})
	provider := &fakeProvider{
		converseResp: llm.ModelResponse{ToolCall: &llm.ToolCallRequest{
			ID:   "call-1",
			Name: "file_complaint",
			Arguments: map[string]interface{}{
				"service_name":        "Electricity Issue",
				"problem_description": "",
			},
		}},
		continueErr: fmt.Errorf("%w: backend down", llm.ErrModelUnavailable),
	}
	eng := newTestEngine(st, &fakeCatalog{}, reg, provider)

	reply, err := eng.HandleMessage(context.Background(), ChatRequest{Message: "शिकायत दर्ज करो"})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Outcome != OutcomeToolFailed {
		t.Fatalf("expected tool_failed outcome, got %q", reply.Outcome)
	}
	if !strings.Contains(reply.Reply, "Required fields are missing") {
		t.Fatalf("expected localized required-fields message, got %q", reply.Reply)
	}
	if n := len(st.messagesByRole(reply.ConversationID, store.RoleAssistant)); n != 1 {
		t.Fatalf("failed tool must still yield exactly one assistant message, got %d", n)
	}
}

func TestUnknownToolIsFatal(t *testing.T) {
	st := newFakeStore()
	provider := &fakeProvider{
		converseResp: llm.ModelResponse{ToolCall: &llm.ToolCallRequest{Name: "summon_dragon"}},
	}
	eng := newTestEngine(st, &fakeCatalog{}, tools.NewRegistry(), provider)

	_, err := eng.HandleMessage(context.Background(), ChatRequest{Message: "do something"})
	if !errors.Is(err, tools.ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
	// No bogus assistant turn may be persisted for a fatal tool mismatch.
	for _, msgs := range st.msgs {
		for _, m := range msgs {
			if m.Role == store.RoleAssistant || m.Role == store.RoleTool {
				t.Fatalf("unexpected %s message persisted: %q", m.Role, m.Content)
			}
		}
	}
}

func TestModelUnavailableReturnsApology(t *testing.T) {
	st := newFakeStore()
	provider := &fakeProvider{
		converseErr: fmt.Errorf("%w: connection refused", llm.ErrModelUnavailable),
		completeErr: fmt.Errorf("%w: connection refused", llm.ErrModelUnavailable),
	}
	eng := newTestEngine(st, &fakeCatalog{}, nil, provider)

	reply, err := eng.HandleMessage(context.Background(), ChatRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("model unavailability must not be a handler error: %v", err)
	}
	if reply.ErrCode != ErrCodeModelUnavailable {
		t.Fatalf("expected model_unavailable code, got %q", reply.ErrCode)
	}
	if reply.Reply == "" {
		t.Fatalf("apology text must not be empty")
	}
	if n := len(st.messagesByRole(reply.ConversationID, store.RoleAssistant)); n != 0 {
		t.Fatalf("no assistant message may pretend success, got %d", n)
	}
}

func TestFallbackCompletionWhenChatModelDown(t *testing.T) {
	st := newFakeStore()
	provider := &fakeProvider{
		converseErr:  fmt.Errorf("%w: connection refused", llm.ErrModelUnavailable),
		completeText: "degraded but helpful answer",
	}
	eng := newTestEngine(st, &fakeCatalog{}, nil, provider)

	reply, err := eng.HandleMessage(context.Background(), ChatRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if provider.completeCalls != 1 {
		t.Fatalf("expected one fallback call, got %d", provider.completeCalls)
	}
	if reply.Reply != "degraded but helpful answer" || reply.ErrCode != "" {
		t.Fatalf("fallback answer must be served as a normal reply: %+v", reply)
	}
	if n := len(st.messagesByRole(reply.ConversationID, store.RoleAssistant)); n != 1 {
		t.Fatalf("expected exactly one assistant message, got %d", n)
	}
}

func TestConversationReuseAcrossTurns(t *testing.T) {
	st := newFakeStore()
	provider := &fakeProvider{converseResp: llm.ModelResponse{Text: "first answer"}}
	eng := newTestEngine(st, &fakeCatalog{}, nil, provider)

	first, err := eng.HandleMessage(context.Background(), ChatRequest{Message: "first question"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if first.ConversationID == "" {
		t.Fatalf("a new conversation id must be returned")
	}

	provider.converseResp = llm.ModelResponse{Text: "second answer"}
	second, err := eng.HandleMessage(context.Background(), ChatRequest{
		ConversationID: first.ConversationID,
		Message:        "second question",
	})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Fatalf("second turn must reuse the conversation")
	}

	// The second turn's model context must include the first turn.
	var sawFirstQuestion, sawFirstAnswer bool
	for _, m := range provider.lastHistory {
		if m.Content == "first question" {
			sawFirstQuestion = true
		}
		if m.Content == "first answer" {
			sawFirstAnswer = true
		}
	}
	if !sawFirstQuestion || !sawFirstAnswer {
		t.Fatalf("history must include the first turn, got %+v", provider.lastHistory)
	}
}

func TestUnknownConversationIDIsNotFound(t *testing.T) {
	eng := newTestEngine(newFakeStore(), &fakeCatalog{}, nil, &fakeProvider{})

	_, err := eng.HandleMessage(context.Background(), ChatRequest{
		ConversationID: "does-not-exist",
		Message:        "hello",
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistenceFailureAbortsBeforeModelCall(t *testing.T) {
	st := newFakeStore()
	st.failAppend = true
	provider := &fakeProvider{converseResp: llm.ModelResponse{Text: "should not happen"}}
	eng := newTestEngine(st, &fakeCatalog{}, nil, provider)

	if _, err := eng.HandleMessage(context.Background(), ChatRequest{Message: "hello"}); err == nil {
		t.Fatalf("expected persistence error")
	}
	if provider.converseCalls != 0 {
		t.Fatalf("the model must never be called for an unpersisted user message")
	}
}

func TestModelHistoryExcludesCurrentMessageAndToolPayloads(t *testing.T) {
	st := newFakeStore()
	conv, _ := st.CreateConversation(context.Background(), "guest")
	_, _ = st.AppendMessage(context.Background(), conv.ID, store.RoleUser, "older question")
	_, _ = st.AppendMessage(context.Background(), conv.ID, store.RoleTool, `{"success":true}`)
	_, _ = st.AppendMessage(context.Background(), conv.ID, store.RoleAssistant, "older answer")

	provider := &fakeProvider{converseResp: llm.ModelResponse{Text: "fresh answer"}}
	eng := newTestEngine(st, &fakeCatalog{}, nil, provider)

	if _, err := eng.HandleMessage(context.Background(), ChatRequest{ConversationID: conv.ID, Message: "new question"}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	for _, m := range provider.lastHistory {
		if m.Role == store.RoleTool {
			t.Fatalf("tool payloads must not reach the model context: %+v", m)
		}
		if m.Content == "new question" {
			t.Fatalf("current message must not be duplicated in history")
		}
	}
	if len(provider.lastHistory) != 2 {
		t.Fatalf("expected 2 history messages, got %d", len(provider.lastHistory))
	}
}

func TestToolSchemasArePassedToModel(t *testing.T) {
	reg := tools.NewRegistry(&tools.ComplaintTool{Filer: &fakeFiler{}}, tools.WeatherTool{})
	provider := &fakeProvider{converseResp: llm.ModelResponse{Text: "ok"}}
	eng := newTestEngine(newFakeStore(), &fakeCatalog{}, reg, provider)

	if _, err := eng.HandleMessage(context.Background(), ChatRequest{Message: "hello"}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(provider.lastTools) != 2 {
		t.Fatalf("expected 2 tool schemas, got %d", len(provider.lastTools))
	}
	if provider.lastTools[0].Name != "file_complaint" {
		t.Fatalf("expected file_complaint first, got %q", provider.lastTools[0].Name)
	}
}
