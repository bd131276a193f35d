package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/caredesk/caredesk/internal/behavior"
	"github.com/caredesk/caredesk/internal/chat"
	"github.com/caredesk/caredesk/internal/models"
	"github.com/caredesk/caredesk/internal/orders"
	"github.com/caredesk/caredesk/internal/store"
)

const testUserID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

type fakeGen struct {
	reply string
	err   error
}

func (f *fakeGen) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.reply, f.err
}

func (f *fakeGen) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	t.Cleanup(func() { st.Close() })
	gen := &fakeGen{reply: "Happy to help!"}
	chatSvc := chat.NewService(st, gen, orders.NewResolver(st, nil), nil, nil)
	behaviorSvc := behavior.NewEngine(st, gen)
	return NewServer(st, chatSvc, behaviorSvc), st
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := getPath(t, srv.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp models.OKResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !resp.OK {
		t.Error("expected ok=true")
	}
}

func TestChatEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	rec := postJSON(t, srv.Handler(), "/api/chat", `{"message":"where is my package?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp models.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if resp.Reply != "Happy to help!" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.ConversationID == "" {
		t.Fatal("missing conversationId")
	}
	if resp.Suggestions == nil {
		t.Error("suggestions should be an empty array, not null")
	}

	msgs, err := st.GetMessages(resp.ConversationID)
	if err != nil {
		t.Fatalf("GetMessages error: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("persisted %d messages, want 2", len(msgs))
	}
}

func TestChatEndpointInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := postJSON(t, srv.Handler(), "/api/chat", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"empty message", `{"message":"   "}`, "message"},
		{"bad userId", `{"message":"hi","userId":"not-a-uuid"}`, "userId"},
		{"bad conversationId", `{"message":"hi","conversationId":"42"}`, "conversationId"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := postJSON(t, srv.Handler(), "/api/chat", c.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp models.APIError
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal error: %v", err)
			}
			if _, ok := resp.Details[c.field]; !ok {
				t.Errorf("details = %v, want entry for %q", resp.Details, c.field)
			}
		})
	}
}

func TestChatEndpointUnknownConversation(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := postJSON(t, srv.Handler(), "/api/chat", `{"message":"hi","conversationId":"123e4567-e89b-12d3-a456-426614174000"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestProactiveChatEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	rec := postJSON(t, srv.Handler(), "/api/chat/proactive", `{"userId":"`+testUserID+`","message":"Need help choosing?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp models.ProactiveChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	msgs, err := st.GetMessages(resp.ConversationID)
	if err != nil {
		t.Fatalf("GetMessages error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != models.RoleAssistant {
		t.Fatalf("seeded messages = %+v", msgs)
	}

	missing := postJSON(t, srv.Handler(), "/api/chat/proactive", `{"message":"no user"}`)
	if missing.Code != http.StatusBadRequest {
		t.Errorf("status without userId = %d, want 400", missing.Code)
	}
}

func TestMessagesEndpointOrdering(t *testing.T) {
	srv, st := newTestServer(t)
	base := time.Now().UTC()
	if err := st.CreateConversation(models.Conversation{ID: "c-1", CreatedAt: base}); err != nil {
		t.Fatalf("CreateConversation error: %v", err)
	}
	for i, content := range []string{"first", "second", "third"} {
		m := models.Message{ID: content, ConversationID: "c-1", Role: models.RoleUser, Content: content, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := st.AddMessage(m); err != nil {
			t.Fatalf("AddMessage error: %v", err)
		}
	}

	rec := getPath(t, srv.Handler(), "/api/chat/c-1/messages")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp models.MessagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(resp.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(resp.Messages))
	}
	for i, want := range []string{"first", "second", "third"} {
		if resp.Messages[i].Content != want {
			t.Errorf("message %d = %q, want %q", i, resp.Messages[i].Content, want)
		}
	}
}

func TestEscalateEndpointAndAdminListing(t *testing.T) {
	srv, st := newTestServer(t)
	if err := st.CreateConversation(models.Conversation{ID: "c-1", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("CreateConversation error: %v", err)
	}

	rec := postJSON(t, srv.Handler(), "/api/chat/c-1/escalate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("escalate status = %d, body = %s", rec.Code, rec.Body.String())
	}

	admin := getPath(t, srv.Handler(), "/api/admin/escalations")
	if admin.Code != http.StatusOK {
		t.Fatalf("admin status = %d", admin.Code)
	}
	var resp models.EscalationsResponse
	if err := json.Unmarshal(admin.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "c-1" {
		t.Fatalf("items = %+v, want c-1", resp.Items)
	}
	if !strings.Contains(resp.Items[0].LastMessage, "escalated your request") {
		t.Errorf("lastMessage = %q, want hand-off notice", resp.Items[0].LastMessage)
	}

	missing := postJSON(t, srv.Handler(), "/api/chat/missing/escalate", "")
	if missing.Code != http.StatusNotFound {
		t.Errorf("escalate unknown conversation = %d, want 404", missing.Code)
	}
}

func TestAdminEscalationsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := getPath(t, srv.Handler(), "/api/admin/escalations")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Errorf("body = %s, want empty items array", rec.Body.String())
	}
}

func TestBehaviorLogEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	rec := postJSON(t, srv.Handler(), "/api/behavior/log", `{"userId":"`+testUserID+`","sessionId":"s-1","eventType":"cart_add","eventPayload":{"sku":"SKU-1"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	events, err := st.GetBehaviorEventsSince(testUserID, time.Now().UTC().Add(-time.Minute), 10)
	if err != nil {
		t.Fatalf("GetBehaviorEventsSince error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %+v, want 1", events)
	}

	missing := postJSON(t, srv.Handler(), "/api/behavior/log", `{"userId":"`+testUserID+`"}`)
	if missing.Code != http.StatusBadRequest {
		t.Errorf("status without eventType = %d, want 400", missing.Code)
	}
}

func TestBehaviorEvaluateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := postJSON(t, srv.Handler(), "/api/behavior/evaluate", `{"userId":"`+testUserID+`","force":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp models.EvaluationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !resp.ShouldPrompt || resp.PromptID == "" {
		t.Fatalf("result = %+v, want forced prompt", resp)
	}

	quiet := postJSON(t, srv.Handler(), "/api/behavior/evaluate", `{"userId":"`+testUserID+`"}`)
	var quietResp models.EvaluationResult
	if err := json.Unmarshal(quiet.Body.Bytes(), &quietResp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if quietResp.ShouldPrompt {
		t.Errorf("result = %+v, want no prompt without signals", quietResp)
	}

	missing := postJSON(t, srv.Handler(), "/api/behavior/evaluate", `{}`)
	if missing.Code != http.StatusBadRequest {
		t.Errorf("status without userId = %d, want 400", missing.Code)
	}
}

func TestBehaviorEngagementEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	p := models.ProactivePrompt{ID: "p-1", UserID: testUserID, Classification: models.ClassificationProactiveGreeting, CreatedAt: time.Now().UTC()}
	if err := st.AddProactivePrompt(p); err != nil {
		t.Fatalf("AddProactivePrompt error: %v", err)
	}

	rec := postJSON(t, srv.Handler(), "/api/behavior/engagement", `{"promptId":"p-1","engaged":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got, err := st.GetProactivePrompt("p-1")
	if err != nil {
		t.Fatalf("GetProactivePrompt error: %v", err)
	}
	if got == nil || got.Engaged == nil || *got.Engaged {
		t.Fatalf("prompt = %+v, want engaged=false recorded", got)
	}

	missing := postJSON(t, srv.Handler(), "/api/behavior/engagement", `{"promptId":"p-1"}`)
	if missing.Code != http.StatusBadRequest {
		t.Errorf("status without engaged = %d, want 400", missing.Code)
	}
}

func TestOrderStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := getPath(t, srv.Handler(), "/api/order/ORDER-4521")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if resp["id"] != "ORDER-4521" || resp["status"] != "in_transit" {
		t.Fatalf("resp = %v", resp)
	}
	if _, err := time.Parse("2006-01-02", resp["delivery_eta"]); err != nil {
		t.Errorf("delivery_eta = %q, want date-only format", resp["delivery_eta"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := getPath(t, srv.Handler(), "/api/chat")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/chat status = %d, want 405", rec.Code)
	}
}
