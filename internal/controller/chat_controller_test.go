package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"khoj/internal/apperr"
	"khoj/internal/dto"
)

type fakeChatService struct {
	startResp *dto.StartChatResponse
	startErr  error

	sendResp   *dto.SendMessageResponse
	sendErr    error
	sentAPIKey string

	history    []dto.MessageResponse
	historyErr error

	chats   []dto.ChatSummaryResponse
	listErr error
	delErr  error
}

func (f *fakeChatService) StartChat(userID int, topic string) (*dto.StartChatResponse, error) {
	return f.startResp, f.startErr
}

func (f *fakeChatService) ListChats(userID int) ([]dto.ChatSummaryResponse, error) {
	return f.chats, f.listErr
}

func (f *fakeChatService) GetHistory(chatID string) ([]dto.MessageResponse, error) {
	return f.history, f.historyErr
}

func (f *fakeChatService) DeleteChat(userID int, chatID string) error {
	return f.delErr
}

func (f *fakeChatService) SendMessage(ctx context.Context, apiKey string, req dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	f.sentAPIKey = apiKey
	return f.sendResp, f.sendErr
}

func chatRouter(svc *fakeChatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewChatController(svc).RegisterRoutes(r.Group("/api"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartChatEndpointNewChat(t *testing.T) {
	svc := &fakeChatService{startResp: &dto.StartChatResponse{ChatID: "c-1", Existing: false}}
	r := chatRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/chat/start", `{"user_id":1,"topic":"algebra"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp dto.StartChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ChatID != "c-1" || resp.Existing {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestStartChatEndpointExistingIsConflict(t *testing.T) {
	svc := &fakeChatService{startResp: &dto.StartChatResponse{ChatID: "c-1", Existing: true}}
	r := chatRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/chat/start", `{"user_id":1,"topic":"algebra"}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp dto.StartChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// The conflict still carries the authoritative chat id.
	if resp.ChatID != "c-1" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestStartChatEndpointRejectsBadBody(t *testing.T) {
	r := chatRouter(&fakeChatService{})

	w := doJSON(t, r, http.MethodPost, "/api/chat/start", `{"user_id":1}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSendMessageEndpointOffTopic(t *testing.T) {
	svc := &fakeChatService{sendErr: apperr.OffTopic("algebra")}
	r := chatRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/chat/send",
		`{"user_id":1,"chat_id":"c-1","message":"who won the cup?"}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp dto.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RequiredTopic != "algebra" {
		t.Fatalf("required_topic = %q", resp.RequiredTopic)
	}
}

func TestSendMessageEndpointProviderDown(t *testing.T) {
	svc := &fakeChatService{sendErr: apperr.New(apperr.KindProviderUnavailable, "AI provider request failed")}
	r := chatRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/chat/send",
		`{"user_id":1,"chat_id":"c-1","message":"hello"}`, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestSendMessageEndpointForwardsKeyHeader(t *testing.T) {
	svc := &fakeChatService{sendResp: &dto.SendMessageResponse{Reply: "ok"}}
	r := chatRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/api/chat/send",
		`{"user_id":1,"chat_id":"c-1","message":"hello algebra"}`,
		map[string]string{"X-Google-Api-Key": "per-request-key"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if svc.sentAPIKey != "per-request-key" {
		t.Fatalf("api key not forwarded, got %q", svc.sentAPIKey)
	}
}

func TestGetChatHistoryEndpointNotFound(t *testing.T) {
	svc := &fakeChatService{historyErr: apperr.New(apperr.KindNotFound, "chat not found")}
	r := chatRouter(svc)

	w := doJSON(t, r, http.MethodGet, "/api/chat/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetUserChatsEndpointRejectsBadID(t *testing.T) {
	r := chatRouter(&fakeChatService{})

	w := doJSON(t, r, http.MethodGet, "/api/chat/user/abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAPIKeyHeaderPrecedence(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	ctx.Request.Header.Set("X-Api-Key", "fallback")
	ctx.Request.Header.Set("X-Gemini-Api-Key", "primary")

	if got := apiKeyFromRequest(ctx); got != "primary" {
		t.Fatalf("key = %q, want the first matching header", got)
	}

	ctx.Request.Header.Del("X-Gemini-Api-Key")
	if got := apiKeyFromRequest(ctx); got != "fallback" {
		t.Fatalf("key = %q", got)
	}

	ctx.Request.Header.Del("X-Api-Key")
	if got := apiKeyFromRequest(ctx); got != "" {
		t.Fatalf("key = %q, want empty", got)
	}
}
