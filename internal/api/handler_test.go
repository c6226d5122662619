package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/xaenox/taskchat/internal/chat"
	"github.com/xaenox/taskchat/internal/conversation"
	"github.com/xaenox/taskchat/internal/events"
	"github.com/xaenox/taskchat/internal/models"
	"github.com/xaenox/taskchat/internal/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeChat struct {
	userID   string
	message  string
	fileName string
	fileText string
	drafts   []models.TaskDraft
}

func (f *fakeChat) ProcessMessage(ctx context.Context, userID, message, conversationID string) chat.Response {
	f.userID, f.message = userID, message
	return chat.Response{Text: "echo: " + message, ConversationID: conversation.ResolveID(userID, conversationID)}
}

func (f *fakeChat) ProcessFileUpload(ctx context.Context, userID, fileName, text string) chat.Response {
	f.userID, f.fileName, f.fileText = userID, fileName, text
	return chat.Response{
		Text:                 "found 1",
		SuggestedTasks:       []models.TaskDraft{{Title: "Book room", Status: models.StatusPending}},
		RequiresConfirmation: true,
		Action:               chat.ActionAddExtractedTasks,
	}
}

func (f *fakeChat) ConfirmTaskCreation(ctx context.Context, userID string, drafts []models.TaskDraft) chat.Response {
	f.userID, f.drafts = userID, drafts
	return chat.Response{Text: "Successfully added 1 task to your list!"}
}

type testServer struct {
	srv   *httptest.Server
	chat  *fakeChat
	convs *conversation.Service
	hub   *events.Hub
	h     *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLogger(t, zaptest.NewLogger(t))
}

func newTestServerWithLogger(t *testing.T, logger *zap.Logger) *testServer {
	t.Helper()
	fc := &fakeChat{}
	convs := conversation.NewService(storage.NewMemoryStorage(), conversation.DefaultTTL, logger)
	hub := events.NewHub(logger)
	h := NewHandler(fc, convs, hub, logger)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, chat: fc, convs: convs, hub: hub, h: h}
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body []byte, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
}

func TestRequireUser(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/chat/message", "", []byte(`{"message":"hi"}`), "application/json")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without user, got %d", resp.StatusCode)
	}
}

func TestMessage(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/chat/message", "u1", []byte(`{"message":"show my tasks"}`), "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var got map[string]any
	decode(t, resp, &got)
	if got["response"] != "echo: show my tasks" || got["conversationId"] != "main_u1" {
		t.Fatalf("unexpected body: %v", got)
	}
	if ts.chat.userID != "u1" {
		t.Fatalf("user id not passed through, got %q", ts.chat.userID)
	}

	resp = ts.do(t, http.MethodPost, "/api/chat/message", "u1", []byte(`{"message":"  "}`), "application/json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for blank message, got %d", resp.StatusCode)
	}
}

func multipartBody(t *testing.T, fileName, content string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return buf.Bytes(), mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)

	body, ct := multipartBody(t, "notes.txt", "1. Book the conference room")
	resp := ts.do(t, http.MethodPost, "/api/chat/upload", "u1", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var got chat.Response
	decode(t, resp, &got)
	if !got.RequiresConfirmation || len(got.SuggestedTasks) != 1 || got.Action != chat.ActionAddExtractedTasks {
		t.Fatalf("unexpected body: %+v", got)
	}
	if ts.chat.fileName != "notes.txt" || ts.chat.fileText != "1. Book the conference room" {
		t.Fatalf("file not passed through: %q %q", ts.chat.fileName, ts.chat.fileText)
	}

	body, ct = multipartBody(t, "slides.pdf", "%PDF")
	resp = ts.do(t, http.MethodPost, "/api/chat/upload", "u1", body, ct)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for pdf, got %d", resp.StatusCode)
	}
}

func TestUploadOversizedBody(t *testing.T) {
	ts := newTestServer(t)

	body, ct := multipartBody(t, "notes.txt", strings.Repeat("a", 7<<20))
	resp := ts.do(t, http.MethodPost, "/api/chat/upload", "u1", body, ct)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d", resp.StatusCode)
	}
	if ts.chat.fileName != "" {
		t.Fatal("oversized upload reached the chat service")
	}
}

func TestConfirmTasks(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/chat/confirm-tasks", "u1",
		[]byte(`[{"title":"Book room","priority":"HIGH","dueDate":"2024-03-08T00:00:00Z"}]`), "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var got map[string]string
	decode(t, resp, &got)
	if got["response"] != "Successfully added 1 task to your list!" {
		t.Fatalf("unexpected body: %v", got)
	}
	if len(ts.chat.drafts) != 1 || ts.chat.drafts[0].Priority != models.PriorityHigh || ts.chat.drafts[0].DueDate == nil {
		t.Fatalf("drafts not decoded: %+v", ts.chat.drafts)
	}
}

func TestConversationRoutes(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	ts.convs.Append(ctx, "u1", "side", models.RoleUser, "hello")

	resp := ts.do(t, http.MethodGet, "/api/chat/conversation/main", "u1", nil, "")
	var main models.Conversation
	decode(t, resp, &main)
	if main.ConversationID != "main_u1" {
		t.Fatalf("unexpected main conversation: %+v", main)
	}

	resp = ts.do(t, http.MethodGet, "/api/chat/conversations", "u1", nil, "")
	var list []models.Conversation
	decode(t, resp, &list)
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}

	resp = ts.do(t, http.MethodGet, "/api/chat/conversation/side", "u1", nil, "")
	var side models.Conversation
	decode(t, resp, &side)
	if len(side.Messages) != 1 || side.Messages[0].Content != "hello" {
		t.Fatalf("unexpected conversation: %+v", side)
	}

	resp = ts.do(t, http.MethodGet, "/api/chat/conversation/side", "u2", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 for another user, got %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodDelete, "/api/chat/conversation/side", "u1", nil, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodDelete, "/api/chat/conversation/side", "u1", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 on second delete, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.h.AddHealthCheck("database", PingerFunc(func(ctx context.Context) error { return nil }))

	resp := ts.do(t, http.MethodGet, "/healthz", "", nil, "")
	var got healthResponse
	decode(t, resp, &got)
	if got.Status != "UP" || got.Checks["database"] != "UP" {
		t.Fatalf("unexpected health: %+v", got)
	}

	ts.h.AddHealthCheck("inference", PingerFunc(func(ctx context.Context) error { return errors.New("unauthorized") }))
	resp = ts.do(t, http.MethodGet, "/healthz", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("degraded health should still be 200, got %d", resp.StatusCode)
	}
	decode(t, resp, &got)
	if got.Status != "DEGRADED" || !strings.HasPrefix(got.Checks["inference"], "DOWN") {
		t.Fatalf("unexpected health: %+v", got)
	}
}

func TestCachedPinger(t *testing.T) {
	calls := 0
	fail := errors.New("unauthorized")
	pinger := CachedPinger(PingerFunc(func(ctx context.Context) error {
		calls++
		return fail
	}), time.Minute).(*cachedPinger)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	pinger.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if err := pinger.Ping(context.Background()); !errors.Is(err, fail) {
			t.Fatalf("expected cached error, got %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream check, got %d", calls)
	}

	now = now.Add(2 * time.Minute)
	pinger.Ping(context.Background())
	if calls != 2 {
		t.Fatalf("expected a fresh check after the ttl, got %d calls", calls)
	}
}

func TestEventStream(t *testing.T) {
	// hijacked connections can outlive the test, so nothing may log to t
	ts := newTestServerWithLogger(t, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{UserIDHeader: []string{"u1"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	// wait for the handler to subscribe before publishing
	for ts.hub.Subscribers("u1") == 0 {
		if ctx.Err() != nil {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	ts.hub.Publish(events.Event{Type: events.TypeTaskUpdate, Action: events.ActionCreate, UserID: "u1", TaskID: "t1"})

	var evt events.Event
	if err := wsjson.Read(ctx, conn, &evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	if evt.Action != events.ActionCreate || evt.TaskID != "t1" {
		t.Fatalf("unexpected event: %+v", evt)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
