package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/friday/backend/internal/middleware"
	"github.com/zhouzirui/friday/backend/internal/model/user"
	chatservice "github.com/zhouzirui/friday/backend/internal/service/chat"
	"github.com/zhouzirui/friday/backend/internal/service/history"
)

type fakeCompleter struct {
	mu        sync.Mutex
	fragments []string
	streamErr error
	openErr   error
	calls     int
}

func (f *fakeCompleter) SystemPrompt() string { return "You are Friday." }

func (f *fakeCompleter) Stream(_ context.Context, _ []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}

	sr, sw := schema.Pipe[*schema.Message](len(f.fragments) + 1)
	go func() {
		defer sw.Close()
		for _, frag := range f.fragments {
			sw.Send(schema.AssistantMessage(frag, nil), nil)
		}
		if f.streamErr != nil {
			sw.Send(nil, f.streamErr)
		}
	}()
	return sr, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type staticSessions map[string]user.User

func (s staticSessions) CurrentUser(token string) (user.User, bool) {
	u, ok := s[token]
	return u, ok
}

func setupRouter(completer *fakeCompleter) (*chi.Mux, *history.MemoryStore) {
	store := history.NewMemoryStore()
	handler := New(chatservice.NewService(store, completer))

	r := chi.NewRouter()
	r.Use(middleware.Session(staticSessions{"tok": {UID: "g-7"}}))
	handler.RegisterRoutes(r)
	return r, store
}

func postChat(r http.Handler, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func errorBody(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", resp.Body.String(), err)
	}
	return body["error"]
}

func TestChatStreamsFramesAndSentinel(t *testing.T) {
	completer := &fakeCompleter{fragments: []string{"Hel", "lo"}}
	r, store := setupRouter(completer)

	resp := postChat(r, `{"message":"Hi","userId":"u1"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	want := "data: {\"content\":\"Hel\"}\n\ndata: {\"content\":\"lo\"}\n\ndata: [DONE]\n\n"
	if resp.Body.String() != want {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}

	turns, err := store.QueryRecent(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("QueryRecent err: %v", err)
	}
	if len(turns) != 2 || turns[1].Content != "Hello" {
		t.Fatalf("unexpected stored turns: %+v", turns)
	}
}

func TestChatRejectsInvalidMessageWithoutProviderCall(t *testing.T) {
	cases := map[string]string{
		"missing":      `{}`,
		"wrong type":   `{"message":123}`,
		"empty":        `{"message":""}`,
		"invalid json": `{"message":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			completer := &fakeCompleter{fragments: []string{"x"}}
			r, _ := setupRouter(completer)

			resp := postChat(r, body)

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.Code)
			}
			if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected JSON error, got %q", ct)
			}
			if errorBody(t, resp) == "" {
				t.Fatal("expected error message")
			}
			if completer.callCount() != 0 {
				t.Fatalf("provider called %d times", completer.callCount())
			}
		})
	}
}

func TestChatOpenFailureIsJSON500(t *testing.T) {
	r, _ := setupRouter(&fakeCompleter{openErr: errors.New("401")})

	resp := postChat(r, `{"message":"Hi"}`)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if got := errorBody(t, resp); got != "Internal server error" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestChatMidStreamFailureEndsWithErrorFrame(t *testing.T) {
	r, _ := setupRouter(&fakeCompleter{fragments: []string{"Hel"}, streamErr: errors.New("reset")})

	resp := postChat(r, `{"message":"Hi"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.HasPrefix(body, "data: {\"content\":\"Hel\"}\n\n") {
		t.Fatalf("unexpected body %q", body)
	}
	if !strings.Contains(body, `data: {"error":"Internal server error"}`) {
		t.Fatalf("expected error frame, got %q", body)
	}
	if strings.Contains(body, "[DONE]") {
		t.Fatalf("sentinel must not follow a failure: %q", body)
	}
}

func TestChatFallsBackToSessionUser(t *testing.T) {
	r, store := setupRouter(&fakeCompleter{fragments: []string{"ok"}})

	resp := postChat(r, `{"message":"Hi"}`, &http.Cookie{Name: middleware.SessionCookie, Value: "tok"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	turns, err := store.QueryRecent(context.Background(), "g-7", 10)
	if err != nil {
		t.Fatalf("QueryRecent err: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected session user turns, got %+v", turns)
	}
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/chat/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readAll(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()
	var msgs []string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return msgs
		}
		msgs = append(msgs, string(data))
	}
}

func TestWebSocketStreamsFrames(t *testing.T) {
	r, _ := setupRouter(&fakeCompleter{fragments: []string{"Hel", "lo"}})
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dialWS(t, srv)
	if err := conn.WriteJSON(map[string]string{"message": "Hi"}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	got := readAll(t, conn)
	want := []string{`{"content":"Hel"}`, `{"content":"lo"}`, "[DONE]"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected frames %q", got)
	}
}

func TestWebSocketValidationError(t *testing.T) {
	completer := &fakeCompleter{fragments: []string{"x"}}
	r, _ := setupRouter(completer)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dialWS(t, srv)
	if err := conn.WriteJSON(map[string]any{"message": 5}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	got := readAll(t, conn)
	if len(got) != 1 || !strings.Contains(got[0], `"error"`) {
		t.Fatalf("expected single error frame, got %q", got)
	}
	if completer.callCount() != 0 {
		t.Fatal("provider must not be called")
	}
}
