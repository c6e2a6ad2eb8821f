package apiclient

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/resultadmin/internal/credential"
)

// --- モック定義 ---

// storeCredentials はcredential.Storeを直接使うCredentials実装。
type storeCredentials struct {
	store       *credential.Store
	invalidated int
}

func newStoreCredentials(token string) *storeCredentials {
	store := credential.NewStore(credential.NewMemoryBackend(), "ctx-test")
	if token != "" {
		_ = store.Write(context.Background(), token)
	}
	return &storeCredentials{store: store}
}

func (s *storeCredentials) Token(ctx context.Context) (string, bool, error) {
	return s.store.Read(ctx)
}

func (s *storeCredentials) Invalidate(ctx context.Context) error {
	s.invalidated++
	return s.store.Clear(ctx)
}

type failingCredentials struct {
	readErr       error
	invalidateErr error
}

func (f *failingCredentials) Token(ctx context.Context) (string, bool, error) {
	if f.readErr != nil {
		return "", false, f.readErr
	}
	return "tok", true, nil
}

func (f *failingCredentials) Invalidate(ctx context.Context) error {
	return f.invalidateErr
}

type recordedCall struct {
	method string
	status int
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) RecordAPIRequest(method string, status int, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{method: method, status: status})
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) (*Client, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	c, err := New(server.URL, server.Client(), newTestLogger(&buf), opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return c, &buf
}

// --- テスト ---

func TestNew_AppendsAPIPrefix(t *testing.T) {
	c, err := New("https://backend.example.edu/", nil, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if got := c.BaseURL(); got != "https://backend.example.edu/api" {
		t.Errorf("BaseURL = %q, want https://backend.example.edu/api", got)
	}
}

func TestNew_InvalidOrigin_ReturnsError(t *testing.T) {
	for _, origin := range []string{"", "ftp://backend", "not a url", "http://"} {
		if _, err := New(origin, nil, nil); err == nil {
			t.Errorf("New(%q) expected error, got nil", origin)
		}
	}
}

func TestDo_TokenPresent_SetsBearerHeader(t *testing.T) {
	var gotAuth string
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	creds := newStoreCredentials("abc123")
	c, _ := newTestClient(t, server)
	api := c.With(WithBearerAuth(creds))

	if _, err := api.Get(context.Background(), "/admin/dept"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if gotAuth != "Bearer abc123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer abc123")
	}
	if gotPath != "/api/admin/dept" {
		t.Errorf("path = %q, want /api/admin/dept", gotPath)
	}
}

func TestDo_TokenAbsent_OmitsHeaderEntirely(t *testing.T) {
	var present bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["Authorization"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server, WithRequestInterceptor(func(req *http.Request) (*http.Request, error) {
		req.Header.Set("Authorization", "stale")
		return req, nil
	}))
	api := c.With(WithBearerAuth(newStoreCredentials("")))

	if _, err := api.Get(context.Background(), "/user"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if present {
		t.Error("Authorization header must be omitted when no token is stored")
	}
}

func TestDo_401_ClearsCredentialBeforeReturning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthenticated."}`))
	}))
	defer server.Close()

	creds := newStoreCredentials("abc123")
	c, _ := newTestClient(t, server)
	api := c.With(WithBearerAuth(creds))

	_, err := api.Get(context.Background(), "/admin/faculties/data")
	if err == nil {
		t.Fatal("expected error for 401 response, got nil")
	}

	// 呼び出し元がエラーを観測した時点でトークンは消えている
	if _, ok, _ := creds.store.Read(context.Background()); ok {
		t.Error("credential must be cleared when the caller observes the 401")
	}
	if creds.invalidated != 1 {
		t.Errorf("invalidated = %d, want 1", creds.invalidated)
	}

	// 元のエラーは握りつぶされない
	if !IsUnauthorized(err) {
		t.Errorf("IsUnauthorized(err) = false, err = %v", err)
	}
	var re *ResponseError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ResponseError, got %T", err)
	}
	if re.StatusCode != http.StatusUnauthorized || re.Message != "Unauthenticated." {
		t.Errorf("ResponseError = %+v", re)
	}
}

func TestDo_Non401Failures_LeaveCredentialUnchanged(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusInternalServerError, http.StatusBadGateway} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer server.Close()

			creds := newStoreCredentials("abc123")
			c, _ := newTestClient(t, server)
			api := c.With(WithBearerAuth(creds))

			_, err := api.Get(context.Background(), "/admin/students")
			if StatusCode(err) != status {
				t.Fatalf("StatusCode(err) = %d, want %d", StatusCode(err), status)
			}
			got, ok, _ := creds.store.Read(context.Background())
			if !ok || got != "abc123" {
				t.Errorf("credential changed to (%q, %v) after status %d", got, ok, status)
			}
			if creds.invalidated != 0 {
				t.Errorf("invalidated = %d, want 0", creds.invalidated)
			}
		})
	}
}

func TestDo_Success_PassesResponseThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"created"}`))
	}))
	defer server.Close()

	creds := newStoreCredentials("abc123")
	c, _ := newTestClient(t, server)
	resp, err := c.With(WithBearerAuth(creds)).Post(context.Background(), "/admin/faculties", map[string]string{"name": "Science"})
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated || resp.Message() != "created" {
		t.Errorf("resp = %d %q", resp.StatusCode, resp.Message())
	}
	if _, ok, _ := creds.store.Read(context.Background()); !ok {
		t.Error("credential must survive a successful call")
	}
}

func TestDo_SendsJSONBody(t *testing.T) {
	var gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		b := new(bytes.Buffer)
		b.ReadFrom(r.Body)
		gotBody = b.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server)
	if _, err := c.Put(context.Background(), "/admin/dept/3", map[string]string{"name": "Physics"}); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotBody != `{"name":"Physics"}` {
		t.Errorf("body = %q", gotBody)
	}
}

func TestDo_TransportError_StatusZeroAndCredentialKept(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	creds := newStoreCredentials("abc123")
	var buf bytes.Buffer
	c, err := New(url, &http.Client{Timeout: time.Second}, newTestLogger(&buf))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = c.With(WithBearerAuth(creds)).Get(context.Background(), "/user")
	if err == nil {
		t.Fatal("expected transport error, got nil")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
	if StatusCode(err) != 0 {
		t.Errorf("StatusCode = %d, want 0", StatusCode(err))
	}
	if got := Message(err, "fallback"); got != "Network Error" {
		t.Errorf("Message = %q, want Network Error", got)
	}
	if _, ok, _ := creds.store.Read(context.Background()); !ok {
		t.Error("transport errors must not clear the credential")
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected ERROR log for transport failure, got: %s", buf.String())
	}
}

func TestDo_CredentialReadError_RejectsRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	boom := errors.New("redis down")
	c, _ := newTestClient(t, server)
	_, err := c.With(WithBearerAuth(&failingCredentials{readErr: boom})).Get(context.Background(), "/user")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
	if called {
		t.Error("request must not be sent when the credential cannot be read")
	}
}

func TestDo_InvalidateError_KeepsOriginalError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	boom := errors.New("redis down")
	c, _ := newTestClient(t, server)
	_, err := c.With(WithBearerAuth(&failingCredentials{invalidateErr: boom})).Get(context.Background(), "/user")
	if !IsUnauthorized(err) {
		t.Errorf("original 401 must remain observable, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("invalidate failure must be reported, got %v", err)
	}
}

// ctxCredentials はInvalidateに渡されたコンテキストの状態を記録する。
type ctxCredentials struct {
	canceledOnInvalidate bool
	hasDeadline          bool
}

func (c *ctxCredentials) Token(ctx context.Context) (string, bool, error) {
	return "tok", true, nil
}

func (c *ctxCredentials) Invalidate(ctx context.Context) error {
	c.canceledOnInvalidate = ctx.Err() != nil
	_, c.hasDeadline = ctx.Deadline()
	return ctx.Err()
}

func TestBearerAuth_InvalidateSurvivesCanceledRequest(t *testing.T) {
	creds := &ctxCredentials{}
	_, onResponse := BearerAuth(creds)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/user", nil).WithContext(ctx)
	cancel()

	unauthorized := &ResponseError{Method: http.MethodGet, Path: "/user", StatusCode: http.StatusUnauthorized}
	_, err := onResponse(req, nil, unauthorized)

	if creds.canceledOnInvalidate {
		t.Error("Invalidate must not see the request's cancellation")
	}
	if !creds.hasDeadline {
		t.Error("Invalidate must run with a bounded deadline")
	}
	if !errors.Is(err, unauthorized) || strings.Contains(err.Error(), "failed to invalidate") {
		t.Errorf("err = %v, want only the original 401", err)
	}
}

func TestWith_DoesNotMutateParent(t *testing.T) {
	var auths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server)
	a := c.With(WithBearerAuth(newStoreCredentials("token-a")))
	b := c.With(WithBearerAuth(newStoreCredentials("token-b")))

	ctx := context.Background()
	_, _ = c.Get(ctx, "/x")
	_, _ = a.Get(ctx, "/x")
	_, _ = b.Get(ctx, "/x")

	want := []string{"", "Bearer token-a", "Bearer token-b"}
	for i := range want {
		if auths[i] != want[i] {
			t.Errorf("call %d Authorization = %q, want %q", i, auths[i], want[i])
		}
	}
}

func TestWithMetrics_RecordsEveryCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/fail" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rec := &fakeRecorder{}
	c, _ := newTestClient(t, server, WithMetrics(rec))

	_, _ = c.Get(context.Background(), "/ok")
	_, _ = c.Delete(context.Background(), "/fail")

	if len(rec.calls) != 2 {
		t.Fatalf("recorded %d calls, want 2", len(rec.calls))
	}
	if rec.calls[0] != (recordedCall{http.MethodGet, 200}) || rec.calls[1] != (recordedCall{http.MethodDelete, 401}) {
		t.Errorf("calls = %+v", rec.calls)
	}
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		want        string
	}{
		{"json message", "application/json", `{"message":"Faculty not found"}`, 404, "Faculty not found"},
		{"json error string", "application/json; charset=utf-8", `{"error":"bad input"}`, 400, "bad input"},
		{"json without content type", "", `{"message":"oops"}`, 500, "oops"},
		{"html title", "text/html; charset=utf-8", `<html><head><title>502 Bad Gateway</title></head><body>nginx</body></html>`, 502, "502 Bad Gateway"},
		{"plain text", "text/plain", "maintenance", 503, "maintenance"},
		{"empty body", "", "", 500, "Internal Server Error"},
		{"json without message", "application/json", `{"errors":{}}`, 422, "Unprocessable Entity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.contentType != "" {
				h.Set("Content-Type", tt.contentType)
			}
			got := extractMessage(&Response{StatusCode: tt.status, Header: h, Body: []byte(tt.body)})
			if got != tt.want {
				t.Errorf("extractMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage_Fallbacks(t *testing.T) {
	if got := Message(errors.New("other"), "fallback"); got != "fallback" {
		t.Errorf("Message = %q, want fallback", got)
	}
	if got := Message(&ResponseError{StatusCode: 500}, "fallback"); got != "fallback" {
		t.Errorf("Message = %q, want fallback", got)
	}
}
