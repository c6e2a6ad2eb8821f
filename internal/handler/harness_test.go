package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/resultadmin/internal/apiclient"
	"github.com/hitoshi/resultadmin/internal/credential"
	"github.com/hitoshi/resultadmin/internal/middleware"
	"github.com/hitoshi/resultadmin/internal/session"
)

// --- 偽バックエンド ---

type backendCall struct {
	Method string
	Path   string
	Auth   string
	Body   string
}

// fakeBackend は "METHOD /api/path" をキーに応答を返すバックエンドAPI。
type fakeBackend struct {
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []backendCall
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{routes: map[string]http.HandlerFunc{}}
	b.json("GET /api/user", http.StatusOK, `{"id":1,"name":"Ada Lovelace","email":"ada@example.edu"}`)
	b.json("GET /api/admin/faculties/data", http.StatusOK, `{"Faculties":[{"id":1,"name":"Science","abbreviation":"SCI","departments":[{"id":10,"name":"Physics"}]}]}`)
	b.json("GET /api/admin/dept", http.StatusOK, `{"Departments":[{"id":10,"name":"Physics","faculty_id":1,"faculty":{"id":1,"name":"Science"}},{"id":11,"name":"Chemistry","faculty_id":1}]}`)
	b.json("GET /api/admin/course", http.StatusOK, `{"Courses":[{"id":5,"course_code":"PHY101","course_title":"Mechanics","unit":3,"level":100,"semester":"1st","department_id":10}]}`)
	b.json("GET /api/admin/students", http.StatusOK, `{"data":[
		{"id":1,"matric_number":"SCI/001","status":"active","current_level":100,"user":{"name":"Grace Hopper"},"department":{"name":"Physics"}},
		{"id":2,"matric_number":"SCI/002","status":"graduated","current_level":400,"user":{"name":"Alan Turing"},"department":{"name":"Chemistry"}},
		{"id":3,"matric_number":"SCI/003","status":"spillover","current_level":500,"user":{"name":"Edsger Dijkstra"},"department":{"name":"Physics"}}
	]}`)
	return b
}

func (b *fakeBackend) handle(key string, fn http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[key] = fn
}

func (b *fakeBackend) json(key string, status int, body string) {
	b.handle(key, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.EscapedPath()

	b.mu.Lock()
	b.calls = append(b.calls, backendCall{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Auth:   r.Header.Get("Authorization"),
		Body:   string(body),
	})
	fn, ok := b.routes[key]
	b.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"route not found"}`)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	fn(w, r)
}

// lastCall はpathへの最後の呼び出しを返す。
func (b *fakeBackend) lastCall(t *testing.T, method, path string) backendCall {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.calls) - 1; i >= 0; i-- {
		if b.calls[i].Method == method && b.calls[i].Path == path {
			return b.calls[i]
		}
	}
	t.Fatalf("backend was not called with %s %s", method, path)
	return backendCall{}
}

func (b *fakeBackend) callCount(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// --- テスト用アプリケーション ---

type fakeGuardRecorder struct {
	mu        sync.Mutex
	redirects int
}

func (f *fakeGuardRecorder) RecordGuardRedirect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redirects++
}

func (f *fakeGuardRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.redirects
}

type testApp struct {
	backend     *fakeBackend
	credentials *credential.MemoryBackend
	registry    *session.Registry
	guardRec    *fakeGuardRecorder
	server      *httptest.Server
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithRateLimit(t, middleware.RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    1000,
		LoginRate:       100,
		LoginBurst:      1000,
		CleanupInterval: time.Hour,
	})
}

func newTestAppWithRateLimit(t *testing.T, limits middleware.RateLimiterConfig) *testApp {
	t.Helper()

	backend := newFakeBackend()
	backendServer := httptest.NewServer(backend)
	t.Cleanup(backendServer.Close)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	client, err := apiclient.New(backendServer.URL, backendServer.Client(), logger)
	if err != nil {
		t.Fatalf("apiclient.New returned error: %v", err)
	}

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer returned error: %v", err)
	}

	creds := credential.NewMemoryBackend()
	registry := session.NewRegistry(creds, session.RegistryConfig{
		IdleTTL:         time.Hour,
		CleanupInterval: time.Hour,
	}, nil)
	t.Cleanup(registry.Stop)

	rl := middleware.NewRateLimiter(limits)
	t.Cleanup(rl.Stop)

	guardRec := &fakeGuardRecorder{}
	router := NewRouter(&RouterDeps{
		Handler:       NewHandler(client, renderer, Config{}),
		Logger:        logger,
		Sessions:      registry,
		RateLimiter:   rl,
		GuardRecorder: guardRec,
		HealthChecks: map[string]HealthCheck{
			"credential_store": func(ctx context.Context) error { return nil },
		},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{
		backend:     backend,
		credentials: creds,
		registry:    registry,
		guardRec:    guardRec,
		server:      server,
	}
}

// browser はCookieを保持し、リダイレクトを追わないHTTPクライアント。
type browser struct {
	t      *testing.T
	app    *testApp
	client *http.Client
}

func (a *testApp) newBrowser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New returned error: %v", err)
	}
	return &browser{
		t:   t,
		app: a,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type page struct {
	Status   int
	Location string
	Body     string
}

func (b *browser) do(req *http.Request) page {
	b.t.Helper()
	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s failed: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return page{Status: resp.StatusCode, Location: resp.Header.Get("Location"), Body: string(body)}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, b.app.server.URL+path, nil)
	return b.do(req)
}

// post はCSRFトークンを付けてフォームを送信する。Cookieがなければ先にトップページを開く。
func (b *browser) post(path string, form url.Values) page {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if token := b.cookie("csrf_token"); token == "" {
		b.get("/")
	}
	form.Set(middleware.CSRFFormField, b.cookie("csrf_token"))

	req, _ := http.NewRequest(http.MethodPost, b.app.server.URL+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.app.server.URL)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// contextID はこのブラウザのブラウジングコンテキストIDを返す。
func (b *browser) contextID() string {
	return b.cookie(middleware.BrowsingContextCookieName)
}

// storedToken は永続ストアに保存されたこのブラウザのトークンを返す。
func (b *browser) storedToken() (string, bool) {
	b.t.Helper()
	token, ok, err := b.app.credentials.Get(context.Background(), b.contextID(), credential.Key)
	if err != nil {
		b.t.Fatalf("credentials.Get returned error: %v", err)
	}
	return token, ok
}

// login はバックエンドがtokenを返す状態でログインする。
func (b *browser) login(token string) page {
	b.t.Helper()
	b.app.backend.json("POST /api/login", http.StatusOK, `{"token":"`+token+`"}`)
	return b.post("/login", url.Values{"email": {"admin@example.edu"}, "password": {"secret123"}})
}

// postLoginWithoutContext はブラウジングコンテキストのCookieを付けずに、
// 自分で選んだCSRFトークンでログインフォームを送信する。
func (a *testApp) postLoginWithoutContext(t *testing.T, email string) *http.Response {
	t.Helper()
	const csrf = "self-chosen-token"
	form := url.Values{"email": {email}, "password": {"secret123"}, middleware.CSRFFormField: {csrf}}
	req, _ := http.NewRequest(http.MethodPost, a.server.URL+"/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: csrf})

	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("POST /login failed: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp
}
